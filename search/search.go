package search

import (
	"database/sql"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/viant/myvector/collection"
	"github.com/viant/myvector/index"
	"github.com/viant/myvector/vector"
	"modernc.org/sqlite/vtab"
)

// ModuleName is the name used in CREATE VIRTUAL TABLE ... USING.
const ModuleName = "myvector_search"

const (
	colID = iota
	colDistance
	colName
	colQuery
	colK
	colOptions
)

// plan bits carried in IdxNum
const (
	planK = 1 << iota
	planOptions
)

// Module implements vtab.Module for kNN searches over registry collections.
//
//	CREATE VIRTUAL TABLE knn USING myvector_search;
//	SELECT id, distance FROM knn
//	WHERE name = 'main.items.embedding' AND query MATCH ? AND k = 2;
//
// The driver keeps one module per name for the process, so the settings of
// the most recent Register call serve every table.
type Module struct {
	settings atomic.Pointer[settings]
}

type settings struct {
	registry *collection.Registry
	defaultK int
	maxK     int
}

// Option configures the module.
type Option func(*settings)

// WithDefaultK sets k when the query omits it.
func WithDefaultK(k int) Option {
	return func(s *settings) { s.defaultK = k }
}

// WithMaxK caps k.
func WithMaxK(k int) Option {
	return func(s *settings) { s.maxK = k }
}

var module = &Module{}

// Table is one myvector_search virtual table.
type Table struct {
	module *Module
}

// Cursor walks the results of one search.
type Cursor struct {
	table   *Table
	name    string
	results []index.Result
	pos     int
}

// Register registers the module with db.
func Register(db *sql.DB, reg *collection.Registry, opts ...Option) error {
	s := &settings{registry: reg, defaultK: 10, maxK: 1000}
	for _, opt := range opts {
		opt(s)
	}
	module.settings.Store(s)
	if err := vtab.RegisterModule(db, ModuleName, module); err != nil {
		if !strings.Contains(err.Error(), "already registered") {
			return err
		}
	}
	return nil
}

func (m *Module) declare(ctx vtab.Context, args []string) (vtab.Table, error) {
	if len(args) < 3 {
		return nil, fmt.Errorf("%s: expected at least 3 args, got %d", ModuleName, len(args))
	}
	if err := ctx.EnableConstraintSupport(); err != nil {
		return nil, fmt.Errorf("%s: EnableConstraintSupport failed: %w", ModuleName, err)
	}
	stmt := fmt.Sprintf("CREATE TABLE %s(id INTEGER, distance REAL, name HIDDEN, query HIDDEN, k HIDDEN, options HIDDEN)", args[2])
	if err := ctx.Declare(stmt); err != nil {
		return nil, err
	}
	return &Table{module: m}, nil
}

// Create declares the result schema.
func (m *Module) Create(ctx vtab.Context, args []string) (vtab.Table, error) {
	return m.declare(ctx, args)
}

// Connect attaches to an existing table.
func (m *Module) Connect(ctx vtab.Context, args []string) (vtab.Table, error) {
	return m.declare(ctx, args)
}

// BestIndex requires name and query constraints; k and options are
// optional. options only contributes ef_search, k always wins over nn.
func (t *Table) BestIndex(info *vtab.IndexInfo) error {
	var name, query, k, options *vtab.Constraint
	for i := range info.Constraints {
		c := &info.Constraints[i]
		if !c.Usable {
			continue
		}
		switch {
		case c.Column == colName && c.Op == vtab.OpEQ:
			name = c
		case c.Column == colQuery && (c.Op == vtab.OpMATCH || c.Op == vtab.OpEQ):
			query = c
		case c.Column == colK && c.Op == vtab.OpEQ:
			k = c
		case c.Column == colOptions && c.Op == vtab.OpEQ:
			options = c
		}
	}
	if name == nil || query == nil {
		return fmt.Errorf("%s: name and query constraints are required", ModuleName)
	}
	next := 0
	use := func(c *vtab.Constraint) {
		c.ArgIndex = next
		c.Omit = true
		next++
	}
	use(name)
	use(query)
	info.IdxNum = 0
	if k != nil {
		use(k)
		info.IdxNum |= planK
	}
	if options != nil {
		use(options)
		info.IdxNum |= planOptions
	}
	return nil
}

// Open allocates a new cursor.
func (t *Table) Open() (vtab.Cursor, error) { return &Cursor{table: t}, nil }

// Disconnect releases nothing; collections outlive tables.
func (t *Table) Disconnect() error { return nil }

// Destroy releases nothing; collections outlive tables.
func (t *Table) Destroy() error { return nil }

// Filter runs the search described by vals.
func (c *Cursor) Filter(idxNum int, _ string, vals []vtab.Value) error {
	c.results = nil
	c.pos = 0
	m := c.table.module.settings.Load()
	if m == nil {
		return fmt.Errorf("%s: module is not registered", ModuleName)
	}
	want := 2
	if idxNum&planK != 0 {
		want++
	}
	if idxNum&planOptions != 0 {
		want++
	}
	if len(vals) < want {
		return fmt.Errorf("%s: expected %d arguments, got %d", ModuleName, want, len(vals))
	}
	name, err := asString(vals[0])
	if err != nil {
		return fmt.Errorf("%s: name: %w", ModuleName, err)
	}
	if vals[1] == nil {
		return nil
	}
	query, err := decodeQuery(vals[1])
	if err != nil {
		return fmt.Errorf("%s: query: %w", ModuleName, err)
	}
	next := 2
	var opts collection.SearchOptions
	k := int64(m.defaultK)
	if idxNum&planK != 0 {
		if k, err = asInt(vals[next]); err != nil {
			return fmt.Errorf("%s: k: %w", ModuleName, err)
		}
		next++
	}
	if idxNum&planOptions != 0 {
		raw, err := asString(vals[next])
		if err != nil {
			return fmt.Errorf("%s: options: %w", ModuleName, err)
		}
		if opts, err = collection.ParseSearchOptions(raw, int(k), m.maxK); err != nil {
			return fmt.Errorf("%s: %w", ModuleName, err)
		}
	}
	if k <= 0 {
		return fmt.Errorf("%s: %w: k must be positive, got %d", ModuleName, vector.ErrInvalidArgument, k)
	}
	if m.maxK > 0 {
		k = min(k, int64(m.maxK))
	}
	opts.NN = int(k)

	coll, err := m.registry.Get(name)
	if err != nil {
		return fmt.Errorf("%s: %w", ModuleName, err)
	}
	results, err := coll.SearchWith(query, opts)
	if err != nil {
		return fmt.Errorf("%s: %w", ModuleName, err)
	}
	c.name = coll.Name()
	c.results = results
	return nil
}

// Next advances the cursor.
func (c *Cursor) Next() error {
	if c.pos < len(c.results) {
		c.pos++
	}
	return nil
}

// Eof reports end-of-rows.
func (c *Cursor) Eof() bool { return c.pos >= len(c.results) }

// Column returns the value of a column in the current row.
func (c *Cursor) Column(col int) (vtab.Value, error) {
	if c.pos < 0 || c.pos >= len(c.results) {
		return nil, fmt.Errorf("%s: Column out of range (pos=%d,len=%d)", ModuleName, c.pos, len(c.results))
	}
	switch col {
	case colID:
		return c.results[c.pos].ID, nil
	case colDistance:
		return c.results[c.pos].Distance, nil
	case colName:
		return c.name, nil
	}
	return nil, nil
}

// Rowid returns the 1-based rank.
func (c *Cursor) Rowid() (int64, error) { return int64(c.pos + 1), nil }

// Close releases resources.
func (c *Cursor) Close() error { c.results = nil; c.pos = 0; return nil }

// decodeQuery accepts an encoded value, a bare float32 array, a vector
// literal, a CSV list or a base64 encoded value.
func decodeQuery(v vtab.Value) (vector.Vector, error) {
	switch val := v.(type) {
	case []byte:
		if q, err := vector.DecodeValue(val); err == nil {
			return q, nil
		}
		return vector.DecodeFloats(val)
	case string:
		return decodeQueryString(val)
	default:
		return nil, fmt.Errorf("%w: expected BLOB or TEXT, got %T", vector.ErrInvalidArgument, v)
	}
}

func decodeQueryString(raw string) (vector.Vector, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return nil, fmt.Errorf("%w: empty query", vector.ErrInvalidArgument)
	}
	switch s[0] {
	case '[', '{', '(':
		return vector.Construct(s)
	}
	if b, err := base64.StdEncoding.DecodeString(s); err == nil {
		if q, err := vector.DecodeValue(b); err == nil {
			return q, nil
		}
	}
	return vector.Construct("[" + s + "]")
}

func asString(v vtab.Value) (string, error) {
	switch val := v.(type) {
	case string:
		return val, nil
	case []byte:
		return string(val), nil
	case nil:
		return "", fmt.Errorf("%w: value is NULL", vector.ErrInvalidArgument)
	default:
		return "", fmt.Errorf("%w: unsupported text type %T", vector.ErrInvalidArgument, v)
	}
}

func asInt(v vtab.Value) (int64, error) {
	switch val := v.(type) {
	case int64:
		return val, nil
	case float64:
		return int64(val), nil
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(val), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: cannot parse %q", vector.ErrInvalidArgument, val)
		}
		return n, nil
	default:
		return 0, fmt.Errorf("%w: unsupported integer type %T", vector.ErrInvalidArgument, v)
	}
}
