package admin

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/viant/myvector/collection"
	"github.com/viant/myvector/vector"
	"modernc.org/sqlite/vtab"
)

// ModuleName is the name used in CREATE VIRTUAL TABLE ... USING.
const ModuleName = "myvector_admin"

const (
	colStatus = iota
	colOp
)

// Module provides index maintenance through a virtual table.
// Usage:
//
//	CREATE VIRTUAL TABLE adm USING myvector_admin;
//	SELECT status FROM adm WHERE op MATCH 'build main.items.embedding id type=hnsw,dim=3';
//
// Supported commands:
//
//	build <name> <id column> [options]
//	refresh <name>
//	save <name>
//	load <name>
//	drop <name>
//	status [name]
//
// Each command returns one status row per affected index.
//
// The driver keeps one module per name for the process, so the settings of
// the most recent Register call serve every table.
type Module struct {
	settings atomic.Pointer[settings]
}

type settings struct {
	registry *collection.Registry
	timeout  time.Duration
	ctx      context.Context
}

// Option configures the module.
type Option func(*settings)

// WithTimeout bounds a single command. Zero means no limit.
func WithTimeout(d time.Duration) Option {
	return func(s *settings) { s.timeout = d }
}

var module = &Module{}

type Table struct{ module *Module }

type Cursor struct {
	table *Table
	rows  []string
	pos   int
}

// WithContext sets the context commands derive from. Cancelling it stops
// builds and refreshes issued through SQL.
func WithContext(ctx context.Context) Option {
	return func(s *settings) { s.ctx = ctx }
}

// Register registers the module with db.
func Register(db *sql.DB, reg *collection.Registry, opts ...Option) error {
	s := &settings{registry: reg, ctx: context.Background()}
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
		return nil, fmt.Errorf("%s: need at least 3 args", ModuleName)
	}
	if err := ctx.Declare(fmt.Sprintf("CREATE TABLE %s(status TEXT, op HIDDEN)", args[2])); err != nil {
		return nil, err
	}
	return &Table{module: m}, nil
}

func (m *Module) Create(ctx vtab.Context, args []string) (vtab.Table, error) {
	return m.declare(ctx, args)
}

func (m *Module) Connect(ctx vtab.Context, args []string) (vtab.Table, error) {
	return m.declare(ctx, args)
}

func (t *Table) BestIndex(info *vtab.IndexInfo) error {
	info.IdxNum = 0
	for i := range info.Constraints {
		c := &info.Constraints[i]
		if !c.Usable || c.Column != colOp {
			continue
		}
		if c.Op == vtab.OpMATCH || c.Op == vtab.OpEQ {
			c.ArgIndex = 0
			c.Omit = true
			info.IdxNum = 1
			break
		}
	}
	return nil
}

func (t *Table) Open() (vtab.Cursor, error) { return &Cursor{table: t}, nil }
func (t *Table) Disconnect() error           { return nil }
func (t *Table) Destroy() error              { return nil }

// Filter executes the command bound to op. Without one it lists all indexes.
func (c *Cursor) Filter(idxNum int, _ string, vals []vtab.Value) error {
	c.rows = nil
	c.pos = 0
	command := "status"
	if idxNum == 1 && len(vals) > 0 {
		switch v := vals[0].(type) {
		case nil:
			return nil
		case string:
			command = v
		case []byte:
			command = string(v)
		default:
			return fmt.Errorf("%s: op expects TEXT, got %T", ModuleName, v)
		}
	}
	m := c.table.module.settings.Load()
	if m == nil {
		return fmt.Errorf("%s: module is not registered", ModuleName)
	}
	ctx := m.ctx
	if m.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.timeout)
		defer cancel()
	}
	rows, err := Execute(ctx, m.registry, command)
	if err != nil {
		return fmt.Errorf("%s: %w", ModuleName, err)
	}
	c.rows = rows
	return nil
}

func (c *Cursor) Next() error {
	if c.pos < len(c.rows) {
		c.pos++
	}
	return nil
}

func (c *Cursor) Eof() bool { return c.pos >= len(c.rows) }

func (c *Cursor) Column(col int) (vtab.Value, error) {
	if c.pos < 0 || c.pos >= len(c.rows) {
		return nil, fmt.Errorf("%s: Column out of range", ModuleName)
	}
	if col == colStatus {
		return c.rows[c.pos], nil
	}
	return nil, nil
}

func (c *Cursor) Rowid() (int64, error) { return int64(c.pos + 1), nil }
func (c *Cursor) Close() error          { c.rows = nil; c.pos = 0; return nil }

// Execute runs one admin command against reg and returns its status lines.
func Execute(ctx context.Context, reg *collection.Registry, command string) ([]string, error) {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return nil, fmt.Errorf("%w: empty command", vector.ErrInvalidArgument)
	}
	op, args := strings.ToLower(fields[0]), fields[1:]
	need := func(min, max int) error {
		if len(args) < min || (max >= 0 && len(args) > max) {
			return fmt.Errorf("%w: %s: unexpected argument count %d", vector.ErrInvalidArgument, op, len(args))
		}
		return nil
	}
	switch op {
	case "build":
		if err := need(2, -1); err != nil {
			return nil, err
		}
		// Options may have been written with spaces after commas.
		st, err := reg.Build(ctx, args[0], args[1], strings.Join(args[2:], ""))
		if err != nil {
			return nil, err
		}
		return []string{st.String()}, nil
	case "refresh":
		if err := need(1, 1); err != nil {
			return nil, err
		}
		st, err := reg.Refresh(ctx, args[0])
		if err != nil {
			return nil, err
		}
		return []string{st.String()}, nil
	case "save":
		if err := need(1, 1); err != nil {
			return nil, err
		}
		h, err := reg.Save(ctx, args[0])
		if err != nil {
			return nil, err
		}
		return []string{fmt.Sprintf("saved name=%s build=%s rows=%d compression=%s", h.Name, h.BuildID, h.Rows, h.Compression)}, nil
	case "load":
		if err := need(1, 1); err != nil {
			return nil, err
		}
		coll, err := reg.Open(ctx, args[0])
		if err != nil {
			return nil, err
		}
		return []string{coll.Status().String()}, nil
	case "drop":
		if err := need(1, 1); err != nil {
			return nil, err
		}
		dropped, err := reg.Drop(ctx, args[0])
		if err != nil {
			return nil, err
		}
		if !dropped {
			return []string{"absent name=" + args[0]}, nil
		}
		return []string{"dropped name=" + args[0]}, nil
	case "status":
		if err := need(0, 1); err != nil {
			return nil, err
		}
		if len(args) == 1 {
			st, err := reg.Status(args[0])
			if err != nil {
				return nil, err
			}
			return []string{st.String()}, nil
		}
		var out []string
		for _, st := range reg.List() {
			out = append(out, st.String())
		}
		return out, nil
	}
	return nil, fmt.Errorf("%w: unknown command %q", vector.ErrInvalidArgument, op)
}
