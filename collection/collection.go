package collection

import (
	"cmp"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/viant/myvector/index"
	"github.com/viant/myvector/vector"
)

// Collection is one named index over a base table column.
type Collection struct {
	name   Name
	handle *index.Handle

	mu        sync.RWMutex
	idColumn  string
	options   Options
	watermark any
	buildID   string
	recall    float64
}

// Status summarizes a collection.
type Status struct {
	Name      string
	Kind      Kind
	Options   string
	IDColumn  string
	Rows      int
	Dim       int
	Version   uint64
	BuiltAt   time.Time
	BuildID   string
	Watermark string
	// Recall is the last measured recall, or -1 when none was measured.
	Recall float64
}

func (s Status) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "name=%s type=%s rows=%d dim=%d version=%d", s.Name, s.Kind, s.Rows, s.Dim, s.Version)
	if s.Recall >= 0 {
		sb.WriteString(" recall=" + strconv.FormatFloat(s.Recall, 'f', 4, 64))
	}
	if s.Watermark != "" {
		sb.WriteString(" watermark=" + s.Watermark)
	}
	return sb.String()
}

func newCollection(name Name, idColumn string, opts Options, idx index.Index) *Collection {
	return &Collection{name: name, idColumn: idColumn, options: opts, handle: index.NewHandle(idx), recall: -1}
}

// Name returns the schema.table.column name.
func (c *Collection) Name() string { return c.name.String() }

// Options returns the options the current index was built with.
func (c *Collection) Options() Options {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.options
}

// IDColumn returns the base table id column.
func (c *Collection) IDColumn() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.idColumn
}

// Search returns the k nearest entries to query.
func (c *Collection) Search(query vector.Vector, k int) ([]index.Result, error) {
	return c.SearchWith(query, SearchOptions{NN: k})
}

// SearchWith applies per-query options. EfSearch only affects HNSW indexes.
func (c *Collection) SearchWith(query vector.Vector, opts SearchOptions) ([]index.Result, error) {
	if err := c.checkDim(query); err != nil {
		return nil, err
	}
	var out []index.Result
	err := c.handle.View(func(idx index.Index) error {
		var err error
		if ef, ok := idx.(efSearcher); ok && opts.EfSearch > 0 {
			out, err = ef.SearchEf(query, opts.NN, opts.EfSearch)
		} else {
			out, err = idx.Search(query, opts.NN)
		}
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("search %s: %w", c.name, err)
	}
	return out, nil
}

type efSearcher interface {
	SearchEf(query vector.Vector, k, ef int) ([]index.Result, error)
}

// Insert adds or replaces id.
func (c *Collection) Insert(id int64, v vector.Vector) error {
	if err := c.checkDim(v); err != nil {
		return err
	}
	if err := v.Validate(); err != nil {
		return err
	}
	if err := c.handle.Insert(id, v); err != nil {
		return fmt.Errorf("insert %d into %s: %w", id, c.name, err)
	}
	return nil
}

// Remove deletes id and reports whether it was indexed.
func (c *Collection) Remove(id int64) bool { return c.handle.Remove(id) }

// Len returns the number of indexed entries.
func (c *Collection) Len() int { return c.handle.Len() }

func (c *Collection) checkDim(v vector.Vector) error {
	c.mu.RLock()
	dim := c.options.Dim
	c.mu.RUnlock()
	if dim == 0 {
		return nil
	}
	return vector.CheckDim(dim, len(v))
}

// Status reports the current state.
func (c *Collection) Status() Status {
	snap := c.handle.Current()
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Status{
		Name:      c.name.String(),
		Kind:      c.options.Kind,
		Options:   c.options.String(),
		IDColumn:  c.idColumn,
		Rows:      c.handle.Len(),
		Dim:       snap.Index.Dim(),
		Version:   snap.Version,
		BuiltAt:   snap.BuiltAt,
		BuildID:   c.buildID,
		Watermark: formatWatermark(c.watermark),
		Recall:    c.recall,
	}
}

func (c *Collection) setBuild(idColumn string, opts Options, watermark any, recall float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.idColumn = idColumn
	c.options = opts
	c.watermark = watermark
	c.recall = recall
	c.buildID = ""
}

func (c *Collection) tracking() (string, any) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.options.Track, c.watermark
}

func (c *Collection) advance(watermark any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if compareWatermark(watermark, c.watermark) > 0 {
		c.watermark = watermark
	}
}

// sqliteTimeFormat matches how modernc.org/sqlite binds time.Time values.
const sqliteTimeFormat = "2006-01-02 15:04:05.999999999-07:00"

// normalizeWatermark maps tracking column values onto int64, float64 or
// string so that they order and round trip through snapshots.
func normalizeWatermark(v any) any {
	switch val := v.(type) {
	case int64, float64, string:
		return val
	case []byte:
		return string(val)
	case time.Time:
		return val.Format(sqliteTimeFormat)
	case nil:
		return nil
	}
	return fmt.Sprint(v)
}

func compareWatermark(a, b any) int {
	switch {
	case a == nil && b == nil:
		return 0
	case b == nil:
		return 1
	case a == nil:
		return -1
	}
	switch x := a.(type) {
	case int64:
		switch y := b.(type) {
		case int64:
			return cmp.Compare(x, y)
		case float64:
			return cmp.Compare(float64(x), y)
		}
	case float64:
		switch y := b.(type) {
		case int64:
			return cmp.Compare(x, float64(y))
		case float64:
			return cmp.Compare(x, y)
		}
	}
	// SQLite orders numbers before text.
	_, aText := a.(string)
	_, bText := b.(string)
	switch {
	case aText && bText:
		return strings.Compare(a.(string), b.(string))
	case aText:
		return 1
	default:
		return -1
	}
}

func formatWatermark(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case int64:
		return "i:" + strconv.FormatInt(val, 10)
	case float64:
		return "f:" + strconv.FormatFloat(val, 'g', -1, 64)
	case string:
		return "s:" + val
	}
	return "s:" + fmt.Sprint(v)
}

func parseWatermark(s string) any {
	if len(s) < 2 || s[1] != ':' {
		return nil
	}
	val := s[2:]
	switch s[0] {
	case 'i':
		if n, err := strconv.ParseInt(val, 10, 64); err == nil {
			return n
		}
	case 'f':
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	case 's':
		return val
	}
	return nil
}
