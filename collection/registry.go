package collection

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/viant/myvector/index"
	"github.com/viant/myvector/index/bruteforce"
	"github.com/viant/myvector/snapshot"
	"github.com/viant/myvector/vector"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"
)

// ErrNoSnapshotStore is returned by snapshot operations on a registry
// created without WithSnapshotStore.
var ErrNoSnapshotStore = errors.New("myvector: no snapshot store configured")

const defaultRecallK = 10

// Registry owns the collections of one database. It is safe for concurrent
// use; builds and refreshes of the same name are collapsed into one.
type Registry struct {
	db           *sqlx.DB
	logger       *slog.Logger
	snapshots    snapshot.Store
	compression  snapshot.Compression
	minRecall    float64
	recallSample int
	limiter      *rate.Limiter

	flight singleflight.Group
	mu     sync.RWMutex
	byName map[string]*Collection
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the logger, slog.Default() otherwise.
func WithLogger(l *slog.Logger) Option {
	return func(r *Registry) { r.logger = l }
}

// WithSnapshotStore enables Save, Open and OpenAll, and saves every build.
func WithSnapshotStore(s snapshot.Store, c snapshot.Compression) Option {
	return func(r *Registry) {
		r.snapshots = s
		r.compression = c
	}
}

// WithMinRecall sets the recall bound approximate builds must reach unless
// their options carry min_recall. Zero disables the check.
func WithMinRecall(min float64) Option {
	return func(r *Registry) { r.minRecall = min }
}

// WithRecallSample sets how many indexed vectors are replayed as queries
// when measuring recall.
func WithRecallSample(n int) Option {
	return func(r *Registry) { r.recallSample = n }
}

// WithBuildRate throttles row loading to rowsPerSec. Zero means unlimited.
func WithBuildRate(rowsPerSec int) Option {
	return func(r *Registry) {
		if rowsPerSec > 0 {
			r.limiter = rate.NewLimiter(rate.Limit(rowsPerSec), rowsPerSec)
		} else {
			r.limiter = nil
		}
	}
}

// New creates a registry reading base tables through db.
func New(db *sqlx.DB, opts ...Option) *Registry {
	r := &Registry{db: db, logger: slog.Default(), recallSample: 100, byName: map[string]*Collection{}}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	return r
}

// Get returns the named collection.
func (r *Registry) Get(name string) (*Collection, error) {
	n, err := ParseName(name)
	if err != nil {
		return nil, err
	}
	r.mu.RLock()
	c := r.byName[n.String()]
	r.mu.RUnlock()
	if c == nil {
		return nil, fmt.Errorf("%w: index %s", vector.ErrNotFound, n)
	}
	return c, nil
}

// List returns the status of every collection ordered by name.
func (r *Registry) List() []Status {
	r.mu.RLock()
	out := make([]Status, 0, len(r.byName))
	for _, c := range r.byName {
		out = append(out, c.Status())
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Status returns the status of the named collection.
func (r *Registry) Status(name string) (Status, error) {
	c, err := r.Get(name)
	if err != nil {
		return Status{}, err
	}
	return c.Status(), nil
}

// Build indexes every non-NULL value of the named column, keyed by idColumn.
// An existing collection keeps serving its previous index until the new one
// is published; a failed or cancelled build leaves it untouched.
func (r *Registry) Build(ctx context.Context, name, idColumn, options string) (Status, error) {
	n, err := ParseName(name)
	if err != nil {
		return Status{}, err
	}
	if err := CheckColumn(idColumn); err != nil {
		return Status{}, err
	}
	opts, err := ParseOptions(options)
	if err != nil {
		return Status{}, err
	}
	v, err, shared := r.flight.Do("build:"+n.String(), func() (any, error) {
		return r.build(ctx, n, idColumn, opts)
	})
	if shared {
		r.logger.Debug("joined in-flight build", "name", n.String())
	}
	if err != nil {
		return Status{}, err
	}
	return v.(Status), nil
}

func (r *Registry) build(ctx context.Context, n Name, idColumn string, opts Options) (Status, error) {
	start := time.Now()
	var (
		watermark any
		recall    float64
	)
	load := func(ctx context.Context) (index.Index, error) {
		idx, wm, rc, err := r.load(ctx, n, idColumn, opts)
		watermark, recall = wm, rc
		return idx, err
	}

	r.mu.RLock()
	c := r.byName[n.String()]
	r.mu.RUnlock()
	if c != nil {
		if err := c.handle.Rebuild(ctx, load); err != nil {
			r.logger.Warn("index build failed", "name", n.String(), "error", err)
			return Status{}, fmt.Errorf("build %s: %w", n, err)
		}
		c.setBuild(idColumn, opts, watermark, recall)
	} else {
		idx, err := load(ctx)
		if err == nil {
			err = ctx.Err()
		}
		if err != nil {
			r.logger.Warn("index build failed", "name", n.String(), "error", err)
			return Status{}, fmt.Errorf("build %s: %w", n, err)
		}
		c = newCollection(n, idColumn, opts, idx)
		c.setBuild(idColumn, opts, watermark, recall)
		r.mu.Lock()
		r.byName[n.String()] = c
		r.mu.Unlock()
	}
	if r.snapshots != nil {
		if _, err := r.save(ctx, c); err != nil {
			return Status{}, err
		}
	}
	st := c.Status()
	r.logger.Info("index built", "name", st.Name, "type", st.Kind, "rows", st.Rows, "dim", st.Dim,
		"version", st.Version, "elapsed", time.Since(start))
	return st, nil
}

type sourceRow struct {
	ID    int64 `db:"id"`
	Value any   `db:"value"`
	Track any   `db:"track"`
}

// scanSource streams rows of the base table. When after is non-nil only rows
// whose tracking column exceeds it are read, in tracking order.
func (r *Registry) scanSource(ctx context.Context, n Name, idColumn, track string, after any, withNulls bool, fn func(sourceRow) error) error {
	query := fmt.Sprintf("SELECT %s AS id, %s AS value", idColumn, n.Column)
	if track != "" {
		query += fmt.Sprintf(", %s AS track", track)
	}
	query += " FROM " + n.Source()
	var args []any
	var where []string
	if !withNulls {
		where = append(where, n.Column+" IS NOT NULL")
	}
	if track != "" && after != nil {
		where = append(where, track+" > ?")
		args = append(args, after)
	}
	for i, w := range where {
		if i == 0 {
			query += " WHERE " + w
		} else {
			query += " AND " + w
		}
	}
	if track != "" {
		query += " ORDER BY " + track
	}
	rows, err := r.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("read %s: %w", n.Source(), err)
	}
	defer rows.Close()
	for rows.Next() {
		if r.limiter != nil {
			if err := r.limiter.Wait(ctx); err != nil {
				return err
			}
		} else if err := ctx.Err(); err != nil {
			return err
		}
		var row sourceRow
		if err := rows.StructScan(&row); err != nil {
			return fmt.Errorf("read %s: %w", n.Source(), err)
		}
		if err := fn(row); err != nil {
			return err
		}
	}
	return rows.Err()
}

func (r *Registry) decode(n Name, opts Options, row sourceRow) (vector.Vector, error) {
	v, err := vector.FromValue(row.Value)
	if err != nil {
		return nil, fmt.Errorf("%s row %d: %w", n, row.ID, err)
	}
	if opts.Dim > 0 {
		if err := vector.CheckDim(opts.Dim, len(v)); err != nil {
			return nil, fmt.Errorf("%s row %d: %w", n, row.ID, err)
		}
	}
	return v, nil
}

// load reads the base table into a new index, returning the largest tracking
// value seen and the measured recall (-1 when not measured).
func (r *Registry) load(ctx context.Context, n Name, idColumn string, opts Options) (index.Index, any, float64, error) {
	idx, err := opts.NewIndex()
	if err != nil {
		return nil, nil, -1, err
	}
	var (
		ids       []int64
		vectors   []vector.Vector
		watermark any
	)
	err = r.scanSource(ctx, n, idColumn, opts.Track, nil, false, func(row sourceRow) error {
		v, err := r.decode(n, opts, row)
		if err != nil {
			return err
		}
		ids = append(ids, row.ID)
		vectors = append(vectors, v)
		if wm := normalizeWatermark(row.Track); compareWatermark(wm, watermark) > 0 {
			watermark = wm
		}
		return nil
	})
	if err != nil {
		return nil, nil, -1, err
	}
	if err := index.Build(ctx, idx, ids, vectors); err != nil {
		return nil, nil, -1, err
	}
	recall, err := r.verify(ctx, idx, opts, ids, vectors)
	if err != nil {
		return nil, nil, recall, err
	}
	return idx, watermark, recall, nil
}

// verify checks an approximate index against the exact oracle on a sample
// of its own vectors.
func (r *Registry) verify(ctx context.Context, idx index.Index, opts Options, ids []int64, vectors []vector.Vector) (float64, error) {
	bound := r.minRecall
	if opts.MinRecall >= 0 {
		bound = opts.MinRecall
	}
	if !opts.Kind.Approximate() || bound <= 0 || len(ids) == 0 || r.recallSample <= 0 {
		return -1, nil
	}
	oracle := bruteforce.New(opts.Metric)
	if err := oracle.Build(ids, vectors); err != nil {
		return -1, err
	}
	step := max(1, len(vectors)/r.recallSample)
	var queries []vector.Vector
	for i := 0; i < len(vectors) && len(queries) < r.recallSample; i += step {
		queries = append(queries, vectors[i])
	}
	return index.VerifyRecall(ctx, idx, oracle, queries, min(defaultRecallK, len(ids)), bound)
}

// Refresh applies rows whose tracking column grew past the last seen value.
// Rows whose column became NULL are removed from the index.
func (r *Registry) Refresh(ctx context.Context, name string) (Status, error) {
	c, err := r.Get(name)
	if err != nil {
		return Status{}, err
	}
	v, err, _ := r.flight.Do("refresh:"+c.Name(), func() (any, error) {
		return r.refresh(ctx, c)
	})
	if err != nil {
		return Status{}, err
	}
	return v.(Status), nil
}

func (r *Registry) refresh(ctx context.Context, c *Collection) (Status, error) {
	track, after := c.tracking()
	if track == "" {
		return Status{}, fmt.Errorf("%w: index %s has no tracking column", vector.ErrInvalidArgument, c.Name())
	}
	opts := c.Options()
	applied := 0
	err := r.scanSource(ctx, c.name, c.IDColumn(), track, after, true, func(row sourceRow) error {
		if row.Value == nil {
			c.Remove(row.ID)
		} else {
			v, err := r.decode(c.name, opts, row)
			if err != nil {
				return err
			}
			if err := c.Insert(row.ID, v); err != nil {
				return err
			}
		}
		c.advance(normalizeWatermark(row.Track))
		applied++
		return nil
	})
	if err != nil {
		return Status{}, fmt.Errorf("refresh %s: %w", c.Name(), err)
	}
	if r.snapshots != nil && applied > 0 {
		if _, err := r.save(ctx, c); err != nil {
			return Status{}, err
		}
	}
	r.logger.Info("index refreshed", "name", c.Name(), "rows", applied)
	return c.Status(), nil
}

// Drop forgets the named collection and deletes its snapshot. It reports
// whether the collection was loaded.
func (r *Registry) Drop(ctx context.Context, name string) (bool, error) {
	n, err := ParseName(name)
	if err != nil {
		return false, err
	}
	r.mu.Lock()
	_, ok := r.byName[n.String()]
	delete(r.byName, n.String())
	r.mu.Unlock()
	if r.snapshots != nil {
		if err := r.snapshots.Delete(ctx, n.String()); err != nil {
			return ok, fmt.Errorf("drop %s: %w", n, err)
		}
	}
	r.logger.Info("index dropped", "name", n.String(), "loaded", ok)
	return ok, nil
}

// Save writes the named collection to the snapshot store.
func (r *Registry) Save(ctx context.Context, name string) (snapshot.Header, error) {
	if r.snapshots == nil {
		return snapshot.Header{}, ErrNoSnapshotStore
	}
	c, err := r.Get(name)
	if err != nil {
		return snapshot.Header{}, err
	}
	return r.save(ctx, c)
}

func (r *Registry) save(ctx context.Context, c *Collection) (snapshot.Header, error) {
	payload, err := c.handle.MarshalBinary()
	if err != nil {
		return snapshot.Header{}, fmt.Errorf("save %s: %w", c.Name(), err)
	}
	st := c.Status()
	data, h, err := snapshot.Encode(snapshot.Header{
		Name:      st.Name,
		Kind:      string(st.Kind),
		Options:   st.Options,
		IDColumn:  st.IDColumn,
		Rows:      st.Rows,
		Dim:       st.Dim,
		Watermark: st.Watermark,
	}, payload, r.compression)
	if err != nil {
		return h, fmt.Errorf("save %s: %w", c.Name(), err)
	}
	if err := r.snapshots.Put(ctx, st.Name, data); err != nil {
		return h, fmt.Errorf("save %s: %w", c.Name(), err)
	}
	c.mu.Lock()
	c.buildID = h.BuildID
	c.mu.Unlock()
	r.logger.Debug("index saved", "name", st.Name, "build_id", h.BuildID, "bytes", len(data))
	return h, nil
}

// Open loads the named collection from the snapshot store, replacing any
// loaded collection of the same name.
func (r *Registry) Open(ctx context.Context, name string) (*Collection, error) {
	if r.snapshots == nil {
		return nil, ErrNoSnapshotStore
	}
	n, err := ParseName(name)
	if err != nil {
		return nil, err
	}
	data, err := r.snapshots.Get(ctx, n.String())
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", n, err)
	}
	h, payload, err := snapshot.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", n, err)
	}
	opts, err := ParseOptions(h.Options)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", n, err)
	}
	idx, err := opts.NewIndex()
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", n, err)
	}
	if err := idx.UnmarshalBinary(payload); err != nil {
		return nil, fmt.Errorf("open %s: %w", n, err)
	}
	c := newCollection(n, h.IDColumn, opts, idx)
	c.watermark = parseWatermark(h.Watermark)
	c.buildID = h.BuildID
	r.mu.Lock()
	r.byName[n.String()] = c
	r.mu.Unlock()
	r.logger.Info("index opened", "name", n.String(), "rows", idx.Len(), "build_id", h.BuildID)
	return c, nil
}

// OpenAll loads every stored snapshot in parallel and returns the loaded
// names in order.
func (r *Registry) OpenAll(ctx context.Context) ([]string, error) {
	if r.snapshots == nil {
		return nil, ErrNoSnapshotStore
	}
	names, err := r.snapshots.List(ctx)
	if err != nil {
		return nil, err
	}
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for _, name := range names {
		g.Go(func() error {
			_, err := r.Open(ctx, name)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	sort.Strings(names)
	return names, nil
}
