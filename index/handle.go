package index

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/viant/myvector/vector"
)

// ErrRebuildInProgress is returned when a second rebuild is requested while
// one is already running on the same handle.
var ErrRebuildInProgress = errors.New("myvector: rebuild already in progress")

// Handle owns one published index. Searches share a read lock; incremental
// inserts and removes take the write lock. Rebuilds run without holding the
// lock and publish the new index in a single swap, replaying any writes that
// arrived meanwhile.
type Handle struct {
	mu         sync.RWMutex
	current    atomic.Pointer[Snapshot]
	rebuilding bool
	journal    []journalEntry
}

// Snapshot is an immutable view of what a handle publishes.
type Snapshot struct {
	Index     Index
	Version   uint64
	BuiltAt   time.Time
	BuildRows int
}

type journalEntry struct {
	id     int64
	vector vector.Vector
	remove bool
}

// NewHandle publishes idx as version 1.
func NewHandle(idx Index) *Handle {
	h := &Handle{}
	h.current.Store(&Snapshot{Index: idx, Version: 1, BuiltAt: time.Now(), BuildRows: idx.Len()})
	return h
}

// Current returns the published snapshot without locking.
func (h *Handle) Current() *Snapshot { return h.current.Load() }

// Search runs a query against the published index.
func (h *Handle) Search(query vector.Vector, k int) ([]Result, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.current.Load().Index.Search(query, k)
}

// View runs fn against the published index under the read lock. fn must not
// modify the index.
func (h *Handle) View(fn func(idx Index) error) error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return fn(h.current.Load().Index)
}

// Insert adds or replaces id in the published index.
func (h *Handle) Insert(id int64, v vector.Vector) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.current.Load().Index.Insert(id, v); err != nil {
		return err
	}
	if h.rebuilding {
		h.journal = append(h.journal, journalEntry{id: id, vector: v.Clone()})
	}
	return nil
}

// Remove deletes id from the published index.
func (h *Handle) Remove(id int64) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	ok := h.current.Load().Index.Remove(id)
	if h.rebuilding {
		h.journal = append(h.journal, journalEntry{id: id, remove: true})
	}
	return ok
}

// Len returns the number of live entries.
func (h *Handle) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.current.Load().Index.Len()
}

// MarshalBinary serializes the published index under the read lock.
func (h *Handle) MarshalBinary() ([]byte, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.current.Load().Index.MarshalBinary()
}

// Rebuild runs build outside the lock and publishes its result. When build
// fails, or ctx is done before publishing, the previous index stays visible.
func (h *Handle) Rebuild(ctx context.Context, build func(ctx context.Context) (Index, error)) error {
	h.mu.Lock()
	if h.rebuilding {
		h.mu.Unlock()
		return ErrRebuildInProgress
	}
	h.rebuilding = true
	h.journal = nil
	h.mu.Unlock()

	idx, err := build(ctx)

	h.mu.Lock()
	defer h.mu.Unlock()
	journal := h.journal
	h.rebuilding = false
	h.journal = nil
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		return err
	}
	rows := idx.Len()
	for _, e := range journal {
		if e.remove {
			idx.Remove(e.id)
			continue
		}
		if err := idx.Insert(e.id, e.vector); err != nil {
			return fmt.Errorf("replay insert %d: %w", e.id, err)
		}
	}
	prev := h.current.Load()
	h.current.Store(&Snapshot{Index: idx, Version: prev.Version + 1, BuiltAt: time.Now(), BuildRows: rows})
	return nil
}

// Load collects rows from scan into idx.Build, checking ctx between rows.
func Load(ctx context.Context, idx Index, scan func(yield func(id int64, v vector.Vector) error) error) error {
	var ids []int64
	var vectors []vector.Vector
	err := scan(func(id int64, v vector.Vector) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		ids = append(ids, id)
		vectors = append(vectors, v)
		return nil
	})
	if err != nil {
		return err
	}
	return Build(ctx, idx, ids, vectors)
}

// ContextBuilder is implemented by indexes whose Build stops early once ctx
// is done.
type ContextBuilder interface {
	BuildContext(ctx context.Context, ids []int64, vectors []vector.Vector) error
}

// CheckEvery is the number of inserts a ContextBuilder performs between
// cancellation checks.
const CheckEvery = 64

// Build fills idx through BuildContext when it is supported.
func Build(ctx context.Context, idx Index, ids []int64, vectors []vector.Vector) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if b, ok := idx.(ContextBuilder); ok {
		return b.BuildContext(ctx, ids, vectors)
	}
	return idx.Build(ids, vectors)
}
