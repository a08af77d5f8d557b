package cover

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"slices"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/viant/myvector/index"
	"github.com/viant/myvector/internal/cover/tree"
	"github.com/viant/myvector/vector"
)

const (
	// DefaultBase is the cover tree level base.
	DefaultBase = 1.3
	// DefaultPending is the pending buffer size that triggers a merge.
	DefaultPending = 256
)

// Index is a cover tree with a pending buffer and tombstones.
type Index struct {
	metric     vector.Metric
	dist       vector.DistanceFunc
	base       float32
	maxPending int
	dim        int
	tree       *tree.Tree
	slots      map[int64]int32
	tombstones *roaring.Bitmap
	pending    map[int64]vector.Vector
}

// Option configures an Index.
type Option func(*Index)

// WithBase sets the cover tree base; values <= 1 fall back to DefaultBase.
func WithBase(base float32) Option {
	return func(i *Index) { i.base = base }
}

// WithPending sets the pending buffer size.
func WithPending(n int) Option {
	return func(i *Index) { i.maxPending = n }
}

// New creates an empty index. Only Euclidean and Cosine are accepted.
func New(metric vector.Metric, opts ...Option) (*Index, error) {
	if metric != vector.Euclidean && metric != vector.Cosine {
		return nil, fmt.Errorf("cover: %w: metric %s is not supported", vector.ErrInvalidArgument, metric)
	}
	i := &Index{metric: metric, dist: metric.Func(), base: DefaultBase, maxPending: DefaultPending}
	for _, opt := range opts {
		opt(i)
	}
	if i.base <= 1 {
		i.base = DefaultBase
	}
	if i.maxPending <= 0 {
		i.maxPending = DefaultPending
	}
	i.reset()
	return i, nil
}

func (i *Index) reset() {
	i.tree = tree.NewTree(i.base, i.metric)
	i.slots = map[int64]int32{}
	i.tombstones = roaring.New()
	i.pending = map[int64]vector.Vector{}
	i.dim = 0
}

// Build replaces the content with ids and vectors.
func (i *Index) Build(ids []int64, vectors []vector.Vector) error {
	return i.BuildContext(context.Background(), ids, vectors)
}

// BuildContext is Build checking ctx every index.CheckEvery inserts. A
// cancelled build leaves the index empty.
func (i *Index) BuildContext(ctx context.Context, ids []int64, vectors []vector.Vector) error {
	dim, err := index.CheckBuild(ids, vectors)
	if err != nil {
		return fmt.Errorf("cover: %w", err)
	}
	i.reset()
	i.dim = dim
	for j, v := range vectors {
		if j%index.CheckEvery == 0 {
			if err := ctx.Err(); err != nil {
				i.reset()
				return err
			}
		}
		i.slots[ids[j]] = i.tree.Insert(ids[j], tree.NewPoint(v.Clone()...))
	}
	return nil
}

// Insert adds or replaces id through the pending buffer.
func (i *Index) Insert(id int64, v vector.Vector) error {
	if err := index.CheckInsert(i.dim, v); err != nil {
		return fmt.Errorf("cover: %w", err)
	}
	i.dim = len(v)
	if slot, ok := i.slots[id]; ok {
		i.tombstones.Add(uint32(slot))
		delete(i.slots, id)
	}
	i.pending[id] = v.Clone()
	if len(i.pending) >= i.maxPending {
		i.flush()
	}
	return nil
}

// flush moves pending vectors into the tree, or rebuilds it when tombstones
// outnumber live slots.
func (i *Index) flush() {
	if int(i.tombstones.GetCardinality()) > len(i.slots) {
		i.compact()
		return
	}
	for id, v := range i.pending {
		i.slots[id] = i.tree.Insert(id, tree.NewPoint(v...))
	}
	i.pending = map[int64]vector.Vector{}
}

func (i *Index) compact() {
	ids, vecs := i.entries()
	dim := i.dim
	i.reset()
	i.dim = dim
	for j, v := range vecs {
		i.slots[ids[j]] = i.tree.Insert(ids[j], tree.NewPoint(v...))
	}
}

// Remove tombstones id or drops it from the pending buffer.
func (i *Index) Remove(id int64) bool {
	if _, ok := i.pending[id]; ok {
		delete(i.pending, id)
		return true
	}
	slot, ok := i.slots[id]
	if !ok {
		return false
	}
	i.tombstones.Add(uint32(slot))
	delete(i.slots, id)
	return true
}

func (i *Index) Len() int              { return len(i.slots) + len(i.pending) }
func (i *Index) Dim() int              { return i.dim }
func (i *Index) Metric() vector.Metric { return i.metric }

// Pending returns the number of vectors not yet merged into the tree.
func (i *Index) Pending() int { return len(i.pending) }

// Search merges the tree kNN with an exact scan of the pending buffer.
func (i *Index) Search(query vector.Vector, k int) ([]index.Result, error) {
	if err := index.CheckQuery(i.dim, query, k); err != nil {
		return nil, fmt.Errorf("cover: %w", err)
	}
	top := index.NewTopK(k)
	if len(i.slots) > 0 {
		skip := func(slot int32) bool { return i.tombstones.Contains(uint32(slot)) }
		for _, n := range i.tree.KNearestNeighborsBestFirst(tree.NewPoint(query...), k, skip) {
			top.Push(n.ID, i.dist(query, n.Point.Vector))
		}
	}
	for id, v := range i.pending {
		top.Push(id, i.dist(query, v))
	}
	return top.Results(), nil
}

// entries returns live pairs ordered by tree slot, then pending in id order.
func (i *Index) entries() ([]int64, []vector.Vector) {
	ids := make([]int64, 0, i.Len())
	vecs := make([]vector.Vector, 0, i.Len())
	for slot := int32(0); int(slot) < i.tree.Len(); slot++ {
		if i.tombstones.Contains(uint32(slot)) {
			continue
		}
		id, _ := i.tree.ID(slot)
		ids = append(ids, id)
		vecs = append(vecs, i.tree.Point(slot).Vector)
	}
	pendingIDs := make([]int64, 0, len(i.pending))
	for id := range i.pending {
		pendingIDs = append(pendingIDs, id)
	}
	slices.Sort(pendingIDs)
	for _, id := range pendingIDs {
		ids = append(ids, id)
		vecs = append(vecs, i.pending[id])
	}
	return ids, vecs
}

// MarshalBinary stores: metric(uint32), base(float32), dim(uint32),
// n(uint32), then n x (id int64, vec float32[dim]). Tombstones are dropped
// and pending vectors are merged.
func (i *Index) MarshalBinary() ([]byte, error) {
	ids, vecs := i.entries()
	out := make([]byte, 0, 16+len(ids)*(8+4*i.dim))
	out = binary.LittleEndian.AppendUint32(out, uint32(i.metric))
	out = binary.LittleEndian.AppendUint32(out, math.Float32bits(i.base))
	out = binary.LittleEndian.AppendUint32(out, uint32(i.dim))
	out = binary.LittleEndian.AppendUint32(out, uint32(len(ids)))
	for j, id := range ids {
		out = binary.LittleEndian.AppendUint64(out, uint64(id))
		for _, f := range vecs[j] {
			out = binary.LittleEndian.AppendUint32(out, math.Float32bits(f))
		}
	}
	return out, nil
}

// UnmarshalBinary rebuilds the tree from bytes.
func (i *Index) UnmarshalBinary(data []byte) error {
	if len(data) < 16 {
		return errors.New("cover: invalid data")
	}
	metric := vector.Metric(binary.LittleEndian.Uint32(data))
	if metric != vector.Euclidean && metric != vector.Cosine {
		return fmt.Errorf("cover: invalid metric %d", metric)
	}
	base := math.Float32frombits(binary.LittleEndian.Uint32(data[4:]))
	dim := int(binary.LittleEndian.Uint32(data[8:]))
	n := int(binary.LittleEndian.Uint32(data[12:]))
	off := 16
	if uint64(len(data)-off) != uint64(n)*uint64(8+4*dim) {
		return errors.New("cover: truncated")
	}
	ids := make([]int64, n)
	vecs := make([]vector.Vector, n)
	for j := 0; j < n; j++ {
		ids[j] = int64(binary.LittleEndian.Uint64(data[off:]))
		off += 8
		v := make(vector.Vector, dim)
		for c := range v {
			v[c] = math.Float32frombits(binary.LittleEndian.Uint32(data[off:]))
			off += 4
		}
		vecs[j] = v
	}
	i.metric = metric
	i.dist = metric.Func()
	i.base = base
	if i.maxPending <= 0 {
		i.maxPending = DefaultPending
	}
	if err := i.Build(ids, vecs); err != nil {
		return err
	}
	i.dim = dim
	return nil
}

var _ index.Index = (*Index)(nil)
