package bruteforce

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/viant/myvector/index"
	"github.com/viant/myvector/vector"
)

// Index is an exact full-scan index.
type Index struct {
	metric vector.Metric
	dist   vector.DistanceFunc
	ids    []int64
	vecs   []vector.Vector
	pos    map[int64]int
	dim    int
}

// New creates an empty index for metric.
func New(metric vector.Metric) *Index {
	return &Index{metric: metric, dist: metric.Func(), pos: map[int64]int{}}
}

// Build loads ids and vectors, replacing any previous content.
func (i *Index) Build(ids []int64, vectors []vector.Vector) error {
	dim, err := index.CheckBuild(ids, vectors)
	if err != nil {
		return fmt.Errorf("bruteforce: %w", err)
	}
	i.ids = append([]int64(nil), ids...)
	i.vecs = make([]vector.Vector, len(vectors))
	i.pos = make(map[int64]int, len(ids))
	for j, v := range vectors {
		i.vecs[j] = v.Clone()
		i.pos[ids[j]] = j
	}
	i.dim = dim
	return nil
}

// Search returns the exact top-k.
func (i *Index) Search(query vector.Vector, k int) ([]index.Result, error) {
	if err := index.CheckQuery(i.dim, query, k); err != nil {
		return nil, fmt.Errorf("bruteforce: %w", err)
	}
	if len(i.vecs) == 0 {
		return []index.Result{}, nil
	}
	top := index.NewTopK(k)
	for j, v := range i.vecs {
		top.Push(i.ids[j], i.dist(query, v))
	}
	return top.Results(), nil
}

// Insert adds or replaces id.
func (i *Index) Insert(id int64, v vector.Vector) error {
	if err := index.CheckInsert(i.dim, v); err != nil {
		return fmt.Errorf("bruteforce: %w", err)
	}
	if i.pos == nil {
		i.pos = map[int64]int{}
	}
	if j, ok := i.pos[id]; ok {
		i.vecs[j] = v.Clone()
		return nil
	}
	i.pos[id] = len(i.ids)
	i.ids = append(i.ids, id)
	i.vecs = append(i.vecs, v.Clone())
	i.dim = len(v)
	return nil
}

// Remove deletes id by moving the last entry into its slot.
func (i *Index) Remove(id int64) bool {
	j, ok := i.pos[id]
	if !ok {
		return false
	}
	last := len(i.ids) - 1
	if j != last {
		i.ids[j] = i.ids[last]
		i.vecs[j] = i.vecs[last]
		i.pos[i.ids[j]] = j
	}
	i.ids = i.ids[:last]
	i.vecs[last] = nil
	i.vecs = i.vecs[:last]
	delete(i.pos, id)
	return true
}

func (i *Index) Len() int              { return len(i.ids) }
func (i *Index) Dim() int              { return i.dim }
func (i *Index) Metric() vector.Metric { return i.metric }

// Entries calls fn for every stored pair in storage order.
func (i *Index) Entries(fn func(id int64, v vector.Vector)) {
	for j, id := range i.ids {
		fn(id, i.vecs[j])
	}
}

// MarshalBinary stores: metric(uint32), dim(uint32), n(uint32), then for
// each item: id(int64), vec(float32[dim]).
func (i *Index) MarshalBinary() ([]byte, error) {
	out := make([]byte, 0, 12+len(i.ids)*(8+4*i.dim))
	putU32 := func(v uint32) { out = binary.LittleEndian.AppendUint32(out, v) }
	putU32(uint32(i.metric))
	putU32(uint32(i.dim))
	putU32(uint32(len(i.ids)))
	for idx, id := range i.ids {
		out = binary.LittleEndian.AppendUint64(out, uint64(id))
		for _, f := range i.vecs[idx] {
			putU32(math.Float32bits(f))
		}
	}
	return out, nil
}

// UnmarshalBinary restores the index from bytes.
func (i *Index) UnmarshalBinary(data []byte) error {
	if len(data) < 12 {
		return errors.New("bruteforce: invalid data")
	}
	off := 0
	getU32 := func() uint32 { v := binary.LittleEndian.Uint32(data[off : off+4]); off += 4; return v }
	metric := vector.Metric(getU32())
	if !metric.Valid() {
		return fmt.Errorf("bruteforce: invalid metric %d", metric)
	}
	dim := int(getU32())
	n := int(getU32())
	if uint64(len(data)-off) != uint64(n)*uint64(8+4*dim) {
		return errors.New("bruteforce: truncated")
	}
	ids := make([]int64, n)
	vecs := make([]vector.Vector, n)
	for idx := 0; idx < n; idx++ {
		ids[idx] = int64(binary.LittleEndian.Uint64(data[off:]))
		off += 8
		vec := make(vector.Vector, dim)
		for j := 0; j < dim; j++ {
			vec[j] = math.Float32frombits(getU32())
		}
		vecs[idx] = vec
	}
	i.metric = metric
	i.dist = metric.Func()
	if err := i.Build(ids, vecs); err != nil {
		return err
	}
	i.dim = dim
	return nil
}

var _ index.Index = (*Index)(nil)
