package hnsw

import (
	"context"
	"fmt"
	"math"
	"math/rand"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/bits-and-blooms/bitset"
	"github.com/viant/myvector/index"
	"github.com/viant/myvector/vector"
)

// compactMin is the graph size below which tombstones are never compacted.
const compactMin = 64

type node struct {
	ID     int64
	Vector vector.Vector
	Level  int
	Links  [][]uint32
}

// Index is an HNSW graph keyed by int64 ids.
type Index struct {
	opts       Options
	metric     vector.Metric
	dist       vector.DistanceFunc
	dim        int
	mmax       int
	mmax0      int
	ml         float64
	ep         uint32
	maxLevel   int
	nodes      []*node
	live       map[int64]uint32
	tombstones *roaring.Bitmap
	rng        *rand.Rand
}

// New creates an empty graph.
func New(metric vector.Metric, optFns ...func(o *Options)) *Index {
	opts := DefaultOptions
	for _, fn := range optFns {
		fn(&opts)
	}
	opts.normalize()
	i := &Index{opts: opts, metric: metric, dist: metric.Func()}
	i.reset()
	return i
}

func (i *Index) reset() {
	i.mmax = i.opts.M
	i.mmax0 = 2 * i.opts.M
	i.ml = 1 / math.Log(float64(i.opts.M))
	i.ep = 0
	i.maxLevel = 0
	i.nodes = nil
	i.live = map[int64]uint32{}
	i.tombstones = roaring.New()
	i.rng = rand.New(rand.NewSource(i.opts.Seed)) // nolint gosec
	i.dim = 0
}

// Options returns the effective options.
func (i *Index) Options() Options { return i.opts }

// Build replaces the graph with ids and vectors, inserted in order.
func (i *Index) Build(ids []int64, vectors []vector.Vector) error {
	return i.BuildContext(context.Background(), ids, vectors)
}

// BuildContext is Build checking ctx every index.CheckEvery inserts. A
// cancelled build leaves the index empty.
func (i *Index) BuildContext(ctx context.Context, ids []int64, vectors []vector.Vector) error {
	dim, err := index.CheckBuild(ids, vectors)
	if err != nil {
		return fmt.Errorf("hnsw: %w", err)
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
		i.add(ids[j], v.Clone())
	}
	return nil
}

// Insert adds v under id. An existing id is tombstoned first.
func (i *Index) Insert(id int64, v vector.Vector) error {
	if err := index.CheckInsert(i.dim, v); err != nil {
		return fmt.Errorf("hnsw: %w", err)
	}
	if n, ok := i.live[id]; ok {
		i.tombstones.Add(n)
		delete(i.live, id)
	}
	i.dim = len(v)
	i.add(id, v.Clone())
	return nil
}

// Remove tombstones id.
func (i *Index) Remove(id int64) bool {
	n, ok := i.live[id]
	if !ok {
		return false
	}
	i.tombstones.Add(n)
	delete(i.live, id)
	if len(i.nodes) >= compactMin && i.tombstones.GetCardinality() > uint64(len(i.live)) {
		i.compact()
	}
	return true
}

// compact rebuilds the graph from live entries in their original order.
func (i *Index) compact() {
	ids := make([]int64, 0, len(i.live))
	vecs := make([]vector.Vector, 0, len(i.live))
	for n, nd := range i.nodes {
		if i.tombstones.Contains(uint32(n)) {
			continue
		}
		ids = append(ids, nd.ID)
		vecs = append(vecs, nd.Vector)
	}
	dim := i.dim
	i.reset()
	i.dim = dim
	for j := range ids {
		i.add(ids[j], vecs[j])
	}
}

func (i *Index) Len() int              { return len(i.live) }
func (i *Index) Dim() int              { return i.dim }
func (i *Index) Metric() vector.Metric { return i.metric }

// Tombstones returns the number of removed entries still in the graph.
func (i *Index) Tombstones() int { return int(i.tombstones.GetCardinality()) }

func (i *Index) randomLevel() int {
	// 1-Float64 lies in (0,1], so the log is finite.
	return int(math.Floor(-math.Log(1-i.rng.Float64()) * i.ml))
}

func (i *Index) add(id int64, v vector.Vector) {
	level := i.randomLevel()
	nd := &node{ID: id, Vector: v, Level: level, Links: make([][]uint32, level+1)}
	nid := uint32(len(i.nodes))
	i.nodes = append(i.nodes, nd)
	i.live[id] = nid
	if nid == 0 {
		i.ep = 0
		i.maxLevel = level
		return
	}

	cur := candidate{node: i.ep, distance: i.dist(v, i.nodes[i.ep].Vector)}
	for l := i.maxLevel; l > level; l-- {
		cur = i.greedy(v, cur, l)
	}
	for l := min(level, i.maxLevel); l >= 0; l-- {
		found := i.searchLayer(v, cur, i.opts.EfConstruction, l)
		neighbours := i.selectNeighbours(found, i.opts.M)
		nd.Links[l] = make([]uint32, len(neighbours))
		for j, c := range neighbours {
			nd.Links[l][j] = c.node
		}
		for _, c := range neighbours {
			i.link(c.node, nid, l)
		}
		cur = found[0]
	}
	if level > i.maxLevel {
		i.ep = nid
		i.maxLevel = level
	}
}

// greedy walks layer l towards q while the distance improves.
func (i *Index) greedy(q vector.Vector, cur candidate, l int) candidate {
	for changed := true; changed; {
		changed = false
		for _, n := range i.nodes[cur.node].Links[l] {
			if d := i.dist(q, i.nodes[n].Vector); d < cur.distance {
				cur = candidate{node: n, distance: d}
				changed = true
			}
		}
	}
	return cur
}

// searchLayer returns up to ef closest nodes to q on layer l, ascending.
func (i *Index) searchLayer(q vector.Vector, ep candidate, ef int, l int) []candidate {
	visited := bitset.New(uint(len(i.nodes)))
	visited.Set(uint(ep.node))

	candidates := &queue{}
	candidates.push(ep)
	top := &queue{max: true}
	top.push(ep)

	for candidates.Len() > 0 {
		c := candidates.pop()
		if c.distance > top.top().distance {
			break
		}
		nd := i.nodes[c.node]
		if l >= len(nd.Links) {
			continue
		}
		for _, n := range nd.Links[l] {
			if visited.Test(uint(n)) {
				continue
			}
			visited.Set(uint(n))
			d := i.dist(q, i.nodes[n].Vector)
			if top.Len() < ef || d < top.top().distance {
				item := candidate{node: n, distance: d}
				candidates.push(item)
				top.push(item)
				if top.Len() > ef {
					top.pop()
				}
			}
		}
	}

	out := make([]candidate, top.Len())
	for j := len(out) - 1; j >= 0; j-- {
		out[j] = top.pop()
	}
	return out
}

// selectNeighbours picks up to m links from ascending candidates.
func (i *Index) selectNeighbours(cands []candidate, m int) []candidate {
	if len(cands) <= m {
		return cands
	}
	if !i.opts.Heuristic {
		return cands[:m]
	}
	selected := make([]candidate, 0, m)
	var pruned []candidate
	for _, c := range cands {
		if len(selected) >= m {
			break
		}
		keep := true
		for _, s := range selected {
			if i.dist(i.nodes[s.node].Vector, i.nodes[c.node].Vector) < c.distance {
				keep = false
				break
			}
		}
		if keep {
			selected = append(selected, c)
		} else {
			pruned = append(pruned, c)
		}
	}
	for _, c := range pruned {
		if len(selected) >= m {
			break
		}
		selected = append(selected, c)
	}
	return selected
}

// link adds a directed edge from first to second on layer l, pruning the
// neighbour list when it overflows.
func (i *Index) link(first, second uint32, l int) {
	maxConn := i.mmax
	if l == 0 {
		maxConn = i.mmax0
	}
	nd := i.nodes[first]
	nd.Links[l] = append(nd.Links[l], second)
	if len(nd.Links[l]) <= maxConn {
		return
	}
	q := &queue{}
	for _, n := range nd.Links[l] {
		q.push(candidate{node: n, distance: i.dist(nd.Vector, i.nodes[n].Vector)})
	}
	cands := make([]candidate, 0, q.Len())
	for q.Len() > 0 {
		cands = append(cands, q.pop())
	}
	kept := i.selectNeighbours(cands, maxConn)
	links := make([]uint32, len(kept))
	for j, c := range kept {
		links[j] = c.node
	}
	nd.Links[l] = links
}

// Search returns the approximate top-k. When tombstones crowd out live
// entries the candidate list is widened until k live results are found or
// the whole graph has been considered.
func (i *Index) Search(query vector.Vector, k int) ([]index.Result, error) {
	return i.SearchEf(query, k, i.opts.EfSearch)
}

// SearchEf is Search with a per-query candidate list size. A non-positive ef
// uses the configured EfSearch.
func (i *Index) SearchEf(query vector.Vector, k, ef int) ([]index.Result, error) {
	if err := index.CheckQuery(i.dim, query, k); err != nil {
		return nil, fmt.Errorf("hnsw: %w", err)
	}
	if len(i.live) == 0 {
		return []index.Result{}, nil
	}
	if ef <= 0 {
		ef = i.opts.EfSearch
	}
	ef = max(ef, k)
	want := min(k, len(i.live))
	for {
		cur := candidate{node: i.ep, distance: i.dist(query, i.nodes[i.ep].Vector)}
		for l := i.maxLevel; l > 0; l-- {
			cur = i.greedy(query, cur, l)
		}
		top := index.NewTopK(k)
		for _, c := range i.searchLayer(query, cur, ef, 0) {
			if i.tombstones.Contains(c.node) {
				continue
			}
			top.Push(i.nodes[c.node].ID, c.distance)
		}
		if top.Len() >= want || ef >= len(i.nodes) {
			return top.Results(), nil
		}
		ef *= 2
	}
}

var _ index.Index = (*Index)(nil)
