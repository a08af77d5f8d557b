package tree

// This implementation is adapted from github.com/viant/gds/tree/cover.

import (
	"container/heap"
	"math"
	"sort"
	"sync"

	"github.com/viant/myvector/vector"
)

// Tree is a cover tree over id-tagged points for cosine/euclidean kNN
// queries.
type Tree struct {
	root          *Node
	base          float32
	metric        vector.Metric
	distanceFunc  pointDistance
	ids           []int64
	points        []*Point
	version       uint64
	boundStrategy BoundStrategy
	mu            sync.RWMutex
}

// BoundStrategy selects which lower-bound radius to use when pruning.
type BoundStrategy int

const (
	// BoundPerNode uses cached per-node subtree radius (tighter pruning).
	BoundPerNode BoundStrategy = iota
	// BoundLevel uses a geometric bound derived from the node level.
	BoundLevel
)

// Filter reports whether a slot must be left out of results. Filtered
// points still route the search.
type Filter func(index int32) bool

// NewTree constructs a cover tree with the provided base. Metrics other than
// cosine are served as euclidean.
func NewTree(base float32, metric vector.Metric) *Tree {
	if base <= 1 {
		base = 1.3
	}
	metric, fn := distanceFor(metric)
	return &Tree{
		base:          base,
		metric:        metric,
		distanceFunc:  fn,
		boundStrategy: BoundPerNode,
	}
}

// Base returns the level base.
func (t *Tree) Base() float32 { return t.base }

// Metric returns the metric distances are computed with.
func (t *Tree) Metric() vector.Metric { return t.metric }

// SetBoundStrategy switches the pruning strategy at runtime.
func (t *Tree) SetBoundStrategy(s BoundStrategy) {
	t.mu.Lock()
	t.boundStrategy = s
	t.mu.Unlock()
}

// Len returns the number of inserted points, including filtered ones.
func (t *Tree) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.points)
}

// Insert adds point under id and returns its slot.
func (t *Tree) Insert(id int64, point *Point) int32 {
	t.mu.Lock()
	defer t.mu.Unlock()
	point.index = int32(len(t.points))
	t.points = append(t.points, point)
	t.ids = append(t.ids, id)
	point.magnitude()
	if t.root == nil {
		node := newNode(point, 0, t.base)
		t.root = &node
	} else {
		t.insert(t.root, point, 0)
	}
	t.version++
	return point.index
}

// Point returns the point stored in slot index, or nil.
func (t *Tree) Point(index int32) *Point {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if index < 0 || int(index) >= len(t.points) {
		return nil
	}
	return t.points[index]
}

// ID returns the id stored in slot index.
func (t *Tree) ID(index int32) (int64, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if index < 0 || int(index) >= len(t.ids) {
		return 0, false
	}
	return t.ids[index], true
}

func (t *Tree) insert(node *Node, point *Point, level int32) {
	for {
		baseLevel := float32(math.Pow(float64(t.base), float64(level)))
		distance := t.distanceFunc(point, node.point)
		if distance < baseLevel {
			inserted := false
			for i := range node.children {
				child := &node.children[i]
				if t.distanceFunc(point, child.point) < baseLevel {
					node = child
					level--
					inserted = true
					break
				}
			}
			if !inserted {
				node.children = append(node.children, newNode(point, level-1, t.base))
				return
			}
		} else {
			level++
			if level > node.level {
				newRoot := newNode(point, level, t.base)
				newRoot.children = append(newRoot.children, *t.root)
				t.root = &newRoot
				return
			}
		}
	}
}

// lock takes the write lock when per-node radii may be recomputed.
func (t *Tree) lock() func() {
	if t.boundStrategy == BoundPerNode {
		t.mu.Lock()
		return t.mu.Unlock
	}
	t.mu.RLock()
	return t.mu.RUnlock
}

// better orders neighbours by distance then id.
func better(a, b Neighbor) bool {
	if a.Distance != b.Distance {
		return a.Distance < b.Distance
	}
	return a.ID < b.ID
}

func (t *Tree) offer(h *neighbors, k int, skip Filter, p *Point, d float32) {
	if k <= 0 || (skip != nil && skip(p.index)) {
		return
	}
	n := Neighbor{ID: t.ids[p.index], Point: p, Distance: d}
	if h.Len() < k {
		heap.Push(h, n)
	} else if better(n, (*h)[0]) {
		(*h)[0] = n
		heap.Fix(h, 0)
	}
}

func drain(h *neighbors) []Neighbor {
	result := make([]Neighbor, h.Len())
	for i := len(result) - 1; i >= 0; i-- {
		result[i] = heap.Pop(h).(Neighbor)
	}
	sort.SliceStable(result, func(i, j int) bool { return better(result[i], result[j]) })
	return result
}

// KNearestNeighbors runs a depth-first kNN search, ascending by distance.
func (t *Tree) KNearestNeighbors(point *Point, k int, skip Filter) []Neighbor {
	defer t.lock()()
	if t.root == nil || k <= 0 {
		return nil
	}
	h := &neighbors{}
	t.kNearestNeighbors(t.root, point, k, skip, h)
	return drain(h)
}

func (t *Tree) kNearestNeighbors(node *Node, point *Point, k int, skip Filter, h *neighbors) {
	t.offer(h, k, skip, node.point, t.distanceFunc(point, node.point))
	if len(node.children) == 0 {
		return
	}
	type childDist struct {
		child *Node
		dist  float32
	}
	cds := make([]childDist, 0, len(node.children))
	for i := range node.children {
		child := &node.children[i]
		cds = append(cds, childDist{child: child, dist: t.distanceFunc(point, child.point)})
	}
	sort.Slice(cds, func(i, j int) bool { return cds[i].dist < cds[j].dist })
	for _, cd := range cds {
		if worst, full := h.worst(k); full && cd.dist-t.boundRadius(cd.child) > worst {
			continue
		}
		t.kNearestNeighbors(cd.child, point, k, skip, h)
	}
}

// KNearestNeighborsBestFirst performs a best-first search with a node
// priority queue.
func (t *Tree) KNearestNeighborsBestFirst(point *Point, k int, skip Filter) []Neighbor {
	defer t.lock()()
	if t.root == nil || k <= 0 {
		return nil
	}
	nh := &neighbors{}
	pq := &nodeQueue{}
	rootDist := t.distanceFunc(point, t.root.point)
	heap.Push(pq, nodeItem{node: t.root, lb: rootDist - t.boundRadius(t.root), centerDist: rootDist})

	for pq.Len() > 0 {
		top := heap.Pop(pq).(nodeItem)
		if worst, full := nh.worst(k); full && top.lb > worst {
			break
		}
		t.offer(nh, k, skip, top.node.point, top.centerDist)
		for i := range top.node.children {
			child := &top.node.children[i]
			cd := t.distanceFunc(point, child.point)
			lb := cd - t.boundRadius(child)
			if worst, full := nh.worst(k); full && lb > worst {
				continue
			}
			heap.Push(pq, nodeItem{node: child, lb: lb, centerDist: cd})
		}
	}
	return drain(nh)
}

func (t *Tree) ensureRadius(n *Node) float32 {
	if n == nil {
		return 0
	}
	if n.radiusComputed == t.version {
		return n.radius
	}
	if len(n.children) == 0 {
		n.radius = 0
		n.radiusComputed = t.version
		return 0
	}
	maxR := float32(0)
	for i := range n.children {
		child := &n.children[i]
		cr := t.ensureRadius(child)
		d := t.distanceFunc(n.point, child.point) + cr
		if d > maxR {
			maxR = d
		}
	}
	n.radius = maxR
	n.radiusComputed = t.version
	return maxR
}

func (t *Tree) levelCoverRadius(n *Node) float32 {
	if t.base <= 1 || n == nil {
		return float32(math.MaxFloat32)
	}
	return n.baseLevel * t.base / (t.base - 1)
}

func (t *Tree) boundRadius(n *Node) float32 {
	if t.boundStrategy == BoundLevel {
		return t.levelCoverRadius(n)
	}
	return t.ensureRadius(n)
}

type nodeItem struct {
	node       *Node
	lb         float32
	centerDist float32
}

type nodeQueue []nodeItem

func (q nodeQueue) Len() int            { return len(q) }
func (q nodeQueue) Less(i, j int) bool  { return q[i].lb < q[j].lb }
func (q nodeQueue) Swap(i, j int)       { q[i], q[j] = q[j], q[i] }
func (q *nodeQueue) Push(x interface{}) { *q = append(*q, x.(nodeItem)) }
func (q *nodeQueue) Pop() interface{} {
	old := *q
	n := len(old)
	x := old[n-1]
	*q = old[:n-1]
	return x
}
