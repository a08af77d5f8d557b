package index

import "container/heap"

// TopK keeps the k best results seen so far in a bounded max-heap.
type TopK struct {
	k     int
	items resultHeap
}

// NewTopK creates a selector for k results.
func NewTopK(k int) *TopK {
	return &TopK{k: k, items: make(resultHeap, 0, k)}
}

// Push offers a candidate.
func (t *TopK) Push(id int64, distance float64) {
	r := Result{ID: id, Distance: distance}
	if len(t.items) < t.k {
		heap.Push(&t.items, r)
		return
	}
	if t.k > 0 && Less(r, t.items[0]) {
		t.items[0] = r
		heap.Fix(&t.items, 0)
	}
}

// Len returns the number of kept results.
func (t *TopK) Len() int { return len(t.items) }

// Full reports whether k results are held.
func (t *TopK) Full() bool { return len(t.items) >= t.k }

// Worst returns the largest kept distance. It is only meaningful when Len > 0.
func (t *TopK) Worst() float64 { return t.items[0].Distance }

// Results returns the kept results in ascending order.
func (t *TopK) Results() []Result {
	out := make([]Result, len(t.items))
	copy(out, t.items)
	SortResults(out)
	return out
}

// resultHeap is a max-heap under Less.
type resultHeap []Result

func (h resultHeap) Len() int           { return len(h) }
func (h resultHeap) Less(i, j int) bool { return Less(h[j], h[i]) }
func (h resultHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

func (h *resultHeap) Push(x interface{}) { *h = append(*h, x.(Result)) }

func (h *resultHeap) Pop() interface{} {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}
