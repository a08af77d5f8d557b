package tree

// Neighbor describes a candidate returned by a kNN search.
type Neighbor struct {
	ID       int64
	Point    *Point
	Distance float32
}

// neighbors is a max-heap under better, holding the current best k.
type neighbors []Neighbor

func (h neighbors) Len() int           { return len(h) }
func (h neighbors) Less(i, j int) bool { return better(h[j], h[i]) }
func (h neighbors) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

func (h *neighbors) Push(x interface{}) { *h = append(*h, x.(Neighbor)) }

func (h *neighbors) Pop() interface{} {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

func (h *neighbors) worst(k int) (float32, bool) {
	if k > 0 && h.Len() == k {
		return (*h)[0].Distance, true
	}
	return 0, false
}
