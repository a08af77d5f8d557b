package tree

import "math"

// Point is a vector held by the tree. Its norm is computed on insert.
type Point struct {
	index  int32
	norm   float64
	normed bool
	Vector []float32
}

// NewPoint constructs a point for the given vector.
func NewPoint(vector ...float32) *Point {
	return &Point{index: -1, Vector: vector}
}

// Index returns the slot assigned by Insert, or -1 for a query point.
func (p *Point) Index() int32 {
	if p == nil {
		return -1
	}
	return p.index
}

func (p *Point) magnitude() float64 {
	if !p.normed {
		var sum float64
		for _, f := range p.Vector {
			sum += float64(f) * float64(f)
		}
		p.norm = math.Sqrt(sum)
		p.normed = true
	}
	return p.norm
}
