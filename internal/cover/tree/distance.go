package tree

import (
	"math"

	"github.com/viant/myvector/vector"
	"github.com/viant/vec/search"
)

type pointDistance func(p1, p2 *Point) float32

// distanceFor returns the metric served for m and the distance the tree
// routes with. Pruning relies on the triangle inequality, so cosine is
// routed on the angle between points, which orders neighbours the same way
// as 1 - cos.
func distanceFor(m vector.Metric) (vector.Metric, pointDistance) {
	if m == vector.Cosine {
		return vector.Cosine, AngularDistance
	}
	return vector.Euclidean, EuclideanDistance
}

// AngularDistance is the angle in radians between two points, accumulated
// in float64. A zero vector is at a right angle to everything.
func AngularDistance(p1, p2 *Point) float32 {
	m1, m2 := p1.magnitude(), p2.magnitude()
	if m1 == 0 || m2 == 0 {
		return math.Pi / 2
	}
	var dot float64
	for i, f := range p1.Vector {
		dot += float64(f) * float64(p2.Vector[i])
	}
	cos := dot / (m1 * m2)
	cos = max(-1, min(1, cos))
	return float32(math.Acos(cos))
}

// EuclideanDistance is the L2 distance of two points.
func EuclideanDistance(p1, p2 *Point) float32 {
	return search.Float32s(p1.Vector).EuclideanDistance(p2.Vector)
}
