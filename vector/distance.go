package vector

import (
	"fmt"
	"math"
	"strings"
)

// Metric enumerates the supported distance functions. Smaller distances mean
// more similar vectors for every metric.
type Metric int

const (
	// Euclidean is the L2 distance.
	Euclidean Metric = iota
	// Cosine is 1 - cosine similarity. A zero-magnitude operand yields 1.
	Cosine
	// InnerProduct is 1 - dot product.
	InnerProduct
)

// ParseMetric resolves a metric name. The empty string selects Euclidean.
func ParseMetric(name string) (Metric, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "l2", "euclidean":
		return Euclidean, nil
	case "cos", "cosine":
		return Cosine, nil
	case "ip", "dot", "inner_product":
		return InnerProduct, nil
	}
	return 0, fmt.Errorf("%w: unknown metric %q", ErrInvalidArgument, name)
}

func (m Metric) String() string {
	switch m {
	case Euclidean:
		return "l2"
	case Cosine:
		return "cosine"
	case InnerProduct:
		return "ip"
	}
	return fmt.Sprintf("metric(%d)", int(m))
}

// Valid reports whether m is a known metric.
func (m Metric) Valid() bool { return m >= Euclidean && m <= InnerProduct }

// Distance computes the distance between a and b, failing on a
// dimensionality mismatch or empty input.
func (m Metric) Distance(a, b Vector) (float64, error) {
	if err := CheckDim(len(a), len(b)); err != nil {
		return 0, err
	}
	if len(a) == 0 {
		return 0, fmt.Errorf("%w: distance of empty vectors", ErrInvalidArgument)
	}
	fn := m.Func()
	if fn == nil {
		return 0, fmt.Errorf("%w: unknown metric %d", ErrInvalidArgument, int(m))
	}
	return fn(a, b), nil
}

// DistanceFunc computes a distance without checking dimensionality.
type DistanceFunc func(a, b []float32) float64

// Func returns the unchecked implementation of m, or nil for an unknown
// metric.
func (m Metric) Func() DistanceFunc {
	switch m {
	case Euclidean:
		return l2
	case Cosine:
		return cosineDistance
	case InnerProduct:
		return ipDistance
	}
	return nil
}

// Dot returns the inner product of a and b accumulated in float64.
func Dot(a, b []float32) float64 {
	var s float64
	for i := range a {
		s += float64(a[i]) * float64(b[i])
	}
	return s
}

// CosineSimilarity computes the cosine similarity between two vectors. It
// returns an error if the vectors have different lengths or if either vector
// has zero magnitude.
func CosineSimilarity(a, b []float32) (float64, error) {
	if err := CheckDim(len(a), len(b)); err != nil {
		return 0, err
	}
	if len(a) == 0 {
		return 0, fmt.Errorf("%w: cosine similarity on empty vectors", ErrInvalidArgument)
	}
	var dot, na2, nb2 float64
	for i := range a {
		va := float64(a[i])
		vb := float64(b[i])
		dot += va * vb
		na2 += va * va
		nb2 += vb * vb
	}
	if na2 == 0 || nb2 == 0 {
		return 0, fmt.Errorf("%w: cosine similarity with zero-magnitude vector", ErrInvalidArgument)
	}
	return dot / (math.Sqrt(na2) * math.Sqrt(nb2)), nil
}

// L2Distance computes the Euclidean (L2) distance between two vectors. It
// returns an error if the vectors have different lengths.
func L2Distance(a, b []float32) (float64, error) {
	if err := CheckDim(len(a), len(b)); err != nil {
		return 0, err
	}
	return l2(a, b), nil
}

func l2(a, b []float32) float64 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum)
}

func cosineDistance(a, b []float32) float64 {
	var dot, na2, nb2 float64
	for i := range a {
		va := float64(a[i])
		vb := float64(b[i])
		dot += va * vb
		na2 += va * va
		nb2 += vb * vb
	}
	if na2 == 0 || nb2 == 0 {
		return 1
	}
	return 1 - dot/(math.Sqrt(na2)*math.Sqrt(nb2))
}

func ipDistance(a, b []float32) float64 { return 1 - Dot(a, b) }
