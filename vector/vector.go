package vector

import (
	"fmt"
	"math"
)

// Vector is an ordered sequence of float32 components.
type Vector []float32

// Dim returns the number of components.
func (v Vector) Dim() int { return len(v) }

// Validate checks that v has at least one component and that every component
// is finite.
func (v Vector) Validate() error {
	if len(v) == 0 {
		return fmt.Errorf("%w: vector must have at least one component", ErrInvalidArgument)
	}
	for i, f := range v {
		if !isFinite(f) {
			return fmt.Errorf("%w: component %d is not finite (%v)", ErrInvalidArgument, i, f)
		}
	}
	return nil
}

// Norm returns the euclidean magnitude of v.
func (v Vector) Norm() float64 { return math.Sqrt(Dot(v, v)) }

// Clone returns a copy of v that does not share backing storage.
func (v Vector) Clone() Vector {
	if v == nil {
		return nil
	}
	out := make(Vector, len(v))
	copy(out, v)
	return out
}

// Equal reports whether v and o have identical components, compared bitwise
// so that -0 and NaN payloads round-trip exactly.
func (v Vector) Equal(o Vector) bool {
	if len(v) != len(o) {
		return false
	}
	for i := range v {
		if math.Float32bits(v[i]) != math.Float32bits(o[i]) {
			return false
		}
	}
	return true
}

func isFinite(f float32) bool {
	return !math.IsNaN(float64(f)) && !math.IsInf(float64(f), 0)
}
