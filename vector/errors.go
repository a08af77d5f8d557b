package vector

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidArgument reports a bad argument such as a non-positive k or
	// an unknown metric name.
	ErrInvalidArgument = errors.New("myvector: invalid argument")

	// ErrNotFound reports a missing record id or index name.
	ErrNotFound = errors.New("myvector: not found")

	// ErrInvalidValue reports a malformed binary vector value.
	ErrInvalidValue = errors.New("myvector: invalid vector value")

	// ErrParse matches any *ParseError via errors.Is.
	ErrParse = errors.New("myvector: parse error")

	// ErrDimensionMismatch matches any *DimensionMismatchError via errors.Is.
	ErrDimensionMismatch = errors.New("myvector: dimension mismatch")
)

// ParseError describes a malformed vector literal. Pos is the byte offset of
// the offending input.
type ParseError struct {
	Pos int
	Msg string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("myvector: invalid vector literal at position %d: %s", e.Pos, e.Msg)
}

// Is reports whether target is ErrParse.
func (e *ParseError) Is(target error) bool { return target == ErrParse }

// DimensionMismatchError indicates a vector/query or vector/index
// dimensionality disagreement.
type DimensionMismatchError struct {
	Expected int
	Actual   int
}

func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("myvector: dimension mismatch: expected %d, got %d", e.Expected, e.Actual)
}

// Is reports whether target is ErrDimensionMismatch.
func (e *DimensionMismatchError) Is(target error) bool { return target == ErrDimensionMismatch }

// CheckDim returns a *DimensionMismatchError when actual differs from expected.
func CheckDim(expected, actual int) error {
	if expected != actual {
		return &DimensionMismatchError{Expected: expected, Actual: actual}
	}
	return nil
}
