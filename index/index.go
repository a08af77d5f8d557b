package index

import (
	"encoding"
	"errors"
	"fmt"
	"sort"

	"github.com/viant/myvector/vector"
)

// ErrRecallBelowBound is returned when an approximate index does not reach
// the configured recall against the exact oracle.
var ErrRecallBelowBound = errors.New("myvector: recall below bound")

// Result is one search hit.
type Result struct {
	ID       int64
	Distance float64
}

// Index is a similarity index over (id, vector) pairs. Implementations are
// not safe for concurrent use; wrap them in a Handle.
type Index interface {
	// Build replaces the content with ids and vectors, which must have equal
	// length and a common dimensionality.
	Build(ids []int64, vectors []vector.Vector) error

	// Search returns up to k nearest entries ordered by ascending distance,
	// ties broken by ascending id.
	Search(query vector.Vector, k int) ([]Result, error)

	// Insert adds v under id, replacing any previous vector for id.
	Insert(id int64, v vector.Vector) error

	// Remove deletes id and reports whether it was present.
	Remove(id int64) bool

	Len() int
	// Dim is 0 until the first vector is added.
	Dim() int
	Metric() vector.Metric

	encoding.BinaryMarshaler
	encoding.BinaryUnmarshaler
}

// SortResults orders rs by ascending distance then ascending id.
func SortResults(rs []Result) {
	sort.Slice(rs, func(i, j int) bool { return Less(rs[i], rs[j]) })
}

// Less is the result order used everywhere.
func Less(a, b Result) bool {
	if a.Distance != b.Distance {
		return a.Distance < b.Distance
	}
	return a.ID < b.ID
}

// CheckQuery validates search arguments against an index of dimensionality
// dim. A dim of 0 means the index is empty and any query shape is accepted.
func CheckQuery(dim int, query vector.Vector, k int) error {
	if k <= 0 {
		return fmt.Errorf("%w: k must be positive, got %d", vector.ErrInvalidArgument, k)
	}
	if len(query) == 0 {
		return fmt.Errorf("%w: empty query vector", vector.ErrInvalidArgument)
	}
	if dim == 0 {
		return nil
	}
	return vector.CheckDim(dim, len(query))
}

// CheckBuild validates Build arguments and returns their common
// dimensionality, or 0 for an empty input.
func CheckBuild(ids []int64, vectors []vector.Vector) (int, error) {
	if len(ids) != len(vectors) {
		return 0, fmt.Errorf("%w: ids and vectors length mismatch: %d != %d", vector.ErrInvalidArgument, len(ids), len(vectors))
	}
	if len(vectors) == 0 {
		return 0, nil
	}
	dim := len(vectors[0])
	seen := make(map[int64]struct{}, len(ids))
	for j, v := range vectors {
		if err := vector.CheckDim(dim, len(v)); err != nil {
			return 0, fmt.Errorf("vector %d: %w", ids[j], err)
		}
		if err := v.Validate(); err != nil {
			return 0, fmt.Errorf("vector %d: %w", ids[j], err)
		}
		if _, ok := seen[ids[j]]; ok {
			return 0, fmt.Errorf("%w: duplicate id %d", vector.ErrInvalidArgument, ids[j])
		}
		seen[ids[j]] = struct{}{}
	}
	return dim, nil
}

// CheckInsert validates an incremental insert into an index of
// dimensionality dim (0 when empty).
func CheckInsert(dim int, v vector.Vector) error {
	if err := v.Validate(); err != nil {
		return err
	}
	if dim == 0 {
		return nil
	}
	return vector.CheckDim(dim, len(v))
}
