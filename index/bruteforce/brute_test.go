package bruteforce

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/myvector/index"
	"github.com/viant/myvector/vector"
)

func TestIndex_Search(t *testing.T) {
	idx := New(vector.Euclidean)
	require.NoError(t, idx.Build([]int64{1, 2, 3}, []vector.Vector{{0, 0}, {1, 0}, {5, 5}}))

	got, err := idx.Search(vector.Vector{1, 1}, 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, int64(2), got[0].ID)
	assert.InDelta(t, 1.0, got[0].Distance, 1e-9)
	assert.Equal(t, int64(1), got[1].ID)
	assert.InDelta(t, math.Sqrt2, got[1].Distance, 1e-9)

	// k larger than size returns everything
	got, err = idx.Search(vector.Vector{1, 1}, 10)
	require.NoError(t, err)
	assert.Len(t, got, 3)
}

func TestIndex_TieBreak(t *testing.T) {
	idx := New(vector.Euclidean)
	require.NoError(t, idx.Build([]int64{9, 4, 7}, []vector.Vector{{1, 0}, {0, 1}, {-1, 0}}))
	got, err := idx.Search(vector.Vector{0, 0}, 3)
	require.NoError(t, err)
	assert.Equal(t, []index.Result{{ID: 4, Distance: 1}, {ID: 7, Distance: 1}, {ID: 9, Distance: 1}}, got)
}

func TestIndex_Errors(t *testing.T) {
	idx := New(vector.Euclidean)
	got, err := idx.Search(vector.Vector{1, 2}, 3)
	require.NoError(t, err)
	assert.Empty(t, got)

	require.NoError(t, idx.Insert(1, vector.Vector{1, 2}))
	_, err = idx.Search(vector.Vector{1, 2}, 0)
	assert.True(t, errors.Is(err, vector.ErrInvalidArgument))
	_, err = idx.Search(vector.Vector{1, 2, 3}, 1)
	assert.True(t, errors.Is(err, vector.ErrDimensionMismatch))
	err = idx.Insert(2, vector.Vector{1})
	assert.True(t, errors.Is(err, vector.ErrDimensionMismatch))

	err = idx.Build([]int64{1, 1}, []vector.Vector{{1}, {2}})
	assert.True(t, errors.Is(err, vector.ErrInvalidArgument))
}

func TestIndex_InsertIdempotent(t *testing.T) {
	idx := New(vector.Cosine)
	require.NoError(t, idx.Insert(1, vector.Vector{1, 0}))
	require.NoError(t, idx.Insert(2, vector.Vector{0, 1}))
	require.NoError(t, idx.Insert(2, vector.Vector{0, 1}))
	assert.Equal(t, 2, idx.Len())
	assert.True(t, idx.Remove(2))
	assert.False(t, idx.Remove(2))
	assert.Equal(t, 1, idx.Len())

	got, err := idx.Search(vector.Vector{0, 1}, 5)
	require.NoError(t, err)
	assert.Equal(t, []index.Result{{ID: 1, Distance: 1}}, got)
}

func TestIndex_MarshalRoundTrip(t *testing.T) {
	idx := New(vector.InnerProduct)
	require.NoError(t, idx.Build([]int64{10, 20}, []vector.Vector{{1, 2, 3}, {4, 5, 6}}))
	data, err := idx.MarshalBinary()
	require.NoError(t, err)

	restored := &Index{}
	require.NoError(t, restored.UnmarshalBinary(data))
	assert.Equal(t, vector.InnerProduct, restored.Metric())
	assert.Equal(t, 3, restored.Dim())
	assert.Equal(t, 2, restored.Len())

	want, err := idx.Search(vector.Vector{1, 1, 1}, 2)
	require.NoError(t, err)
	got, err := restored.Search(vector.Vector{1, 1, 1}, 2)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	assert.Error(t, restored.UnmarshalBinary(data[:len(data)-1]))
}
