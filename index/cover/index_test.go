package cover

import (
	"context"
	"errors"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/myvector/index"
	"github.com/viant/myvector/index/bruteforce"
	"github.com/viant/myvector/vector"
)

func randomVectors(n, dim int, seed int64) []vector.Vector {
	r := rand.New(rand.NewSource(seed))
	out := make([]vector.Vector, n)
	for i := range out {
		out[i] = make(vector.Vector, dim)
		for j := range out[i] {
			out[i][j] = r.Float32()*2 - 1
		}
	}
	return out
}

func ids(n int) []int64 {
	out := make([]int64, n)
	for i := range out {
		out[i] = int64(i + 1)
	}
	return out
}

func resultIDs(rs []index.Result) []int64 {
	out := make([]int64, len(rs))
	for i, r := range rs {
		out[i] = r.ID
	}
	return out
}

func TestNew_RejectsInnerProduct(t *testing.T) {
	_, err := New(vector.InnerProduct)
	assert.True(t, errors.Is(err, vector.ErrInvalidArgument))
}

func TestIndex_ThreePoints(t *testing.T) {
	idx, err := New(vector.Euclidean)
	require.NoError(t, err)
	require.NoError(t, idx.Build([]int64{1, 2, 3}, []vector.Vector{{0, 0}, {1, 0}, {0, 1}}))
	got, err := idx.Search(vector.Vector{1, 1}, 2)
	require.NoError(t, err)
	assert.Equal(t, []index.Result{{ID: 2, Distance: 1}, {ID: 3, Distance: 1}}, got)
}

func TestIndex_MatchesOracle(t *testing.T) {
	vecs := randomVectors(400, 6, 21)
	idx, err := New(vector.Euclidean, WithPending(16))
	require.NoError(t, err)
	require.NoError(t, idx.Build(ids(300), vecs[:300]))
	oracle := bruteforce.New(vector.Euclidean)
	require.NoError(t, oracle.Build(ids(300), vecs[:300]))

	// incremental inserts cross several pending flushes
	for j := 300; j < 400; j++ {
		require.NoError(t, idx.Insert(int64(j+1), vecs[j]))
		require.NoError(t, oracle.Insert(int64(j+1), vecs[j]))
	}
	for id := int64(1); id <= 400; id += 9 {
		assert.True(t, idx.Remove(id))
		assert.True(t, oracle.Remove(id))
	}
	assert.Equal(t, oracle.Len(), idx.Len())

	for _, q := range randomVectors(20, 6, 22) {
		want, err := oracle.Search(q, 10)
		require.NoError(t, err)
		got, err := idx.Search(q, 10)
		require.NoError(t, err)
		assert.Equal(t, resultIDs(want), resultIDs(got))
	}
}

func TestIndex_CosineMatchesOracle(t *testing.T) {
	vecs := randomVectors(2000, 16, 31)
	idx, err := New(vector.Cosine)
	require.NoError(t, err)
	require.NoError(t, idx.Build(ids(2000), vecs))
	oracle := bruteforce.New(vector.Cosine)
	require.NoError(t, oracle.Build(ids(2000), vecs))

	queries := randomVectors(100, 16, 32)
	for _, q := range queries {
		want, err := oracle.Search(q, 10)
		require.NoError(t, err)
		got, err := idx.Search(q, 10)
		require.NoError(t, err)
		require.Len(t, got, 10)
		assert.Equal(t, resultIDs(want), resultIDs(got))
		for j := range want {
			assert.InDelta(t, want[j].Distance, got[j].Distance, 1e-6)
		}
	}
	recall, err := index.VerifyRecall(context.Background(), idx, oracle, queries, 10, 1)
	require.NoError(t, err)
	assert.Equal(t, 1.0, recall)
}

func TestIndex_ReplaceAndRemovePending(t *testing.T) {
	idx, err := New(vector.Cosine)
	require.NoError(t, err)
	require.NoError(t, idx.Build([]int64{1}, []vector.Vector{{1, 0}}))
	require.NoError(t, idx.Insert(1, vector.Vector{0, 1}))
	require.NoError(t, idx.Insert(2, vector.Vector{1, 0}))
	assert.Equal(t, 2, idx.Len())
	assert.Equal(t, 2, idx.Pending())

	got, err := idx.Search(vector.Vector{0, 1}, 1)
	require.NoError(t, err)
	assert.Equal(t, []index.Result{{ID: 1, Distance: 0}}, got)

	assert.True(t, idx.Remove(2))
	assert.False(t, idx.Remove(2))
	assert.Equal(t, 1, idx.Len())

	// zero vectors are valid and sit at cosine distance 1
	require.NoError(t, idx.Insert(3, vector.Vector{0, 0}))
	got, err = idx.Search(vector.Vector{1, 0}, 2)
	require.NoError(t, err)
	assert.Equal(t, []index.Result{{ID: 1, Distance: 1}, {ID: 3, Distance: 1}}, got)
}

func TestIndex_MarshalRoundTrip(t *testing.T) {
	idx, err := New(vector.Euclidean, WithBase(2))
	require.NoError(t, err)
	require.NoError(t, idx.Build(ids(50), randomVectors(50, 3, 5)))
	require.NoError(t, idx.Insert(99, vector.Vector{0, 0, 0}))
	idx.Remove(7)

	data, err := idx.MarshalBinary()
	require.NoError(t, err)
	restored := &Index{}
	require.NoError(t, restored.UnmarshalBinary(data))
	assert.Equal(t, 50, restored.Len())
	assert.Equal(t, 0, restored.Pending())
	assert.Equal(t, 3, restored.Dim())

	q := vector.Vector{0, 0, 0}
	want, err := idx.Search(q, 5)
	require.NoError(t, err)
	got, err := restored.Search(q, 5)
	require.NoError(t, err)
	assert.Equal(t, resultIDs(want), resultIDs(got))
	assert.Equal(t, int64(99), got[0].ID)

	assert.Error(t, restored.UnmarshalBinary(data[:10]))
}

type expiringContext struct {
	context.Context
	checks int
}

func (c *expiringContext) Err() error {
	if c.checks <= 0 {
		return context.Canceled
	}
	c.checks--
	return nil
}

func TestIndex_BuildContextStopsMidBuild(t *testing.T) {
	vecs := randomVectors(500, 4, 41)
	idx, err := New(vector.Cosine)
	require.NoError(t, err)
	err = idx.BuildContext(&expiringContext{Context: context.Background(), checks: 2}, ids(500), vecs)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, idx.Len())
	assert.Equal(t, 0, idx.Dim())
}
