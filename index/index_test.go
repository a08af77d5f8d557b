package index_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/myvector/index"
	"github.com/viant/myvector/index/bruteforce"
	"github.com/viant/myvector/vector"
)

func TestTopK(t *testing.T) {
	top := index.NewTopK(3)
	for id, d := range map[int64]float64{1: 0.5, 2: 0.1, 3: 0.9, 4: 0.1, 5: 0.3} {
		top.Push(id, d)
	}
	assert.Equal(t, []index.Result{{ID: 2, Distance: 0.1}, {ID: 4, Distance: 0.1}, {ID: 5, Distance: 0.3}}, top.Results())
	assert.True(t, top.Full())
	assert.Equal(t, 0.3, top.Worst())
}

func TestSortResults(t *testing.T) {
	rs := []index.Result{{ID: 3, Distance: 1}, {ID: 1, Distance: 2}, {ID: 2, Distance: 1}}
	index.SortResults(rs)
	assert.Equal(t, []index.Result{{ID: 2, Distance: 1}, {ID: 3, Distance: 1}, {ID: 1, Distance: 2}}, rs)
}

func TestCheckQuery(t *testing.T) {
	assert.True(t, errors.Is(index.CheckQuery(2, vector.Vector{1, 2}, 0), vector.ErrInvalidArgument))
	assert.True(t, errors.Is(index.CheckQuery(2, vector.Vector{1}, 1), vector.ErrDimensionMismatch))
	assert.NoError(t, index.CheckQuery(0, vector.Vector{1}, 1))
}

func newBrute(t *testing.T, ids []int64, vs []vector.Vector) index.Index {
	idx := bruteforce.New(vector.Euclidean)
	require.NoError(t, idx.Build(ids, vs))
	return idx
}

func TestHandle_RebuildPublishes(t *testing.T) {
	h := index.NewHandle(newBrute(t, []int64{1}, []vector.Vector{{0, 0}}))
	assert.Equal(t, uint64(1), h.Current().Version)

	err := h.Rebuild(context.Background(), func(ctx context.Context) (index.Index, error) {
		// writes arriving during the rebuild are replayed onto the new index
		require.NoError(t, h.Insert(9, vector.Vector{9, 9}))
		assert.True(t, h.Remove(1))
		return newBrute(t, []int64{1, 2}, []vector.Vector{{0, 0}, {1, 1}}), nil
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(2), h.Current().Version)
	assert.Equal(t, 2, h.Current().BuildRows)

	got, err := h.Search(vector.Vector{0, 0}, 10)
	require.NoError(t, err)
	ids := []int64{}
	for _, r := range got {
		ids = append(ids, r.ID)
	}
	assert.Equal(t, []int64{2, 9}, ids)
}

func TestHandle_FailedRebuildKeepsPrevious(t *testing.T) {
	h := index.NewHandle(newBrute(t, []int64{1}, []vector.Vector{{0, 0}}))
	boom := errors.New("boom")
	err := h.Rebuild(context.Background(), func(context.Context) (index.Index, error) { return nil, boom })
	assert.Equal(t, boom, err)

	ctx, cancel := context.WithCancel(context.Background())
	err = h.Rebuild(ctx, func(ctx context.Context) (index.Index, error) {
		idx := bruteforce.New(vector.Euclidean)
		cancel()
		return idx, index.Load(ctx, idx, func(yield func(int64, vector.Vector) error) error {
			return yield(5, vector.Vector{5, 5})
		})
	})
	assert.True(t, errors.Is(err, context.Canceled))

	assert.Equal(t, uint64(1), h.Current().Version)
	got, err := h.Search(vector.Vector{0, 0}, 1)
	require.NoError(t, err)
	assert.Equal(t, []index.Result{{ID: 1, Distance: 0}}, got)
}

func TestHandle_ConcurrentSearchAndInsert(t *testing.T) {
	h := index.NewHandle(bruteforce.New(vector.Euclidean))
	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				id := int64(w*100 + i)
				_ = h.Insert(id, vector.Vector{float32(id), 1})
				_, _ = h.Search(vector.Vector{1, 1}, 3)
			}
		}(w)
	}
	wg.Wait()
	assert.Equal(t, 200, h.Len())
}

func TestLoad(t *testing.T) {
	idx := bruteforce.New(vector.Euclidean)
	err := index.Load(context.Background(), idx, func(yield func(int64, vector.Vector) error) error {
		for i := int64(1); i <= 3; i++ {
			if err := yield(i, vector.Vector{float32(i)}); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, idx.Len())
}

func TestRecall(t *testing.T) {
	ids := []int64{1, 2, 3, 4}
	vs := []vector.Vector{{0}, {1}, {2}, {3}}
	oracle := newBrute(t, ids, vs)
	partial := newBrute(t, []int64{1, 3}, []vector.Vector{{0}, {2}})

	r, err := index.Recall(context.Background(), oracle, oracle, []vector.Vector{{0}, {3}}, 2)
	require.NoError(t, err)
	assert.Equal(t, 1.0, r)

	// query {0}: oracle {1,2}, partial {1,3} -> 0.5; query {3}: oracle {4,3}, partial {3,1} -> 0.5
	r, err = index.Recall(context.Background(), partial, oracle, []vector.Vector{{0}, {3}}, 2)
	require.NoError(t, err)
	assert.Equal(t, 0.5, r)

	_, err = index.VerifyRecall(context.Background(), partial, oracle, []vector.Vector{{0}}, 2, 0.9)
	assert.True(t, errors.Is(err, index.ErrRecallBelowBound))
}

func TestBuild_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	idx := bruteforce.New(vector.Euclidean)
	err := index.Build(ctx, idx, []int64{1}, []vector.Vector{{1}})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, idx.Len())

	oracle := newBrute(t, []int64{1, 2}, []vector.Vector{{0}, {1}})
	_, err = index.Recall(ctx, oracle, oracle, []vector.Vector{{0}}, 1)
	assert.ErrorIs(t, err, context.Canceled)
}
