package store

import (
	"context"
	"errors"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/myvector/vector"
	_ "modernc.org/sqlite"
)

func newStore(t *testing.T) *SQLStore {
	t.Helper()
	db, err := sqlx.Connect("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })
	s, err := New(context.Background(), db)
	require.NoError(t, err)
	return s
}

func TestSQLStore_PutGetDelete(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	rec, err := s.Put(ctx, 7, vector.Vector{1, 2, 3})
	require.NoError(t, err)
	assert.Equal(t, 3, rec.Dim)
	assert.True(t, rec.Valid)

	got, err := s.Get(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, vector.Vector{1, 2, 3}, got.Vector)
	assert.True(t, got.Valid)

	// update keeps dimensionality
	_, err = s.Put(ctx, 7, vector.Vector{4, 5, 6})
	require.NoError(t, err)
	got, err = s.Get(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, vector.Vector{4, 5, 6}, got.Vector)

	_, err = s.Put(ctx, 7, vector.Vector{1, 2})
	var dm *vector.DimensionMismatchError
	require.True(t, errors.As(err, &dm))
	assert.Equal(t, 3, dm.Expected)
	assert.Equal(t, 2, dm.Actual)

	ok, err := s.Delete(ctx, 7)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = s.Delete(ctx, 7)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = s.Get(ctx, 7)
	assert.True(t, errors.Is(err, vector.ErrNotFound))
}

func TestSQLStore_RejectsInvalid(t *testing.T) {
	s := newStore(t)
	_, err := s.Put(context.Background(), 1, vector.Vector{})
	assert.True(t, errors.Is(err, vector.ErrInvalidArgument))
}

func TestSQLStore_ScanCount(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	for _, id := range []int64{3, 1, 2} {
		_, err := s.Put(ctx, id, vector.Vector{float32(id), 0})
		require.NoError(t, err)
	}
	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	var ids []int64
	require.NoError(t, s.Scan(ctx, func(r Record) error {
		ids = append(ids, r.ID)
		assert.Equal(t, float32(r.ID), r.Vector[0])
		return nil
	}))
	assert.Equal(t, []int64{1, 2, 3}, ids)

	stop := errors.New("stop")
	err = s.Scan(ctx, func(Record) error { return stop })
	assert.Equal(t, stop, err)
}

func TestNew_RejectsBadTable(t *testing.T) {
	db, err := sqlx.Connect("sqlite", ":memory:")
	require.NoError(t, err)
	defer db.Close()
	_, err = New(context.Background(), db, WithTable("x; DROP"))
	assert.True(t, errors.Is(err, vector.ErrInvalidArgument))
}
