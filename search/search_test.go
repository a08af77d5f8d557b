package search

import (
	"context"
	"math"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/myvector/collection"
	"github.com/viant/myvector/engine"
	"github.com/viant/myvector/vector"
)

type hit struct {
	ID       int64   `db:"id"`
	Distance float64 `db:"distance"`
}

func setup(t *testing.T) *sqlx.DB {
	t.Helper()
	require.NoError(t, engine.RegisterFunctions())
	db, err := engine.Open(filepath.Join(t.TempDir(), "search.sqlite"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	// Keep a single connection during module registration and CREATE VTAB
	db.SetMaxOpenConns(1)
	reg := collection.New(db)
	require.NoError(t, Register(db.DB, reg, WithDefaultK(10), WithMaxK(100)))
	_, err = db.Exec(`PRAGMA journal_mode=WAL; PRAGMA busy_timeout=5000;`)
	require.NoError(t, err)
	_, err = db.Exec(`CREATE TABLE items(id INTEGER PRIMARY KEY, embedding BLOB)`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO items(id, embedding) VALUES
		(1, myvector_construct('[0,0]')), (2, myvector_construct('[1,1]')), (3, myvector_construct('[10,10]'))`)
	require.NoError(t, err)

	_, err = reg.Build(context.Background(), "main.items.embedding", "id", "type=hnsw,dim=2")
	require.NoError(t, err)
	if _, err := db.Exec(`CREATE VIRTUAL TABLE knn USING myvector_search`); err != nil {
		if strings.Contains(err.Error(), "no such module") {
			t.Skipf("skipping: %s vtab not available (%v)", ModuleName, err)
		}
		require.NoError(t, err)
	}
	return db
}

func TestSearch_ThreePoints(t *testing.T) {
	db := setup(t)
	q, err := vector.EncodeValue(vector.Vector{0, 0})
	require.NoError(t, err)

	var hits []hit
	err = db.Select(&hits, `SELECT id, distance FROM knn WHERE name = 'main.items.embedding' AND query MATCH ? AND k = 2`, q)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, int64(1), hits[0].ID)
	assert.Equal(t, 0.0, hits[0].Distance)
	assert.Equal(t, int64(2), hits[1].ID)
	assert.InDelta(t, math.Sqrt2, hits[1].Distance, 1e-6)
}

func TestSearch_QueryForms(t *testing.T) {
	db := setup(t)
	for _, q := range []any{"[10, 10]", "10,10", "(10,10)"} {
		var hits []hit
		err := db.Select(&hits, `SELECT id, distance FROM knn WHERE name = 'items.embedding' AND query MATCH ?`, q)
		require.NoError(t, err, q)
		require.Len(t, hits, 3, q)
		assert.Equal(t, int64(3), hits[0].ID, q)
		assert.Equal(t, int64(1), hits[2].ID, q)
	}

	var hits []hit
	err := db.Select(&hits, `SELECT id, distance FROM knn WHERE name = 'main.items.embedding' AND query = '[1,1]' AND k = 1 AND options = 'ef_search=200'`)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, int64(2), hits[0].ID)
}

func TestSearch_Errors(t *testing.T) {
	db := setup(t)
	cases := []struct {
		query string
		want  string
	}{
		{`SELECT id FROM knn WHERE name = 'main.items.embedding' AND query MATCH '[0,0]' AND k = 0`, "k must be positive"},
		{`SELECT id FROM knn WHERE name = 'main.nope.embedding' AND query MATCH '[0,0]'`, "not found"},
		{`SELECT id FROM knn WHERE name = 'main.items.embedding' AND query MATCH '[0,0,0]'`, "dimension mismatch"},
		{`SELECT id FROM knn WHERE query MATCH '[0,0]'`, ""},
	}
	for _, tc := range cases {
		var ids []int64
		err := db.Select(&ids, tc.query)
		require.Error(t, err, tc.query)
		if tc.want != "" {
			assert.Contains(t, err.Error(), tc.want, tc.query)
		}
	}
}

func TestDecodeQuery(t *testing.T) {
	blob, err := vector.EncodeValue(vector.Vector{1, 2})
	require.NoError(t, err)
	raw := blob[vector.ValueHeaderSize:]

	for _, in := range []any{blob, raw, "[1,2]", "1, 2"} {
		got, err := decodeQuery(in)
		require.NoError(t, err)
		assert.Equal(t, vector.Vector{1, 2}, got)
	}
	_, err = decodeQuery(int64(1))
	assert.ErrorIs(t, err, vector.ErrInvalidArgument)
	_, err = decodeQuery("   ")
	assert.ErrorIs(t, err, vector.ErrInvalidArgument)
}
