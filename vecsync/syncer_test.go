package vecsync

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/myvector/collection"
	"github.com/viant/myvector/engine"
	"github.com/viant/myvector/vector"
)

const indexName = "main.items.embedding"

func setup(t *testing.T) (*sqlx.DB, *collection.Registry) {
	t.Helper()
	require.NoError(t, engine.RegisterFunctions())
	db, err := engine.Open(filepath.Join(t.TempDir(), "sync.sqlite"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	_, err = db.Exec(`PRAGMA journal_mode=WAL; PRAGMA busy_timeout=5000;`)
	require.NoError(t, err)
	_, err = db.Exec(`CREATE TABLE items(id INTEGER PRIMARY KEY, embedding BLOB)`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO items(id, embedding) VALUES
		(1, myvector_construct('[0,0]')), (2, myvector_construct('[1,1]')), (3, myvector_construct('[10,10]'))`)
	require.NoError(t, err)

	reg := collection.New(db)
	_, err = reg.Build(context.Background(), indexName, "id", "type=bruteforce,dim=2")
	require.NoError(t, err)
	return db, reg
}

func nearest(t *testing.T, reg *collection.Registry, q vector.Vector) (int64, int) {
	t.Helper()
	coll, err := reg.Get(indexName)
	require.NoError(t, err)
	res, err := coll.Search(q, 1)
	require.NoError(t, err)
	require.NotEmpty(t, res)
	return res[0].ID, coll.Len()
}

func TestInstall_Direct(t *testing.T) {
	db, reg := setup(t)
	engine.Bind(reg, engine.Settings{})
	t.Cleanup(func() { engine.Bind(nil, engine.Settings{}) })
	ctx := context.Background()
	require.NoError(t, Install(ctx, db, indexName, "id", Direct))

	_, err := db.Exec(`INSERT INTO items(id, embedding) VALUES (4, myvector_construct('[5,5]'))`)
	require.NoError(t, err)
	id, n := nearest(t, reg, vector.Vector{5, 5})
	assert.Equal(t, int64(4), id)
	assert.Equal(t, 4, n)

	_, err = db.Exec(`UPDATE items SET id = 40 WHERE id = 4`)
	require.NoError(t, err)
	id, n = nearest(t, reg, vector.Vector{5, 5})
	assert.Equal(t, int64(40), id)
	assert.Equal(t, 4, n)

	_, err = db.Exec(`UPDATE items SET embedding = NULL WHERE id = 40`)
	require.NoError(t, err)
	_, n = nearest(t, reg, vector.Vector{5, 5})
	assert.Equal(t, 3, n)

	_, err = db.Exec(`DELETE FROM items WHERE id = 3`)
	require.NoError(t, err)
	_, n = nearest(t, reg, vector.Vector{10, 10})
	assert.Equal(t, 2, n)

	_, err = db.Exec(`INSERT INTO items(id, embedding) VALUES (5, myvector_construct('[1,2,3]'))`)
	assert.Error(t, err)

	require.NoError(t, Uninstall(ctx, db, indexName))
	_, err = db.Exec(`INSERT INTO items(id, embedding) VALUES (6, myvector_construct('[6,6]'))`)
	require.NoError(t, err)
	_, n = nearest(t, reg, vector.Vector{6, 6})
	assert.Equal(t, 2, n)
}

func TestSyncer(t *testing.T) {
	db, reg := setup(t)
	ctx := context.Background()
	require.NoError(t, Install(ctx, db, indexName, "id", Logged))
	syncer := NewSyncer(db, reg, Config{BatchSize: 2}, nil)

	_, err := db.Exec(`INSERT INTO items(id, embedding) VALUES (4, myvector_construct('[5,5]'))`)
	require.NoError(t, err)
	_, err = db.Exec(`UPDATE items SET embedding = myvector_construct('[6,6]') WHERE id = 4`)
	require.NoError(t, err)
	_, err = db.Exec(`DELETE FROM items WHERE id = 3`)
	require.NoError(t, err)

	tx, err := db.Beginx()
	require.NoError(t, err)
	_, err = tx.Exec(`INSERT INTO items(id, embedding) VALUES (9, myvector_construct('[9,9]'))`)
	require.NoError(t, err)
	require.NoError(t, tx.Rollback())

	// Nothing is applied before Sync.
	_, n := nearest(t, reg, vector.Vector{6, 6})
	assert.Equal(t, 3, n)

	applied, err := syncer.Sync(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, applied)
	st, err := syncer.State(ctx, indexName)
	require.NoError(t, err)
	assert.Equal(t, int64(2), st.LastSCN)

	applied, err = syncer.Sync(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, applied)
	applied, err = syncer.Sync(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, applied)

	id, n := nearest(t, reg, vector.Vector{6, 6})
	assert.Equal(t, int64(4), id)
	assert.Equal(t, 3, n)
	id, _ = nearest(t, reg, vector.Vector{10, 10})
	assert.Equal(t, int64(4), id)

	pruned, err := syncer.Prune(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), pruned)
	var left int
	require.NoError(t, db.Get(&left, `SELECT COUNT(*) FROM myvector_log`))
	assert.Equal(t, 0, left)
}

func TestSyncer_SkipsUnloadedIndex(t *testing.T) {
	db, reg := setup(t)
	ctx := context.Background()
	require.NoError(t, Install(ctx, db, indexName, "id", Logged))
	_, err := db.Exec(`DELETE FROM items WHERE id = 1`)
	require.NoError(t, err)

	_, err = reg.Drop(ctx, indexName)
	require.NoError(t, err)
	syncer := NewSyncer(db, reg, Config{}, nil)
	applied, err := syncer.Sync(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, applied)
	st, err := syncer.State(ctx, indexName)
	require.NoError(t, err)
	assert.Equal(t, int64(0), st.LastSCN)
}
