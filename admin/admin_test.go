package admin

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/myvector/collection"
	"github.com/viant/myvector/engine"
	"github.com/viant/myvector/snapshot"
	"github.com/viant/myvector/vector"
)

// openDB calls register before the first connection is made.
func openDB(t *testing.T, register func(db *sqlx.DB)) *sqlx.DB {
	t.Helper()
	require.NoError(t, engine.RegisterFunctions())
	db, err := engine.Open(filepath.Join(t.TempDir(), "admin.sqlite"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	if register != nil {
		register(db)
	}
	_, err = db.Exec(`PRAGMA journal_mode=WAL; PRAGMA busy_timeout=5000;`)
	require.NoError(t, err)
	_, err = db.Exec(`CREATE TABLE items(id INTEGER PRIMARY KEY, embedding BLOB)`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO items(id, embedding) VALUES
		(1, myvector_construct('[0,0]')), (2, myvector_construct('[1,1]')), (3, myvector_construct('[10,10]'))`)
	require.NoError(t, err)
	return db
}

func TestExecute(t *testing.T) {
	db := openDB(t, nil)
	store, err := snapshot.NewLocalStore(t.TempDir())
	require.NoError(t, err)
	reg := collection.New(db, collection.WithSnapshotStore(store, snapshot.CompressionZstd))
	ctx := context.Background()

	rows, err := Execute(ctx, reg, "build items.embedding id type=bruteforce, dim=2")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.True(t, strings.HasPrefix(rows[0], "name=main.items.embedding type=bruteforce rows=3 dim=2"), rows[0])

	rows, err = Execute(ctx, reg, "STATUS")
	require.NoError(t, err)
	assert.Len(t, rows, 1)

	rows, err = Execute(ctx, reg, "save main.items.embedding")
	require.NoError(t, err)
	assert.Contains(t, rows[0], "saved name=main.items.embedding")
	assert.Contains(t, rows[0], "compression=zstd")

	rows, err = Execute(ctx, reg, "load main.items.embedding")
	require.NoError(t, err)
	assert.Contains(t, rows[0], "rows=3")

	rows, err = Execute(ctx, reg, "drop main.items.embedding")
	require.NoError(t, err)
	assert.Equal(t, []string{"dropped name=main.items.embedding"}, rows)
	rows, err = Execute(ctx, reg, "drop main.items.embedding")
	require.NoError(t, err)
	assert.Equal(t, []string{"absent name=main.items.embedding"}, rows)

	_, err = Execute(ctx, reg, "status main.items.embedding")
	assert.ErrorIs(t, err, vector.ErrNotFound)
	for _, cmd := range []string{"", "rebuild x", "build items.embedding", "refresh", "status a b"} {
		_, err = Execute(ctx, reg, cmd)
		assert.ErrorIs(t, err, vector.ErrInvalidArgument, cmd)
	}
	_, err = Execute(ctx, reg, "refresh items.embedding")
	assert.ErrorIs(t, err, vector.ErrNotFound)
}

func TestAdminTable(t *testing.T) {
	var reg *collection.Registry
	db := openDB(t, func(db *sqlx.DB) {
		reg = collection.New(db)
		require.NoError(t, Register(db.DB, reg))
	})

	conn, err := db.Conn(context.Background())
	require.NoError(t, err)
	if _, err := conn.ExecContext(context.Background(), `CREATE VIRTUAL TABLE adm USING myvector_admin`); err != nil {
		_ = conn.Close()
		if strings.Contains(err.Error(), "no such module") {
			t.Skipf("skipping: %s vtab not available (%v)", ModuleName, err)
		}
		t.Fatalf("CREATE VIRTUAL TABLE adm failed: %v", err)
	}
	require.NoError(t, conn.Close())

	var status []string
	err = db.Select(&status, `SELECT status FROM adm WHERE op MATCH 'build main.items.embedding id type=hnsw,dim=2'`)
	require.NoError(t, err)
	require.Len(t, status, 1)
	assert.Contains(t, status[0], "type=hnsw rows=3")

	coll, err := reg.Get("main.items.embedding")
	require.NoError(t, err)
	res, err := coll.Search(vector.Vector{0, 0}, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), res[0].ID)

	status = nil
	require.NoError(t, db.Select(&status, `SELECT status FROM adm`))
	assert.Len(t, status, 1)

	err = db.Select(&status, `SELECT status FROM adm WHERE op MATCH 'explode'`)
	assert.Error(t, err)
}

func TestAdminTable_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var reg *collection.Registry
	db := openDB(t, func(db *sqlx.DB) {
		reg = collection.New(db)
		require.NoError(t, Register(db.DB, reg, WithContext(ctx)))
	})
	if _, err := db.Exec(`CREATE VIRTUAL TABLE adm USING myvector_admin`); err != nil {
		if strings.Contains(err.Error(), "no such module") {
			t.Skipf("skipping: %s vtab not available (%v)", ModuleName, err)
		}
		t.Fatalf("CREATE VIRTUAL TABLE adm failed: %v", err)
	}

	var status []string
	err := db.Select(&status, `SELECT status FROM adm WHERE op MATCH 'build main.items.embedding id type=hnsw,dim=2'`)
	assert.Error(t, err)
	_, err = reg.Get("main.items.embedding")
	assert.ErrorIs(t, err, vector.ErrNotFound)
}
