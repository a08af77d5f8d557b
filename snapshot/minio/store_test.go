package minio

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/myvector/snapshot"
	"github.com/viant/myvector/vector"
)

// TestStore_Integration requires a running MinIO instance reachable at
// MYVECTOR_TEST_MINIO (host:port). It is skipped otherwise.
func TestStore_Integration(t *testing.T) {
	endpoint := os.Getenv("MYVECTOR_TEST_MINIO")
	if endpoint == "" {
		t.Skip("MYVECTOR_TEST_MINIO not set")
	}
	ctx := context.Background()
	store, err := Connect(ctx, Config{
		Endpoint:  endpoint,
		AccessKey: "minioadmin",
		SecretKey: "minioadmin",
		Bucket:    "test-myvector",
		Prefix:    "snapshots",
	})
	if err != nil {
		t.Skipf("MinIO not available: %v", err)
	}

	data, _, err := snapshot.Encode(snapshot.Header{Name: "db.t.v", Kind: "bruteforce"}, []byte("payload"), snapshot.CompressionZstd)
	require.NoError(t, err)
	require.NoError(t, store.Put(ctx, "db.t.v", data))

	got, err := store.Get(ctx, "db.t.v")
	require.NoError(t, err)
	assert.Equal(t, data, got)

	names, err := store.List(ctx)
	require.NoError(t, err)
	assert.Contains(t, names, "db.t.v")

	require.NoError(t, store.Delete(ctx, "db.t.v"))
	require.NoError(t, store.Delete(ctx, "db.t.v"))
	_, err = store.Get(ctx, "db.t.v")
	assert.True(t, errors.Is(err, vector.ErrNotFound))
}

func TestStore_RejectsBadNames(t *testing.T) {
	s := NewStore(nil, "bucket", "")
	assert.True(t, errors.Is(s.Put(context.Background(), "../x", nil), vector.ErrInvalidArgument))
	_, err := s.Get(context.Background(), "a/b")
	assert.True(t, errors.Is(err, vector.ErrInvalidArgument))
	assert.Equal(t, "p/x.mvx", NewStore(nil, "b", "p").key("x"))
}
