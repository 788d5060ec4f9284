package objectstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStorePutGetRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	etag, err := store.Put(ctx, "resource=users/id=u1", map[string]string{"name": "Alice"}, []byte(`{"bio":"hi"}`), PutOptions{ContentType: "application/json"})
	require.NoError(t, err)
	require.NotEmpty(t, etag)

	obj, err := store.Get(ctx, "resource=users/id=u1")
	require.NoError(t, err)
	assert.Equal(t, "Alice", obj.Metadata["name"])
	assert.Equal(t, `{"bio":"hi"}`, string(obj.Body))
	assert.Equal(t, etag, obj.ETag)
}

func TestMemoryStoreGetMissingReturnsErrNotFound(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	_, err := store.Get(ctx, "resource=users/id=missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStoreConditionalPut(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	etag, err := store.Put(ctx, "k", nil, []byte("v1"), PutOptions{})
	require.NoError(t, err)

	_, err = store.Put(ctx, "k", nil, []byte("v2"), PutOptions{IfMatch: "stale"})
	assert.ErrorIs(t, err, ErrPreconditionFailed)

	_, err = store.Put(ctx, "k", nil, []byte("v2"), PutOptions{IfMatch: etag})
	require.NoError(t, err)

	obj, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v2", string(obj.Body))
}

func TestMemoryStoreDeleteIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	require.NoError(t, store.Delete(ctx, "absent"))

	_, err := store.Put(ctx, "k", nil, []byte("v"), PutOptions{})
	require.NoError(t, err)
	require.NoError(t, store.Delete(ctx, "k"))
	require.NoError(t, store.Delete(ctx, "k"))

	exists, err := store.Exists(ctx, "k")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestMemoryStoreListPagination(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	keys := []string{"resource=a/id=1", "resource=a/id=2", "resource=a/id=3", "resource=b/id=1"}
	for _, k := range keys {
		_, err := store.Put(ctx, k, nil, []byte("x"), PutOptions{})
		require.NoError(t, err)
	}

	page, err := store.List(ctx, "resource=a/", "", 2)
	require.NoError(t, err)
	assert.Len(t, page.Keys, 2)
	assert.True(t, page.IsTruncated)

	page2, err := store.List(ctx, "resource=a/", page.ContinuationToken, 2)
	require.NoError(t, err)
	assert.Len(t, page2.Keys, 1)
	assert.False(t, page2.IsTruncated)
}

func TestKeyBuilderLayout(t *testing.T) {
	kb := NewKeyBuilder("s3db")

	assert.Equal(t, "s3db/resource=users/id=u1", kb.Primary("users", "u1"))
	assert.Equal(t, "s3db/resource=orders", kb.ResourcePrefix("orders"))
	assert.Equal(t,
		"s3db/resource=orders/partition=byUserStatus/userId=u1/status=paid/id=o1",
		kb.Partition("orders", "byUserStatus", [][2]string{{"userId", "u1"}, {"status", "paid"}}, "o1"),
	)
	assert.Equal(t, "s3db/locks/wallets:w1:balance", kb.Lock("wallets", "w1", "balance"))
}
