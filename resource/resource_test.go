package resource

import (
	"context"
	"strings"
	"testing"

	"github.com/s3db-go/s3db/metadata"
	"github.com/s3db-go/s3db/objectstore"
	"github.com/s3db-go/s3db/partition"
	"github.com/s3db-go/s3db/schema"
	"github.com/stretchr/testify/require"
)

func newTestResource(t *testing.T, cfg Config) (*Resource, objectstore.Client) {
	t.Helper()
	store := objectstore.NewMemoryStore()
	keys := objectstore.NewKeyBuilder("")
	r, err := New(cfg, store, keys)
	require.NoError(t, err)
	return r, store
}

func TestInsertGetRoundTripWithBodyOverflow(t *testing.T) {
	maxLen := 4000
	r, _ := newTestResource(t, Config{
		Name: "users",
		Attributes: []schema.AttributeDef{
			{Name: "name", Type: "string", Required: true},
			{Name: "bio", Type: "string", MaxLength: &maxLen},
		},
		Behavior:       metadata.BehaviorBodyOverflow,
		MetadataBudget: 1500,
	})

	bio := strings.Repeat("x", 3000)
	ctx := context.Background()
	inserted, err := r.Insert(ctx, map[string]interface{}{"id": "u1", "name": "Alice", "bio": bio})
	require.NoError(t, err)
	require.Equal(t, "u1", inserted["id"])
	require.Equal(t, "Alice", inserted["name"])
	require.Equal(t, bio, inserted["bio"])

	got, err := r.Get(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, "Alice", got["name"])
	require.Equal(t, bio, got["bio"])
}

func TestInsertAlreadyExists(t *testing.T) {
	r, _ := newTestResource(t, Config{
		Name:       "widgets",
		Attributes: []schema.AttributeDef{{Name: "name", Type: "string", Required: true}},
	})
	ctx := context.Background()
	_, err := r.Insert(ctx, map[string]interface{}{"id": "w1", "name": "a"})
	require.NoError(t, err)
	_, err = r.Insert(ctx, map[string]interface{}{"id": "w1", "name": "b"})
	require.ErrorIs(t, err, ErrAlreadyExists)
}

func TestPartitionUpdateRewritesIndex(t *testing.T) {
	r, _ := newTestResource(t, Config{
		Name: "orders",
		Attributes: []schema.AttributeDef{
			{Name: "userId", Type: "string", Required: true},
			{Name: "status", Type: "string", Required: true},
			{Name: "amount", Type: "number", Required: true},
		},
		Partitions: []partition.Def{{Name: "byUserStatus", Fields: []string{"userId", "status"}}},
	})
	ctx := context.Background()

	_, err := r.Insert(ctx, map[string]interface{}{"id": "o1", "userId": "u1", "status": "pending", "amount": float64(10)})
	require.NoError(t, err)

	_, err = r.Update(ctx, "o1", map[string]interface{}{"status": "paid"})
	require.NoError(t, err)

	paid, err := r.Query(ctx, "byUserStatus", map[string]interface{}{"userId": "u1", "status": "paid"})
	require.NoError(t, err)
	require.Len(t, paid, 1)
	require.Equal(t, "o1", paid[0]["id"])

	pending, err := r.Query(ctx, "byUserStatus", map[string]interface{}{"userId": "u1", "status": "pending"})
	require.NoError(t, err)
	require.Empty(t, pending)
}

func TestParanoidDeleteSoftDeletes(t *testing.T) {
	r, store := newTestResource(t, Config{
		Name:       "accounts",
		Attributes: []schema.AttributeDef{{Name: "name", Type: "string", Required: true}},
		Paranoid:   true,
	})
	ctx := context.Background()

	_, err := r.Insert(ctx, map[string]interface{}{"id": "a1", "name": "n"})
	require.NoError(t, err)

	require.NoError(t, r.Delete(ctx, "a1"))

	_, err = r.Get(ctx, "a1")
	require.ErrorIs(t, err, ErrNotFound)

	exists, err := store.Exists(ctx, r.PrimaryKey("a1"))
	require.NoError(t, err)
	require.True(t, exists, "paranoid delete must keep the primary object")
}

func TestHardDeleteRemovesPrimary(t *testing.T) {
	r, store := newTestResource(t, Config{
		Name:       "sessions",
		Attributes: []schema.AttributeDef{{Name: "name", Type: "string", Required: true}},
	})
	ctx := context.Background()

	_, err := r.Insert(ctx, map[string]interface{}{"id": "s1", "name": "n"})
	require.NoError(t, err)
	require.NoError(t, r.Delete(ctx, "s1"))

	exists, err := store.Exists(ctx, r.PrimaryKey("s1"))
	require.NoError(t, err)
	require.False(t, exists)
}

func TestBulkInsertIndependentFailures(t *testing.T) {
	r, _ := newTestResource(t, Config{
		Name:       "items",
		Attributes: []schema.AttributeDef{{Name: "name", Type: "string", Required: true}},
	})
	ctx := context.Background()

	results := r.InsertMany(ctx, []map[string]interface{}{
		{"id": "i1", "name": "a"},
		{"id": "i2"}, // missing required "name" -> fails validation
		{"id": "i3", "name": "c"},
	}, 2)

	require.Len(t, results, 3)
	require.NoError(t, results[0].Err)
	require.Error(t, results[1].Err)
	require.NoError(t, results[2].Err)
}
