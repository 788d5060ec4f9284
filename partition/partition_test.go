package partition

import (
	"context"
	"testing"

	"github.com/s3db-go/s3db/objectstore"
	"github.com/s3db-go/s3db/schema"
	"github.com/stretchr/testify/require"
)

func testSchema(t *testing.T) *schema.Schema {
	t.Helper()
	s, err := schema.Compile([]schema.AttributeDef{
		{Name: "userId", Type: "string", Required: true},
		{Name: "status", Type: "string", Required: true},
	})
	require.NoError(t, err)
	return s
}

func TestPutAndQuerySync(t *testing.T) {
	store := objectstore.NewMemoryStore()
	keys := objectstore.NewKeyBuilder("")
	s := testSchema(t)

	e, err := New("orders", s, []Def{{Name: "byUserStatus", Fields: []string{"userId", "status"}}}, store, keys, Options{Async: false})
	require.NoError(t, err)

	record := map[string]interface{}{"userId": "u1", "status": "pending"}
	require.NoError(t, e.Put(context.Background(), "o1", record))

	ids, _, err := e.Query(context.Background(), "byUserStatus", map[string]interface{}{"userId": "u1", "status": "pending"}, "", 10)
	require.NoError(t, err)
	require.Equal(t, []string{"o1"}, ids)

	ids, _, err = e.Query(context.Background(), "byUserStatus", map[string]interface{}{"userId": "u1", "status": "paid"}, "", 10)
	require.NoError(t, err)
	require.Empty(t, ids)
}

func TestUpdateRewritesPartitionKey(t *testing.T) {
	store := objectstore.NewMemoryStore()
	keys := objectstore.NewKeyBuilder("")
	s := testSchema(t)

	e, err := New("orders", s, []Def{{Name: "byUserStatus", Fields: []string{"userId", "status"}}}, store, keys, Options{Async: false})
	require.NoError(t, err)

	ctx := context.Background()
	prior := map[string]interface{}{"userId": "u1", "status": "pending"}
	require.NoError(t, e.Put(ctx, "o1", prior))

	updated := map[string]interface{}{"userId": "u1", "status": "paid"}
	require.NoError(t, e.Update(ctx, "o1", prior, updated))

	ids, _, err := e.Query(ctx, "byUserStatus", map[string]interface{}{"userId": "u1", "status": "paid"}, "", 10)
	require.NoError(t, err)
	require.Equal(t, []string{"o1"}, ids)

	ids, _, err = e.Query(ctx, "byUserStatus", map[string]interface{}{"userId": "u1", "status": "pending"}, "", 10)
	require.NoError(t, err)
	require.Empty(t, ids)
}

func TestAsyncPutEventuallyVisibleAfterWait(t *testing.T) {
	store := objectstore.NewMemoryStore()
	keys := objectstore.NewKeyBuilder("")
	s := testSchema(t)

	e, err := New("orders", s, []Def{{Name: "byUserStatus", Fields: []string{"userId", "status"}}}, store, keys, Options{Async: true})
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, e.Put(ctx, "o1", map[string]interface{}{"userId": "u1", "status": "pending"}))
	e.Wait()

	ids, _, err := e.Query(ctx, "byUserStatus", map[string]interface{}{"userId": "u1", "status": "pending"}, "", 10)
	require.NoError(t, err)
	require.Equal(t, []string{"o1"}, ids)
}

func TestReconcilerRepairsMissingIndex(t *testing.T) {
	store := objectstore.NewMemoryStore()
	keys := objectstore.NewKeyBuilder("")
	s := testSchema(t)

	e, err := New("orders", s, []Def{{Name: "byUserStatus", Fields: []string{"userId", "status"}}}, store, keys, Options{Async: false})
	require.NoError(t, err)

	ctx := context.Background()
	// Write a primary object directly, bypassing the partition engine, to
	// simulate a crash between the primary write and the index fan-out.
	primaryKey := keys.Primary("orders", "o1")
	_, err = store.Put(ctx, primaryKey, map[string]string{"userId": "u1", "status": "pending", "_s": "1", "_b": "body-overflow", "_id": "o1"}, []byte("{}"), objectstore.PutOptions{ContentType: "application/json"})
	require.NoError(t, err)

	report, err := NewReconciler(e).Run(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, report.Scanned)
	require.Equal(t, 1, report.Repaired)

	ids, _, err := e.Query(ctx, "byUserStatus", map[string]interface{}{"userId": "u1", "status": "pending"}, "", 10)
	require.NoError(t, err)
	require.Equal(t, []string{"o1"}, ids)
}
