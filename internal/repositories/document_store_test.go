package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// exerciseDocumentStore runs the shared contract against any DocumentStore.
func exerciseDocumentStore(t *testing.T, store DocumentStore, root string) {
	ctx := context.Background()
	defer store.Delete(ctx, root)

	// ACT: Write two records and a summary index
	require.NoError(t, store.Put(ctx, root+"/beneficiaries/BEN-1", map[string]any{"name": "Aisha", "age": "24"}))
	require.NoError(t, store.Put(ctx, root+"/beneficiaries/BEN-2", map[string]any{"name": "Zainab"}))
	require.NoError(t, store.Put(ctx, root+"/userBeneficiaries/op-1/BEN-1", map[string]any{"id": "BEN-1"}))

	// ASSERT: Leaf read
	raw, err := store.Get(ctx, root+"/beneficiaries/BEN-1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"Aisha","age":"24"}`, string(raw))

	// Subtree read
	raw, err = store.Get(ctx, root+"/beneficiaries")
	require.NoError(t, err)
	var tree map[string]map[string]any
	require.NoError(t, json.Unmarshal(raw, &tree))
	assert.Len(t, tree, 2)
	assert.Equal(t, "Zainab", tree["BEN-2"]["name"])

	// Put is an upsert
	require.NoError(t, store.Put(ctx, root+"/beneficiaries/BEN-1", map[string]any{"name": "Aisha"}))
	require.NoError(t, store.Put(ctx, root+"/beneficiaries/BEN-1", map[string]any{"name": "Aisha"}))
	raw, err = store.Get(ctx, root+"/beneficiaries/BEN-1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"Aisha"}`, string(raw))

	// Delete removes the subtree, and is idempotent
	require.NoError(t, store.Delete(ctx, root+"/userBeneficiaries/op-1"))
	require.NoError(t, store.Delete(ctx, root+"/userBeneficiaries/op-1"))
	_, err = store.Get(ctx, root+"/userBeneficiaries/op-1/BEN-1")
	assert.ErrorIs(t, err, ErrNotFound)

	// BEN-1 must not match BEN-10
	require.NoError(t, store.Put(ctx, root+"/beneficiaries/BEN-10", map[string]any{"name": "Other"}))
	require.NoError(t, store.Delete(ctx, root+"/beneficiaries/BEN-1"))
	_, err = store.Get(ctx, root+"/beneficiaries/BEN-10")
	assert.NoError(t, err)

	assert.ErrorIs(t, store.Put(ctx, "//", "x"), ErrInvalidPath)
	assert.ErrorIs(t, store.Delete(ctx, "a//b"), ErrInvalidPath)
}

func TestMemoryDocumentStore_Contract(t *testing.T) {
	exerciseDocumentStore(t, NewMemoryDocumentStore(), "test")
}

func TestPostgresDocumentStore_Contract(t *testing.T) {
	pool := getTestPool(t)
	exerciseDocumentStore(t, NewPostgresDocumentStore(pool), "test-"+uuid.New().String())
}

func TestMemoryDocumentStore_FailureInjection(t *testing.T) {
	store := NewMemoryDocumentStore()
	ctx := context.Background()
	boom := errors.New("connection reset")

	store.FailPath("beneficiaries/BEN-2", boom)
	require.NoError(t, store.Put(ctx, "beneficiaries/BEN-1", 1))
	assert.ErrorIs(t, store.Put(ctx, "beneficiaries/BEN-2", 2), boom)
	assert.ErrorIs(t, store.Delete(ctx, "beneficiaries/BEN-2"), boom)
	store.FailPath("beneficiaries/BEN-2", nil)
	require.NoError(t, store.Put(ctx, "beneficiaries/BEN-2", 2))

	store.FailAll(ErrRemoteUnavailable)
	assert.ErrorIs(t, store.Put(ctx, "beneficiaries/BEN-3", 3), ErrRemoteUnavailable)
	_, err := store.Get(ctx, "beneficiaries")
	assert.ErrorIs(t, err, ErrRemoteUnavailable)
	store.FailAll(nil)

	assert.Equal(t, 2, store.Puts())
}
