package repositories

import (
	"context"
	"testing"
	"time"

	"github.com/prudhvinik1/fieldsync/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func queueEntry(op models.QueueOperation, dataID string, priority int, created time.Time) *models.QueueEntry {
	return &models.QueueEntry{
		Operation: op,
		DataType:  models.DataTypeBeneficiary,
		DataID:    dataID,
		DataJSON:  `{"id":"` + dataID + `"}`,
		Priority:  priority,
		CreatedAt: created,
	}
}

func TestSyncQueue_EnqueueDoesNotDedup(t *testing.T) {
	repo := NewSQLiteSyncQueueRepository(getTestLocalDB(t))
	ctx := context.Background()

	first := queueEntry(models.OperationCreate, "BEN-1", 0, time.Now())
	second := queueEntry(models.OperationCreate, "BEN-1", 0, time.Now())
	require.NoError(t, repo.Enqueue(ctx, first))
	require.NoError(t, repo.Enqueue(ctx, second))

	assert.NotZero(t, first.JobID)
	assert.Greater(t, second.JobID, first.JobID, "job ids are monotonic")

	entries, err := repo.ListFor(ctx, "BEN-1", models.DataTypeBeneficiary)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestSyncQueue_UpsertReplacesPendingEntry(t *testing.T) {
	repo := NewSQLiteSyncQueueRepository(getTestLocalDB(t))
	ctx := context.Background()

	created := time.UnixMilli(1700000000000)
	dup1 := queueEntry(models.OperationUpdate, "BEN-1", 0, created)
	dup2 := queueEntry(models.OperationUpdate, "BEN-1", 0, created.Add(time.Second))
	require.NoError(t, repo.Enqueue(ctx, dup1))
	require.NoError(t, repo.Enqueue(ctx, dup2))
	require.NoError(t, repo.IncrementAttempts(ctx, dup1.JobID))
	other := queueEntry(models.OperationCreate, "BEN-1", 0, created)
	require.NoError(t, repo.Enqueue(ctx, other))

	// ACT: Upsert a newer snapshot
	latest := queueEntry(models.OperationUpdate, "BEN-1", 0, time.Now())
	latest.DataJSON = `{"id":"BEN-1","phoneNumber":"03111234567"}`
	require.NoError(t, repo.Upsert(ctx, latest))

	// ASSERT: One UPDATE left, on the oldest job, carrying the new snapshot
	entries, err := repo.ListFor(ctx, "BEN-1", models.DataTypeBeneficiary)
	require.NoError(t, err)
	require.Len(t, entries, 2, "the CREATE entry is a different key")

	var update *models.QueueEntry
	for _, e := range entries {
		if e.Operation == models.OperationUpdate {
			update = e
		}
	}
	require.NotNil(t, update)
	assert.Equal(t, dup1.JobID, update.JobID)
	assert.Equal(t, latest.JobID, update.JobID)
	assert.Equal(t, latest.DataJSON, update.DataJSON)
	assert.Zero(t, update.Attempts)
	assert.Equal(t, created.UnixMilli(), update.CreatedAt.UnixMilli())

	// Upsert on a fresh key appends
	fresh := queueEntry(models.OperationDelete, "BEN-2", 1, time.Now())
	require.NoError(t, repo.Upsert(ctx, fresh))
	assert.NotZero(t, fresh.JobID)

	count, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestSyncQueue_DequeueBatchOrdering(t *testing.T) {
	repo := NewSQLiteSyncQueueRepository(getTestLocalDB(t))
	ctx := context.Background()

	base := time.UnixMilli(1700000000000)
	old := queueEntry(models.OperationCreate, "BEN-old", 0, base)
	newer := queueEntry(models.OperationCreate, "BEN-new", 0, base.Add(time.Minute))
	urgent := queueEntry(models.OperationDelete, "BEN-urgent", 1, base.Add(2*time.Minute))
	exhausted := queueEntry(models.OperationCreate, "BEN-exhausted", 5, base)
	for _, e := range []*models.QueueEntry{newer, old, urgent, exhausted} {
		require.NoError(t, repo.Enqueue(ctx, e))
	}
	for i := 0; i < 3; i++ {
		require.NoError(t, repo.IncrementAttempts(ctx, exhausted.JobID))
	}

	// ACT
	batch, err := repo.DequeueBatch(ctx, 50, 3)

	// ASSERT: priority desc, then oldest first, capped entries skipped
	require.NoError(t, err)
	require.Len(t, batch, 3)
	assert.Equal(t, "BEN-urgent", batch[0].DataID)
	assert.Equal(t, "BEN-old", batch[1].DataID)
	assert.Equal(t, "BEN-new", batch[2].DataID)

	limited, err := repo.DequeueBatch(ctx, 1, 3)
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	uncapped, err := repo.DequeueBatch(ctx, 50, 0)
	require.NoError(t, err)
	assert.Len(t, uncapped, 4)
	assert.Equal(t, "BEN-exhausted", uncapped[0].DataID)

	reset, err := repo.ResetAttempts(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), reset)
}

func TestSyncQueue_Deletes(t *testing.T) {
	repo := NewSQLiteSyncQueueRepository(getTestLocalDB(t))
	ctx := context.Background()

	a1 := queueEntry(models.OperationCreate, "BEN-a", 0, time.Now())
	a2 := queueEntry(models.OperationUpdate, "BEN-a", 0, time.Now())
	b1 := queueEntry(models.OperationCreate, "BEN-b", 0, time.Now())
	for _, e := range []*models.QueueEntry{a1, a2, b1} {
		require.NoError(t, repo.Enqueue(ctx, e))
	}

	require.NoError(t, repo.DeleteFor(ctx, "BEN-a", models.DataTypeBeneficiary))
	remaining, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Equal(t, "BEN-b", remaining[0].DataID)

	require.NoError(t, repo.Delete(ctx, b1.JobID))
	assert.ErrorIs(t, repo.Delete(ctx, b1.JobID), ErrNotFound)
	assert.ErrorIs(t, repo.IncrementAttempts(ctx, b1.JobID), ErrNotFound)

	require.NoError(t, repo.Enqueue(ctx, queueEntry(models.OperationCreate, "BEN-c", 0, time.Now())))
	require.NoError(t, repo.Clear(ctx))
	count, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
}
