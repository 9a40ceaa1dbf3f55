package repositories

import (
	"context"
	"testing"
	"time"

	"github.com/prudhvinik1/fieldsync/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBeneficiary(id string, created time.Time) *models.Beneficiary {
	return &models.Beneficiary{
		ID:          id,
		UserID:      "op-1",
		Name:        "Aisha Bibi",
		Age:         "24",
		CNIC:        "42101-1234567-1",
		PhoneNumber: "03001234567",
		District:    "Karachi",
		Status:      models.StatusPregnant,
		ProofURIs:   "front.jpg,back.jpg",
		CreatedAt:   created,
		UpdatedAt:   created,
	}
}

func TestBeneficiaryRepository_UpsertAndGet(t *testing.T) {
	db := getTestLocalDB(t)
	repo := NewSQLiteBeneficiaryRepository(db, NewChangeFeed())
	ctx := context.Background()

	created := time.UnixMilli(1700000000123)
	b := newTestBeneficiary("BEN-1", created)

	// ACT: Insert, then replace with an edit
	require.NoError(t, repo.Upsert(ctx, b))
	b.PhoneNumber = "03111234567"
	b.SyncAttempts = 2
	attempt := created.Add(time.Minute)
	b.LastSyncAttempt = &attempt
	require.NoError(t, repo.Upsert(ctx, b))

	// ASSERT
	got, err := repo.GetByID(ctx, "BEN-1")
	require.NoError(t, err)
	assert.Equal(t, "03111234567", got.PhoneNumber)
	assert.Equal(t, 2, got.SyncAttempts)
	assert.False(t, got.IsSynced)
	assert.Equal(t, created.UnixMilli(), got.CreatedAt.UnixMilli())
	require.NotNil(t, got.LastSyncAttempt)
	assert.Equal(t, attempt.UnixMilli(), got.LastSyncAttempt.UnixMilli())

	_, err = repo.GetByID(ctx, "BEN-missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestBeneficiaryRepository_UpsertKeepsChildren(t *testing.T) {
	db := getTestLocalDB(t)
	feed := NewChangeFeed()
	repo := NewSQLiteBeneficiaryRepository(db, feed)
	children := NewSQLiteChildRepository(db, feed)
	ctx := context.Background()

	b := newTestBeneficiary("BEN-1", time.Now())
	require.NoError(t, repo.Upsert(ctx, b))
	require.NoError(t, children.ReplaceChildren(ctx, "BEN-1", []models.Child{{Name: "Sara", Gender: "Female"}}))

	b.Name = "Aisha Khan"
	require.NoError(t, repo.Upsert(ctx, b))

	list, err := children.ListByBeneficiary(ctx, "BEN-1")
	require.NoError(t, err)
	assert.Len(t, list, 1, "updating the parent must not drop its children")
}

func TestBeneficiaryRepository_UnknownStatusFallsBack(t *testing.T) {
	db := getTestLocalDB(t)
	repo := NewSQLiteBeneficiaryRepository(db, nil)
	ctx := context.Background()

	_, err := db.Exec(`INSERT INTO beneficiaries (id, name, status, created_at, updated_at) VALUES ('BEN-old', 'Old', 'NURSING', 1, 1)`)
	require.NoError(t, err)

	got, err := repo.GetByID(ctx, "BEN-old")
	require.NoError(t, err)
	assert.Equal(t, models.StatusPregnant, got.Status)
}

func TestBeneficiaryRepository_ListFilters(t *testing.T) {
	db := getTestLocalDB(t)
	repo := NewSQLiteBeneficiaryRepository(db, nil)
	ctx := context.Background()

	base := time.Now().Add(-time.Hour)
	a := newTestBeneficiary("BEN-a", base)
	b := newTestBeneficiary("BEN-b", base.Add(time.Minute))
	b.Name = "Zainab"
	b.CNIC = "35202-7654321-9"
	b.PhoneNumber = "03219876543"
	b.Status = models.StatusLactating
	c := newTestBeneficiary("BEN-c", base.Add(2*time.Minute))
	c.Name = "Fatima_100%"
	c.UserID = "op-2"
	for _, rec := range []*models.Beneficiary{a, b, c} {
		require.NoError(t, repo.Upsert(ctx, rec))
	}

	all, err := repo.List(ctx, models.BeneficiaryFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{"BEN-c", "BEN-b", "BEN-a"}, ids(all), "newest first")

	lactating, err := repo.List(ctx, models.BeneficiaryFilter{Status: models.StatusLactating})
	require.NoError(t, err)
	assert.Equal(t, []string{"BEN-b"}, ids(lactating))

	byName, err := repo.List(ctx, models.BeneficiaryFilter{Query: "zAiNaB"})
	require.NoError(t, err)
	assert.Equal(t, []string{"BEN-b"}, ids(byName))

	byCNIC, err := repo.List(ctx, models.BeneficiaryFilter{Query: "7654321"})
	require.NoError(t, err)
	assert.Equal(t, []string{"BEN-b"}, ids(byCNIC))

	byPhone, err := repo.List(ctx, models.BeneficiaryFilter{Query: "0321"})
	require.NoError(t, err)
	assert.Equal(t, []string{"BEN-b"}, ids(byPhone))

	literal, err := repo.List(ctx, models.BeneficiaryFilter{Query: "_100%"})
	require.NoError(t, err)
	assert.Equal(t, []string{"BEN-c"}, ids(literal), "wildcards in the query match literally")

	owned, err := repo.List(ctx, models.BeneficiaryFilter{UserID: "op-2"})
	require.NoError(t, err)
	assert.Equal(t, []string{"BEN-c"}, ids(owned))
}

// A record at the attempts cap stays dirty but is no longer selected.
func TestBeneficiaryRepository_ListUnsyncedRespectsCap(t *testing.T) {
	db := getTestLocalDB(t)
	repo := NewSQLiteBeneficiaryRepository(db, nil)
	ctx := context.Background()

	fresh := newTestBeneficiary("BEN-fresh", time.Now())
	poison := newTestBeneficiary("BEN-poison", time.Now())
	poison.SyncAttempts = 3
	synced := newTestBeneficiary("BEN-synced", time.Now())
	synced.IsSynced = true
	for _, rec := range []*models.Beneficiary{fresh, poison, synced} {
		require.NoError(t, repo.Upsert(ctx, rec))
	}

	// ACT
	unsynced, err := repo.ListUnsynced(ctx, 3)

	// ASSERT
	require.NoError(t, err)
	assert.Equal(t, []string{"BEN-fresh"}, ids(unsynced))

	count, err := repo.CountUnsynced(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count, "the capped record is still dirty")

	reset, err := repo.ResetSyncAttempts(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), reset)

	unsynced, err = repo.ListUnsynced(ctx, 3)
	require.NoError(t, err)
	assert.Len(t, unsynced, 2)
}

func TestBeneficiaryRepository_MarkSyncedIsConditional(t *testing.T) {
	db := getTestLocalDB(t)
	repo := NewSQLiteBeneficiaryRepository(db, nil)
	ctx := context.Background()

	b := newTestBeneficiary("BEN-1", time.UnixMilli(1700000000000))
	require.NoError(t, repo.Upsert(ctx, b))
	stale := b.UpdatedAt

	// An edit lands between the remote write and the mark
	b.UpdatedAt = stale.Add(time.Second)
	require.NoError(t, repo.Upsert(ctx, b))

	marked, err := repo.MarkSynced(ctx, "BEN-1", stale)
	require.NoError(t, err)
	assert.False(t, marked)

	marked, err = repo.MarkSynced(ctx, "BEN-1", b.UpdatedAt)
	require.NoError(t, err)
	assert.True(t, marked)

	got, err := repo.GetByID(ctx, "BEN-1")
	require.NoError(t, err)
	assert.True(t, got.IsSynced)
}

func TestBeneficiaryRepository_IncrementSyncAttempts(t *testing.T) {
	db := getTestLocalDB(t)
	repo := NewSQLiteBeneficiaryRepository(db, nil)
	ctx := context.Background()

	require.NoError(t, repo.Upsert(ctx, newTestBeneficiary("BEN-1", time.Now())))

	at := time.UnixMilli(1700000005000)
	require.NoError(t, repo.IncrementSyncAttempts(ctx, "BEN-1", at))
	require.NoError(t, repo.IncrementSyncAttempts(ctx, "BEN-1", at))

	got, err := repo.GetByID(ctx, "BEN-1")
	require.NoError(t, err)
	assert.Equal(t, 2, got.SyncAttempts)
	require.NotNil(t, got.LastSyncAttempt)
	assert.Equal(t, at.UnixMilli(), got.LastSyncAttempt.UnixMilli())

	assert.ErrorIs(t, repo.IncrementSyncAttempts(ctx, "BEN-missing", at), ErrNotFound)
}

func TestBeneficiaryRepository_DeleteCascadesChildren(t *testing.T) {
	db := getTestLocalDB(t)
	repo := NewSQLiteBeneficiaryRepository(db, nil)
	children := NewSQLiteChildRepository(db, nil)
	ctx := context.Background()

	require.NoError(t, repo.Upsert(ctx, newTestBeneficiary("BEN-1", time.Now())))
	require.NoError(t, children.ReplaceChildren(ctx, "BEN-1", []models.Child{{Name: "A"}, {Name: "B"}}))

	require.NoError(t, repo.Delete(ctx, "BEN-1"))

	var count int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM children WHERE beneficiary_id = 'BEN-1'`).Scan(&count))
	assert.Zero(t, count)

	assert.ErrorIs(t, repo.Delete(ctx, "BEN-1"), ErrNotFound)
}

func TestChildRepository_ReplaceChildren(t *testing.T) {
	db := getTestLocalDB(t)
	repo := NewSQLiteBeneficiaryRepository(db, nil)
	children := NewSQLiteChildRepository(db, nil)
	ctx := context.Background()

	require.NoError(t, repo.Upsert(ctx, newTestBeneficiary("BEN-1", time.Now())))
	require.NoError(t, children.ReplaceChildren(ctx, "BEN-1", []models.Child{
		{Name: "Old", Gender: "Male"},
	}))

	// ACT: Replace with a new batch
	err := children.ReplaceChildren(ctx, "BEN-1", []models.Child{
		{Name: "Sara", Gender: "Female", ProofURIs: []string{"b1.jpg", "b2.jpg"}},
		{Name: "Ali", Gender: "Male"},
	})

	// ASSERT
	require.NoError(t, err)
	list, err := children.ListByBeneficiary(ctx, "BEN-1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "Sara", list[0].Name)
	assert.Equal(t, []string{"b1.jpg", "b2.jpg"}, list[0].ProofURIs)
	assert.Equal(t, "Ali", list[1].Name)
	assert.Equal(t, []string{}, list[1].ProofURIs)

	require.NoError(t, children.ReplaceChildren(ctx, "BEN-1", nil))
	list, err = children.ListByBeneficiary(ctx, "BEN-1")
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestBeneficiaryRepository_Watch(t *testing.T) {
	db := getTestLocalDB(t)
	feed := NewChangeFeed()
	repo := NewSQLiteBeneficiaryRepository(db, feed)
	ctx, cancel := context.WithCancel(context.Background())

	updates, err := repo.Watch(ctx, models.BeneficiaryFilter{})
	require.NoError(t, err)

	initial := <-updates
	assert.Empty(t, initial)

	require.NoError(t, repo.Upsert(context.Background(), newTestBeneficiary("BEN-1", time.Now())))

	select {
	case list := <-updates:
		assert.Equal(t, []string{"BEN-1"}, ids(list))
	case <-time.After(2 * time.Second):
		t.Fatal("watch did not emit after a write")
	}

	cancel()
	select {
	case _, ok := <-updates:
		for ok {
			_, ok = <-updates
		}
	case <-time.After(2 * time.Second):
		t.Fatal("watch channel not closed after cancel")
	}
}

func ids(list []*models.Beneficiary) []string {
	out := make([]string, len(list))
	for i, b := range list {
		out[i] = b.ID
	}
	return out
}
