package repositories

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/prudhvinik1/fieldsync/internal/models"
)

// BeneficiaryRepository is the local store for beneficiary records.
type BeneficiaryRepository interface {
	Upsert(ctx context.Context, b *models.Beneficiary) error
	GetByID(ctx context.Context, id string) (*models.Beneficiary, error)
	List(ctx context.Context, filter models.BeneficiaryFilter) ([]*models.Beneficiary, error)
	Watch(ctx context.Context, filter models.BeneficiaryFilter) (<-chan []*models.Beneficiary, error)
	Delete(ctx context.Context, id string) error
	DeleteAll(ctx context.Context) error
	CountUnsynced(ctx context.Context) (int, error)
	ListUnsynced(ctx context.Context, maxAttempts int) ([]*models.Beneficiary, error)
	MarkSynced(ctx context.Context, id string, updatedAt time.Time) (bool, error)
	IncrementSyncAttempts(ctx context.Context, id string, at time.Time) error
	ResetSyncAttempts(ctx context.Context) (int64, error)
}

type ChildRepository interface {
	ReplaceChildren(ctx context.Context, beneficiaryID string, children []models.Child) error
	ListByBeneficiary(ctx context.Context, beneficiaryID string) ([]models.Child, error)
}

// SyncQueueRepository holds pending remote operations.
type SyncQueueRepository interface {
	Enqueue(ctx context.Context, entry *models.QueueEntry) error
	Upsert(ctx context.Context, entry *models.QueueEntry) error
	DequeueBatch(ctx context.Context, limit, maxAttempts int) ([]*models.QueueEntry, error)
	List(ctx context.Context) ([]*models.QueueEntry, error)
	ListFor(ctx context.Context, dataID, dataType string) ([]*models.QueueEntry, error)
	DeleteFor(ctx context.Context, dataID, dataType string) error
	Delete(ctx context.Context, jobID int64) error
	IncrementAttempts(ctx context.Context, jobID int64) error
	ResetAttempts(ctx context.Context) (int64, error)
	Count(ctx context.Context) (int, error)
	Clear(ctx context.Context) error
}

// DocumentStore is the remote tree addressed by slash separated paths.
type DocumentStore interface {
	Put(ctx context.Context, path string, value any) error
	Delete(ctx context.Context, path string) error
	Get(ctx context.Context, path string) (json.RawMessage, error)
}

type AccountRepository interface {
	Create(ctx context.Context, account *models.Account) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Account, error)
	GetByEmail(ctx context.Context, email string) (*models.Account, error)
	Update(ctx context.Context, account *models.Account) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type SessionRepository interface {
	Create(ctx context.Context, session *models.Session) error
	GetByID(ctx context.Context, id string) (*models.Session, error)
	ListByAccountID(ctx context.Context, accountID uuid.UUID) ([]*models.Session, error)
	Delete(ctx context.Context, id string) error
	DeleteAllForAccount(ctx context.Context, accountID uuid.UUID) error
}

type HeartbeatRepository interface {
	Publish(ctx context.Context, hb *models.DeviceHeartbeat) error
	Get(ctx context.Context, deviceID string) (*models.DeviceHeartbeat, error)
	Delete(ctx context.Context, deviceID string) error
}
