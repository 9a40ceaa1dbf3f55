package services

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"strings"

	"github.com/prudhvinik1/fieldsync/internal/errors"
	"github.com/prudhvinik1/fieldsync/internal/logging"
	"github.com/prudhvinik1/fieldsync/internal/models"
	"github.com/prudhvinik1/fieldsync/internal/repositories"
)

// Get returns a record together with its children from the child table.
func (e *SyncEngine) Get(ctx context.Context, id string) (*models.Beneficiary, []models.Child, error) {
	b, err := e.getRecord(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	children, err := e.children.ListByBeneficiary(ctx, id)
	if err != nil {
		return nil, nil, errors.Wrap(errors.ErrDatabase, "failed to load children", err)
	}
	return b, children, nil
}

func (e *SyncEngine) List(ctx context.Context, filter models.BeneficiaryFilter) ([]*models.Beneficiary, error) {
	list, err := e.beneficiaries.List(ctx, filter)
	if err != nil {
		return nil, errors.Wrap(errors.ErrDatabase, "failed to list beneficiaries", err)
	}
	return list, nil
}

// Watch streams the filtered list, re-emitting after every local mutation
// until ctx is done.
func (e *SyncEngine) Watch(ctx context.Context, filter models.BeneficiaryFilter) (<-chan []*models.Beneficiary, error) {
	ch, err := e.beneficiaries.Watch(ctx, filter)
	if err != nil {
		return nil, errors.Wrap(errors.ErrDatabase, "failed to watch beneficiaries", err)
	}
	return ch, nil
}

func (e *SyncEngine) CountUnsynced(ctx context.Context) (int, error) {
	n, err := e.beneficiaries.CountUnsynced(ctx)
	if err != nil {
		return 0, errors.Wrap(errors.ErrDatabase, "failed to count unsynced records", err)
	}
	return n, nil
}

func (e *SyncEngine) PendingCount(ctx context.Context) (int, error) {
	n, err := e.queue.Count(ctx)
	if err != nil {
		return 0, errors.Wrap(errors.ErrDatabase, "failed to count queue entries", err)
	}
	return n, nil
}

func (e *SyncEngine) ListQueue(ctx context.Context) ([]*models.QueueEntry, error) {
	entries, err := e.queue.List(ctx)
	if err != nil {
		return nil, errors.Wrap(errors.ErrDatabase, "failed to list queue", err)
	}
	return entries, nil
}

// RetryExhausted makes records and queue entries past the attempts cap
// eligible again. It returns how many of each were reset.
func (e *SyncEngine) RetryExhausted(ctx context.Context) (records, entries int64, err error) {
	records, err = e.beneficiaries.ResetSyncAttempts(ctx)
	if err != nil {
		return 0, 0, errors.Wrap(errors.ErrDatabase, "failed to reset record attempts", err)
	}
	entries, err = e.queue.ResetAttempts(ctx)
	if err != nil {
		return records, 0, errors.Wrap(errors.ErrDatabase, "failed to reset queue attempts", err)
	}

	logging.Info("sync attempts reset", logging.Fields{"records": records, "queue_entries": entries})
	return records, entries, nil
}

// ClearLocalData wipes every record, child and queue entry on this device.
// Nothing is sent to the remote store.
func (e *SyncEngine) ClearLocalData(ctx context.Context) error {
	if err := e.queue.Clear(ctx); err != nil {
		return errors.Wrap(errors.ErrDatabase, "failed to clear sync queue", err)
	}
	if err := e.beneficiaries.DeleteAll(ctx); err != nil {
		return errors.Wrap(errors.ErrDatabase, "failed to clear beneficiaries", err)
	}
	e.metrics.Backlog(0, 0)
	logging.Warn("local data cleared")

	// The published backlog no longer describes this device.
	if e.heartbeats != nil && e.deviceID != "" && e.oracle.IsAvailable() {
		if err := e.heartbeats.Delete(ctx, e.deviceID); err != nil {
			logging.Error("failed to drop heartbeat", err, logging.Fields{"device_id": e.deviceID})
		}
	}
	return nil
}

func (e *SyncEngine) Status(ctx context.Context) (*SyncStatus, error) {
	unsynced, err := e.CountUnsynced(ctx)
	if err != nil {
		return nil, err
	}
	pending, err := e.PendingCount(ctx)
	if err != nil {
		return nil, err
	}
	status := &SyncStatus{
		Online:        e.oracle.IsAvailable(),
		Unsynced:      unsynced,
		Pending:       pending,
		LastReconcile: e.LastReconcile(),
	}
	if status.Online && e.heartbeats != nil && e.deviceID != "" {
		hb, err := e.heartbeats.Get(ctx, e.deviceID)
		if err != nil {
			logging.Warn("heartbeat unavailable", logging.Fields{"device_id": e.deviceID, "error": err.Error()})
		} else {
			status.Heartbeat = hb
		}
	}
	return status, nil
}

// LastReconcile returns a copy of the most recent reconcile result, or nil.
func (e *SyncEngine) LastReconcile() *ReconcileResult {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.last == nil {
		return nil
	}
	copied := *e.last
	return &copied
}

// RemoteGet reads a subtree of the remote store. It requires connectivity.
func (e *SyncEngine) RemoteGet(ctx context.Context, path string) (json.RawMessage, error) {
	if !e.oracle.IsAvailable() {
		return nil, errors.New(errors.ErrOffline, "remote store unavailable while offline")
	}
	doc, err := e.remote.Get(ctx, strings.Trim(path, "/"))
	switch {
	case stderrors.Is(err, repositories.ErrInvalidPath):
		return nil, errors.Wrap(errors.ErrValidation, "invalid remote path", err)
	case stderrors.Is(err, repositories.ErrNotFound):
		return nil, errors.New(errors.ErrNotFound, "nothing stored at "+path)
	case err != nil:
		return nil, errors.Wrap(errors.ErrSyncFailed, "remote read failed", err)
	}
	return doc, nil
}
