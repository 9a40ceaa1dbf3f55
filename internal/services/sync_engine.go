package services

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"github.com/prudhvinik1/fieldsync/internal/connectivity"
	"github.com/prudhvinik1/fieldsync/internal/errors"
	"github.com/prudhvinik1/fieldsync/internal/logging"
	"github.com/prudhvinik1/fieldsync/internal/metrics"
	"github.com/prudhvinik1/fieldsync/internal/models"
	"github.com/prudhvinik1/fieldsync/internal/repositories"
	"github.com/prudhvinik1/fieldsync/internal/utils"
)

const (
	// QueueBatchSize is the number of queue entries replayed per pass.
	QueueBatchSize = 50
	// MaxSyncAttempts excludes records and queue entries from reconciliation
	// once they have failed this many times.
	MaxSyncAttempts = 3

	DefaultOwnerID = "ALL_USERS"

	deletePriority = 1

	beneficiariesPath     = "beneficiaries"
	userBeneficiariesPath = "userBeneficiaries"
)

type Outcome string

const (
	// OutcomeSynced means the remote store confirmed the change.
	OutcomeSynced Outcome = "synced"
	// OutcomeQueued means the change is durable locally and waits for replay.
	OutcomeQueued Outcome = "queued"
)

type SaveResult struct {
	ID      string  `json:"id"`
	Outcome Outcome `json:"outcome"`
}

// ReconcileResult summarizes one reconcile-all pass.
type ReconcileResult struct {
	Skipped        bool          `json:"skipped"`
	RecordsSynced  int           `json:"recordsSynced"`
	RecordsFailed  int           `json:"recordsFailed"`
	QueueProcessed int           `json:"queueProcessed"`
	QueueFailed    int           `json:"queueFailed"`
	Unsynced       int           `json:"unsynced"`
	Pending        int           `json:"pending"`
	StartedAt      time.Time     `json:"startedAt"`
	Duration       time.Duration `json:"duration"`
}

func (r *ReconcileResult) Failures() int {
	return r.RecordsFailed + r.QueueFailed
}

func (r *ReconcileResult) outcome() string {
	switch {
	case r.Skipped:
		return metrics.ResultSkipped
	case r.Failures() > 0:
		return "partial"
	default:
		return "ok"
	}
}

// deleteTarget is the payload of a queued DELETE. An entry without one
// falls back to the configured owner.
type deleteTarget struct {
	UserID string `json:"userId"`
}

// SyncStatus is the engine's view of the backlog. Heartbeat is what this
// device last published, when it could be read.
type SyncStatus struct {
	Online        bool                    `json:"online"`
	Unsynced      int                     `json:"unsynced"`
	Pending       int                     `json:"pending"`
	LastReconcile *ReconcileResult        `json:"lastReconcile,omitempty"`
	Heartbeat     *models.DeviceHeartbeat `json:"heartbeat,omitempty"`
}

type SyncEngineConfig struct {
	// OwnerID is the summary owner for records without a user id and for
	// queued deletes that carry no owner.
	OwnerID    string
	DeviceID   string
	Metrics    *metrics.Metrics
	Heartbeats repositories.HeartbeatRepository
}

// SyncEngine is the only component that decides whether a record is synced.
// All writes go to the local store first; remote failures become queue state.
type SyncEngine struct {
	beneficiaries repositories.BeneficiaryRepository
	children      repositories.ChildRepository
	queue         repositories.SyncQueueRepository
	remote        repositories.DocumentStore
	oracle        connectivity.Oracle

	ownerID    string
	deviceID   string
	metrics    *metrics.Metrics
	heartbeats repositories.HeartbeatRepository

	now func() time.Time

	mu   sync.Mutex
	last *ReconcileResult
}

func NewSyncEngine(
	beneficiaries repositories.BeneficiaryRepository,
	children repositories.ChildRepository,
	queue repositories.SyncQueueRepository,
	remote repositories.DocumentStore,
	oracle connectivity.Oracle,
	cfg SyncEngineConfig,
) *SyncEngine {
	ownerID := cfg.OwnerID
	if ownerID == "" {
		ownerID = DefaultOwnerID
	}
	return &SyncEngine{
		beneficiaries: beneficiaries,
		children:      children,
		queue:         queue,
		remote:        remote,
		oracle:        oracle,
		ownerID:       ownerID,
		deviceID:      cfg.DeviceID,
		metrics:       cfg.Metrics,
		heartbeats:    cfg.Heartbeats,
		now:           time.Now,
	}
}

// GenerateBeneficiaryID returns BEN-<yyyyMMddHHmmss>-<4 random digits>.
func GenerateBeneficiaryID(now time.Time) string {
	return fmt.Sprintf("BEN-%s-%04d", now.Format("20060102150405"), 1000+rand.IntN(9000))
}

// Save creates a record. The local write always happens first; the remote
// write is attempted only when online and its failure only changes the
// outcome to queued.
func (e *SyncEngine) Save(ctx context.Context, b *models.Beneficiary, children []models.Child) (*SaveResult, error) {
	if missing := utils.MissingFields(b); len(missing) > 0 {
		return nil, errors.New(errors.ErrValidation, "missing required fields: "+strings.Join(missing, ", "))
	}

	now := e.now().Truncate(time.Millisecond)
	b.ID = GenerateBeneficiaryID(now)
	if b.UserID == "" {
		b.UserID = e.ownerID
	}
	b.Status = models.StatusOrDefault(string(b.Status))
	b.IsSynced = false
	b.SyncAttempts = 0
	b.LastSyncAttempt = nil
	b.CreatedAt = now
	b.UpdatedAt = now
	if err := b.EncodeChildren(children); err != nil {
		return nil, errors.Wrap(errors.ErrValidation, "invalid children", err)
	}

	if err := e.beneficiaries.Upsert(ctx, b); err != nil {
		e.metrics.Operation("save", metrics.ResultFailed)
		return nil, errors.Wrap(errors.ErrDatabase, "failed to save beneficiary", err)
	}
	if len(children) > 0 {
		if err := e.children.ReplaceChildren(ctx, b.ID, children); err != nil {
			e.metrics.Operation("save", metrics.ResultFailed)
			return nil, errors.Wrap(errors.ErrDatabase, "failed to save children", err)
		}
	}

	if e.oracle.IsAvailable() {
		err := e.SyncOne(ctx, b.ID)
		if err == nil {
			e.metrics.Operation("save", metrics.ResultSynced)
			logging.Info("beneficiary saved and synced", logging.Fields{"beneficiary_id": b.ID})
			return &SaveResult{ID: b.ID, Outcome: OutcomeSynced}, nil
		}
		logging.Error("immediate sync failed, queueing", err, logging.Fields{"beneficiary_id": b.ID})
	}

	// The record is already committed; a cancelled caller must not lose the
	// queue entry.
	if err := e.enqueueSnapshot(context.WithoutCancel(ctx), models.OperationCreate, b); err != nil {
		e.metrics.Operation("save", metrics.ResultFailed)
		return nil, err
	}

	e.metrics.Operation("save", metrics.ResultQueued)
	logging.Info("beneficiary saved offline", logging.Fields{"beneficiary_id": b.ID})
	return &SaveResult{ID: b.ID, Outcome: OutcomeQueued}, nil
}

// Update applies patch, marks the record dirty and queues an UPDATE before
// trying to sync it.
func (e *SyncEngine) Update(ctx context.Context, id string, patch *models.BeneficiaryPatch) (Outcome, error) {
	b, err := e.getRecord(ctx, id)
	if err != nil {
		return "", err
	}

	patch.Apply(b)
	if missing := utils.MissingFields(b); len(missing) > 0 {
		return "", errors.New(errors.ErrValidation, "missing required fields: "+strings.Join(missing, ", "))
	}
	if patch.Children != nil {
		if err := b.EncodeChildren(*patch.Children); err != nil {
			return "", errors.Wrap(errors.ErrValidation, "invalid children", err)
		}
	}

	b.Status = models.StatusOrDefault(string(b.Status))
	b.IsSynced = false
	b.SyncAttempts = 0
	b.UpdatedAt = e.nextUpdatedAt(b.UpdatedAt)

	if err := e.beneficiaries.Upsert(ctx, b); err != nil {
		e.metrics.Operation("update", metrics.ResultFailed)
		return "", errors.Wrap(errors.ErrDatabase, "failed to update beneficiary", err)
	}
	if patch.Children != nil {
		if err := e.children.ReplaceChildren(ctx, b.ID, *patch.Children); err != nil {
			e.metrics.Operation("update", metrics.ResultFailed)
			return "", errors.Wrap(errors.ErrDatabase, "failed to update children", err)
		}
	}
	if err := e.enqueueSnapshot(context.WithoutCancel(ctx), models.OperationUpdate, b); err != nil {
		e.metrics.Operation("update", metrics.ResultFailed)
		return "", err
	}

	if e.oracle.IsAvailable() {
		err := e.SyncOne(ctx, b.ID)
		if err == nil {
			e.metrics.Operation("update", metrics.ResultSynced)
			return OutcomeSynced, nil
		}
		logging.Error("immediate sync after update failed", err, logging.Fields{"beneficiary_id": b.ID})
	}

	e.metrics.Operation("update", metrics.ResultQueued)
	return OutcomeQueued, nil
}

// Delete removes the record, its children and its queue entries locally.
// The remote delete is attempted when online; when skipped or failed a
// DELETE entry is queued.
func (e *SyncEngine) Delete(ctx context.Context, id string) (Outcome, error) {
	b, err := e.getRecord(ctx, id)
	if err != nil {
		return "", err
	}

	if err := e.beneficiaries.Delete(ctx, id); err != nil && !stderrors.Is(err, repositories.ErrNotFound) {
		e.metrics.Operation("delete", metrics.ResultFailed)
		return "", errors.Wrap(errors.ErrDatabase, "failed to delete beneficiary", err)
	}
	if err := e.queue.DeleteFor(ctx, id, models.DataTypeBeneficiary); err != nil {
		e.metrics.Operation("delete", metrics.ResultFailed)
		return "", errors.Wrap(errors.ErrDatabase, "failed to clear queue entries", err)
	}

	owner := e.summaryOwner(b.UserID)
	if e.oracle.IsAvailable() {
		err := e.deleteRemote(ctx, id, owner)
		if err == nil {
			e.metrics.Operation("delete", metrics.ResultSynced)
			logging.Info("beneficiary deleted", logging.Fields{"beneficiary_id": id})
			return OutcomeSynced, nil
		}
		logging.Error("remote delete failed, queueing", err, logging.Fields{"beneficiary_id": id})
	}

	// The record is gone locally, so the entry carries the summary owner.
	data, err := json.Marshal(deleteTarget{UserID: owner})
	if err != nil {
		return "", errors.Wrap(errors.ErrInternal, "failed to encode delete", err)
	}
	entry := &models.QueueEntry{
		Operation: models.OperationDelete,
		DataType:  models.DataTypeBeneficiary,
		DataID:    id,
		DataJSON:  string(data),
		Priority:  deletePriority,
		CreatedAt: e.now(),
	}
	if err := e.queue.Upsert(context.WithoutCancel(ctx), entry); err != nil {
		e.metrics.Operation("delete", metrics.ResultFailed)
		return "", errors.Wrap(errors.ErrDatabase, "failed to queue delete", err)
	}

	e.metrics.Operation("delete", metrics.ResultQueued)
	logging.Info("beneficiary deleted locally, remote delete queued", logging.Fields{"beneficiary_id": id})
	return OutcomeQueued, nil
}

// SyncOne pushes the current local copy of id to the remote store. On
// success the record is marked synced and its queue entries cleared, unless
// it was edited while the write was in flight. On failure its attempts are
// incremented and the error returned.
func (e *SyncEngine) SyncOne(ctx context.Context, id string) error {
	b, err := e.getRecord(ctx, id)
	if err != nil {
		return err
	}

	children, err := e.children.ListByBeneficiary(ctx, id)
	if err != nil {
		return errors.Wrap(errors.ErrDatabase, "failed to load children", err)
	}

	if err := e.pushRecord(ctx, b, children); err != nil {
		e.metrics.Operation("sync_one", metrics.ResultFailed)
		if incErr := e.beneficiaries.IncrementSyncAttempts(context.WithoutCancel(ctx), id, e.now()); incErr != nil {
			logging.Error("failed to record sync attempt", incErr, logging.Fields{"beneficiary_id": id})
		}
		return errors.Wrap(errors.ErrSyncFailed, "remote write failed for "+id, err)
	}

	marked, err := e.beneficiaries.MarkSynced(ctx, id, b.UpdatedAt)
	if err != nil {
		return errors.Wrap(errors.ErrDatabase, "failed to mark beneficiary synced", err)
	}
	if !marked {
		logging.Debug("record changed during sync, leaving dirty", logging.Fields{"beneficiary_id": id})
		e.metrics.Operation("sync_one", metrics.ResultQueued)
		return nil
	}

	if err := e.queue.DeleteFor(ctx, id, models.DataTypeBeneficiary); err != nil {
		return errors.Wrap(errors.ErrDatabase, "failed to clear queue entries", err)
	}

	e.metrics.Operation("sync_one", metrics.ResultSynced)
	return nil
}

// ReconcileAll drives the local store toward the remote one: first every
// dirty record under the attempts cap, then one batch of queue entries.
// Individual failures are counted, never returned; only a local store
// failure aborts the pass.
func (e *SyncEngine) ReconcileAll(ctx context.Context) (*ReconcileResult, error) {
	result := &ReconcileResult{StartedAt: e.now()}
	start := time.Now()

	if !e.oracle.IsAvailable() {
		result.Skipped = true
		e.metrics.Operation("reconcile", metrics.ResultSkipped)
		logging.Debug("reconcile skipped, offline")
		e.remember(result)
		return result, nil
	}

	unsynced, err := e.beneficiaries.ListUnsynced(ctx, MaxSyncAttempts)
	if err != nil {
		return nil, errors.Wrap(errors.ErrDatabase, "failed to list unsynced records", err)
	}
	for _, b := range unsynced {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := e.SyncOne(ctx, b.ID); err != nil {
			result.RecordsFailed++
			logging.Error("reconcile: record failed", err, logging.Fields{"beneficiary_id": b.ID})
			continue
		}
		result.RecordsSynced++
	}

	batch, err := e.queue.DequeueBatch(ctx, QueueBatchSize, MaxSyncAttempts)
	if err != nil {
		return nil, errors.Wrap(errors.ErrDatabase, "failed to read sync queue", err)
	}
	for _, entry := range batch {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := e.replay(ctx, entry); err != nil {
			result.QueueFailed++
			logging.Error("reconcile: queue entry failed", err, logging.Fields{
				"job_id":    entry.JobID,
				"operation": string(entry.Operation),
				"data_id":   entry.DataID,
			})
			if incErr := e.queue.IncrementAttempts(context.WithoutCancel(ctx), entry.JobID); incErr != nil && !stderrors.Is(incErr, repositories.ErrNotFound) {
				logging.Error("failed to record queue attempt", incErr, logging.Fields{"job_id": entry.JobID})
			}
			continue
		}
		result.QueueProcessed++
	}

	result.Duration = time.Since(start)
	e.refreshBacklog(ctx, result)
	e.metrics.ReconcileDuration(result.Duration)
	e.metrics.Operation("reconcile", result.outcome())
	e.publishHeartbeat(ctx, result)
	e.remember(result)

	logging.Info("reconcile finished", logging.Fields{
		"records_synced":  result.RecordsSynced,
		"records_failed":  result.RecordsFailed,
		"queue_processed": result.QueueProcessed,
		"queue_failed":    result.QueueFailed,
		"pending":         result.Pending,
		"duration_ms":     result.Duration.Milliseconds(),
	})
	return result, nil
}

// ReconcileJob is the scheduler body. Any per-item failure is reported as a
// retryable error so the scheduler backs off and tries again.
func (e *SyncEngine) ReconcileJob(ctx context.Context) error {
	result, err := e.ReconcileAll(ctx)
	if err != nil {
		return err
	}
	if result.Failures() > 0 {
		return errors.New(errors.ErrSyncFailed, fmt.Sprintf("%d items failed to sync", result.Failures()))
	}
	return nil
}

func (e *SyncEngine) replay(ctx context.Context, entry *models.QueueEntry) error {
	switch entry.Operation {
	case models.OperationCreate, models.OperationUpdate:
		var snapshot models.Beneficiary
		if err := json.Unmarshal([]byte(entry.DataJSON), &snapshot); err != nil {
			return fmt.Errorf("failed to decode snapshot: %w", err)
		}
		if snapshot.ID == "" {
			snapshot.ID = entry.DataID
		}
		if snapshot.ID != entry.DataID {
			return fmt.Errorf("snapshot id %s does not match entry %s", snapshot.ID, entry.DataID)
		}

		if err := e.restoreSnapshot(ctx, &snapshot); err != nil {
			return err
		}
		if err := e.SyncOne(ctx, snapshot.ID); err != nil {
			return err
		}
		if err := e.queue.Delete(ctx, entry.JobID); err != nil && !stderrors.Is(err, repositories.ErrNotFound) {
			return fmt.Errorf("failed to delete queue entry: %w", err)
		}
		return nil

	case models.OperationDelete:
		owner := e.ownerID
		if entry.DataJSON != "" {
			var target deleteTarget
			if err := json.Unmarshal([]byte(entry.DataJSON), &target); err != nil {
				return fmt.Errorf("failed to decode delete target: %w", err)
			}
			owner = e.summaryOwner(target.UserID)
		}
		if err := e.deleteRemote(ctx, entry.DataID, owner); err != nil {
			return err
		}
		if err := e.queue.Delete(ctx, entry.JobID); err != nil && !stderrors.Is(err, repositories.ErrNotFound) {
			return fmt.Errorf("failed to delete queue entry: %w", err)
		}
		return nil

	default:
		return fmt.Errorf("unknown queue operation %q", entry.Operation)
	}
}

// restoreSnapshot writes a queued snapshot back to the local store when the
// local copy is missing or older. A newer local edit always wins.
func (e *SyncEngine) restoreSnapshot(ctx context.Context, snapshot *models.Beneficiary) error {
	local, err := e.beneficiaries.GetByID(ctx, snapshot.ID)
	if err != nil && !stderrors.Is(err, repositories.ErrNotFound) {
		return fmt.Errorf("failed to load local copy: %w", err)
	}
	if local != nil && local.UpdatedAt.UnixMilli() >= snapshot.UpdatedAt.UnixMilli() {
		return nil
	}

	snapshot.IsSynced = false
	if local != nil {
		snapshot.SyncAttempts = local.SyncAttempts
		snapshot.LastSyncAttempt = local.LastSyncAttempt
	}
	if err := e.beneficiaries.Upsert(ctx, snapshot); err != nil {
		return fmt.Errorf("failed to restore snapshot: %w", err)
	}
	if err := e.children.ReplaceChildren(ctx, snapshot.ID, snapshot.DecodeChildren()); err != nil {
		return fmt.Errorf("failed to restore children: %w", err)
	}
	return nil
}

func (e *SyncEngine) pushRecord(ctx context.Context, b *models.Beneficiary, children []models.Child) error {
	if err := e.remote.Put(ctx, beneficiariesPath+"/"+b.ID, models.NewBeneficiaryDocument(b, children)); err != nil {
		return err
	}
	summaryPath := userBeneficiariesPath + "/" + e.summaryOwner(b.UserID) + "/" + b.ID
	return e.remote.Put(ctx, summaryPath, models.NewBeneficiarySummary(b))
}

func (e *SyncEngine) deleteRemote(ctx context.Context, id, owner string) error {
	if err := e.remote.Delete(ctx, beneficiariesPath+"/"+id); err != nil {
		return err
	}
	return e.remote.Delete(ctx, userBeneficiariesPath+"/"+owner+"/"+id)
}

func (e *SyncEngine) enqueueSnapshot(ctx context.Context, op models.QueueOperation, b *models.Beneficiary) error {
	data, err := json.Marshal(b)
	if err != nil {
		return errors.Wrap(errors.ErrInternal, "failed to encode snapshot", err)
	}

	entry := &models.QueueEntry{
		Operation: op,
		DataType:  models.DataTypeBeneficiary,
		DataID:    b.ID,
		DataJSON:  string(data),
		CreatedAt: e.now(),
	}
	if err := e.queue.Upsert(ctx, entry); err != nil {
		return errors.Wrap(errors.ErrDatabase, "failed to queue "+strings.ToLower(string(op)), err)
	}
	return nil
}

func (e *SyncEngine) getRecord(ctx context.Context, id string) (*models.Beneficiary, error) {
	b, err := e.beneficiaries.GetByID(ctx, id)
	if stderrors.Is(err, repositories.ErrNotFound) {
		return nil, errors.New(errors.ErrNotFound, "beneficiary "+id+" not found")
	}
	if err != nil {
		return nil, errors.Wrap(errors.ErrDatabase, "failed to load beneficiary", err)
	}
	return b, nil
}

func (e *SyncEngine) summaryOwner(userID string) string {
	if userID == "" {
		return e.ownerID
	}
	return userID
}

// nextUpdatedAt returns a stamp strictly after prev at millisecond precision,
// which is what the local store keeps.
func (e *SyncEngine) nextUpdatedAt(prev time.Time) time.Time {
	now := e.now().Truncate(time.Millisecond)
	if now.UnixMilli() <= prev.UnixMilli() {
		return time.UnixMilli(prev.UnixMilli() + 1)
	}
	return now
}

func (e *SyncEngine) refreshBacklog(ctx context.Context, result *ReconcileResult) {
	unsynced, err := e.beneficiaries.CountUnsynced(ctx)
	if err != nil {
		logging.Error("failed to count unsynced records", err)
	}
	pending, err := e.queue.Count(ctx)
	if err != nil {
		logging.Error("failed to count queue entries", err)
	}
	result.Unsynced = unsynced
	result.Pending = pending
	e.metrics.Backlog(pending, unsynced)
}

func (e *SyncEngine) publishHeartbeat(ctx context.Context, result *ReconcileResult) {
	if e.heartbeats == nil || e.deviceID == "" {
		return
	}
	hb := &models.DeviceHeartbeat{
		DeviceID:   e.deviceID,
		OwnerID:    e.ownerID,
		Status:     string(models.DeviceOnline),
		Unsynced:   result.Unsynced,
		Pending:    result.Pending,
		LastSyncAt: result.StartedAt,
		LastResult: result.outcome(),
	}
	if err := e.heartbeats.Publish(ctx, hb); err != nil {
		logging.Error("failed to publish heartbeat", err, logging.Fields{"device_id": e.deviceID})
	}
}

func (e *SyncEngine) remember(result *ReconcileResult) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.last = result
}
