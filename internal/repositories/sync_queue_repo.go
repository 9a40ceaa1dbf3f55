package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/prudhvinik1/fieldsync/internal/models"
)

const queueColumns = `job_id, operation, data_type, data_id, data_json, priority, created_at, attempts`

type SQLiteSyncQueueRepository struct {
	db *sql.DB
}

func NewSQLiteSyncQueueRepository(db *sql.DB) *SQLiteSyncQueueRepository {
	return &SQLiteSyncQueueRepository{db: db}
}

// Enqueue appends entry. Entries for the same record are never merged here.
func (r *SQLiteSyncQueueRepository) Enqueue(ctx context.Context, entry *models.QueueEntry) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}

	result, err := r.db.ExecContext(ctx,
		`INSERT INTO sync_queue (operation, data_type, data_id, data_json, priority, created_at, attempts)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		string(entry.Operation), entry.DataType, entry.DataID, entry.DataJSON,
		entry.Priority, toMillis(entry.CreatedAt), entry.Attempts)
	if err != nil {
		return fmt.Errorf("failed to enqueue: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read job id: %w", err)
	}
	entry.JobID = id
	return nil
}

// Upsert replaces the pending entry with the same data id, type and
// operation, or appends when there is none. The replaced entry keeps its job
// id and age; its snapshot, priority and attempts are overwritten. Duplicates
// left behind by Enqueue collapse into the oldest one.
func (r *SQLiteSyncQueueRepository) Upsert(ctx context.Context, entry *models.QueueEntry) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var (
		jobID     int64
		createdAt int64
	)
	err = tx.QueryRowContext(ctx,
		`SELECT job_id, created_at FROM sync_queue
		 WHERE data_id = ? AND data_type = ? AND operation = ?
		 ORDER BY job_id ASC LIMIT 1`,
		entry.DataID, entry.DataType, string(entry.Operation)).Scan(&jobID, &createdAt)

	switch {
	case errors.Is(err, sql.ErrNoRows):
		if entry.CreatedAt.IsZero() {
			entry.CreatedAt = time.Now()
		}
		result, err := tx.ExecContext(ctx,
			`INSERT INTO sync_queue (operation, data_type, data_id, data_json, priority, created_at, attempts)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			string(entry.Operation), entry.DataType, entry.DataID, entry.DataJSON,
			entry.Priority, toMillis(entry.CreatedAt), entry.Attempts)
		if err != nil {
			return fmt.Errorf("failed to enqueue: %w", err)
		}
		if jobID, err = result.LastInsertId(); err != nil {
			return fmt.Errorf("failed to read job id: %w", err)
		}
	case err != nil:
		return fmt.Errorf("failed to find queue entry: %w", err)
	default:
		_, err := tx.ExecContext(ctx,
			`UPDATE sync_queue SET data_json = ?, priority = ?, attempts = ? WHERE job_id = ?`,
			entry.DataJSON, entry.Priority, entry.Attempts, jobID)
		if err != nil {
			return fmt.Errorf("failed to update queue entry: %w", err)
		}
		_, err = tx.ExecContext(ctx,
			`DELETE FROM sync_queue WHERE data_id = ? AND data_type = ? AND operation = ? AND job_id <> ?`,
			entry.DataID, entry.DataType, string(entry.Operation), jobID)
		if err != nil {
			return fmt.Errorf("failed to collapse queue entries: %w", err)
		}
		entry.CreatedAt = fromMillis(createdAt)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit queue entry: %w", err)
	}
	entry.JobID = jobID
	return nil
}

// DequeueBatch returns up to limit entries by priority, then age. Entries
// are not removed. maxAttempts <= 0 disables the attempts cap.
func (r *SQLiteSyncQueueRepository) DequeueBatch(ctx context.Context, limit, maxAttempts int) ([]*models.QueueEntry, error) {
	query := `SELECT ` + queueColumns + ` FROM sync_queue
	          WHERE (? <= 0 OR attempts < ?)
	          ORDER BY priority DESC, created_at ASC, job_id ASC
	          LIMIT ?`
	return r.query(ctx, query, maxAttempts, maxAttempts, limit)
}

func (r *SQLiteSyncQueueRepository) List(ctx context.Context) ([]*models.QueueEntry, error) {
	query := `SELECT ` + queueColumns + ` FROM sync_queue ORDER BY priority DESC, created_at ASC, job_id ASC`
	return r.query(ctx, query)
}

func (r *SQLiteSyncQueueRepository) ListFor(ctx context.Context, dataID, dataType string) ([]*models.QueueEntry, error) {
	query := `SELECT ` + queueColumns + ` FROM sync_queue WHERE data_id = ? AND data_type = ? ORDER BY job_id ASC`
	return r.query(ctx, query, dataID, dataType)
}

func (r *SQLiteSyncQueueRepository) DeleteFor(ctx context.Context, dataID, dataType string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM sync_queue WHERE data_id = ? AND data_type = ?`, dataID, dataType)
	if err != nil {
		return fmt.Errorf("failed to delete queue entries: %w", err)
	}
	return nil
}

func (r *SQLiteSyncQueueRepository) Delete(ctx context.Context, jobID int64) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM sync_queue WHERE job_id = ?`, jobID)
	if err != nil {
		return fmt.Errorf("failed to delete queue entry: %w", err)
	}
	return requireRow(result)
}

func (r *SQLiteSyncQueueRepository) IncrementAttempts(ctx context.Context, jobID int64) error {
	result, err := r.db.ExecContext(ctx, `UPDATE sync_queue SET attempts = attempts + 1 WHERE job_id = ?`, jobID)
	if err != nil {
		return fmt.Errorf("failed to increment attempts: %w", err)
	}
	return requireRow(result)
}

func (r *SQLiteSyncQueueRepository) ResetAttempts(ctx context.Context) (int64, error) {
	result, err := r.db.ExecContext(ctx, `UPDATE sync_queue SET attempts = 0 WHERE attempts > 0`)
	if err != nil {
		return 0, fmt.Errorf("failed to reset attempts: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to reset attempts: %w", err)
	}
	return rows, nil
}

func (r *SQLiteSyncQueueRepository) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sync_queue`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count queue entries: %w", err)
	}
	return count, nil
}

func (r *SQLiteSyncQueueRepository) Clear(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM sync_queue`); err != nil {
		return fmt.Errorf("failed to clear queue: %w", err)
	}
	return nil
}

func (r *SQLiteSyncQueueRepository) query(ctx context.Context, query string, args ...any) ([]*models.QueueEntry, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query queue: %w", err)
	}
	defer rows.Close()

	entries := []*models.QueueEntry{}
	for rows.Next() {
		var (
			e         models.QueueEntry
			operation string
			createdAt int64
		)
		err := rows.Scan(&e.JobID, &operation, &e.DataType, &e.DataID, &e.DataJSON, &e.Priority, &createdAt, &e.Attempts)
		if err != nil {
			return nil, fmt.Errorf("failed to scan queue entry: %w", err)
		}
		e.Operation = models.QueueOperation(operation)
		e.CreatedAt = fromMillis(createdAt)
		entries = append(entries, &e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating queue: %w", err)
	}
	return entries, nil
}

func requireRow(result sql.Result) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}
