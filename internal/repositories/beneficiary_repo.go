package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/prudhvinik1/fieldsync/internal/logging"
	"github.com/prudhvinik1/fieldsync/internal/models"
)

const beneficiaryColumns = `id, user_id, name, age, cnic, date_of_birth, gender, phone_number,
	temporary_address, permanent_address, district, taluka, union_council, issue_date, expire_date,
	status, pregnancy_week, gravida, para, delivery_date, children_data, proof_uris,
	is_synced, sync_attempts, last_sync_attempt, created_at, updated_at`

type SQLiteBeneficiaryRepository struct {
	db   *sql.DB
	feed *ChangeFeed
}

func NewSQLiteBeneficiaryRepository(db *sql.DB, feed *ChangeFeed) *SQLiteBeneficiaryRepository {
	return &SQLiteBeneficiaryRepository{db: db, feed: feed}
}

// Upsert inserts b or replaces every column of the existing row. It updates
// in place so the children of an existing record survive.
func (r *SQLiteBeneficiaryRepository) Upsert(ctx context.Context, b *models.Beneficiary) error {
	query := `INSERT INTO beneficiaries (` + beneficiaryColumns + `)
	          VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	          ON CONFLICT(id) DO UPDATE SET
	              user_id = excluded.user_id,
	              name = excluded.name,
	              age = excluded.age,
	              cnic = excluded.cnic,
	              date_of_birth = excluded.date_of_birth,
	              gender = excluded.gender,
	              phone_number = excluded.phone_number,
	              temporary_address = excluded.temporary_address,
	              permanent_address = excluded.permanent_address,
	              district = excluded.district,
	              taluka = excluded.taluka,
	              union_council = excluded.union_council,
	              issue_date = excluded.issue_date,
	              expire_date = excluded.expire_date,
	              status = excluded.status,
	              pregnancy_week = excluded.pregnancy_week,
	              gravida = excluded.gravida,
	              para = excluded.para,
	              delivery_date = excluded.delivery_date,
	              children_data = excluded.children_data,
	              proof_uris = excluded.proof_uris,
	              is_synced = excluded.is_synced,
	              sync_attempts = excluded.sync_attempts,
	              last_sync_attempt = excluded.last_sync_attempt,
	              created_at = excluded.created_at,
	              updated_at = excluded.updated_at`

	_, err := r.db.ExecContext(ctx, query,
		b.ID, b.UserID, b.Name, b.Age, b.CNIC, b.DateOfBirth, b.Gender, b.PhoneNumber,
		b.TemporaryAddress, b.PermanentAddress, b.District, b.Taluka, b.UnionCouncil,
		b.IssueDate, b.ExpireDate, string(b.Status), b.PregnancyWeek, b.Gravida, b.Para,
		b.DeliveryDate, b.ChildrenData, b.ProofURIs,
		b.IsSynced, b.SyncAttempts, nullableMillis(b.LastSyncAttempt),
		toMillis(b.CreatedAt), toMillis(b.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert beneficiary: %w", err)
	}

	r.feed.Notify()
	return nil
}

func (r *SQLiteBeneficiaryRepository) GetByID(ctx context.Context, id string) (*models.Beneficiary, error) {
	query := `SELECT ` + beneficiaryColumns + ` FROM beneficiaries WHERE id = ?`

	b, err := scanBeneficiary(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get beneficiary: %w", err)
	}
	return b, nil
}

// List returns matching records, newest first.
func (r *SQLiteBeneficiaryRepository) List(ctx context.Context, filter models.BeneficiaryFilter) ([]*models.Beneficiary, error) {
	var (
		where []string
		args  []any
	)
	if filter.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(filter.Status))
	}
	if filter.UserID != "" {
		where = append(where, "user_id = ?")
		args = append(args, filter.UserID)
	}
	if q := strings.TrimSpace(filter.Query); q != "" {
		pattern := "%" + escapeLike(strings.ToLower(q)) + "%"
		where = append(where, `(LOWER(name) LIKE ? ESCAPE '\' OR LOWER(cnic) LIKE ? ESCAPE '\' OR LOWER(phone_number) LIKE ? ESCAPE '\')`)
		args = append(args, pattern, pattern, pattern)
	}

	query := `SELECT ` + beneficiaryColumns + ` FROM beneficiaries`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, id DESC"

	return r.query(ctx, query, args...)
}

// Watch emits the current list, then a fresh list after every local store
// write, until ctx is done.
func (r *SQLiteBeneficiaryRepository) Watch(ctx context.Context, filter models.BeneficiaryFilter) (<-chan []*models.Beneficiary, error) {
	changes, cancel := r.feed.Subscribe()

	initial, err := r.List(ctx, filter)
	if err != nil {
		cancel()
		return nil, err
	}

	out := make(chan []*models.Beneficiary, 1)
	out <- initial

	go func() {
		defer close(out)
		defer cancel()
		for {
			select {
			case <-ctx.Done():
				return
			case <-changes:
			}

			list, err := r.List(ctx, filter)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				logging.Error("watch: failed to reload beneficiaries", err)
				continue
			}

			select {
			case out <- list:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, nil
}

// Delete removes the record. Children go with it through the foreign key.
func (r *SQLiteBeneficiaryRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM beneficiaries WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete beneficiary: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete beneficiary: %w", err)
	}
	if rows == 0 {
		return ErrNotFound
	}

	r.feed.Notify()
	return nil
}

func (r *SQLiteBeneficiaryRepository) DeleteAll(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM beneficiaries`); err != nil {
		return fmt.Errorf("failed to delete beneficiaries: %w", err)
	}
	r.feed.Notify()
	return nil
}

func (r *SQLiteBeneficiaryRepository) CountUnsynced(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM beneficiaries WHERE is_synced = 0`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count unsynced beneficiaries: %w", err)
	}
	return count, nil
}

// ListUnsynced returns dirty records that have failed fewer than maxAttempts
// times, oldest first.
func (r *SQLiteBeneficiaryRepository) ListUnsynced(ctx context.Context, maxAttempts int) ([]*models.Beneficiary, error) {
	query := `SELECT ` + beneficiaryColumns + ` FROM beneficiaries
	          WHERE is_synced = 0 AND sync_attempts < ?
	          ORDER BY created_at ASC`
	return r.query(ctx, query, maxAttempts)
}

// MarkSynced flags the record as synced only if it has not been edited since
// updatedAt. It reports whether the row was marked.
func (r *SQLiteBeneficiaryRepository) MarkSynced(ctx context.Context, id string, updatedAt time.Time) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE beneficiaries SET is_synced = 1 WHERE id = ? AND updated_at = ?`,
		id, toMillis(updatedAt))
	if err != nil {
		return false, fmt.Errorf("failed to mark beneficiary synced: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to mark beneficiary synced: %w", err)
	}
	if rows > 0 {
		r.feed.Notify()
	}
	return rows > 0, nil
}

func (r *SQLiteBeneficiaryRepository) IncrementSyncAttempts(ctx context.Context, id string, at time.Time) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE beneficiaries SET sync_attempts = sync_attempts + 1, last_sync_attempt = ? WHERE id = ?`,
		toMillis(at), id)
	if err != nil {
		return fmt.Errorf("failed to increment sync attempts: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to increment sync attempts: %w", err)
	}
	if rows == 0 {
		return ErrNotFound
	}

	r.feed.Notify()
	return nil
}

// ResetSyncAttempts makes every dirty record eligible for reconciliation
// again. It returns the number of records reset.
func (r *SQLiteBeneficiaryRepository) ResetSyncAttempts(ctx context.Context) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE beneficiaries SET sync_attempts = 0 WHERE is_synced = 0 AND sync_attempts > 0`)
	if err != nil {
		return 0, fmt.Errorf("failed to reset sync attempts: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to reset sync attempts: %w", err)
	}
	if rows > 0 {
		r.feed.Notify()
	}
	return rows, nil
}

func (r *SQLiteBeneficiaryRepository) query(ctx context.Context, query string, args ...any) ([]*models.Beneficiary, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query beneficiaries: %w", err)
	}
	defer rows.Close()

	beneficiaries := []*models.Beneficiary{}
	for rows.Next() {
		b, err := scanBeneficiary(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan beneficiary: %w", err)
		}
		beneficiaries = append(beneficiaries, b)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating beneficiaries: %w", err)
	}
	return beneficiaries, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBeneficiary(row rowScanner) (*models.Beneficiary, error) {
	var (
		b               models.Beneficiary
		status          string
		lastSyncAttempt sql.NullInt64
		createdAt       int64
		updatedAt       int64
	)

	err := row.Scan(
		&b.ID, &b.UserID, &b.Name, &b.Age, &b.CNIC, &b.DateOfBirth, &b.Gender, &b.PhoneNumber,
		&b.TemporaryAddress, &b.PermanentAddress, &b.District, &b.Taluka, &b.UnionCouncil,
		&b.IssueDate, &b.ExpireDate, &status, &b.PregnancyWeek, &b.Gravida, &b.Para,
		&b.DeliveryDate, &b.ChildrenData, &b.ProofURIs,
		&b.IsSynced, &b.SyncAttempts, &lastSyncAttempt, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	b.Status = models.StatusOrDefault(status)
	b.CreatedAt = fromMillis(createdAt)
	b.UpdatedAt = fromMillis(updatedAt)
	if lastSyncAttempt.Valid {
		t := fromMillis(lastSyncAttempt.Int64)
		b.LastSyncAttempt = &t
	}
	return &b, nil
}

func toMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}

func nullableMillis(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: toMillis(*t), Valid: true}
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
