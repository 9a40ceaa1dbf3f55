package repositories

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/prudhvinik1/fieldsync/internal/models"
)

type SQLiteChildRepository struct {
	db   *sql.DB
	feed *ChangeFeed
}

func NewSQLiteChildRepository(db *sql.DB, feed *ChangeFeed) *SQLiteChildRepository {
	return &SQLiteChildRepository{db: db, feed: feed}
}

// ReplaceChildren deletes every child of the beneficiary and inserts the new
// list in one transaction.
func (r *SQLiteChildRepository) ReplaceChildren(ctx context.Context, beneficiaryID string, children []models.Child) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM children WHERE beneficiary_id = ?`, beneficiaryID); err != nil {
		return fmt.Errorf("failed to delete children: %w", err)
	}

	for _, c := range children {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO children (beneficiary_id, name, gender, proof_uris) VALUES (?, ?, ?, ?)`,
			beneficiaryID, c.Name, c.Gender, models.JoinURIs(c.ProofURIs))
		if err != nil {
			return fmt.Errorf("failed to insert child: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit children: %w", err)
	}

	r.feed.Notify()
	return nil
}

func (r *SQLiteChildRepository) ListByBeneficiary(ctx context.Context, beneficiaryID string) ([]models.Child, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT child_id, beneficiary_id, name, gender, proof_uris FROM children
		 WHERE beneficiary_id = ? ORDER BY child_id ASC`, beneficiaryID)
	if err != nil {
		return nil, fmt.Errorf("failed to query children: %w", err)
	}
	defer rows.Close()

	children := []models.Child{}
	for rows.Next() {
		var (
			c    models.Child
			uris string
		)
		if err := rows.Scan(&c.ID, &c.BeneficiaryID, &c.Name, &c.Gender, &uris); err != nil {
			return nil, fmt.Errorf("failed to scan child: %w", err)
		}
		c.ProofURIs = models.SplitURIs(uris)
		children = append(children, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating children: %w", err)
	}
	return children, nil
}
