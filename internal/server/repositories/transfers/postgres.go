// Package transfers is the PostgreSQL record index for committed transfers.
package transfers

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/gophxfer/internal/dbx"
	"github.com/dmitrijs2005/gophxfer/internal/server/models"
)

// PostgresRepository implements transfer metadata storage over a dbx.DBTX
// (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Save upserts the transfer row by id.
func (r *PostgresRepository) Save(ctx context.Context, t *models.Transfer) error {
	query := `
		INSERT INTO transfers (id, size, created_at, expires_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id)
		DO UPDATE SET
			size = EXCLUDED.size,
			created_at = EXCLUDED.created_at,
			expires_at = EXCLUDED.expires_at;
	`
	res, err := r.db.ExecContext(ctx, query, t.ID, t.Size, t.CreatedAt.UTC(), t.ExpiresAt.UTC())
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if n != 1 {
		return fmt.Errorf("unexpected rows affected: %d", n)
	}
	return nil
}

// Delete removes the row for id. A missing row is not an error.
func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	query := `DELETE FROM transfers WHERE id=$1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("failed to delete transfer: %w", err)
	}
	return nil
}

// List returns every stored transfer.
func (r *PostgresRepository) List(ctx context.Context) ([]*models.Transfer, error) {
	query := `SELECT id, size, created_at, expires_at FROM transfers ORDER BY created_at`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to select transfers: %w", err)
	}
	defer rows.Close()

	var result []*models.Transfer
	for rows.Next() {
		var item models.Transfer
		if err := rows.Scan(&item.ID, &item.Size, &item.CreatedAt, &item.ExpiresAt); err != nil {
			return nil, err
		}
		result = append(result, &item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
