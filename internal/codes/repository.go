package codes

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/campus-attendance/backend/internal/models"
)

// Repository handles admission_tokens persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an admission token repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// GetActiveByDate returns the active token for a date, or nil if none.
func (r *Repository) GetActiveByDate(ctx context.Context, date time.Time) (*models.AdmissionToken, error) {
	const q = `SELECT id, code, date, is_active, created_at FROM admission_tokens WHERE date = $1 AND is_active`
	var t models.AdmissionToken
	err := r.pool.QueryRow(ctx, q, date).Scan(&t.ID, &t.Code, &t.Date, &t.IsActive, &t.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// ListRange returns tokens with from <= date <= to, ordered by date.
func (r *Repository) ListRange(ctx context.Context, from, to time.Time) ([]models.AdmissionToken, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, code, date, is_active, created_at FROM admission_tokens WHERE date BETWEEN $1 AND $2 ORDER BY date`,
		from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.AdmissionToken
	for rows.Next() {
		var t models.AdmissionToken
		if err := rows.Scan(&t.ID, &t.Code, &t.Date, &t.IsActive, &t.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, t)
	}
	return list, rows.Err()
}

// CreateBatch inserts tokens in one transaction. Dates that gained a token
// concurrently are skipped; any other failure rolls back the whole batch.
func (r *Repository) CreateBatch(ctx context.Context, tokens []models.AdmissionToken) ([]models.AdmissionToken, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	const q = `INSERT INTO admission_tokens (id, code, date, is_active)
		VALUES (gen_random_uuid(), $1, $2, $3)
		ON CONFLICT (date) DO NOTHING
		RETURNING id, created_at`
	created := make([]models.AdmissionToken, 0, len(tokens))
	for _, t := range tokens {
		err := tx.QueryRow(ctx, q, t.Code, t.Date, t.IsActive).Scan(&t.ID, &t.CreatedAt)
		if errors.Is(err, pgx.ErrNoRows) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("insert token for %s: %w", t.Date.Format("2006-01-02"), err)
		}
		created = append(created, t)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return created, nil
}
