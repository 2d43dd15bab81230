package deliveries

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/campus-attendance/backend/internal/models"
)

// Repository handles delivery_records persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a delivery records repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const recordColumns = `id, date, recipients, subject, status, COALESCE(error_message,''), COALESCE(archive_key,''), created_at`

func scanRecord(row pgx.Row) (*models.DeliveryRecord, error) {
	var rec models.DeliveryRecord
	var recipients string
	if err := row.Scan(&rec.ID, &rec.Date, &recipients, &rec.Subject, &rec.Status, &rec.ErrorMessage, &rec.ArchiveKey, &rec.CreatedAt); err != nil {
		return nil, err
	}
	if recipients != "" {
		rec.Recipients = strings.Split(recipients, ", ")
	}
	return &rec, nil
}

// Create appends a record and fills its ID and CreatedAt.
func (r *Repository) Create(ctx context.Context, rec *models.DeliveryRecord) error {
	const q = `INSERT INTO delivery_records (date, recipients, subject, status, error_message, archive_key)
		VALUES ($1, $2, $3, $4, NULLIF($5,''), NULLIF($6,''))
		RETURNING id, created_at`
	err := r.pool.QueryRow(ctx, q, rec.Date, strings.Join(rec.Recipients, ", "), rec.Subject, rec.Status, rec.ErrorMessage, rec.ArchiveKey).
		Scan(&rec.ID, &rec.CreatedAt)
	if err != nil {
		return models.Storage("create delivery record", err)
	}
	return nil
}

// List returns the most recent records, newest first.
func (r *Repository) List(ctx context.Context, limit int) ([]models.DeliveryRecord, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+recordColumns+` FROM delivery_records ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, models.Storage("list delivery records", err)
	}
	defer rows.Close()
	list := []models.DeliveryRecord{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, models.Storage("list delivery records", err)
		}
		list = append(list, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, models.Storage("list delivery records", err)
	}
	return list, nil
}

// LatestArchived returns the newest record of date that has an archive, or nil.
func (r *Repository) LatestArchived(ctx context.Context, date time.Time) (*models.DeliveryRecord, error) {
	rec, err := scanRecord(r.pool.QueryRow(ctx, `SELECT `+recordColumns+` FROM delivery_records
		WHERE date = $1 AND archive_key IS NOT NULL ORDER BY created_at DESC LIMIT 1`, date))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, models.Storage("get delivery record", err)
	}
	return rec, nil
}
