package checkin

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/campus-attendance/backend/internal/models"
)

// Repository handles check_ins persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a check-in repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create inserts a check-in unless one exists for (user_id, date). The unique
// index on that pair makes the check and the insert a single statement.
func (r *Repository) Create(ctx context.Context, ci *models.CheckIn) (bool, error) {
	const q = `INSERT INTO check_ins (id, user_id, token_id, date, scanned_at, status)
		VALUES (gen_random_uuid(), $1, $2, $3, $4, $5)
		ON CONFLICT (user_id, date) DO NOTHING
		RETURNING id`
	err := r.pool.QueryRow(ctx, q, ci.UserID, ci.TokenID, ci.Date, ci.ScannedAt, ci.Status).Scan(&ci.ID)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// GetByUserAndDate returns the participant's check-in for a date, or nil.
func (r *Repository) GetByUserAndDate(ctx context.Context, userID uuid.UUID, date time.Time) (*models.CheckIn, error) {
	const q = `SELECT id, user_id, token_id, date, scanned_at, status FROM check_ins WHERE user_id = $1 AND date = $2`
	var ci models.CheckIn
	err := r.pool.QueryRow(ctx, q, userID, date).Scan(&ci.ID, &ci.UserID, &ci.TokenID, &ci.Date, &ci.ScannedAt, &ci.Status)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	ci.ScannedAt = ci.ScannedAt.UTC()
	return &ci, nil
}

// ListByDate returns all check-ins of a date joined with their users, earliest first.
func (r *Repository) ListByDate(ctx context.Context, date time.Time) ([]models.CheckInRow, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT c.id, c.user_id, c.token_id, c.date, c.scanned_at, c.status,
			u.username, COALESCE(u.full_name,''), COALESCE(u.department,'')
		 FROM check_ins c JOIN users u ON u.id = c.user_id
		 WHERE c.date = $1 ORDER BY c.scanned_at`,
		date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.CheckInRow
	for rows.Next() {
		var row models.CheckInRow
		if err := rows.Scan(&row.ID, &row.UserID, &row.TokenID, &row.Date, &row.ScannedAt, &row.Status,
			&row.Username, &row.FullName, &row.Department); err != nil {
			return nil, err
		}
		row.ScannedAt = row.ScannedAt.UTC()
		list = append(list, row)
	}
	return list, rows.Err()
}
