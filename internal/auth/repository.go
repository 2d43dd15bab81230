package auth

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/campus-attendance/backend/internal/models"
)

var (
	ErrUserNotFound = errors.New("user not found")
	ErrDuplicate    = errors.New("username or email already registered")
)

const uniqueViolation = "23505"

const userColumns = `id, username, email, password_hash, full_name, COALESCE(department,''), role, created_at, updated_at`

// CreateUserParams holds the fields of a new account.
type CreateUserParams struct {
	Username     string
	Email        string
	PasswordHash string
	FullName     string
	Department   string
	Role         models.Role
}

// UpdateUserParams holds the editable profile fields. Nil fields are left unchanged.
type UpdateUserParams struct {
	Email      *string
	FullName   *string
	Department *string
}

// Repository handles user persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an auth repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func scanUser(row pgx.Row) (*models.User, error) {
	var u models.User
	var role string
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.Password, &u.FullName, &u.Department, &role, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	u.Role = models.Role(role)
	return &u, nil
}

func mapWriteErr(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return ErrDuplicate
	}
	if errors.Is(err, ErrUserNotFound) {
		return err
	}
	return models.Storage(op, err)
}

// GetByID returns a user by ID.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	u, err := scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if err != nil && !errors.Is(err, ErrUserNotFound) {
		return nil, models.Storage("get user", err)
	}
	return u, err
}

// GetByUsername returns a user by login handle.
func (r *Repository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	u, err := scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE username = $1`, username))
	if err != nil && !errors.Is(err, ErrUserNotFound) {
		return nil, models.Storage("get user", err)
	}
	return u, err
}

// ListByRole returns every user with the given role ordered by name.
func (r *Repository) ListByRole(ctx context.Context, role models.Role) ([]models.User, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+userColumns+` FROM users WHERE role = $1 ORDER BY full_name, username`, string(role))
	if err != nil {
		return nil, models.Storage("list users", err)
	}
	defer rows.Close()
	var list []models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, models.Storage("list users", err)
		}
		list = append(list, *u)
	}
	if err := rows.Err(); err != nil {
		return nil, models.Storage("list users", err)
	}
	return list, nil
}

// CountByRole returns the number of users with the given role.
func (r *Repository) CountByRole(ctx context.Context, role models.Role) (int, error) {
	var n int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM users WHERE role = $1`, string(role)).Scan(&n); err != nil {
		return 0, models.Storage("count users", err)
	}
	return n, nil
}

// Create inserts a new user.
func (r *Repository) Create(ctx context.Context, p CreateUserParams) (*models.User, error) {
	const q = `INSERT INTO users (username, email, password_hash, full_name, department, role)
		VALUES ($1, $2, $3, $4, NULLIF($5,''), $6)
		RETURNING ` + userColumns
	u, err := scanUser(r.pool.QueryRow(ctx, q, p.Username, p.Email, p.PasswordHash, p.FullName, p.Department, string(p.Role)))
	if err != nil {
		return nil, mapWriteErr("create user", err)
	}
	return u, nil
}

// Update edits the profile fields of a user.
func (r *Repository) Update(ctx context.Context, id uuid.UUID, p UpdateUserParams) (*models.User, error) {
	const q = `UPDATE users SET
		email = COALESCE($2, email),
		full_name = COALESCE($3, full_name),
		department = COALESCE($4, department),
		updated_at = NOW()
		WHERE id = $1
		RETURNING ` + userColumns
	u, err := scanUser(r.pool.QueryRow(ctx, q, id, p.Email, p.FullName, p.Department))
	if err != nil {
		return nil, mapWriteErr("update user", err)
	}
	return u, nil
}
