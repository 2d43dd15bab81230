package auth

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/campus-attendance/backend/internal/models"
)

// EnsureAdmin creates the administrator account when no admin exists yet.
func EnsureAdmin(ctx context.Context, users UserStore, username, password string, logger *zap.Logger) error {
	n, err := users.CountByRole(ctx, models.RoleAdmin)
	if err != nil {
		return fmt.Errorf("count admins: %w", err)
	}
	if n > 0 {
		return nil
	}
	if username == "" || password == "" {
		return fmt.Errorf("no admin account exists and ADMIN_USERNAME/ADMIN_PASSWORD are not set")
	}
	hash, err := HashPassword(password)
	if err != nil {
		return fmt.Errorf("hash admin password: %w", err)
	}
	u, err := users.Create(ctx, CreateUserParams{
		Username:     username,
		Email:        username + "@admin.local",
		PasswordHash: hash,
		FullName:     "Administrator",
		Role:         models.RoleAdmin,
	})
	if err != nil {
		return fmt.Errorf("create admin: %w", err)
	}
	logger.Info("seeded admin account", zap.String("username", u.Username))
	return nil
}
