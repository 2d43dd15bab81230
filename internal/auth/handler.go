package auth

import (
	"context"
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/campus-attendance/backend/internal/models"
	"github.com/campus-attendance/backend/pkg/response"
)

// UserStore is the persistence the auth handlers need. *Repository implements it.
type UserStore interface {
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	ListByRole(ctx context.Context, role models.Role) ([]models.User, error)
	CountByRole(ctx context.Context, role models.Role) (int, error)
	Create(ctx context.Context, p CreateUserParams) (*models.User, error)
	Update(ctx context.Context, id uuid.UUID, p UpdateUserParams) (*models.User, error)
}

// LoginRequest is the body for POST /auth/login.
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// RegisterFacultyRequest is the body for POST /admin/faculty.
type RegisterFacultyRequest struct {
	Username   string `json:"username" binding:"required,min=3,max=50"`
	Email      string `json:"email" binding:"required,email"`
	Password   string `json:"password" binding:"required,min=6"`
	FullName   string `json:"full_name" binding:"required"`
	Department string `json:"department"`
}

// UpdateFacultyRequest is the body for PATCH /admin/faculty/:id.
type UpdateFacultyRequest struct {
	Email      *string `json:"email" binding:"omitempty,email"`
	FullName   *string `json:"full_name" binding:"omitempty,min=1"`
	Department *string `json:"department"`
}

// TokenResponse is the auth response with JWT.
type TokenResponse struct {
	Token string            `json:"token"`
	User  models.UserPublic `json:"user"`
}

// Handler handles auth HTTP endpoints.
type Handler struct {
	users  UserStore
	jwt    *JWTService
	logger *zap.Logger
}

// NewHandler creates an auth handler.
func NewHandler(users UserStore, jwt *JWTService, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{users: users, jwt: jwt, logger: logger}
}

// Login handles POST /auth/login.
func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}

	user, err := h.users.GetByUsername(c.Request.Context(), strings.TrimSpace(req.Username))
	if err != nil {
		if !errors.Is(err, ErrUserNotFound) {
			h.logger.Error("login lookup failed", zap.Error(err))
		}
		response.Unauthorized(c, "invalid username or password")
		return
	}
	if !CheckPassword(req.Password, user.Password) {
		response.Unauthorized(c, "invalid username or password")
		return
	}

	token, err := h.jwt.Generate(user)
	if err != nil {
		response.Internal(c, "failed to generate token")
		return
	}
	response.OK(c, TokenResponse{Token: token, User: user.ToPublic()})
}

// RegisterFaculty handles POST /admin/faculty.
func (h *Handler) RegisterFaculty(c *gin.Context) {
	var req RegisterFacultyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}

	hash, err := HashPassword(req.Password)
	if err != nil {
		response.Internal(c, "failed to hash password")
		return
	}
	user, err := h.users.Create(c.Request.Context(), CreateUserParams{
		Username:     strings.TrimSpace(req.Username),
		Email:        strings.TrimSpace(req.Email),
		PasswordHash: hash,
		FullName:     strings.TrimSpace(req.FullName),
		Department:   strings.TrimSpace(req.Department),
		Role:         models.RoleFaculty,
	})
	if errors.Is(err, ErrDuplicate) {
		response.Conflict(c, err.Error())
		return
	}
	if err != nil {
		h.logger.Error("register faculty failed", zap.Error(err))
		response.Internal(c, "failed to create faculty")
		return
	}
	h.logger.Info("faculty registered", zap.String("username", user.Username))
	response.Created(c, user.ToPublic())
}

// ListFaculty handles GET /admin/faculty.
func (h *Handler) ListFaculty(c *gin.Context) {
	list, err := h.users.ListByRole(c.Request.Context(), models.RoleFaculty)
	if err != nil {
		h.logger.Error("list faculty failed", zap.Error(err))
		response.Internal(c, "failed to list faculty")
		return
	}
	out := make([]models.UserPublic, 0, len(list))
	for i := range list {
		out = append(out, list[i].ToPublic())
	}
	response.OK(c, out)
}

// UpdateFaculty handles PATCH /admin/faculty/:id.
func (h *Handler) UpdateFaculty(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid faculty id")
		return
	}
	var req UpdateFacultyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	if req.Email == nil && req.FullName == nil && req.Department == nil {
		response.BadRequest(c, "nothing to update")
		return
	}

	user, err := h.users.Update(c.Request.Context(), id, UpdateUserParams{
		Email:      trimmed(req.Email),
		FullName:   trimmed(req.FullName),
		Department: trimmed(req.Department),
	})
	switch {
	case errors.Is(err, ErrUserNotFound):
		response.NotFound(c, "faculty not found")
	case errors.Is(err, ErrDuplicate):
		response.Conflict(c, err.Error())
	case err != nil:
		h.logger.Error("update faculty failed", zap.Error(err))
		response.Internal(c, "failed to update faculty")
	default:
		response.OK(c, user.ToPublic())
	}
}

func trimmed(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	return &v
}
