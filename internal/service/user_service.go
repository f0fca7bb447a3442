package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/edupagos/colegio-api/internal/models"
	"github.com/edupagos/colegio-api/internal/repository"
	appErrors "github.com/edupagos/colegio-api/pkg/errors"
)

type userRepository interface {
	List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	Create(ctx context.Context, user *models.User) error
	Update(ctx context.Context, user *models.User) error
	UpdatePassword(ctx context.Context, id, passwordHash string) error
	Delete(ctx context.Context, id string) error
}

type userSessionRevoker interface {
	RevokeUserTokens(ctx context.Context, userID string) error
	SaveAuditLog(ctx context.Context, entry *models.AuditLog) error
}

// CreateUserRequest represents payload for the admin user creation flow.
type CreateUserRequest struct {
	Email    string          `json:"email" validate:"required,email"`
	FullName string          `json:"full_name" validate:"required,max=200"`
	Password string          `json:"password" validate:"required,min=6"`
	Role     models.UserRole `json:"role" validate:"required,oneof=ADMIN USER PARENT"`
}

// UpdateUserRequest represents payload for updating a user profile.
type UpdateUserRequest struct {
	Email    string          `json:"email" validate:"required,email"`
	FullName string          `json:"full_name" validate:"required,max=200"`
	Role     models.UserRole `json:"role" validate:"required,oneof=ADMIN USER PARENT"`
	Active   *bool           `json:"active"`
}

// ResetPasswordRequest represents the admin-driven password reset payload.
type ResetPasswordRequest struct {
	NewPassword string `json:"new_password" validate:"required,min=6"`
}

// UserService orchestrates account administration. The privileged operations
// are restricted to admins at the routing layer; the service enforces the
// invariants that survive even a misconfigured route.
type UserService struct {
	repo      userRepository
	sessions  userSessionRevoker
	validator *validator.Validate
	logger    *zap.Logger
}

// NewUserService constructs a UserService.
func NewUserService(repo userRepository, sessions userSessionRevoker, validate *validator.Validate, logger *zap.Logger) *UserService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UserService{repo: repo, sessions: sessions, validator: validate, logger: logger}
}

// List returns users plus pagination data.
func (s *UserService) List(ctx context.Context, filter models.UserFilter) ([]models.User, *models.Pagination, error) {
	users, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list users")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	return users, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Get returns a user by id.
func (s *UserService) Get(ctx context.Context, id string) (*models.User, error) {
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}
	return user, nil
}

// Create registers a new account with the given role.
func (s *UserService) Create(ctx context.Context, actorID string, req CreateUserRequest) (*models.User, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid user payload")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}

	user := &models.User{
		Email:        strings.ToLower(strings.TrimSpace(req.Email)),
		PasswordHash: string(hash),
		FullName:     strings.TrimSpace(req.FullName),
		Role:         req.Role,
		Active:       true,
	}
	if err := s.repo.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, appErrors.Clone(appErrors.ErrValidation, "a user with that email already exists")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create user")
	}

	s.auditUser(ctx, actorID, models.AuditActionUserCreate, user.ID, map[string]interface{}{
		"email": user.Email,
		"role":  user.Role,
	})
	return user, nil
}

// Update modifies a user profile.
func (s *UserService) Update(ctx context.Context, id string, req UpdateUserRequest) (*models.User, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid user payload")
	}
	user, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	user.Email = strings.ToLower(strings.TrimSpace(req.Email))
	user.FullName = strings.TrimSpace(req.FullName)
	user.Role = req.Role
	if req.Active != nil {
		user.Active = *req.Active
	}

	if err := s.repo.Update(ctx, user); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update user")
	}
	return user, nil
}

// ResetPassword sets a new password on another account without knowing the
// old one, revoking every live session of the target user.
func (s *UserService) ResetPassword(ctx context.Context, actorID, targetID string, req ResetPasswordRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid password payload")
	}
	if _, err := s.Get(ctx, targetID); err != nil {
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}
	if err := s.repo.UpdatePassword(ctx, targetID, string(hash)); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reset password")
	}
	if err := s.sessions.RevokeUserTokens(ctx, targetID); err != nil {
		s.logger.Warn("failed to revoke sessions after password reset", zap.Error(err))
	}

	s.auditUser(ctx, actorID, models.AuditActionPasswordReset, targetID, map[string]interface{}{
		"status": "reset",
	})
	return nil
}

// Delete removes an account permanently along with its sessions and guardian
// links. Admins cannot delete themselves.
func (s *UserService) Delete(ctx context.Context, actorID, targetID string) error {
	if actorID == targetID {
		return appErrors.Clone(appErrors.ErrValidation, "cannot delete your own account")
	}
	user, err := s.Get(ctx, targetID)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, targetID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete user")
	}

	s.auditUser(ctx, actorID, models.AuditActionUserDelete, targetID, map[string]interface{}{
		"email": user.Email,
	})
	return nil
}

func (s *UserService) auditUser(ctx context.Context, actorID, action, targetID string, values map[string]interface{}) {
	payload, _ := json.Marshal(values)
	target := targetID
	actor := actorID
	entry := &models.AuditLog{
		UserID:     &actor,
		Action:     action,
		Resource:   "users",
		ResourceID: &target,
		NewValues:  payload,
	}
	if err := s.sessions.SaveAuditLog(ctx, entry); err != nil {
		s.logger.Warn("failed to record user audit log", zap.Error(err))
	}
}
