package service

import (
	"context"
	"database/sql"
	"net/http"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/edupagos/colegio-api/internal/models"
	"github.com/edupagos/colegio-api/internal/repository"
	appErrors "github.com/edupagos/colegio-api/pkg/errors"
)

type fakeAccountRepo struct {
	users     map[string]*models.User
	createErr error
	deleted   []string
	passwords map[string]string
}

func (f *fakeAccountRepo) List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error) {
	var out []models.User
	for _, u := range f.users {
		out = append(out, *u)
	}
	return out, len(out), nil
}

func (f *fakeAccountRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	if u, ok := f.users[id]; ok {
		clone := *u
		return &clone, nil
	}
	return nil, sql.ErrNoRows
}

func (f *fakeAccountRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	for _, u := range f.users {
		if u.Email == email {
			clone := *u
			return &clone, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (f *fakeAccountRepo) Create(ctx context.Context, user *models.User) error {
	if f.createErr != nil {
		return f.createErr
	}
	if f.users == nil {
		f.users = map[string]*models.User{}
	}
	user.ID = "u-" + user.Email
	clone := *user
	f.users[user.ID] = &clone
	return nil
}

func (f *fakeAccountRepo) Update(ctx context.Context, user *models.User) error {
	clone := *user
	f.users[user.ID] = &clone
	return nil
}

func (f *fakeAccountRepo) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	if f.passwords == nil {
		f.passwords = map[string]string{}
	}
	f.passwords[id] = passwordHash
	return nil
}

func (f *fakeAccountRepo) Delete(ctx context.Context, id string) error {
	f.deleted = append(f.deleted, id)
	delete(f.users, id)
	return nil
}

func TestUserServiceCreateNormalizesEmail(t *testing.T) {
	repo := &fakeAccountRepo{}
	sessions := &fakeSessionStore{}
	svc := NewUserService(repo, sessions, validator.New(), zap.NewNop())

	user, err := svc.Create(context.Background(), "admin-1", CreateUserRequest{
		Email:    "  Maria.Gonzalez@Example.COM ",
		FullName: "Maria Gonzalez",
		Password: "secret1",
		Role:     models.RoleParent,
	})
	require.NoError(t, err)
	assert.Equal(t, "maria.gonzalez@example.com", user.Email)
	assert.True(t, user.Active)
	require.Len(t, sessions.auditLogs, 1)
	assert.Equal(t, models.AuditActionUserCreate, sessions.auditLogs[0].Action)
}

func TestUserServiceCreateRejectsUnknownRole(t *testing.T) {
	svc := NewUserService(&fakeAccountRepo{}, &fakeSessionStore{}, validator.New(), zap.NewNop())

	_, err := svc.Create(context.Background(), "admin-1", CreateUserRequest{
		Email:    "a@example.com",
		FullName: "A",
		Password: "secret1",
		Role:     "SUPERADMIN",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestUserServiceCreateDuplicateEmail(t *testing.T) {
	repo := &fakeAccountRepo{createErr: repository.ErrDuplicate}
	svc := NewUserService(repo, &fakeSessionStore{}, validator.New(), zap.NewNop())

	_, err := svc.Create(context.Background(), "admin-1", CreateUserRequest{
		Email:    "a@example.com",
		FullName: "A",
		Password: "secret1",
		Role:     models.RoleUser,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
	assert.Equal(t, http.StatusBadRequest, appErrors.FromError(err).Status)
}

func TestUserServiceResetPasswordRevokesSessions(t *testing.T) {
	repo := &fakeAccountRepo{users: map[string]*models.User{
		"u1": {ID: "u1", Email: "a@example.com", Active: true},
	}}
	sessions := &fakeSessionStore{}
	svc := NewUserService(repo, sessions, validator.New(), zap.NewNop())

	err := svc.ResetPassword(context.Background(), "admin-1", "u1", ResetPasswordRequest{NewPassword: "newsecret"})
	require.NoError(t, err)
	assert.Equal(t, []string{"u1"}, sessions.revokedUsers)

	hash := repo.passwords["u1"]
	require.NotEmpty(t, hash)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(hash), []byte("newsecret")))
}

func TestUserServiceDeleteRejectsSelf(t *testing.T) {
	repo := &fakeAccountRepo{users: map[string]*models.User{
		"admin-1": {ID: "admin-1", Email: "admin@example.com", Role: models.RoleAdmin, Active: true},
	}}
	svc := NewUserService(repo, &fakeSessionStore{}, validator.New(), zap.NewNop())

	err := svc.Delete(context.Background(), "admin-1", "admin-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
	assert.Empty(t, repo.deleted)
}

func TestUserServiceDelete(t *testing.T) {
	repo := &fakeAccountRepo{users: map[string]*models.User{
		"u1": {ID: "u1", Email: "a@example.com", Role: models.RoleParent, Active: true},
	}}
	sessions := &fakeSessionStore{}
	svc := NewUserService(repo, sessions, validator.New(), zap.NewNop())

	require.NoError(t, svc.Delete(context.Background(), "admin-1", "u1"))
	assert.Equal(t, []string{"u1"}, repo.deleted)
	require.Len(t, sessions.auditLogs, 1)
	assert.Equal(t, models.AuditActionUserDelete, sessions.auditLogs[0].Action)
}
