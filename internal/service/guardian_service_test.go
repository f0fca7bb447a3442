package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/edupagos/colegio-api/internal/models"
	appErrors "github.com/edupagos/colegio-api/pkg/errors"
)

const testGuardianUserID = "f6a7b8c9-d0e1-4f2a-8b3c-4d5e6f7a8b9c"

type fakeGuardianRepo struct {
	links    map[string]*models.StudentGuardian
	existing map[string]bool
	linked   []*models.StudentGuardian
	deleted  []string
}

func (f *fakeGuardianRepo) Link(ctx context.Context, link *models.StudentGuardian) error {
	link.ID = "g1"
	f.linked = append(f.linked, link)
	return nil
}

func (f *fakeGuardianRepo) Exists(ctx context.Context, studentID, userID string) (bool, error) {
	return f.existing[studentID+"/"+userID], nil
}

func (f *fakeGuardianRepo) FindByID(ctx context.Context, id string) (*models.StudentGuardian, error) {
	if l, ok := f.links[id]; ok {
		return l, nil
	}
	return nil, sql.ErrNoRows
}

func (f *fakeGuardianRepo) ListByStudent(ctx context.Context, studentID string) ([]models.GuardianDetail, error) {
	return nil, nil
}

func (f *fakeGuardianRepo) ListStudentsByUser(ctx context.Context, userID string) ([]models.GuardianStudent, error) {
	return nil, nil
}

func (f *fakeGuardianRepo) Delete(ctx context.Context, id string) error {
	f.deleted = append(f.deleted, id)
	return nil
}

type fakeGuardianUsers struct {
	users map[string]*models.User
}

func (f *fakeGuardianUsers) FindByID(ctx context.Context, id string) (*models.User, error) {
	if u, ok := f.users[id]; ok {
		return u, nil
	}
	return nil, sql.ErrNoRows
}

func newGuardianService(repo *fakeGuardianRepo, students *fakeStudentReader, users *fakeGuardianUsers) *GuardianService {
	return NewGuardianService(repo, students, users, nil, validator.New(), zap.NewNop())
}

func TestGuardianLinkRejectsAdmin(t *testing.T) {
	repo := &fakeGuardianRepo{}
	students := &fakeStudentReader{students: map[string]*models.StudentDetail{
		testStudentID: {Student: models.Student{ID: testStudentID}},
	}}
	users := &fakeGuardianUsers{users: map[string]*models.User{
		testGuardianUserID: {ID: testGuardianUserID, Role: models.RoleAdmin},
	}}
	svc := newGuardianService(repo, students, users)

	_, err := svc.Link(context.Background(), LinkGuardianRequest{
		StudentID:      testStudentID,
		GuardianUserID: testGuardianUserID,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
	assert.Empty(t, repo.linked)
}

func TestGuardianLinkRejectsDuplicate(t *testing.T) {
	repo := &fakeGuardianRepo{existing: map[string]bool{
		testStudentID + "/" + testGuardianUserID: true,
	}}
	students := &fakeStudentReader{students: map[string]*models.StudentDetail{
		testStudentID: {Student: models.Student{ID: testStudentID}},
	}}
	users := &fakeGuardianUsers{users: map[string]*models.User{
		testGuardianUserID: {ID: testGuardianUserID, Role: models.RoleParent},
	}}
	svc := newGuardianService(repo, students, users)

	_, err := svc.Link(context.Background(), LinkGuardianRequest{
		StudentID:      testStudentID,
		GuardianUserID: testGuardianUserID,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestGuardianLink(t *testing.T) {
	repo := &fakeGuardianRepo{}
	students := &fakeStudentReader{students: map[string]*models.StudentDetail{
		testStudentID: {Student: models.Student{ID: testStudentID}},
	}}
	users := &fakeGuardianUsers{users: map[string]*models.User{
		testGuardianUserID: {ID: testGuardianUserID, Role: models.RoleUser},
	}}
	svc := newGuardianService(repo, students, users)

	rel := "madre"
	link, err := svc.Link(context.Background(), LinkGuardianRequest{
		StudentID:      testStudentID,
		GuardianUserID: testGuardianUserID,
		Relationship:   &rel,
	})
	require.NoError(t, err)
	assert.Equal(t, "g1", link.ID)
	require.Len(t, repo.linked, 1)
}

func TestGuardianAccessScope(t *testing.T) {
	repo := &fakeGuardianRepo{existing: map[string]bool{
		testStudentID + "/" + testGuardianUserID: true,
	}}
	svc := newGuardianService(repo, &fakeStudentReader{}, &fakeGuardianUsers{})

	allowed, err := svc.CanAccessStudent(context.Background(), "any", models.RoleAdmin, testStudentID)
	require.NoError(t, err)
	assert.True(t, allowed)

	allowed, err = svc.CanAccessStudent(context.Background(), "any", models.RoleUser, testStudentID)
	require.NoError(t, err)
	assert.True(t, allowed)

	allowed, err = svc.CanAccessStudent(context.Background(), testGuardianUserID, models.RoleParent, testStudentID)
	require.NoError(t, err)
	assert.True(t, allowed)

	allowed, err = svc.CanAccessStudent(context.Background(), "stranger", models.RoleParent, testStudentID)
	require.NoError(t, err)
	assert.False(t, allowed)
}

func TestGuardianUnlinkNotFound(t *testing.T) {
	svc := newGuardianService(&fakeGuardianRepo{}, &fakeStudentReader{}, &fakeGuardianUsers{})
	err := svc.Unlink(context.Background(), "missing")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}
