package handler

import (
	"context"
	"database/sql"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/edupagos/colegio-api/internal/middleware"
	"github.com/edupagos/colegio-api/internal/models"
	"github.com/edupagos/colegio-api/internal/service"
)

type fakeDebtStore struct {
	debts map[string]models.DebtDetail
}

func (f *fakeDebtStore) List(ctx context.Context, filter models.DebtFilter) ([]models.DebtDetail, int, error) {
	return nil, 0, nil
}

func (f *fakeDebtStore) FindByID(ctx context.Context, id string) (*models.DebtDetail, error) {
	if d, ok := f.debts[id]; ok {
		return &d, nil
	}
	return nil, sql.ErrNoRows
}

func (f *fakeDebtStore) Create(ctx context.Context, debt *models.StudentDebt) error { return nil }

func (f *fakeDebtStore) ApplyLateFee(ctx context.Context, id string, fee float64, newNotes string) error {
	return nil
}

func (f *fakeDebtStore) Delete(ctx context.Context, id string) error { return nil }

type fakeGuardianLinks struct {
	linked map[string]bool
}

func (f *fakeGuardianLinks) Link(ctx context.Context, link *models.StudentGuardian) error { return nil }

func (f *fakeGuardianLinks) Exists(ctx context.Context, studentID, userID string) (bool, error) {
	return f.linked[studentID+"/"+userID], nil
}

func (f *fakeGuardianLinks) FindByID(ctx context.Context, id string) (*models.StudentGuardian, error) {
	return nil, sql.ErrNoRows
}

func (f *fakeGuardianLinks) ListByStudent(ctx context.Context, studentID string) ([]models.GuardianDetail, error) {
	return nil, nil
}

func (f *fakeGuardianLinks) ListStudentsByUser(ctx context.Context, userID string) ([]models.GuardianStudent, error) {
	return nil, nil
}

func (f *fakeGuardianLinks) Delete(ctx context.Context, id string) error { return nil }

func newDebtScopeHandler(store *fakeDebtStore, links *fakeGuardianLinks) *DebtHandler {
	debts := service.NewDebtService(store, nil, nil, nil, nil, 10000, nil, nil)
	guardians := service.NewGuardianService(links, nil, nil, nil, nil, nil)
	return NewDebtHandler(debts, guardians)
}

func debtGetContext(rec *httptest.ResponseRecorder, debtID string, claims *models.JWTClaims) *gin.Context {
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/debts/"+debtID, nil)
	c.Params = gin.Params{{Key: "id", Value: debtID}}
	c.Set(middleware.ContextUserKey, claims)
	return c
}

func TestDebtGetBlocksUnlinkedParent(t *testing.T) {
	gin.SetMode(gin.TestMode)
	store := &fakeDebtStore{debts: map[string]models.DebtDetail{
		"d1": {StudentDebt: models.StudentDebt{ID: "d1", StudentID: "other-student", Amount: 100000}},
	}}
	handler := newDebtScopeHandler(store, &fakeGuardianLinks{})

	rec := httptest.NewRecorder()
	c := debtGetContext(rec, "d1", &models.JWTClaims{UserID: "parent-1", Role: models.RoleParent})

	handler.Get(c)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.NotContains(t, rec.Body.String(), "other-student")
}

func TestDebtGetAllowsLinkedParent(t *testing.T) {
	gin.SetMode(gin.TestMode)
	store := &fakeDebtStore{debts: map[string]models.DebtDetail{
		"d1": {StudentDebt: models.StudentDebt{ID: "d1", StudentID: "student-1", Amount: 100000}},
	}}
	links := &fakeGuardianLinks{linked: map[string]bool{"student-1/parent-1": true}}
	handler := newDebtScopeHandler(store, links)

	rec := httptest.NewRecorder()
	c := debtGetContext(rec, "d1", &models.JWTClaims{UserID: "parent-1", Role: models.RoleParent})

	handler.Get(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "student-1")
}

func TestDebtGetAllowsStaffWithoutLink(t *testing.T) {
	gin.SetMode(gin.TestMode)
	store := &fakeDebtStore{debts: map[string]models.DebtDetail{
		"d1": {StudentDebt: models.StudentDebt{ID: "d1", StudentID: "student-1", Amount: 100000}},
	}}
	handler := newDebtScopeHandler(store, &fakeGuardianLinks{})

	rec := httptest.NewRecorder()
	c := debtGetContext(rec, "d1", &models.JWTClaims{UserID: "cashier-1", Role: models.RoleUser})

	handler.Get(c)

	assert.Equal(t, http.StatusOK, rec.Code)
}
