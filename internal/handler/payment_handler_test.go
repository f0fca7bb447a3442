package handler

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edupagos/colegio-api/internal/middleware"
	"github.com/edupagos/colegio-api/internal/models"
	"github.com/edupagos/colegio-api/internal/repository"
	"github.com/edupagos/colegio-api/internal/service"
	"github.com/edupagos/colegio-api/pkg/export"
)

type fakePaymentStore struct {
	payments map[string]models.PaymentDetail
	receipts map[string][]models.PaymentDetail
	history  []models.PaymentDetail
}

func (f *fakePaymentStore) ApplySettlement(ctx context.Context, payments []models.Payment, updates []repository.DebtUpdate) error {
	return nil
}

func (f *fakePaymentStore) Cancel(ctx context.Context, paymentID, cancelledBy string) (*models.Payment, error) {
	return nil, sql.ErrNoRows
}

func (f *fakePaymentStore) List(ctx context.Context, filter models.PaymentFilter) ([]models.PaymentDetail, int, error) {
	start := (filter.Page - 1) * filter.PageSize
	if start >= len(f.history) {
		return nil, len(f.history), nil
	}
	end := start + filter.PageSize
	if end > len(f.history) {
		end = len(f.history)
	}
	return f.history[start:end], len(f.history), nil
}

func (f *fakePaymentStore) FindByID(ctx context.Context, id string) (*models.PaymentDetail, error) {
	if p, ok := f.payments[id]; ok {
		return &p, nil
	}
	return nil, sql.ErrNoRows
}

func (f *fakePaymentStore) FindByReceipt(ctx context.Context, receiptNumber string) ([]models.PaymentDetail, error) {
	if rows, ok := f.receipts[receiptNumber]; ok {
		return rows, nil
	}
	return nil, sql.ErrNoRows
}

type fakeStudentDirectory struct{}

func (f *fakeStudentDirectory) FindByID(ctx context.Context, id string) (*models.StudentDetail, error) {
	return nil, sql.ErrNoRows
}

func newPaymentScopeHandler(store *fakePaymentStore, links *fakeGuardianLinks) *PaymentHandler {
	payments := service.NewPaymentService(store, nil, &fakeStudentDirectory{}, nil, nil, nil, nil, nil, nil)
	guardians := service.NewGuardianService(links, nil, nil, nil, nil, nil)
	return NewPaymentHandler(payments, guardians, nil, export.NewReceiptRenderer("Colegio San José", "Asunción"))
}

func paymentContext(rec *httptest.ResponseRecorder, path, paramKey, paramValue string, claims *models.JWTClaims) *gin.Context {
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, path, nil)
	c.Params = gin.Params{{Key: paramKey, Value: paramValue}}
	c.Set(middleware.ContextUserKey, claims)
	return c
}

func activePaymentDetail(id, studentID string, amount float64) models.PaymentDetail {
	receipt := "REC-1"
	return models.PaymentDetail{
		Payment: models.Payment{
			ID:            id,
			StudentID:     studentID,
			Amount:        amount,
			PaymentDate:   "2026-08-01",
			ReceiptNumber: &receipt,
			Status:        models.PaymentStatusActive,
		},
		StudentFirstName: "Juan",
		StudentLastName:  "Benitez",
	}
}

func TestPaymentGetBlocksUnlinkedParent(t *testing.T) {
	gin.SetMode(gin.TestMode)
	store := &fakePaymentStore{payments: map[string]models.PaymentDetail{
		"p1": activePaymentDetail("p1", "other-student", 150000),
	}}
	handler := newPaymentScopeHandler(store, &fakeGuardianLinks{})

	rec := httptest.NewRecorder()
	c := paymentContext(rec, "/payments/p1", "id", "p1", &models.JWTClaims{UserID: "parent-1", Role: models.RoleParent})

	handler.Get(c)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.NotContains(t, rec.Body.String(), "other-student")
}

func TestPaymentGetAllowsLinkedParent(t *testing.T) {
	gin.SetMode(gin.TestMode)
	store := &fakePaymentStore{payments: map[string]models.PaymentDetail{
		"p1": activePaymentDetail("p1", "student-1", 150000),
	}}
	links := &fakeGuardianLinks{linked: map[string]bool{"student-1/parent-1": true}}
	handler := newPaymentScopeHandler(store, links)

	rec := httptest.NewRecorder()
	c := paymentContext(rec, "/payments/p1", "id", "p1", &models.JWTClaims{UserID: "parent-1", Role: models.RoleParent})

	handler.Get(c)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestReceiptBlocksUnlinkedParent(t *testing.T) {
	gin.SetMode(gin.TestMode)
	store := &fakePaymentStore{receipts: map[string][]models.PaymentDetail{
		"REC-1": {activePaymentDetail("p1", "other-student", 150000)},
	}}
	handler := newPaymentScopeHandler(store, &fakeGuardianLinks{})

	rec := httptest.NewRecorder()
	c := paymentContext(rec, "/payments/receipts/REC-1", "receiptNumber", "REC-1", &models.JWTClaims{UserID: "parent-1", Role: models.RoleParent})

	handler.Receipt(c)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.NotEqual(t, "application/pdf", rec.Header().Get("Content-Type"))
}

func TestReceiptRendersForLinkedParent(t *testing.T) {
	gin.SetMode(gin.TestMode)
	store := &fakePaymentStore{receipts: map[string][]models.PaymentDetail{
		"REC-1": {activePaymentDetail("p1", "student-1", 150000)},
	}}
	links := &fakeGuardianLinks{linked: map[string]bool{"student-1/parent-1": true}}
	handler := newPaymentScopeHandler(store, links)

	rec := httptest.NewRecorder()
	c := paymentContext(rec, "/payments/receipts/REC-1", "receiptNumber", "REC-1", &models.JWTClaims{UserID: "parent-1", Role: models.RoleParent})

	handler.Receipt(c)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
}

func TestExportCSVPagesThroughHistory(t *testing.T) {
	gin.SetMode(gin.TestMode)
	store := &fakePaymentStore{}
	for i := 0; i < 250; i++ {
		store.history = append(store.history, activePaymentDetail(fmt.Sprintf("p%d", i), "student-1", 100000))
	}
	handler := newPaymentScopeHandler(store, &fakeGuardianLinks{})

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/payments/export", nil)
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "admin-1", Role: models.RoleAdmin})

	handler.ExportCSV(c)

	require.Equal(t, http.StatusOK, rec.Code)
	// Header line plus one line per payment, each ending in \n.
	assert.Equal(t, 251, strings.Count(rec.Body.String(), "\n"))
}
