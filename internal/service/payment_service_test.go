package service

import (
	"context"
	"database/sql"
	"strings"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/edupagos/colegio-api/internal/models"
	"github.com/edupagos/colegio-api/internal/repository"
	appErrors "github.com/edupagos/colegio-api/pkg/errors"
)

type fakeSettlementRepo struct {
	applied        []models.Payment
	updates        []repository.DebtUpdate
	applyErr       error
	cancelPayment  *models.Payment
	cancelErr      error
	receiptRows    []models.PaymentDetail
	receiptErr     error
	findByIDDetail *models.PaymentDetail
}

func (f *fakeSettlementRepo) ApplySettlement(ctx context.Context, payments []models.Payment, updates []repository.DebtUpdate) error {
	if f.applyErr != nil {
		return f.applyErr
	}
	f.applied = append(f.applied, payments...)
	f.updates = append(f.updates, updates...)
	return nil
}

func (f *fakeSettlementRepo) Cancel(ctx context.Context, paymentID, cancelledBy string) (*models.Payment, error) {
	if f.cancelErr != nil {
		return nil, f.cancelErr
	}
	return f.cancelPayment, nil
}

func (f *fakeSettlementRepo) List(ctx context.Context, filter models.PaymentFilter) ([]models.PaymentDetail, int, error) {
	return nil, 0, nil
}

func (f *fakeSettlementRepo) FindByID(ctx context.Context, id string) (*models.PaymentDetail, error) {
	if f.findByIDDetail == nil {
		return nil, sql.ErrNoRows
	}
	return f.findByIDDetail, nil
}

func (f *fakeSettlementRepo) FindByReceipt(ctx context.Context, receiptNumber string) ([]models.PaymentDetail, error) {
	if f.receiptErr != nil {
		return nil, f.receiptErr
	}
	if len(f.receiptRows) == 0 {
		return nil, sql.ErrNoRows
	}
	return f.receiptRows, nil
}

type fakeDebtLines struct {
	debts map[string]models.DebtDetail
}

func (f *fakeDebtLines) FindByIDs(ctx context.Context, ids []string) ([]models.DebtDetail, error) {
	var out []models.DebtDetail
	for _, id := range ids {
		if d, ok := f.debts[id]; ok {
			out = append(out, d)
		}
	}
	return out, nil
}

func (f *fakeDebtLines) FindByID(ctx context.Context, id string) (*models.DebtDetail, error) {
	if d, ok := f.debts[id]; ok {
		return &d, nil
	}
	return nil, sql.ErrNoRows
}

type fakeStudentReader struct {
	students map[string]*models.StudentDetail
}

func (f *fakeStudentReader) FindByID(ctx context.Context, id string) (*models.StudentDetail, error) {
	if s, ok := f.students[id]; ok {
		return s, nil
	}
	return nil, sql.ErrNoRows
}

type fakePlanCompleter struct {
	checked   []string
	completed map[string]bool
}

func (f *fakePlanCompleter) MarkCompletedIfSettled(ctx context.Context, id string) (bool, error) {
	f.checked = append(f.checked, id)
	return f.completed[id], nil
}

type fakeAudit struct {
	entries []*models.AuditLog
}

func (f *fakeAudit) SaveAuditLog(ctx context.Context, entry *models.AuditLog) error {
	f.entries = append(f.entries, entry)
	return nil
}

const (
	testStudentID = "3d6f0e2a-9b1c-4f5d-8a7e-6c5b4a3d2e1f"
	testDebtA     = "a1b2c3d4-e5f6-4a7b-8c9d-0e1f2a3b4c5d"
	testDebtB     = "b2c3d4e5-f6a7-4b8c-9d0e-1f2a3b4c5d6e"
)

func ledgerLine(id, studentID string, amount float64, dueDate string, status models.DebtStatus) models.DebtDetail {
	return models.DebtDetail{
		StudentDebt: models.StudentDebt{
			ID:        id,
			StudentID: studentID,
			Amount:    amount,
			DueDate:   dueDate,
			Status:    status,
		},
		ConceptName: "Matricula",
	}
}

func newPaymentService(repo *fakeSettlementRepo, debts *fakeDebtLines, plans *fakePlanCompleter, audit *fakeAudit) *PaymentService {
	students := &fakeStudentReader{students: map[string]*models.StudentDetail{}}
	return NewPaymentService(repo, debts, students, plans, audit, nil, nil, validator.New(), zap.NewNop())
}

func TestPaymentServiceRegisterOldestFirst(t *testing.T) {
	repo := &fakeSettlementRepo{}
	debts := &fakeDebtLines{debts: map[string]models.DebtDetail{
		testDebtA: ledgerLine(testDebtA, testStudentID, 100000, "2026-03-10", models.DebtStatusPending),
		testDebtB: ledgerLine(testDebtB, testStudentID, 150000, "2026-02-10", models.DebtStatusPending),
	}}
	svc := newPaymentService(repo, debts, &fakePlanCompleter{}, &fakeAudit{})

	result, err := svc.Register(context.Background(), "cashier-1", RegisterPaymentRequest{
		StudentID: testStudentID,
		Amount:    200000,
		DebtIDs:   []string{testDebtA, testDebtB},
	})
	require.NoError(t, err)

	// The February line absorbs money before the March one even though it
	// was selected second.
	require.Len(t, repo.applied, 2)
	assert.Equal(t, testDebtB, *repo.applied[0].DebtID)
	assert.Equal(t, 150000.0, repo.applied[0].Amount)
	assert.Equal(t, testDebtA, *repo.applied[1].DebtID)
	assert.Equal(t, 50000.0, repo.applied[1].Amount)

	require.Len(t, repo.updates, 2)
	assert.Equal(t, models.DebtStatusPaid, repo.updates[0].Status)
	assert.Equal(t, 0.0, repo.updates[0].Amount)
	assert.Equal(t, models.DebtStatusPartial, repo.updates[1].Status)
	assert.Equal(t, 50000.0, repo.updates[1].Amount)

	assert.True(t, strings.HasPrefix(result.ReceiptNumber, "REC-"))
}

func TestPaymentServiceRegisterKeepsProvidedReceipt(t *testing.T) {
	repo := &fakeSettlementRepo{}
	debts := &fakeDebtLines{debts: map[string]models.DebtDetail{
		testDebtA: ledgerLine(testDebtA, testStudentID, 100000, "2026-03-10", models.DebtStatusPending),
	}}
	svc := newPaymentService(repo, debts, &fakePlanCompleter{}, &fakeAudit{})

	receipt := "  REC-MANUAL-7  "
	result, err := svc.Register(context.Background(), "cashier-1", RegisterPaymentRequest{
		StudentID:     testStudentID,
		Amount:        100000,
		DebtIDs:       []string{testDebtA},
		ReceiptNumber: &receipt,
	})
	require.NoError(t, err)
	assert.Equal(t, "REC-MANUAL-7", result.ReceiptNumber)
}

func TestPaymentServiceRegisterRejectsOverpayment(t *testing.T) {
	repo := &fakeSettlementRepo{}
	debts := &fakeDebtLines{debts: map[string]models.DebtDetail{
		testDebtA: ledgerLine(testDebtA, testStudentID, 100000, "2026-03-10", models.DebtStatusPending),
	}}
	svc := newPaymentService(repo, debts, &fakePlanCompleter{}, &fakeAudit{})

	_, err := svc.Register(context.Background(), "cashier-1", RegisterPaymentRequest{
		StudentID: testStudentID,
		Amount:    100001,
		DebtIDs:   []string{testDebtA},
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
	assert.Empty(t, repo.applied)
}

func TestPaymentServiceRegisterRejectsForeignDebt(t *testing.T) {
	repo := &fakeSettlementRepo{}
	debts := &fakeDebtLines{debts: map[string]models.DebtDetail{
		testDebtA: ledgerLine(testDebtA, "11111111-2222-4333-8444-555566667777", 100000, "2026-03-10", models.DebtStatusPending),
	}}
	svc := newPaymentService(repo, debts, &fakePlanCompleter{}, &fakeAudit{})

	_, err := svc.Register(context.Background(), "cashier-1", RegisterPaymentRequest{
		StudentID: testStudentID,
		Amount:    50000,
		DebtIDs:   []string{testDebtA},
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestPaymentServiceRegisterRejectsPaidDebt(t *testing.T) {
	repo := &fakeSettlementRepo{}
	debts := &fakeDebtLines{debts: map[string]models.DebtDetail{
		testDebtA: ledgerLine(testDebtA, testStudentID, 0, "2026-03-10", models.DebtStatusPaid),
	}}
	svc := newPaymentService(repo, debts, &fakePlanCompleter{}, &fakeAudit{})

	_, err := svc.Register(context.Background(), "cashier-1", RegisterPaymentRequest{
		StudentID: testStudentID,
		Amount:    50000,
		DebtIDs:   []string{testDebtA},
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestPaymentServiceRegisterRejectsMissingDebt(t *testing.T) {
	repo := &fakeSettlementRepo{}
	debts := &fakeDebtLines{debts: map[string]models.DebtDetail{}}
	svc := newPaymentService(repo, debts, &fakePlanCompleter{}, &fakeAudit{})

	_, err := svc.Register(context.Background(), "cashier-1", RegisterPaymentRequest{
		StudentID: testStudentID,
		Amount:    50000,
		DebtIDs:   []string{testDebtA},
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestPaymentServiceRegisterCompletesPlan(t *testing.T) {
	planID := "c3d4e5f6-a7b8-4c9d-8e0f-1a2b3c4d5e6f"
	line := ledgerLine(testDebtA, testStudentID, 80000, "2026-02-10", models.DebtStatusPending)
	line.PaymentPlanID = &planID

	repo := &fakeSettlementRepo{}
	debts := &fakeDebtLines{debts: map[string]models.DebtDetail{testDebtA: line}}
	plans := &fakePlanCompleter{completed: map[string]bool{planID: true}}
	audit := &fakeAudit{}
	svc := newPaymentService(repo, debts, plans, audit)

	result, err := svc.Register(context.Background(), "cashier-1", RegisterPaymentRequest{
		StudentID: testStudentID,
		Amount:    80000,
		DebtIDs:   []string{testDebtA},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{planID}, plans.checked)
	assert.Equal(t, []string{planID}, result.CompletedPlan)
	require.Len(t, audit.entries, 1)
	assert.Equal(t, models.AuditActionSettlement, audit.entries[0].Action)
}

func TestPaymentServiceRegisterSkipsPlanWhenPartial(t *testing.T) {
	planID := "c3d4e5f6-a7b8-4c9d-8e0f-1a2b3c4d5e6f"
	line := ledgerLine(testDebtA, testStudentID, 80000, "2026-02-10", models.DebtStatusPending)
	line.PaymentPlanID = &planID

	repo := &fakeSettlementRepo{}
	debts := &fakeDebtLines{debts: map[string]models.DebtDetail{testDebtA: line}}
	plans := &fakePlanCompleter{}
	svc := newPaymentService(repo, debts, plans, &fakeAudit{})

	_, err := svc.Register(context.Background(), "cashier-1", RegisterPaymentRequest{
		StudentID: testStudentID,
		Amount:    30000,
		DebtIDs:   []string{testDebtA},
	})
	require.NoError(t, err)
	assert.Empty(t, plans.checked)
}

func TestPaymentServiceCancelNotFound(t *testing.T) {
	repo := &fakeSettlementRepo{cancelErr: sql.ErrNoRows}
	svc := newPaymentService(repo, &fakeDebtLines{}, &fakePlanCompleter{}, &fakeAudit{})

	_, err := svc.Cancel(context.Background(), "missing", "admin-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestPaymentServiceCancelAlreadyCancelled(t *testing.T) {
	repo := &fakeSettlementRepo{cancelErr: repository.ErrPaymentNotActive}
	svc := newPaymentService(repo, &fakeDebtLines{}, &fakePlanCompleter{}, &fakeAudit{})

	_, err := svc.Cancel(context.Background(), "p1", "admin-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestPaymentServiceCancelRecordsAudit(t *testing.T) {
	debtID := testDebtA
	repo := &fakeSettlementRepo{cancelPayment: &models.Payment{
		ID:        "p1",
		StudentID: testStudentID,
		DebtID:    &debtID,
		Amount:    60000,
		Status:    models.PaymentStatusCancelled,
	}}
	audit := &fakeAudit{}
	svc := newPaymentService(repo, &fakeDebtLines{}, &fakePlanCompleter{}, audit)

	payment, err := svc.Cancel(context.Background(), "p1", "admin-1")
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusCancelled, payment.Status)
	require.Len(t, audit.entries, 1)
	assert.Equal(t, models.AuditActionCancellation, audit.entries[0].Action)
}

func TestPaymentServiceReceiptProjection(t *testing.T) {
	method := "efectivo"
	concept := "Matricula"
	repo := &fakeSettlementRepo{receiptRows: []models.PaymentDetail{
		{
			Payment: models.Payment{
				StudentID:     testStudentID,
				Amount:        150000,
				PaymentDate:   "2026-02-10",
				PaymentMethod: &method,
			},
			StudentFirstName: "Maria",
			StudentLastName:  "Gonzalez",
			ConceptName:      &concept,
		},
		{
			Payment: models.Payment{
				StudentID:   testStudentID,
				Amount:      50000,
				PaymentDate: "2026-02-10",
			},
			StudentFirstName: "Maria",
			StudentLastName:  "Gonzalez",
		},
	}}
	svc := newPaymentService(repo, &fakeDebtLines{}, &fakePlanCompleter{}, &fakeAudit{})

	receipt, err := svc.Receipt(context.Background(), "REC-1")
	require.NoError(t, err)
	assert.Equal(t, "Maria Gonzalez", receipt.StudentName)
	assert.Equal(t, "efectivo", receipt.PaymentMethod)
	require.Len(t, receipt.Lines, 2)
	assert.Equal(t, "Matricula", receipt.Lines[0].Concept)
	assert.Equal(t, "Sin concepto", receipt.Lines[1].Concept)
	assert.Equal(t, 200000.0, receipt.Total)
}

func TestPaymentServiceReceiptNotFound(t *testing.T) {
	svc := newPaymentService(&fakeSettlementRepo{}, &fakeDebtLines{}, &fakePlanCompleter{}, &fakeAudit{})

	_, err := svc.Receipt(context.Background(), "REC-NONE")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}
