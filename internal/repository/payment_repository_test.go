package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edupagos/colegio-api/internal/models"
)

var paymentTestColumns = []string{
	"id", "student_id", "debt_id", "amount", "payment_date", "payment_method",
	"receipt_number", "notes", "registered_by", "status", "cancelled_at", "cancelled_by",
	"created_at", "updated_at",
}

func TestApplySettlementCommitsTogether(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewPaymentRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO payments").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO payments").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE student_debts SET amount = $2, status = $3, updated_at = $4 WHERE id = $1")).
		WithArgs("d1", 0.0, models.DebtStatusPaid, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE student_debts SET amount = $2, status = $3, updated_at = $4 WHERE id = $1")).
		WithArgs("d2", 50000.0, models.DebtStatusPartial, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	debtA := "d1"
	debtB := "d2"
	payments := []models.Payment{
		{StudentID: "s1", DebtID: &debtA, Amount: 150000, PaymentDate: "2026-03-01"},
		{StudentID: "s1", DebtID: &debtB, Amount: 50000, PaymentDate: "2026-03-01"},
	}
	updates := []DebtUpdate{
		{ID: "d1", Amount: 0, Status: models.DebtStatusPaid},
		{ID: "d2", Amount: 50000, Status: models.DebtStatusPartial},
	}

	require.NoError(t, repo.ApplySettlement(context.Background(), payments, updates))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApplySettlementRollsBackOnFailedUpdate(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewPaymentRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO payments").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE student_debts").WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	debtA := "d1"
	err := repo.ApplySettlement(context.Background(),
		[]models.Payment{{StudentID: "s1", DebtID: &debtA, Amount: 150000, PaymentDate: "2026-03-01"}},
		[]DebtUpdate{{ID: "d1", Amount: 0, Status: models.DebtStatusPaid}})
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCancelRestoresDebtBalance(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewPaymentRepository(db)

	now := time.Now()
	loaded := sqlmock.NewRows(paymentTestColumns).
		AddRow("p1", "s1", "d1", 50000.0, "2026-03-01", "efectivo", "REC-1", nil, nil, string(models.PaymentStatusActive), nil, nil, now, now)
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FROM payments WHERE id = $1 FOR UPDATE")).
		WithArgs("p1").WillReturnRows(loaded)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE payments SET status = $2, cancelled_at = $3, cancelled_by = $4, updated_at = $3 WHERE id = $1")).
		WithArgs("p1", models.PaymentStatusCancelled, sqlmock.AnyArg(), "admin-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT amount, status FROM student_debts WHERE id = $1 FOR UPDATE")).
		WithArgs("d1").
		WillReturnRows(sqlmock.NewRows([]string{"amount", "status"}).AddRow(0.0, string(models.DebtStatusPaid)))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE student_debts SET amount = $2, status = $3, updated_at = $4 WHERE id = $1")).
		WithArgs("d1", 50000.0, models.DebtStatusPending, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	payment, err := repo.Cancel(context.Background(), "p1", "admin-1")
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusCancelled, payment.Status)
	require.NotNil(t, payment.CancelledBy)
	assert.Equal(t, "admin-1", *payment.CancelledBy)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCancelRejectsInactivePayment(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewPaymentRepository(db)

	now := time.Now()
	loaded := sqlmock.NewRows(paymentTestColumns).
		AddRow("p1", "s1", "d1", 50000.0, "2026-03-01", nil, "REC-1", nil, nil, string(models.PaymentStatusCancelled), now, "admin-1", now, now)
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FROM payments WHERE id = $1 FOR UPDATE")).
		WithArgs("p1").WillReturnRows(loaded)
	mock.ExpectRollback()

	_, err := repo.Cancel(context.Background(), "p1", "admin-1")
	assert.ErrorIs(t, err, ErrPaymentNotActive)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindByReceiptNotFound(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewPaymentRepository(db)

	mock.ExpectQuery("FROM payments p").
		WillReturnRows(sqlmock.NewRows(paymentTestColumns))

	_, err := repo.FindByReceipt(context.Background(), "REC-404")
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
