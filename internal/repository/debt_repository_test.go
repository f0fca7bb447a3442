package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edupagos/colegio-api/internal/models"
)

var debtTestColumns = []string{
	"id", "student_id", "concept_id", "amount", "due_date", "status",
	"installment_number", "payment_plan_id", "notes", "created_at", "updated_at",
	"concept_name", "plan_name",
}

func TestDebtFindByIDsPreservesOrder(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewDebtRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows(debtTestColumns).
		AddRow("d1", "s1", "c1", 100000.0, "2026-03-10", string(models.DebtStatusPending), nil, nil, nil, now, now, "Matricula", nil).
		AddRow("d2", "s1", "c1", 150000.0, "2026-02-10", string(models.DebtStatusPending), nil, nil, nil, now, now, "Matricula", nil)
	mock.ExpectQuery(regexp.QuoteMeta("WHERE d.id IN ($1, $2)")).
		WithArgs("d2", "d1").
		WillReturnRows(rows)

	debts, err := repo.FindByIDs(context.Background(), []string{"d2", "d1"})
	require.NoError(t, err)
	require.Len(t, debts, 2)
	assert.Equal(t, "d2", debts[0].ID)
	assert.Equal(t, "d1", debts[1].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDebtApplyLateFeeGrowsBalance(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewDebtRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE student_debts SET amount = amount + $2, notes = $3, updated_at = $4 WHERE id = $1")).
		WithArgs("d1", 10000.0, "Mora aplicada: 10.000 Gs", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.ApplyLateFee(context.Background(), "d1", 10000, "Mora aplicada: 10.000 Gs")
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDebtSummarizeStudent(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewDebtRepository(db)

	rows := sqlmock.NewRows([]string{"student_id", "pending_total", "pending_count", "partial_count", "paid_count", "collected_total"}).
		AddRow("s1", 250000.0, 2, 1, 4, 0.0)
	mock.ExpectQuery("FROM student_debts WHERE student_id = ").
		WithArgs("s1").
		WillReturnRows(rows)

	summary, err := repo.SummarizeStudent(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, 250000.0, summary.PendingTotal)
	assert.Equal(t, 2, summary.PendingCount)
	assert.Equal(t, 1, summary.PartialCount)
	assert.Equal(t, 4, summary.PaidCount)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDebtCountOverdueAt(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewDebtRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM student_debts WHERE status IN ('pending', 'partial') AND due_date < $1")).
		WithArgs("2026-03-01").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))

	total, err := repo.CountOverdueAt(context.Background(), "2026-03-01")
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}
