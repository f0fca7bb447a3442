package ledger

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edupagos/colegio-api/internal/models"
)

func TestDistributeFullSettlement(t *testing.T) {
	debts := []OpenDebt{
		{ID: "a", Balance: 150000},
		{ID: "b", Balance: 250000},
	}
	allocs, err := Distribute(400000, debts)
	require.NoError(t, err)
	require.Len(t, allocs, 2)
	assert.Equal(t, 150000.0, allocs[0].Applied)
	assert.Equal(t, models.DebtStatusPaid, allocs[0].NewStatus)
	assert.Equal(t, 250000.0, allocs[1].Applied)
	assert.Equal(t, models.DebtStatusPaid, allocs[1].NewStatus)
}

func TestDistributePartialStopsAtFirstShortfall(t *testing.T) {
	debts := []OpenDebt{
		{ID: "a", Balance: 100000},
		{ID: "b", Balance: 100000},
		{ID: "c", Balance: 100000},
	}
	allocs, err := Distribute(150000, debts)
	require.NoError(t, err)
	require.Len(t, allocs, 2)

	assert.Equal(t, 100000.0, allocs[0].Applied)
	assert.Equal(t, 0.0, allocs[0].NewBalance)
	assert.Equal(t, models.DebtStatusPaid, allocs[0].NewStatus)

	assert.Equal(t, 50000.0, allocs[1].Applied)
	assert.Equal(t, 50000.0, allocs[1].NewBalance)
	assert.Equal(t, models.DebtStatusPartial, allocs[1].NewStatus)
}

func TestDistributeConservesMoney(t *testing.T) {
	debts := []OpenDebt{
		{ID: "a", Balance: 33333.33},
		{ID: "b", Balance: 66666.67},
		{ID: "c", Balance: 12345.01},
	}
	amount := 99999.99
	allocs, err := Distribute(amount, debts)
	require.NoError(t, err)

	var applied float64
	for _, a := range allocs {
		applied = Round2(applied + a.Applied)
	}
	assert.InDelta(t, amount, applied, Epsilon)
}

func TestDistributePaidAtEpsilon(t *testing.T) {
	allocs, err := Distribute(99.995, []OpenDebt{{ID: "a", Balance: 100}})
	require.NoError(t, err)
	require.Len(t, allocs, 1)
	// round2(100 - 100.00) leaves 0.00 <= epsilon
	assert.Equal(t, models.DebtStatusPaid, allocs[0].NewStatus)
}

func TestDistributeRejectsOverPayment(t *testing.T) {
	debts := []OpenDebt{{ID: "a", Balance: 50000}, {ID: "b", Balance: 25000}}
	_, err := Distribute(75001, debts)
	assert.ErrorIs(t, err, ErrOverPayment)
}

func TestDistributeRejectsEmptySelection(t *testing.T) {
	_, err := Distribute(1000, nil)
	assert.ErrorIs(t, err, ErrNoDebtsSelected)
}

func TestDistributeRejectsNonPositiveAmount(t *testing.T) {
	debts := []OpenDebt{{ID: "a", Balance: 1000}}
	_, err := Distribute(0, debts)
	assert.ErrorIs(t, err, ErrInvalidAmount)
	_, err = Distribute(-5, debts)
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

func TestRestoreStatus(t *testing.T) {
	assert.Equal(t, models.DebtStatusPending, RestoreStatus(models.DebtStatusPaid))
	assert.Equal(t, models.DebtStatusPartial, RestoreStatus(models.DebtStatusPartial))
	assert.Equal(t, models.DebtStatusPending, RestoreStatus(models.DebtStatusPending))
}

func TestMonthlyPayment(t *testing.T) {
	assert.Equal(t, 10000.0, MonthlyPayment(120000, 12))

	// Known drift: 3 x 33 = 99 != 100. The remainder is not redistributed.
	monthly := MonthlyPayment(100, 3)
	assert.Equal(t, 33.0, monthly)
	assert.NotEqual(t, 100.0, monthly*3)
}

func TestRound2HalfAwayFromZero(t *testing.T) {
	assert.Equal(t, 0.13, Round2(0.125))
	assert.Equal(t, -0.13, Round2(-0.125))
	assert.Equal(t, 10.0, Round2(9.999))
}

func TestIsOverdueAt(t *testing.T) {
	today := "2025-06-15"
	assert.True(t, IsOverdueAt("2000-01-01", today))
	assert.False(t, IsOverdueAt("2099-01-01", today))
	// Boundary: a debt due today is not overdue.
	assert.False(t, IsOverdueAt(today, today))
	assert.False(t, IsOverdueAt("", today))
}

func TestAddMonthsPreservesDay(t *testing.T) {
	start := time.Date(2025, time.January, 15, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, "2025-02-15", AddMonths(start, 1).Format(DateLayout))
	assert.Equal(t, "2026-01-15", AddMonths(start, 12).Format(DateLayout))
}

func TestAddMonthsClampsToMonthEnd(t *testing.T) {
	start := time.Date(2025, time.January, 31, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, "2025-02-28", AddMonths(start, 1).Format(DateLayout))
	assert.Equal(t, "2025-04-30", AddMonths(start, 3).Format(DateLayout))

	leap := time.Date(2024, time.January, 31, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, "2024-02-29", AddMonths(leap, 1).Format(DateLayout))
}

func TestInstallmentDueDates(t *testing.T) {
	start := time.Date(2025, time.January, 15, 0, 0, 0, 0, time.UTC)
	dates := InstallmentDueDates(start, 12)
	require.Len(t, dates, 12)
	assert.Equal(t, "2025-01-15", dates[0])
	assert.Equal(t, "2025-06-15", dates[5])
	assert.Equal(t, "2025-12-15", dates[11])
	for _, d := range dates {
		assert.Equal(t, "-15", d[7:])
	}
}

func TestFormatGs(t *testing.T) {
	assert.Equal(t, "0", FormatGs(0))
	assert.Equal(t, "950", FormatGs(950))
	assert.Equal(t, "10.000", FormatGs(10000))
	assert.Equal(t, "1.234.567", FormatGs(1234567))
	assert.Equal(t, "-25.000", FormatGs(-25000))
}

func TestLateFeeNoteAndAppend(t *testing.T) {
	note := LateFeeNote(10000)
	assert.Equal(t, "Mora aplicada: 10.000 Gs", note)

	assert.Equal(t, note, AppendNote(nil, note))
	prior := "Deuda asignada al crear estudiante - Matricula"
	assert.Equal(t, prior+" | "+note, AppendNote(&prior, note))

	// Two applications leave two fragments in the trail.
	first := AppendNote(nil, LateFeeNote(10000))
	second := AppendNote(&first, LateFeeNote(10000))
	assert.Equal(t, "Mora aplicada: 10.000 Gs | Mora aplicada: 10.000 Gs", second)
}
