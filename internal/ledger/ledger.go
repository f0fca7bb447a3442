// Package ledger implements the arithmetic core of the debt/payment engine:
// settlement distribution, balance rounding, installment schedules and the
// overdue predicate. Everything here is pure; persistence and transaction
// boundaries live in the repositories.
package ledger

import (
	"fmt"
	"math"

	"github.com/edupagos/colegio-api/internal/models"
)

// OpenDebt is the slice of a ledger line the distributor needs.
type OpenDebt struct {
	ID      string
	Balance float64
}

// Allocation is the outcome of applying part of a settlement to one debt.
type Allocation struct {
	DebtID     string
	Applied    float64
	NewBalance float64
	NewStatus  models.DebtStatus
}

// Distribution errors surfaced as validation failures by the payment service.
var (
	ErrNoDebtsSelected = fmt.Errorf("no debts selected")
	ErrInvalidAmount   = fmt.Errorf("payment amount must be positive")
	ErrOverPayment     = fmt.Errorf("payment amount exceeds selected debt total")
)

// Distribute applies a payment across debts in caller order, settling each
// line in full before moving to the next. Callers pass debts sorted by
// ascending due date so the oldest line absorbs money first. Debts the money
// never reaches produce no allocation. All arithmetic is rounded to 2 decimal
// places, half away from zero, to keep repeated subtraction drift-free.
func Distribute(amount float64, debts []OpenDebt) ([]Allocation, error) {
	if len(debts) == 0 {
		return nil, ErrNoDebtsSelected
	}
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	var total float64
	for _, d := range debts {
		total += d.Balance
	}
	if amount > Round2(total) {
		return nil, ErrOverPayment
	}

	remaining := amount
	allocations := make([]Allocation, 0, len(debts))
	for _, debt := range debts {
		if remaining <= 0 {
			break
		}
		applied := Round2(math.Min(remaining, debt.Balance))
		newBalance := Round2(debt.Balance - applied)
		status := models.DebtStatusPartial
		if Settled(newBalance) {
			status = models.DebtStatusPaid
		}
		allocations = append(allocations, Allocation{
			DebtID:     debt.ID,
			Applied:    applied,
			NewBalance: newBalance,
			NewStatus:  status,
		})
		remaining = Round2(remaining - applied)
	}
	return allocations, nil
}

// RestoreStatus derives the status of a debt after a payment against it is
// cancelled: a fully paid line reopens as pending, anything else keeps its
// status even though the balance grew.
func RestoreStatus(current models.DebtStatus) models.DebtStatus {
	if current == models.DebtStatusPaid {
		return models.DebtStatusPending
	}
	return current
}

// MonthlyPayment computes a plan's per-installment amount in whole currency
// units. The product monthly*n may drift from the plan total; the drift is
// accepted rather than redistributed onto the last installment.
func MonthlyPayment(total float64, installments int) float64 {
	return Round0(total / float64(installments))
}

// LateFeeNote renders the audit fragment appended to a debt's notes when a
// late fee is applied.
func LateFeeNote(fee float64) string {
	return fmt.Sprintf("Mora aplicada: %s Gs", FormatGs(fee))
}

// AppendNote concatenates an audit fragment onto existing notes with the
// " | " separator used across the ledger trail.
func AppendNote(existing *string, fragment string) string {
	if existing == nil || *existing == "" {
		return fragment
	}
	return *existing + " | " + fragment
}
