package models

import (
	"strconv"
	"time"
)

// DebtStatus is the lifecycle state of a ledger line.
type DebtStatus string

const (
	DebtStatusPending DebtStatus = "pending"
	DebtStatusPartial DebtStatus = "partial"
	DebtStatusPaid    DebtStatus = "paid"
)

// StudentDebt is one ledger line. Amount is the outstanding balance, not the
// originally assigned amount: it shrinks on payment application and grows on
// late fees and payment cancellations. InstallmentNumber and PaymentPlanID are
// set together or not at all.
type StudentDebt struct {
	ID                string     `db:"id" json:"id"`
	StudentID         string     `db:"student_id" json:"student_id"`
	ConceptID         string     `db:"concept_id" json:"concept_id"`
	Amount            float64    `db:"amount" json:"amount"`
	DueDate           string     `db:"due_date" json:"due_date"`
	Status            DebtStatus `db:"status" json:"status"`
	InstallmentNumber *int       `db:"installment_number" json:"installment_number,omitempty"`
	PaymentPlanID     *string    `db:"payment_plan_id" json:"payment_plan_id,omitempty"`
	Notes             *string    `db:"notes" json:"notes,omitempty"`
	CreatedAt         time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time  `db:"updated_at" json:"updated_at"`
}

// DebtDetail joins concept and plan names onto a ledger line.
type DebtDetail struct {
	StudentDebt
	ConceptName string  `db:"concept_name" json:"concept_name"`
	PlanName    *string `db:"plan_name" json:"plan_name,omitempty"`
}

// Label renders the line the way the cashier screen shows it: plan
// installments as "Plan - Cuota N", plain debts by concept name.
func (d DebtDetail) Label() string {
	if d.PlanName != nil && d.InstallmentNumber != nil {
		return *d.PlanName + " - Cuota " + strconv.Itoa(*d.InstallmentNumber)
	}
	if d.ConceptName != "" {
		return d.ConceptName
	}
	return "Sin concepto"
}

// DebtFilter narrows ledger listings.
type DebtFilter struct {
	StudentID string
	Statuses  []DebtStatus
	PlanID    string
	Page      int
	PageSize  int
}
