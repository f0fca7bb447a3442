package models

import "time"

// PlanStatus is the lifecycle state of a payment plan.
type PlanStatus string

const (
	PlanStatusActive    PlanStatus = "active"
	PlanStatusCompleted PlanStatus = "completed"
	PlanStatusCancelled PlanStatus = "cancelled"
)

// PaymentPlan splits a total into monthly installments. The financial
// parameters are immutable once the installments have been generated; only
// name and description may change afterwards.
type PaymentPlan struct {
	ID                   string     `db:"id" json:"id"`
	StudentID            string     `db:"student_id" json:"student_id"`
	Name                 string     `db:"name" json:"name"`
	Description          *string    `db:"description" json:"description,omitempty"`
	TotalAmount          float64    `db:"total_amount" json:"total_amount"`
	MonthlyPayment       float64    `db:"monthly_payment" json:"monthly_payment"`
	NumberOfInstallments int        `db:"number_of_installments" json:"number_of_installments"`
	StartDate            string     `db:"start_date" json:"start_date"`
	Status               PlanStatus `db:"status" json:"status"`
	CreatedAt            time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt            time.Time  `db:"updated_at" json:"updated_at"`
}

// PlanDetail adds student identity and installment progress to a plan row.
type PlanDetail struct {
	PaymentPlan
	StudentFirstName  string `db:"student_first_name" json:"student_first_name"`
	StudentLastName   string `db:"student_last_name" json:"student_last_name"`
	PaidInstallments  int    `db:"paid_installments" json:"paid_installments"`
	TotalInstallments int    `db:"total_installments" json:"total_installments"`
}

// PlanFilter narrows plan listings.
type PlanFilter struct {
	StudentID string
	Status    *PlanStatus
	Page      int
	PageSize  int
}
