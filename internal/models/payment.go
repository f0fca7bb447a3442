package models

import "time"

// PaymentStatus is the lifecycle state of a payment row.
type PaymentStatus string

const (
	PaymentStatusActive    PaymentStatus = "active"
	PaymentStatusCancelled PaymentStatus = "cancelled"
)

// Payment is an append-only record of money applied toward one debt line.
// Settlements touching several debts create one row per debt, all sharing the
// settlement's receipt number. Cancellation marks the row, never deletes it.
type Payment struct {
	ID            string        `db:"id" json:"id"`
	StudentID     string        `db:"student_id" json:"student_id"`
	DebtID        *string       `db:"debt_id" json:"debt_id,omitempty"`
	Amount        float64       `db:"amount" json:"amount"`
	PaymentDate   string        `db:"payment_date" json:"payment_date"`
	PaymentMethod *string       `db:"payment_method" json:"payment_method,omitempty"`
	ReceiptNumber *string       `db:"receipt_number" json:"receipt_number,omitempty"`
	Notes         *string       `db:"notes" json:"notes,omitempty"`
	RegisteredBy  *string       `db:"registered_by" json:"registered_by,omitempty"`
	Status        PaymentStatus `db:"status" json:"status"`
	CancelledAt   *time.Time    `db:"cancelled_at" json:"cancelled_at,omitempty"`
	CancelledBy   *string       `db:"cancelled_by" json:"cancelled_by,omitempty"`
	CreatedAt     time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time     `db:"updated_at" json:"updated_at"`
}

// PaymentDetail joins student and concept context onto a payment row.
type PaymentDetail struct {
	Payment
	StudentFirstName string  `db:"student_first_name" json:"student_first_name"`
	StudentLastName  string  `db:"student_last_name" json:"student_last_name"`
	ConceptName      *string `db:"concept_name" json:"concept_name,omitempty"`
}

// PaymentFilter narrows payment history listings.
type PaymentFilter struct {
	StudentID string
	Status    *PaymentStatus
	DateFrom  string
	DateTo    string
	Search    string
	Page      int
	PageSize  int
}

// ReceiptLine is one settled concept on a printed receipt.
type ReceiptLine struct {
	Concept string  `json:"concept"`
	Amount  float64 `json:"amount"`
}

// Receipt is the projection handed to the receipt renderer after a settlement.
type Receipt struct {
	ReceiptNumber string        `json:"receipt_number"`
	PaymentDate   string        `json:"payment_date"`
	StudentID     string        `json:"student_id"`
	StudentName   string        `json:"student_name"`
	StudentDoc    string        `json:"student_doc,omitempty"`
	PaymentMethod string        `json:"payment_method,omitempty"`
	Lines         []ReceiptLine `json:"lines"`
	Total         float64       `json:"total"`
	Notes         string        `json:"notes,omitempty"`
}
