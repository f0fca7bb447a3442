package models

import "time"

// DebtConcept is a reusable fee template ("Matricula", "Cuota Mensual", ...).
type DebtConcept struct {
	ID          string    `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	Description *string   `db:"description" json:"description,omitempty"`
	Amount      float64   `db:"amount" json:"amount"`
	IsRecurring bool      `db:"is_recurring" json:"is_recurring"`
	IsActive    bool      `db:"is_active" json:"is_active"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// ConceptFilter narrows concept listings.
type ConceptFilter struct {
	Active   *bool
	Search   string
	Page     int
	PageSize int
}
