package models

import "time"

// Grade is a school level with its monthly fee.
type Grade struct {
	ID          string    `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	Level       int       `db:"level" json:"level"`
	MonthlyFee  float64   `db:"monthly_fee" json:"monthly_fee"`
	Description *string   `db:"description" json:"description,omitempty"`
	IsActive    bool      `db:"is_active" json:"is_active"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// GradeFilter narrows grade listings.
type GradeFilter struct {
	Active   *bool
	Search   string
	Page     int
	PageSize int
}
