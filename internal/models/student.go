package models

import "time"

// Student is a student record. GuardianName/Phone/Email are legacy free-text
// fields kept alongside the StudentGuardian links.
type Student struct {
	ID             string    `db:"id" json:"id"`
	FirstName      string    `db:"first_name" json:"first_name"`
	LastName       string    `db:"last_name" json:"last_name"`
	Identification *string   `db:"identification" json:"identification,omitempty"`
	DateOfBirth    *string   `db:"date_of_birth" json:"date_of_birth,omitempty"`
	GradeID        *string   `db:"grade_id" json:"grade_id,omitempty"`
	EnrollmentDate string    `db:"enrollment_date" json:"enrollment_date"`
	GuardianName   *string   `db:"guardian_name" json:"guardian_name,omitempty"`
	GuardianPhone  *string   `db:"guardian_phone" json:"guardian_phone,omitempty"`
	GuardianEmail  *string   `db:"guardian_email" json:"guardian_email,omitempty"`
	Address        *string   `db:"address" json:"address,omitempty"`
	IsActive       bool      `db:"is_active" json:"is_active"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

// StudentDetail joins the grade catalog onto a student row.
type StudentDetail struct {
	Student
	GradeName *string `db:"grade_name" json:"grade_name,omitempty"`
}

// StudentFilter narrows student listings.
type StudentFilter struct {
	GradeID   string
	Active    *bool
	Search    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// StudentBalance aggregates a student's ledger position.
type StudentBalance struct {
	StudentID      string  `db:"student_id" json:"student_id"`
	PendingTotal   float64 `db:"pending_total" json:"pending_total"`
	PendingCount   int     `db:"pending_count" json:"pending_count"`
	PartialCount   int     `db:"partial_count" json:"partial_count"`
	PaidCount      int     `db:"paid_count" json:"paid_count"`
	OverdueCount   int     `json:"overdue_count"`
	CollectedTotal float64 `db:"collected_total" json:"collected_total"`
}
