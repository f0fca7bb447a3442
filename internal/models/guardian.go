package models

import "time"

// StudentGuardian links an authenticated user to a student.
type StudentGuardian struct {
	ID             string    `db:"id" json:"id"`
	StudentID      string    `db:"student_id" json:"student_id"`
	GuardianUserID string    `db:"guardian_user_id" json:"guardian_user_id"`
	Relationship   *string   `db:"relationship" json:"relationship,omitempty"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}

// GuardianDetail joins guardian user data onto a link row.
type GuardianDetail struct {
	StudentGuardian
	GuardianEmail    string `db:"guardian_email" json:"guardian_email"`
	GuardianFullName string `db:"guardian_full_name" json:"guardian_full_name"`
}

// GuardianStudent is a student row as seen from the parent portal.
type GuardianStudent struct {
	StudentDetail
	Relationship *string `db:"relationship" json:"relationship,omitempty"`
}
