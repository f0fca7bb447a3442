package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/edupagos/colegio-api/internal/models"
)

// GuardianRepository manages the links between parent accounts and students.
type GuardianRepository struct {
	db *sqlx.DB
}

// NewGuardianRepository constructs a GuardianRepository.
func NewGuardianRepository(db *sqlx.DB) *GuardianRepository {
	return &GuardianRepository{db: db}
}

// Link attaches a user to a student as guardian and promotes plain users to
// the parent role in the same transaction.
func (r *GuardianRepository) Link(ctx context.Context, link *models.StudentGuardian) error {
	if link.ID == "" {
		link.ID = uuid.NewString()
	}
	link.CreatedAt = time.Now().UTC()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin guardian link: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	const insert = `INSERT INTO student_guardians (id, student_id, guardian_user_id, relationship, created_at)
        VALUES (:id, :student_id, :guardian_user_id, :relationship, :created_at)`
	if _, err := tx.NamedExecContext(ctx, insert, link); err != nil {
		return fmt.Errorf("link guardian: %w", err)
	}

	const promote = `UPDATE users SET role = $2, updated_at = $3 WHERE id = $1 AND role = $4`
	if _, err := tx.ExecContext(ctx, promote, link.GuardianUserID, models.RoleParent, time.Now().UTC(), models.RoleUser); err != nil {
		return fmt.Errorf("promote guardian role: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit guardian link: %w", err)
	}
	return nil
}

// Exists reports whether a guardian link already joins this user and student.
func (r *GuardianRepository) Exists(ctx context.Context, studentID, userID string) (bool, error) {
	var count int
	const query = `SELECT COUNT(*) FROM student_guardians WHERE student_id = $1 AND guardian_user_id = $2`
	if err := r.db.GetContext(ctx, &count, query, studentID, userID); err != nil {
		return false, fmt.Errorf("check guardian link: %w", err)
	}
	return count > 0, nil
}

// FindByID fetches one guardian link.
func (r *GuardianRepository) FindByID(ctx context.Context, id string) (*models.StudentGuardian, error) {
	const query = `SELECT id, student_id, guardian_user_id, relationship, created_at
        FROM student_guardians WHERE id = $1`
	var link models.StudentGuardian
	if err := r.db.GetContext(ctx, &link, query, id); err != nil {
		return nil, err
	}
	return &link, nil
}

// ListByStudent returns the guardians of one student with their account info.
func (r *GuardianRepository) ListByStudent(ctx context.Context, studentID string) ([]models.GuardianDetail, error) {
	const query = `SELECT sg.id, sg.student_id, sg.guardian_user_id, sg.relationship, sg.created_at,
            u.full_name AS guardian_full_name, u.email AS guardian_email
        FROM student_guardians sg
        JOIN users u ON u.id = sg.guardian_user_id
        WHERE sg.student_id = $1
        ORDER BY sg.created_at ASC`
	var guardians []models.GuardianDetail
	if err := r.db.SelectContext(ctx, &guardians, query, studentID); err != nil {
		return nil, fmt.Errorf("list guardians: %w", err)
	}
	return guardians, nil
}

// ListStudentsByUser returns the students a guardian account is linked to.
func (r *GuardianRepository) ListStudentsByUser(ctx context.Context, userID string) ([]models.GuardianStudent, error) {
	query := fmt.Sprintf(`SELECT %s, sg.relationship
        FROM student_guardians sg
        JOIN students s ON s.id = sg.student_id
        LEFT JOIN grades g ON g.id = s.grade_id
        WHERE sg.guardian_user_id = $1
        ORDER BY s.last_name ASC, s.first_name ASC`, studentColumns)
	var students []models.GuardianStudent
	if err := r.db.SelectContext(ctx, &students, query, userID); err != nil {
		return nil, fmt.Errorf("list guardian students: %w", err)
	}
	return students, nil
}

// IsGuardianOf reports whether the user may view this student's data.
func (r *GuardianRepository) IsGuardianOf(ctx context.Context, userID, studentID string) (bool, error) {
	return r.Exists(ctx, studentID, userID)
}

// Delete removes a guardian link.
func (r *GuardianRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM student_guardians WHERE id = $1", id); err != nil {
		return fmt.Errorf("delete guardian link: %w", err)
	}
	return nil
}
