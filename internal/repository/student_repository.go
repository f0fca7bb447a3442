package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/edupagos/colegio-api/internal/models"
)

// StudentRepository manages persistence for student records.
type StudentRepository struct {
	db *sqlx.DB
}

// NewStudentRepository constructs a StudentRepository.
func NewStudentRepository(db *sqlx.DB) *StudentRepository {
	return &StudentRepository{db: db}
}

const studentColumns = `s.id, s.first_name, s.last_name, s.identification, s.date_of_birth, s.grade_id,
        s.enrollment_date, s.guardian_name, s.guardian_phone, s.guardian_email, s.address, s.is_active,
        s.created_at, s.updated_at, g.name AS grade_name`

// List returns students matching the provided filters.
func (r *StudentRepository) List(ctx context.Context, filter models.StudentFilter) ([]models.StudentDetail, int, error) {
	base := "FROM students s LEFT JOIN grades g ON g.id = s.grade_id"
	args := []interface{}{}
	conditions := []string{"1=1"}

	if filter.GradeID != "" {
		conditions = append(conditions, fmt.Sprintf("s.grade_id = $%d", len(args)+1))
		args = append(args, filter.GradeID)
	}
	if filter.Active != nil {
		conditions = append(conditions, fmt.Sprintf("s.is_active = $%d", len(args)+1))
		args = append(args, *filter.Active)
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(LOWER(s.first_name) LIKE $%d OR LOWER(s.last_name) LIKE $%d OR LOWER(s.identification) LIKE $%d)", len(args)+1, len(args)+1, len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}

	base = fmt.Sprintf("%s WHERE %s", base, strings.Join(conditions, " AND "))

	sortBy := filter.SortBy
	allowedSorts := map[string]string{
		"last_name":       "s.last_name",
		"first_name":      "s.first_name",
		"enrollment_date": "s.enrollment_date",
		"created_at":      "s.created_at",
	}
	column, ok := allowedSorts[sortBy]
	if !ok {
		column = "s.last_name"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "ASC"
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf("SELECT %s %s ORDER BY %s %s LIMIT %d OFFSET %d", studentColumns, base, column, order, size, offset)

	var students []models.StudentDetail
	if err := r.db.SelectContext(ctx, &students, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list students: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) "+base, args...); err != nil {
		return nil, 0, fmt.Errorf("count students: %w", err)
	}
	return students, total, nil
}

// FindByID fetches a student detail by ID.
func (r *StudentRepository) FindByID(ctx context.Context, id string) (*models.StudentDetail, error) {
	query := fmt.Sprintf(`SELECT %s FROM students s LEFT JOIN grades g ON g.id = s.grade_id WHERE s.id = $1`, studentColumns)
	var detail models.StudentDetail
	if err := r.db.GetContext(ctx, &detail, query, id); err != nil {
		return nil, err
	}
	return &detail, nil
}

// Create inserts a student together with any initial concept debts in one
// transaction.
func (r *StudentRepository) Create(ctx context.Context, student *models.Student, debts []models.StudentDebt) error {
	if student.ID == "" {
		student.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	student.CreatedAt = now
	student.UpdatedAt = now

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create student: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	const query = `INSERT INTO students (id, first_name, last_name, identification, date_of_birth, grade_id,
        enrollment_date, guardian_name, guardian_phone, guardian_email, address, is_active, created_at, updated_at)
        VALUES (:id, :first_name, :last_name, :identification, :date_of_birth, :grade_id,
        :enrollment_date, :guardian_name, :guardian_phone, :guardian_email, :address, :is_active, :created_at, :updated_at)`
	if _, err := tx.NamedExecContext(ctx, query, student); err != nil {
		return fmt.Errorf("create student: %w", err)
	}

	for i := range debts {
		debts[i].StudentID = student.ID
		if err := insertDebtTx(ctx, tx, &debts[i]); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit create student: %w", err)
	}
	return nil
}

// Update modifies an existing student.
func (r *StudentRepository) Update(ctx context.Context, student *models.Student) error {
	student.UpdatedAt = time.Now().UTC()
	const query = `UPDATE students SET first_name = :first_name, last_name = :last_name,
        identification = :identification, date_of_birth = :date_of_birth, grade_id = :grade_id,
        enrollment_date = :enrollment_date, guardian_name = :guardian_name, guardian_phone = :guardian_phone,
        guardian_email = :guardian_email, address = :address, is_active = :is_active, updated_at = :updated_at
        WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, student); err != nil {
		return fmt.Errorf("update student: %w", err)
	}
	return nil
}

// Delete removes a student. Debts, payments, plans and guardian links cascade
// at the schema level.
func (r *StudentRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM students WHERE id = $1", id); err != nil {
		return fmt.Errorf("delete student: %w", err)
	}
	return nil
}

// CountActive returns the number of active students.
func (r *StudentRepository) CountActive(ctx context.Context) (int, error) {
	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM students WHERE is_active = true"); err != nil {
		return 0, fmt.Errorf("count active students: %w", err)
	}
	return total, nil
}
