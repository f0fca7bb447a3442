package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/edupagos/colegio-api/internal/models"
)

// ErrReferenced signals a delete blocked by a foreign-key constraint.
var ErrReferenced = errors.New("row is referenced by other records")

const pqForeignKeyViolation = "23503"

// GradeRepository manages persistence for school grades.
type GradeRepository struct {
	db *sqlx.DB
}

// NewGradeRepository constructs a GradeRepository.
func NewGradeRepository(db *sqlx.DB) *GradeRepository {
	return &GradeRepository{db: db}
}

// List returns grades matching the provided filters, ordered by level.
func (r *GradeRepository) List(ctx context.Context, filter models.GradeFilter) ([]models.Grade, int, error) {
	base := "FROM grades"
	args := []interface{}{}
	conditions := []string{"1=1"}

	if filter.Active != nil {
		conditions = append(conditions, fmt.Sprintf("is_active = $%d", len(args)+1))
		args = append(args, *filter.Active)
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("LOWER(name) LIKE $%d", len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}

	base = fmt.Sprintf("%s WHERE %s", base, strings.Join(conditions, " AND "))

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT id, name, level, monthly_fee, description, is_active, created_at, updated_at
        %s ORDER BY level ASC, name ASC LIMIT %d OFFSET %d`, base, size, offset)

	var grades []models.Grade
	if err := r.db.SelectContext(ctx, &grades, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list grades: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) "+base, args...); err != nil {
		return nil, 0, fmt.Errorf("count grades: %w", err)
	}
	return grades, total, nil
}

// FindByID fetches one grade.
func (r *GradeRepository) FindByID(ctx context.Context, id string) (*models.Grade, error) {
	const query = `SELECT id, name, level, monthly_fee, description, is_active, created_at, updated_at
        FROM grades WHERE id = $1`
	var grade models.Grade
	if err := r.db.GetContext(ctx, &grade, query, id); err != nil {
		return nil, err
	}
	return &grade, nil
}

// Create inserts a new grade.
func (r *GradeRepository) Create(ctx context.Context, grade *models.Grade) error {
	if grade.ID == "" {
		grade.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	grade.CreatedAt = now
	grade.UpdatedAt = now
	const query = `INSERT INTO grades (id, name, level, monthly_fee, description, is_active, created_at, updated_at)
        VALUES (:id, :name, :level, :monthly_fee, :description, :is_active, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, grade); err != nil {
		return fmt.Errorf("create grade: %w", err)
	}
	return nil
}

// Update modifies an existing grade.
func (r *GradeRepository) Update(ctx context.Context, grade *models.Grade) error {
	grade.UpdatedAt = time.Now().UTC()
	const query = `UPDATE grades SET name = :name, level = :level, monthly_fee = :monthly_fee,
        description = :description, is_active = :is_active, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, grade); err != nil {
		return fmt.Errorf("update grade: %w", err)
	}
	return nil
}

// Delete removes a grade. Students reference grades with a plain foreign key,
// so the database blocks the delete while any student points at it.
func (r *GradeRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM grades WHERE id = $1", id); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == pqForeignKeyViolation {
			return ErrReferenced
		}
		return fmt.Errorf("delete grade: %w", err)
	}
	return nil
}
