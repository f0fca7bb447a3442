package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/edupagos/colegio-api/internal/models"
)

// ConceptRepository manages persistence for debt concepts.
type ConceptRepository struct {
	db *sqlx.DB
}

// NewConceptRepository constructs a ConceptRepository.
func NewConceptRepository(db *sqlx.DB) *ConceptRepository {
	return &ConceptRepository{db: db}
}

// List returns concepts matching the provided filters.
func (r *ConceptRepository) List(ctx context.Context, filter models.ConceptFilter) ([]models.DebtConcept, int, error) {
	base := "FROM debt_concepts"
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

	query := fmt.Sprintf(`SELECT id, name, description, amount, is_recurring, is_active, created_at, updated_at
        %s ORDER BY name ASC LIMIT %d OFFSET %d`, base, size, offset)

	var concepts []models.DebtConcept
	if err := r.db.SelectContext(ctx, &concepts, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list concepts: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) "+base, args...); err != nil {
		return nil, 0, fmt.Errorf("count concepts: %w", err)
	}
	return concepts, total, nil
}

// FindByID fetches one concept.
func (r *ConceptRepository) FindByID(ctx context.Context, id string) (*models.DebtConcept, error) {
	const query = `SELECT id, name, description, amount, is_recurring, is_active, created_at, updated_at
        FROM debt_concepts WHERE id = $1`
	var concept models.DebtConcept
	if err := r.db.GetContext(ctx, &concept, query, id); err != nil {
		return nil, err
	}
	return &concept, nil
}

// FindByName fetches a concept by its unique name.
func (r *ConceptRepository) FindByName(ctx context.Context, name string) (*models.DebtConcept, error) {
	const query = `SELECT id, name, description, amount, is_recurring, is_active, created_at, updated_at
        FROM debt_concepts WHERE name = $1`
	var concept models.DebtConcept
	if err := r.db.GetContext(ctx, &concept, query, name); err != nil {
		return nil, err
	}
	return &concept, nil
}

// Create inserts a new concept.
func (r *ConceptRepository) Create(ctx context.Context, concept *models.DebtConcept) error {
	if concept.ID == "" {
		concept.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	concept.CreatedAt = now
	concept.UpdatedAt = now
	const query = `INSERT INTO debt_concepts (id, name, description, amount, is_recurring, is_active, created_at, updated_at)
        VALUES (:id, :name, :description, :amount, :is_recurring, :is_active, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, concept); err != nil {
		return fmt.Errorf("create concept: %w", err)
	}
	return nil
}

// EnsureByName returns the concept with the given name, creating it when
// absent. Used by the plan generator for its shared installment concept.
func (r *ConceptRepository) EnsureByName(ctx context.Context, name, description string) (*models.DebtConcept, error) {
	concept, err := r.FindByName(ctx, name)
	if err == nil {
		return concept, nil
	}
	if err != sql.ErrNoRows {
		return nil, fmt.Errorf("lookup concept %q: %w", name, err)
	}
	desc := description
	created := &models.DebtConcept{
		Name:        name,
		Description: &desc,
		Amount:      0,
		IsRecurring: false,
		IsActive:    true,
	}
	if err := r.Create(ctx, created); err != nil {
		return nil, err
	}
	return created, nil
}

// Update modifies an existing concept.
func (r *ConceptRepository) Update(ctx context.Context, concept *models.DebtConcept) error {
	concept.UpdatedAt = time.Now().UTC()
	const query = `UPDATE debt_concepts SET name = :name, description = :description, amount = :amount,
        is_recurring = :is_recurring, is_active = :is_active, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, concept); err != nil {
		return fmt.Errorf("update concept: %w", err)
	}
	return nil
}

// Delete removes a concept. Debts keep their concept_id as a soft reference.
func (r *ConceptRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM debt_concepts WHERE id = $1", id); err != nil {
		return fmt.Errorf("delete concept: %w", err)
	}
	return nil
}
