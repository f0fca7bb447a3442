package service

import (
	"context"
	"database/sql"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/edupagos/colegio-api/internal/models"
	appErrors "github.com/edupagos/colegio-api/pkg/errors"
)

type conceptRepository interface {
	List(ctx context.Context, filter models.ConceptFilter) ([]models.DebtConcept, int, error)
	FindByID(ctx context.Context, id string) (*models.DebtConcept, error)
	FindByName(ctx context.Context, name string) (*models.DebtConcept, error)
	Create(ctx context.Context, concept *models.DebtConcept) error
	Update(ctx context.Context, concept *models.DebtConcept) error
	Delete(ctx context.Context, id string) error
}

// CreateConceptRequest represents payload for creating debt concepts.
type CreateConceptRequest struct {
	Name        string  `json:"name" validate:"required,max=200"`
	Description *string `json:"description" validate:"omitempty,max=1000"`
	Amount      float64 `json:"amount" validate:"gte=0"`
	IsRecurring bool    `json:"is_recurring"`
}

// UpdateConceptRequest represents payload for updating debt concepts.
type UpdateConceptRequest struct {
	Name        string  `json:"name" validate:"required,max=200"`
	Description *string `json:"description" validate:"omitempty,max=1000"`
	Amount      float64 `json:"amount" validate:"gte=0"`
	IsRecurring bool    `json:"is_recurring"`
	IsActive    *bool   `json:"is_active"`
}

// ConceptService orchestrates debt concept operations.
type ConceptService struct {
	repo      conceptRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewConceptService constructs a ConceptService.
func NewConceptService(repo conceptRepository, validate *validator.Validate, logger *zap.Logger) *ConceptService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ConceptService{repo: repo, validator: validate, logger: logger}
}

// List returns concepts plus pagination data.
func (s *ConceptService) List(ctx context.Context, filter models.ConceptFilter) ([]models.DebtConcept, *models.Pagination, error) {
	concepts, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list concepts")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	return concepts, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Get returns a concept by id.
func (s *ConceptService) Get(ctx context.Context, id string) (*models.DebtConcept, error) {
	concept, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "concept not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load concept")
	}
	return concept, nil
}

// Create registers a new concept. Names are unique.
func (s *ConceptService) Create(ctx context.Context, req CreateConceptRequest) (*models.DebtConcept, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid concept payload")
	}

	name := strings.TrimSpace(req.Name)
	if existing, err := s.repo.FindByName(ctx, name); err == nil && existing != nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, "a concept with that name already exists")
	} else if err != nil && err != sql.ErrNoRows {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check concept name")
	}

	concept := &models.DebtConcept{
		Name:        name,
		Description: normalizeOptional(req.Description),
		Amount:      req.Amount,
		IsRecurring: req.IsRecurring,
		IsActive:    true,
	}
	if err := s.repo.Create(ctx, concept); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create concept")
	}
	return concept, nil
}

// Update modifies an existing concept.
func (s *ConceptService) Update(ctx context.Context, id string, req UpdateConceptRequest) (*models.DebtConcept, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid concept payload")
	}
	concept, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	concept.Name = strings.TrimSpace(req.Name)
	concept.Description = normalizeOptional(req.Description)
	concept.Amount = req.Amount
	concept.IsRecurring = req.IsRecurring
	if req.IsActive != nil {
		concept.IsActive = *req.IsActive
	}

	if err := s.repo.Update(ctx, concept); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update concept")
	}
	return concept, nil
}

// Delete removes a concept. Existing debts keep their concept reference and
// render with an empty concept name afterwards.
func (s *ConceptService) Delete(ctx context.Context, id string) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete concept")
	}
	return nil
}
