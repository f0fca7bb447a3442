package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/edupagos/colegio-api/internal/models"
	"github.com/edupagos/colegio-api/internal/repository"
	appErrors "github.com/edupagos/colegio-api/pkg/errors"
)

type gradeRepository interface {
	List(ctx context.Context, filter models.GradeFilter) ([]models.Grade, int, error)
	FindByID(ctx context.Context, id string) (*models.Grade, error)
	Create(ctx context.Context, grade *models.Grade) error
	Update(ctx context.Context, grade *models.Grade) error
	Delete(ctx context.Context, id string) error
}

// CreateGradeRequest represents payload for creating grades.
type CreateGradeRequest struct {
	Name        string  `json:"name" validate:"required,max=200"`
	Level       int     `json:"level" validate:"gte=0"`
	MonthlyFee  float64 `json:"monthly_fee" validate:"gte=0"`
	Description *string `json:"description" validate:"omitempty,max=1000"`
}

// UpdateGradeRequest represents payload for updating grades.
type UpdateGradeRequest struct {
	Name        string  `json:"name" validate:"required,max=200"`
	Level       int     `json:"level" validate:"gte=0"`
	MonthlyFee  float64 `json:"monthly_fee" validate:"gte=0"`
	Description *string `json:"description" validate:"omitempty,max=1000"`
	IsActive    *bool   `json:"is_active"`
}

// GradeService orchestrates school grade operations.
type GradeService struct {
	repo      gradeRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewGradeService constructs a GradeService.
func NewGradeService(repo gradeRepository, validate *validator.Validate, logger *zap.Logger) *GradeService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GradeService{repo: repo, validator: validate, logger: logger}
}

// List returns grades plus pagination data.
func (s *GradeService) List(ctx context.Context, filter models.GradeFilter) ([]models.Grade, *models.Pagination, error) {
	grades, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list grades")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	return grades, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Get returns a grade by id.
func (s *GradeService) Get(ctx context.Context, id string) (*models.Grade, error) {
	grade, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "grade not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load grade")
	}
	return grade, nil
}

// Create registers a new grade.
func (s *GradeService) Create(ctx context.Context, req CreateGradeRequest) (*models.Grade, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid grade payload")
	}
	grade := &models.Grade{
		Name:        strings.TrimSpace(req.Name),
		Level:       req.Level,
		MonthlyFee:  req.MonthlyFee,
		Description: normalizeOptional(req.Description),
		IsActive:    true,
	}
	if err := s.repo.Create(ctx, grade); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create grade")
	}
	return grade, nil
}

// Update modifies an existing grade.
func (s *GradeService) Update(ctx context.Context, id string, req UpdateGradeRequest) (*models.Grade, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid grade payload")
	}
	grade, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	grade.Name = strings.TrimSpace(req.Name)
	grade.Level = req.Level
	grade.MonthlyFee = req.MonthlyFee
	grade.Description = normalizeOptional(req.Description)
	if req.IsActive != nil {
		grade.IsActive = *req.IsActive
	}

	if err := s.repo.Update(ctx, grade); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update grade")
	}
	return grade, nil
}

// Delete removes a grade. The delete is rejected while students still point
// at it.
func (s *GradeService) Delete(ctx context.Context, id string) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrReferenced) {
			return appErrors.Clone(appErrors.ErrConstraint, "grade has enrolled students")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete grade")
	}
	return nil
}
