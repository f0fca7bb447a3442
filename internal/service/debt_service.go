package service

import (
	"context"
	"database/sql"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/edupagos/colegio-api/internal/ledger"
	"github.com/edupagos/colegio-api/internal/models"
	appErrors "github.com/edupagos/colegio-api/pkg/errors"
)

type debtRepository interface {
	List(ctx context.Context, filter models.DebtFilter) ([]models.DebtDetail, int, error)
	FindByID(ctx context.Context, id string) (*models.DebtDetail, error)
	Create(ctx context.Context, debt *models.StudentDebt) error
	ApplyLateFee(ctx context.Context, id string, fee float64, newNotes string) error
	Delete(ctx context.Context, id string) error
}

type debtStudentReader interface {
	FindByID(ctx context.Context, id string) (*models.StudentDetail, error)
}

// CreateDebtRequest represents payload for assigning a debt manually.
type CreateDebtRequest struct {
	StudentID string  `json:"student_id" validate:"required,uuid4"`
	ConceptID string  `json:"concept_id" validate:"required,uuid4"`
	Amount    float64 `json:"amount" validate:"required,gt=0"`
	DueDate   string  `json:"due_date" validate:"required,datetime=2006-01-02"`
	Notes     *string `json:"notes" validate:"omitempty,max=1000"`
}

// LateFeeRequest applies a surcharge to an overdue debt. A zero fee falls
// back to the configured default.
type LateFeeRequest struct {
	Fee float64 `json:"fee" validate:"gte=0"`
}

// DebtService orchestrates ledger line operations.
type DebtService struct {
	repo           debtRepository
	students       debtStudentReader
	concepts       studentConceptReader
	events         *EventService
	metrics        *MetricsService
	defaultLateFee float64
	validator      *validator.Validate
	logger         *zap.Logger
}

// NewDebtService constructs a DebtService.
func NewDebtService(repo debtRepository, students debtStudentReader, concepts studentConceptReader, events *EventService, metrics *MetricsService, defaultLateFee float64, validate *validator.Validate, logger *zap.Logger) *DebtService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DebtService{
		repo:           repo,
		students:       students,
		concepts:       concepts,
		events:         events,
		metrics:        metrics,
		defaultLateFee: defaultLateFee,
		validator:      validate,
		logger:         logger,
	}
}

// List returns ledger lines plus pagination data, ordered by ascending due
// date.
func (s *DebtService) List(ctx context.Context, filter models.DebtFilter) ([]models.DebtDetail, *models.Pagination, error) {
	debts, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list debts")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 50
	}
	return debts, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// ListOpen returns the open lines of one student in settlement order.
func (s *DebtService) ListOpen(ctx context.Context, studentID string) ([]models.DebtDetail, error) {
	debts, _, err := s.repo.List(ctx, models.DebtFilter{
		StudentID: studentID,
		Statuses:  []models.DebtStatus{models.DebtStatusPending, models.DebtStatusPartial},
		PageSize:  200,
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list open debts")
	}
	return debts, nil
}

// Get returns one ledger line.
func (s *DebtService) Get(ctx context.Context, id string) (*models.DebtDetail, error) {
	debt, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "debt not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load debt")
	}
	return debt, nil
}

// Create assigns a debt to a student.
func (s *DebtService) Create(ctx context.Context, req CreateDebtRequest) (*models.DebtDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid debt payload")
	}
	if _, err := s.students.FindByID(ctx, req.StudentID); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrValidation, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	if _, err := s.concepts.FindByID(ctx, req.ConceptID); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrValidation, "concept not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load concept")
	}

	debt := &models.StudentDebt{
		StudentID: req.StudentID,
		ConceptID: req.ConceptID,
		Amount:    ledger.Round2(req.Amount),
		DueDate:   req.DueDate,
		Status:    models.DebtStatusPending,
		Notes:     normalizeOptional(req.Notes),
	}
	if err := s.repo.Create(ctx, debt); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create debt")
	}

	s.events.Notify(ctx, EntityDebt, debt.ID, debt.StudentID, EventCreated)
	return s.Get(ctx, debt.ID)
}

// ApplyLateFee adds a surcharge to an overdue line and appends the fee trail
// to its notes. The line must be open and past due; repeated fees stack, each
// leaving its own note fragment.
func (s *DebtService) ApplyLateFee(ctx context.Context, id string, req LateFeeRequest) (*models.DebtDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid late fee payload")
	}
	debt, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if debt.Status == models.DebtStatusPaid {
		return nil, appErrors.Clone(appErrors.ErrValidation, "debt is already paid")
	}
	if !ledger.IsOverdue(debt.DueDate) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "debt is not overdue")
	}

	fee := req.Fee
	if fee == 0 {
		fee = s.defaultLateFee
	}
	fee = ledger.Round2(fee)
	notes := ledger.AppendNote(debt.Notes, ledger.LateFeeNote(fee))

	if err := s.repo.ApplyLateFee(ctx, id, fee, notes); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to apply late fee")
	}

	s.logger.Info("late fee applied",
		zap.String("debt_id", id),
		zap.Float64("fee", fee))
	s.events.Notify(ctx, EntityDebt, id, debt.StudentID, EventUpdated)
	s.metrics.RecordLateFee()
	return s.Get(ctx, id)
}

// Delete removes an open ledger line. Lines with payment history must go
// through cancellation instead.
func (s *DebtService) Delete(ctx context.Context, id string) error {
	debt, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if debt.Status == models.DebtStatusPartial || debt.Status == models.DebtStatusPaid {
		return appErrors.Clone(appErrors.ErrValidation, "debt has payments applied; cancel them first")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete debt")
	}
	s.events.Notify(ctx, EntityDebt, id, debt.StudentID, EventDeleted)
	return nil
}
