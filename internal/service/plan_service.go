package service

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/edupagos/colegio-api/internal/ledger"
	"github.com/edupagos/colegio-api/internal/models"
	appErrors "github.com/edupagos/colegio-api/pkg/errors"
)

type planRepository interface {
	CreateWithInstallments(ctx context.Context, plan *models.PaymentPlan, debts []models.StudentDebt) error
	List(ctx context.Context, filter models.PlanFilter) ([]models.PlanDetail, int, error)
	FindByID(ctx context.Context, id string) (*models.PlanDetail, error)
	Update(ctx context.Context, plan *models.PaymentPlan) error
	Delete(ctx context.Context, id string) error
}

type conceptEnsurer interface {
	EnsureByName(ctx context.Context, name, description string) (*models.DebtConcept, error)
}

// CreatePlanRequest represents payload for generating a payment plan.
type CreatePlanRequest struct {
	StudentID            string  `json:"student_id" validate:"required,uuid4"`
	Name                 string  `json:"name" validate:"required,max=200"`
	Description          *string `json:"description" validate:"omitempty,max=1000"`
	TotalAmount          float64 `json:"total_amount" validate:"required,gt=0"`
	NumberOfInstallments int     `json:"number_of_installments" validate:"required,gt=0,lte=60"`
	StartDate            string  `json:"start_date" validate:"required,datetime=2006-01-02"`
}

// UpdatePlanRequest represents payload for renaming a plan. The financial
// parameters are frozen once the installments exist.
type UpdatePlanRequest struct {
	Name        string  `json:"name" validate:"required,max=200"`
	Description *string `json:"description" validate:"omitempty,max=1000"`
}

// PlanService generates and manages payment plans.
type PlanService struct {
	repo        planRepository
	concepts    conceptEnsurer
	students    debtStudentReader
	events      *EventService
	conceptName string
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewPlanService constructs a PlanService. conceptName is the shared concept
// every generated installment is booked under.
func NewPlanService(repo planRepository, concepts conceptEnsurer, students debtStudentReader, events *EventService, conceptName string, validate *validator.Validate, logger *zap.Logger) *PlanService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PlanService{
		repo:        repo,
		concepts:    concepts,
		students:    students,
		events:      events,
		conceptName: conceptName,
		validator:   validate,
		logger:      logger,
	}
}

// List returns plans plus pagination data.
func (s *PlanService) List(ctx context.Context, filter models.PlanFilter) ([]models.PlanDetail, *models.Pagination, error) {
	plans, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list plans")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	return plans, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Get returns one plan with its installment progress.
func (s *PlanService) Get(ctx context.Context, id string) (*models.PlanDetail, error) {
	plan, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "payment plan not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load plan")
	}
	return plan, nil
}

// Create generates a plan and its installment ledger lines. The monthly
// amount is the total divided by the installment count rounded to whole
// currency units, so monthly*n may drift slightly from the total. Every
// installment is booked under the shared installment concept, created on
// first use. Due dates advance one calendar month per installment from the
// start date, clamping the day of month.
func (s *PlanService) Create(ctx context.Context, req CreatePlanRequest) (*models.PlanDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid plan payload")
	}
	if _, err := s.students.FindByID(ctx, req.StudentID); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrValidation, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}

	concept, err := s.concepts.EnsureByName(ctx, s.conceptName, "Cuota generada por plan de pago")
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve installment concept")
	}

	start, err := time.Parse(ledger.DateLayout, req.StartDate)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid start date")
	}

	name := strings.TrimSpace(req.Name)
	monthly := ledger.MonthlyPayment(req.TotalAmount, req.NumberOfInstallments)
	plan := &models.PaymentPlan{
		StudentID:            req.StudentID,
		Name:                 name,
		Description:          normalizeOptional(req.Description),
		TotalAmount:          ledger.Round2(req.TotalAmount),
		MonthlyPayment:       monthly,
		NumberOfInstallments: req.NumberOfInstallments,
		StartDate:            req.StartDate,
		Status:               models.PlanStatusActive,
	}

	dueDates := ledger.InstallmentDueDates(start, req.NumberOfInstallments)
	debts := make([]models.StudentDebt, 0, req.NumberOfInstallments)
	for i := 0; i < req.NumberOfInstallments; i++ {
		number := i + 1
		notes := fmt.Sprintf("%s - Cuota %d de %d", name, number, req.NumberOfInstallments)
		n := number
		debts = append(debts, models.StudentDebt{
			StudentID:         req.StudentID,
			ConceptID:         concept.ID,
			Amount:            monthly,
			DueDate:           dueDates[i],
			Status:            models.DebtStatusPending,
			InstallmentNumber: &n,
			Notes:             &notes,
		})
	}

	if err := s.repo.CreateWithInstallments(ctx, plan, debts); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create plan")
	}

	s.logger.Info("payment plan generated",
		zap.String("plan_id", plan.ID),
		zap.String("student_id", plan.StudentID),
		zap.Int("installments", plan.NumberOfInstallments),
		zap.Float64("monthly", monthly))
	s.events.Notify(ctx, EntityPlan, plan.ID, plan.StudentID, EventCreated)
	return s.Get(ctx, plan.ID)
}

// Update renames a plan.
func (s *PlanService) Update(ctx context.Context, id string, req UpdatePlanRequest) (*models.PlanDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid plan payload")
	}
	detail, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	plan := detail.PaymentPlan
	plan.Name = strings.TrimSpace(req.Name)
	plan.Description = normalizeOptional(req.Description)

	if err := s.repo.Update(ctx, &plan); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update plan")
	}
	s.events.Notify(ctx, EntityPlan, id, plan.StudentID, EventUpdated)
	return s.Get(ctx, id)
}

// Delete removes a plan and its unpaid installments. Paid installments stay
// in the ledger as history.
func (s *PlanService) Delete(ctx context.Context, id string) error {
	detail, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete plan")
	}
	s.events.Notify(ctx, EntityPlan, id, detail.StudentID, EventDeleted)
	return nil
}
