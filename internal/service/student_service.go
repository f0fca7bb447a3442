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

type studentRepository interface {
	List(ctx context.Context, filter models.StudentFilter) ([]models.StudentDetail, int, error)
	FindByID(ctx context.Context, id string) (*models.StudentDetail, error)
	Create(ctx context.Context, student *models.Student, debts []models.StudentDebt) error
	Update(ctx context.Context, student *models.Student) error
	Delete(ctx context.Context, id string) error
}

type studentDebtReader interface {
	List(ctx context.Context, filter models.DebtFilter) ([]models.DebtDetail, int, error)
	SummarizeStudent(ctx context.Context, studentID string) (*models.StudentBalance, error)
}

type studentConceptReader interface {
	FindByID(ctx context.Context, id string) (*models.DebtConcept, error)
}

type studentPaymentReader interface {
	CollectedForStudent(ctx context.Context, studentID string) (float64, error)
}

// CreateStudentRequest represents payload for enrolling a student. Initial
// concept IDs seed the ledger with one debt per concept, due one month out.
type CreateStudentRequest struct {
	FirstName         string   `json:"first_name" validate:"required,max=200"`
	LastName          string   `json:"last_name" validate:"required,max=200"`
	Identification    *string  `json:"identification" validate:"omitempty,max=50"`
	DateOfBirth       *string  `json:"date_of_birth" validate:"omitempty,datetime=2006-01-02"`
	GradeID           *string  `json:"grade_id" validate:"omitempty,uuid4"`
	EnrollmentDate    string   `json:"enrollment_date" validate:"omitempty,datetime=2006-01-02"`
	GuardianName      *string  `json:"guardian_name" validate:"omitempty,max=200"`
	GuardianPhone     *string  `json:"guardian_phone" validate:"omitempty,max=50"`
	GuardianEmail     *string  `json:"guardian_email" validate:"omitempty,email"`
	Address           *string  `json:"address" validate:"omitempty,max=500"`
	InitialConceptIDs []string `json:"initial_concept_ids" validate:"omitempty,dive,uuid4"`
}

// UpdateStudentRequest represents payload for updating a student.
type UpdateStudentRequest struct {
	FirstName      string  `json:"first_name" validate:"required,max=200"`
	LastName       string  `json:"last_name" validate:"required,max=200"`
	Identification *string `json:"identification" validate:"omitempty,max=50"`
	DateOfBirth    *string `json:"date_of_birth" validate:"omitempty,datetime=2006-01-02"`
	GradeID        *string `json:"grade_id" validate:"omitempty,uuid4"`
	EnrollmentDate string  `json:"enrollment_date" validate:"omitempty,datetime=2006-01-02"`
	GuardianName   *string `json:"guardian_name" validate:"omitempty,max=200"`
	GuardianPhone  *string `json:"guardian_phone" validate:"omitempty,max=50"`
	GuardianEmail  *string `json:"guardian_email" validate:"omitempty,email"`
	Address        *string `json:"address" validate:"omitempty,max=500"`
	IsActive       *bool   `json:"is_active"`
}

// StudentService orchestrates student enrollment and profile operations.
type StudentService struct {
	repo      studentRepository
	debts     studentDebtReader
	concepts  studentConceptReader
	payments  studentPaymentReader
	events    *EventService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewStudentService constructs a StudentService.
func NewStudentService(repo studentRepository, debts studentDebtReader, concepts studentConceptReader, payments studentPaymentReader, events *EventService, validate *validator.Validate, logger *zap.Logger) *StudentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StudentService{
		repo:      repo,
		debts:     debts,
		concepts:  concepts,
		payments:  payments,
		events:    events,
		validator: validate,
		logger:    logger,
	}
}

// List returns students plus pagination data.
func (s *StudentService) List(ctx context.Context, filter models.StudentFilter) ([]models.StudentDetail, *models.Pagination, error) {
	students, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list students")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	return students, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Get returns a student by id.
func (s *StudentService) Get(ctx context.Context, id string) (*models.StudentDetail, error) {
	student, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	return student, nil
}

// Create enrolls a student. Any initial concepts become pending ledger lines
// due one month from today, committed in the same transaction as the student.
func (s *StudentService) Create(ctx context.Context, req CreateStudentRequest) (*models.StudentDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid student payload")
	}

	enrollment := req.EnrollmentDate
	if enrollment == "" {
		enrollment = ledger.Today()
	}

	student := &models.Student{
		FirstName:      strings.TrimSpace(req.FirstName),
		LastName:       strings.TrimSpace(req.LastName),
		Identification: normalizeOptional(req.Identification),
		DateOfBirth:    normalizeOptional(req.DateOfBirth),
		GradeID:        normalizeOptional(req.GradeID),
		EnrollmentDate: enrollment,
		GuardianName:   normalizeOptional(req.GuardianName),
		GuardianPhone:  normalizeOptional(req.GuardianPhone),
		GuardianEmail:  normalizeOptional(req.GuardianEmail),
		Address:        normalizeOptional(req.Address),
		IsActive:       true,
	}

	debts, err := s.buildInitialDebts(ctx, req.InitialConceptIDs)
	if err != nil {
		return nil, err
	}

	if err := s.repo.Create(ctx, student, debts); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create student")
	}

	s.events.Notify(ctx, EntityStudent, student.ID, student.ID, EventCreated)
	return s.Get(ctx, student.ID)
}

func (s *StudentService) buildInitialDebts(ctx context.Context, conceptIDs []string) ([]models.StudentDebt, error) {
	if len(conceptIDs) == 0 {
		return nil, nil
	}
	dueDate := ledger.AddMonths(time.Now(), 1).Format(ledger.DateLayout)
	debts := make([]models.StudentDebt, 0, len(conceptIDs))
	for _, conceptID := range conceptIDs {
		concept, err := s.concepts.FindByID(ctx, conceptID)
		if err != nil {
			if err == sql.ErrNoRows {
				return nil, appErrors.Clone(appErrors.ErrValidation, "initial concept not found")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load initial concept")
		}
		notes := fmt.Sprintf("Deuda asignada al crear estudiante - %s", concept.Name)
		debts = append(debts, models.StudentDebt{
			ConceptID: concept.ID,
			Amount:    concept.Amount,
			DueDate:   dueDate,
			Status:    models.DebtStatusPending,
			Notes:     &notes,
		})
	}
	return debts, nil
}

// Update modifies an existing student.
func (s *StudentService) Update(ctx context.Context, id string, req UpdateStudentRequest) (*models.StudentDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid student payload")
	}
	detail, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	student := detail.Student
	student.FirstName = strings.TrimSpace(req.FirstName)
	student.LastName = strings.TrimSpace(req.LastName)
	student.Identification = normalizeOptional(req.Identification)
	student.DateOfBirth = normalizeOptional(req.DateOfBirth)
	student.GradeID = normalizeOptional(req.GradeID)
	if req.EnrollmentDate != "" {
		student.EnrollmentDate = req.EnrollmentDate
	}
	student.GuardianName = normalizeOptional(req.GuardianName)
	student.GuardianPhone = normalizeOptional(req.GuardianPhone)
	student.GuardianEmail = normalizeOptional(req.GuardianEmail)
	student.Address = normalizeOptional(req.Address)
	if req.IsActive != nil {
		student.IsActive = *req.IsActive
	}

	if err := s.repo.Update(ctx, &student); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update student")
	}

	s.events.Notify(ctx, EntityStudent, id, id, EventUpdated)
	return s.Get(ctx, id)
}

// Delete removes a student with their ledger history.
func (s *StudentService) Delete(ctx context.Context, id string) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete student")
	}
	s.events.Notify(ctx, EntityStudent, id, id, EventDeleted)
	return nil
}

// Balance aggregates the student's ledger position, including the overdue
// line count as of today and the total ever collected.
func (s *StudentService) Balance(ctx context.Context, id string) (*models.StudentBalance, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	summary, err := s.debts.SummarizeStudent(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to summarize debts")
	}

	open, _, err := s.debts.List(ctx, models.DebtFilter{
		StudentID: id,
		Statuses:  []models.DebtStatus{models.DebtStatusPending, models.DebtStatusPartial},
		PageSize:  200,
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load open debts")
	}
	for _, debt := range open {
		if ledger.IsOverdue(debt.DueDate) {
			summary.OverdueCount++
		}
	}

	collected, err := s.payments.CollectedForStudent(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to total payments")
	}
	summary.CollectedTotal = collected
	return summary, nil
}
