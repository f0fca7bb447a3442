package service

import (
	"context"
	"database/sql"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/edupagos/colegio-api/internal/models"
	appErrors "github.com/edupagos/colegio-api/pkg/errors"
)

type guardianRepository interface {
	Link(ctx context.Context, link *models.StudentGuardian) error
	Exists(ctx context.Context, studentID, userID string) (bool, error)
	FindByID(ctx context.Context, id string) (*models.StudentGuardian, error)
	ListByStudent(ctx context.Context, studentID string) ([]models.GuardianDetail, error)
	ListStudentsByUser(ctx context.Context, userID string) ([]models.GuardianStudent, error)
	Delete(ctx context.Context, id string) error
}

type guardianUserReader interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

// LinkGuardianRequest attaches a user account to a student.
type LinkGuardianRequest struct {
	StudentID      string  `json:"student_id" validate:"required,uuid4"`
	GuardianUserID string  `json:"guardian_user_id" validate:"required,uuid4"`
	Relationship   *string `json:"relationship" validate:"omitempty,max=100"`
}

// GuardianService manages parent-student links and the parent portal's
// visibility rules.
type GuardianService struct {
	repo      guardianRepository
	students  debtStudentReader
	users     guardianUserReader
	events    *EventService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewGuardianService constructs a GuardianService.
func NewGuardianService(repo guardianRepository, students debtStudentReader, users guardianUserReader, events *EventService, validate *validator.Validate, logger *zap.Logger) *GuardianService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GuardianService{
		repo:      repo,
		students:  students,
		users:     users,
		events:    events,
		validator: validate,
		logger:    logger,
	}
}

// Link attaches a user to a student as guardian. A plain USER account is
// promoted to PARENT by the same transaction.
func (s *GuardianService) Link(ctx context.Context, req LinkGuardianRequest) (*models.StudentGuardian, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid guardian payload")
	}
	if _, err := s.students.FindByID(ctx, req.StudentID); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrValidation, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	user, err := s.users.FindByID(ctx, req.GuardianUserID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrValidation, "user not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}
	if user.Role == models.RoleAdmin {
		return nil, appErrors.Clone(appErrors.ErrValidation, "administrators cannot be linked as guardians")
	}

	exists, err := s.repo.Exists(ctx, req.StudentID, req.GuardianUserID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check guardian link")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "user is already a guardian of this student")
	}

	link := &models.StudentGuardian{
		StudentID:      req.StudentID,
		GuardianUserID: req.GuardianUserID,
		Relationship:   normalizeOptional(req.Relationship),
	}
	if err := s.repo.Link(ctx, link); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to link guardian")
	}

	s.events.Notify(ctx, EntityGuardian, link.ID, link.StudentID, EventCreated)
	return link, nil
}

// ListByStudent returns a student's guardians.
func (s *GuardianService) ListByStudent(ctx context.Context, studentID string) ([]models.GuardianDetail, error) {
	guardians, err := s.repo.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list guardians")
	}
	return guardians, nil
}

// MyStudents returns the students linked to a guardian account.
func (s *GuardianService) MyStudents(ctx context.Context, userID string) ([]models.GuardianStudent, error) {
	students, err := s.repo.ListStudentsByUser(ctx, userID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list guardian students")
	}
	return students, nil
}

// CanAccessStudent reports whether a user may view one student's data.
// Staff see everything; parents only their linked students.
func (s *GuardianService) CanAccessStudent(ctx context.Context, userID string, role models.UserRole, studentID string) (bool, error) {
	if role == models.RoleAdmin || role == models.RoleUser {
		return true, nil
	}
	allowed, err := s.repo.Exists(ctx, studentID, userID)
	if err != nil {
		return false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check student access")
	}
	return allowed, nil
}

// Unlink removes a guardian link. The user keeps the PARENT role even when
// their last link disappears.
func (s *GuardianService) Unlink(ctx context.Context, id string) error {
	link, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return appErrors.Clone(appErrors.ErrNotFound, "guardian link not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load guardian link")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to unlink guardian")
	}
	s.events.Notify(ctx, EntityGuardian, id, link.StudentID, EventDeleted)
	return nil
}
