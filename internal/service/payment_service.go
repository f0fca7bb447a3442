package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/edupagos/colegio-api/internal/ledger"
	"github.com/edupagos/colegio-api/internal/models"
	"github.com/edupagos/colegio-api/internal/repository"
	appErrors "github.com/edupagos/colegio-api/pkg/errors"
)

type settlementRepository interface {
	ApplySettlement(ctx context.Context, payments []models.Payment, updates []repository.DebtUpdate) error
	Cancel(ctx context.Context, paymentID, cancelledBy string) (*models.Payment, error)
	List(ctx context.Context, filter models.PaymentFilter) ([]models.PaymentDetail, int, error)
	FindByID(ctx context.Context, id string) (*models.PaymentDetail, error)
	FindByReceipt(ctx context.Context, receiptNumber string) ([]models.PaymentDetail, error)
}

type debtLineReader interface {
	FindByIDs(ctx context.Context, ids []string) ([]models.DebtDetail, error)
	FindByID(ctx context.Context, id string) (*models.DebtDetail, error)
}

type planCompleter interface {
	MarkCompletedIfSettled(ctx context.Context, id string) (bool, error)
}

type auditRecorder interface {
	SaveAuditLog(ctx context.Context, entry *models.AuditLog) error
}

// RegisterPaymentRequest represents one settlement: a single amount applied
// across the selected open debts of a student.
type RegisterPaymentRequest struct {
	StudentID     string   `json:"student_id" validate:"required,uuid4"`
	Amount        float64  `json:"amount" validate:"required,gt=0"`
	DebtIDs       []string `json:"debt_ids" validate:"required,min=1,dive,uuid4"`
	PaymentDate   string   `json:"payment_date" validate:"omitempty,datetime=2006-01-02"`
	PaymentMethod *string  `json:"payment_method" validate:"omitempty,max=50"`
	ReceiptNumber *string  `json:"receipt_number" validate:"omitempty,max=50"`
	Notes         *string  `json:"notes" validate:"omitempty,max=1000"`
}

// SettlementResult reports what a settlement did to the ledger.
type SettlementResult struct {
	ReceiptNumber string              `json:"receipt_number"`
	Payments      []models.Payment    `json:"payments"`
	Allocations   []ledger.Allocation `json:"allocations"`
	CompletedPlan []string            `json:"completed_plans,omitempty"`
	Receipt       *models.Receipt     `json:"receipt,omitempty"`
}

// PaymentService applies, cancels and reports payments. Settlement
// distribution is delegated to the ledger package; this service owns
// validation, persistence ordering and the audit trail.
type PaymentService struct {
	repo      settlementRepository
	debts     debtLineReader
	students  debtStudentReader
	plans     planCompleter
	audit     auditRecorder
	events    *EventService
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewPaymentService constructs a PaymentService.
func NewPaymentService(repo settlementRepository, debts debtLineReader, students debtStudentReader, plans planCompleter, audit auditRecorder, events *EventService, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *PaymentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PaymentService{
		repo:      repo,
		debts:     debts,
		students:  students,
		plans:     plans,
		audit:     audit,
		events:    events,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
	}
}

// Register applies one payment across the selected debts, oldest due date
// first. Every payment row and debt update of the settlement commits in a
// single transaction.
func (s *PaymentService) Register(ctx context.Context, actorID string, req RegisterPaymentRequest) (*SettlementResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payment payload")
	}

	selected, err := s.loadSelectedDebts(ctx, req.StudentID, req.DebtIDs)
	if err != nil {
		return nil, err
	}

	open := make([]ledger.OpenDebt, 0, len(selected))
	for _, debt := range selected {
		open = append(open, ledger.OpenDebt{ID: debt.ID, Balance: debt.Amount})
	}

	allocations, err := ledger.Distribute(req.Amount, open)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, err.Error())
	}

	receiptNumber := s.resolveReceiptNumber(req.ReceiptNumber)
	paymentDate := req.PaymentDate
	if paymentDate == "" {
		paymentDate = ledger.Today()
	}

	payments := make([]models.Payment, 0, len(allocations))
	updates := make([]repository.DebtUpdate, 0, len(allocations))
	for _, alloc := range allocations {
		debtID := alloc.DebtID
		payments = append(payments, models.Payment{
			StudentID:     req.StudentID,
			DebtID:        &debtID,
			Amount:        alloc.Applied,
			PaymentDate:   paymentDate,
			PaymentMethod: normalizeOptional(req.PaymentMethod),
			ReceiptNumber: &receiptNumber,
			Notes:         normalizeOptional(req.Notes),
			RegisteredBy:  &actorID,
			Status:        models.PaymentStatusActive,
		})
		updates = append(updates, repository.DebtUpdate{
			ID:     alloc.DebtID,
			Amount: alloc.NewBalance,
			Status: alloc.NewStatus,
		})
	}

	if err := s.repo.ApplySettlement(ctx, payments, updates); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to apply settlement")
	}

	completed := s.completePlans(ctx, selected, allocations)
	s.recordAudit(ctx, actorID, models.AuditActionSettlement, "payments", receiptNumber, map[string]interface{}{
		"student_id": req.StudentID,
		"amount":     req.Amount,
		"debt_ids":   req.DebtIDs,
	})
	for _, alloc := range allocations {
		s.events.Notify(ctx, EntityDebt, alloc.DebtID, req.StudentID, EventUpdated)
	}
	s.events.Notify(ctx, EntityPayment, receiptNumber, req.StudentID, EventSettled)
	s.metrics.RecordSettlement(req.Amount)

	s.logger.Info("settlement applied",
		zap.String("student_id", req.StudentID),
		zap.String("receipt_number", receiptNumber),
		zap.Float64("amount", req.Amount),
		zap.Int("debts_touched", len(allocations)))

	receipt, err := s.Receipt(ctx, receiptNumber)
	if err != nil {
		receipt = nil
	}
	return &SettlementResult{
		ReceiptNumber: receiptNumber,
		Payments:      payments,
		Allocations:   allocations,
		CompletedPlan: completed,
		Receipt:       receipt,
	}, nil
}

func (s *PaymentService) loadSelectedDebts(ctx context.Context, studentID string, debtIDs []string) ([]models.DebtDetail, error) {
	selected, err := s.debts.FindByIDs(ctx, debtIDs)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load selected debts")
	}
	if len(selected) != len(debtIDs) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "one or more selected debts do not exist")
	}
	for _, debt := range selected {
		if debt.StudentID != studentID {
			return nil, appErrors.Clone(appErrors.ErrValidation, "selected debt belongs to another student")
		}
		if debt.Status == models.DebtStatusPaid {
			return nil, appErrors.Clone(appErrors.ErrValidation, "selected debt is already paid")
		}
	}
	// Oldest line absorbs money first regardless of selection order.
	sort.SliceStable(selected, func(i, j int) bool {
		return selected[i].DueDate < selected[j].DueDate
	})
	return selected, nil
}

func (s *PaymentService) resolveReceiptNumber(provided *string) string {
	if provided != nil {
		if trimmed := strings.TrimSpace(*provided); trimmed != "" {
			return trimmed
		}
	}
	return fmt.Sprintf("REC-%d", time.Now().UnixMilli())
}

func (s *PaymentService) completePlans(ctx context.Context, selected []models.DebtDetail, allocations []ledger.Allocation) []string {
	paid := make(map[string]bool, len(allocations))
	for _, alloc := range allocations {
		if alloc.NewStatus == models.DebtStatusPaid {
			paid[alloc.DebtID] = true
		}
	}
	seen := map[string]bool{}
	var completed []string
	for _, debt := range selected {
		if debt.PaymentPlanID == nil || !paid[debt.ID] || seen[*debt.PaymentPlanID] {
			continue
		}
		seen[*debt.PaymentPlanID] = true
		done, err := s.plans.MarkCompletedIfSettled(ctx, *debt.PaymentPlanID)
		if err != nil {
			s.logger.Warn("failed to check plan completion",
				zap.String("plan_id", *debt.PaymentPlanID),
				zap.Error(err))
			continue
		}
		if done {
			completed = append(completed, *debt.PaymentPlanID)
			s.events.Notify(ctx, EntityPlan, *debt.PaymentPlanID, debt.StudentID, EventUpdated)
		}
	}
	return completed
}

// Cancel reverses one payment: the row is marked cancelled and its amount is
// restored onto the linked debt atomically.
func (s *PaymentService) Cancel(ctx context.Context, paymentID, actorID string) (*models.Payment, error) {
	payment, err := s.repo.Cancel(ctx, paymentID, actorID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "payment not found")
		}
		if errors.Is(err, repository.ErrPaymentNotActive) {
			return nil, appErrors.Clone(appErrors.ErrValidation, "payment is already cancelled")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to cancel payment")
	}

	s.recordAudit(ctx, actorID, models.AuditActionCancellation, "payments", paymentID, map[string]interface{}{
		"student_id": payment.StudentID,
		"amount":     payment.Amount,
	})
	if payment.DebtID != nil {
		s.events.Notify(ctx, EntityDebt, *payment.DebtID, payment.StudentID, EventUpdated)
	}
	s.events.Notify(ctx, EntityPayment, paymentID, payment.StudentID, EventCancelled)
	s.metrics.RecordCancellation()

	s.logger.Info("payment cancelled",
		zap.String("payment_id", paymentID),
		zap.String("cancelled_by", actorID),
		zap.Float64("amount", payment.Amount))
	return payment, nil
}

// List returns payment history plus pagination data.
func (s *PaymentService) List(ctx context.Context, filter models.PaymentFilter) ([]models.PaymentDetail, *models.Pagination, error) {
	payments, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list payments")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 50
	}
	return payments, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Get returns one payment.
func (s *PaymentService) Get(ctx context.Context, id string) (*models.PaymentDetail, error) {
	payment, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "payment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load payment")
	}
	return payment, nil
}

// Receipt projects the active rows of one settlement into a printable
// receipt.
func (s *PaymentService) Receipt(ctx context.Context, receiptNumber string) (*models.Receipt, error) {
	rows, err := s.repo.FindByReceipt(ctx, receiptNumber)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "receipt not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load receipt")
	}

	first := rows[0]
	student, err := s.students.FindByID(ctx, first.StudentID)
	if err != nil && err != sql.ErrNoRows {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}

	receipt := &models.Receipt{
		ReceiptNumber: receiptNumber,
		PaymentDate:   first.PaymentDate,
		StudentID:     first.StudentID,
		StudentName:   strings.TrimSpace(first.StudentFirstName + " " + first.StudentLastName),
	}
	if student != nil && student.Identification != nil {
		receipt.StudentDoc = *student.Identification
	}
	if first.PaymentMethod != nil {
		receipt.PaymentMethod = *first.PaymentMethod
	}
	if first.Notes != nil {
		receipt.Notes = *first.Notes
	}

	var total float64
	for _, row := range rows {
		concept := "Sin concepto"
		if row.ConceptName != nil && *row.ConceptName != "" {
			concept = *row.ConceptName
		}
		receipt.Lines = append(receipt.Lines, models.ReceiptLine{
			Concept: concept,
			Amount:  row.Amount,
		})
		total += row.Amount
	}
	receipt.Total = ledger.Round2(total)
	return receipt, nil
}

func (s *PaymentService) recordAudit(ctx context.Context, actorID, action, resource, resourceID string, values map[string]interface{}) {
	if s.audit == nil {
		return
	}
	payload, _ := json.Marshal(values)
	rid := resourceID
	actor := actorID
	entry := &models.AuditLog{
		UserID:     &actor,
		Action:     action,
		Resource:   resource,
		ResourceID: &rid,
		NewValues:  payload,
	}
	if err := s.audit.SaveAuditLog(ctx, entry); err != nil {
		s.logger.Warn("failed to record audit entry",
			zap.String("action", action),
			zap.Error(err))
	}
}
