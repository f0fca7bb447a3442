package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/edupagos/colegio-api/internal/ledger"
	"github.com/edupagos/colegio-api/internal/models"
)

// ErrPaymentNotActive signals a cancellation attempt on an already cancelled
// payment.
var ErrPaymentNotActive = errors.New("payment is not active")

// DebtUpdate carries the new balance and status for one ledger line touched
// by a settlement.
type DebtUpdate struct {
	ID     string
	Amount float64
	Status models.DebtStatus
}

// PaymentRepository manages persistence for payment rows and owns the
// transactional boundary of settlements and cancellations.
type PaymentRepository struct {
	db *sqlx.DB
}

// NewPaymentRepository constructs a PaymentRepository.
func NewPaymentRepository(db *sqlx.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

// ApplySettlement persists one settlement atomically: every payment insert
// and every debt balance update commit together or not at all.
func (r *PaymentRepository) ApplySettlement(ctx context.Context, payments []models.Payment, updates []DebtUpdate) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin settlement: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	for i := range payments {
		if err := insertPaymentTx(ctx, tx, &payments[i]); err != nil {
			return err
		}
	}

	const update = `UPDATE student_debts SET amount = $2, status = $3, updated_at = $4 WHERE id = $1`
	now := time.Now().UTC()
	for _, u := range updates {
		if _, err := tx.ExecContext(ctx, update, u.ID, u.Amount, u.Status, now); err != nil {
			return fmt.Errorf("update debt %s: %w", u.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit settlement: %w", err)
	}
	return nil
}

func insertPaymentTx(ctx context.Context, tx *sqlx.Tx, payment *models.Payment) error {
	if payment.ID == "" {
		payment.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	payment.CreatedAt = now
	payment.UpdatedAt = now
	if payment.Status == "" {
		payment.Status = models.PaymentStatusActive
	}
	const query = `INSERT INTO payments (id, student_id, debt_id, amount, payment_date, payment_method,
        receipt_number, notes, registered_by, status, cancelled_at, cancelled_by, created_at, updated_at)
        VALUES (:id, :student_id, :debt_id, :amount, :payment_date, :payment_method,
        :receipt_number, :notes, :registered_by, :status, :cancelled_at, :cancelled_by, :created_at, :updated_at)`
	if _, err := tx.NamedExecContext(ctx, query, payment); err != nil {
		return fmt.Errorf("insert payment: %w", err)
	}
	return nil
}

// Cancel marks a payment cancelled and restores its amount onto the linked
// debt in one transaction. A fully paid debt reopens as pending; a partial
// debt keeps its status even though the balance grew. Payments without a
// debt link only get the status flip.
func (r *PaymentRepository) Cancel(ctx context.Context, paymentID, cancelledBy string) (*models.Payment, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin cancellation: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var payment models.Payment
	const load = `SELECT id, student_id, debt_id, amount, payment_date, payment_method, receipt_number,
        notes, registered_by, status, cancelled_at, cancelled_by, created_at, updated_at
        FROM payments WHERE id = $1 FOR UPDATE`
	if err := tx.GetContext(ctx, &payment, load, paymentID); err != nil {
		return nil, err
	}
	if payment.Status != models.PaymentStatusActive {
		return nil, ErrPaymentNotActive
	}

	now := time.Now().UTC()
	const mark = `UPDATE payments SET status = $2, cancelled_at = $3, cancelled_by = $4, updated_at = $3 WHERE id = $1`
	if _, err := tx.ExecContext(ctx, mark, paymentID, models.PaymentStatusCancelled, now, cancelledBy); err != nil {
		return nil, fmt.Errorf("mark payment cancelled: %w", err)
	}

	if payment.DebtID != nil {
		var debt struct {
			Amount float64           `db:"amount"`
			Status models.DebtStatus `db:"status"`
		}
		const loadDebt = `SELECT amount, status FROM student_debts WHERE id = $1 FOR UPDATE`
		if err := tx.GetContext(ctx, &debt, loadDebt, *payment.DebtID); err != nil {
			return nil, fmt.Errorf("load debt for restore: %w", err)
		}
		newAmount := ledger.Round2(debt.Amount + payment.Amount)
		newStatus := ledger.RestoreStatus(debt.Status)
		const restore = `UPDATE student_debts SET amount = $2, status = $3, updated_at = $4 WHERE id = $1`
		if _, err := tx.ExecContext(ctx, restore, *payment.DebtID, newAmount, newStatus, now); err != nil {
			return nil, fmt.Errorf("restore debt balance: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit cancellation: %w", err)
	}

	payment.Status = models.PaymentStatusCancelled
	payment.CancelledAt = &now
	payment.CancelledBy = &cancelledBy
	return &payment, nil
}

const paymentColumns = `p.id, p.student_id, p.debt_id, p.amount, p.payment_date, p.payment_method,
        p.receipt_number, p.notes, p.registered_by, p.status, p.cancelled_at, p.cancelled_by,
        p.created_at, p.updated_at,
        s.first_name AS student_first_name, s.last_name AS student_last_name, c.name AS concept_name`

const paymentJoins = `FROM payments p
        JOIN students s ON s.id = p.student_id
        LEFT JOIN student_debts d ON d.id = p.debt_id
        LEFT JOIN debt_concepts c ON c.id = d.concept_id`

// List returns payment history matching the filter, newest first.
func (r *PaymentRepository) List(ctx context.Context, filter models.PaymentFilter) ([]models.PaymentDetail, int, error) {
	args := []interface{}{}
	conditions := []string{"1=1"}

	if filter.StudentID != "" {
		conditions = append(conditions, fmt.Sprintf("p.student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.Status != nil {
		conditions = append(conditions, fmt.Sprintf("p.status = $%d", len(args)+1))
		args = append(args, *filter.Status)
	}
	if filter.DateFrom != "" {
		conditions = append(conditions, fmt.Sprintf("p.payment_date >= $%d", len(args)+1))
		args = append(args, filter.DateFrom)
	}
	if filter.DateTo != "" {
		conditions = append(conditions, fmt.Sprintf("p.payment_date <= $%d", len(args)+1))
		args = append(args, filter.DateTo)
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(LOWER(s.first_name) LIKE $%d OR LOWER(s.last_name) LIKE $%d OR LOWER(p.receipt_number) LIKE $%d)", len(args)+1, len(args)+1, len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}

	where := strings.Join(conditions, " AND ")

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 200 {
		size = 50
	}
	offset := (page - 1) * size

	query := fmt.Sprintf("SELECT %s %s WHERE %s ORDER BY p.payment_date DESC, p.created_at DESC LIMIT %d OFFSET %d",
		paymentColumns, paymentJoins, where, size, offset)

	var payments []models.PaymentDetail
	if err := r.db.SelectContext(ctx, &payments, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list payments: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s WHERE %s", paymentJoins, where)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count payments: %w", err)
	}
	return payments, total, nil
}

// FindByID fetches one payment with its joined context.
func (r *PaymentRepository) FindByID(ctx context.Context, id string) (*models.PaymentDetail, error) {
	query := fmt.Sprintf("SELECT %s %s WHERE p.id = $1", paymentColumns, paymentJoins)
	var detail models.PaymentDetail
	if err := r.db.GetContext(ctx, &detail, query, id); err != nil {
		return nil, err
	}
	return &detail, nil
}

// FindByReceipt returns the active payment rows of one settlement.
func (r *PaymentRepository) FindByReceipt(ctx context.Context, receiptNumber string) ([]models.PaymentDetail, error) {
	query := fmt.Sprintf("SELECT %s %s WHERE p.receipt_number = $1 AND p.status = $2 ORDER BY p.created_at ASC",
		paymentColumns, paymentJoins)
	var payments []models.PaymentDetail
	if err := r.db.SelectContext(ctx, &payments, query, receiptNumber, models.PaymentStatusActive); err != nil {
		return nil, fmt.Errorf("load receipt payments: %w", err)
	}
	if len(payments) == 0 {
		return nil, sql.ErrNoRows
	}
	return payments, nil
}

// CollectedForStudent sums one student's active payments.
func (r *PaymentRepository) CollectedForStudent(ctx context.Context, studentID string) (float64, error) {
	var total float64
	const query = `SELECT COALESCE(SUM(amount), 0) FROM payments WHERE status = 'active' AND student_id = $1`
	if err := r.db.GetContext(ctx, &total, query, studentID); err != nil {
		return 0, fmt.Errorf("collected for student: %w", err)
	}
	return total, nil
}

// TotalCollectedSince sums active payments on or after the given date.
func (r *PaymentRepository) TotalCollectedSince(ctx context.Context, dateFrom string) (float64, error) {
	var total float64
	const query = `SELECT COALESCE(SUM(amount), 0) FROM payments WHERE status = 'active' AND payment_date >= $1`
	if err := r.db.GetContext(ctx, &total, query, dateFrom); err != nil {
		return 0, fmt.Errorf("total collected: %w", err)
	}
	return total, nil
}
