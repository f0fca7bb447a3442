package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/edupagos/colegio-api/internal/models"
)

// DebtRepository manages persistence for student debt ledger lines.
type DebtRepository struct {
	db *sqlx.DB
}

// NewDebtRepository constructs a DebtRepository.
func NewDebtRepository(db *sqlx.DB) *DebtRepository {
	return &DebtRepository{db: db}
}

const debtColumns = `d.id, d.student_id, d.concept_id, d.amount, d.due_date, d.status,
        d.installment_number, d.payment_plan_id, d.notes, d.created_at, d.updated_at,
        COALESCE(c.name, '') AS concept_name, p.name AS plan_name`

const debtJoins = `FROM student_debts d
        LEFT JOIN debt_concepts c ON c.id = d.concept_id
        LEFT JOIN payment_plans p ON p.id = d.payment_plan_id`

// List returns ledger lines matching the filter, ordered by ascending due
// date so the cashier screen settles the oldest line first.
func (r *DebtRepository) List(ctx context.Context, filter models.DebtFilter) ([]models.DebtDetail, int, error) {
	args := []interface{}{}
	conditions := []string{"1=1"}

	if filter.StudentID != "" {
		conditions = append(conditions, fmt.Sprintf("d.student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.PlanID != "" {
		conditions = append(conditions, fmt.Sprintf("d.payment_plan_id = $%d", len(args)+1))
		args = append(args, filter.PlanID)
	}
	if len(filter.Statuses) > 0 {
		placeholders := make([]string, 0, len(filter.Statuses))
		for _, s := range filter.Statuses {
			placeholders = append(placeholders, fmt.Sprintf("$%d", len(args)+1))
			args = append(args, s)
		}
		conditions = append(conditions, fmt.Sprintf("d.status IN (%s)", strings.Join(placeholders, ", ")))
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

	query := fmt.Sprintf("SELECT %s %s WHERE %s ORDER BY d.due_date ASC, d.installment_number ASC NULLS FIRST LIMIT %d OFFSET %d",
		debtColumns, debtJoins, where, size, offset)

	var debts []models.DebtDetail
	if err := r.db.SelectContext(ctx, &debts, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list debts: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s WHERE %s", debtJoins, where)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count debts: %w", err)
	}
	return debts, total, nil
}

// FindByID fetches one ledger line with its concept and plan context.
func (r *DebtRepository) FindByID(ctx context.Context, id string) (*models.DebtDetail, error) {
	query := fmt.Sprintf("SELECT %s %s WHERE d.id = $1", debtColumns, debtJoins)
	var detail models.DebtDetail
	if err := r.db.GetContext(ctx, &detail, query, id); err != nil {
		return nil, err
	}
	return &detail, nil
}

// FindByIDs fetches the given ledger lines preserving the caller's order,
// which is the settlement order.
func (r *DebtRepository) FindByIDs(ctx context.Context, ids []string) ([]models.DebtDetail, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	placeholders := make([]string, len(ids))
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = id
	}
	query := fmt.Sprintf("SELECT %s %s WHERE d.id IN (%s)", debtColumns, debtJoins, strings.Join(placeholders, ", "))

	var rows []models.DebtDetail
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("load debts: %w", err)
	}

	byID := make(map[string]models.DebtDetail, len(rows))
	for _, row := range rows {
		byID[row.ID] = row
	}
	ordered := make([]models.DebtDetail, 0, len(ids))
	for _, id := range ids {
		if row, ok := byID[id]; ok {
			ordered = append(ordered, row)
		}
	}
	return ordered, nil
}

// Create inserts a single ledger line.
func (r *DebtRepository) Create(ctx context.Context, debt *models.StudentDebt) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create debt: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck
	if err := insertDebtTx(ctx, tx, debt); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit create debt: %w", err)
	}
	return nil
}

func insertDebtTx(ctx context.Context, tx *sqlx.Tx, debt *models.StudentDebt) error {
	if debt.ID == "" {
		debt.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	debt.CreatedAt = now
	debt.UpdatedAt = now
	if debt.Status == "" {
		debt.Status = models.DebtStatusPending
	}
	const query = `INSERT INTO student_debts (id, student_id, concept_id, amount, due_date, status,
        installment_number, payment_plan_id, notes, created_at, updated_at)
        VALUES (:id, :student_id, :concept_id, :amount, :due_date, :status,
        :installment_number, :payment_plan_id, :notes, :created_at, :updated_at)`
	if _, err := tx.NamedExecContext(ctx, query, debt); err != nil {
		return fmt.Errorf("insert debt: %w", err)
	}
	return nil
}

// ApplyLateFee adds a surcharge to a line's balance and appends the audit
// fragment to its notes in one statement. The status column is untouched: a
// fee only grows the balance and never crosses the paid boundary.
func (r *DebtRepository) ApplyLateFee(ctx context.Context, id string, fee float64, newNotes string) error {
	const query = `UPDATE student_debts SET amount = amount + $2, notes = $3, updated_at = $4 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, fee, newNotes, time.Now().UTC()); err != nil {
		return fmt.Errorf("apply late fee: %w", err)
	}
	return nil
}

// Delete removes a ledger line outright.
func (r *DebtRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM student_debts WHERE id = $1", id); err != nil {
		return fmt.Errorf("delete debt: %w", err)
	}
	return nil
}

// SummarizeStudent aggregates a student's ledger position.
func (r *DebtRepository) SummarizeStudent(ctx context.Context, studentID string) (*models.StudentBalance, error) {
	const query = `SELECT
            $1::text AS student_id,
            COALESCE(SUM(amount) FILTER (WHERE status IN ('pending', 'partial')), 0) AS pending_total,
            COUNT(*) FILTER (WHERE status = 'pending') AS pending_count,
            COUNT(*) FILTER (WHERE status = 'partial') AS partial_count,
            COUNT(*) FILTER (WHERE status = 'paid') AS paid_count,
            0::numeric AS collected_total
        FROM student_debts WHERE student_id = $1`
	var summary models.StudentBalance
	if err := r.db.GetContext(ctx, &summary, query, studentID); err != nil {
		return nil, fmt.Errorf("summarize student debts: %w", err)
	}
	return &summary, nil
}

// CountOverdueAt counts open lines due strictly before the given date.
func (r *DebtRepository) CountOverdueAt(ctx context.Context, today string) (int, error) {
	var total int
	const query = `SELECT COUNT(*) FROM student_debts WHERE status IN ('pending', 'partial') AND due_date < $1`
	if err := r.db.GetContext(ctx, &total, query, today); err != nil {
		return 0, fmt.Errorf("count overdue debts: %w", err)
	}
	return total, nil
}

// TotalOutstanding sums every open balance in the ledger.
func (r *DebtRepository) TotalOutstanding(ctx context.Context) (float64, error) {
	var total float64
	const query = `SELECT COALESCE(SUM(amount), 0) FROM student_debts WHERE status IN ('pending', 'partial')`
	if err := r.db.GetContext(ctx, &total, query); err != nil {
		return 0, fmt.Errorf("total outstanding: %w", err)
	}
	return total, nil
}
