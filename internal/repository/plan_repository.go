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

// PlanRepository manages persistence for payment plans.
type PlanRepository struct {
	db *sqlx.DB
}

// NewPlanRepository constructs a PlanRepository.
func NewPlanRepository(db *sqlx.DB) *PlanRepository {
	return &PlanRepository{db: db}
}

const planColumns = `pp.id, pp.student_id, pp.name, pp.description, pp.total_amount, pp.monthly_payment,
        pp.number_of_installments, pp.start_date, pp.status, pp.created_at, pp.updated_at,
        s.first_name AS student_first_name, s.last_name AS student_last_name,
        pp.number_of_installments AS total_installments,
        (SELECT COUNT(*) FROM student_debts d WHERE d.payment_plan_id = pp.id AND d.status = 'paid') AS paid_installments`

const planJoins = `FROM payment_plans pp
        JOIN students s ON s.id = pp.student_id`

// CreateWithInstallments persists a plan together with its generated
// installment ledger lines in one transaction.
func (r *PlanRepository) CreateWithInstallments(ctx context.Context, plan *models.PaymentPlan, debts []models.StudentDebt) error {
	if plan.ID == "" {
		plan.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	plan.CreatedAt = now
	plan.UpdatedAt = now
	if plan.Status == "" {
		plan.Status = models.PlanStatusActive
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create plan: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	const query = `INSERT INTO payment_plans (id, student_id, name, description, total_amount, monthly_payment,
        number_of_installments, start_date, status, created_at, updated_at)
        VALUES (:id, :student_id, :name, :description, :total_amount, :monthly_payment,
        :number_of_installments, :start_date, :status, :created_at, :updated_at)`
	if _, err := tx.NamedExecContext(ctx, query, plan); err != nil {
		return fmt.Errorf("create plan: %w", err)
	}

	for i := range debts {
		debts[i].PaymentPlanID = &plan.ID
		if err := insertDebtTx(ctx, tx, &debts[i]); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit create plan: %w", err)
	}
	return nil
}

// List returns plans matching the filter, newest first.
func (r *PlanRepository) List(ctx context.Context, filter models.PlanFilter) ([]models.PlanDetail, int, error) {
	args := []interface{}{}
	conditions := []string{"1=1"}

	if filter.StudentID != "" {
		conditions = append(conditions, fmt.Sprintf("pp.student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.Status != nil {
		conditions = append(conditions, fmt.Sprintf("pp.status = $%d", len(args)+1))
		args = append(args, *filter.Status)
	}

	where := strings.Join(conditions, " AND ")

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf("SELECT %s %s WHERE %s ORDER BY pp.created_at DESC LIMIT %d OFFSET %d",
		planColumns, planJoins, where, size, offset)

	var plans []models.PlanDetail
	if err := r.db.SelectContext(ctx, &plans, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list plans: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s WHERE %s", planJoins, where)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count plans: %w", err)
	}
	return plans, total, nil
}

// FindByID fetches one plan with its paid-installment count.
func (r *PlanRepository) FindByID(ctx context.Context, id string) (*models.PlanDetail, error) {
	query := fmt.Sprintf("SELECT %s %s WHERE pp.id = $1", planColumns, planJoins)
	var detail models.PlanDetail
	if err := r.db.GetContext(ctx, &detail, query, id); err != nil {
		return nil, err
	}
	return &detail, nil
}

// Update modifies the descriptive fields of a plan. Amounts and schedule are
// immutable once the installments exist.
func (r *PlanRepository) Update(ctx context.Context, plan *models.PaymentPlan) error {
	plan.UpdatedAt = time.Now().UTC()
	const query = `UPDATE payment_plans SET name = :name, description = :description,
        status = :status, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, plan); err != nil {
		return fmt.Errorf("update plan: %w", err)
	}
	return nil
}

// MarkCompletedIfSettled flips a plan to completed when every installment is
// paid. Returns true when the transition happened.
func (r *PlanRepository) MarkCompletedIfSettled(ctx context.Context, id string) (bool, error) {
	const query = `UPDATE payment_plans SET status = 'completed', updated_at = $2
        WHERE id = $1 AND status = 'active'
        AND NOT EXISTS (SELECT 1 FROM student_debts d WHERE d.payment_plan_id = $1 AND d.status <> 'paid')`
	res, err := r.db.ExecContext(ctx, query, id, time.Now().UTC())
	if err != nil {
		return false, fmt.Errorf("complete plan: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("complete plan rows: %w", err)
	}
	return rows > 0, nil
}

// Delete removes a plan and its unpaid installments in one transaction. Paid
// installments stay behind as plain ledger history with the link cleared.
func (r *PlanRepository) Delete(ctx context.Context, id string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete plan: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `DELETE FROM student_debts WHERE payment_plan_id = $1 AND status <> 'paid'`, id); err != nil {
		return fmt.Errorf("delete plan installments: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `UPDATE student_debts SET payment_plan_id = NULL, updated_at = $2 WHERE payment_plan_id = $1`, id, time.Now().UTC()); err != nil {
		return fmt.Errorf("unlink paid installments: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM payment_plans WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete plan: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit delete plan: %w", err)
	}
	return nil
}
