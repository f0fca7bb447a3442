package service

import (
	"context"
	"database/sql"
	"fmt"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/edupagos/colegio-api/internal/models"
	appErrors "github.com/edupagos/colegio-api/pkg/errors"
)

type fakePlanRepo struct {
	plans        map[string]models.PlanDetail
	createdPlan  *models.PaymentPlan
	createdDebts []models.StudentDebt
	updated      *models.PaymentPlan
	deleted      []string
}

func (f *fakePlanRepo) CreateWithInstallments(ctx context.Context, plan *models.PaymentPlan, debts []models.StudentDebt) error {
	plan.ID = "e5f6a7b8-c9d0-4e1f-8a2b-3c4d5e6f7a8b"
	f.createdPlan = plan
	f.createdDebts = debts
	if f.plans == nil {
		f.plans = map[string]models.PlanDetail{}
	}
	f.plans[plan.ID] = models.PlanDetail{PaymentPlan: *plan, TotalInstallments: plan.NumberOfInstallments}
	return nil
}

func (f *fakePlanRepo) List(ctx context.Context, filter models.PlanFilter) ([]models.PlanDetail, int, error) {
	var out []models.PlanDetail
	for _, p := range f.plans {
		out = append(out, p)
	}
	return out, len(out), nil
}

func (f *fakePlanRepo) FindByID(ctx context.Context, id string) (*models.PlanDetail, error) {
	if p, ok := f.plans[id]; ok {
		return &p, nil
	}
	return nil, sql.ErrNoRows
}

func (f *fakePlanRepo) Update(ctx context.Context, plan *models.PaymentPlan) error {
	f.updated = plan
	p := f.plans[plan.ID]
	p.PaymentPlan = *plan
	f.plans[plan.ID] = p
	return nil
}

func (f *fakePlanRepo) Delete(ctx context.Context, id string) error {
	f.deleted = append(f.deleted, id)
	delete(f.plans, id)
	return nil
}

type fakeConceptEnsurer struct {
	concept *models.DebtConcept
	names   []string
}

func (f *fakeConceptEnsurer) EnsureByName(ctx context.Context, name, description string) (*models.DebtConcept, error) {
	f.names = append(f.names, name)
	return f.concept, nil
}

func newPlanService(repo *fakePlanRepo, concepts *fakeConceptEnsurer, students *fakeStudentReader) *PlanService {
	return NewPlanService(repo, concepts, students, nil, "Cuota Plan de Pago", validator.New(), zap.NewNop())
}

func TestPlanServiceCreateGeneratesInstallments(t *testing.T) {
	repo := &fakePlanRepo{}
	concepts := &fakeConceptEnsurer{concept: &models.DebtConcept{ID: testConceptID, Name: "Cuota Plan de Pago"}}
	students := &fakeStudentReader{students: map[string]*models.StudentDetail{
		testStudentID: {Student: models.Student{ID: testStudentID}},
	}}
	svc := newPlanService(repo, concepts, students)

	plan, err := svc.Create(context.Background(), CreatePlanRequest{
		StudentID:            testStudentID,
		Name:                 "Plan Matricula 2026",
		TotalAmount:          1000000,
		NumberOfInstallments: 3,
		StartDate:            "2026-01-31",
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"Cuota Plan de Pago"}, concepts.names)

	// 1.000.000 / 3 rounds to whole guaranies; the drift stays in the total.
	assert.Equal(t, 333333.0, plan.MonthlyPayment)

	require.Len(t, repo.createdDebts, 3)
	assert.Equal(t, "2026-01-31", repo.createdDebts[0].DueDate)
	assert.Equal(t, "2026-02-28", repo.createdDebts[1].DueDate)
	assert.Equal(t, "2026-03-31", repo.createdDebts[2].DueDate)
	for i, debt := range repo.createdDebts {
		assert.Equal(t, testConceptID, debt.ConceptID)
		assert.Equal(t, models.DebtStatusPending, debt.Status)
		require.NotNil(t, debt.InstallmentNumber)
		assert.Equal(t, i+1, *debt.InstallmentNumber)
		require.NotNil(t, debt.Notes)
		assert.Equal(t, fmt.Sprintf("Plan Matricula 2026 - Cuota %d de 3", i+1), *debt.Notes)
	}
}

func TestPlanServiceCreateRejectsUnknownStudent(t *testing.T) {
	repo := &fakePlanRepo{}
	concepts := &fakeConceptEnsurer{concept: &models.DebtConcept{ID: testConceptID}}
	svc := newPlanService(repo, concepts, &fakeStudentReader{})

	_, err := svc.Create(context.Background(), CreatePlanRequest{
		StudentID:            testStudentID,
		Name:                 "Plan",
		TotalAmount:          500000,
		NumberOfInstallments: 2,
		StartDate:            "2026-02-01",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
	assert.Nil(t, repo.createdPlan)
}

func TestPlanServiceUpdateOnlyRenames(t *testing.T) {
	planID := "e5f6a7b8-c9d0-4e1f-8a2b-3c4d5e6f7a8b"
	repo := &fakePlanRepo{plans: map[string]models.PlanDetail{
		planID: {PaymentPlan: models.PaymentPlan{
			ID:                   planID,
			StudentID:            testStudentID,
			Name:                 "Old name",
			TotalAmount:          500000,
			MonthlyPayment:       250000,
			NumberOfInstallments: 2,
			Status:               models.PlanStatusActive,
		}},
	}}
	svc := newPlanService(repo, &fakeConceptEnsurer{}, &fakeStudentReader{})

	plan, err := svc.Update(context.Background(), planID, UpdatePlanRequest{Name: "New name"})
	require.NoError(t, err)
	assert.Equal(t, "New name", plan.Name)
	assert.Equal(t, 500000.0, plan.TotalAmount)
	assert.Equal(t, 250000.0, plan.MonthlyPayment)
}

func TestPlanServiceDelete(t *testing.T) {
	planID := "e5f6a7b8-c9d0-4e1f-8a2b-3c4d5e6f7a8b"
	repo := &fakePlanRepo{plans: map[string]models.PlanDetail{
		planID: {PaymentPlan: models.PaymentPlan{ID: planID, StudentID: testStudentID}},
	}}
	svc := newPlanService(repo, &fakeConceptEnsurer{}, &fakeStudentReader{})

	require.NoError(t, svc.Delete(context.Background(), planID))
	assert.Equal(t, []string{planID}, repo.deleted)
}

func TestPlanServiceGetNotFound(t *testing.T) {
	svc := newPlanService(&fakePlanRepo{}, &fakeConceptEnsurer{}, &fakeStudentReader{})
	_, err := svc.Get(context.Background(), "missing")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}
