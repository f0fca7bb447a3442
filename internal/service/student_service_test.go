package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/edupagos/colegio-api/internal/ledger"
	"github.com/edupagos/colegio-api/internal/models"
	appErrors "github.com/edupagos/colegio-api/pkg/errors"
)

type fakeStudentRepo struct {
	students     map[string]*models.StudentDetail
	createdDebts []models.StudentDebt
	updated      *models.Student
	deleted      []string
}

func (f *fakeStudentRepo) List(ctx context.Context, filter models.StudentFilter) ([]models.StudentDetail, int, error) {
	var out []models.StudentDetail
	for _, s := range f.students {
		out = append(out, *s)
	}
	return out, len(out), nil
}

func (f *fakeStudentRepo) FindByID(ctx context.Context, id string) (*models.StudentDetail, error) {
	if s, ok := f.students[id]; ok {
		clone := *s
		return &clone, nil
	}
	return nil, sql.ErrNoRows
}

func (f *fakeStudentRepo) Create(ctx context.Context, student *models.Student, debts []models.StudentDebt) error {
	student.ID = testStudentID
	f.createdDebts = debts
	if f.students == nil {
		f.students = map[string]*models.StudentDetail{}
	}
	f.students[student.ID] = &models.StudentDetail{Student: *student}
	return nil
}

func (f *fakeStudentRepo) Update(ctx context.Context, student *models.Student) error {
	f.updated = student
	f.students[student.ID] = &models.StudentDetail{Student: *student}
	return nil
}

func (f *fakeStudentRepo) Delete(ctx context.Context, id string) error {
	f.deleted = append(f.deleted, id)
	delete(f.students, id)
	return nil
}

type fakeStudentDebts struct {
	summary *models.StudentBalance
	open    []models.DebtDetail
}

func (f *fakeStudentDebts) List(ctx context.Context, filter models.DebtFilter) ([]models.DebtDetail, int, error) {
	return f.open, len(f.open), nil
}

func (f *fakeStudentDebts) SummarizeStudent(ctx context.Context, studentID string) (*models.StudentBalance, error) {
	clone := *f.summary
	return &clone, nil
}

type fakeStudentPayments struct {
	collected float64
}

func (f *fakeStudentPayments) CollectedForStudent(ctx context.Context, studentID string) (float64, error) {
	return f.collected, nil
}

func newStudentService(repo *fakeStudentRepo, debts *fakeStudentDebts, concepts *fakeConceptReader, payments *fakeStudentPayments) *StudentService {
	return NewStudentService(repo, debts, concepts, payments, nil, validator.New(), zap.NewNop())
}

func TestStudentServiceCreateSeedsInitialDebts(t *testing.T) {
	repo := &fakeStudentRepo{}
	concepts := &fakeConceptReader{concepts: map[string]*models.DebtConcept{
		testConceptID: {ID: testConceptID, Name: "Matricula", Amount: 150000},
	}}
	svc := newStudentService(repo, &fakeStudentDebts{}, concepts, &fakeStudentPayments{})

	detail, err := svc.Create(context.Background(), CreateStudentRequest{
		FirstName:         "  Maria ",
		LastName:          "Gonzalez",
		InitialConceptIDs: []string{testConceptID},
	})
	require.NoError(t, err)
	assert.Equal(t, "Maria", detail.FirstName)
	assert.True(t, detail.IsActive)
	assert.Equal(t, ledger.Today(), detail.EnrollmentDate)

	require.Len(t, repo.createdDebts, 1)
	debt := repo.createdDebts[0]
	assert.Equal(t, testConceptID, debt.ConceptID)
	assert.Equal(t, 150000.0, debt.Amount)
	assert.Equal(t, models.DebtStatusPending, debt.Status)
	assert.Equal(t, ledger.AddMonths(time.Now(), 1).Format(ledger.DateLayout), debt.DueDate)
	require.NotNil(t, debt.Notes)
	assert.Equal(t, "Deuda asignada al crear estudiante - Matricula", *debt.Notes)
}

func TestStudentServiceCreateRejectsUnknownConcept(t *testing.T) {
	repo := &fakeStudentRepo{}
	svc := newStudentService(repo, &fakeStudentDebts{}, &fakeConceptReader{}, &fakeStudentPayments{})

	_, err := svc.Create(context.Background(), CreateStudentRequest{
		FirstName:         "Maria",
		LastName:          "Gonzalez",
		InitialConceptIDs: []string{testConceptID},
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
	assert.Empty(t, repo.students)
}

func TestStudentServiceUpdate(t *testing.T) {
	repo := &fakeStudentRepo{students: map[string]*models.StudentDetail{
		testStudentID: {Student: models.Student{ID: testStudentID, FirstName: "Maria", LastName: "Gonzalez", IsActive: true}},
	}}
	svc := newStudentService(repo, &fakeStudentDebts{}, &fakeConceptReader{}, &fakeStudentPayments{})

	inactive := false
	detail, err := svc.Update(context.Background(), testStudentID, UpdateStudentRequest{
		FirstName: "Maria Jose",
		LastName:  "Gonzalez",
		IsActive:  &inactive,
	})
	require.NoError(t, err)
	assert.Equal(t, "Maria Jose", detail.FirstName)
	assert.False(t, detail.IsActive)
}

func TestStudentServiceDeleteNotFound(t *testing.T) {
	svc := newStudentService(&fakeStudentRepo{}, &fakeStudentDebts{}, &fakeConceptReader{}, &fakeStudentPayments{})

	err := svc.Delete(context.Background(), testStudentID)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestStudentServiceBalanceCountsOverdue(t *testing.T) {
	repo := &fakeStudentRepo{students: map[string]*models.StudentDetail{
		testStudentID: {Student: models.Student{ID: testStudentID}},
	}}
	debts := &fakeStudentDebts{
		summary: &models.StudentBalance{StudentID: testStudentID, PendingTotal: 250000, PendingCount: 2},
		open: []models.DebtDetail{
			ledgerLine(testDebtA, testStudentID, 100000, "2020-01-15", models.DebtStatusPending),
			ledgerLine(testDebtB, testStudentID, 150000, "2999-01-15", models.DebtStatusPending),
		},
	}
	svc := newStudentService(repo, debts, &fakeConceptReader{}, &fakeStudentPayments{collected: 500000})

	balance, err := svc.Balance(context.Background(), testStudentID)
	require.NoError(t, err)
	assert.Equal(t, 1, balance.OverdueCount)
	assert.Equal(t, 500000.0, balance.CollectedTotal)
	assert.Equal(t, 250000.0, balance.PendingTotal)
}
