package service

import (
	"context"
	"database/sql"
	"strings"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/edupagos/colegio-api/internal/models"
	appErrors "github.com/edupagos/colegio-api/pkg/errors"
)

type fakeDebtRepo struct {
	debts     map[string]models.DebtDetail
	created   []*models.StudentDebt
	deleted   []string
	feeID     string
	feeAmount float64
	feeNotes  string
}

func (f *fakeDebtRepo) List(ctx context.Context, filter models.DebtFilter) ([]models.DebtDetail, int, error) {
	var out []models.DebtDetail
	for _, d := range f.debts {
		out = append(out, d)
	}
	return out, len(out), nil
}

func (f *fakeDebtRepo) FindByID(ctx context.Context, id string) (*models.DebtDetail, error) {
	if d, ok := f.debts[id]; ok {
		return &d, nil
	}
	return nil, sql.ErrNoRows
}

func (f *fakeDebtRepo) Create(ctx context.Context, debt *models.StudentDebt) error {
	debt.ID = testDebtA
	f.created = append(f.created, debt)
	if f.debts == nil {
		f.debts = map[string]models.DebtDetail{}
	}
	f.debts[debt.ID] = models.DebtDetail{StudentDebt: *debt}
	return nil
}

func (f *fakeDebtRepo) ApplyLateFee(ctx context.Context, id string, fee float64, newNotes string) error {
	f.feeID = id
	f.feeAmount = fee
	f.feeNotes = newNotes
	d := f.debts[id]
	d.Amount += fee
	d.Notes = &newNotes
	f.debts[id] = d
	return nil
}

func (f *fakeDebtRepo) Delete(ctx context.Context, id string) error {
	f.deleted = append(f.deleted, id)
	delete(f.debts, id)
	return nil
}

type fakeConceptReader struct {
	concepts map[string]*models.DebtConcept
}

func (f *fakeConceptReader) FindByID(ctx context.Context, id string) (*models.DebtConcept, error) {
	if c, ok := f.concepts[id]; ok {
		return c, nil
	}
	return nil, sql.ErrNoRows
}

const testConceptID = "d4e5f6a7-b8c9-4d0e-9f1a-2b3c4d5e6f7a"

func newDebtService(repo *fakeDebtRepo, students *fakeStudentReader, concepts *fakeConceptReader) *DebtService {
	return NewDebtService(repo, students, concepts, nil, nil, 10000, validator.New(), zap.NewNop())
}

func TestDebtServiceCreateChecksReferences(t *testing.T) {
	repo := &fakeDebtRepo{}
	students := &fakeStudentReader{students: map[string]*models.StudentDetail{}}
	concepts := &fakeConceptReader{concepts: map[string]*models.DebtConcept{}}
	svc := newDebtService(repo, students, concepts)

	_, err := svc.Create(context.Background(), CreateDebtRequest{
		StudentID: testStudentID,
		ConceptID: testConceptID,
		Amount:    150000,
		DueDate:   "2026-03-10",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
	assert.Empty(t, repo.created)
}

func TestDebtServiceCreate(t *testing.T) {
	repo := &fakeDebtRepo{}
	students := &fakeStudentReader{students: map[string]*models.StudentDetail{
		testStudentID: {Student: models.Student{ID: testStudentID}},
	}}
	concepts := &fakeConceptReader{concepts: map[string]*models.DebtConcept{
		testConceptID: {ID: testConceptID, Name: "Matricula", Amount: 150000},
	}}
	svc := newDebtService(repo, students, concepts)

	debt, err := svc.Create(context.Background(), CreateDebtRequest{
		StudentID: testStudentID,
		ConceptID: testConceptID,
		Amount:    150000,
		DueDate:   "2026-03-10",
	})
	require.NoError(t, err)
	assert.Equal(t, models.DebtStatusPending, debt.Status)
	assert.Equal(t, 150000.0, debt.Amount)
}

func TestDebtServiceLateFeeDefaultsWhenZero(t *testing.T) {
	repo := &fakeDebtRepo{debts: map[string]models.DebtDetail{
		testDebtA: ledgerLine(testDebtA, testStudentID, 100000, "2020-01-15", models.DebtStatusPending),
	}}
	svc := newDebtService(repo, &fakeStudentReader{}, &fakeConceptReader{})

	debt, err := svc.ApplyLateFee(context.Background(), testDebtA, LateFeeRequest{})
	require.NoError(t, err)
	assert.Equal(t, 10000.0, repo.feeAmount)
	assert.Contains(t, repo.feeNotes, "Mora aplicada: 10.000 Gs")
	assert.Equal(t, 110000.0, debt.Amount)
}

func TestDebtServiceLateFeeStacksNotes(t *testing.T) {
	existing := "Mora aplicada: 5.000 Gs"
	line := ledgerLine(testDebtA, testStudentID, 100000, "2020-01-15", models.DebtStatusPartial)
	line.Notes = &existing
	repo := &fakeDebtRepo{debts: map[string]models.DebtDetail{testDebtA: line}}
	svc := newDebtService(repo, &fakeStudentReader{}, &fakeConceptReader{})

	_, err := svc.ApplyLateFee(context.Background(), testDebtA, LateFeeRequest{Fee: 7500})
	require.NoError(t, err)
	assert.Equal(t, 7500.0, repo.feeAmount)
	assert.True(t, strings.HasPrefix(repo.feeNotes, existing+" | "))
	assert.Contains(t, repo.feeNotes, "Mora aplicada: 7.500 Gs")
}

func TestDebtServiceLateFeeRejectsPaid(t *testing.T) {
	repo := &fakeDebtRepo{debts: map[string]models.DebtDetail{
		testDebtA: ledgerLine(testDebtA, testStudentID, 0, "2020-01-15", models.DebtStatusPaid),
	}}
	svc := newDebtService(repo, &fakeStudentReader{}, &fakeConceptReader{})

	_, err := svc.ApplyLateFee(context.Background(), testDebtA, LateFeeRequest{Fee: 5000})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestDebtServiceLateFeeRejectsNotOverdue(t *testing.T) {
	repo := &fakeDebtRepo{debts: map[string]models.DebtDetail{
		testDebtA: ledgerLine(testDebtA, testStudentID, 100000, "2999-01-15", models.DebtStatusPending),
	}}
	svc := newDebtService(repo, &fakeStudentReader{}, &fakeConceptReader{})

	_, err := svc.ApplyLateFee(context.Background(), testDebtA, LateFeeRequest{Fee: 5000})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestDebtServiceDeleteRejectsLinesWithPayments(t *testing.T) {
	repo := &fakeDebtRepo{debts: map[string]models.DebtDetail{
		testDebtA: ledgerLine(testDebtA, testStudentID, 50000, "2026-03-10", models.DebtStatusPartial),
	}}
	svc := newDebtService(repo, &fakeStudentReader{}, &fakeConceptReader{})

	err := svc.Delete(context.Background(), testDebtA)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
	assert.Empty(t, repo.deleted)
}

func TestDebtServiceDeletePending(t *testing.T) {
	repo := &fakeDebtRepo{debts: map[string]models.DebtDetail{
		testDebtA: ledgerLine(testDebtA, testStudentID, 50000, "2026-03-10", models.DebtStatusPending),
	}}
	svc := newDebtService(repo, &fakeStudentReader{}, &fakeConceptReader{})

	require.NoError(t, svc.Delete(context.Background(), testDebtA))
	assert.Equal(t, []string{testDebtA}, repo.deleted)
}
