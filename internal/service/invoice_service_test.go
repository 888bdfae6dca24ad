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

	"github.com/noah-isme/university-portal-api/internal/models"
	appErrors "github.com/noah-isme/university-portal-api/pkg/errors"
)

type fakeInvoiceRepo struct {
	invoices map[string]*models.FeeInvoice
	details  []models.FeeInvoiceDetail
	created  *models.FeeInvoice
	updated  map[string]models.InvoiceStatus
}

func (f *fakeInvoiceRepo) FindByID(ctx context.Context, id string) (*models.FeeInvoice, error) {
	if inv, ok := f.invoices[id]; ok {
		copied := *inv
		return &copied, nil
	}
	return nil, sql.ErrNoRows
}

func (f *fakeInvoiceRepo) List(ctx context.Context, filter models.InvoiceFilter) ([]models.FeeInvoiceDetail, error) {
	return f.details, nil
}

func (f *fakeInvoiceRepo) Create(ctx context.Context, invoice *models.FeeInvoice) error {
	invoice.ID = "inv-new"
	invoice.Status = models.InvoiceStatusDue
	f.created = invoice
	return nil
}

func (f *fakeInvoiceRepo) UpdateStatus(ctx context.Context, id string, status models.InvoiceStatus) error {
	if f.updated == nil {
		f.updated = make(map[string]models.InvoiceStatus)
	}
	f.updated[id] = status
	return nil
}

type fakeInvoiceUsers struct {
	users map[string]*models.User
}

func (f *fakeInvoiceUsers) FindByID(ctx context.Context, id string) (*models.User, error) {
	if u, ok := f.users[id]; ok {
		return u, nil
	}
	return nil, sql.ErrNoRows
}

func newInvoiceFixture() (*InvoiceService, *fakeInvoiceRepo, *fakeAuditWriter) {
	repo := &fakeInvoiceRepo{invoices: map[string]*models.FeeInvoice{
		"inv-1": {ID: "inv-1", StudentID: "stu-1", Status: models.InvoiceStatusDue, Amount: 1200},
		"inv-2": {ID: "inv-2", StudentID: "stu-1", Status: models.InvoiceStatusPaid, Amount: 800},
	}}
	users := &fakeInvoiceUsers{users: map[string]*models.User{
		"stu-1": {ID: "stu-1", Role: models.RoleStudent},
		"fac-1": {ID: "fac-1", Role: models.RoleFaculty},
	}}
	audit := &fakeAuditWriter{}
	svc := NewInvoiceService(repo, users, nil, audit, validator.New(), zap.NewNop())
	return svc, repo, audit
}

func TestInvoiceServiceCreate(t *testing.T) {
	svc, repo, audit := newInvoiceFixture()

	invoice, err := svc.Create(context.Background(), "fin-1", CreateInvoiceRequest{
		StudentID:   "stu-1",
		TermID:      "term-1",
		ReferenceNo: "INV-2026-001",
		Amount:      1500,
		DueDate:     time.Now().Add(30 * 24 * time.Hour),
	})
	require.NoError(t, err)
	assert.Equal(t, models.InvoiceStatusDue, invoice.Status)
	assert.NotNil(t, repo.created)
	assert.Equal(t, []string{models.AuditActionInvoiceCreate}, audit.actions)
}

func TestInvoiceServiceCreateRejectsNonStudent(t *testing.T) {
	svc, _, _ := newInvoiceFixture()

	_, err := svc.Create(context.Background(), "fin-1", CreateInvoiceRequest{
		StudentID:   "fac-1",
		TermID:      "term-1",
		ReferenceNo: "INV-2026-002",
		Amount:      500,
		DueDate:     time.Now(),
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestInvoiceServiceMarkPaid(t *testing.T) {
	svc, repo, audit := newInvoiceFixture()

	invoice, err := svc.MarkPaid(context.Background(), "fin-1", "inv-1")
	require.NoError(t, err)
	assert.Equal(t, models.InvoiceStatusPaid, invoice.Status)
	assert.Equal(t, models.InvoiceStatusPaid, repo.updated["inv-1"])
	assert.Equal(t, []string{models.AuditActionInvoicePaid}, audit.actions)
}

func TestInvoiceServiceMarkPaidTwiceConflicts(t *testing.T) {
	svc, _, _ := newInvoiceFixture()

	_, err := svc.MarkPaid(context.Background(), "fin-1", "inv-2")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestInvoiceServiceGetHidesForeignInvoices(t *testing.T) {
	svc, _, _ := newInvoiceFixture()
	ctx := context.Background()

	_, err := svc.Get(ctx, "stu-2", false, "inv-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)

	invoice, err := svc.Get(ctx, "stu-2", true, "inv-1")
	require.NoError(t, err)
	assert.Equal(t, "inv-1", invoice.ID)
}

func TestInvoiceServiceListMarksOverdue(t *testing.T) {
	svc, repo, _ := newInvoiceFixture()
	repo.details = []models.FeeInvoiceDetail{
		{FeeInvoice: models.FeeInvoice{ID: "inv-1", Status: models.InvoiceStatusDue, DueDate: time.Now().Add(-48 * time.Hour)}},
		{FeeInvoice: models.FeeInvoice{ID: "inv-2", Status: models.InvoiceStatusDue, DueDate: time.Now().Add(48 * time.Hour)}},
		{FeeInvoice: models.FeeInvoice{ID: "inv-3", Status: models.InvoiceStatusPaid, DueDate: time.Now().Add(-48 * time.Hour)}},
	}

	invoices, err := svc.List(context.Background(), models.InvoiceFilter{})
	require.NoError(t, err)
	assert.Equal(t, models.InvoiceStatusOverdue, invoices[0].Status)
	assert.Equal(t, models.InvoiceStatusDue, invoices[1].Status)
	assert.Equal(t, models.InvoiceStatusPaid, invoices[2].Status)
}

func TestInvoiceServiceExportCSV(t *testing.T) {
	svc, repo, _ := newInvoiceFixture()
	repo.details = []models.FeeInvoiceDetail{
		{
			FeeInvoice:  models.FeeInvoice{ReferenceNo: "INV-2026-001", Amount: 1200, DueDate: time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC), Status: models.InvoiceStatusDue},
			StudentName: "Test Student",
			TermName:    "Fall 2026",
		},
	}

	payload, err := svc.ExportCSV(context.Background(), models.InvoiceFilter{})
	require.NoError(t, err)
	csv := string(payload)
	assert.Contains(t, csv, "reference_no")
	assert.Contains(t, csv, "INV-2026-001")
	assert.Contains(t, csv, "1200.00")
	assert.Contains(t, csv, "2026-09-01")
}
