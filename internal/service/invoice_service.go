package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/university-portal-api/internal/models"
	"github.com/noah-isme/university-portal-api/pkg/export"
	appErrors "github.com/noah-isme/university-portal-api/pkg/errors"
)

type invoiceRepository interface {
	FindByID(ctx context.Context, id string) (*models.FeeInvoice, error)
	List(ctx context.Context, filter models.InvoiceFilter) ([]models.FeeInvoiceDetail, error)
	Create(ctx context.Context, invoice *models.FeeInvoice) error
	UpdateStatus(ctx context.Context, id string, status models.InvoiceStatus) error
}

type invoiceUserReader interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

// CreateInvoiceRequest is the finance payload for billing a student.
type CreateInvoiceRequest struct {
	StudentID   string    `json:"student_id" validate:"required"`
	TermID      string    `json:"term_id" validate:"required"`
	ReferenceNo string    `json:"reference_no" validate:"required"`
	Amount      float64   `json:"amount" validate:"gt=0"`
	DueDate     time.Time `json:"due_date" validate:"required"`
}

// InvoiceService manages fee invoices.
type InvoiceService struct {
	repo      invoiceRepository
	users     invoiceUserReader
	exporter  csvRenderer
	audit     auditWriter
	validator *validator.Validate
	logger    *zap.Logger
}

// NewInvoiceService constructs InvoiceService.
func NewInvoiceService(repo invoiceRepository, users invoiceUserReader, exporter csvRenderer, audit auditWriter, validate *validator.Validate, logger *zap.Logger) *InvoiceService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if exporter == nil {
		exporter = export.NewCSVExporter()
	}
	return &InvoiceService{repo: repo, users: users, exporter: exporter, audit: audit, validator: validate, logger: logger}
}

// List returns invoices matching the filter. Unpaid invoices past
// their due date are reported as OVERDUE; the stored status stays DUE
// until payment.
func (s *InvoiceService) List(ctx context.Context, filter models.InvoiceFilter) ([]models.FeeInvoiceDetail, error) {
	invoices, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list invoices")
	}
	now := time.Now().UTC()
	for i := range invoices {
		if invoices[i].Status == models.InvoiceStatusDue && invoices[i].DueDate.Before(now) {
			invoices[i].Status = models.InvoiceStatusOverdue
		}
	}
	return invoices, nil
}

// ListForStudent returns the student's own invoices.
func (s *InvoiceService) ListForStudent(ctx context.Context, studentID string) ([]models.FeeInvoiceDetail, error) {
	return s.List(ctx, models.InvoiceFilter{StudentID: studentID})
}

// Get returns an invoice by ID. Students may only see their own.
func (s *InvoiceService) Get(ctx context.Context, callerID string, staff bool, id string) (*models.FeeInvoice, error) {
	invoice, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "invoice not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load invoice")
	}
	if !staff && invoice.StudentID != callerID {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "invoice not found")
	}
	return invoice, nil
}

// Create bills a student for a term.
func (s *InvoiceService) Create(ctx context.Context, actorID string, req CreateInvoiceRequest) (*models.FeeInvoice, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid invoice payload")
	}

	student, err := s.users.FindByID(ctx, req.StudentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	if student.Role != models.RoleStudent && student.Role != models.RoleAlumni {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invoices may only bill students")
	}

	invoice := &models.FeeInvoice{
		StudentID:   req.StudentID,
		TermID:      req.TermID,
		ReferenceNo: req.ReferenceNo,
		Amount:      req.Amount,
		DueDate:     req.DueDate,
	}
	if err := s.repo.Create(ctx, invoice); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create invoice")
	}

	s.emitInvoiceAudit(ctx, actorID, models.AuditActionInvoiceCreate, invoice.ID)
	return invoice, nil
}

// MarkPaid settles an invoice. Paying an already paid invoice is a
// conflict.
func (s *InvoiceService) MarkPaid(ctx context.Context, actorID, id string) (*models.FeeInvoice, error) {
	invoice, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "invoice not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load invoice")
	}
	if invoice.Status == models.InvoiceStatusPaid {
		return nil, appErrors.Clone(appErrors.ErrConflict, "invoice is already paid")
	}

	if err := s.repo.UpdateStatus(ctx, id, models.InvoiceStatusPaid); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update invoice")
	}
	invoice.Status = models.InvoiceStatusPaid

	s.emitInvoiceAudit(ctx, actorID, models.AuditActionInvoicePaid, id)
	return invoice, nil
}

// ExportCSV renders the filtered invoice list for finance reporting.
func (s *InvoiceService) ExportCSV(ctx context.Context, filter models.InvoiceFilter) ([]byte, error) {
	invoices, err := s.List(ctx, filter)
	if err != nil {
		return nil, err
	}

	dataset := export.Dataset{
		Headers: []string{"reference_no", "student", "term", "amount", "due_date", "status"},
	}
	for _, inv := range invoices {
		dataset.Rows = append(dataset.Rows, map[string]string{
			"reference_no": inv.ReferenceNo,
			"student":      inv.StudentName,
			"term":         inv.TermName,
			"amount":       fmt.Sprintf("%.2f", inv.Amount),
			"due_date":     inv.DueDate.UTC().Format("2006-01-02"),
			"status":       string(inv.Status),
		})
	}

	payload, err := s.exporter.Render(dataset)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to export invoices")
	}
	return payload, nil
}

func (s *InvoiceService) emitInvoiceAudit(ctx context.Context, actorID, action, invoiceID string) {
	if s.audit == nil {
		return
	}
	if err := s.audit.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     &actorID,
		Action:     action,
		Resource:   "fee_invoice",
		ResourceID: &invoiceID,
	}); err != nil {
		s.logger.Warn("failed to record invoice audit log", zap.Error(err))
	}
}
