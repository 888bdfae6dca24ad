package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/university-portal-api/internal/models"
)

// InvoiceRepository handles persistence of fee invoices.
type InvoiceRepository struct {
	db *sqlx.DB
}

// NewInvoiceRepository constructs the repository.
func NewInvoiceRepository(db *sqlx.DB) *InvoiceRepository {
	return &InvoiceRepository{db: db}
}

// FindByID returns an invoice by its ID.
func (r *InvoiceRepository) FindByID(ctx context.Context, id string) (*models.FeeInvoice, error) {
	const query = `SELECT id, student_id, term_id, reference_no, amount, due_date, status, created_at, updated_at
        FROM fee_invoices WHERE id = $1`
	var invoice models.FeeInvoice
	if err := r.db.GetContext(ctx, &invoice, query, id); err != nil {
		return nil, err
	}
	return &invoice, nil
}

// List returns invoices with student and term context.
func (r *InvoiceRepository) List(ctx context.Context, filter models.InvoiceFilter) ([]models.FeeInvoiceDetail, error) {
	base := `SELECT i.id, i.student_id, i.term_id, i.reference_no, i.amount, i.due_date, i.status, i.created_at, i.updated_at,
        u.full_name AS student_name, t.name AS term_name
        FROM fee_invoices i
        JOIN users u ON u.id = i.student_id
        JOIN terms t ON t.id = i.term_id`
	var conditions []string
	var args []interface{}
	if filter.StudentID != "" {
		args = append(args, filter.StudentID)
		conditions = append(conditions, fmt.Sprintf("i.student_id = $%d", len(args)))
	}
	if filter.TermID != "" {
		args = append(args, filter.TermID)
		conditions = append(conditions, fmt.Sprintf("i.term_id = $%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		conditions = append(conditions, fmt.Sprintf("i.status = $%d", len(args)))
	}
	if len(conditions) > 0 {
		base += " WHERE " + strings.Join(conditions, " AND ")
	}
	base += " ORDER BY i.due_date DESC"

	var invoices []models.FeeInvoiceDetail
	if err := r.db.SelectContext(ctx, &invoices, base, args...); err != nil {
		return nil, fmt.Errorf("list invoices: %w", err)
	}
	return invoices, nil
}

// Create persists a new invoice.
func (r *InvoiceRepository) Create(ctx context.Context, invoice *models.FeeInvoice) error {
	if invoice.ID == "" {
		invoice.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	invoice.CreatedAt = now
	invoice.UpdatedAt = now
	if invoice.Status == "" {
		invoice.Status = models.InvoiceStatusDue
	}
	const query = `INSERT INTO fee_invoices (id, student_id, term_id, reference_no, amount, due_date, status, created_at, updated_at)
        VALUES (:id, :student_id, :term_id, :reference_no, :amount, :due_date, :status, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, invoice); err != nil {
		return fmt.Errorf("create invoice: %w", err)
	}
	return nil
}

// UpdateStatus changes payment status of an invoice.
func (r *InvoiceRepository) UpdateStatus(ctx context.Context, id string, status models.InvoiceStatus) error {
	const query = `UPDATE fee_invoices SET status = $2, updated_at = $3 WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id, status, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update invoice status: %w", err)
	}
	if rows, err := result.RowsAffected(); err == nil && rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}
