package models

import "time"

// InvoiceStatus tracks payment state of a fee invoice.
type InvoiceStatus string

const (
	InvoiceStatusDue     InvoiceStatus = "DUE"
	InvoiceStatusPaid    InvoiceStatus = "PAID"
	InvoiceStatusOverdue InvoiceStatus = "OVERDUE"
)

// FeeInvoice bills one student for one term.
type FeeInvoice struct {
	ID          string        `db:"id" json:"id"`
	StudentID   string        `db:"student_id" json:"student_id"`
	TermID      string        `db:"term_id" json:"term_id"`
	ReferenceNo string        `db:"reference_no" json:"reference_no"`
	Amount      float64       `db:"amount" json:"amount"`
	DueDate     time.Time     `db:"due_date" json:"due_date"`
	Status      InvoiceStatus `db:"status" json:"status"`
	CreatedAt   time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time     `db:"updated_at" json:"updated_at"`
}

// FeeInvoiceDetail enriches FeeInvoice with student and term names.
type FeeInvoiceDetail struct {
	FeeInvoice
	StudentName string `db:"student_name" json:"student_name"`
	TermName    string `db:"term_name" json:"term_name"`
}

// InvoiceFilter constrains invoice listing.
type InvoiceFilter struct {
	StudentID string
	TermID    string
	Status    InvoiceStatus
	Page      int
	PageSize  int
}
