package models

import "time"

// AuditAction constants represent actions to be logged.
const (
	AuditActionLogin              = "LOGIN"
	AuditActionLogout             = "LOGOUT"
	AuditActionUserCreate         = "USER_CREATE"
	AuditActionUserUpdate         = "USER_UPDATE"
	AuditActionPasswordChange     = "PASSWORD_CHANGE"
	AuditActionRegistrationAdd    = "REGISTRATION_ADD"
	AuditActionRegistrationWait   = "REGISTRATION_WAITLIST"
	AuditActionRegistrationDrop   = "REGISTRATION_DROP"
	AuditActionTranscriptCreate   = "TRANSCRIPT_REQUEST_CREATE"
	AuditActionTranscriptReview   = "TRANSCRIPT_REQUEST_REVIEW"
	AuditActionTranscriptIssue    = "TRANSCRIPT_REQUEST_ISSUE"
	AuditActionTranscriptCancel   = "TRANSCRIPT_REQUEST_CANCEL"
	AuditActionTranscriptDownload = "TRANSCRIPT_DOWNLOAD"
	AuditActionGradesUpdate       = "GRADES_UPDATE"
	AuditActionInvoiceCreate      = "INVOICE_CREATE"
	AuditActionInvoicePaid        = "INVOICE_MARK_PAID"
	AuditActionTicketCreate       = "TICKET_CREATE"
	AuditActionTicketMessage      = "TICKET_MESSAGE"
	AuditActionAnnouncementCreate = "ANNOUNCEMENT_CREATE"
	AuditActionAnnouncementUpdate = "ANNOUNCEMENT_UPDATE"
	AuditActionAnnouncementDelete = "ANNOUNCEMENT_DELETE"
)

// AuditLog represents an audit trail record.
type AuditLog struct {
	ID         string    `db:"id" json:"id"`
	UserID     *string   `db:"user_id" json:"user_id,omitempty"`
	Action     string    `db:"action" json:"action"`
	Resource   string    `db:"resource" json:"resource"`
	ResourceID *string   `db:"resource_id" json:"resource_id,omitempty"`
	OldValues  []byte    `db:"old_values" json:"old_values,omitempty"`
	NewValues  []byte    `db:"new_values" json:"new_values,omitempty"`
	IPAddress  string    `db:"ip_address" json:"ip_address"`
	UserAgent  string    `db:"user_agent" json:"user_agent"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}
