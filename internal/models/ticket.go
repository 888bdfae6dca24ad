package models

import "time"

// TicketStatus tracks the lifecycle of a support ticket.
type TicketStatus string

const (
	TicketStatusOpen       TicketStatus = "OPEN"
	TicketStatusInProgress TicketStatus = "IN_PROGRESS"
	TicketStatusResolved   TicketStatus = "RESOLVED"
	TicketStatusClosed     TicketStatus = "CLOSED"
)

// ValidTicketStatus reports whether the status is known.
func ValidTicketStatus(s TicketStatus) bool {
	switch s {
	case TicketStatusOpen, TicketStatusInProgress, TicketStatusResolved, TicketStatusClosed:
		return true
	}
	return false
}

// SupportTicket is a user-filed issue with a message thread.
type SupportTicket struct {
	ID          string       `db:"id" json:"id"`
	CreatedBy   string       `db:"created_by" json:"created_by"`
	Category    string       `db:"category" json:"category"`
	Subject     string       `db:"subject" json:"subject"`
	Description string       `db:"description" json:"description"`
	Status      TicketStatus `db:"status" json:"status"`
	AssignedTo  *string      `db:"assigned_to" json:"assigned_to,omitempty"`
	CreatedAt   time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time    `db:"updated_at" json:"updated_at"`
}

// SupportMessage is one reply on a ticket thread.
type SupportMessage struct {
	ID        string    `db:"id" json:"id"`
	TicketID  string    `db:"ticket_id" json:"ticket_id"`
	AuthorID  string    `db:"author_id" json:"author_id"`
	Message   string    `db:"message" json:"message"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
