package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/university-portal-api/internal/models"
)

// TicketRepository handles support tickets and their message threads.
type TicketRepository struct {
	db *sqlx.DB
}

// NewTicketRepository constructs the repository.
func NewTicketRepository(db *sqlx.DB) *TicketRepository {
	return &TicketRepository{db: db}
}

const ticketColumns = `id, created_by, category, subject, description, status, assigned_to, created_at, updated_at`

// Create persists a new ticket.
func (r *TicketRepository) Create(ctx context.Context, ticket *models.SupportTicket) error {
	if ticket.ID == "" {
		ticket.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	ticket.CreatedAt = now
	ticket.UpdatedAt = now
	if ticket.Status == "" {
		ticket.Status = models.TicketStatusOpen
	}
	const query = `INSERT INTO support_tickets (id, created_by, category, subject, description, status, assigned_to, created_at, updated_at)
        VALUES (:id, :created_by, :category, :subject, :description, :status, :assigned_to, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, ticket); err != nil {
		return fmt.Errorf("create ticket: %w", err)
	}
	return nil
}

// FindByID returns a ticket by its ID.
func (r *TicketRepository) FindByID(ctx context.Context, id string) (*models.SupportTicket, error) {
	query := fmt.Sprintf(`SELECT %s FROM support_tickets WHERE id = $1`, ticketColumns)
	var ticket models.SupportTicket
	if err := r.db.GetContext(ctx, &ticket, query, id); err != nil {
		return nil, err
	}
	return &ticket, nil
}

// ListByCreator returns tickets owned by a user, most recently updated first.
func (r *TicketRepository) ListByCreator(ctx context.Context, creatorID string) ([]models.SupportTicket, error) {
	query := fmt.Sprintf(`SELECT %s FROM support_tickets WHERE created_by = $1 ORDER BY updated_at DESC`, ticketColumns)
	var tickets []models.SupportTicket
	if err := r.db.SelectContext(ctx, &tickets, query, creatorID); err != nil {
		return nil, fmt.Errorf("list tickets by creator: %w", err)
	}
	return tickets, nil
}

// ListAll returns the staff queue, optionally filtered by status.
func (r *TicketRepository) ListAll(ctx context.Context, status models.TicketStatus) ([]models.SupportTicket, error) {
	var tickets []models.SupportTicket
	if status != "" {
		query := fmt.Sprintf(`SELECT %s FROM support_tickets WHERE status = $1 ORDER BY updated_at DESC`, ticketColumns)
		if err := r.db.SelectContext(ctx, &tickets, query, status); err != nil {
			return nil, fmt.Errorf("list tickets: %w", err)
		}
		return tickets, nil
	}
	query := fmt.Sprintf(`SELECT %s FROM support_tickets ORDER BY updated_at DESC`, ticketColumns)
	if err := r.db.SelectContext(ctx, &tickets, query); err != nil {
		return nil, fmt.Errorf("list tickets: %w", err)
	}
	return tickets, nil
}

// UpdateStatus changes a ticket's workflow status and optionally its
// assignee.
func (r *TicketRepository) UpdateStatus(ctx context.Context, id string, status models.TicketStatus, assignedTo *string) error {
	const query = `UPDATE support_tickets SET status = $2, assigned_to = COALESCE($3, assigned_to), updated_at = $4 WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id, status, assignedTo, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update ticket status: %w", err)
	}
	if rows, err := result.RowsAffected(); err == nil && rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// AddMessage appends a message to a ticket thread and bumps the ticket's
// updated_at so queues sort by latest activity.
func (r *TicketRepository) AddMessage(ctx context.Context, message *models.SupportMessage) (err error) {
	if message.ID == "" {
		message.ID = uuid.NewString()
	}
	message.CreatedAt = time.Now().UTC()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin ticket message tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	const insertQuery = `INSERT INTO support_messages (id, ticket_id, author_id, message, created_at)
        VALUES (:id, :ticket_id, :author_id, :message, :created_at)`
	if _, err = tx.NamedExecContext(ctx, insertQuery, message); err != nil {
		return fmt.Errorf("insert ticket message: %w", err)
	}

	const touchQuery = `UPDATE support_tickets SET updated_at = $2 WHERE id = $1`
	if _, err = tx.ExecContext(ctx, touchQuery, message.TicketID, message.CreatedAt); err != nil {
		return fmt.Errorf("touch ticket: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit ticket message tx: %w", err)
	}
	return nil
}

// ListMessages returns a ticket's thread in chronological order.
func (r *TicketRepository) ListMessages(ctx context.Context, ticketID string) ([]models.SupportMessage, error) {
	const query = `SELECT id, ticket_id, author_id, message, created_at
        FROM support_messages WHERE ticket_id = $1 ORDER BY created_at`
	var messages []models.SupportMessage
	if err := r.db.SelectContext(ctx, &messages, query, ticketID); err != nil {
		return nil, fmt.Errorf("list ticket messages: %w", err)
	}
	return messages, nil
}
