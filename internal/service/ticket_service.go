package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/university-portal-api/internal/models"
	appErrors "github.com/noah-isme/university-portal-api/pkg/errors"
)

type ticketRepository interface {
	Create(ctx context.Context, ticket *models.SupportTicket) error
	FindByID(ctx context.Context, id string) (*models.SupportTicket, error)
	ListByCreator(ctx context.Context, creatorID string) ([]models.SupportTicket, error)
	ListAll(ctx context.Context, status models.TicketStatus) ([]models.SupportTicket, error)
	UpdateStatus(ctx context.Context, id string, status models.TicketStatus, assignedTo *string) error
	AddMessage(ctx context.Context, message *models.SupportMessage) error
	ListMessages(ctx context.Context, ticketID string) ([]models.SupportMessage, error)
}

// CreateTicketRequest opens a new support ticket.
type CreateTicketRequest struct {
	Category    string `json:"category"`
	Subject     string `json:"subject" validate:"required"`
	Description string `json:"description" validate:"required"`
}

// TicketMessageRequest appends a reply to a thread.
type TicketMessageRequest struct {
	Message string `json:"message" validate:"required"`
}

// UpdateTicketStatusRequest moves a ticket through its lifecycle.
type UpdateTicketStatusRequest struct {
	Status     models.TicketStatus `json:"status" validate:"required"`
	AssignedTo *string             `json:"assigned_to"`
}

// TicketDetail bundles a ticket with its message thread.
type TicketDetail struct {
	Ticket   models.SupportTicket    `json:"ticket"`
	Messages []models.SupportMessage `json:"messages"`
}

// TicketService manages support tickets. Creators see only their own
// tickets; staff see the full queue.
type TicketService struct {
	repo      ticketRepository
	audit     auditWriter
	validator *validator.Validate
	logger    *zap.Logger
}

// NewTicketService constructs TicketService.
func NewTicketService(repo ticketRepository, audit auditWriter, validate *validator.Validate, logger *zap.Logger) *TicketService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TicketService{repo: repo, audit: audit, validator: validate, logger: logger}
}

// Create opens a new ticket for the caller.
func (s *TicketService) Create(ctx context.Context, creatorID string, req CreateTicketRequest) (*models.SupportTicket, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid ticket payload")
	}

	ticket := &models.SupportTicket{
		CreatedBy:   creatorID,
		Category:    req.Category,
		Subject:     req.Subject,
		Description: req.Description,
	}
	if err := s.repo.Create(ctx, ticket); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create ticket")
	}

	if s.audit != nil {
		if err := s.audit.CreateAuditLog(ctx, &models.AuditLog{
			UserID:     &creatorID,
			Action:     models.AuditActionTicketCreate,
			Resource:   "support_ticket",
			ResourceID: &ticket.ID,
		}); err != nil {
			s.logger.Warn("failed to record ticket audit log", zap.Error(err))
		}
	}
	return ticket, nil
}

// ListForCreator returns the caller's own tickets.
func (s *TicketService) ListForCreator(ctx context.Context, creatorID string) ([]models.SupportTicket, error) {
	tickets, err := s.repo.ListByCreator(ctx, creatorID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list tickets")
	}
	return tickets, nil
}

// ListQueue returns the staff queue.
func (s *TicketService) ListQueue(ctx context.Context, status models.TicketStatus) ([]models.SupportTicket, error) {
	if status != "" && !models.ValidTicketStatus(status) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown ticket status")
	}
	tickets, err := s.repo.ListAll(ctx, status)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list tickets")
	}
	return tickets, nil
}

// Get returns a ticket with its thread. Creators may only read their
// own tickets.
func (s *TicketService) Get(ctx context.Context, callerID string, staff bool, id string) (*TicketDetail, error) {
	ticket, err := s.findTicket(ctx, id)
	if err != nil {
		return nil, err
	}
	if !staff && ticket.CreatedBy != callerID {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "ticket not found")
	}
	messages, err := s.repo.ListMessages(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list ticket messages")
	}
	return &TicketDetail{Ticket: *ticket, Messages: messages}, nil
}

// AddMessage appends a reply. Closed tickets accept no replies.
func (s *TicketService) AddMessage(ctx context.Context, callerID string, staff bool, ticketID string, req TicketMessageRequest) (*models.SupportMessage, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid message payload")
	}

	ticket, err := s.findTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if !staff && ticket.CreatedBy != callerID {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "ticket not found")
	}
	if ticket.Status == models.TicketStatusClosed {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "ticket is closed")
	}

	message := &models.SupportMessage{
		TicketID: ticketID,
		AuthorID: callerID,
		Message:  req.Message,
	}
	if err := s.repo.AddMessage(ctx, message); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to add ticket message")
	}

	if s.audit != nil {
		if err := s.audit.CreateAuditLog(ctx, &models.AuditLog{
			UserID:     &callerID,
			Action:     models.AuditActionTicketMessage,
			Resource:   "support_ticket",
			ResourceID: &ticketID,
		}); err != nil {
			s.logger.Warn("failed to record ticket audit log", zap.Error(err))
		}
	}
	return message, nil
}

// UpdateStatus moves a ticket through its lifecycle. Staff only.
func (s *TicketService) UpdateStatus(ctx context.Context, id string, req UpdateTicketStatusRequest) (*models.SupportTicket, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid status payload")
	}
	if !models.ValidTicketStatus(req.Status) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown ticket status")
	}

	if _, err := s.findTicket(ctx, id); err != nil {
		return nil, err
	}
	if err := s.repo.UpdateStatus(ctx, id, req.Status, req.AssignedTo); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "ticket not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update ticket")
	}
	return s.findTicket(ctx, id)
}

func (s *TicketService) findTicket(ctx context.Context, id string) (*models.SupportTicket, error) {
	ticket, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "ticket not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load ticket")
	}
	return ticket, nil
}
