package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/university-portal-api/internal/models"
	appErrors "github.com/noah-isme/university-portal-api/pkg/errors"
)

type fakeTicketRepo struct {
	tickets  map[string]*models.SupportTicket
	messages []models.SupportMessage
}

func (f *fakeTicketRepo) Create(ctx context.Context, ticket *models.SupportTicket) error {
	ticket.ID = "tic-new"
	ticket.Status = models.TicketStatusOpen
	f.tickets[ticket.ID] = ticket
	return nil
}

func (f *fakeTicketRepo) FindByID(ctx context.Context, id string) (*models.SupportTicket, error) {
	if t, ok := f.tickets[id]; ok {
		copied := *t
		return &copied, nil
	}
	return nil, sql.ErrNoRows
}

func (f *fakeTicketRepo) ListByCreator(ctx context.Context, creatorID string) ([]models.SupportTicket, error) {
	var out []models.SupportTicket
	for _, t := range f.tickets {
		if t.CreatedBy == creatorID {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (f *fakeTicketRepo) ListAll(ctx context.Context, status models.TicketStatus) ([]models.SupportTicket, error) {
	var out []models.SupportTicket
	for _, t := range f.tickets {
		if status == "" || t.Status == status {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (f *fakeTicketRepo) UpdateStatus(ctx context.Context, id string, status models.TicketStatus, assignedTo *string) error {
	t, ok := f.tickets[id]
	if !ok {
		return sql.ErrNoRows
	}
	t.Status = status
	if assignedTo != nil {
		t.AssignedTo = assignedTo
	}
	return nil
}

func (f *fakeTicketRepo) AddMessage(ctx context.Context, message *models.SupportMessage) error {
	message.ID = "msg-new"
	f.messages = append(f.messages, *message)
	return nil
}

func (f *fakeTicketRepo) ListMessages(ctx context.Context, ticketID string) ([]models.SupportMessage, error) {
	var out []models.SupportMessage
	for _, m := range f.messages {
		if m.TicketID == ticketID {
			out = append(out, m)
		}
	}
	return out, nil
}

func newTicketFixture() (*TicketService, *fakeTicketRepo) {
	repo := &fakeTicketRepo{tickets: map[string]*models.SupportTicket{
		"tic-1": {ID: "tic-1", CreatedBy: "stu-1", Subject: "Cannot access catalog", Status: models.TicketStatusOpen},
		"tic-2": {ID: "tic-2", CreatedBy: "stu-1", Subject: "Old issue", Status: models.TicketStatusClosed},
	}}
	svc := NewTicketService(repo, &fakeAuditWriter{}, validator.New(), zap.NewNop())
	return svc, repo
}

func TestTicketServiceCreate(t *testing.T) {
	svc, repo := newTicketFixture()

	ticket, err := svc.Create(context.Background(), "stu-2", CreateTicketRequest{
		Category:    "BILLING",
		Subject:     "Invoice mismatch",
		Description: "Amount differs from the fee schedule",
	})
	require.NoError(t, err)
	assert.Equal(t, models.TicketStatusOpen, ticket.Status)
	assert.Equal(t, "stu-2", repo.tickets["tic-new"].CreatedBy)
}

func TestTicketServiceCreateRequiresSubject(t *testing.T) {
	svc, _ := newTicketFixture()

	_, err := svc.Create(context.Background(), "stu-2", CreateTicketRequest{Description: "no subject"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestTicketServiceGetHidesForeignTickets(t *testing.T) {
	svc, _ := newTicketFixture()
	ctx := context.Background()

	_, err := svc.Get(ctx, "stu-2", false, "tic-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)

	detail, err := svc.Get(ctx, "staff-1", true, "tic-1")
	require.NoError(t, err)
	assert.Equal(t, "tic-1", detail.Ticket.ID)
}

func TestTicketServiceAddMessage(t *testing.T) {
	svc, repo := newTicketFixture()

	message, err := svc.AddMessage(context.Background(), "stu-1", false, "tic-1", TicketMessageRequest{Message: "Any update?"})
	require.NoError(t, err)
	assert.Equal(t, "tic-1", message.TicketID)
	require.Len(t, repo.messages, 1)
}

func TestTicketServiceAddMessageToClosedTicket(t *testing.T) {
	svc, _ := newTicketFixture()

	_, err := svc.AddMessage(context.Background(), "stu-1", false, "tic-2", TicketMessageRequest{Message: "Reopening?"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrPreconditionFailed.Code, appErrors.FromError(err).Code)
}

func TestTicketServiceUpdateStatus(t *testing.T) {
	svc, repo := newTicketFixture()
	agent := "staff-1"

	ticket, err := svc.UpdateStatus(context.Background(), "tic-1", UpdateTicketStatusRequest{
		Status:     models.TicketStatusInProgress,
		AssignedTo: &agent,
	})
	require.NoError(t, err)
	assert.Equal(t, models.TicketStatusInProgress, ticket.Status)
	require.NotNil(t, repo.tickets["tic-1"].AssignedTo)
	assert.Equal(t, "staff-1", *repo.tickets["tic-1"].AssignedTo)
}

func TestTicketServiceUpdateStatusRejectsUnknown(t *testing.T) {
	svc, _ := newTicketFixture()

	_, err := svc.UpdateStatus(context.Background(), "tic-1", UpdateTicketStatusRequest{Status: "ARCHIVED"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestTicketServiceListQueueFiltersByStatus(t *testing.T) {
	svc, _ := newTicketFixture()

	tickets, err := svc.ListQueue(context.Background(), models.TicketStatusOpen)
	require.NoError(t, err)
	require.Len(t, tickets, 1)
	assert.Equal(t, "tic-1", tickets[0].ID)
}
