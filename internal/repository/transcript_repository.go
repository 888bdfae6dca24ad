package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/university-portal-api/internal/models"
	appErrors "github.com/noah-isme/university-portal-api/pkg/errors"
)

// TranscriptRepository persists transcript requests and their
// transition history. Every transition updates the request row and
// appends exactly one event in the same transaction, with the row held
// under an exclusive lock.
type TranscriptRepository struct {
	db *sqlx.DB
}

// NewTranscriptRepository constructs the repository.
func NewTranscriptRepository(db *sqlx.DB) *TranscriptRepository {
	return &TranscriptRepository{db: db}
}

const transcriptColumns = `id, requester_id, purpose, delivery_method, recipient_details, status,
        reviewed_by, review_reason, issued_at, verification_code, created_at, updated_at`

// Create stores a new request in SUBMITTED state together with its
// initial event.
func (r *TranscriptRepository) Create(ctx context.Context, req *models.TranscriptRequest) (err error) {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	req.Status = models.TranscriptStatusSubmitted
	req.CreatedAt = now
	req.UpdatedAt = now

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transcript create tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	const insertQuery = `INSERT INTO transcript_requests (id, requester_id, purpose, delivery_method, recipient_details, status, review_reason, verification_code, created_at, updated_at)
        VALUES (:id, :requester_id, :purpose, :delivery_method, :recipient_details, :status, :review_reason, :verification_code, :created_at, :updated_at)`
	if _, err = tx.NamedExecContext(ctx, insertQuery, req); err != nil {
		return fmt.Errorf("create transcript request: %w", err)
	}

	if err = insertTranscriptEvent(ctx, tx, &models.TranscriptRequestEvent{
		RequestID:  req.ID,
		ActorID:    req.RequesterID,
		FromStatus: "",
		ToStatus:   models.TranscriptStatusSubmitted,
		Note:       "Created by requester",
	}); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit transcript create tx: %w", err)
	}
	return nil
}

// FindByID returns a request by ID.
func (r *TranscriptRepository) FindByID(ctx context.Context, id string) (*models.TranscriptRequest, error) {
	query := fmt.Sprintf(`SELECT %s FROM transcript_requests WHERE id = $1`, transcriptColumns)
	var req models.TranscriptRequest
	if err := r.db.GetContext(ctx, &req, query, id); err != nil {
		return nil, err
	}
	return &req, nil
}

// List returns requests matching the filter, newest first for a
// requester and review-queue order otherwise.
func (r *TranscriptRepository) List(ctx context.Context, filter models.TranscriptFilter) ([]models.TranscriptRequest, error) {
	query := fmt.Sprintf(`SELECT %s FROM transcript_requests`, transcriptColumns)
	var args []interface{}
	if filter.RequesterID != "" {
		args = append(args, filter.RequesterID)
		query += fmt.Sprintf(" WHERE requester_id = $%d", len(args))
		if filter.Status != "" {
			args = append(args, filter.Status)
			query += fmt.Sprintf(" AND status = $%d", len(args))
		}
		query += " ORDER BY created_at DESC"
	} else {
		if filter.Status != "" {
			args = append(args, filter.Status)
			query += fmt.Sprintf(" WHERE status = $%d", len(args))
		}
		query += " ORDER BY status, created_at"
	}

	var requests []models.TranscriptRequest
	if err := r.db.SelectContext(ctx, &requests, query, args...); err != nil {
		return nil, fmt.Errorf("list transcript requests: %w", err)
	}
	return requests, nil
}

// ListEvents returns the complete transition history for a request in
// creation order.
func (r *TranscriptRepository) ListEvents(ctx context.Context, requestID string) ([]models.TranscriptRequestEvent, error) {
	const query = `SELECT id, request_id, actor_id, from_status, to_status, note, created_at
        FROM transcript_request_events WHERE request_id = $1 ORDER BY created_at`
	var events []models.TranscriptRequestEvent
	if err := r.db.SelectContext(ctx, &events, query, requestID); err != nil {
		return nil, fmt.Errorf("list transcript events: %w", err)
	}
	return events, nil
}

// TransitionParams describes one workflow transition.
type TransitionParams struct {
	RequestID string
	// From lists the statuses the transition may leave; any other
	// current status aborts with ErrInvalidTransition and no mutation.
	From    []models.TranscriptStatus
	To      models.TranscriptStatus
	ActorID string
	Note    string
	// ReviewReason replaces review_reason when non-nil.
	ReviewReason *string
	// Issue sets issued_at and verification_code on first issuance
	// only; once set they are never overwritten.
	Issue            bool
	IssuedAt         time.Time
	VerificationCode string
}

// Transition atomically applies a status change and appends its event.
// The request row is locked for the duration, so concurrent conflicting
// transitions resolve to exactly one winner; the loser observes a
// terminal or unexpected status and gets ErrInvalidTransition.
func (r *TranscriptRepository) Transition(ctx context.Context, params TransitionParams) (req *models.TranscriptRequest, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transcript transition tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var current models.TranscriptRequest
	lockQuery := fmt.Sprintf(`SELECT %s FROM transcript_requests WHERE id = $1 FOR UPDATE`, transcriptColumns)
	if err = tx.GetContext(ctx, &current, lockQuery, params.RequestID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("lock transcript request: %w", err)
	}

	allowed := false
	for _, from := range params.From {
		if current.Status == from {
			allowed = true
			break
		}
	}
	if !allowed {
		err = appErrors.Clone(appErrors.ErrInvalidTransition,
			fmt.Sprintf("cannot transition from %s to %s", current.Status, params.To))
		return nil, err
	}

	now := time.Now().UTC()
	updated := current
	updated.Status = params.To
	updated.ReviewedBy = &params.ActorID
	updated.UpdatedAt = now
	if params.ReviewReason != nil {
		updated.ReviewReason = *params.ReviewReason
	}
	if params.Issue {
		if updated.IssuedAt == nil {
			issuedAt := params.IssuedAt
			updated.IssuedAt = &issuedAt
		}
		if updated.VerificationCode == "" {
			updated.VerificationCode = params.VerificationCode
		}
	}

	// COALESCE guards keep issued_at and verification_code immutable
	// once written.
	const updateQuery = `UPDATE transcript_requests
        SET status = $2, reviewed_by = $3, review_reason = $4,
            issued_at = COALESCE(issued_at, $5),
            verification_code = COALESCE(NULLIF(verification_code, ''), $6),
            updated_at = $7
        WHERE id = $1`
	var issuedArg interface{}
	codeArg := ""
	if params.Issue {
		issuedArg = params.IssuedAt
		codeArg = params.VerificationCode
	}
	if _, err = tx.ExecContext(ctx, updateQuery, current.ID, updated.Status, params.ActorID,
		updated.ReviewReason, issuedArg, codeArg, now); err != nil {
		return nil, fmt.Errorf("update transcript request: %w", err)
	}

	if err = insertTranscriptEvent(ctx, tx, &models.TranscriptRequestEvent{
		RequestID:  current.ID,
		ActorID:    params.ActorID,
		FromStatus: current.Status,
		ToStatus:   params.To,
		Note:       params.Note,
	}); err != nil {
		return nil, err
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit transcript transition tx: %w", err)
	}
	return &updated, nil
}

func insertTranscriptEvent(ctx context.Context, tx *sqlx.Tx, event *models.TranscriptRequestEvent) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO transcript_request_events (id, request_id, actor_id, from_status, to_status, note, created_at)
        VALUES (:id, :request_id, :actor_id, :from_status, :to_status, :note, :created_at)`
	if _, err := tx.NamedExecContext(ctx, query, event); err != nil {
		return fmt.Errorf("insert transcript event: %w", err)
	}
	return nil
}
