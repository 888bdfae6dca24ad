package service

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/base64"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/university-portal-api/internal/models"
	"github.com/noah-isme/university-portal-api/internal/repository"
	"github.com/noah-isme/university-portal-api/pkg/export"
	appErrors "github.com/noah-isme/university-portal-api/pkg/errors"
)

type transcriptRepository interface {
	Create(ctx context.Context, req *models.TranscriptRequest) error
	FindByID(ctx context.Context, id string) (*models.TranscriptRequest, error)
	List(ctx context.Context, filter models.TranscriptFilter) ([]models.TranscriptRequest, error)
	ListEvents(ctx context.Context, requestID string) ([]models.TranscriptRequestEvent, error)
	Transition(ctx context.Context, params repository.TransitionParams) (*models.TranscriptRequest, error)
}

type gradeLineReader interface {
	ListReleasedByStudent(ctx context.Context, studentID string) ([]models.GradeLine, error)
}

type transcriptUserReader interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

type transcriptRenderer interface {
	Render(doc export.TranscriptDocument) ([]byte, error)
}

type transitionRecorder interface {
	RecordTranscriptTransition(toStatus string)
}

// SubmitTranscriptRequest is the payload for opening a new request.
type SubmitTranscriptRequest struct {
	Purpose          string                `json:"purpose" validate:"required"`
	DeliveryMethod   models.DeliveryMethod `json:"delivery_method" validate:"required"`
	RecipientDetails string                `json:"recipient_details"`
}

// ReviewDecisionRequest carries the registrar's note or reason.
type ReviewDecisionRequest struct {
	Note   string `json:"note"`
	Reason string `json:"reason"`
}

// TranscriptRequestDetail bundles a request with its full event trail.
type TranscriptRequestDetail struct {
	Request models.TranscriptRequest        `json:"request"`
	Events  []models.TranscriptRequestEvent `json:"events"`
}

// TranscriptService drives the transcript request workflow. All status
// moves go through the repository's locked Transition, so each service
// method only declares which statuses it may leave.
type TranscriptService struct {
	repo      transcriptRepository
	grades    gradeLineReader
	users     transcriptUserReader
	renderer  transcriptRenderer
	audit     auditWriter
	metrics   transitionRecorder
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewTranscriptService constructs TranscriptService.
func NewTranscriptService(repo transcriptRepository, grades gradeLineReader, users transcriptUserReader, renderer transcriptRenderer, audit auditWriter, metrics transitionRecorder, validate *validator.Validate, logger *zap.Logger) *TranscriptService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if renderer == nil {
		renderer = export.NewTranscriptPDFExporter()
	}
	return &TranscriptService{
		repo:      repo,
		grades:    grades,
		users:     users,
		renderer:  renderer,
		audit:     audit,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Submit opens a new request in SUBMITTED state.
func (s *TranscriptService) Submit(ctx context.Context, requesterID string, req SubmitTranscriptRequest) (*models.TranscriptRequest, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid transcript request payload")
	}
	if !models.ValidDeliveryMethod(req.DeliveryMethod) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown delivery method")
	}

	request := &models.TranscriptRequest{
		RequesterID:      requesterID,
		Purpose:          req.Purpose,
		DeliveryMethod:   req.DeliveryMethod,
		RecipientDetails: req.RecipientDetails,
	}
	if err := s.repo.Create(ctx, request); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create transcript request")
	}

	s.emitTranscriptAudit(ctx, requesterID, models.AuditActionTranscriptCreate, request.ID)
	return request, nil
}

// StartReview moves a SUBMITTED request into IN_REVIEW.
func (s *TranscriptService) StartReview(ctx context.Context, actorID, requestID string) (*models.TranscriptRequest, error) {
	updated, err := s.transition(ctx, repository.TransitionParams{
		RequestID: requestID,
		From:      []models.TranscriptStatus{models.TranscriptStatusSubmitted},
		To:        models.TranscriptStatusInReview,
		ActorID:   actorID,
		Note:      "Review started",
	})
	if err != nil {
		return nil, err
	}
	s.emitTranscriptAudit(ctx, actorID, models.AuditActionTranscriptReview, requestID)
	return updated, nil
}

// Approve accepts a request pending review.
func (s *TranscriptService) Approve(ctx context.Context, actorID, requestID string, req ReviewDecisionRequest) (*models.TranscriptRequest, error) {
	note := req.Note
	if note == "" {
		note = "Approved"
	}
	updated, err := s.transition(ctx, repository.TransitionParams{
		RequestID: requestID,
		From:      []models.TranscriptStatus{models.TranscriptStatusSubmitted, models.TranscriptStatusInReview},
		To:        models.TranscriptStatusApproved,
		ActorID:   actorID,
		Note:      note,
	})
	if err != nil {
		return nil, err
	}
	s.emitTranscriptAudit(ctx, actorID, models.AuditActionTranscriptReview, requestID)
	return updated, nil
}

// Reject declines a request pending review. A reason is mandatory and
// recorded on both the request and its event.
func (s *TranscriptService) Reject(ctx context.Context, actorID, requestID string, req ReviewDecisionRequest) (*models.TranscriptRequest, error) {
	if req.Reason == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "rejection reason is required")
	}
	updated, err := s.transition(ctx, repository.TransitionParams{
		RequestID:    requestID,
		From:         []models.TranscriptStatus{models.TranscriptStatusSubmitted, models.TranscriptStatusInReview},
		To:           models.TranscriptStatusRejected,
		ActorID:      actorID,
		Note:         req.Reason,
		ReviewReason: &req.Reason,
	})
	if err != nil {
		return nil, err
	}
	s.emitTranscriptAudit(ctx, actorID, models.AuditActionTranscriptReview, requestID)
	return updated, nil
}

// Issue finalises an APPROVED request, stamping a verification code and
// issuance time exactly once. Re-issuing an already ISSUED request is
// idempotent: the stored request is returned unchanged.
func (s *TranscriptService) Issue(ctx context.Context, actorID, requestID string) (*models.TranscriptRequest, error) {
	code, err := generateVerificationCode()
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to generate verification code")
	}

	updated, err := s.transition(ctx, repository.TransitionParams{
		RequestID:        requestID,
		From:             []models.TranscriptStatus{models.TranscriptStatusApproved},
		To:               models.TranscriptStatusIssued,
		ActorID:          actorID,
		Note:             "Transcript issued",
		Issue:            true,
		IssuedAt:         s.now(),
		VerificationCode: code,
	})
	if err != nil {
		var appErr *appErrors.Error
		if errors.As(err, &appErr) && appErr.Code == appErrors.ErrInvalidTransition.Code {
			current, findErr := s.repo.FindByID(ctx, requestID)
			if findErr == nil && current.Status == models.TranscriptStatusIssued {
				return current, nil
			}
		}
		return nil, err
	}

	s.emitTranscriptAudit(ctx, actorID, models.AuditActionTranscriptIssue, requestID)
	return updated, nil
}

// Cancel lets the requester withdraw their own request before
// issuance. Cancellation is recorded as a rejection by the requester.
func (s *TranscriptService) Cancel(ctx context.Context, requesterID, requestID string) (*models.TranscriptRequest, error) {
	request, err := s.findRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if request.RequesterID != requesterID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the requester may cancel a request")
	}

	updated, err := s.transition(ctx, repository.TransitionParams{
		RequestID: requestID,
		From: []models.TranscriptStatus{
			models.TranscriptStatusSubmitted,
			models.TranscriptStatusInReview,
			models.TranscriptStatusApproved,
		},
		To:      models.TranscriptStatusRejected,
		ActorID: requesterID,
		Note:    "Cancelled by requester",
	})
	if err != nil {
		return nil, err
	}

	s.emitTranscriptAudit(ctx, requesterID, models.AuditActionTranscriptCancel, requestID)
	return updated, nil
}

// ListForRequester returns the requester's own requests, newest first.
func (s *TranscriptService) ListForRequester(ctx context.Context, requesterID string, status models.TranscriptStatus) ([]models.TranscriptRequest, error) {
	requests, err := s.repo.List(ctx, models.TranscriptFilter{RequesterID: requesterID, Status: status})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list transcript requests")
	}
	return requests, nil
}

// ListQueue returns the registrar review queue.
func (s *TranscriptService) ListQueue(ctx context.Context, status models.TranscriptStatus) ([]models.TranscriptRequest, error) {
	requests, err := s.repo.List(ctx, models.TranscriptFilter{Status: status})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list transcript requests")
	}
	return requests, nil
}

// Get returns one request with its event trail. Requesters may only
// see their own requests; staff callers pass staff=true.
func (s *TranscriptService) Get(ctx context.Context, callerID string, staff bool, requestID string) (*TranscriptRequestDetail, error) {
	request, err := s.findRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if !staff && request.RequesterID != callerID {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "transcript request not found")
	}
	events, err := s.repo.ListEvents(ctx, requestID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list transcript events")
	}
	return &TranscriptRequestDetail{Request: *request, Events: events}, nil
}

// OfficialPDF renders the issued transcript for a request. Only ISSUED
// requests have an official document.
func (s *TranscriptService) OfficialPDF(ctx context.Context, callerID string, staff bool, requestID string) ([]byte, error) {
	request, err := s.findRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if !staff && request.RequesterID != callerID {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "transcript request not found")
	}
	if request.Status != models.TranscriptStatusIssued {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "transcript has not been issued")
	}

	doc, err := s.buildDocument(ctx, request.RequesterID)
	if err != nil {
		return nil, err
	}
	doc.Official = true
	doc.VerificationCode = request.VerificationCode
	doc.IssuedAt = request.IssuedAt

	pdf, err := s.renderer.Render(*doc)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render transcript")
	}

	s.emitTranscriptAudit(ctx, callerID, models.AuditActionTranscriptDownload, requestID)
	return pdf, nil
}

// UnofficialPDF renders the caller's own released grades without any
// request or approval.
func (s *TranscriptService) UnofficialPDF(ctx context.Context, studentID string) ([]byte, error) {
	doc, err := s.buildDocument(ctx, studentID)
	if err != nil {
		return nil, err
	}
	pdf, err := s.renderer.Render(*doc)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render transcript")
	}
	return pdf, nil
}

func (s *TranscriptService) buildDocument(ctx context.Context, studentID string) (*export.TranscriptDocument, error) {
	user, err := s.users.FindByID(ctx, studentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	lines, err := s.grades.ListReleasedByStudent(ctx, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load grades")
	}
	doc := &export.TranscriptDocument{
		StudentName: user.FullName,
		GeneratedAt: s.now(),
	}
	for _, line := range lines {
		doc.Lines = append(doc.Lines, export.TranscriptLine{
			Term:   line.TermName,
			Course: line.CourseCode,
			Title:  line.CourseTitle,
			Grade:  line.Value,
		})
	}
	return doc, nil
}

func (s *TranscriptService) findRequest(ctx context.Context, requestID string) (*models.TranscriptRequest, error) {
	request, err := s.repo.FindByID(ctx, requestID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "transcript request not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load transcript request")
	}
	return request, nil
}

func (s *TranscriptService) transition(ctx context.Context, params repository.TransitionParams) (*models.TranscriptRequest, error) {
	updated, err := s.repo.Transition(ctx, params)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "transcript request not found")
		}
		var appErr *appErrors.Error
		if errors.As(err, &appErr) {
			return nil, err
		}
		if repository.IsLockTimeout(err) {
			return nil, appErrors.Wrap(err, appErrors.ErrTransient.Code, appErrors.ErrTransient.Status, appErrors.ErrTransient.Message)
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to apply transition")
	}
	if s.metrics != nil {
		s.metrics.RecordTranscriptTransition(string(params.To))
	}
	return updated, nil
}

func (s *TranscriptService) emitTranscriptAudit(ctx context.Context, actorID, action, requestID string) {
	if s.audit == nil {
		return
	}
	if err := s.audit.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     &actorID,
		Action:     action,
		Resource:   "transcript_request",
		ResourceID: &requestID,
	}); err != nil {
		s.logger.Warn("failed to record transcript audit log", zap.Error(err))
	}
}

// generateVerificationCode returns a 16 character URL-safe code.
func generateVerificationCode() (string, error) {
	buf := make([]byte, 12)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
