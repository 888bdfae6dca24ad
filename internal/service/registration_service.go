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
	"github.com/noah-isme/university-portal-api/internal/repository"
	appErrors "github.com/noah-isme/university-portal-api/pkg/errors"
)

type registrationRepository interface {
	RequestSeat(ctx context.Context, sectionID, studentID string) (models.RegistrationOutcome, error)
	DropSeat(ctx context.Context, sectionID, studentID string) (models.RegistrationOutcome, error)
	ListByStudent(ctx context.Context, studentID, termID string) ([]models.EnrollmentDetail, error)
	SeatCount(ctx context.Context, sectionID string) (*models.SeatCount, error)
}

type sectionReader interface {
	FindSection(ctx context.Context, id string) (*models.Section, error)
}

type termReader interface {
	FindByID(ctx context.Context, id string) (*models.Term, error)
	FindActive(ctx context.Context) (*models.Term, error)
}

type auditWriter interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

type catalogInvalidator interface {
	DeleteByPattern(ctx context.Context, pattern string) error
}

type seatOutcomeRecorder interface {
	RecordSeatOutcome(outcome string)
}

// SeatRequest describes a registration add or drop.
type SeatRequest struct {
	SectionID string `json:"section_id" validate:"required"`
}

// RegistrationResult is the outcome of a seat operation.
type RegistrationResult struct {
	SectionID string                     `json:"section_id"`
	StudentID string                     `json:"student_id"`
	Outcome   models.RegistrationOutcome `json:"outcome"`
}

// RegistrationService orchestrates seat allocation. The registration
// window is checked up front so closed-term requests never reach the
// section lock; the allocation decision itself lives in the repository
// transaction.
type RegistrationService struct {
	repo      registrationRepository
	sections  sectionReader
	terms     termReader
	audit     auditWriter
	cache     catalogInvalidator
	metrics   seatOutcomeRecorder
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewRegistrationService constructs RegistrationService.
func NewRegistrationService(repo registrationRepository, sections sectionReader, terms termReader, audit auditWriter, cache catalogInvalidator, metrics seatOutcomeRecorder, validate *validator.Validate, logger *zap.Logger) *RegistrationService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RegistrationService{
		repo:      repo,
		sections:  sections,
		terms:     terms,
		audit:     audit,
		cache:     cache,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// RequestSeat enrolls or waitlists the student in a section. Capacity
// contention is not an error: when the section is full the student is
// waitlisted and the call succeeds.
func (s *RegistrationService) RequestSeat(ctx context.Context, studentID string, req SeatRequest) (*RegistrationResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid seat request payload")
	}

	section, err := s.loadSection(ctx, req.SectionID)
	if err != nil {
		return nil, err
	}
	if err := s.checkRegistrationWindow(ctx, section.TermID); err != nil {
		return nil, err
	}

	outcome, err := s.repo.RequestSeat(ctx, req.SectionID, studentID)
	if err != nil {
		return nil, s.mapSeatError(err, "seat request failed")
	}

	s.recordOutcome(outcome)
	s.invalidateCatalog(ctx, section.TermID)

	action := models.AuditActionRegistrationAdd
	if outcome == models.OutcomeWaitlisted {
		action = models.AuditActionRegistrationWait
	}
	if outcome != models.OutcomeAlreadyEnrolled {
		s.emitAudit(ctx, studentID, action, req.SectionID, outcome)
	}

	return &RegistrationResult{SectionID: req.SectionID, StudentID: studentID, Outcome: outcome}, nil
}

// DropSeat releases the student's seat. Dropping a seat the student
// does not hold is reported, not failed; no waitlisted student is
// promoted into the freed seat.
func (s *RegistrationService) DropSeat(ctx context.Context, studentID string, req SeatRequest) (*RegistrationResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid seat request payload")
	}

	section, err := s.loadSection(ctx, req.SectionID)
	if err != nil {
		return nil, err
	}
	if err := s.checkRegistrationWindow(ctx, section.TermID); err != nil {
		return nil, err
	}

	outcome, err := s.repo.DropSeat(ctx, req.SectionID, studentID)
	if err != nil {
		return nil, s.mapSeatError(err, "seat drop failed")
	}

	if outcome == models.OutcomeDropped {
		s.recordOutcome(outcome)
		s.invalidateCatalog(ctx, section.TermID)
		s.emitAudit(ctx, studentID, models.AuditActionRegistrationDrop, req.SectionID, outcome)
	}

	return &RegistrationResult{SectionID: req.SectionID, StudentID: studentID, Outcome: outcome}, nil
}

// ListForStudent returns a student's schedule for the given term, or
// the active term when none is given.
func (s *RegistrationService) ListForStudent(ctx context.Context, studentID, termID string) ([]models.EnrollmentDetail, error) {
	if termID == "" {
		term, err := s.terms.FindActive(ctx)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrNotFound, "no active term")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load active term")
		}
		termID = term.ID
	}
	enrollments, err := s.repo.ListByStudent(ctx, studentID, termID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list enrollments")
	}
	return enrollments, nil
}

// SeatCount reports current occupancy of a section.
func (s *RegistrationService) SeatCount(ctx context.Context, sectionID string) (*models.SeatCount, error) {
	count, err := s.repo.SeatCount(ctx, sectionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "section not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count seats")
	}
	return count, nil
}

func (s *RegistrationService) loadSection(ctx context.Context, sectionID string) (*models.Section, error) {
	section, err := s.sections.FindSection(ctx, sectionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "section not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load section")
	}
	return section, nil
}

func (s *RegistrationService) checkRegistrationWindow(ctx context.Context, termID string) error {
	term, err := s.terms.FindByID(ctx, termID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "term not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load term")
	}
	if !term.RegistrationOpen(s.now()) {
		return appErrors.Clone(appErrors.ErrRegistrationClosed, fmt.Sprintf("registration for term %s is closed", term.Name))
	}
	return nil
}

func (s *RegistrationService) mapSeatError(err error, message string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.Clone(appErrors.ErrNotFound, "section not found")
	}
	if repository.IsLockTimeout(err) {
		return appErrors.Wrap(err, appErrors.ErrTransient.Code, appErrors.ErrTransient.Status, appErrors.ErrTransient.Message)
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, message)
}

func (s *RegistrationService) invalidateCatalog(ctx context.Context, termID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.DeleteByPattern(ctx, fmt.Sprintf("catalog:%s:*", termID)); err != nil {
		s.logger.Warn("failed to invalidate catalog cache", zap.String("term_id", termID), zap.Error(err))
	}
}

func (s *RegistrationService) recordOutcome(outcome models.RegistrationOutcome) {
	if s.metrics == nil {
		return
	}
	s.metrics.RecordSeatOutcome(string(outcome))
}

func (s *RegistrationService) emitAudit(ctx context.Context, studentID, action, sectionID string, outcome models.RegistrationOutcome) {
	if s.audit == nil {
		return
	}
	if err := s.audit.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     &studentID,
		Action:     action,
		Resource:   "registration",
		ResourceID: &sectionID,
		NewValues:  []byte(fmt.Sprintf(`{"outcome":%q}`, outcome)),
	}); err != nil {
		s.logger.Warn("failed to record registration audit log", zap.Error(err))
	}
}
