package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/university-portal-api/internal/models"
	"github.com/noah-isme/university-portal-api/internal/repository"
	appErrors "github.com/noah-isme/university-portal-api/pkg/errors"
)

type gradeRepository interface {
	ListBySection(ctx context.Context, sectionID string) ([]models.Grade, error)
	ListReleasedByStudent(ctx context.Context, studentID string) ([]models.GradeLine, error)
	UpsertSection(ctx context.Context, sectionID string, entries []repository.GradeEntry, released bool) error
}

type instructorChecker interface {
	FindSection(ctx context.Context, id string) (*models.Section, error)
	IsInstructor(ctx context.Context, sectionID, userID string) (bool, error)
}

// GradeEntryRequest is one row of a grade sheet submission.
type GradeEntryRequest struct {
	StudentID string `json:"student_id" validate:"required"`
	Value     string `json:"value" validate:"required"`
}

// UpsertGradesRequest replaces or creates grades for a section.
type UpsertGradesRequest struct {
	Entries  []GradeEntryRequest `json:"entries" validate:"required,min=1,dive"`
	Released bool                `json:"released"`
}

// GradeService manages grade sheets. Faculty may only write sections
// they teach; registrars and admins may write any section.
type GradeService struct {
	repo      gradeRepository
	sections  instructorChecker
	audit     auditWriter
	validator *validator.Validate
	logger    *zap.Logger
}

// NewGradeService constructs GradeService.
func NewGradeService(repo gradeRepository, sections instructorChecker, audit auditWriter, validate *validator.Validate, logger *zap.Logger) *GradeService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GradeService{repo: repo, sections: sections, audit: audit, validator: validate, logger: logger}
}

// Upsert writes the grade sheet for a section.
func (s *GradeService) Upsert(ctx context.Context, actor *models.JWTClaims, sectionID string, req UpsertGradesRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid grade sheet payload")
	}

	if _, err := s.sections.FindSection(ctx, sectionID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "section not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load section")
	}

	if actor.Role == models.RoleFaculty {
		teaches, err := s.sections.IsInstructor(ctx, sectionID, actor.UserID)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check instructor")
		}
		if !teaches {
			return appErrors.Clone(appErrors.ErrForbidden, "not an instructor of this section")
		}
	}

	entries := make([]repository.GradeEntry, 0, len(req.Entries))
	for _, e := range req.Entries {
		entries = append(entries, repository.GradeEntry{StudentID: e.StudentID, Value: e.Value})
	}
	if err := s.repo.UpsertSection(ctx, sectionID, entries, req.Released); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save grades")
	}

	if s.audit != nil {
		if err := s.audit.CreateAuditLog(ctx, &models.AuditLog{
			UserID:     &actor.UserID,
			Action:     models.AuditActionGradesUpdate,
			Resource:   "grades",
			ResourceID: &sectionID,
		}); err != nil {
			s.logger.Warn("failed to record grades audit log", zap.Error(err))
		}
	}
	return nil
}

// ListBySection returns the grade sheet for a section. Faculty see
// only their own sections.
func (s *GradeService) ListBySection(ctx context.Context, actor *models.JWTClaims, sectionID string) ([]models.Grade, error) {
	if actor.Role == models.RoleFaculty {
		teaches, err := s.sections.IsInstructor(ctx, sectionID, actor.UserID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check instructor")
		}
		if !teaches {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "not an instructor of this section")
		}
	}
	grades, err := s.repo.ListBySection(ctx, sectionID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list grades")
	}
	return grades, nil
}

// ListOwnReleased returns the caller's released grades only.
func (s *GradeService) ListOwnReleased(ctx context.Context, studentID string) ([]models.GradeLine, error) {
	lines, err := s.repo.ListReleasedByStudent(ctx, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list grades")
	}
	return lines, nil
}
