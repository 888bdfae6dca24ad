package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/university-portal-api/internal/models"
	appErrors "github.com/noah-isme/university-portal-api/pkg/errors"
)

type announcementRepository interface {
	List(ctx context.Context, filter models.AnnouncementFilter) ([]models.Announcement, error)
	FindByID(ctx context.Context, id string) (*models.Announcement, error)
	Create(ctx context.Context, announcement *models.Announcement) error
	Update(ctx context.Context, announcement *models.Announcement) error
	Delete(ctx context.Context, id string) error
}

// CreateAnnouncementRequest publishes a new notice. An empty TargetRoles
// makes it visible to everyone.
type CreateAnnouncementRequest struct {
	Title       string     `json:"title" validate:"required"`
	Body        string     `json:"body" validate:"required"`
	TargetRoles []string   `json:"target_roles"`
	IsPinned    bool       `json:"is_pinned"`
	PublishedAt *time.Time `json:"published_at"`
	ExpiresAt   *time.Time `json:"expires_at"`
}

// UpdateAnnouncementRequest rewrites an existing notice.
type UpdateAnnouncementRequest struct {
	Title       string     `json:"title" validate:"required"`
	Body        string     `json:"body" validate:"required"`
	TargetRoles []string   `json:"target_roles"`
	IsPinned    bool       `json:"is_pinned"`
	PublishedAt *time.Time `json:"published_at"`
	ExpiresAt   *time.Time `json:"expires_at"`
}

// AnnouncementService manages portal announcements. Listing applies the
// caller's role targeting and the publish/expire window; staff callers
// see every active notice.
type AnnouncementService struct {
	repo      announcementRepository
	audit     auditWriter
	validator *validator.Validate
	logger    *zap.Logger
}

// NewAnnouncementService constructs AnnouncementService.
func NewAnnouncementService(repo announcementRepository, audit auditWriter, validate *validator.Validate, logger *zap.Logger) *AnnouncementService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AnnouncementService{repo: repo, audit: audit, validator: validate, logger: logger}
}

// List returns active announcements visible to the caller.
func (s *AnnouncementService) List(ctx context.Context, role models.UserRole, staff bool, limit int) ([]models.Announcement, error) {
	announcements, err := s.repo.List(ctx, models.AnnouncementFilter{Role: role, Staff: staff, Limit: limit})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list announcements")
	}
	return announcements, nil
}

// Get returns a single announcement regardless of its window. Staff only.
func (s *AnnouncementService) Get(ctx context.Context, id string) (*models.Announcement, error) {
	return s.findAnnouncement(ctx, id)
}

// Create publishes a new announcement.
func (s *AnnouncementService) Create(ctx context.Context, authorID string, req CreateAnnouncementRequest) (*models.Announcement, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid announcement payload")
	}
	if err := validateAnnouncementWindow(req.TargetRoles, req.PublishedAt, req.ExpiresAt); err != nil {
		return nil, err
	}

	announcement := &models.Announcement{
		Title:       req.Title,
		Body:        req.Body,
		TargetRoles: req.TargetRoles,
		IsPinned:    req.IsPinned,
		CreatedBy:   authorID,
		ExpiresAt:   req.ExpiresAt,
	}
	if req.PublishedAt != nil {
		announcement.PublishedAt = req.PublishedAt.UTC()
	}
	if err := s.repo.Create(ctx, announcement); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create announcement")
	}

	s.recordAudit(ctx, authorID, models.AuditActionAnnouncementCreate, announcement.ID)
	return announcement, nil
}

// Update rewrites an existing announcement.
func (s *AnnouncementService) Update(ctx context.Context, callerID, id string, req UpdateAnnouncementRequest) (*models.Announcement, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid announcement payload")
	}
	if err := validateAnnouncementWindow(req.TargetRoles, req.PublishedAt, req.ExpiresAt); err != nil {
		return nil, err
	}

	announcement, err := s.findAnnouncement(ctx, id)
	if err != nil {
		return nil, err
	}
	announcement.Title = req.Title
	announcement.Body = req.Body
	announcement.TargetRoles = req.TargetRoles
	if announcement.TargetRoles == nil {
		announcement.TargetRoles = []string{}
	}
	announcement.IsPinned = req.IsPinned
	if req.PublishedAt != nil {
		announcement.PublishedAt = req.PublishedAt.UTC()
	}
	announcement.ExpiresAt = req.ExpiresAt
	if err := s.repo.Update(ctx, announcement); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update announcement")
	}

	s.recordAudit(ctx, callerID, models.AuditActionAnnouncementUpdate, announcement.ID)
	return announcement, nil
}

// Delete removes an announcement.
func (s *AnnouncementService) Delete(ctx context.Context, callerID, id string) error {
	if _, err := s.findAnnouncement(ctx, id); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete announcement")
	}
	s.recordAudit(ctx, callerID, models.AuditActionAnnouncementDelete, id)
	return nil
}

func (s *AnnouncementService) findAnnouncement(ctx context.Context, id string) (*models.Announcement, error) {
	announcement, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "announcement not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load announcement")
	}
	return announcement, nil
}

func (s *AnnouncementService) recordAudit(ctx context.Context, userID, action, announcementID string) {
	if s.audit == nil {
		return
	}
	if err := s.audit.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     &userID,
		Action:     action,
		Resource:   "announcement",
		ResourceID: &announcementID,
	}); err != nil {
		s.logger.Warn("failed to record announcement audit log", zap.Error(err))
	}
}

func validateAnnouncementWindow(targetRoles []string, publishedAt, expiresAt *time.Time) error {
	for _, role := range targetRoles {
		if !models.ValidRole(models.UserRole(role)) {
			return appErrors.Clone(appErrors.ErrValidation, "unknown target role: "+role)
		}
	}
	if expiresAt != nil {
		published := time.Now().UTC()
		if publishedAt != nil {
			published = publishedAt.UTC()
		}
		if !expiresAt.After(published) {
			return appErrors.Clone(appErrors.ErrValidation, "expiry must be after publication")
		}
	}
	return nil
}
