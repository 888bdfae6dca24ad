package service

import (
	"context"
	"database/sql"
	"errors"

	"go.uber.org/zap"

	"github.com/noah-isme/university-portal-api/internal/models"
	appErrors "github.com/noah-isme/university-portal-api/pkg/errors"
)

type activeTermReader interface {
	FindActive(ctx context.Context) (*models.Term, error)
}

type announcementLister interface {
	List(ctx context.Context, role models.UserRole, staff bool, limit int) ([]models.Announcement, error)
}

type enrollmentLister interface {
	ListByStudent(ctx context.Context, studentID, termID string) ([]models.EnrollmentDetail, error)
}

type teachingLister interface {
	ListSectionsByInstructor(ctx context.Context, instructorID, termID string) ([]models.CatalogSection, error)
}

type ticketLister interface {
	ListByCreator(ctx context.Context, creatorID string) ([]models.SupportTicket, error)
}

// DashboardOverview is the landing page payload. Role-irrelevant
// sections stay empty rather than null.
type DashboardOverview struct {
	ActiveTerm    *models.Term              `json:"active_term"`
	Announcements []models.Announcement     `json:"announcements"`
	MySections    []models.EnrollmentDetail `json:"my_sections"`
	MyTeaching    []models.CatalogSection   `json:"my_teaching"`
	OpenTickets   []models.SupportTicket    `json:"open_tickets"`
}

// DashboardServiceParams groups constructor dependencies.
type DashboardServiceParams struct {
	Terms         activeTermReader
	Announcements announcementLister
	Enrollments   enrollmentLister
	Teaching      teachingLister
	Tickets       ticketLister
	Logger        *zap.Logger
}

// DashboardService composes the per-user landing page from the other
// subsystems. Every section is scoped to the caller and the active
// term.
type DashboardService struct {
	terms         activeTermReader
	announcements announcementLister
	enrollments   enrollmentLister
	teaching      teachingLister
	tickets       ticketLister
	logger        *zap.Logger
}

const dashboardAnnouncementLimit = 10

// NewDashboardService constructs DashboardService.
func NewDashboardService(params DashboardServiceParams) *DashboardService {
	logger := params.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DashboardService{
		terms:         params.Terms,
		announcements: params.Announcements,
		enrollments:   params.Enrollments,
		teaching:      params.Teaching,
		tickets:       params.Tickets,
		logger:        logger,
	}
}

// Overview builds the caller's dashboard. Students and alumni get their
// enrollments, faculty their teaching load; everyone gets active
// announcements and their own open tickets. With no active term the
// term-scoped sections stay empty.
func (s *DashboardService) Overview(ctx context.Context, userID string, role models.UserRole, staff bool) (*DashboardOverview, error) {
	overview := &DashboardOverview{
		Announcements: []models.Announcement{},
		MySections:    []models.EnrollmentDetail{},
		MyTeaching:    []models.CatalogSection{},
		OpenTickets:   []models.SupportTicket{},
	}

	term, err := s.terms.FindActive(ctx)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load active term")
	}
	overview.ActiveTerm = term

	announcements, err := s.announcements.List(ctx, role, staff, dashboardAnnouncementLimit)
	if err != nil {
		s.logger.Warn("dashboard announcements fetch failed", zap.Error(err))
	} else if announcements != nil {
		overview.Announcements = announcements
	}

	if term != nil {
		switch role {
		case models.RoleStudent, models.RoleAlumni:
			enrollments, err := s.enrollments.ListByStudent(ctx, userID, term.ID)
			if err != nil {
				return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollments")
			}
			for _, enrollment := range enrollments {
				if enrollment.Status == models.EnrollmentStatusEnrolled {
					overview.MySections = append(overview.MySections, enrollment)
				}
			}
		case models.RoleFaculty:
			teaching, err := s.teaching.ListSectionsByInstructor(ctx, userID, term.ID)
			if err != nil {
				return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load teaching sections")
			}
			if teaching != nil {
				overview.MyTeaching = teaching
			}
		}
	}

	tickets, err := s.tickets.ListByCreator(ctx, userID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load tickets")
	}
	for _, ticket := range tickets {
		if ticket.Status == models.TicketStatusOpen || ticket.Status == models.TicketStatusInProgress {
			overview.OpenTickets = append(overview.OpenTickets, ticket)
		}
	}

	return overview, nil
}
