package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/university-portal-api/internal/models"
	appErrors "github.com/noah-isme/university-portal-api/pkg/errors"
)

type fakeAnnouncementRepo struct {
	announcements map[string]*models.Announcement
	lastFilter    models.AnnouncementFilter
}

func (f *fakeAnnouncementRepo) List(ctx context.Context, filter models.AnnouncementFilter) ([]models.Announcement, error) {
	f.lastFilter = filter
	var out []models.Announcement
	for _, a := range f.announcements {
		out = append(out, *a)
	}
	return out, nil
}

func (f *fakeAnnouncementRepo) FindByID(ctx context.Context, id string) (*models.Announcement, error) {
	if a, ok := f.announcements[id]; ok {
		copied := *a
		return &copied, nil
	}
	return nil, sql.ErrNoRows
}

func (f *fakeAnnouncementRepo) Create(ctx context.Context, announcement *models.Announcement) error {
	announcement.ID = "ann-new"
	if announcement.PublishedAt.IsZero() {
		announcement.PublishedAt = time.Now().UTC()
	}
	if announcement.TargetRoles == nil {
		announcement.TargetRoles = []string{}
	}
	f.announcements[announcement.ID] = announcement
	return nil
}

func (f *fakeAnnouncementRepo) Update(ctx context.Context, announcement *models.Announcement) error {
	if _, ok := f.announcements[announcement.ID]; !ok {
		return sql.ErrNoRows
	}
	f.announcements[announcement.ID] = announcement
	return nil
}

func (f *fakeAnnouncementRepo) Delete(ctx context.Context, id string) error {
	delete(f.announcements, id)
	return nil
}

func newAnnouncementFixture() (*AnnouncementService, *fakeAnnouncementRepo, *fakeAuditWriter) {
	repo := &fakeAnnouncementRepo{announcements: map[string]*models.Announcement{
		"ann-1": {ID: "ann-1", Title: "Registration opens Monday", Body: "Fall registration opens at 08:00.", TargetRoles: []string{}},
	}}
	audit := &fakeAuditWriter{}
	svc := NewAnnouncementService(repo, audit, validator.New(), zap.NewNop())
	return svc, repo, audit
}

func TestAnnouncementServiceCreate(t *testing.T) {
	svc, repo, audit := newAnnouncementFixture()

	announcement, err := svc.Create(context.Background(), "reg-1", CreateAnnouncementRequest{
		Title:       "Fee deadline extended",
		Body:        "Invoices for the fall term are now due October 15.",
		TargetRoles: []string{"STUDENT", "ALUMNI"},
		IsPinned:    true,
	})
	require.NoError(t, err)
	assert.Equal(t, "reg-1", announcement.CreatedBy)
	assert.True(t, announcement.IsPinned)
	assert.Equal(t, []string{"STUDENT", "ALUMNI"}, []string(repo.announcements["ann-new"].TargetRoles))
	assert.Contains(t, audit.actions, models.AuditActionAnnouncementCreate)
}

func TestAnnouncementServiceCreateRequiresTitle(t *testing.T) {
	svc, _, _ := newAnnouncementFixture()

	_, err := svc.Create(context.Background(), "reg-1", CreateAnnouncementRequest{Body: "no title"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestAnnouncementServiceCreateRejectsUnknownRole(t *testing.T) {
	svc, _, _ := newAnnouncementFixture()

	_, err := svc.Create(context.Background(), "reg-1", CreateAnnouncementRequest{
		Title:       "Misdirected",
		Body:        "Targets a role that does not exist.",
		TargetRoles: []string{"JANITOR"},
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestAnnouncementServiceCreateRejectsExpiryBeforePublication(t *testing.T) {
	svc, _, _ := newAnnouncementFixture()

	publish := time.Now().UTC().Add(48 * time.Hour)
	expire := publish.Add(-time.Hour)
	_, err := svc.Create(context.Background(), "reg-1", CreateAnnouncementRequest{
		Title:       "Backwards window",
		Body:        "Expires before it is published.",
		PublishedAt: &publish,
		ExpiresAt:   &expire,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestAnnouncementServiceListScopesToCaller(t *testing.T) {
	svc, repo, _ := newAnnouncementFixture()

	_, err := svc.List(context.Background(), models.RoleStudent, false, 10)
	require.NoError(t, err)
	assert.Equal(t, models.RoleStudent, repo.lastFilter.Role)
	assert.False(t, repo.lastFilter.Staff)
	assert.Equal(t, 10, repo.lastFilter.Limit)

	_, err = svc.List(context.Background(), models.RoleRegistrar, true, 0)
	require.NoError(t, err)
	assert.True(t, repo.lastFilter.Staff)
}

func TestAnnouncementServiceUpdate(t *testing.T) {
	svc, repo, audit := newAnnouncementFixture()

	updated, err := svc.Update(context.Background(), "reg-1", "ann-1", UpdateAnnouncementRequest{
		Title: "Registration opens Tuesday",
		Body:  "Opening moved by one day.",
	})
	require.NoError(t, err)
	assert.Equal(t, "Registration opens Tuesday", updated.Title)
	assert.Equal(t, "Registration opens Tuesday", repo.announcements["ann-1"].Title)
	assert.Contains(t, audit.actions, models.AuditActionAnnouncementUpdate)
}

func TestAnnouncementServiceUpdateUnknownID(t *testing.T) {
	svc, _, _ := newAnnouncementFixture()

	_, err := svc.Update(context.Background(), "reg-1", "ann-missing", UpdateAnnouncementRequest{
		Title: "Ghost",
		Body:  "Never persisted.",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestAnnouncementServiceDelete(t *testing.T) {
	svc, repo, audit := newAnnouncementFixture()

	require.NoError(t, svc.Delete(context.Background(), "reg-1", "ann-1"))
	assert.Empty(t, repo.announcements)
	assert.Contains(t, audit.actions, models.AuditActionAnnouncementDelete)
}

func TestAnnouncementActiveWindow(t *testing.T) {
	now := time.Now().UTC()
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	live := models.Announcement{PublishedAt: past, ExpiresAt: &future}
	assert.True(t, live.Active(now))

	unpublished := models.Announcement{PublishedAt: future}
	assert.False(t, unpublished.Active(now))

	expired := models.Announcement{PublishedAt: past.Add(-time.Hour), ExpiresAt: &past}
	assert.False(t, expired.Active(now))

	openEnded := models.Announcement{PublishedAt: past}
	assert.True(t, openEnded.Active(now))
}
