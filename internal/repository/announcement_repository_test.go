package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/university-portal-api/internal/models"
)

func announcementRows(ids ...string) *sqlmock.Rows {
	rows := sqlmock.NewRows([]string{"id", "title", "body", "target_roles", "is_pinned", "published_at", "expires_at", "created_by", "created_at", "updated_at"})
	now := time.Now().UTC()
	for _, id := range ids {
		rows.AddRow(id, "Title "+id, "Body", "{}", false, now, nil, "reg-1", now, now)
	}
	return rows
}

func TestAnnouncementRepositoryListFiltersByRole(t *testing.T) {
	db, mock, cleanup := newRegistrationRepoMock(t)
	defer cleanup()
	repo := NewAnnouncementRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("published_at <= NOW() AND (expires_at IS NULL OR expires_at > NOW()) AND (target_roles = '{}' OR $1 = ANY(target_roles))")).
		WithArgs("STUDENT").
		WillReturnRows(announcementRows("ann-1", "ann-2"))

	announcements, err := repo.List(context.Background(), models.AnnouncementFilter{Role: models.RoleStudent})
	require.NoError(t, err)
	require.Len(t, announcements, 2)
	assert.Equal(t, "ann-1", announcements[0].ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAnnouncementRepositoryListStaffSkipsRoleTargeting(t *testing.T) {
	db, mock, cleanup := newRegistrationRepoMock(t)
	defer cleanup()
	repo := NewAnnouncementRepository(db)

	// Staff still get the publish/expire window, just no role predicate.
	mock.ExpectQuery(regexp.QuoteMeta("published_at <= NOW() AND (expires_at IS NULL OR expires_at > NOW()) ORDER BY is_pinned DESC, published_at DESC")).
		WillReturnRows(announcementRows("ann-1"))

	announcements, err := repo.List(context.Background(), models.AnnouncementFilter{Role: models.RoleRegistrar, Staff: true})
	require.NoError(t, err)
	require.Len(t, announcements, 1)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAnnouncementRepositoryCreateDefaultsPublication(t *testing.T) {
	db, mock, cleanup := newRegistrationRepoMock(t)
	defer cleanup()
	repo := NewAnnouncementRepository(db)

	mock.ExpectExec("INSERT INTO announcements").WillReturnResult(sqlmock.NewResult(0, 1))

	announcement := &models.Announcement{Title: "Library hours", Body: "Extended during finals week.", CreatedBy: "reg-1"}
	require.NoError(t, repo.Create(context.Background(), announcement))
	assert.NotEmpty(t, announcement.ID)
	assert.False(t, announcement.PublishedAt.IsZero())
	assert.NotNil(t, announcement.TargetRoles)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAnnouncementRepositoryDelete(t *testing.T) {
	db, mock, cleanup := newRegistrationRepoMock(t)
	defer cleanup()
	repo := NewAnnouncementRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM announcements WHERE id = $1")).
		WithArgs("ann-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Delete(context.Background(), "ann-1"))
	require.NoError(t, mock.ExpectationsWereMet())
}
