package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/university-portal-api/internal/models"
)

func TestUserRepositoryRecordLogin(t *testing.T) {
	db, mock, cleanup := newRegistrationRepoMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	ts := time.Now().UTC()
	userID := "usr-1"

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE users SET last_login = $2, updated_at = $2 WHERE id = $1")).
		WithArgs(userID, ts).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO audit_logs").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	log := &models.AuditLog{UserID: &userID, Action: models.AuditActionLogin, Resource: "auth", ResourceID: &userID}
	require.NoError(t, repo.RecordLogin(context.Background(), userID, ts, log))
	assert.NotEmpty(t, log.ID)
	assert.Equal(t, ts, log.CreatedAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepositoryRecordLoginRollsBackOnAuditFailure(t *testing.T) {
	db, mock, cleanup := newRegistrationRepoMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	ts := time.Now().UTC()
	userID := "usr-1"

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE users SET last_login = $2, updated_at = $2 WHERE id = $1")).
		WithArgs(userID, ts).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO audit_logs").
		WillReturnError(errors.New("constraint violation"))
	mock.ExpectRollback()

	log := &models.AuditLog{UserID: &userID, Action: models.AuditActionLogin, Resource: "auth", ResourceID: &userID}
	require.Error(t, repo.RecordLogin(context.Background(), userID, ts, log))
	require.NoError(t, mock.ExpectationsWereMet())
}
