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
	"github.com/noah-isme/university-portal-api/internal/repository"
	appErrors "github.com/noah-isme/university-portal-api/pkg/errors"
)

type fakeGradeRepo struct {
	lastSection  string
	lastEntries  []repository.GradeEntry
	lastReleased bool
}

func (f *fakeGradeRepo) ListBySection(ctx context.Context, sectionID string) ([]models.Grade, error) {
	return []models.Grade{{SectionID: sectionID, StudentID: "stu-1", Value: "B+"}}, nil
}

func (f *fakeGradeRepo) ListReleasedByStudent(ctx context.Context, studentID string) ([]models.GradeLine, error) {
	return []models.GradeLine{{CourseCode: "CS101", Value: "A"}}, nil
}

func (f *fakeGradeRepo) UpsertSection(ctx context.Context, sectionID string, entries []repository.GradeEntry, released bool) error {
	f.lastSection = sectionID
	f.lastEntries = entries
	f.lastReleased = released
	return nil
}

type fakeInstructorChecker struct {
	instructors map[string]string
}

func (f *fakeInstructorChecker) FindSection(ctx context.Context, id string) (*models.Section, error) {
	if id == "sec-404" {
		return nil, sql.ErrNoRows
	}
	return &models.Section{ID: id, TermID: "term-1"}, nil
}

func (f *fakeInstructorChecker) IsInstructor(ctx context.Context, sectionID, userID string) (bool, error) {
	return f.instructors[sectionID] == userID, nil
}

func newGradeFixture() (*GradeService, *fakeGradeRepo) {
	repo := &fakeGradeRepo{}
	sections := &fakeInstructorChecker{instructors: map[string]string{"sec-1": "fac-1"}}
	svc := NewGradeService(repo, sections, &fakeAuditWriter{}, validator.New(), zap.NewNop())
	return svc, repo
}

func TestGradeServiceUpsertAsInstructor(t *testing.T) {
	svc, repo := newGradeFixture()
	actor := &models.JWTClaims{UserID: "fac-1", Role: models.RoleFaculty}

	err := svc.Upsert(context.Background(), actor, "sec-1", UpsertGradesRequest{
		Entries:  []GradeEntryRequest{{StudentID: "stu-1", Value: "A-"}},
		Released: true,
	})
	require.NoError(t, err)
	assert.Equal(t, "sec-1", repo.lastSection)
	require.Len(t, repo.lastEntries, 1)
	assert.True(t, repo.lastReleased)
}

func TestGradeServiceUpsertForbiddenForOtherFaculty(t *testing.T) {
	svc, _ := newGradeFixture()
	actor := &models.JWTClaims{UserID: "fac-2", Role: models.RoleFaculty}

	err := svc.Upsert(context.Background(), actor, "sec-1", UpsertGradesRequest{
		Entries: []GradeEntryRequest{{StudentID: "stu-1", Value: "A"}},
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestGradeServiceUpsertRegistrarBypassesInstructorCheck(t *testing.T) {
	svc, repo := newGradeFixture()
	actor := &models.JWTClaims{UserID: "reg-1", Role: models.RoleRegistrar}

	err := svc.Upsert(context.Background(), actor, "sec-1", UpsertGradesRequest{
		Entries: []GradeEntryRequest{{StudentID: "stu-1", Value: "C"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "sec-1", repo.lastSection)
}

func TestGradeServiceUpsertUnknownSection(t *testing.T) {
	svc, _ := newGradeFixture()
	actor := &models.JWTClaims{UserID: "reg-1", Role: models.RoleRegistrar}

	err := svc.Upsert(context.Background(), actor, "sec-404", UpsertGradesRequest{
		Entries: []GradeEntryRequest{{StudentID: "stu-1", Value: "C"}},
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestGradeServiceUpsertRequiresEntries(t *testing.T) {
	svc, _ := newGradeFixture()
	actor := &models.JWTClaims{UserID: "reg-1", Role: models.RoleRegistrar}

	err := svc.Upsert(context.Background(), actor, "sec-1", UpsertGradesRequest{})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestGradeServiceListBySectionFacultyOwnership(t *testing.T) {
	svc, _ := newGradeFixture()

	_, err := svc.ListBySection(context.Background(), &models.JWTClaims{UserID: "fac-2", Role: models.RoleFaculty}, "sec-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	grades, err := svc.ListBySection(context.Background(), &models.JWTClaims{UserID: "fac-1", Role: models.RoleFaculty}, "sec-1")
	require.NoError(t, err)
	require.Len(t, grades, 1)
}
