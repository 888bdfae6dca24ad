package service

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/university-portal-api/internal/models"
	appErrors "github.com/noah-isme/university-portal-api/pkg/errors"
)

// fakeSeatRepo mirrors the allocation rules of the real repository in
// memory: one status row per (section, student), capacity counted over
// ENROLLED rows excluding the requester. The mutex stands in for the
// section row lock, serializing allocation decisions.
type fakeSeatRepo struct {
	mu       sync.Mutex
	capacity map[string]int
	seats    map[string]map[string]models.EnrollmentStatus
	err      error
}

func newFakeSeatRepo(capacity map[string]int) *fakeSeatRepo {
	return &fakeSeatRepo{capacity: capacity, seats: make(map[string]map[string]models.EnrollmentStatus)}
}

func (f *fakeSeatRepo) RequestSeat(ctx context.Context, sectionID, studentID string) (models.RegistrationOutcome, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	cap, ok := f.capacity[sectionID]
	if !ok {
		return "", sql.ErrNoRows
	}
	if f.seats[sectionID] == nil {
		f.seats[sectionID] = make(map[string]models.EnrollmentStatus)
	}
	if f.seats[sectionID][studentID] == models.EnrollmentStatusEnrolled {
		return models.OutcomeAlreadyEnrolled, nil
	}
	enrolled := 0
	for student, status := range f.seats[sectionID] {
		if student != studentID && status == models.EnrollmentStatusEnrolled {
			enrolled++
		}
	}
	if enrolled >= cap {
		f.seats[sectionID][studentID] = models.EnrollmentStatusWaitlisted
		return models.OutcomeWaitlisted, nil
	}
	f.seats[sectionID][studentID] = models.EnrollmentStatusEnrolled
	return models.OutcomeEnrolled, nil
}

func (f *fakeSeatRepo) DropSeat(ctx context.Context, sectionID, studentID string) (models.RegistrationOutcome, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	if f.seats[sectionID] == nil || f.seats[sectionID][studentID] != models.EnrollmentStatusEnrolled {
		return models.OutcomeNotEnrolled, nil
	}
	f.seats[sectionID][studentID] = models.EnrollmentStatusDropped
	return models.OutcomeDropped, nil
}

func (f *fakeSeatRepo) ListByStudent(ctx context.Context, studentID, termID string) ([]models.EnrollmentDetail, error) {
	return nil, nil
}

func (f *fakeSeatRepo) SeatCount(ctx context.Context, sectionID string) (*models.SeatCount, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cap, ok := f.capacity[sectionID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	count := &models.SeatCount{SectionID: sectionID, Capacity: cap}
	for _, status := range f.seats[sectionID] {
		switch status {
		case models.EnrollmentStatusEnrolled:
			count.Enrolled++
		case models.EnrollmentStatusWaitlisted:
			count.Waitlisted++
		}
	}
	return count, nil
}

type fakeSectionReader struct {
	sections map[string]*models.Section
}

func (f *fakeSectionReader) FindSection(ctx context.Context, id string) (*models.Section, error) {
	if s, ok := f.sections[id]; ok {
		return s, nil
	}
	return nil, sql.ErrNoRows
}

type fakeTermReader struct {
	terms  map[string]*models.Term
	active *models.Term
}

func (f *fakeTermReader) FindByID(ctx context.Context, id string) (*models.Term, error) {
	if t, ok := f.terms[id]; ok {
		return t, nil
	}
	return nil, sql.ErrNoRows
}

func (f *fakeTermReader) FindActive(ctx context.Context) (*models.Term, error) {
	if f.active == nil {
		return nil, sql.ErrNoRows
	}
	return f.active, nil
}

type fakeAuditWriter struct {
	mu      sync.Mutex
	actions []string
}

func (f *fakeAuditWriter) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.actions = append(f.actions, log.Action)
	return nil
}

type fakeInvalidator struct {
	mu       sync.Mutex
	patterns []string
}

func (f *fakeInvalidator) DeleteByPattern(ctx context.Context, pattern string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.patterns = append(f.patterns, pattern)
	return nil
}

func newRegistrationFixture(capacity int) (*RegistrationService, *fakeSeatRepo, *fakeAuditWriter, *fakeInvalidator) {
	repo := newFakeSeatRepo(map[string]int{"sec-1": capacity})
	sections := &fakeSectionReader{sections: map[string]*models.Section{
		"sec-1": {ID: "sec-1", CourseID: "crs-1", TermID: "term-1", Capacity: capacity},
	}}
	terms := &fakeTermReader{terms: map[string]*models.Term{"term-1": {ID: "term-1", Name: "Fall 2026"}}}
	audit := &fakeAuditWriter{}
	cache := &fakeInvalidator{}
	svc := NewRegistrationService(repo, sections, terms, audit, cache, nil, validator.New(), zap.NewNop())
	return svc, repo, audit, cache
}

func TestRegistrationServiceSeatContention(t *testing.T) {
	svc, _, audit, cache := newRegistrationFixture(1)
	ctx := context.Background()

	first, err := svc.RequestSeat(ctx, "stu-a", SeatRequest{SectionID: "sec-1"})
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeEnrolled, first.Outcome)

	second, err := svc.RequestSeat(ctx, "stu-b", SeatRequest{SectionID: "sec-1"})
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeWaitlisted, second.Outcome)

	count, err := svc.SeatCount(ctx, "sec-1")
	require.NoError(t, err)
	assert.Equal(t, 1, count.Enrolled)
	assert.Equal(t, 1, count.Waitlisted)

	assert.Equal(t, []string{models.AuditActionRegistrationAdd, models.AuditActionRegistrationWait}, audit.actions)
	assert.Len(t, cache.patterns, 2)
	assert.Equal(t, "catalog:term-1:*", cache.patterns[0])
}

func TestRegistrationServiceConcurrentLastSeat(t *testing.T) {
	const students = 8
	svc, _, _, _ := newRegistrationFixture(1)
	ctx := context.Background()

	outcomes := make([]models.RegistrationOutcome, students)
	errs := make([]error, students)
	var wg sync.WaitGroup
	for i := 0; i < students; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			result, err := svc.RequestSeat(ctx, fmt.Sprintf("stu-%d", idx), SeatRequest{SectionID: "sec-1"})
			if err != nil {
				errs[idx] = err
				return
			}
			outcomes[idx] = result.Outcome
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}

	enrolled, waitlisted := 0, 0
	for _, outcome := range outcomes {
		switch outcome {
		case models.OutcomeEnrolled:
			enrolled++
		case models.OutcomeWaitlisted:
			waitlisted++
		}
	}
	assert.Equal(t, 1, enrolled)
	assert.Equal(t, students-1, waitlisted)

	count, err := svc.SeatCount(ctx, "sec-1")
	require.NoError(t, err)
	assert.Equal(t, 1, count.Enrolled)
	assert.Equal(t, students-1, count.Waitlisted)
}

func TestRegistrationServiceDropDoesNotPromote(t *testing.T) {
	svc, repo, _, _ := newRegistrationFixture(1)
	ctx := context.Background()

	_, err := svc.RequestSeat(ctx, "stu-a", SeatRequest{SectionID: "sec-1"})
	require.NoError(t, err)
	_, err = svc.RequestSeat(ctx, "stu-b", SeatRequest{SectionID: "sec-1"})
	require.NoError(t, err)

	dropped, err := svc.DropSeat(ctx, "stu-a", SeatRequest{SectionID: "sec-1"})
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeDropped, dropped.Outcome)

	// Nobody promoted the waitlisted student; the freed seat sits empty
	// until someone asks for it.
	assert.Equal(t, models.EnrollmentStatusWaitlisted, repo.seats["sec-1"]["stu-b"])

	readd, err := svc.RequestSeat(ctx, "stu-b", SeatRequest{SectionID: "sec-1"})
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeEnrolled, readd.Outcome)
}

func TestRegistrationServiceRepeatedRequestIsIdempotent(t *testing.T) {
	svc, _, audit, _ := newRegistrationFixture(2)
	ctx := context.Background()

	_, err := svc.RequestSeat(ctx, "stu-a", SeatRequest{SectionID: "sec-1"})
	require.NoError(t, err)

	again, err := svc.RequestSeat(ctx, "stu-a", SeatRequest{SectionID: "sec-1"})
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeAlreadyEnrolled, again.Outcome)
	assert.Len(t, audit.actions, 1)
}

func TestRegistrationServiceDropWithoutSeat(t *testing.T) {
	svc, _, audit, cache := newRegistrationFixture(1)

	result, err := svc.DropSeat(context.Background(), "stu-a", SeatRequest{SectionID: "sec-1"})
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeNotEnrolled, result.Outcome)
	assert.Empty(t, audit.actions)
	assert.Empty(t, cache.patterns)
}

func TestRegistrationServiceClosedWindow(t *testing.T) {
	svc, _, _, _ := newRegistrationFixture(1)
	past := time.Now().UTC().Add(-time.Hour)
	svc.terms.(*fakeTermReader).terms["term-1"].RegistrationEnd = &past

	_, err := svc.RequestSeat(context.Background(), "stu-a", SeatRequest{SectionID: "sec-1"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrRegistrationClosed.Code, appErrors.FromError(err).Code)
}

func TestRegistrationServiceLockTimeout(t *testing.T) {
	svc, repo, _, _ := newRegistrationFixture(1)
	repo.err = &pq.Error{Code: "55P03"}

	_, err := svc.RequestSeat(context.Background(), "stu-a", SeatRequest{SectionID: "sec-1"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrTransient.Code, appErrors.FromError(err).Code)
}

func TestRegistrationServiceUnknownSection(t *testing.T) {
	svc, _, _, _ := newRegistrationFixture(1)

	_, err := svc.RequestSeat(context.Background(), "stu-a", SeatRequest{SectionID: "sec-404"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}
