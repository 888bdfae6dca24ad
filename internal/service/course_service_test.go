package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/university-portal-api/internal/models"
	appErrors "github.com/noah-isme/university-portal-api/pkg/errors"
)

type fakeCourseRepo struct {
	courses      map[string]*models.Course
	byCode       map[string]*models.Course
	sections     map[string]*models.Section
	catalog      []models.CatalogSection
	catalogCalls int
}

func (f *fakeCourseRepo) FindByID(ctx context.Context, id string) (*models.Course, error) {
	if c, ok := f.courses[id]; ok {
		return c, nil
	}
	return nil, sql.ErrNoRows
}

func (f *fakeCourseRepo) FindByCode(ctx context.Context, code string) (*models.Course, error) {
	if c, ok := f.byCode[code]; ok {
		return c, nil
	}
	return nil, sql.ErrNoRows
}

func (f *fakeCourseRepo) List(ctx context.Context, filter models.CourseFilter) ([]models.Course, int, error) {
	return nil, 0, nil
}

func (f *fakeCourseRepo) Create(ctx context.Context, course *models.Course) error {
	course.ID = "crs-new"
	return nil
}

func (f *fakeCourseRepo) Update(ctx context.Context, course *models.Course) error {
	return nil
}

func (f *fakeCourseRepo) FindSection(ctx context.Context, id string) (*models.Section, error) {
	if s, ok := f.sections[id]; ok {
		return s, nil
	}
	return nil, sql.ErrNoRows
}

func (f *fakeCourseRepo) CreateSection(ctx context.Context, section *models.Section) error {
	section.ID = "sec-new"
	return nil
}

func (f *fakeCourseRepo) ListCatalog(ctx context.Context, termID string) ([]models.CatalogSection, error) {
	f.catalogCalls++
	return f.catalog, nil
}

func (f *fakeCourseRepo) AssignInstructor(ctx context.Context, sectionID, instructorID string) error {
	return nil
}

// fakeCatalogCache stores marshalled entries the way the Redis cache
// does, so Get exercises the same decode path.
type fakeCatalogCache struct {
	entries map[string][]byte
}

func (f *fakeCatalogCache) Get(ctx context.Context, key string, dest interface{}) error {
	payload, ok := f.entries[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(payload, dest)
}

func (f *fakeCatalogCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if f.entries == nil {
		f.entries = make(map[string][]byte)
	}
	payload, err := json.Marshal(value)
	if err != nil {
		return err
	}
	f.entries[key] = payload
	return nil
}

type fakeCacheRecorder struct {
	hits   int
	misses int
}

func (f *fakeCacheRecorder) RecordCacheOperation(hit bool) {
	if hit {
		f.hits++
	} else {
		f.misses++
	}
}

func newCourseFixture() (*CourseService, *fakeCourseRepo, *fakeCatalogCache, *fakeCacheRecorder) {
	repo := &fakeCourseRepo{
		courses: map[string]*models.Course{"crs-1": {ID: "crs-1", Code: "CS101", Title: "Intro to Computing"}},
		byCode:  map[string]*models.Course{"CS101": {ID: "crs-1", Code: "CS101"}},
		sections: map[string]*models.Section{
			"sec-1": {ID: "sec-1", CourseID: "crs-1", TermID: "term-1", Capacity: 30},
		},
		catalog: []models.CatalogSection{
			{Section: models.Section{ID: "sec-1", CourseID: "crs-1", TermID: "term-1", Capacity: 30}},
		},
	}
	terms := &fakeTermReader{
		terms:  map[string]*models.Term{"term-1": {ID: "term-1", Name: "Fall 2026"}},
		active: &models.Term{ID: "term-1", Name: "Fall 2026"},
	}
	cache := &fakeCatalogCache{}
	metrics := &fakeCacheRecorder{}
	svc := NewCourseService(repo, terms, cache, metrics, time.Minute, validator.New(), zap.NewNop())
	return svc, repo, cache, metrics
}

func TestCourseServiceCreateRejectsDuplicateCode(t *testing.T) {
	svc, _, _, _ := newCourseFixture()

	_, err := svc.Create(context.Background(), CreateCourseRequest{Code: "CS101", Title: "Duplicate"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)

	course, err := svc.Create(context.Background(), CreateCourseRequest{Code: "CS102", Title: "Data Structures"})
	require.NoError(t, err)
	assert.Equal(t, "crs-new", course.ID)
}

func TestCourseServiceCatalogCaching(t *testing.T) {
	svc, repo, _, metrics := newCourseFixture()
	ctx := context.Background()

	first, err := svc.Catalog(ctx, "term-1")
	require.NoError(t, err)
	require.Len(t, first, 1)
	assert.Equal(t, 1, repo.catalogCalls)
	assert.Equal(t, 1, metrics.misses)

	second, err := svc.Catalog(ctx, "term-1")
	require.NoError(t, err)
	require.Len(t, second, 1)
	assert.Equal(t, 1, repo.catalogCalls)
	assert.Equal(t, 1, metrics.hits)
}

func TestCourseServiceCatalogDefaultsToActiveTerm(t *testing.T) {
	svc, repo, _, _ := newCourseFixture()

	sections, err := svc.Catalog(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, sections, 1)
	assert.Equal(t, 1, repo.catalogCalls)
}

func TestCourseServiceCreateSectionValidatesReferences(t *testing.T) {
	svc, _, _, _ := newCourseFixture()
	ctx := context.Background()

	_, err := svc.CreateSection(ctx, CreateSectionRequest{CourseID: "crs-404", TermID: "term-1", SectionCode: "A", Capacity: 30})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)

	_, err = svc.CreateSection(ctx, CreateSectionRequest{CourseID: "crs-1", TermID: "term-404", SectionCode: "A", Capacity: 30})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)

	section, err := svc.CreateSection(ctx, CreateSectionRequest{CourseID: "crs-1", TermID: "term-1", SectionCode: "A", Capacity: 30})
	require.NoError(t, err)
	assert.Equal(t, "sec-new", section.ID)
}

func TestCourseServiceAssignInstructorUnknownSection(t *testing.T) {
	svc, _, _, _ := newCourseFixture()

	err := svc.AssignInstructor(context.Background(), "sec-404", "fac-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}
