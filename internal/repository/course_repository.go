package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/university-portal-api/internal/models"
)

// CourseRepository handles persistence of courses and their sections.
type CourseRepository struct {
	db *sqlx.DB
}

// NewCourseRepository constructs the repository.
func NewCourseRepository(db *sqlx.DB) *CourseRepository {
	return &CourseRepository{db: db}
}

const courseColumns = `id, code, title, department, level, credits, description, created_at, updated_at`

// FindByID returns a course by its ID.
func (r *CourseRepository) FindByID(ctx context.Context, id string) (*models.Course, error) {
	query := fmt.Sprintf(`SELECT %s FROM courses WHERE id = $1`, courseColumns)
	var course models.Course
	if err := r.db.GetContext(ctx, &course, query, id); err != nil {
		return nil, err
	}
	return &course, nil
}

// FindByCode returns a course by its unique code.
func (r *CourseRepository) FindByCode(ctx context.Context, code string) (*models.Course, error) {
	query := fmt.Sprintf(`SELECT %s FROM courses WHERE code = $1`, courseColumns)
	var course models.Course
	if err := r.db.GetContext(ctx, &course, query, strings.ToUpper(code)); err != nil {
		return nil, err
	}
	return &course, nil
}

// List returns courses filtered by the provided criteria.
func (r *CourseRepository) List(ctx context.Context, filter models.CourseFilter) ([]models.Course, int, error) {
	var conditions []string
	var args []interface{}
	if filter.Department != "" {
		args = append(args, filter.Department)
		conditions = append(conditions, fmt.Sprintf("department = $%d", len(args)))
	}
	if filter.Search != "" {
		args = append(args, "%"+filter.Search+"%")
		conditions = append(conditions, fmt.Sprintf("(code ILIKE $%d OR title ILIKE $%d)", len(args), len(args)))
	}
	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}

	query := fmt.Sprintf(`SELECT %s FROM courses%s ORDER BY code LIMIT %d OFFSET %d`, courseColumns, clause, size, (page-1)*size)
	var courses []models.Course
	if err := r.db.SelectContext(ctx, &courses, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list courses: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM courses"+clause, args...); err != nil {
		return nil, 0, fmt.Errorf("count courses: %w", err)
	}
	return courses, total, nil
}

// Create persists a new course.
func (r *CourseRepository) Create(ctx context.Context, course *models.Course) error {
	if course.ID == "" {
		course.ID = uuid.NewString()
	}
	course.Code = strings.ToUpper(course.Code)
	now := time.Now().UTC()
	course.CreatedAt = now
	course.UpdatedAt = now
	const query = `INSERT INTO courses (id, code, title, department, level, credits, description, created_at, updated_at)
        VALUES (:id, :code, :title, :department, :level, :credits, :description, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, course); err != nil {
		return fmt.Errorf("create course: %w", err)
	}
	return nil
}

// Update modifies an existing course.
func (r *CourseRepository) Update(ctx context.Context, course *models.Course) error {
	course.UpdatedAt = time.Now().UTC()
	const query = `UPDATE courses SET title = :title, department = :department, level = :level,
        credits = :credits, description = :description, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, course); err != nil {
		return fmt.Errorf("update course: %w", err)
	}
	return nil
}

// FindSection returns a section by its ID.
func (r *CourseRepository) FindSection(ctx context.Context, id string) (*models.Section, error) {
	const query = `SELECT id, course_id, term_id, section_code, capacity, meeting_days, location, created_at
        FROM sections WHERE id = $1`
	var section models.Section
	if err := r.db.GetContext(ctx, &section, query, id); err != nil {
		return nil, err
	}
	return &section, nil
}

// CreateSection persists a new section.
func (r *CourseRepository) CreateSection(ctx context.Context, section *models.Section) error {
	if section.ID == "" {
		section.ID = uuid.NewString()
	}
	section.CreatedAt = time.Now().UTC()
	const query = `INSERT INTO sections (id, course_id, term_id, section_code, capacity, meeting_days, location, created_at)
        VALUES (:id, :course_id, :term_id, :section_code, :capacity, :meeting_days, :location, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, section); err != nil {
		return fmt.Errorf("create section: %w", err)
	}
	return nil
}

// ListCatalog returns every section of a term with course context and
// the derived enrolled count.
func (r *CourseRepository) ListCatalog(ctx context.Context, termID string) ([]models.CatalogSection, error) {
	const query = `SELECT s.id, s.course_id, s.term_id, s.section_code, s.capacity, s.meeting_days, s.location, s.created_at,
        c.code AS course_code, c.title AS course_title, t.name AS term_name,
        (SELECT COUNT(*) FROM enrollments e WHERE e.section_id = s.id AND e.status = 'ENROLLED') AS enrolled_count
        FROM sections s
        JOIN courses c ON c.id = s.course_id
        JOIN terms t ON t.id = s.term_id
        WHERE s.term_id = $1
        ORDER BY c.code, s.section_code`
	var sections []models.CatalogSection
	if err := r.db.SelectContext(ctx, &sections, query, termID); err != nil {
		return nil, fmt.Errorf("list catalog: %w", err)
	}
	return sections, nil
}

// ListSectionsByInstructor returns the sections a user teaches in a
// term, with course context and the derived enrolled count.
func (r *CourseRepository) ListSectionsByInstructor(ctx context.Context, instructorID, termID string) ([]models.CatalogSection, error) {
	const query = `SELECT s.id, s.course_id, s.term_id, s.section_code, s.capacity, s.meeting_days, s.location, s.created_at,
        c.code AS course_code, c.title AS course_title, t.name AS term_name,
        (SELECT COUNT(*) FROM enrollments e WHERE e.section_id = s.id AND e.status = 'ENROLLED') AS enrolled_count
        FROM sections s
        JOIN courses c ON c.id = s.course_id
        JOIN terms t ON t.id = s.term_id
        JOIN section_instructors si ON si.section_id = s.id
        WHERE si.instructor_id = $1 AND s.term_id = $2
        ORDER BY c.code, s.section_code`
	var sections []models.CatalogSection
	if err := r.db.SelectContext(ctx, &sections, query, instructorID, termID); err != nil {
		return nil, fmt.Errorf("list teaching sections: %w", err)
	}
	return sections, nil
}

// IsInstructor reports whether the user teaches the section.
func (r *CourseRepository) IsInstructor(ctx context.Context, sectionID, userID string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM section_instructors WHERE section_id = $1 AND instructor_id = $2)`
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, sectionID, userID); err != nil {
		return false, fmt.Errorf("check instructor: %w", err)
	}
	return exists, nil
}

// AssignInstructor links an instructor to a section.
func (r *CourseRepository) AssignInstructor(ctx context.Context, sectionID, instructorID string) error {
	const query = `INSERT INTO section_instructors (id, section_id, instructor_id, created_at)
        VALUES ($1, $2, $3, $4) ON CONFLICT (section_id, instructor_id) DO NOTHING`
	if _, err := r.db.ExecContext(ctx, query, uuid.NewString(), sectionID, instructorID, time.Now().UTC()); err != nil {
		return fmt.Errorf("assign instructor: %w", err)
	}
	return nil
}
