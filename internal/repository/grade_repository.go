package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/university-portal-api/internal/models"
)

// GradeRepository handles persistence of grades.
type GradeRepository struct {
	db *sqlx.DB
}

// NewGradeRepository constructs the repository.
func NewGradeRepository(db *sqlx.DB) *GradeRepository {
	return &GradeRepository{db: db}
}

// ListBySection returns all grades recorded for a section.
func (r *GradeRepository) ListBySection(ctx context.Context, sectionID string) ([]models.Grade, error) {
	const query = `SELECT id, section_id, student_id, value, released, updated_at FROM grades WHERE section_id = $1`
	var grades []models.Grade
	if err := r.db.SelectContext(ctx, &grades, query, sectionID); err != nil {
		return nil, fmt.Errorf("list section grades: %w", err)
	}
	return grades, nil
}

// ListReleasedByStudent returns the student's released grades with
// course and term context, transcript order.
func (r *GradeRepository) ListReleasedByStudent(ctx context.Context, studentID string) ([]models.GradeLine, error) {
	const query = `SELECT c.code AS course_code, c.title AS course_title, t.name AS term_name, g.value
        FROM grades g
        JOIN sections s ON s.id = g.section_id
        JOIN courses c ON c.id = s.course_id
        JOIN terms t ON t.id = s.term_id
        WHERE g.student_id = $1 AND g.released = TRUE
        ORDER BY t.start_date, c.code`
	var lines []models.GradeLine
	if err := r.db.SelectContext(ctx, &lines, query, studentID); err != nil {
		return nil, fmt.Errorf("list released grades: %w", err)
	}
	return lines, nil
}

// GradeEntry is one row of a faculty grade sheet submission.
type GradeEntry struct {
	StudentID string
	Value     string
}

// UpsertSection replaces the grade sheet for a section in a single
// transaction; one row per (section, student) is kept in place.
func (r *GradeRepository) UpsertSection(ctx context.Context, sectionID string, entries []GradeEntry, released bool) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin grade upsert tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	now := time.Now().UTC()
	for _, entry := range entries {
		var existingID string
		err = tx.GetContext(ctx, &existingID, `SELECT id FROM grades WHERE section_id = $1 AND student_id = $2`, sectionID, entry.StudentID)
		switch {
		case err == sql.ErrNoRows:
			err = nil
			if _, err = tx.ExecContext(ctx,
				`INSERT INTO grades (id, section_id, student_id, value, released, updated_at) VALUES ($1, $2, $3, $4, $5, $6)`,
				uuid.NewString(), sectionID, entry.StudentID, entry.Value, released, now); err != nil {
				return fmt.Errorf("insert grade: %w", err)
			}
		case err != nil:
			return fmt.Errorf("find grade: %w", err)
		default:
			if _, err = tx.ExecContext(ctx,
				`UPDATE grades SET value = $2, released = $3, updated_at = $4 WHERE id = $1`,
				existingID, entry.Value, released, now); err != nil {
				return fmt.Errorf("update grade: %w", err)
			}
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit grade upsert tx: %w", err)
	}
	return nil
}
