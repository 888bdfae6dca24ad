package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/university-portal-api/internal/models"
)

// RegistrationRepository performs seat allocation for course sections.
// Every allocation decision runs in one transaction holding an
// exclusive lock on the section row, so concurrent requests for the
// same section serialize while different sections never contend.
type RegistrationRepository struct {
	db *sqlx.DB
}

// NewRegistrationRepository constructs the repository.
func NewRegistrationRepository(db *sqlx.DB) *RegistrationRepository {
	return &RegistrationRepository{db: db}
}

// IsLockTimeout reports whether the error is a lock-wait failure that
// the caller may retry.
func IsLockTimeout(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		// 55P03 lock_not_available, 57014 query_canceled (statement timeout)
		return pqErr.Code == "55P03" || pqErr.Code == "57014"
	}
	return false
}

type enrollmentRow struct {
	ID     string                  `db:"id"`
	Status models.EnrollmentStatus `db:"status"`
}

// RequestSeat grants or waitlists a seat for the student. Invariant:
// count(status=ENROLLED) never exceeds the section capacity after
// commit. Re-requesting an already held seat is a no-op.
func (r *RegistrationRepository) RequestSeat(ctx context.Context, sectionID, studentID string) (outcome models.RegistrationOutcome, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin seat request tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var capacity int
	if err = tx.GetContext(ctx, &capacity, `SELECT capacity FROM sections WHERE id = $1 FOR UPDATE`, sectionID); err != nil {
		if err == sql.ErrNoRows {
			return "", err
		}
		return "", fmt.Errorf("lock section: %w", err)
	}

	var existing enrollmentRow
	found := true
	if err = tx.GetContext(ctx, &existing, `SELECT id, status FROM enrollments WHERE section_id = $1 AND student_id = $2`, sectionID, studentID); err != nil {
		if err != sql.ErrNoRows {
			return "", fmt.Errorf("find enrollment: %w", err)
		}
		found = false
		err = nil
	}

	if found && existing.Status == models.EnrollmentStatusEnrolled {
		if err = tx.Commit(); err != nil {
			return "", fmt.Errorf("commit seat request tx: %w", err)
		}
		return models.OutcomeAlreadyEnrolled, nil
	}

	// The section lock covers the read-count-then-write sequence; the
	// requester's own row is excluded so re-adds from WAITLISTED or
	// DROPPED count seats the same way as first-time adds.
	var enrolled int
	if err = tx.GetContext(ctx, &enrolled,
		`SELECT COUNT(*) FROM enrollments WHERE section_id = $1 AND status = $2 AND student_id <> $3`,
		sectionID, models.EnrollmentStatusEnrolled, studentID); err != nil {
		return "", fmt.Errorf("count enrolled: %w", err)
	}

	status := models.EnrollmentStatusEnrolled
	outcome = models.OutcomeEnrolled
	if enrolled >= capacity {
		status = models.EnrollmentStatusWaitlisted
		outcome = models.OutcomeWaitlisted
	}

	now := time.Now().UTC()
	if found {
		if _, err = tx.ExecContext(ctx, `UPDATE enrollments SET status = $2, updated_at = $3 WHERE id = $1`, existing.ID, status, now); err != nil {
			return "", fmt.Errorf("update enrollment: %w", err)
		}
	} else {
		if _, err = tx.ExecContext(ctx,
			`INSERT INTO enrollments (id, section_id, student_id, status, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $5)`,
			uuid.NewString(), sectionID, studentID, status, now); err != nil {
			return "", fmt.Errorf("insert enrollment: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return "", fmt.Errorf("commit seat request tx: %w", err)
	}
	return outcome, nil
}

// DropSeat releases a held seat. Dropping never promotes a waitlisted
// student; waitlist promotion is deliberately absent.
func (r *RegistrationRepository) DropSeat(ctx context.Context, sectionID, studentID string) (outcome models.RegistrationOutcome, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin seat drop tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var capacity int
	if err = tx.GetContext(ctx, &capacity, `SELECT capacity FROM sections WHERE id = $1 FOR UPDATE`, sectionID); err != nil {
		if err == sql.ErrNoRows {
			return "", err
		}
		return "", fmt.Errorf("lock section: %w", err)
	}

	var existing enrollmentRow
	if err = tx.GetContext(ctx, &existing, `SELECT id, status FROM enrollments WHERE section_id = $1 AND student_id = $2`, sectionID, studentID); err != nil {
		if err != sql.ErrNoRows {
			return "", fmt.Errorf("find enrollment: %w", err)
		}
		err = nil
		if commitErr := tx.Commit(); commitErr != nil {
			return "", fmt.Errorf("commit seat drop tx: %w", commitErr)
		}
		return models.OutcomeNotEnrolled, nil
	}

	if existing.Status != models.EnrollmentStatusEnrolled {
		if err = tx.Commit(); err != nil {
			return "", fmt.Errorf("commit seat drop tx: %w", err)
		}
		return models.OutcomeNotEnrolled, nil
	}

	if _, err = tx.ExecContext(ctx, `UPDATE enrollments SET status = $2, updated_at = $3 WHERE id = $1`,
		existing.ID, models.EnrollmentStatusDropped, time.Now().UTC()); err != nil {
		return "", fmt.Errorf("drop enrollment: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return "", fmt.Errorf("commit seat drop tx: %w", err)
	}
	return models.OutcomeDropped, nil
}

// ListByStudent returns the student's enrollments for a term with
// course context, for display only.
func (r *RegistrationRepository) ListByStudent(ctx context.Context, studentID, termID string) ([]models.EnrollmentDetail, error) {
	const query = `SELECT e.id, e.section_id, e.student_id, e.status, e.created_at, e.updated_at,
        c.code AS course_code, c.title AS course_title, s.section_code, t.name AS term_name
        FROM enrollments e
        JOIN sections s ON s.id = e.section_id
        JOIN courses c ON c.id = s.course_id
        JOIN terms t ON t.id = s.term_id
        WHERE e.student_id = $1 AND s.term_id = $2
        ORDER BY c.code`
	var enrollments []models.EnrollmentDetail
	if err := r.db.SelectContext(ctx, &enrollments, query, studentID, termID); err != nil {
		return nil, fmt.Errorf("list student enrollments: %w", err)
	}
	return enrollments, nil
}

// SeatCount returns current occupancy for a section.
func (r *RegistrationRepository) SeatCount(ctx context.Context, sectionID string) (*models.SeatCount, error) {
	const query = `SELECT s.id AS section_id, s.capacity,
        COUNT(*) FILTER (WHERE e.status = 'ENROLLED') AS enrolled,
        COUNT(*) FILTER (WHERE e.status = 'WAITLISTED') AS waitlisted
        FROM sections s
        LEFT JOIN enrollments e ON e.section_id = s.id
        WHERE s.id = $1
        GROUP BY s.id, s.capacity`
	var count models.SeatCount
	if err := r.db.GetContext(ctx, &count, query, sectionID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("count seats: %w", err)
	}
	return &count, nil
}
