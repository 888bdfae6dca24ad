package models

import "time"

// Course is a catalog entry identified by its unique code.
type Course struct {
	ID          string    `db:"id" json:"id"`
	Code        string    `db:"code" json:"code"`
	Title       string    `db:"title" json:"title"`
	Department  string    `db:"department" json:"department"`
	Level       string    `db:"level" json:"level"`
	Credits     float64   `db:"credits" json:"credits"`
	Description string    `db:"description" json:"description"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// Section is one scheduled offering of a course within a term with a
// fixed seat capacity.
type Section struct {
	ID          string    `db:"id" json:"id"`
	CourseID    string    `db:"course_id" json:"course_id"`
	TermID      string    `db:"term_id" json:"term_id"`
	SectionCode string    `db:"section_code" json:"section_code"`
	Capacity    int       `db:"capacity" json:"capacity"`
	MeetingDays string    `db:"meeting_days" json:"meeting_days"`
	Location    string    `db:"location" json:"location"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// CatalogSection enriches Section with course info and the derived
// enrolled count for display.
type CatalogSection struct {
	Section
	CourseCode    string `db:"course_code" json:"course_code"`
	CourseTitle   string `db:"course_title" json:"course_title"`
	TermName      string `db:"term_name" json:"term_name"`
	EnrolledCount int    `db:"enrolled_count" json:"enrolled_count"`
}

// SeatsLeft returns remaining capacity, never negative.
func (s *CatalogSection) SeatsLeft() int {
	left := s.Capacity - s.EnrolledCount
	if left < 0 {
		return 0
	}
	return left
}

// CourseFilter constrains course listing.
type CourseFilter struct {
	Department string
	Search     string
	Page       int
	PageSize   int
}
