package models

import "time"

// EnrollmentStatus represents the lifecycle of a seat in a section.
// Statuses are mutually exclusive; one row per (section, student) is
// mutated in place and never deleted.
type EnrollmentStatus string

const (
	EnrollmentStatusEnrolled   EnrollmentStatus = "ENROLLED"
	EnrollmentStatusWaitlisted EnrollmentStatus = "WAITLISTED"
	EnrollmentStatusDropped    EnrollmentStatus = "DROPPED"
)

// RegistrationOutcome is the deterministic result of a seat request.
// Capacity contention is never an error: the loser of the last seat is
// waitlisted.
type RegistrationOutcome string

const (
	OutcomeEnrolled        RegistrationOutcome = "ENROLLED"
	OutcomeWaitlisted      RegistrationOutcome = "WAITLISTED"
	OutcomeAlreadyEnrolled RegistrationOutcome = "ALREADY_ENROLLED"
	OutcomeDropped         RegistrationOutcome = "DROPPED"
	OutcomeNotEnrolled     RegistrationOutcome = "NOT_ENROLLED"
)

// Enrollment ties one student to one section.
type Enrollment struct {
	ID        string           `db:"id" json:"id"`
	SectionID string           `db:"section_id" json:"section_id"`
	StudentID string           `db:"student_id" json:"student_id"`
	Status    EnrollmentStatus `db:"status" json:"status"`
	CreatedAt time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt time.Time        `db:"updated_at" json:"updated_at"`
}

// EnrollmentDetail enriches Enrollment with section and course info.
type EnrollmentDetail struct {
	Enrollment
	CourseCode  string `db:"course_code" json:"course_code"`
	CourseTitle string `db:"course_title" json:"course_title"`
	SectionCode string `db:"section_code" json:"section_code"`
	TermName    string `db:"term_name" json:"term_name"`
}

// SeatCount reports current occupancy of a section.
type SeatCount struct {
	SectionID  string `db:"section_id" json:"section_id"`
	Capacity   int    `db:"capacity" json:"capacity"`
	Enrolled   int    `db:"enrolled" json:"enrolled"`
	Waitlisted int    `db:"waitlisted" json:"waitlisted"`
}
