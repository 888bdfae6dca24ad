package models

import "time"

// Grade records one student's result in a section. Unreleased grades
// are invisible to students and excluded from transcripts.
type Grade struct {
	ID        string    `db:"id" json:"id"`
	SectionID string    `db:"section_id" json:"section_id"`
	StudentID string    `db:"student_id" json:"student_id"`
	Value     string    `db:"value" json:"value"`
	Released  bool      `db:"released" json:"released"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// GradeLine is a released grade joined with course and term context,
// the row shape consumed by transcript rendering.
type GradeLine struct {
	CourseCode  string `db:"course_code" json:"course_code"`
	CourseTitle string `db:"course_title" json:"course_title"`
	TermName    string `db:"term_name" json:"term_name"`
	Value       string `db:"value" json:"value"`
}
