package models

import "time"

// Term models an academic term within the institution calendar. The
// registration window is optional; a nil bound leaves that side open.
type Term struct {
	ID                string     `db:"id" json:"id"`
	Name              string     `db:"name" json:"name"`
	StartDate         time.Time  `db:"start_date" json:"start_date"`
	EndDate           time.Time  `db:"end_date" json:"end_date"`
	IsActive          bool       `db:"is_active" json:"is_active"`
	RegistrationStart *time.Time `db:"registration_start" json:"registration_start,omitempty"`
	RegistrationEnd   *time.Time `db:"registration_end" json:"registration_end,omitempty"`
	CreatedAt         time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time  `db:"updated_at" json:"updated_at"`
}

// RegistrationOpen reports whether the registration window contains the
// given instant.
func (t *Term) RegistrationOpen(now time.Time) bool {
	if t.RegistrationStart != nil && now.Before(*t.RegistrationStart) {
		return false
	}
	if t.RegistrationEnd != nil && now.After(*t.RegistrationEnd) {
		return false
	}
	return true
}

// TermFilter defines filters supported by list endpoints.
type TermFilter struct {
	IsActive  *bool
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
