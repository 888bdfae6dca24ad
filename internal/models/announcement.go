package models

import (
	"time"

	"github.com/lib/pq"
)

// Announcement is a portal-wide notice. An empty TargetRoles means the
// announcement is visible to everyone; otherwise only the listed roles
// see it. Visibility is further bounded by the publish/expire window.
type Announcement struct {
	ID          string         `db:"id" json:"id"`
	Title       string         `db:"title" json:"title"`
	Body        string         `db:"body" json:"body"`
	TargetRoles pq.StringArray `db:"target_roles" json:"target_roles"`
	IsPinned    bool           `db:"is_pinned" json:"is_pinned"`
	PublishedAt time.Time      `db:"published_at" json:"published_at"`
	ExpiresAt   *time.Time     `db:"expires_at" json:"expires_at,omitempty"`
	CreatedBy   string         `db:"created_by" json:"created_by"`
	CreatedAt   time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time      `db:"updated_at" json:"updated_at"`
}

// Active reports whether the announcement is inside its visibility
// window: published and, when an expiry is set, not yet expired.
func (a *Announcement) Active(now time.Time) bool {
	if a.PublishedAt.After(now) {
		return false
	}
	if a.ExpiresAt != nil && !a.ExpiresAt.After(now) {
		return false
	}
	return true
}

// AnnouncementFilter scopes an announcement listing. Staff callers see
// every active announcement; others only those targeting their role or
// targeting nobody in particular.
type AnnouncementFilter struct {
	Role  UserRole
	Staff bool
	Limit int
}
