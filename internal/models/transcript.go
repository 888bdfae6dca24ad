package models

import "time"

// TranscriptStatus is the closed workflow enum for transcript requests.
type TranscriptStatus string

const (
	TranscriptStatusSubmitted TranscriptStatus = "SUBMITTED"
	TranscriptStatusInReview  TranscriptStatus = "IN_REVIEW"
	TranscriptStatusApproved  TranscriptStatus = "APPROVED"
	TranscriptStatusRejected  TranscriptStatus = "REJECTED"
	TranscriptStatusIssued    TranscriptStatus = "ISSUED"
)

// Terminal reports whether no further transition may leave the status.
func (s TranscriptStatus) Terminal() bool {
	return s == TranscriptStatusRejected || s == TranscriptStatusIssued
}

// DeliveryMethod enumerates how an issued transcript is delivered.
type DeliveryMethod string

const (
	DeliveryEmail   DeliveryMethod = "EMAIL"
	DeliveryPickup  DeliveryMethod = "PICKUP"
	DeliveryCourier DeliveryMethod = "COURIER"
)

// ValidDeliveryMethod reports whether the method is known.
func ValidDeliveryMethod(m DeliveryMethod) bool {
	switch m {
	case DeliveryEmail, DeliveryPickup, DeliveryCourier:
		return true
	}
	return false
}

// TranscriptRequest tracks one student's request for an academic
// record through its review lifecycle. VerificationCode and IssuedAt
// are set exactly once, on first entry into ISSUED, and are immutable
// afterwards.
type TranscriptRequest struct {
	ID               string           `db:"id" json:"id"`
	RequesterID      string           `db:"requester_id" json:"requester_id"`
	Purpose          string           `db:"purpose" json:"purpose"`
	DeliveryMethod   DeliveryMethod   `db:"delivery_method" json:"delivery_method"`
	RecipientDetails string           `db:"recipient_details" json:"recipient_details"`
	Status           TranscriptStatus `db:"status" json:"status"`
	ReviewedBy       *string          `db:"reviewed_by" json:"reviewed_by,omitempty"`
	ReviewReason     string           `db:"review_reason" json:"review_reason"`
	IssuedAt         *time.Time       `db:"issued_at" json:"issued_at,omitempty"`
	VerificationCode string           `db:"verification_code" json:"verification_code,omitempty"`
	CreatedAt        time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time        `db:"updated_at" json:"updated_at"`
}

// TranscriptRequestEvent is an immutable audit record of one status
// transition, ordered by creation time.
type TranscriptRequestEvent struct {
	ID         string           `db:"id" json:"id"`
	RequestID  string           `db:"request_id" json:"request_id"`
	ActorID    string           `db:"actor_id" json:"actor_id"`
	FromStatus TranscriptStatus `db:"from_status" json:"from_status"`
	ToStatus   TranscriptStatus `db:"to_status" json:"to_status"`
	Note       string           `db:"note" json:"note"`
	CreatedAt  time.Time        `db:"created_at" json:"created_at"`
}

// TranscriptFilter constrains registrar queue listing.
type TranscriptFilter struct {
	Status      TranscriptStatus
	RequesterID string
	Page        int
	PageSize    int
}
