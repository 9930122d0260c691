package model

import "time"

// FollowUpStatus is the lifecycle state of a drafted reply.
type FollowUpStatus string

// FollowUp status constants. A draft moves to sent or error exactly once.
const (
	FollowUpDraft FollowUpStatus = "draft"
	FollowUpSent  FollowUpStatus = "sent"
	FollowUpError FollowUpStatus = "error"
)

// Valid reports whether s is a known follow-up status.
func (s FollowUpStatus) Valid() bool {
	switch s {
	case FollowUpDraft, FollowUpSent, FollowUpError:
		return true
	}
	return false
}

// FollowUp is a reply drafted for a stored email.
type FollowUp struct {
	ID        string         `json:"id" db:"id"`
	EmailID   string         `json:"email_id" db:"email_id"`
	Content   string         `json:"content" db:"content"`
	Status    FollowUpStatus `json:"status" db:"status"`
	CreatedAt time.Time      `json:"created_at" db:"created_at"`
	SentAt    *time.Time     `json:"sent_at,omitempty" db:"sent_at"`
	Error     string         `json:"error,omitempty" db:"error_message"`
}
