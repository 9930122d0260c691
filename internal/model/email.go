package model

import (
	"fmt"
	"strings"
	"time"
	"unicode"
)

// Category is the closed classification vocabulary for an email.
type Category string

// Category constants.
const (
	CategoryInterview  Category = "interview"
	CategoryRejection  Category = "rejection"
	CategoryOffer      Category = "offer"
	CategoryFollowUp   Category = "follow_up"
	CategoryNewsletter Category = "newsletter"
	CategorySpam       Category = "spam"
	CategoryOther      Category = "other"
)

// Categories lists every valid category in a stable order.
var Categories = []Category{
	CategoryInterview,
	CategoryRejection,
	CategoryOffer,
	CategoryFollowUp,
	CategoryNewsletter,
	CategorySpam,
	CategoryOther,
}

// Valid reports whether c belongs to the closed vocabulary.
func (c Category) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

var followUpSpellings = strings.NewReplacer("follow-up", "follow_up", "follow up", "follow_up", "followup", "follow_up")

// ParseCategory maps free-form model output onto the vocabulary. The first
// word that names a category wins; text naming none is "other".
func ParseCategory(text string) Category {
	normalized := followUpSpellings.Replace(strings.ToLower(text))
	words := strings.FieldsFunc(normalized, func(r rune) bool {
		return !unicode.IsLetter(r) && r != '_'
	})
	for _, w := range words {
		if c := Category(w); c.Valid() {
			return c
		}
	}
	return CategoryOther
}

// Status is the enrichment state of a stored email.
type Status string

// Status constants.
const (
	StatusPending   Status = "pending"
	StatusProcessed Status = "processed"
	StatusError     Status = "error"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusProcessed, StatusError:
		return true
	}
	return false
}

// Settled reports whether enrichment has finished, successfully or not.
func (s Status) Settled() bool {
	return s == StatusProcessed || s == StatusError
}

// Address is a parsed mailbox with an optional display name.
type Address struct {
	Name    string `json:"name,omitempty"`
	Address string `json:"address"`
}

// String formats the address the way it appears in a header.
func (a Address) String() string {
	if a.Name == "" {
		return a.Address
	}
	return fmt.Sprintf("%s <%s>", a.Name, a.Address)
}

// NormalizedEmail is a message after MIME parsing, before enrichment.
type NormalizedEmail struct {
	UID        string            `json:"uid"`
	Subject    string            `json:"subject"`
	From       *Address          `json:"from,omitempty"`
	To         *Address          `json:"to,omitempty"`
	ReceivedAt *time.Time        `json:"received_at,omitempty"`
	Body       string            `json:"body"`
	Headers    map[string]string `json:"headers"`
}

// MessageID returns the Message-Id header, or "" when absent.
func (e NormalizedEmail) MessageID() string {
	return e.Headers["Message-Id"]
}

// EnrichedEmail is a stored email with its enrichment results. A pending
// email has no summary or category; ProcessedAt is set only once it leaves
// the pending state.
type EnrichedEmail struct {
	NormalizedEmail

	ID             string     `json:"id"`
	AccountID      string     `json:"account_id"`
	Summary        *string    `json:"summary,omitempty"`
	Category       *Category  `json:"category,omitempty"`
	Priority       int        `json:"priority"`
	NeedsReply     bool       `json:"needs_reply"`
	SuggestedReply *string    `json:"suggested_reply,omitempty"`
	Status         Status     `json:"status"`
	ProcessedAt    *time.Time `json:"processed_at,omitempty"`
	Error          string     `json:"error,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

// NewPendingEmail wraps a normalized email as a pending record for account.
func NewPendingEmail(accountID string, e NormalizedEmail) EnrichedEmail {
	return EnrichedEmail{
		NormalizedEmail: e,
		AccountID:       accountID,
		Status:          StatusPending,
	}
}
