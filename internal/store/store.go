package store

import (
	"context"
	"errors"

	"github.com/nhle/mailtriage/internal/model"
)

var (
	// ErrNotFound is returned when a requested row does not exist.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists is returned when a unique key is already taken.
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidCategory rejects a category outside the closed vocabulary.
	ErrInvalidCategory = errors.New("invalid category")

	// ErrInvalidStatus rejects an unknown enrichment or follow-up status.
	ErrInvalidStatus = errors.New("invalid status")

	// ErrInvalidTransition rejects a follow-up update from a settled state.
	ErrInvalidTransition = errors.New("invalid status transition")
)

// EmailFilter controls filtering and pagination for email queries.
type EmailFilter struct {
	AccountID  *string
	Status     *model.Status
	Category   *model.Category
	NeedsReply *bool
	Limit      int
	Offset     int
}

// Store defines the persistence interface for accounts, emails and
// follow-ups.
type Store interface {
	// === Accounts ===

	CreateAccount(ctx context.Context, account *model.MailAccount) error
	GetAccount(ctx context.Context, id string) (*model.MailAccount, error)
	GetAccountByAddress(ctx context.Context, ownerID, address string) (*model.MailAccount, error)
	ListAccounts(ctx context.Context) ([]model.MailAccount, error)
	DeleteAccount(ctx context.Context, id string) error

	// === Emails ===

	// EmailExists reports whether (accountID, uid) has been stored.
	EmailExists(ctx context.Context, accountID, uid string) (bool, error)
	FindEmailByUID(ctx context.Context, accountID, uid string) (*model.EnrichedEmail, error)
	GetEmail(ctx context.Context, id string) (*model.EnrichedEmail, error)
	ListEmails(ctx context.Context, filter EmailFilter) ([]model.EnrichedEmail, error)

	// UpsertEmail inserts the email or updates the row with the same
	// (account, uid), then sets email.ID to the stored row's ID.
	UpsertEmail(ctx context.Context, email *model.EnrichedEmail) error

	// === Follow-ups ===

	CreateFollowUp(ctx context.Context, emailID, content string) (*model.FollowUp, error)
	UpdateFollowUpStatus(ctx context.Context, id string, status model.FollowUpStatus, errMsg string) error
	GetFollowUp(ctx context.Context, id string) (*model.FollowUp, error)
	ListFollowUps(ctx context.Context, emailID string) ([]model.FollowUp, error)

	Close() error
}
