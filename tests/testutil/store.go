package testutil

import (
	"context"
	"testing"

	"github.com/nhle/mailtriage/internal/model"
	"github.com/nhle/mailtriage/internal/store"
)

// NewTestStore creates an in-memory SQLiteStore with all migrations applied.
// It automatically closes the store when the test completes.
func NewTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()

	s, err := store.NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("creating test store: %v", err)
	}

	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Errorf("closing test store: %v", err)
		}
	})

	return s
}

// SeedAccount stores an account for address and returns it.
func SeedAccount(t *testing.T, s store.Store, address string) *model.MailAccount {
	t.Helper()

	account := &model.MailAccount{
		OwnerID:  "owner-1",
		Address:  address,
		IMAPHost: "imap.example.com",
		SMTPHost: "smtp.example.com",
	}
	if err := s.CreateAccount(context.Background(), account); err != nil {
		t.Fatalf("seeding account %s: %v", address, err)
	}
	return account
}
