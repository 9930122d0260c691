package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nhle/mailtriage/internal/model"
)

const accountColumns = `id, owner_id, address, imap_host, imap_port,
	smtp_host, smtp_port, mailbox, created_at`

// CreateAccount inserts a new account. Generates a UUID if ID is empty and
// fills default ports. The secret is not stored.
func (s *SQLiteStore) CreateAccount(ctx context.Context, account *model.MailAccount) error {
	if strings.TrimSpace(account.Address) == "" {
		return fmt.Errorf("account address must not be empty")
	}
	if strings.TrimSpace(account.IMAPHost) == "" {
		return fmt.Errorf("account imap host must not be empty")
	}
	if account.ID == "" {
		account.ID = uuid.New().String()
	}
	account.ApplyDefaults()
	account.CreatedAt = time.Now().UTC()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO accounts (`+accountColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		account.ID, account.OwnerID, account.Address, account.IMAPHost, account.IMAPPort,
		account.SMTPHost, account.SMTPPort, account.Mailbox, account.CreatedAt,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("account %s for owner %q: %w", account.Address, account.OwnerID, ErrAlreadyExists)
	}
	if err != nil {
		return fmt.Errorf("creating account: %w", err)
	}
	return nil
}

// GetAccount retrieves a single account by ID.
func (s *SQLiteStore) GetAccount(ctx context.Context, id string) (*model.MailAccount, error) {
	var account model.MailAccount
	err := s.db.GetContext(ctx, &account,
		"SELECT "+accountColumns+" FROM accounts WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("account %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("getting account %s: %w", id, err)
	}
	return &account, nil
}

// GetAccountByAddress retrieves the account registered by owner for address.
func (s *SQLiteStore) GetAccountByAddress(
	ctx context.Context,
	ownerID, address string,
) (*model.MailAccount, error) {
	var account model.MailAccount
	err := s.db.GetContext(ctx, &account,
		"SELECT "+accountColumns+" FROM accounts WHERE owner_id = ? AND address = ?",
		ownerID, address)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("account %s: %w", address, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("getting account %s: %w", address, err)
	}
	return &account, nil
}

// ListAccounts returns every account ordered by address.
func (s *SQLiteStore) ListAccounts(ctx context.Context) ([]model.MailAccount, error) {
	var accounts []model.MailAccount
	err := s.db.SelectContext(ctx, &accounts,
		"SELECT "+accountColumns+" FROM accounts ORDER BY address")
	if err != nil {
		return nil, fmt.Errorf("querying accounts: %w", err)
	}
	return accounts, nil
}

// DeleteAccount removes an account by ID. Cascades to emails and follow-ups.
func (s *SQLiteStore) DeleteAccount(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM accounts WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting account %s: %w", id, err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("account %s: %w", id, ErrNotFound)
	}
	return nil
}
