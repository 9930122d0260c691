package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nhle/mailtriage/internal/model"
)

const emailColumns = `id, account_id, uid, subject,
	from_name, from_address, to_name, to_address, received_at,
	body, headers, summary, category, priority, needs_reply,
	suggested_reply, status, processed_at, error_message, created_at`

// emailRow is the flat database shape of an EnrichedEmail.
type emailRow struct {
	ID             string     `db:"id"`
	AccountID      string     `db:"account_id"`
	UID            string     `db:"uid"`
	Subject        string     `db:"subject"`
	FromName       *string    `db:"from_name"`
	FromAddress    *string    `db:"from_address"`
	ToName         *string    `db:"to_name"`
	ToAddress      *string    `db:"to_address"`
	ReceivedAt     *time.Time `db:"received_at"`
	Body           string     `db:"body"`
	Headers        string     `db:"headers"`
	Summary        *string    `db:"summary"`
	Category       *string    `db:"category"`
	Priority       int        `db:"priority"`
	NeedsReply     int        `db:"needs_reply"`
	SuggestedReply *string    `db:"suggested_reply"`
	Status         string     `db:"status"`
	ProcessedAt    *time.Time `db:"processed_at"`
	ErrorMessage   string     `db:"error_message"`
	CreatedAt      time.Time  `db:"created_at"`
}

func (r emailRow) toModel() (model.EnrichedEmail, error) {
	e := model.EnrichedEmail{
		NormalizedEmail: model.NormalizedEmail{
			UID:        r.UID,
			Subject:    r.Subject,
			From:       addressFromColumns(r.FromName, r.FromAddress),
			To:         addressFromColumns(r.ToName, r.ToAddress),
			ReceivedAt: r.ReceivedAt,
			Body:       r.Body,
		},
		ID:             r.ID,
		AccountID:      r.AccountID,
		Summary:        r.Summary,
		Priority:       r.Priority,
		NeedsReply:     r.NeedsReply != 0,
		SuggestedReply: r.SuggestedReply,
		Status:         model.Status(r.Status),
		ProcessedAt:    r.ProcessedAt,
		Error:          r.ErrorMessage,
		CreatedAt:      r.CreatedAt,
	}
	if r.Category != nil {
		c := model.Category(*r.Category)
		e.Category = &c
	}
	if r.Headers != "" {
		if err := json.Unmarshal([]byte(r.Headers), &e.Headers); err != nil {
			return model.EnrichedEmail{}, fmt.Errorf("unmarshaling headers of email %s: %w", r.ID, err)
		}
	}
	if e.Headers == nil {
		e.Headers = map[string]string{}
	}
	return e, nil
}

func addressFromColumns(name, address *string) *model.Address {
	if address == nil {
		return nil
	}
	a := &model.Address{Address: *address}
	if name != nil {
		a.Name = *name
	}
	return a
}

func addressColumns(a *model.Address) (name, address *string) {
	if a == nil {
		return nil, nil
	}
	return &a.Name, &a.Address
}

// validateEmail enforces the closed vocabularies before a write.
func validateEmail(e *model.EnrichedEmail) error {
	if e.AccountID == "" || e.UID == "" {
		return fmt.Errorf("email requires account id and uid")
	}
	if !e.Status.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, e.Status)
	}
	if e.Category != nil && !e.Category.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidCategory, *e.Category)
	}
	return nil
}

// UpsertEmail inserts the email, or updates the existing row for the same
// (account, uid) in place. The stored row ID is written back to email.ID.
func (s *SQLiteStore) UpsertEmail(ctx context.Context, email *model.EnrichedEmail) error {
	if err := validateEmail(email); err != nil {
		return err
	}

	headers := email.Headers
	if headers == nil {
		headers = map[string]string{}
	}
	headersJSON, err := json.Marshal(headers)
	if err != nil {
		return fmt.Errorf("marshaling headers for uid %s: %w", email.UID, err)
	}

	id := email.ID
	if id == "" {
		id = uuid.New().String()
	}
	createdAt := email.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	var category *string
	if email.Category != nil {
		c := string(*email.Category)
		category = &c
	}
	fromName, fromAddress := addressColumns(email.From)
	toName, toAddress := addressColumns(email.To)

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO emails (`+emailColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(account_id, uid) DO UPDATE SET
			subject = excluded.subject,
			from_name = excluded.from_name,
			from_address = excluded.from_address,
			to_name = excluded.to_name,
			to_address = excluded.to_address,
			received_at = excluded.received_at,
			body = excluded.body,
			headers = excluded.headers,
			summary = excluded.summary,
			category = excluded.category,
			priority = excluded.priority,
			needs_reply = excluded.needs_reply,
			suggested_reply = excluded.suggested_reply,
			status = excluded.status,
			processed_at = excluded.processed_at,
			error_message = excluded.error_message`,
		id, email.AccountID, email.UID, email.Subject,
		fromName, fromAddress, toName, toAddress, utcPtr(email.ReceivedAt),
		email.Body, string(headersJSON), email.Summary, category, email.Priority,
		boolToInt(email.NeedsReply), email.SuggestedReply, string(email.Status),
		utcPtr(email.ProcessedAt), email.Error, createdAt,
	)
	if err != nil {
		return fmt.Errorf("upserting email uid %s: %w", email.UID, err)
	}

	var stored struct {
		ID        string    `db:"id"`
		CreatedAt time.Time `db:"created_at"`
	}
	err = tx.GetContext(ctx, &stored,
		"SELECT id, created_at FROM emails WHERE account_id = ? AND uid = ?",
		email.AccountID, email.UID)
	if err != nil {
		return fmt.Errorf("reading back email uid %s: %w", email.UID, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing email uid %s: %w", email.UID, err)
	}

	email.ID = stored.ID
	email.CreatedAt = stored.CreatedAt
	return nil
}

// EmailExists reports whether (accountID, uid) has already been stored.
func (s *SQLiteStore) EmailExists(ctx context.Context, accountID, uid string) (bool, error) {
	var count int
	err := s.db.GetContext(ctx, &count,
		"SELECT COUNT(*) FROM emails WHERE account_id = ? AND uid = ?", accountID, uid)
	if err != nil {
		return false, fmt.Errorf("checking email uid %s: %w", uid, err)
	}
	return count > 0, nil
}

// FindEmailByUID retrieves the stored email for (accountID, uid).
func (s *SQLiteStore) FindEmailByUID(
	ctx context.Context,
	accountID, uid string,
) (*model.EnrichedEmail, error) {
	return s.getEmail(ctx,
		"SELECT "+emailColumns+" FROM emails WHERE account_id = ? AND uid = ?",
		accountID, uid)
}

// GetEmail retrieves a single email by ID.
func (s *SQLiteStore) GetEmail(ctx context.Context, id string) (*model.EnrichedEmail, error) {
	return s.getEmail(ctx, "SELECT "+emailColumns+" FROM emails WHERE id = ?", id)
}

func (s *SQLiteStore) getEmail(ctx context.Context, query string, args ...any) (*model.EnrichedEmail, error) {
	var row emailRow
	err := s.db.GetContext(ctx, &row, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("email: %w", ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("getting email: %w", err)
	}
	e, err := row.toModel()
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// ListEmails retrieves emails matching the filter, newest first.
func (s *SQLiteStore) ListEmails(ctx context.Context, filter EmailFilter) ([]model.EnrichedEmail, error) {
	var conditions []string
	var args []interface{}

	if filter.AccountID != nil {
		conditions = append(conditions, "account_id = ?")
		args = append(args, *filter.AccountID)
	}
	if filter.Status != nil {
		conditions = append(conditions, "status = ?")
		args = append(args, string(*filter.Status))
	}
	if filter.Category != nil {
		conditions = append(conditions, "category = ?")
		args = append(args, string(*filter.Category))
	}
	if filter.NeedsReply != nil {
		conditions = append(conditions, "needs_reply = ?")
		args = append(args, boolToInt(*filter.NeedsReply))
	}

	query := "SELECT " + emailColumns + " FROM emails"
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY received_at DESC, created_at DESC"

	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
		if filter.Offset > 0 {
			query += fmt.Sprintf(" OFFSET %d", filter.Offset)
		}
	}

	var rows []emailRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("querying emails: %w", err)
	}

	emails := make([]model.EnrichedEmail, 0, len(rows))
	for _, r := range rows {
		e, err := r.toModel()
		if err != nil {
			return nil, err
		}
		emails = append(emails, e)
	}
	return emails, nil
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
