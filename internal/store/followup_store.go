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

const followUpColumns = "id, email_id, content, status, created_at, sent_at, error_message"

// CreateFollowUp stores a draft reply for an email.
func (s *SQLiteStore) CreateFollowUp(
	ctx context.Context,
	emailID, content string,
) (*model.FollowUp, error) {
	if strings.TrimSpace(content) == "" {
		return nil, fmt.Errorf("follow-up content must not be empty")
	}

	f := &model.FollowUp{
		ID:        uuid.New().String(),
		EmailID:   emailID,
		Content:   content,
		Status:    model.FollowUpDraft,
		CreatedAt: time.Now().UTC(),
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO follow_ups (`+followUpColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		f.ID, f.EmailID, f.Content, string(f.Status), f.CreatedAt, nil, "",
	)
	if err != nil {
		return nil, fmt.Errorf("creating follow-up for email %s: %w", emailID, err)
	}
	return f, nil
}

// UpdateFollowUpStatus moves a draft to sent or error. Sent records the send
// time; error records errMsg. A follow-up that already left draft is not
// changed and ErrInvalidTransition is returned.
func (s *SQLiteStore) UpdateFollowUpStatus(
	ctx context.Context,
	id string,
	status model.FollowUpStatus,
	errMsg string,
) error {
	if status != model.FollowUpSent && status != model.FollowUpError {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}

	var sentAt *time.Time
	if status == model.FollowUpSent {
		now := time.Now().UTC()
		sentAt = &now
		errMsg = ""
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE follow_ups SET status = ?, sent_at = ?, error_message = ?
		WHERE id = ? AND status = ?`,
		string(status), sentAt, errMsg, id, string(model.FollowUpDraft),
	)
	if err != nil {
		return fmt.Errorf("updating follow-up %s: %w", id, err)
	}

	rows, _ := result.RowsAffected()
	if rows > 0 {
		return nil
	}

	if _, err := s.GetFollowUp(ctx, id); err != nil {
		return err
	}
	return fmt.Errorf("follow-up %s to %s: %w", id, status, ErrInvalidTransition)
}

// GetFollowUp retrieves a single follow-up by ID.
func (s *SQLiteStore) GetFollowUp(ctx context.Context, id string) (*model.FollowUp, error) {
	var f model.FollowUp
	err := s.db.GetContext(ctx, &f,
		"SELECT "+followUpColumns+" FROM follow_ups WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("follow-up %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("getting follow-up %s: %w", id, err)
	}
	return &f, nil
}

// ListFollowUps returns the follow-ups of an email, oldest first.
func (s *SQLiteStore) ListFollowUps(ctx context.Context, emailID string) ([]model.FollowUp, error) {
	var followUps []model.FollowUp
	err := s.db.SelectContext(ctx, &followUps,
		"SELECT "+followUpColumns+" FROM follow_ups WHERE email_id = ? ORDER BY created_at",
		emailID)
	if err != nil {
		return nil, fmt.Errorf("querying follow-ups for email %s: %w", emailID, err)
	}
	return followUps, nil
}
