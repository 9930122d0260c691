package store_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/mailtriage/internal/model"
	"github.com/nhle/mailtriage/internal/store"
	"github.com/nhle/mailtriage/tests/testutil"
)

func ptr[T any](v T) *T { return &v }

func pendingEmail(accountID, uid string) *model.EnrichedEmail {
	received := time.Date(2025, 1, 10, 9, 0, 0, 0, time.UTC)
	e := model.NewPendingEmail(accountID, model.NormalizedEmail{
		UID:        uid,
		Subject:    "Subject " + uid,
		From:       &model.Address{Name: "HR", Address: "hr@example.com"},
		ReceivedAt: &received,
		Body:       "Hello",
		Headers:    map[string]string{"Message-Id": "<" + uid + "@example.com>"},
	})
	return &e
}

func TestAccountCRUD(t *testing.T) {
	ctx := context.Background()
	s := testutil.NewTestStore(t)

	account := testutil.SeedAccount(t, s, "me@example.com")
	assert.NotEmpty(t, account.ID)
	assert.Equal(t, model.DefaultIMAPPort, account.IMAPPort)
	assert.Equal(t, "INBOX", account.Mailbox)

	got, err := s.GetAccount(ctx, account.ID)
	require.NoError(t, err)
	assert.Equal(t, "me@example.com", got.Address)
	assert.Empty(t, got.Secret)

	byAddr, err := s.GetAccountByAddress(ctx, "owner-1", "me@example.com")
	require.NoError(t, err)
	assert.Equal(t, account.ID, byAddr.ID)

	dup := &model.MailAccount{OwnerID: "owner-1", Address: "me@example.com", IMAPHost: "imap.example.com"}
	assert.ErrorIs(t, s.CreateAccount(ctx, dup), store.ErrAlreadyExists)

	testutil.SeedAccount(t, s, "another@example.com")
	accounts, err := s.ListAccounts(ctx)
	require.NoError(t, err)
	require.Len(t, accounts, 2)
	assert.Equal(t, "another@example.com", accounts[0].Address)

	require.NoError(t, s.DeleteAccount(ctx, account.ID))
	_, err = s.GetAccount(ctx, account.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.ErrorIs(t, s.DeleteAccount(ctx, account.ID), store.ErrNotFound)
}

func TestCreateAccountValidation(t *testing.T) {
	s := testutil.NewTestStore(t)
	assert.Error(t, s.CreateAccount(context.Background(), &model.MailAccount{IMAPHost: "imap.example.com"}))
	assert.Error(t, s.CreateAccount(context.Background(), &model.MailAccount{Address: "a@example.com"}))
}

func TestUpsertEmailIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s := testutil.NewTestStore(t)
	account := testutil.SeedAccount(t, s, "me@example.com")

	first := pendingEmail(account.ID, "101")
	require.NoError(t, s.UpsertEmail(ctx, first))
	require.NotEmpty(t, first.ID)

	exists, err := s.EmailExists(ctx, account.ID, "101")
	require.NoError(t, err)
	assert.True(t, exists)

	// Same (account, uid) with no ID updates the existing row.
	second := pendingEmail(account.ID, "101")
	second.Subject = "Updated"
	require.NoError(t, s.UpsertEmail(ctx, second))
	assert.Equal(t, first.ID, second.ID)

	emails, err := s.ListEmails(ctx, store.EmailFilter{AccountID: &account.ID})
	require.NoError(t, err)
	require.Len(t, emails, 1)
	assert.Equal(t, "Updated", emails[0].Subject)
}

func TestUpsertEmailRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := testutil.NewTestStore(t)
	account := testutil.SeedAccount(t, s, "me@example.com")

	e := pendingEmail(account.ID, "7")
	require.NoError(t, s.UpsertEmail(ctx, e))

	processedAt := time.Date(2025, 1, 10, 10, 0, 0, 0, time.UTC)
	e.Summary = ptr("Interview on Tuesday.")
	e.Category = ptr(model.CategoryInterview)
	e.Priority = 3
	e.NeedsReply = true
	e.SuggestedReply = ptr("Tuesday works.")
	e.Status = model.StatusProcessed
	e.ProcessedAt = &processedAt
	require.NoError(t, s.UpsertEmail(ctx, e))

	got, err := s.FindEmailByUID(ctx, account.ID, "7")
	require.NoError(t, err)
	assert.Equal(t, e.ID, got.ID)
	assert.Equal(t, model.StatusProcessed, got.Status)
	require.NotNil(t, got.Category)
	assert.Equal(t, model.CategoryInterview, *got.Category)
	assert.Equal(t, "Interview on Tuesday.", *got.Summary)
	assert.True(t, got.NeedsReply)
	assert.Equal(t, 3, got.Priority)
	require.NotNil(t, got.From)
	assert.Equal(t, "HR", got.From.Name)
	assert.Nil(t, got.To)
	require.NotNil(t, got.ReceivedAt)
	assert.True(t, got.ReceivedAt.Equal(*e.ReceivedAt))
	require.NotNil(t, got.ProcessedAt)
	assert.True(t, got.ProcessedAt.Equal(processedAt))
	assert.Equal(t, "<7@example.com>", got.Headers["Message-Id"])

	byID, err := s.GetEmail(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, "7", byID.UID)
}

func TestUpsertEmailRejectsInvalidCategory(t *testing.T) {
	ctx := context.Background()
	s := testutil.NewTestStore(t)
	account := testutil.SeedAccount(t, s, "me@example.com")

	e := pendingEmail(account.ID, "1")
	e.Status = model.StatusProcessed
	e.Category = ptr(model.Category("urgent"))

	assert.ErrorIs(t, s.UpsertEmail(ctx, e), store.ErrInvalidCategory)

	exists, err := s.EmailExists(ctx, account.ID, "1")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestUpsertEmailRejectsInvalidStatus(t *testing.T) {
	s := testutil.NewTestStore(t)
	account := testutil.SeedAccount(t, s, "me@example.com")

	e := pendingEmail(account.ID, "1")
	e.Status = "done"
	assert.ErrorIs(t, s.UpsertEmail(context.Background(), e), store.ErrInvalidStatus)
}

func TestUpsertEmailRequiresAccount(t *testing.T) {
	s := testutil.NewTestStore(t)
	e := pendingEmail("no-such-account", "1")
	assert.Error(t, s.UpsertEmail(context.Background(), e))
}

func TestEmailLookupsNotFound(t *testing.T) {
	ctx := context.Background()
	s := testutil.NewTestStore(t)

	_, err := s.GetEmail(ctx, "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)
	_, err = s.FindEmailByUID(ctx, "acc", "1")
	assert.ErrorIs(t, err, store.ErrNotFound)

	exists, err := s.EmailExists(ctx, "acc", "1")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestListEmailsFilters(t *testing.T) {
	ctx := context.Background()
	s := testutil.NewTestStore(t)
	a := testutil.SeedAccount(t, s, "a@example.com")
	b := testutil.SeedAccount(t, s, "b@example.com")

	for i, uid := range []string{"1", "2", "3"} {
		e := pendingEmail(a.ID, uid)
		received := time.Date(2025, 1, 10+i, 0, 0, 0, 0, time.UTC)
		e.ReceivedAt = &received
		if uid == "2" {
			e.Status = model.StatusProcessed
			e.Category = ptr(model.CategoryOffer)
			e.NeedsReply = true
		}
		require.NoError(t, s.UpsertEmail(ctx, e))
	}
	require.NoError(t, s.UpsertEmail(ctx, pendingEmail(b.ID, "1")))

	all, err := s.ListEmails(ctx, store.EmailFilter{AccountID: &a.ID})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "3", all[0].UID, "newest first")

	processed, err := s.ListEmails(ctx, store.EmailFilter{Status: ptr(model.StatusProcessed)})
	require.NoError(t, err)
	require.Len(t, processed, 1)
	assert.Equal(t, "2", processed[0].UID)

	offers, err := s.ListEmails(ctx, store.EmailFilter{Category: ptr(model.CategoryOffer), NeedsReply: ptr(true)})
	require.NoError(t, err)
	assert.Len(t, offers, 1)

	page, err := s.ListEmails(ctx, store.EmailFilter{AccountID: &a.ID, Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "2", page[0].UID)
}

func TestFollowUpTransitions(t *testing.T) {
	ctx := context.Background()
	s := testutil.NewTestStore(t)
	account := testutil.SeedAccount(t, s, "me@example.com")
	e := pendingEmail(account.ID, "1")
	require.NoError(t, s.UpsertEmail(ctx, e))

	_, err := s.CreateFollowUp(ctx, e.ID, "   ")
	assert.Error(t, err)

	sent, err := s.CreateFollowUp(ctx, e.ID, "Thanks!")
	require.NoError(t, err)
	assert.Equal(t, model.FollowUpDraft, sent.Status)

	require.NoError(t, s.UpdateFollowUpStatus(ctx, sent.ID, model.FollowUpSent, "ignored"))
	got, err := s.GetFollowUp(ctx, sent.ID)
	require.NoError(t, err)
	assert.Equal(t, model.FollowUpSent, got.Status)
	assert.NotNil(t, got.SentAt)
	assert.Empty(t, got.Error)

	err = s.UpdateFollowUpStatus(ctx, sent.ID, model.FollowUpError, "late failure")
	assert.ErrorIs(t, err, store.ErrInvalidTransition)

	failed, err := s.CreateFollowUp(ctx, e.ID, "Second try")
	require.NoError(t, err)
	require.NoError(t, s.UpdateFollowUpStatus(ctx, failed.ID, model.FollowUpError, "smtp: 550 rejected"))
	got, err = s.GetFollowUp(ctx, failed.ID)
	require.NoError(t, err)
	assert.Equal(t, model.FollowUpError, got.Status)
	assert.Nil(t, got.SentAt)
	assert.Equal(t, "smtp: 550 rejected", got.Error)

	assert.ErrorIs(t, s.UpdateFollowUpStatus(ctx, failed.ID, model.FollowUpDraft, ""), store.ErrInvalidStatus)
	assert.ErrorIs(t, s.UpdateFollowUpStatus(ctx, "missing", model.FollowUpSent, ""), store.ErrNotFound)

	list, err := s.ListFollowUps(ctx, e.ID)
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

func TestDeleteAccountCascades(t *testing.T) {
	ctx := context.Background()
	s := testutil.NewTestStore(t)
	account := testutil.SeedAccount(t, s, "me@example.com")
	e := pendingEmail(account.ID, "1")
	require.NoError(t, s.UpsertEmail(ctx, e))
	fu, err := s.CreateFollowUp(ctx, e.ID, "Thanks!")
	require.NoError(t, err)

	require.NoError(t, s.DeleteAccount(ctx, account.ID))

	_, err = s.GetEmail(ctx, e.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
	_, err = s.GetFollowUp(ctx, fu.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestReopenKeepsData(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "data", "mailtriage.db")

	s, err := store.NewSQLiteStore(path)
	require.NoError(t, err)
	account := testutil.SeedAccount(t, s, "me@example.com")
	require.NoError(t, s.Close())

	s, err = store.NewSQLiteStore(path)
	require.NoError(t, err)
	defer s.Close()

	got, err := s.GetAccount(ctx, account.ID)
	require.NoError(t, err)
	assert.Equal(t, "me@example.com", got.Address)
}
