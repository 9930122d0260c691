package ai

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/nhle/mailtriage/internal/model"
)

// mockBackend is a func-field Backend.
type mockBackend struct {
	SummarizeFunc  func(ctx context.Context, text string) (string, error)
	ClassifyFunc   func(ctx context.Context, text string) (string, error)
	DraftReplyFunc func(ctx context.Context, text string) (string, error)
	drafted        int
}

func (m *mockBackend) Summarize(ctx context.Context, text string, _ CallOptions) (string, error) {
	if m.SummarizeFunc != nil {
		return m.SummarizeFunc(ctx, text)
	}
	return "A short summary.", nil
}

func (m *mockBackend) Classify(ctx context.Context, text string, _ CallOptions) (string, error) {
	if m.ClassifyFunc != nil {
		return m.ClassifyFunc(ctx, text)
	}
	return "other", nil
}

func (m *mockBackend) DraftReply(ctx context.Context, text string, _ CallOptions) (string, error) {
	m.drafted++
	if m.DraftReplyFunc != nil {
		return m.DraftReplyFunc(ctx, text)
	}
	return "Thank you, I will reply soon.", nil
}

func pending(uid, subject string) model.EnrichedEmail {
	return model.NewPendingEmail("acc-1", model.NormalizedEmail{
		UID:     uid,
		Subject: subject,
		From:    &model.Address{Address: "hr@example.com"},
		Body:    "Body text",
	})
}

func TestEnrichInterview(t *testing.T) {
	b := &mockBackend{
		ClassifyFunc: func(context.Context, string) (string, error) { return "Interview", nil },
	}
	e := NewEnricher(b, "", 0.1, zaptest.NewLogger(t))

	got := e.Enrich(context.Background(), pending("1", "Let's talk"))

	assert.Equal(t, model.StatusProcessed, got.Status)
	require.NotNil(t, got.Summary)
	assert.Equal(t, "A short summary.", *got.Summary)
	require.NotNil(t, got.Category)
	assert.Equal(t, model.CategoryInterview, *got.Category)
	assert.Equal(t, 3, got.Priority)
	assert.True(t, got.NeedsReply)
	require.NotNil(t, got.SuggestedReply)
	assert.NotNil(t, got.ProcessedAt)
	assert.Empty(t, got.Error)
}

func TestEnrichNewsletterNeedsNoReply(t *testing.T) {
	b := &mockBackend{
		ClassifyFunc: func(context.Context, string) (string, error) { return "newsletter", nil },
	}
	got := NewEnricher(b, "", 0.1, zaptest.NewLogger(t)).Enrich(context.Background(), pending("1", "Weekly digest"))

	assert.Equal(t, model.StatusProcessed, got.Status)
	assert.Equal(t, 0, got.Priority)
	assert.False(t, got.NeedsReply)
	assert.Nil(t, got.SuggestedReply)
	assert.Zero(t, b.drafted)
}

func TestEnrichUnknownLabelIsOther(t *testing.T) {
	b := &mockBackend{
		ClassifyFunc: func(context.Context, string) (string, error) { return "I cannot tell", nil },
	}
	got := NewEnricher(b, "", 0.1, zaptest.NewLogger(t)).Enrich(context.Background(), pending("1", "?"))

	require.NotNil(t, got.Category)
	assert.Equal(t, model.CategoryOther, *got.Category)
}

func TestEnrichSummarizeFailureMarksError(t *testing.T) {
	b := &mockBackend{
		SummarizeFunc: func(context.Context, string) (string, error) {
			return "", &EnrichmentError{Op: "generate", Model: "m", Err: context.DeadlineExceeded}
		},
	}
	got := NewEnricher(b, "", 0.1, zaptest.NewLogger(t)).Enrich(context.Background(), pending("1", "x"))

	assert.Equal(t, model.StatusError, got.Status)
	assert.Nil(t, got.Summary)
	assert.Nil(t, got.Category)
	assert.False(t, got.NeedsReply)
	assert.NotNil(t, got.ProcessedAt)
	assert.Contains(t, got.Error, "deadline exceeded")
}

func TestEnrichClassifyFailureDropsSummary(t *testing.T) {
	b := &mockBackend{
		ClassifyFunc: func(context.Context, string) (string, error) { return "", errors.New("boom") },
	}
	got := NewEnricher(b, "", 0.1, zaptest.NewLogger(t)).Enrich(context.Background(), pending("1", "x"))

	assert.Equal(t, model.StatusError, got.Status)
	assert.Nil(t, got.Summary)
	assert.Equal(t, "boom", got.Error)
}

func TestEnrichDraftFailureKeepsResult(t *testing.T) {
	b := &mockBackend{
		ClassifyFunc:   func(context.Context, string) (string, error) { return "offer", nil },
		DraftReplyFunc: func(context.Context, string) (string, error) { return "", errors.New("chat down") },
	}
	got := NewEnricher(b, "", 0.1, zaptest.NewLogger(t)).Enrich(context.Background(), pending("1", "Offer"))

	assert.Equal(t, model.StatusProcessed, got.Status)
	assert.True(t, got.NeedsReply)
	assert.Nil(t, got.SuggestedReply)
}

func TestEnrichIsolatesFailures(t *testing.T) {
	b := &mockBackend{
		SummarizeFunc: func(_ context.Context, text string) (string, error) {
			if strings.Contains(text, "slow") {
				return "", context.DeadlineExceeded
			}
			return "ok", nil
		},
	}
	e := NewEnricher(b, "", 0.1, zaptest.NewLogger(t))

	a := e.Enrich(context.Background(), pending("1", "fast"))
	x := e.Enrich(context.Background(), pending("2", "slow"))
	c := e.Enrich(context.Background(), pending("3", "fast again"))

	assert.Equal(t, model.StatusProcessed, a.Status)
	assert.Equal(t, model.StatusError, x.Status)
	assert.Equal(t, model.StatusProcessed, c.Status)
}

func TestPromptTextTruncatesBody(t *testing.T) {
	body := strings.Repeat("é", maxPromptBody+100)
	text := promptText(model.NormalizedEmail{Subject: "s", Body: body})

	assert.True(t, strings.HasPrefix(text, "Subject: s\n\n"))
	assert.Equal(t, maxPromptBody, utf8.RuneCountInString(strings.TrimPrefix(text, "Subject: s\n\n")))
}

func TestPriorityFor(t *testing.T) {
	assert.Equal(t, 3, priorityFor(model.CategoryOffer))
	assert.Equal(t, 3, priorityFor(model.CategoryInterview))
	assert.Equal(t, 2, priorityFor(model.CategoryFollowUp))
	assert.Equal(t, 1, priorityFor(model.CategoryRejection))
	assert.Equal(t, 0, priorityFor(model.CategorySpam))
}
