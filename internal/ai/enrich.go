package ai

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/nhle/mailtriage/internal/metrics"
	"github.com/nhle/mailtriage/internal/model"
)

// maxPromptBody caps the email body, in runes, included in prompts.
const maxPromptBody = 6000

// Backend is the subset of Client the Enricher uses.
type Backend interface {
	Summarize(ctx context.Context, text string, opts CallOptions) (string, error)
	Classify(ctx context.Context, text string, opts CallOptions) (string, error)
	DraftReply(ctx context.Context, text string, opts CallOptions) (string, error)
}

// Enricher turns pending emails into processed or errored ones.
type Enricher struct {
	backend Backend
	opts    CallOptions
	logger  *zap.Logger
	now     func() time.Time
}

// NewEnricher creates an Enricher whose backend calls use modelName (empty
// for the backend default) at the given temperature.
func NewEnricher(b Backend, modelName string, temperature float64, logger *zap.Logger) *Enricher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Enricher{
		backend: b,
		opts: CallOptions{
			Model:   modelName,
			Options: map[string]any{"temperature": temperature},
		},
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Enrich summarizes and classifies a pending email. If either call fails the
// email is returned with status error and no summary or category. A reply is
// drafted for emails that need one; drafting failures are logged only.
func (e *Enricher) Enrich(ctx context.Context, email model.EnrichedEmail) model.EnrichedEmail {
	logger := e.logger.With(
		zap.String("account_id", email.AccountID),
		zap.String("uid", email.UID),
	)
	text := promptText(email.NormalizedEmail)

	summary, err := e.backend.Summarize(ctx, text, e.opts)
	if err != nil {
		return e.fail(logger, email, err)
	}

	label, err := e.backend.Classify(ctx, text, e.opts)
	if err != nil {
		return e.fail(logger, email, err)
	}

	category := model.ParseCategory(label)
	processedAt := e.now()

	email.Summary = &summary
	email.Category = &category
	email.Priority = priorityFor(category)
	email.NeedsReply = needsReply(category)
	email.Status = model.StatusProcessed
	email.ProcessedAt = &processedAt
	email.Error = ""

	if email.NeedsReply {
		reply, err := e.backend.DraftReply(ctx, text, e.opts)
		if err != nil {
			logger.Warn("drafting reply failed", zap.Error(err))
		} else if reply != "" {
			email.SuggestedReply = &reply
		}
	}

	metrics.EmailsEnriched.WithLabelValues(string(model.StatusProcessed)).Inc()
	logger.Debug("email enriched", zap.String("category", string(category)))
	return email
}

func (e *Enricher) fail(logger *zap.Logger, email model.EnrichedEmail, err error) model.EnrichedEmail {
	processedAt := e.now()
	email.Summary = nil
	email.Category = nil
	email.SuggestedReply = nil
	email.NeedsReply = false
	email.Status = model.StatusError
	email.ProcessedAt = &processedAt
	email.Error = err.Error()

	metrics.EmailsEnriched.WithLabelValues(string(model.StatusError)).Inc()
	logger.Warn("enrichment failed", zap.Error(err))
	return email
}

// promptText renders the parts of an email the backend sees.
func promptText(e model.NormalizedEmail) string {
	var sb strings.Builder
	sb.WriteString("Subject: ")
	sb.WriteString(e.Subject)
	sb.WriteString("\n")
	if e.From != nil {
		sb.WriteString("From: ")
		sb.WriteString(e.From.String())
		sb.WriteString("\n")
	}
	sb.WriteString("\n")
	sb.WriteString(truncateRunes(e.Body, maxPromptBody))
	return sb.String()
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n])
}

func priorityFor(c model.Category) int {
	switch c {
	case model.CategoryOffer, model.CategoryInterview:
		return 3
	case model.CategoryFollowUp:
		return 2
	case model.CategoryRejection:
		return 1
	default:
		return 0
	}
}

func needsReply(c model.Category) bool {
	switch c {
	case model.CategoryInterview, model.CategoryOffer, model.CategoryFollowUp:
		return true
	}
	return false
}
