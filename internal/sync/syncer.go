package sync

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/nhle/mailtriage/internal/dedup"
	"github.com/nhle/mailtriage/internal/events"
	"github.com/nhle/mailtriage/internal/metrics"
	"github.com/nhle/mailtriage/internal/model"
	"github.com/nhle/mailtriage/internal/source"
	"github.com/nhle/mailtriage/internal/source/email"
	"github.com/nhle/mailtriage/internal/store"
)

// SecretSource resolves the mailbox secret of an account.
type SecretSource interface {
	AccountSecret(accountID string) (string, error)
}

// Enricher turns a pending email into a processed or errored one.
type Enricher interface {
	Enrich(ctx context.Context, e model.EnrichedEmail) model.EnrichedEmail
}

// releaseTimeout bounds giving up a claim after the pass context ended.
const releaseTimeout = 5 * time.Second

// IMAPSettings are the session parameters not stored on an account.
type IMAPSettings struct {
	DialTimeout    time.Duration
	CommandTimeout time.Duration
	StartTLS       bool
}

// Options configures a Syncer. Claimer and Publisher may be nil.
type Options struct {
	Store       store.Store
	Connector   email.Connector
	Secrets     SecretSource
	Enricher    Enricher
	Claimer     dedup.Claimer
	Publisher   events.Publisher
	Concurrency int
	IMAP        IMAPSettings
	Logger      *zap.Logger
}

// Syncer runs fetch passes: fetch, dedup, enrich, persist.
type Syncer struct {
	store       store.Store
	connector   email.Connector
	secrets     SecretSource
	enricher    Enricher
	claimer     dedup.Claimer
	publisher   events.Publisher
	concurrency int
	imap        IMAPSettings
	logger      *zap.Logger
}

// NewSyncer creates a Syncer from opts.
func NewSyncer(opts Options) *Syncer {
	if opts.Claimer == nil {
		opts.Claimer = dedup.NopClaimer{}
	}
	if opts.Publisher == nil {
		opts.Publisher = events.NopPublisher{}
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Syncer{
		store:       opts.Store,
		connector:   opts.Connector,
		secrets:     opts.Secrets,
		enricher:    opts.Enricher,
		claimer:     opts.Claimer,
		publisher:   opts.Publisher,
		concurrency: opts.Concurrency,
		imap:        opts.IMAP,
		logger:      opts.Logger,
	}
}

// FetchAndEnrich fetches messages for account, enriches the ones not seen
// before and stores them. It returns the stored record of every fetched
// message in fetch order; messages that were already settled are returned
// as stored, without being enriched again.
//
// Validation, connection, authentication, mailbox and search errors abort
// the pass. Later failures only drop the affected message.
func (s *Syncer) FetchAndEnrich(
	ctx context.Context,
	account model.MailAccount,
	opts source.FetchOptions,
) ([]model.EnrichedEmail, error) {
	logger := s.logger.With(zap.Object("account", account))

	if _, err := email.BuildSearchCriteria(opts.FromDate, opts.ToDate); err != nil {
		return nil, err
	}

	secret, err := s.accountSecret(account)
	if err != nil {
		return nil, err
	}

	mb, err := s.connector.Connect(ctx, source.FetchConfig{
		Host:           account.IMAPHost,
		Username:       account.Address,
		Password:       secret,
		Port:           account.IMAPPort,
		Mailbox:        account.Mailbox,
		StartTLS:       s.imap.StartTLS,
		DialTimeout:    s.imap.DialTimeout,
		CommandTimeout: s.imap.CommandTimeout,
	})
	if err != nil {
		return nil, err
	}
	defer mb.Disconnect(ctx)

	fetched, err := email.FetchBatch(ctx, mb, opts, logger)
	if err != nil {
		return nil, err
	}
	mb.Disconnect(ctx)

	records := make([]model.EnrichedEmail, len(fetched))
	var pending []int
	for i, msg := range fetched {
		rec, needsEnrichment, ok := s.prepare(ctx, logger, account.ID, msg)
		if !ok {
			continue
		}
		records[i] = rec
		if needsEnrichment {
			pending = append(pending, i)
		}
	}

	var g errgroup.Group
	g.SetLimit(s.concurrency)
	for _, i := range pending {
		g.Go(func() error {
			records[i] = s.enricher.Enrich(ctx, records[i])
			return nil
		})
	}
	_ = g.Wait()

	// Results produced under a cancelled context are not persisted; the
	// rows stay pending and are picked up by the next pass.
	if err := ctx.Err(); err != nil {
		for _, i := range pending {
			s.releaseClaim(ctx, account.ID, records[i].UID)
		}
		return nil, err
	}

	for _, i := range pending {
		if !s.persist(ctx, logger, &records[i]) {
			s.releaseClaim(ctx, account.ID, records[i].UID)
			records[i] = model.EnrichedEmail{}
		}
	}

	out := make([]model.EnrichedEmail, 0, len(records))
	for _, rec := range records {
		if rec.ID != "" {
			out = append(out, rec)
		}
	}

	logger.Info("fetch pass complete",
		zap.Int("fetched", len(fetched)),
		zap.Int("enriched", len(pending)),
		zap.Int("returned", len(out)),
	)
	return out, nil
}

func (s *Syncer) accountSecret(account model.MailAccount) (string, error) {
	if account.Secret != "" {
		return account.Secret, nil
	}
	if s.secrets == nil {
		return "", fmt.Errorf("no secret available for account %s", account.ID)
	}
	secret, err := s.secrets.AccountSecret(account.ID)
	if err != nil {
		return "", fmt.Errorf("loading secret for account %s: %w", account.ID, err)
	}
	return secret, nil
}

// prepare applies dedup to one fetched message. It returns the record to
// report, whether it still needs enrichment, and false if the message must
// be dropped from this pass.
func (s *Syncer) prepare(
	ctx context.Context,
	logger *zap.Logger,
	accountID string,
	msg model.NormalizedEmail,
) (model.EnrichedEmail, bool, bool) {
	logger = logger.With(zap.String("uid", msg.UID))

	exists, err := s.store.EmailExists(ctx, accountID, msg.UID)
	if err != nil {
		logger.Warn("dedup lookup failed", zap.Error(err))
		return model.EnrichedEmail{}, false, false
	}

	rec := model.NewPendingEmail(accountID, msg)
	if exists {
		stored, err := s.store.FindEmailByUID(ctx, accountID, msg.UID)
		if err != nil {
			logger.Warn("loading stored email failed", zap.Error(err))
			return model.EnrichedEmail{}, false, false
		}
		if stored.Status.Settled() {
			metrics.MessagesSkipped.WithLabelValues("duplicate").Inc()
			return *stored, false, true
		}
		rec.ID = stored.ID
		rec.CreatedAt = stored.CreatedAt
	}

	if !s.claimer.Claim(ctx, accountID, msg.UID) {
		metrics.MessagesSkipped.WithLabelValues("claimed").Inc()
		return model.EnrichedEmail{}, false, false
	}

	if err := s.store.UpsertEmail(ctx, &rec); err != nil {
		logger.Warn("storing pending email failed", zap.Error(err))
		s.releaseClaim(ctx, accountID, msg.UID)
		return model.EnrichedEmail{}, false, false
	}
	return rec, true, true
}

// releaseClaim gives up the claim on a message that was not stored as
// settled. It runs even when ctx is already cancelled.
func (s *Syncer) releaseClaim(ctx context.Context, accountID, uid string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), releaseTimeout)
	defer cancel()
	s.claimer.Release(ctx, accountID, uid)
}

// persist stores an enriched record, drafts its follow-up and publishes the
// event. It reports whether the record was stored.
func (s *Syncer) persist(ctx context.Context, logger *zap.Logger, rec *model.EnrichedEmail) bool {
	logger = logger.With(zap.String("uid", rec.UID))

	if err := s.store.UpsertEmail(ctx, rec); err != nil {
		logger.Warn("storing enriched email failed", zap.Error(err))
		return false
	}

	if rec.SuggestedReply != nil {
		s.draftFollowUp(ctx, logger, rec)
	}

	if err := s.publisher.Publish(ctx, events.RoutingKeyEmailEnriched, events.NewEmailEnriched(*rec)); err != nil {
		logger.Warn("publishing event failed", zap.Error(err))
	}
	return true
}

func (s *Syncer) draftFollowUp(ctx context.Context, logger *zap.Logger, rec *model.EnrichedEmail) {
	existing, err := s.store.ListFollowUps(ctx, rec.ID)
	if err != nil {
		logger.Warn("listing follow-ups failed", zap.Error(err))
		return
	}
	if len(existing) > 0 {
		return
	}
	if _, err := s.store.CreateFollowUp(ctx, rec.ID, *rec.SuggestedReply); err != nil {
		logger.Warn("creating follow-up draft failed", zap.Error(err))
	}
}
