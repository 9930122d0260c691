package main

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/nhle/mailtriage/internal/ai"
	"github.com/nhle/mailtriage/internal/credential"
	"github.com/nhle/mailtriage/internal/dedup"
	"github.com/nhle/mailtriage/internal/events"
	"github.com/nhle/mailtriage/internal/logging"
	"github.com/nhle/mailtriage/internal/model"
	"github.com/nhle/mailtriage/internal/source/email"
	"github.com/nhle/mailtriage/internal/store"
	"github.com/nhle/mailtriage/internal/sync"
)

// app holds the dependencies shared by every subcommand.
type app struct {
	cfg     *model.AppConfig
	logger  *zap.Logger
	store   *store.SQLiteStore
	creds   *credential.Store
	closers []func()
}

func newApp(flags *rootFlags) (*app, error) {
	path := flags.configPath
	if path == "" {
		path = model.DefaultConfigPath()
	}
	cfg, err := model.LoadConfig(path)
	if err != nil {
		return nil, err
	}
	if flags.logLevel != "" {
		cfg.Log.Level = flags.logLevel
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Development)
	if err != nil {
		return nil, err
	}

	s, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return nil, err
	}

	creds, err := credential.Open(cfg.Credentials.FileDir)
	if err != nil {
		_ = s.Close()
		return nil, err
	}

	a := &app{cfg: cfg, logger: logger, store: s, creds: creds}
	a.closers = append(a.closers, func() { _ = s.Close() }, func() { _ = logger.Sync() })
	return a, nil
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func (a *app) aiClient() *ai.Client {
	return ai.NewClient(ai.Config{
		Host:              a.cfg.AI.Host,
		Model:             a.cfg.AI.Model,
		Timeout:           a.cfg.AI.Timeout(),
		RequestsPerSecond: a.cfg.AI.RequestsPerSecond,
	})
}

func (a *app) claimer(ctx context.Context) dedup.Claimer {
	if a.cfg.Redis.Addr == "" {
		return dedup.NopClaimer{}
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     a.cfg.Redis.Addr,
		Password: a.cfg.Redis.Password,
		DB:       a.cfg.Redis.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		a.logger.Warn("redis unavailable, claims fail open", zap.String("addr", a.cfg.Redis.Addr), zap.Error(err))
	}
	a.closers = append(a.closers, func() { _ = rdb.Close() })
	ttl := time.Duration(a.cfg.Redis.ClaimTTLSec) * time.Second
	return dedup.NewRedisClaimer(rdb, ttl, a.logger)
}

func (a *app) publisher() events.Publisher {
	if a.cfg.AMQP.URL == "" {
		return events.NopPublisher{}
	}
	p, err := events.NewAMQPPublisher(a.cfg.AMQP.URL, a.cfg.AMQP.Exchange)
	if err != nil {
		a.logger.Warn("event publishing disabled", zap.Error(err))
		return events.NopPublisher{}
	}
	a.closers = append(a.closers, p.Close)
	return p
}

func (a *app) syncer(ctx context.Context) *sync.Syncer {
	client := a.aiClient()
	return sync.NewSyncer(sync.Options{
		Store:       a.store,
		Connector:   &email.Dialer{Logger: a.logger},
		Secrets:     a.creds,
		Enricher:    ai.NewEnricher(client, client.Model(), a.cfg.AI.Temperature, a.logger),
		Claimer:     a.claimer(ctx),
		Publisher:   a.publisher(),
		Concurrency: a.cfg.AI.Concurrency,
		IMAP: sync.IMAPSettings{
			DialTimeout:    time.Duration(a.cfg.IMAP.DialTimeoutSec) * time.Second,
			CommandTimeout: time.Duration(a.cfg.IMAP.CommandTimeoutSec) * time.Second,
			StartTLS:       !a.cfg.IMAP.SSL,
		},
		Logger: a.logger,
	})
}

// resolveAccount finds an account by ID or, failing that, by address.
func (a *app) resolveAccount(ctx context.Context, ref string) (*model.MailAccount, error) {
	account, err := a.store.GetAccount(ctx, ref)
	if err == nil {
		return account, nil
	}
	accounts, listErr := a.store.ListAccounts(ctx)
	if listErr != nil {
		return nil, listErr
	}
	for i := range accounts {
		if accounts[i].Address == ref {
			return &accounts[i], nil
		}
	}
	return nil, fmt.Errorf("account %q: %w", ref, store.ErrNotFound)
}
