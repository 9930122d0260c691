package sync

import (
	"context"
	"fmt"
	gosync "sync"
	"time"

	"go.uber.org/zap"

	"github.com/nhle/mailtriage/internal/model"
	"github.com/nhle/mailtriage/internal/source"
)

// SyncState represents the current state of an account sync.
type SyncState int

const (
	SyncIdle SyncState = iota
	SyncRunning
	SyncError
)

func (s SyncState) String() string {
	switch s {
	case SyncRunning:
		return "running"
	case SyncError:
		return "error"
	default:
		return "idle"
	}
}

// SyncStatus holds the sync state for a single account.
type SyncStatus struct {
	AccountID string
	Address   string
	State     SyncState
	LastSync  time.Time
	Error     error
}

// SyncResult is published when a fetch pass for an account completes.
type SyncResult struct {
	AccountID string
	Emails    []model.EnrichedEmail
	Error     error
	// AuthFailed is set when the server rejected the account's credentials.
	AuthFailed bool
}

// Fetcher runs a single fetch pass for an account.
type Fetcher interface {
	FetchAndEnrich(ctx context.Context, account model.MailAccount, opts source.FetchOptions) ([]model.EnrichedEmail, error)
}

// PollerConfig configures a Poller.
type PollerConfig struct {
	Interval     time.Duration
	FetchTimeout time.Duration
	MaxEmails    int
	MarkAsRead   bool
	// LookbackDays bounds each pass to messages received in the last N days.
	// Zero searches the whole mailbox.
	LookbackDays int
}

const (
	defaultInterval     = 5 * time.Minute
	defaultFetchTimeout = 5 * time.Minute
)

type accountEntry struct {
	account model.MailAccount
	trigger chan struct{}
}

// Poller runs fetch passes for registered accounts on a fixed interval.
type Poller struct {
	fetcher  Fetcher
	cfg      PollerConfig
	logger   *zap.Logger
	accounts []*accountEntry
	statuses map[string]*SyncStatus
	resultCh chan SyncResult
	stopCh   chan struct{}
	wg       gosync.WaitGroup
	mu       gosync.Mutex
	running  bool
	now      func() time.Time
}

// NewPoller creates a Poller that uses f for each pass.
func NewPoller(f Fetcher, cfg PollerConfig, logger *zap.Logger) *Poller {
	if cfg.Interval <= 0 {
		cfg.Interval = defaultInterval
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = defaultFetchTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Poller{
		fetcher:  f,
		cfg:      cfg,
		logger:   logger,
		statuses: make(map[string]*SyncStatus),
		resultCh: make(chan SyncResult, 16),
		stopCh:   make(chan struct{}),
		now:      time.Now,
	}
}

// RegisterAccount adds an account to the poller. It must be called before
// Start.
func (p *Poller) RegisterAccount(account model.MailAccount) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.accounts = append(p.accounts, &accountEntry{
		account: account,
		trigger: make(chan struct{}, 1),
	})
	p.statuses[account.ID] = &SyncStatus{
		AccountID: account.ID,
		Address:   account.Address,
		State:     SyncIdle,
	}
}

// Start launches one polling goroutine per registered account. Each account
// is polled immediately and then on every interval until ctx is done or Stop
// is called.
func (p *Poller) Start(ctx context.Context) {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return
	}
	p.running = true
	entries := make([]*accountEntry, len(p.accounts))
	copy(entries, p.accounts)
	p.mu.Unlock()

	for _, entry := range entries {
		p.wg.Add(1)
		go p.pollAccount(ctx, entry)
	}
}

// Stop halts all polling goroutines and waits for in-flight passes to end.
func (p *Poller) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	close(p.stopCh)
	p.running = false
	p.mu.Unlock()

	p.wg.Wait()
}

// Results returns the channel on which completed passes are published.
// Results are dropped when nobody drains the channel.
func (p *Poller) Results() <-chan SyncResult {
	return p.resultCh
}

// Trigger requests an immediate pass for one account. It reports whether
// the account is registered.
func (p *Poller) Trigger(accountID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, entry := range p.accounts {
		if entry.account.ID == accountID {
			select {
			case entry.trigger <- struct{}{}:
			default:
				// A pass is already queued.
			}
			return true
		}
	}
	return false
}

// TriggerAll requests an immediate pass for every account.
func (p *Poller) TriggerAll() {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, entry := range p.accounts {
		select {
		case entry.trigger <- struct{}{}:
		default:
		}
	}
}

// Statuses returns the current sync status of every account in
// registration order.
func (p *Poller) Statuses() []SyncStatus {
	p.mu.Lock()
	defer p.mu.Unlock()

	statuses := make([]SyncStatus, 0, len(p.accounts))
	for _, entry := range p.accounts {
		statuses = append(statuses, *p.statuses[entry.account.ID])
	}
	return statuses
}

func (p *Poller) pollAccount(ctx context.Context, entry *accountEntry) {
	defer p.wg.Done()

	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	p.runPass(ctx, entry.account)

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.stopCh:
			return
		case <-ticker.C:
			p.runPass(ctx, entry.account)
		case <-entry.trigger:
			p.runPass(ctx, entry.account)
		}
	}
}

// runPass performs one fetch pass and publishes its result.
func (p *Poller) runPass(parent context.Context, account model.MailAccount) {
	p.setStatus(account.ID, SyncRunning, nil)

	ctx, cancel := context.WithTimeout(parent, p.cfg.FetchTimeout)
	defer cancel()

	emails, err := p.fetcher.FetchAndEnrich(ctx, account, p.fetchOptions())
	if err != nil {
		p.setStatus(account.ID, SyncError, err)

		result := SyncResult{AccountID: account.ID, Error: err}
		if source.IsAuthError(err) {
			result.AuthFailed = true
			result.Error = fmt.Errorf("%s: authentication failed, update the account secret: %w", account.Address, err)
		}
		p.logger.Warn("fetch pass failed",
			zap.String("account_id", account.ID),
			zap.Bool("auth_failed", result.AuthFailed),
			zap.Error(err),
		)
		p.sendResult(result)
		return
	}

	p.setStatus(account.ID, SyncIdle, nil)
	p.sendResult(SyncResult{AccountID: account.ID, Emails: emails})
}

func (p *Poller) fetchOptions() source.FetchOptions {
	opts := source.FetchOptions{
		MaxEmails:  p.cfg.MaxEmails,
		MarkAsRead: p.cfg.MarkAsRead,
	}
	if p.cfg.LookbackDays > 0 {
		opts.FromDate = p.now().AddDate(0, 0, -p.cfg.LookbackDays).Format("02-Jan-2006")
	}
	return opts
}

func (p *Poller) setStatus(accountID string, state SyncState, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	status, ok := p.statuses[accountID]
	if !ok {
		return
	}

	status.State = state
	status.Error = err
	if state == SyncIdle && err == nil {
		status.LastSync = p.now()
	}
}

// sendResult publishes a result without blocking the poller.
func (p *Poller) sendResult(r SyncResult) {
	select {
	case p.resultCh <- r:
	default:
	}
}
