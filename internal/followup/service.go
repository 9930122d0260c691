// Package followup sends drafted replies to the sender of the original email.
package followup

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/nhle/mailtriage/internal/metrics"
	"github.com/nhle/mailtriage/internal/model"
	"github.com/nhle/mailtriage/internal/source/email"
	"github.com/nhle/mailtriage/internal/store"
)

// implicitTLSPort is the SMTP submission port that expects TLS from the
// first byte.
const implicitTLSPort = 465

// ErrNotDraft is returned when sending a follow-up that already left the
// draft state.
var ErrNotDraft = errors.New("follow-up is not a draft")

// SecretSource resolves the mailbox secret of an account.
type SecretSource interface {
	AccountSecret(accountID string) (string, error)
}

// Service sends follow-up drafts over SMTP and records the outcome.
type Service struct {
	store   store.Store
	secrets SecretSource
	sender  email.Sender
	logger  *zap.Logger
	now     func() time.Time
}

// NewService creates a Service.
func NewService(s store.Store, secrets SecretSource, sender email.Sender, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		store:   s,
		secrets: secrets,
		sender:  sender,
		logger:  logger,
		now:     time.Now,
	}
}

// Send delivers the follow-up draft identified by id and marks it sent.
// A delivery failure marks the draft as error and is returned to the
// caller. Lookup failures leave the draft untouched.
func (s *Service) Send(ctx context.Context, id string) (*model.FollowUp, error) {
	fu, err := s.store.GetFollowUp(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("loading follow-up %s: %w", id, err)
	}
	if fu.Status != model.FollowUpDraft {
		return nil, fmt.Errorf("sending follow-up %s (%s): %w", id, fu.Status, ErrNotDraft)
	}

	original, err := s.store.GetEmail(ctx, fu.EmailID)
	if err != nil {
		return nil, fmt.Errorf("loading email %s: %w", fu.EmailID, err)
	}
	account, err := s.store.GetAccount(ctx, original.AccountID)
	if err != nil {
		return nil, fmt.Errorf("loading account %s: %w", original.AccountID, err)
	}
	secret, err := s.secrets.AccountSecret(account.ID)
	if err != nil {
		return nil, fmt.Errorf("loading secret for account %s: %w", account.ID, err)
	}

	logger := s.logger.With(
		zap.String("follow_up_id", fu.ID),
		zap.String("email_id", original.ID),
		zap.Object("account", account),
	)

	sendErr := s.deliver(ctx, account, secret, original.NormalizedEmail, fu.Content)
	if sendErr != nil {
		metrics.FollowUpsSent.WithLabelValues(string(model.FollowUpError)).Inc()
		logger.Warn("sending follow-up failed", zap.Error(sendErr))
		if err := s.store.UpdateFollowUpStatus(ctx, fu.ID, model.FollowUpError, sendErr.Error()); err != nil {
			logger.Error("recording follow-up failure", zap.Error(err))
		}
		return nil, fmt.Errorf("sending follow-up %s: %w", fu.ID, sendErr)
	}

	metrics.FollowUpsSent.WithLabelValues(string(model.FollowUpSent)).Inc()
	if err := s.store.UpdateFollowUpStatus(ctx, fu.ID, model.FollowUpSent, ""); err != nil {
		return nil, fmt.Errorf("marking follow-up %s sent: %w", fu.ID, err)
	}
	logger.Info("follow-up sent")

	return s.store.GetFollowUp(ctx, fu.ID)
}

func (s *Service) deliver(
	ctx context.Context,
	account *model.MailAccount,
	secret string,
	original model.NormalizedEmail,
	body string,
) error {
	msg, rcpt, err := email.ComposeReply(account.Address, original, body, s.now())
	if err != nil {
		return err
	}

	cfg := email.SMTPConfig{
		Host:     account.SMTPHost,
		Port:     account.SMTPPort,
		Username: account.Address,
		Password: secret,
		TLS:      account.SMTPPort == implicitTLSPort,
	}
	return s.sender.Send(ctx, cfg, account.Address, []string{rcpt}, msg)
}
