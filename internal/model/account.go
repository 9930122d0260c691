package model

import (
	"time"

	"go.uber.org/zap/zapcore"
)

// Default ports for newly registered accounts.
const (
	DefaultIMAPPort = 993
	DefaultSMTPPort = 587
)

// MailAccount is a user's mailbox registration. Secret is never persisted in
// the database and never written to logs.
type MailAccount struct {
	ID        string    `json:"id" db:"id"`
	OwnerID   string    `json:"owner_id" db:"owner_id"`
	Address   string    `json:"address" db:"address"`
	IMAPHost  string    `json:"imap_host" db:"imap_host"`
	IMAPPort  int       `json:"imap_port" db:"imap_port"`
	SMTPHost  string    `json:"smtp_host" db:"smtp_host"`
	SMTPPort  int       `json:"smtp_port" db:"smtp_port"`
	Mailbox   string    `json:"mailbox" db:"mailbox"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	Secret string `json:"-" db:"-"`
}

// MarshalLogObject implements zapcore.ObjectMarshaler, omitting Secret.
func (a MailAccount) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddString("id", a.ID)
	enc.AddString("address", a.Address)
	enc.AddString("imap_host", a.IMAPHost)
	enc.AddInt("imap_port", a.IMAPPort)
	return nil
}

// ApplyDefaults fills unset ports and mailbox.
func (a *MailAccount) ApplyDefaults() {
	if a.IMAPPort == 0 {
		a.IMAPPort = DefaultIMAPPort
	}
	if a.SMTPPort == 0 {
		a.SMTPPort = DefaultSMTPPort
	}
	if a.Mailbox == "" {
		a.Mailbox = "INBOX"
	}
}
