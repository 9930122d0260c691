package email

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"github.com/emersion/go-message/mail"

	"github.com/nhle/mailtriage/internal/model"
)

// SMTPConfig holds the SMTP server settings for sending replies.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string

	// TLS selects implicit TLS; otherwise STARTTLS is used.
	TLS bool

	DialTimeout time.Duration
	// SendTimeout bounds the whole exchange after the dial, including when
	// the caller's context has no deadline.
	SendTimeout time.Duration
}

const (
	defaultSMTPDialTimeout = 30 * time.Second
	defaultSMTPSendTimeout = 2 * time.Minute
)

// Addr returns host:port.
func (c SMTPConfig) Addr() string {
	return c.Host + ":" + strconv.Itoa(c.Port)
}

// ErrNoRecipient is returned when the original message has no sender to
// reply to.
var ErrNoRecipient = errors.New("original message has no sender address")

// Sender delivers a composed message.
type Sender interface {
	Send(ctx context.Context, cfg SMTPConfig, from string, to []string, msg []byte) error
}

// ComposeReply builds an RFC 5322 reply to original, threaded through
// In-Reply-To and References when the original carries a Message-Id. It
// returns the message and the recipient address.
func ComposeReply(from string, original model.NormalizedEmail, body string, now time.Time) ([]byte, string, error) {
	if original.From == nil || original.From.Address == "" {
		return nil, "", ErrNoRecipient
	}

	subject := original.Subject
	if !strings.HasPrefix(strings.ToLower(subject), "re:") {
		subject = "Re: " + subject
	}

	var h mail.Header
	h.SetDate(now)
	h.SetAddressList("From", []*mail.Address{{Address: from}})
	h.SetAddressList("To", []*mail.Address{{Name: original.From.Name, Address: original.From.Address}})
	h.SetSubject(subject)
	if err := h.GenerateMessageID(); err != nil {
		return nil, "", fmt.Errorf("generating Message-Id: %w", err)
	}
	if id := original.MessageID(); id != "" {
		if !strings.HasPrefix(id, "<") {
			id = "<" + id + ">"
		}
		h.Set("In-Reply-To", id)
		h.Set("References", id)
	}
	h.SetContentType("text/plain", map[string]string{"charset": "utf-8"})

	var buf bytes.Buffer
	w, err := mail.CreateSingleInlineWriter(&buf, h)
	if err != nil {
		return nil, "", fmt.Errorf("creating message writer: %w", err)
	}
	if _, err := io.WriteString(w, body); err != nil {
		return nil, "", fmt.Errorf("writing reply body: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("closing reply body: %w", err)
	}

	return buf.Bytes(), original.From.Address, nil
}

// SMTPSender sends mail with PLAIN auth over implicit TLS or STARTTLS.
type SMTPSender struct{}

// Send implements Sender.
func (SMTPSender) Send(ctx context.Context, cfg SMTPConfig, from string, to []string, msg []byte) error {
	dialTimeout := cfg.DialTimeout
	if dialTimeout <= 0 {
		dialTimeout = defaultSMTPDialTimeout
	}
	sendTimeout := cfg.SendTimeout
	if sendTimeout <= 0 {
		sendTimeout = defaultSMTPSendTimeout
	}
	addr := cfg.Addr()

	dialer := &net.Dialer{Timeout: dialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("dial to %s: %w", addr, err)
	}
	if err := conn.SetDeadline(commandDeadline(ctx, sendTimeout)); err != nil {
		conn.Close()
		return fmt.Errorf("setting deadline on %s: %w", addr, err)
	}

	tlsConfig := &tls.Config{ServerName: cfg.Host}
	if cfg.TLS {
		tlsConn := tls.Client(conn, tlsConfig)
		if err := tlsConn.HandshakeContext(ctx); err != nil {
			conn.Close()
			return fmt.Errorf("TLS handshake with %s: %w", addr, err)
		}
		conn = tlsConn
	}

	client, err := smtp.NewClient(conn, cfg.Host)
	if err != nil {
		conn.Close()
		return fmt.Errorf("creating SMTP client: %w", err)
	}
	defer client.Close()

	if !cfg.TLS {
		if err := client.StartTLS(tlsConfig); err != nil {
			return fmt.Errorf("SMTP STARTTLS: %w", err)
		}
	}

	auth := smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)
	if err := client.Auth(auth); err != nil {
		return fmt.Errorf("SMTP auth: %w", err)
	}

	return sendMailViaSMTPClient(client, from, to, msg)
}

// sendMailViaSMTPClient sends a message using an already-authenticated
// SMTP client.
func sendMailViaSMTPClient(client *smtp.Client, from string, to []string, msg []byte) error {
	if err := client.Mail(from); err != nil {
		return fmt.Errorf("SMTP MAIL FROM: %w", err)
	}

	for _, rcpt := range to {
		if err := client.Rcpt(rcpt); err != nil {
			return fmt.Errorf("SMTP RCPT TO: %w", err)
		}
	}

	writer, err := client.Data()
	if err != nil {
		return fmt.Errorf("SMTP DATA: %w", err)
	}

	if _, err := writer.Write(msg); err != nil {
		return fmt.Errorf("writing email body: %w", err)
	}

	if err := writer.Close(); err != nil {
		return fmt.Errorf("closing email body: %w", err)
	}

	return client.Quit()
}
