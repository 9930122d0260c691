package source

import (
	"errors"
	"fmt"
	"strconv"
	"time"
)

// Default values for fetch configuration and inputs.
const (
	DefaultPort      = 993
	DefaultMailbox   = "INBOX"
	DefaultMaxEmails = 10
)

// FetchConfig identifies the mailbox a session connects to.
type FetchConfig struct {
	Host     string
	Username string
	Password string
	Port     int
	Mailbox  string

	// StartTLS upgrades a plain connection instead of using implicit TLS.
	StartTLS bool

	// DialTimeout bounds connection establishment.
	DialTimeout time.Duration

	// CommandTimeout bounds each IMAP command once connected.
	CommandTimeout time.Duration
}

// WithDefaults returns a copy with zero fields replaced by defaults.
func (c FetchConfig) WithDefaults() FetchConfig {
	if c.Port == 0 {
		c.Port = DefaultPort
	}
	if c.Mailbox == "" {
		c.Mailbox = DefaultMailbox
	}
	if c.DialTimeout <= 0 {
		c.DialTimeout = 30 * time.Second
	}
	if c.CommandTimeout <= 0 {
		c.CommandTimeout = 60 * time.Second
	}
	return c
}

// Addr returns host:port.
func (c FetchConfig) Addr() string {
	return c.Host + ":" + strconv.Itoa(c.Port)
}

// FetchOptions are the per-call inputs of a fetch pass. Dates use the
// DD-Mon-YYYY form, e.g. "10-Jan-2025"; empty means unbounded.
type FetchOptions struct {
	FromDate   string
	ToDate     string
	MaxEmails  int
	MarkAsRead bool
}

// Limit returns MaxEmails, or the default when unset.
func (o FetchOptions) Limit() int {
	if o.MaxEmails <= 0 {
		return DefaultMaxEmails
	}
	return o.MaxEmails
}

// ValidationError reports a caller input that was rejected before any I/O.
type ValidationError struct {
	Field    string
	Value    string
	Expected string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s %q: expected %s", e.Field, e.Value, e.Expected)
}

// ConnectionError reports a failure to reach the mail server.
type ConnectionError struct {
	Addr string
	Err  error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connecting to %s: %v", e.Addr, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// AuthError indicates that the server rejected the credentials.
type AuthError struct {
	Username string
	Err      error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("authentication failed for %s: %v", e.Username, e.Err)
}

func (e *AuthError) Unwrap() error { return e.Err }

// MailboxError indicates the mailbox could not be selected.
type MailboxError struct {
	Mailbox string
	Err     error
}

func (e *MailboxError) Error() string {
	return fmt.Sprintf("selecting mailbox %s: %v", e.Mailbox, e.Err)
}

func (e *MailboxError) Unwrap() error { return e.Err }

// SearchError carries the criteria and the server's raw status text when a
// search is rejected.
type SearchError struct {
	Criteria string
	Response string
	Err      error
}

func (e *SearchError) Error() string {
	if e.Response != "" {
		return fmt.Sprintf("search %s rejected: %s", e.Criteria, e.Response)
	}
	return fmt.Sprintf("search %s failed: %v", e.Criteria, e.Err)
}

func (e *SearchError) Unwrap() error { return e.Err }

// FetchError reports a failure to retrieve a single message.
type FetchError struct {
	SeqNum uint32
	Err    error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetching message %d: %v", e.SeqNum, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// ParseError reports a fetch response that could not be interpreted.
type ParseError struct {
	SeqNum uint32
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parsing message %d: %s", e.SeqNum, e.Reason)
}

// IsAuthError reports whether err (or any error in its chain) is an AuthError.
func IsAuthError(err error) bool {
	var authErr *AuthError
	return errors.As(err, &authErr)
}

// IsValidationError reports whether err wraps a ValidationError.
func IsValidationError(err error) bool {
	var vErr *ValidationError
	return errors.As(err, &vErr)
}

// IsConnectionError reports whether err wraps a ConnectionError.
func IsConnectionError(err error) bool {
	var cErr *ConnectionError
	return errors.As(err, &cErr)
}

// IsSearchError reports whether err wraps a SearchError.
func IsSearchError(err error) bool {
	var sErr *SearchError
	return errors.As(err, &sErr)
}
