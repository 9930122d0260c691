package email

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
	"go.uber.org/zap"

	"github.com/nhle/mailtriage/internal/source"
)

// logoutTimeout bounds the best-effort LOGOUT on disconnect.
const logoutTimeout = 5 * time.Second

// Session is one authenticated IMAP connection with a selected mailbox.
// Commands are serialized; a Session must not be shared between fetch passes.
type Session struct {
	mu             sync.Mutex
	conn           net.Conn
	client         *imapclient.Client
	mailbox        string
	commandTimeout time.Duration
	logger         *zap.Logger
}

// Connector opens sessions. It exists so callers can substitute a fake.
type Connector interface {
	Connect(ctx context.Context, cfg source.FetchConfig) (Mailbox, error)
}

// Mailbox is the set of session operations a fetch pass needs.
type Mailbox interface {
	Search(ctx context.Context, c Criteria) ([]uint32, error)
	FetchRaw(ctx context.Context, seqNum uint32) (*RawMessage, error)
	MarkSeen(ctx context.Context, seqNum uint32) error
	Disconnect(ctx context.Context)
}

// Dialer is the production Connector.
type Dialer struct {
	Logger    *zap.Logger
	TLSConfig *tls.Config
}

// Connect implements Connector.
func (d *Dialer) Connect(ctx context.Context, cfg source.FetchConfig) (Mailbox, error) {
	s, err := Connect(ctx, cfg, d.TLSConfig, d.Logger)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Connect dials the server, authenticates and selects the mailbox. The
// connection uses implicit TLS unless cfg.StartTLS is set.
// Any failure after the dial closes the connection before returning.
func Connect(
	ctx context.Context,
	cfg source.FetchConfig,
	tlsConfig *tls.Config,
	logger *zap.Logger,
) (*Session, error) {
	cfg = cfg.WithDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}
	addr := cfg.Addr()

	if tlsConfig == nil {
		tlsConfig = &tls.Config{ServerName: cfg.Host}
	}

	dialer := &net.Dialer{Timeout: cfg.DialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, &source.ConnectionError{Addr: addr, Err: err}
	}

	_ = conn.SetDeadline(commandDeadline(ctx, cfg.DialTimeout))

	var client *imapclient.Client
	if !cfg.StartTLS {
		tlsConn := tls.Client(conn, tlsConfig)
		if err := tlsConn.HandshakeContext(ctx); err != nil {
			conn.Close()
			return nil, &source.ConnectionError{Addr: addr, Err: fmt.Errorf("TLS handshake: %w", err)}
		}
		conn = tlsConn
		client = imapclient.New(conn, nil)
	} else {
		client, err = imapclient.NewStartTLS(conn, &imapclient.Options{TLSConfig: tlsConfig})
		if err != nil {
			conn.Close()
			return nil, &source.ConnectionError{Addr: addr, Err: fmt.Errorf("STARTTLS: %w", err)}
		}
	}

	if err := client.WaitGreeting(); err != nil {
		client.Close()
		return nil, &source.ConnectionError{Addr: addr, Err: fmt.Errorf("reading greeting: %w", err)}
	}

	s := &Session{
		conn:           conn,
		client:         client,
		mailbox:        cfg.Mailbox,
		commandTimeout: cfg.CommandTimeout,
		logger:         logger.With(zap.String("imap_addr", addr), zap.String("mailbox", cfg.Mailbox)),
	}

	if err := client.Login(cfg.Username, cfg.Password).Wait(); err != nil {
		s.Disconnect(ctx)
		if isTimeout(err) {
			return nil, &source.ConnectionError{Addr: addr, Err: err}
		}
		return nil, &source.AuthError{Username: cfg.Username, Err: err}
	}

	_ = conn.SetDeadline(commandDeadline(ctx, cfg.CommandTimeout))
	if _, err := client.Select(cfg.Mailbox, nil).Wait(); err != nil {
		s.Disconnect(ctx)
		return nil, &source.MailboxError{Mailbox: cfg.Mailbox, Err: err}
	}
	_ = conn.SetDeadline(time.Time{})

	s.logger.Debug("imap session established")
	return s, nil
}

// Disconnect logs out and closes the connection. It is safe to call more
// than once and never returns an error; failures are only logged.
func (s *Session) Disconnect(_ context.Context) {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.client == nil {
		return
	}

	_ = s.conn.SetDeadline(time.Now().Add(logoutTimeout))
	if err := s.client.Logout().Wait(); err != nil {
		s.logger.Debug("imap logout failed", zap.Error(err))
	}
	if err := s.client.Close(); err != nil {
		s.logger.Debug("imap close failed", zap.Error(err))
	}
	s.client = nil
}

// Search runs the criteria against the selected mailbox and returns message
// sequence numbers in server order.
func (s *Session) Search(ctx context.Context, c Criteria) ([]uint32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.begin(ctx); err != nil {
		return nil, &source.SearchError{Criteria: c.String(), Err: err}
	}
	defer s.end()

	data, err := s.client.Search(c.toIMAP(), nil).Wait()
	if err != nil {
		return nil, &source.SearchError{
			Criteria: c.String(),
			Response: serverResponse(err),
			Err:      err,
		}
	}
	return data.AllSeqNums(), nil
}

// FetchRaw retrieves the full message without setting \Seen, together with
// its UID.
func (s *Session) FetchRaw(ctx context.Context, seqNum uint32) (*RawMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.begin(ctx); err != nil {
		return nil, &source.FetchError{SeqNum: seqNum, Err: err}
	}
	defer s.end()

	bodySection := &imap.FetchItemBodySection{Peek: true}
	fetchCmd := s.client.Fetch(imap.SeqSetNum(seqNum), &imap.FetchOptions{
		UID:         true,
		BodySection: []*imap.FetchItemBodySection{bodySection},
	})
	defer fetchCmd.Close()

	msg := fetchCmd.Next()
	if msg == nil {
		if err := fetchCmd.Close(); err != nil {
			return nil, &source.FetchError{SeqNum: seqNum, Err: err}
		}
		return nil, &source.FetchError{SeqNum: seqNum, Err: errors.New("message not found")}
	}

	buf, err := msg.Collect()
	if err != nil {
		return nil, &source.FetchError{SeqNum: seqNum, Err: fmt.Errorf("collecting message data: %w", err)}
	}

	raw := buf.FindBodySection(bodySection)
	if raw == nil {
		return nil, &source.ParseError{SeqNum: seqNum, Reason: "response carried no body section"}
	}
	if buf.UID == 0 {
		return nil, &source.ParseError{SeqNum: seqNum, Reason: "response carried no UID"}
	}

	return &RawMessage{
		SeqNum: seqNum,
		UID:    strconv.FormatUint(uint64(buf.UID), 10),
		Body:   raw,
	}, nil
}

// MarkSeen adds the \Seen flag to a message.
func (s *Session) MarkSeen(ctx context.Context, seqNum uint32) error {
	return s.SetFlags(ctx, seqNum, []imap.Flag{imap.FlagSeen}, true)
}

// SetFlags adds or removes flags on a message.
func (s *Session) SetFlags(
	ctx context.Context,
	seqNum uint32,
	flags []imap.Flag,
	add bool,
) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.begin(ctx); err != nil {
		return err
	}
	defer s.end()

	op := imap.StoreFlagsAdd
	if !add {
		op = imap.StoreFlagsDel
	}

	storeCmd := s.client.Store(imap.SeqSetNum(seqNum), &imap.StoreFlags{
		Op:     op,
		Silent: true,
		Flags:  flags,
	}, nil)
	if err := storeCmd.Close(); err != nil {
		return fmt.Errorf("storing flags on message %d: %w", seqNum, err)
	}
	return nil
}

// begin checks the session is usable and arms the command deadline.
// Callers hold s.mu.
func (s *Session) begin(ctx context.Context) error {
	if s.client == nil {
		return errors.New("session is closed")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.conn.SetDeadline(commandDeadline(ctx, s.commandTimeout))
}

// end clears the deadline so the idle reader is not interrupted between
// commands.
func (s *Session) end() {
	if s.conn != nil {
		_ = s.conn.SetDeadline(time.Time{})
	}
}

// commandDeadline is now+timeout, or the context deadline if sooner.
func commandDeadline(ctx context.Context, timeout time.Duration) time.Time {
	deadline := time.Now().Add(timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		return d
	}
	return deadline
}

// serverResponse extracts the tagged status text from an IMAP error.
func serverResponse(err error) string {
	var imapErr *imap.Error
	if errors.As(err, &imapErr) {
		return fmt.Sprintf("%s %s", imapErr.Type, imapErr.Text)
	}
	return ""
}

func isTimeout(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
