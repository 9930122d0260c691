package email

import (
	"bytes"
	"context"
	"io"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/emersion/go-message/mail"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/mailtriage/internal/model"
)

func TestComposeReply(t *testing.T) {
	original := model.NormalizedEmail{
		Subject: "Interview next week",
		From:    &model.Address{Name: "Recruiter", Address: "hr@example.com"},
		Headers: map[string]string{"Message-Id": "<orig@example.com>"},
	}
	now := time.Date(2025, 1, 10, 9, 0, 0, 0, time.UTC)

	msg, rcpt, err := ComposeReply("me@example.com", original, "Thanks, Tuesday works.", now)
	require.NoError(t, err)
	assert.Equal(t, "hr@example.com", rcpt)

	r, err := mail.CreateReader(bytes.NewReader(msg))
	require.NoError(t, err)

	subject, err := r.Header.Subject()
	require.NoError(t, err)
	assert.Equal(t, "Re: Interview next week", subject)
	assert.Equal(t, "<orig@example.com>", r.Header.Get("In-Reply-To"))
	assert.Equal(t, "<orig@example.com>", r.Header.Get("References"))
	assert.NotEmpty(t, r.Header.Get("Message-Id"))

	to, err := r.Header.AddressList("To")
	require.NoError(t, err)
	require.Len(t, to, 1)
	assert.Equal(t, "hr@example.com", to[0].Address)

	date, err := r.Header.Date()
	require.NoError(t, err)
	assert.True(t, date.Equal(now))

	part, err := r.NextPart()
	require.NoError(t, err)
	body, err := io.ReadAll(part.Body)
	require.NoError(t, err)
	assert.Equal(t, "Thanks, Tuesday works.", string(body))
}

func TestComposeReplyKeepsExistingPrefix(t *testing.T) {
	original := model.NormalizedEmail{
		Subject: "RE: status",
		From:    &model.Address{Address: "a@example.com"},
	}

	msg, _, err := ComposeReply("me@example.com", original, "ok", time.Now())
	require.NoError(t, err)

	r, err := mail.CreateReader(bytes.NewReader(msg))
	require.NoError(t, err)
	subject, _ := r.Header.Subject()
	assert.Equal(t, "RE: status", subject)
	assert.Empty(t, r.Header.Get("In-Reply-To"))
}

func TestComposeReplyWithoutSender(t *testing.T) {
	_, _, err := ComposeReply("me@example.com", model.NormalizedEmail{Subject: "x"}, "ok", time.Now())
	assert.ErrorIs(t, err, ErrNoRecipient)
}

func TestSMTPSenderTimesOutOnSilentServer(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })

	// Accept and never send a greeting.
	accepted := make(chan net.Conn, 1)
	go func() {
		conn, err := ln.Accept()
		if err == nil {
			accepted <- conn
		}
	}()
	t.Cleanup(func() {
		select {
		case conn := <-accepted:
			_ = conn.Close()
		default:
		}
	})

	addr := ln.Addr().(*net.TCPAddr)
	cfg := SMTPConfig{
		Host:        "127.0.0.1",
		Port:        addr.Port,
		SendTimeout: 200 * time.Millisecond,
	}
	require.Equal(t, "127.0.0.1:"+strconv.Itoa(addr.Port), cfg.Addr())

	done := make(chan error, 1)
	go func() {
		done <- SMTPSender{}.Send(context.Background(), cfg, "me@example.com", []string{"you@example.com"}, []byte("hi"))
	}()

	select {
	case err := <-done:
		require.Error(t, err)
		var netErr net.Error
		if assert.ErrorAs(t, err, &netErr) {
			assert.True(t, netErr.Timeout())
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Send did not time out against a silent server")
	}
}
