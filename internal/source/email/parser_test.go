package email

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func crlf(s string) []byte {
	return []byte(strings.ReplaceAll(s, "\n", "\r\n"))
}

func TestParseSinglePart(t *testing.T) {
	raw := crlf(`From: "Ada Lovelace" <ada@example.com>
To: Bob <bob@example.com>
Subject: =?UTF-8?Q?Interview_invitation_=E2=9C=93?=
Date: Fri, 10 Jan 2025 09:30:00 +0100
Message-Id: <m1@example.com>
Content-Type: text/plain; charset=utf-8

We would like to invite you.
`)

	got := Parse(raw)
	require.Empty(t, got.Skipped)

	e := got.Email
	assert.Equal(t, "Interview invitation ✓", e.Subject)
	require.NotNil(t, e.From)
	assert.Equal(t, "Ada Lovelace", e.From.Name)
	assert.Equal(t, "ada@example.com", e.From.Address)
	require.NotNil(t, e.To)
	assert.Equal(t, "bob@example.com", e.To.Address)
	require.NotNil(t, e.ReceivedAt)
	assert.True(t, e.ReceivedAt.Equal(time.Date(2025, time.January, 10, 8, 30, 0, 0, time.UTC)))
	assert.Equal(t, "We would like to invite you.\r\n", e.Body)
	assert.Equal(t, "<m1@example.com>", e.MessageID())
}

func TestParseMultipartKeepsPlainTextOnly(t *testing.T) {
	raw := crlf(`From: hr@example.com
Subject: Offer
Content-Type: multipart/mixed; boundary="outer"

--outer
Content-Type: multipart/alternative; boundary="inner"

--inner
Content-Type: text/plain; charset=utf-8

Plain body.
--inner
Content-Type: text/html; charset=utf-8

<p>HTML body.</p>
--inner--
--outer
Content-Type: text/plain; charset=utf-8
Content-Disposition: attachment; filename="offer.txt"

Attached text.
--outer
Content-Type: text/plain; charset=utf-8

Second part.
--outer--
`)

	got := Parse(raw)
	assert.Empty(t, got.Skipped)
	assert.Contains(t, got.Email.Body, "Plain body.")
	assert.Contains(t, got.Email.Body, "Second part.")
	assert.NotContains(t, got.Email.Body, "HTML body")
	assert.NotContains(t, got.Email.Body, "Attached text")
}

func TestParseSkipsUndecodablePart(t *testing.T) {
	raw := crlf(`From: a@example.com
Subject: Mixed
Content-Type: multipart/mixed; boundary="b"

--b
Content-Type: text/plain; charset=utf-8
Content-Transfer-Encoding: base64

!!!not base64!!!
--b
Content-Type: text/plain; charset=utf-8

Readable part.
--b--
`)

	got := Parse(raw)
	assert.Contains(t, got.Email.Body, "Readable part.")
	require.Len(t, got.Skipped, 1)
	assert.Len(t, got.Skipped[0].Path, 1)
}

func TestParseDuplicateHeadersLastWins(t *testing.T) {
	raw := crlf(`From: a@example.com
X-Label: first
X-Label: second
Subject: s

body
`)

	got := Parse(raw)
	assert.Equal(t, "second", got.Email.Headers["X-Label"])
}

func TestParseMissingHeaders(t *testing.T) {
	raw := crlf(`Subject: no sender

body
`)

	got := Parse(raw)
	assert.Nil(t, got.Email.From)
	assert.Nil(t, got.Email.To)
	assert.Nil(t, got.Email.ReceivedAt)
	assert.Equal(t, "no sender", got.Email.Subject)
}

func TestParseUnparsableFromKeepsText(t *testing.T) {
	raw := crlf(`From: not an address
Subject: s

body
`)

	got := Parse(raw)
	require.NotNil(t, got.Email.From)
	assert.Equal(t, "not an address", got.Email.From.Address)
}

func TestParseInvalidUTF8IsReplaced(t *testing.T) {
	raw := append(crlf("Subject: s\nContent-Type: text/plain\n\n"), 'o', 'k', 0xff, '\n')

	got := Parse(raw)
	assert.Equal(t, "ok\uFFFD\n", got.Email.Body)
}

func TestParseDate(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want time.Time
	}{
		{"rfc5322", "Mon, 13 Jan 2025 10:00:00 +0000", time.Date(2025, 1, 13, 10, 0, 0, 0, time.UTC)},
		{"zone comment", "Mon, 13 Jan 2025 10:00:00 +0000 (UTC)", time.Date(2025, 1, 13, 10, 0, 0, 0, time.UTC)},
		{"no weekday", "13 Jan 2025 12:00:00 +0200", time.Date(2025, 1, 13, 10, 0, 0, 0, time.UTC)},
		{"no zone", "Mon, 13 Jan 2025 10:00:00", time.Date(2025, 1, 13, 10, 0, 0, 0, time.UTC)},
		{"no weekday no zone", "13 Jan 2025 10:00:00", time.Date(2025, 1, 13, 10, 0, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseDate(tt.in)
			require.NotNil(t, got)
			assert.True(t, got.Equal(tt.want), "got %s", got)
		})
	}
}

func TestParseDateInvalid(t *testing.T) {
	assert.Nil(t, ParseDate(""))
	assert.Nil(t, ParseDate("yesterday"))
	assert.Nil(t, ParseDate("2025-01-13T10:00:00Z"))
}

func TestFallbackBody(t *testing.T) {
	assert.Equal(t, "body", fallbackBody([]byte("A: b\r\n\r\nbody")))
	assert.Equal(t, "body", fallbackBody([]byte("A: b\n\nbody")))
	assert.Equal(t, "", fallbackBody([]byte("no separator")))
}
