package email

import (
	"bytes"
	"fmt"
	"io"
	"net/textproto"
	"regexp"
	"strings"
	"time"

	"github.com/emersion/go-message"
	_ "github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/mail"

	"github.com/nhle/mailtriage/internal/model"
)

// dateLayouts are tried in order; the first that parses wins. Layouts without
// a zone yield UTC.
var dateLayouts = []string{
	"Mon, 2 Jan 2006 15:04:05 -0700",
	"2 Jan 2006 15:04:05 -0700",
	"Mon, 2 Jan 2006 15:04:05",
	"2 Jan 2006 15:04:05",
}

// zoneComment matches a trailing "(UTC)"-style comment after the offset.
var zoneComment = regexp.MustCompile(`\s*\([^)]*\)\s*$`)

// PartError records a body part that was skipped during extraction.
type PartError struct {
	Path []int
	Err  error
}

func (e PartError) Error() string {
	return fmt.Sprintf("part %v: %v", e.Path, e.Err)
}

// Parsed is the outcome of parsing one raw message. Skipped lists body parts
// that could not be decoded; the email is still usable without them.
type Parsed struct {
	Email   model.NormalizedEmail
	Skipped []PartError
}

// Parse converts raw RFC 5322 bytes into a NormalizedEmail. It never fails:
// missing headers leave fields unset and undecodable parts are skipped.
func Parse(raw []byte) Parsed {
	entity, err := message.Read(bytes.NewReader(raw))
	if err != nil && !message.IsUnknownCharset(err) && !message.IsUnknownEncoding(err) {
		return Parsed{
			Email: model.NormalizedEmail{
				Headers: map[string]string{},
				Body:    fallbackBody(raw),
			},
			Skipped: []PartError{{Err: fmt.Errorf("reading message: %w", err)}},
		}
	}

	h := mail.Header{Header: entity.Header}
	email := model.NormalizedEmail{
		Headers: headerMap(entity.Header),
	}

	if subject, err := h.Subject(); err == nil {
		email.Subject = subject
	} else {
		email.Subject = h.Get("Subject")
	}
	email.From = firstAddress(h, "From")
	email.To = firstAddress(h, "To")
	email.ReceivedAt = ParseDate(h.Get("Date"))

	var skipped []PartError
	email.Body, skipped = extractBody(entity)

	return Parsed{Email: email, Skipped: skipped}
}

// ParseDate tries each supported layout and returns nil if none match.
func ParseDate(value string) *time.Time {
	value = strings.TrimSpace(zoneComment.ReplaceAllString(value, ""))
	if value == "" {
		return nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return &t
		}
	}
	return nil
}

// headerMap decodes every header field. Fields are visited top to bottom,
// so the last occurrence of a repeated name wins.
func headerMap(h message.Header) map[string]string {
	out := make(map[string]string, h.Len())
	fields := h.Fields()
	for fields.Next() {
		value, err := fields.Text()
		if err != nil {
			value = fields.Value()
		}
		out[textproto.CanonicalMIMEHeaderKey(fields.Key())] = value
	}
	return out
}

// firstAddress returns the first mailbox of an address-list header. When the
// list cannot be parsed the decoded header text is kept as the address.
func firstAddress(h mail.Header, key string) *model.Address {
	if !h.Has(key) {
		return nil
	}
	list, err := h.AddressList(key)
	if err == nil && len(list) > 0 {
		return &model.Address{Name: list[0].Name, Address: list[0].Address}
	}
	text, err := h.Text(key)
	if err != nil {
		text = h.Get(key)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	return &model.Address{Address: text}
}

// extractBody returns the concatenated text/plain parts of a multipart
// message, or the decoded payload of a single-part message.
func extractBody(entity *message.Entity) (string, []PartError) {
	mediaType, _, _ := entity.Header.ContentType()
	if !strings.HasPrefix(mediaType, "multipart/") {
		body, err := readPart(entity)
		if err != nil {
			return "", []PartError{{Err: err}}
		}
		return body, nil
	}

	var sb strings.Builder
	var skipped []PartError

	walkErr := entity.Walk(func(path []int, part *message.Entity, err error) error {
		if err != nil && !message.IsUnknownCharset(err) {
			skipped = append(skipped, PartError{Path: path, Err: err})
			return nil
		}
		if !isInlineText(part.Header) {
			return nil
		}
		body, readErr := readPart(part)
		if readErr != nil {
			skipped = append(skipped, PartError{Path: path, Err: readErr})
			return nil
		}
		sb.WriteString(body)
		return nil
	})
	if walkErr != nil {
		skipped = append(skipped, PartError{Err: fmt.Errorf("walking parts: %w", walkErr)})
	}

	return sb.String(), skipped
}

// isInlineText reports whether a part is text/plain and not an attachment.
// A part without Content-Type defaults to text/plain.
func isInlineText(h message.Header) bool {
	mediaType := "text/plain"
	if h.Get("Content-Type") != "" {
		t, _, err := h.ContentType()
		if err != nil {
			return false
		}
		mediaType = t
	}
	if mediaType != "text/plain" {
		return false
	}
	disp, _, err := h.ContentDisposition()
	if err != nil {
		return !strings.Contains(strings.ToLower(h.Get("Content-Disposition")), "attachment")
	}
	return !strings.EqualFold(disp, "attachment")
}

// readPart reads a part body already decoded by go-message and replaces any
// invalid UTF-8 sequences.
func readPart(part *message.Entity) (string, error) {
	body, err := io.ReadAll(part.Body)
	if err != nil {
		return "", fmt.Errorf("decoding body: %w", err)
	}
	return strings.ToValidUTF8(string(body), "\uFFFD"), nil
}

// fallbackBody returns the text after the first blank line of raw.
func fallbackBody(raw []byte) string {
	for _, sep := range [][]byte{[]byte("\r\n\r\n"), []byte("\n\n")} {
		if idx := bytes.Index(raw, sep); idx >= 0 {
			return strings.ToValidUTF8(string(raw[idx+len(sep):]), "\uFFFD")
		}
	}
	return ""
}
