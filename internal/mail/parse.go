package mail

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/emersion/go-message"
	// Registers decoders for non-UTF-8 charsets used by recruiting systems
	_ "github.com/emersion/go-message/charset"
	gomail "github.com/emersion/go-message/mail"

	"github.com/jonathan/application-tracker/internal/types"
)

// ParseError represents a message that could not be decoded
type ParseError struct {
	Message string
	Cause   error
}

func (e *ParseError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("parse error: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("parse error: %s", e.Message)
}

func (e *ParseError) Unwrap() error {
	return e.Cause
}

// ParseMessage decodes an RFC 5322 message.
// The returned ID is the Message-Id header without angle brackets, or empty when absent.
// The body prefers the first text/plain part and falls back to converted HTML.
func ParseMessage(r io.Reader) (types.Message, error) {
	mr, err := gomail.CreateReader(r)
	if err != nil && !message.IsUnknownCharset(err) {
		return types.Message{}, &ParseError{Message: "invalid message", Cause: err}
	}

	var msg types.Message
	h := mr.Header
	msg.Subject, _ = h.Subject()
	msg.Sender, _ = h.Text("From")
	msg.Date, _ = h.Date()
	if id, err := h.MessageID(); err == nil {
		msg.ID = NormalizeMessageID(id)
	}

	var plain, html string
	for {
		p, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if message.IsUnknownCharset(err) {
				continue
			}
			return msg, &ParseError{Message: "failed to read message part", Cause: err}
		}

		inline, ok := p.Header.(*gomail.InlineHeader)
		if !ok {
			continue
		}
		contentType, _, _ := inline.ContentType()
		switch contentType {
		case "text/plain":
			if plain == "" {
				b, _ := io.ReadAll(p.Body)
				plain = string(b)
			}
		case "text/html":
			if html == "" {
				b, _ := io.ReadAll(p.Body)
				html = string(b)
			}
		}
	}

	msg.Body = strings.TrimSpace(normalizeNewlines(plain))
	if msg.Body == "" && html != "" {
		msg.Body = HTMLToText(html)
	}
	return msg, nil
}

// NormalizeMessageID strips whitespace and surrounding angle brackets
func NormalizeMessageID(id string) string {
	id = strings.TrimSpace(id)
	id = strings.TrimPrefix(id, "<")
	id = strings.TrimSuffix(id, ">")
	return strings.TrimSpace(id)
}

func normalizeNewlines(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(s, "\r", "\n")
}
