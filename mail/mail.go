// Package mail delivers password reset codes. SMTPSender talks to a real
// relay; LogSender writes to slog for local runs.
package mail

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	gomail "github.com/wneessen/go-mail"
)

var (
	ErrInvalidAddress = errors.New("invalid mail address")
	ErrInvalidHeader  = errors.New("invalid mail header")
)

// Sender matches goAccount.Mailer.
type Sender interface {
	Send(ctx context.Context, to, subject, body string) error
}

// newMessage builds a plain-text message. The subject is rejected when it
// contains line breaks.
func newMessage(from, to, subject, body string, now time.Time) (*gomail.Msg, error) {
	if strings.ContainsAny(subject, "\r\n") {
		return nil, ErrInvalidHeader
	}
	rcpt, err := parseAddress(to)
	if err != nil {
		return nil, err
	}

	msg := gomail.NewMsg(gomail.WithCharset(gomail.CharsetUTF8), gomail.WithNoDefaultUserAgent())
	if err := msg.From(strings.TrimSpace(from)); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidAddress, err)
	}
	if err := msg.To(rcpt); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidAddress, err)
	}
	msg.Subject(subject)
	msg.SetDateWithValue(now)
	msg.SetMessageID()
	msg.SetBodyString(gomail.TypeTextPlain, strings.ReplaceAll(body, "\r\n", "\n"))
	return msg, nil
}

// parseAddress returns the bare address part of s.
func parseAddress(s string) (string, error) {
	addr, err := mail.ParseAddress(strings.TrimSpace(s))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidAddress, err)
	}
	return addr.Address, nil
}
