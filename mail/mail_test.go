package mail

import (
	"bufio"
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"log/slog"
	"net"
	"net/textproto"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	goAccount "github.com/MrEthical07/goAccount"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	_ goAccount.Mailer = (*SMTPSender)(nil)
	_ goAccount.Mailer = (*LogSender)(nil)
)

// fakeSMTP accepts a single plaintext session.
type fakeSMTP struct {
	ln        net.Listener
	offerAuth bool

	mu       sync.Mutex
	from     string
	rcpt     []string
	data     string
	authLine string
	done     chan struct{}
}

func startFakeSMTP(t *testing.T, offerAuth bool) *fakeSMTP {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	s := &fakeSMTP{ln: ln, offerAuth: offerAuth, done: make(chan struct{})}
	t.Cleanup(func() { _ = ln.Close() })
	go s.serve()
	return s
}

func (s *fakeSMTP) port(t *testing.T) int {
	_, p, err := net.SplitHostPort(s.ln.Addr().String())
	require.NoError(t, err)
	n, err := strconv.Atoi(p)
	require.NoError(t, err)
	return n
}

func (s *fakeSMTP) serve() {
	defer close(s.done)
	conn, err := s.ln.Accept()
	if err != nil {
		return
	}
	defer conn.Close()

	tp := textproto.NewConn(conn)
	_ = tp.PrintfLine("220 localhost ESMTP fake")
	for {
		line, err := tp.ReadLine()
		if err != nil {
			return
		}
		verb := strings.ToUpper(strings.SplitN(line, " ", 2)[0])
		switch verb {
		case "EHLO", "HELO":
			if s.offerAuth {
				_ = tp.PrintfLine("250-localhost")
				_ = tp.PrintfLine("250 AUTH PLAIN")
			} else {
				_ = tp.PrintfLine("250 localhost")
			}
		case "AUTH":
			s.mu.Lock()
			s.authLine = line
			s.mu.Unlock()
			_ = tp.PrintfLine("235 2.7.0 authenticated")
		case "MAIL":
			s.mu.Lock()
			s.from = line
			s.mu.Unlock()
			_ = tp.PrintfLine("250 ok")
		case "RCPT":
			s.mu.Lock()
			s.rcpt = append(s.rcpt, line)
			s.mu.Unlock()
			_ = tp.PrintfLine("250 ok")
		case "DATA":
			_ = tp.PrintfLine("354 go ahead")
			raw, err := tp.ReadDotBytes()
			if err != nil {
				return
			}
			s.mu.Lock()
			s.data = string(raw)
			s.mu.Unlock()
			_ = tp.PrintfLine("250 queued")
		case "NOOP", "RSET":
			_ = tp.PrintfLine("250 ok")
		case "QUIT":
			_ = tp.PrintfLine("221 bye")
			return
		default:
			_ = tp.PrintfLine("502 unsupported")
		}
	}
}

func (s *fakeSMTP) wait(t *testing.T) {
	t.Helper()
	select {
	case <-s.done:
	case <-time.After(5 * time.Second):
		t.Fatal("fake smtp session did not finish")
	}
}

func TestSMTPSenderDelivers(t *testing.T) {
	srv := startFakeSMTP(t, false)

	sender, err := NewSMTPSender(SMTPConfig{
		Host: "127.0.0.1",
		Port: srv.port(t),
		From: "Accounts <no-reply@example.com>",
	})
	require.NoError(t, err)
	sender.now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }

	err = sender.Send(context.Background(), "alice@example.com", "Your password reset code", "Your code is 123456.\n.leading dot")
	require.NoError(t, err)
	srv.wait(t)

	srv.mu.Lock()
	defer srv.mu.Unlock()
	assert.Equal(t, "MAIL FROM:<no-reply@example.com>", strings.SplitN(srv.from, " BODY", 2)[0])
	require.Len(t, srv.rcpt, 1)
	assert.Equal(t, "RCPT TO:<alice@example.com>", srv.rcpt[0])
	assert.Contains(t, srv.data, "Subject: Your password reset code")
	assert.Contains(t, srv.data, "To: <alice@example.com>")
	assert.Contains(t, srv.data, "Date: Sun, 01 Mar 2026 12:00:00 +0000")
	assert.Contains(t, srv.data, "Your code is 123456.")
	assert.Contains(t, srv.data, ".leading dot")
	assert.Empty(t, srv.authLine)
}

func TestSMTPSenderPlainAuth(t *testing.T) {
	srv := startFakeSMTP(t, true)

	sender, err := NewSMTPSender(SMTPConfig{
		Host:     "127.0.0.1",
		Port:     srv.port(t),
		Username: "relay-user",
		Password: "relay-pass",
		From:     "no-reply@example.com",
	})
	require.NoError(t, err)

	require.NoError(t, sender.Send(context.Background(), "bob@example.com", "s", "b"))
	srv.wait(t)

	srv.mu.Lock()
	defer srv.mu.Unlock()
	fields := strings.Fields(srv.authLine)
	require.Len(t, fields, 3)
	assert.Equal(t, "PLAIN", fields[1])
	raw, err := base64.StdEncoding.DecodeString(fields[2])
	require.NoError(t, err)
	assert.Equal(t, "\x00relay-user\x00relay-pass", string(raw))
}

func TestSMTPSenderAuthNotOffered(t *testing.T) {
	srv := startFakeSMTP(t, false)

	sender, err := NewSMTPSender(SMTPConfig{
		Host:     "127.0.0.1",
		Port:     srv.port(t),
		Username: "relay-user",
		Password: "relay-pass",
		From:     "no-reply@example.com",
	})
	require.NoError(t, err)

	err = sender.Send(context.Background(), "bob@example.com", "s", "b")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "AUTH")
}

func TestSMTPSenderDialFailure(t *testing.T) {
	sender, err := NewSMTPSender(SMTPConfig{Host: "127.0.0.1", Port: 25, From: "a@example.com"})
	require.NoError(t, err)
	sender.dial = func(context.Context, string, string) (net.Conn, error) {
		return nil, errors.New("connection refused")
	}

	err = sender.Send(context.Background(), "bob@example.com", "s", "b")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "smtp dial")
}

func TestSMTPSenderRejectsBadInput(t *testing.T) {
	sender, err := NewSMTPSender(SMTPConfig{Host: "127.0.0.1", Port: 25, From: "a@example.com"})
	require.NoError(t, err)
	sender.dial = func(context.Context, string, string) (net.Conn, error) {
		t.Fatal("dial must not happen for invalid input")
		return nil, nil
	}

	assert.ErrorIs(t, sender.Send(context.Background(), "not an address", "s", "b"), ErrInvalidAddress)
	assert.ErrorIs(t, sender.Send(context.Background(), "bob@example.com", "s\r\nBcc: x@example.com", "b"), ErrInvalidHeader)
}

func TestNewSMTPSenderValidation(t *testing.T) {
	tests := []struct {
		name string
		cfg  SMTPConfig
	}{
		{"no host", SMTPConfig{Port: 25, From: "a@example.com"}},
		{"bad port", SMTPConfig{Host: "h", Port: 0, From: "a@example.com"}},
		{"port too large", SMTPConfig{Host: "h", Port: 70000, From: "a@example.com"}},
		{"bad from", SMTPConfig{Host: "h", Port: 25, From: "nope"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewSMTPSender(tt.cfg)
			assert.Error(t, err)
		})
	}
}

func TestMessageFormat(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	msg, err := newMessage("Accounts <a@example.com>", "b@example.com", "Hi", "line1\r\nline2", now)
	require.NoError(t, err)

	var buf bytes.Buffer
	_, err = msg.WriteTo(&buf)
	require.NoError(t, err)

	r := textproto.NewReader(bufio.NewReader(bytes.NewReader(buf.Bytes())))
	hdr, err := r.ReadMIMEHeader()
	require.NoError(t, err)
	assert.Equal(t, "Hi", hdr.Get("Subject"))
	assert.Equal(t, "<b@example.com>", hdr.Get("To"))
	assert.Contains(t, hdr.Get("From"), "a@example.com")
	assert.Contains(t, hdr.Get("Content-Type"), "text/plain")
	assert.Equal(t, now.Format(time.RFC1123Z), hdr.Get("Date"))
	assert.NotEmpty(t, hdr.Get("Message-Id"))
	assert.Contains(t, buf.String(), "line1\r\nline2")
}

func TestMessageRejectsHeaderInjection(t *testing.T) {
	_, err := newMessage("a@example.com", "b@example.com", "Hi\nBcc: c@example.com", "body", time.Now())
	assert.ErrorIs(t, err, ErrInvalidHeader)

	_, err = newMessage("a@example.com", "b@example.com\r\nBcc: c@example.com", "Hi", "body", time.Now())
	assert.ErrorIs(t, err, ErrInvalidAddress)
}

func TestLogSender(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	require.NoError(t, NewLogSender(logger, false).Send(context.Background(), "a@example.com", "Reset", "code is 654321"))
	assert.Contains(t, buf.String(), `"to":"a@example.com"`)
	assert.NotContains(t, buf.String(), "654321")

	buf.Reset()
	require.NoError(t, NewLogSender(logger, true).Send(context.Background(), "a@example.com", "Reset", "code is 654321"))
	assert.Contains(t, buf.String(), "654321")

	assert.ErrorIs(t, NewLogSender(logger, false).Send(context.Background(), "bad", "s", "b"), ErrInvalidAddress)
}
