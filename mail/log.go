package mail

import (
	"context"
	"log/slog"
)

// LogSender records messages through slog instead of delivering them.
// The body is omitted unless IncludeBody is set, since it carries the code.
type LogSender struct {
	Logger      *slog.Logger
	IncludeBody bool
}

func NewLogSender(logger *slog.Logger, includeBody bool) *LogSender {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSender{Logger: logger, IncludeBody: includeBody}
}

func (s *LogSender) Send(ctx context.Context, to, subject, body string) error {
	if _, err := parseAddress(to); err != nil {
		return err
	}
	attrs := []slog.Attr{
		slog.String("to", to),
		slog.String("subject", subject),
		slog.Int("body_bytes", len(body)),
	}
	if s.IncludeBody {
		attrs = append(attrs, slog.String("body", body))
	}
	s.Logger.LogAttrs(ctx, slog.LevelInfo, "mail not sent (log sender)", attrs...)
	return nil
}
