// AngelaMos | 2026
// sender.go

package mail

import (
	"context"
	"log/slog"
)

type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// LogSender writes messages to the log instead of delivering them. Codes
// are logged in clear, so it is only selectable outside production.
type LogSender struct {
	logger *slog.Logger
}

func NewLogSender(logger *slog.Logger) *LogSender {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSender{logger: logger}
}

func (s *LogSender) Send(ctx context.Context, msg Message) error {
	if err := msg.Validate(); err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "mail (log transport)",
		"to", msg.To,
		"subject", msg.Subject,
		"template", msg.Template,
		"body", msg.Body,
	)
	return nil
}
