package notify

import (
	"context"
	"log/slog"

	"github.com/rentdesk/rentdesk/pkg/models"
)

// LogSender writes messages to the structured log instead of delivering them.
// It is the default backend in development.
type LogSender struct {
	channel string
}

func NewLogSender(channel string) *LogSender {
	return &LogSender{channel: channel}
}

func (s *LogSender) Channel() string  { return s.channel }
func (s *LogSender) Provider() string { return "log" }

func (s *LogSender) Send(ctx context.Context, msg models.OutboundMessage) error {
	slog.InfoContext(ctx, "notification delivered to log",
		"channel", s.channel,
		"address", msg.Address,
		"subject", msg.Subject,
	)
	return nil
}

var _ models.Sender = (*LogSender)(nil)
