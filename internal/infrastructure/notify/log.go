package notify

import (
	"context"
	"log/slog"

	"github.com/tradeguard/escrow/internal/ports"
)

// LogNotifier writes events to the log instead of delivering them. Used when
// no webhook URL is configured, typically in development.
type LogNotifier struct {
	logger *slog.Logger
}

func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Send(ctx context.Context, recipientID string, event ports.Event, payload map[string]any) error {
	n.logger.Info("notification",
		"recipient", recipientID,
		"event", event,
		"payload", payload)
	return nil
}
