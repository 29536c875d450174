package events

import (
	"log/slog"

	"github.com/dkoval/poolctl/internal/domain"
	"github.com/dkoval/poolctl/internal/ports"
)

// LogSink writes every pool event to a structured logger. Pool-empty and
// account-error events need operator attention and log at warning level.
type LogSink struct {
	logger *slog.Logger
}

var _ ports.EventSink = (*LogSink)(nil)

func NewLogSink(logger *slog.Logger) *LogSink {
	if logger == nil {
		logger = slog.Default()
	}

	return &LogSink{logger: logger}
}

func (s *LogSink) Publish(event domain.Event) {
	attrs := []any{
		"type", string(event.Type),
		"message", event.Message,
	}
	if event.AccountID != "" {
		attrs = append(attrs, "account", string(event.AccountID))
	}

	switch event.Type {
	case domain.EventPoolEmpty, domain.EventAccountError:
		s.logger.Warn("pool event", attrs...)
	default:
		s.logger.Info("pool event", attrs...)
	}
}
