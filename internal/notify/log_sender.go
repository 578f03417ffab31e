package notify

import (
	"context"

	"go.uber.org/zap"
)

// LogSender writes emails to the log instead of delivering them.
// Used in development and when no transport is configured.
type LogSender struct {
	Log *zap.Logger
}

func (s LogSender) Send(_ context.Context, e Email) error {
	s.Log.Info("email",
		zap.String("kind", e.Kind),
		zap.String("to", e.To),
		zap.Strings("bcc", e.Bcc),
		zap.String("subject", e.Subject),
		zap.Int("bytes", len(e.HTML)),
	)
	return nil
}
