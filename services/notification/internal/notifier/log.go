package notifier

import (
	"context"
	"log/slog"
)

// LogNotifier only logs messages. It backs dev and mock deployments.
type LogNotifier struct {
	logger *slog.Logger
}

func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) SendEmail(_ context.Context, to, subject, body string) error {
	n.logger.Info("email (mock)", "to", to, "subject", subject, "bytes", len(body))
	return nil
}

func (n *LogNotifier) SendSMS(_ context.Context, to, message string) error {
	n.logger.Info("sms (mock)", "to", to, "message", message)
	return nil
}
