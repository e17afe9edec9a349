// Package notify defines the outbound notification collaborator. Actual
// email delivery lives outside this core; the engine only needs a
// result-returning send whose failure it can log without rolling back the
// surrounding state change.
package notify

import (
	"context"

	"go.uber.org/zap"
)

// Template names used by the auth engine.
const (
	TemplateVerificationCode  = "verification-code"
	TemplatePasswordResetCode = "password-reset-code"
)

// Sender delivers a templated notification to an address.
type Sender interface {
	Send(ctx context.Context, address, template string, payload map[string]string) error
}

// LogSender is a development Sender that writes the notification to the log
// instead of delivering it. Code values are not logged.
type LogSender struct {
	log *zap.SugaredLogger
}

// NewLogSender returns a [LogSender] backed by the given logger.
func NewLogSender(log *zap.SugaredLogger) *LogSender {
	return &LogSender{log: log}
}

// Send logs the delivery and always succeeds.
func (s *LogSender) Send(_ context.Context, address, template string, payload map[string]string) error {
	fields := []any{"to", address, "template", template}
	for k := range payload {
		if k == "code" {
			continue
		}
		fields = append(fields, k, payload[k])
	}
	s.log.Infow("notification", fields...)
	return nil
}
