package notify

import (
	"context"

	"github.com/rs/zerolog"

	"billing-lifecycle/internal/domain/model"
	"billing-lifecycle/internal/domain/ports/adapter"
)

// Ensure compile-time conformance
var _ adapter.NotificationSink = (*LogSink)(nil)

// LogSink records lifecycle events to the structured log. Stands in for an
// email/webhook sink; callers already treat delivery as fire-and-forget.
type LogSink struct {
	log *zerolog.Logger
}

func NewLogSink(logger *zerolog.Logger) *LogSink {
	l := logger.With().Str("component", "NotificationSink").Logger()
	return &LogSink{log: &l}
}

func (s *LogSink) Notify(ctx context.Context, kind adapter.NotificationKind, req *model.PaymentRequest) error {
	s.log.Info().
		Str("kind", string(kind)).
		Str("request_id", req.ID).
		Str("service_id", req.ServiceID).
		Str("status", string(req.Status)).
		Str("amount", req.Amount.String()).
		Str("currency", req.Currency).
		Msg("billing notification")
	return nil
}
