package notifier

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/payflow-backend/pkg/enums"
	"github.com/angelmondragon/payflow-backend/pkg/logger"
)

// Payload carries the details a payee-facing message is rendered from.
type Payload struct {
	PayoutID    uuid.UUID
	Amount      decimal.Decimal
	Currency    enums.Currency
	PeriodStart string
	PeriodEnd   string
	Reason      string
}

// Sink delivers payee notifications. Implementations must be safe for
// concurrent use; the scheduler calls them from worker goroutines.
type Sink interface {
	Notify(ctx context.Context, payeeID uuid.UUID, kind enums.NotificationKind, payload Payload) error
}

// LogSink writes notifications to the structured log. It stands in for real
// email and SMS delivery, which lives outside this service.
type LogSink struct {
	logger *logger.Logger
}

// NewLogSink builds a log-backed notification sink.
func NewLogSink(logg *logger.Logger) *LogSink {
	return &LogSink{logger: logg}
}

// Notify implements Sink.
func (s *LogSink) Notify(ctx context.Context, payeeID uuid.UUID, kind enums.NotificationKind, payload Payload) error {
	ctx = s.logger.WithPayeeID(ctx, payeeID.String())
	ctx = s.logger.WithFields(ctx, map[string]any{
		"kind":      kind.String(),
		"payout_id": payload.PayoutID.String(),
		"amount":    payload.Amount.StringFixed(2),
		"currency":  payload.Currency.String(),
		"reason":    payload.Reason,
	})
	s.logger.Info(ctx, "payee notification")
	return nil
}
