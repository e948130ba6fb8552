package notification

import (
	"context"
	"time"

	"gamekeys-be/internal/logger"

	"go.uber.org/zap"
)

const EventOrderFulfilled = "order.fulfilled"

// Event tells the buyer-facing channels (email, in-app) that codes are
// ready. Complete is false when stock ran short.
type Event struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	OrderID    uint      `json:"order_id"`
	UserID     uint      `json:"user_id"`
	Requested  int       `json:"requested"`
	Delivered  int       `json:"delivered"`
	Complete   bool      `json:"complete"`
	OccurredAt time.Time `json:"occurred_at"`
}

type Notifier interface {
	Notify(ctx context.Context, ev Event) error
}

// LogNotifier only writes the event to the log.
type LogNotifier struct{}

func NewLogNotifier() *LogNotifier {
	return &LogNotifier{}
}

func (LogNotifier) Notify(ctx context.Context, ev Event) error {
	logger.FromCtx(ctx).Info("order notification",
		zap.String("layer", "notification"),
		zap.String("type", ev.Type),
		zap.Uint("order_id", ev.OrderID),
		zap.Uint("user_id", ev.UserID),
		zap.Int("delivered", ev.Delivered),
		zap.Int("requested", ev.Requested),
		zap.Bool("complete", ev.Complete),
	)
	return nil
}
