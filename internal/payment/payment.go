package payment

import (
	"context"
	"net/http"
	"time"

	"gamekeys-be/internal/utils"
)

// Gateway is one payment provider. Implementations are chosen once at
// startup.
type Gateway interface {
	Name() string
	InitiatePayment(ctx context.Context, req CheckoutRequest) (*Session, error)
	// ParseWebhook authenticates a provider push and extracts the payment
	// reference. The pushed status is never trusted.
	ParseWebhook(r *http.Request, body []byte) (*Callback, error)
	// ResolveCallback asks the provider for the final outcome.
	ResolveCallback(ctx context.Context, cb Callback) (*Resolution, error)
}

func NewConversationID(now time.Time) string {
	return utils.GenerateReference("PAY", now)
}
