package payment

import (
	"encoding/json"
	"time"

	"gamekeys-be/internal/order"
)

type Status string

const (
	StatusInitiated  Status = "initiated"
	StatusProcessing Status = "processing"
	StatusSucceeded  Status = "succeeded"
	StatusFailed     Status = "failed"
	StatusCancelled  Status = "cancelled"
)

// Final reports whether no further callback may change the payment.
func (s Status) Final() bool {
	return s == StatusSucceeded || s == StatusFailed || s == StatusCancelled
}

type Outcome string

const (
	OutcomeSucceeded Outcome = "succeeded"
	OutcomeFailed    Outcome = "failed"
)

func (o Outcome) Status() Status {
	if o == OutcomeSucceeded {
		return StatusSucceeded
	}
	return StatusFailed
}

type Payment struct {
	ID             uint            `json:"id"`
	OrderID        uint            `json:"order_id"`
	UserID         uint            `json:"user_id"`
	Provider       string          `json:"provider"`
	ConversationID string          `json:"conversation_id"`
	ExternalID     *string         `json:"external_id,omitempty"`
	Amount         int64           `json:"amount"`
	Currency       string          `json:"currency"`
	Status         Status          `json:"status"`
	RawPayload     json.RawMessage `json:"-"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// Settlement is one atomic terminal write: the payment status, an optional
// order move and an optional tracking entry commit together or not at all.
type Settlement struct {
	PaymentID uint
	OrderID   uint
	To        Status
	Raw       json.RawMessage

	OrderFrom order.OrderStatus
	OrderTo   order.OrderStatus

	TrackingStatus  string
	TrackingMessage string
	// UnmovedMessage replaces TrackingMessage when the order was no longer
	// in OrderFrom. The entry then carries the order's current status.
	UnmovedMessage string
}

type Buyer struct {
	UserID uint
	Email  string
}

type CheckoutLine struct {
	ProductID string
	Name      string
	Category  string
	Quantity  int
	UnitPrice int64
}

type CheckoutRequest struct {
	Order   *order.Order
	Payment *Payment
	Buyer   Buyer
	Lines   []CheckoutLine
}

// Session is what the provider returned for a new payment. Outcome is set
// only by providers that settle synchronously.
type Session struct {
	ExternalID  string
	Token       string
	CheckoutURL string
	Outcome     Outcome
	Raw         json.RawMessage
}

// Callback is an unverified reference to a payment as reported by a client
// redirect or a provider push.
type Callback struct {
	EventID        string          `json:"event_id,omitempty"`
	EventType      string          `json:"event_type,omitempty"`
	Token          string          `json:"token"`
	ConversationID string          `json:"conversation_id,omitempty"`
	Raw            json.RawMessage `json:"-"`
}

// Resolution is the provider-confirmed outcome for a payment.
type Resolution struct {
	ExternalID     string
	ConversationID string
	Outcome        Outcome
	Raw            json.RawMessage
}

type WebhookEvent struct {
	ID             int64
	Provider       string
	EventID        string
	EventType      string
	ExternalID     string
	Payload        json.RawMessage
	SignatureValid bool
}
