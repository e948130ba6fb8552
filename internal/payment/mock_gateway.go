package payment

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"gamekeys-be/internal/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const ProviderMock = "mock"

// MockGateway settles every payment immediately. It is wired when no real
// provider credentials are configured.
type MockGateway struct{}

func NewMockGateway() *MockGateway {
	return &MockGateway{}
}

func (m *MockGateway) Name() string { return ProviderMock }

func (m *MockGateway) InitiatePayment(ctx context.Context, req CheckoutRequest) (*Session, error) {
	externalID := "mock_" + uuid.NewString()
	raw, _ := json.Marshal(map[string]any{
		"provider":        ProviderMock,
		"external_id":     externalID,
		"conversation_id": req.Payment.ConversationID,
		"amount":          req.Payment.Amount,
		"status":          OutcomeSucceeded,
	})

	logger.FromCtx(ctx).Info("mock payment settled",
		zap.String("layer", "gateway"),
		zap.Uint("order_id", req.Order.ID),
		zap.String("external_id", externalID),
	)
	return &Session{
		ExternalID: externalID,
		Token:      externalID,
		Outcome:    OutcomeSucceeded,
		Raw:        raw,
	}, nil
}

func (m *MockGateway) ParseWebhook(r *http.Request, body []byte) (*Callback, error) {
	var cb Callback
	if err := json.Unmarshal(body, &cb); err != nil {
		return nil, ErrInvalidCallback.Wrap(err)
	}
	cb.Token = strings.TrimSpace(cb.Token)
	if cb.Token == "" && cb.ConversationID == "" {
		return nil, ErrInvalidCallback
	}
	if cb.EventID == "" {
		cb.EventID = cb.Token + cb.ConversationID
	}
	if cb.EventType == "" {
		cb.EventType = "payment.succeeded"
	}
	cb.Raw = json.RawMessage(body)
	return &cb, nil
}

// ResolveCallback echoes back a succeeded outcome for the reference given.
func (m *MockGateway) ResolveCallback(ctx context.Context, cb Callback) (*Resolution, error) {
	if cb.Token == "" && cb.ConversationID == "" {
		return nil, ErrInvalidCallback
	}
	raw := cb.Raw
	if len(raw) == 0 {
		raw, _ = json.Marshal(map[string]string{"provider": ProviderMock, "token": cb.Token, "status": string(OutcomeSucceeded)})
	}
	return &Resolution{
		ExternalID:     cb.Token,
		ConversationID: cb.ConversationID,
		Outcome:        OutcomeSucceeded,
		Raw:            raw,
	}, nil
}
