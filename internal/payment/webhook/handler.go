package webhook

import (
	"context"
	"errors"
	"io"
	"net/http"

	"gamekeys-be/internal/checkout"
	"gamekeys-be/internal/logger"
	"gamekeys-be/internal/metrics"
	"gamekeys-be/internal/payment"
	"gamekeys-be/internal/utils"

	"go.uber.org/zap"
)

const maxBodyBytes = 1 << 20

type eventLog interface {
	SaveWebhookEvent(ctx context.Context, ev *payment.WebhookEvent) (int64, bool, error)
	MarkWebhookProcessed(ctx context.Context, webhookID int64) error
	MarkWebhookFailed(ctx context.Context, webhookID int64, reason string) error
}

type confirmer interface {
	ConfirmPayment(ctx context.Context, res payment.Resolution) (*checkout.Result, error)
}

type guard interface {
	CheckAndMark(ctx context.Context, eventID string) (bool, error)
	Release(ctx context.Context, eventID string) error
}

// Handler receives provider pushes. Every delivery is recorded; the payment
// outcome always comes from re-resolving with the provider.
type Handler struct {
	gateway   payment.Gateway
	events    eventLog
	confirmer confirmer
	guard     guard
	metrics   *metrics.Pipeline
}

func NewHandler(gw payment.Gateway, events eventLog, c confirmer, m *metrics.Pipeline) *Handler {
	return &Handler{gateway: gw, events: events, confirmer: c, metrics: m}
}

// WithGuard adds a fast-path dedupe in front of the event log.
func (h *Handler) WithGuard(g guard) *Handler {
	h.guard = g
	return h
}

type ack struct {
	Status string `json:"status"`
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	provider := h.gateway.Name()
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "webhook"),
		zap.String("provider", provider),
	)

	// 1. Authenticate and parse
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		utils.WriteJSONError(w, "failed to read body", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	cb, err := h.gateway.ParseWebhook(r, body)
	if err != nil {
		if errors.Is(err, payment.ErrInvalidSignature) {
			log.Warn("webhook rejected: invalid signature", zap.String("remote", r.RemoteAddr))
			h.metrics.WebhookEvent(provider, "invalid_signature")
		} else {
			log.Warn("webhook rejected: bad payload", zap.Error(err))
			h.metrics.WebhookEvent(provider, "invalid_payload")
		}
		utils.WriteError(w, err)
		return
	}
	log = log.With(zap.String("event_id", cb.EventID), zap.String("event_type", cb.EventType))

	// 2. Record the delivery
	id, processed, err := h.events.SaveWebhookEvent(ctx, &payment.WebhookEvent{
		Provider:       provider,
		EventID:        cb.EventID,
		EventType:      cb.EventType,
		ExternalID:     cb.Token,
		Payload:        cb.Raw,
		SignatureValid: true,
	})
	if err != nil {
		log.Error("failed to save webhook", zap.Error(err))
		h.metrics.WebhookEvent(provider, "error")
		utils.WriteError(w, err)
		return
	}
	if processed {
		log.Info("duplicate webhook ignored")
		h.metrics.WebhookEvent(provider, "duplicate")
		utils.WriteJSON(w, http.StatusOK, ack{Status: "duplicate"})
		return
	}

	if h.guard != nil {
		seen, err := h.guard.CheckAndMark(ctx, provider+":"+cb.EventID)
		if err != nil {
			log.Warn("idempotency guard unavailable", zap.Error(err))
		} else if seen {
			// The row is not processed yet, so the provider must retry.
			log.Info("webhook already in flight")
			h.metrics.WebhookEvent(provider, "in_flight")
			utils.WriteError(w, payment.ErrEventInFlight)
			return
		}
	}

	fail := func(status string, err error) {
		if h.guard != nil {
			if rerr := h.guard.Release(ctx, provider+":"+cb.EventID); rerr != nil {
				log.Warn("failed to release idempotency key", zap.Error(rerr))
			}
		}
		if merr := h.events.MarkWebhookFailed(ctx, id, err.Error()); merr != nil {
			log.Error("failed to mark webhook failed", zap.Error(merr))
		}
		h.metrics.WebhookEvent(provider, status)
		utils.WriteError(w, err)
	}

	// 3. Resolve with the provider
	timer := h.metrics.ProviderTimer(provider, "resolve")
	res, err := h.gateway.ResolveCallback(ctx, *cb)
	timer.ObserveDuration()
	if errors.Is(err, payment.ErrOutcomePending) {
		log.Info("payment not final yet")
		h.markProcessed(ctx, log, id)
		h.metrics.WebhookEvent(provider, "pending")
		utils.WriteJSON(w, http.StatusOK, ack{Status: "pending"})
		return
	}
	if err != nil {
		log.Error("resolve callback failed", zap.Error(err))
		fail("error", err)
		return
	}

	// 4. Apply
	result, err := h.confirmer.ConfirmPayment(ctx, *res)
	if errors.Is(err, payment.ErrPaymentNotFound) {
		fail("not_found", err)
		return
	}
	if err != nil {
		log.Error("confirm payment failed", zap.Error(err))
		fail("error", err)
		return
	}

	h.markProcessed(ctx, log, id)
	status := "applied"
	switch {
	case result.Anomaly:
		status = "anomaly"
	case result.Duplicate:
		status = "duplicate"
	}
	h.metrics.WebhookEvent(provider, status)
	utils.WriteJSON(w, http.StatusOK, ack{Status: status})
}

func (h *Handler) markProcessed(ctx context.Context, log *zap.Logger, id int64) {
	if err := h.events.MarkWebhookProcessed(ctx, id); err != nil {
		log.Error("failed to mark webhook processed", zap.Error(err))
	}
}
