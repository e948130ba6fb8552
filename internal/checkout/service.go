package checkout

import (
	"context"
	"errors"
	"time"

	"gamekeys-be/internal/apperr"
	"gamekeys-be/internal/fulfillment"
	"gamekeys-be/internal/logger"
	"gamekeys-be/internal/metrics"
	"gamekeys-be/internal/notification"
	"gamekeys-be/internal/order"
	"gamekeys-be/internal/payment"
	"gamekeys-be/internal/product"

	"go.uber.org/zap"
)

const (
	trackingPaymentConfirmed = "Payment confirmed, preparing your codes"
	trackingPaymentFailed    = "Payment failed, waiting for a new payment"
	trackingOrderCancelled   = "Payment failed, order cancelled"
	trackingPaidCancelled    = "Payment received for a cancelled order, a refund will follow"
	trackingFulfillFailed    = "Fulfillment failed, pending manual re-run"
)

type fulfiller interface {
	Fulfill(ctx context.Context, orderID uint) (*fulfillment.Report, error)
}

type history interface {
	Append(ctx context.Context, orderID uint, status, message string) error
}

type Params struct {
	Orders    order.Repository
	Products  product.Repository
	Payments  payment.Repository
	Gateway   payment.Gateway
	Fulfiller fulfiller
	History   history
	Notifier  notification.Notifier
	Metrics   *metrics.Pipeline

	// CancelOnFailure moves the order to cancelled when its payment fails.
	CancelOnFailure bool
}

type Service struct {
	orders          order.Repository
	products        product.Repository
	payments        payment.Repository
	gateway         payment.Gateway
	fulfiller       fulfiller
	history         history
	notifier        notification.Notifier
	metrics         *metrics.Pipeline
	cancelOnFailure bool
	now             func() time.Time
}

func NewService(p Params) *Service {
	n := p.Notifier
	if n == nil {
		n = notification.NewLogNotifier()
	}
	return &Service{
		orders:          p.Orders,
		products:        p.Products,
		payments:        p.Payments,
		gateway:         p.Gateway,
		fulfiller:       p.Fulfiller,
		history:         p.History,
		notifier:        n,
		metrics:         p.Metrics,
		cancelOnFailure: p.CancelOnFailure,
		now:             time.Now,
	}
}

// Initiation is what the client needs to complete the payment.
type Initiation struct {
	PaymentID   uint           `json:"payment_id"`
	Provider    string         `json:"provider"`
	Token       string         `json:"token"`
	CheckoutURL string         `json:"checkout_url,omitempty"`
	Status      payment.Status `json:"status"`
}

// Result describes how a confirmation was applied. Applied is true only
// for the call that moved the payment; Duplicate and Anomaly calls change
// nothing.
type Result struct {
	Payment     *payment.Payment    `json:"payment"`
	Applied     bool                `json:"applied"`
	Duplicate   bool                `json:"duplicate"`
	Anomaly     bool                `json:"anomaly"`
	Fulfillment *fulfillment.Report `json:"fulfillment,omitempty"`
}

func (s *Service) InitiatePayment(ctx context.Context, orderID uint, buyer payment.Buyer) (*Initiation, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "service"),
		zap.String("method", "InitiatePayment"),
		zap.Uint("order_id", orderID),
		zap.Uint("user_id", buyer.UserID),
	)

	// 1. Owner only, pending only
	o, err := s.orders.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.UserID != buyer.UserID {
		log.Warn("payment initiation by non-owner")
		return nil, order.ErrOrderNotFound
	}
	if o.Status != order.StatusPending {
		return nil, order.ErrInvalidOrder.WithDetails(map[string]string{"status": string(o.Status)})
	}

	lines, err := s.checkoutLines(ctx, o)
	if err != nil {
		return nil, err
	}

	// 2. One payment row per attempt
	p := &payment.Payment{
		OrderID:        o.ID,
		UserID:         buyer.UserID,
		Provider:       s.gateway.Name(),
		ConversationID: payment.NewConversationID(s.now()),
		Amount:         o.TotalPrice,
		Currency:       o.Currency,
		Status:         payment.StatusInitiated,
	}
	if err := s.payments.SavePayment(ctx, p); err != nil {
		log.Error("failed to save payment", zap.Error(err))
		return nil, err
	}
	log = log.With(zap.Uint("payment_id", p.ID), zap.String("conversation_id", p.ConversationID))

	// 3. Provider session
	timer := s.metrics.ProviderTimer(s.gateway.Name(), "initiate")
	session, err := s.gateway.InitiatePayment(ctx, payment.CheckoutRequest{
		Order:   o,
		Payment: p,
		Buyer:   buyer,
		Lines:   lines,
	})
	timer.ObserveDuration()
	if err != nil {
		log.Error("payment provider initiation failed", zap.Error(err))
		if apperr.As(err) != nil {
			return nil, err
		}
		return nil, payment.ErrPaymentInitFailed.Wrap(err)
	}

	if err := s.payments.MarkPaymentProcessing(ctx, p.ID, session.ExternalID, session.Raw); err != nil {
		log.Error("failed to record provider reference", zap.Error(err))
		return nil, err
	}
	ext := session.ExternalID
	p.ExternalID = &ext
	p.Status = payment.StatusProcessing

	init := &Initiation{
		PaymentID:   p.ID,
		Provider:    p.Provider,
		Token:       session.Token,
		CheckoutURL: session.CheckoutURL,
		Status:      p.Status,
	}

	// 4. Providers that settle synchronously confirm right away
	if session.Outcome != "" {
		res, err := s.ConfirmPayment(ctx, payment.Resolution{
			ExternalID:     session.ExternalID,
			ConversationID: p.ConversationID,
			Outcome:        session.Outcome,
			Raw:            session.Raw,
		})
		if err != nil {
			return nil, err
		}
		init.Status = res.Payment.Status
	}

	log.Info("payment initiated", zap.String("status", string(init.Status)))
	return init, nil
}

func (s *Service) checkoutLines(ctx context.Context, o *order.Order) ([]payment.CheckoutLine, error) {
	ids := make([]string, 0, len(o.Items))
	for _, it := range o.Items {
		ids = append(ids, it.ProductID)
	}
	catalog, err := s.products.GetProductsByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	lines := make([]payment.CheckoutLine, 0, len(o.Items))
	for _, it := range o.Items {
		p := catalog[it.ProductID]
		name := p.Name
		if name == "" {
			name = it.ProductID
		}
		lines = append(lines, payment.CheckoutLine{
			ProductID: it.ProductID,
			Name:      name,
			Category:  p.Category,
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice,
		})
	}
	return lines, nil
}

func (s *Service) findPayment(ctx context.Context, externalID, conversationID string) (*payment.Payment, error) {
	if externalID != "" {
		p, err := s.payments.GetPaymentByExternalID(ctx, externalID)
		if err == nil {
			return p, nil
		}
		if !errors.Is(err, payment.ErrPaymentNotFound) {
			return nil, err
		}
	}
	if conversationID != "" {
		return s.payments.GetPaymentByConversationID(ctx, conversationID)
	}
	return nil, payment.ErrPaymentNotFound
}

// ConfirmPayment applies a provider-confirmed outcome. It may be called any
// number of times, concurrently, for the same payment: only the call that
// wins the conditional payment update fulfills the order.
func (s *Service) ConfirmPayment(ctx context.Context, res payment.Resolution) (*Result, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "service"),
		zap.String("method", "ConfirmPayment"),
		zap.String("external_id", res.ExternalID),
		zap.String("conversation_id", res.ConversationID),
		zap.String("outcome", string(res.Outcome)),
	)

	if res.Outcome != payment.OutcomeSucceeded && res.Outcome != payment.OutcomeFailed {
		return nil, payment.ErrInvalidCallback.WithDetails(map[string]string{"outcome": string(res.Outcome)})
	}

	// 1. Lookup
	p, err := s.findPayment(ctx, res.ExternalID, res.ConversationID)
	if errors.Is(err, payment.ErrPaymentNotFound) {
		log.Warn("confirmation for unknown payment")
		s.metrics.Confirmation("not_found")
		return nil, err
	}
	if err != nil {
		log.Error("payment lookup failed", zap.Error(err))
		return nil, err
	}
	log = log.With(zap.Uint("payment_id", p.ID), zap.Uint("order_id", p.OrderID))
	result := &Result{Payment: p}

	// 2. Terminal payments never move again
	switch p.Status {
	case payment.StatusSucceeded:
		result.Duplicate = true
		s.metrics.Confirmation("duplicate")
		return result, nil
	case payment.StatusFailed, payment.StatusCancelled:
		if res.Outcome == payment.OutcomeSucceeded {
			log.Error("success reported for a closed payment, not honoured", zap.String("status", string(p.Status)))
			result.Anomaly = true
			s.metrics.Confirmation("anomaly")
			return result, nil
		}
		result.Duplicate = true
		s.metrics.Confirmation("duplicate")
		return result, nil
	}

	if res.Outcome == payment.OutcomeFailed {
		return s.applyFailure(ctx, log, p, res, result)
	}

	// 3. Settle: payment, order and tracking in one write
	won, err := s.payments.SettlePayment(ctx, payment.Settlement{
		PaymentID:       p.ID,
		OrderID:         p.OrderID,
		To:              payment.StatusSucceeded,
		Raw:             res.Raw,
		OrderFrom:       order.StatusPending,
		OrderTo:         order.StatusPaid,
		TrackingStatus:  string(order.StatusProcessing),
		TrackingMessage: trackingPaymentConfirmed,
		UnmovedMessage:  trackingPaidCancelled,
	})
	if errors.Is(err, payment.ErrDuplicateSuccess) {
		log.Error("double charge: order already paid by another payment")
		result.Anomaly = true
		s.metrics.Confirmation("double_charge")
		return result, nil
	}
	if err != nil {
		return nil, err
	}
	if !won {
		log.Info("confirmation lost the race, already applied")
		result.Duplicate = true
		s.metrics.Confirmation("duplicate")
		return result, nil
	}

	p.Status = payment.StatusSucceeded
	result.Applied = true
	s.metrics.Confirmation("succeeded")
	log.Info("payment confirmed")

	// 4. The order may have been cancelled while the payment was open
	if o, err := s.orders.GetOrder(ctx, p.OrderID); err == nil && o.Status == order.StatusCancelled {
		log.Error("payment succeeded for a cancelled order, refund required")
		result.Anomaly = true
		s.metrics.Confirmation("cancelled_order")
		return result, nil
	}

	// 5. Fulfillment and notification never undo the confirmation. Item
	// errors are recorded by the engine; a pass that could not run at all
	// is recorded here so the order shows up for a manual re-run.
	report, err := s.fulfiller.Fulfill(ctx, p.OrderID)
	if err != nil {
		log.Error("fulfillment after payment failed", zap.Error(err))
		if report == nil {
			s.metrics.FulfillmentFailure("order")
			s.record(ctx, log, p.OrderID, string(order.StatusProcessing), trackingFulfillFailed)
		}
	}
	result.Fulfillment = report
	if report != nil {
		s.notify(ctx, log, p, report)
	}
	return result, nil
}

func (s *Service) record(ctx context.Context, log *zap.Logger, orderID uint, status, message string) {
	if s.history == nil {
		return
	}
	if err := s.history.Append(ctx, orderID, status, message); err != nil {
		log.Error("tracking entry not recorded", zap.String("message", message), zap.Error(err))
	}
}

func (s *Service) applyFailure(ctx context.Context, log *zap.Logger, p *payment.Payment, res payment.Resolution, result *Result) (*Result, error) {
	st := payment.Settlement{
		PaymentID:       p.ID,
		OrderID:         p.OrderID,
		To:              payment.StatusFailed,
		Raw:             res.Raw,
		TrackingStatus:  string(order.StatusPending),
		TrackingMessage: trackingPaymentFailed,
	}
	if s.cancelOnFailure {
		st.OrderFrom = order.StatusPending
		st.OrderTo = order.StatusCancelled
		st.TrackingStatus = string(order.StatusCancelled)
		st.TrackingMessage = trackingOrderCancelled
	}

	won, err := s.payments.SettlePayment(ctx, st)
	if err != nil {
		return nil, err
	}
	if !won {
		result.Duplicate = true
		s.metrics.Confirmation("duplicate")
		return result, nil
	}

	p.Status = payment.StatusFailed
	result.Applied = true
	s.metrics.Confirmation("failed")
	log.Info("payment failed", zap.Bool("order_cancelled", s.cancelOnFailure))
	return result, nil
}

func (s *Service) notify(ctx context.Context, log *zap.Logger, p *payment.Payment, report *fulfillment.Report) {
	requested, delivered := report.Totals()
	err := s.notifier.Notify(ctx, notification.Event{
		Type:       notification.EventOrderFulfilled,
		OrderID:    p.OrderID,
		UserID:     p.UserID,
		Requested:  requested,
		Delivered:  delivered,
		Complete:   report.Complete(),
		OccurredAt: s.now().UTC(),
	})
	if err != nil {
		log.Warn("notification failed", zap.Error(err))
	}
}

// Verify is the client return path: the reference in cb is resolved with
// the provider before anything is applied.
func (s *Service) Verify(ctx context.Context, userID uint, cb payment.Callback) (*Result, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "service"),
		zap.String("method", "Verify"),
		zap.Uint("user_id", userID),
	)

	if cb.Token == "" && cb.ConversationID == "" {
		return nil, payment.ErrInvalidCallback
	}

	timer := s.metrics.ProviderTimer(s.gateway.Name(), "resolve")
	res, err := s.gateway.ResolveCallback(ctx, cb)
	timer.ObserveDuration()
	if err != nil {
		if !errors.Is(err, payment.ErrOutcomePending) {
			log.Error("resolve callback failed", zap.Error(err))
		}
		return nil, err
	}

	p, err := s.findPayment(ctx, res.ExternalID, res.ConversationID)
	if err != nil {
		return nil, err
	}
	if p.UserID != userID {
		log.Warn("payment verification by non-owner", zap.Uint("payment_id", p.ID))
		return nil, payment.ErrPaymentNotFound
	}

	return s.ConfirmPayment(ctx, *res)
}
