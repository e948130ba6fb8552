// Package memory is a process-local backend for every repository port.
// One mutex guards all state, so each method is atomic with respect to the
// others in the same way a Postgres transaction is.
package memory

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"sync"
	"time"

	"gamekeys-be/internal/coupon"
	"gamekeys-be/internal/inventory"
	"gamekeys-be/internal/order"
	"gamekeys-be/internal/payment"
	"gamekeys-be/internal/product"
	"gamekeys-be/internal/tracking"
)

type webhookRow struct {
	ev        payment.WebhookEvent
	attempts  int
	processed bool
	lastError string
}

type couponUsage struct {
	couponID uint
	userID   uint
	usedAt   time.Time
}

type Store struct {
	mu  sync.Mutex
	now func() time.Time

	products map[string]product.Product

	orders     map[uint]*order.Order
	orderItems map[uint]*order.OrderItem
	nextOrder  uint
	nextItem   uint

	trackingRows []tracking.Entry
	nextTracking uint

	payments    map[uint]*payment.Payment
	nextPayment uint

	webhooks    map[string]*webhookRow
	webhookByID map[int64]*webhookRow
	nextWebhook int64

	codes         []*inventory.Code
	delivered     []inventory.DeliveredCode
	nextCode      uint
	nextDelivered uint

	coupons    map[string]*coupon.Coupon
	usages     []couponUsage
	nextCoupon uint
}

func New() *Store {
	return &Store{
		now:         func() time.Time { return time.Now().UTC() },
		products:    map[string]product.Product{},
		orders:      map[uint]*order.Order{},
		orderItems:  map[uint]*order.OrderItem{},
		payments:    map[uint]*payment.Payment{},
		webhooks:    map[string]*webhookRow{},
		webhookByID: map[int64]*webhookRow{},
		coupons:     map[string]*coupon.Coupon{},
	}
}

// ---- catalog ----

func (s *Store) SaveProduct(p product.Product) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.products[p.ID] = p
}

func (s *Store) GetProductsByIDs(_ context.Context, ids []string) (map[string]product.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]product.Product, len(ids))
	for _, id := range ids {
		if p, ok := s.products[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

// ---- orders ----

func (s *Store) CreateOrder(_ context.Context, o *order.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.nextOrder++
	o.ID = s.nextOrder
	o.CreatedAt, o.UpdatedAt = now, now
	for i := range o.Items {
		s.nextItem++
		o.Items[i].ID = s.nextItem
		o.Items[i].OrderID = o.ID
		item := o.Items[i]
		s.orderItems[item.ID] = &item
	}
	s.orders[o.ID] = copyOrder(o)
	s.appendTracking(&tracking.Entry{OrderID: o.ID, Status: string(o.Status), Message: order.CreatedMessage})
	return nil
}

func (s *Store) GetOrder(_ context.Context, orderID uint) (*order.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.orders[orderID]
	if !ok {
		return nil, order.ErrOrderNotFound
	}
	return copyOrder(o), nil
}

func (s *Store) UpdateOrderStatus(_ context.Context, orderID uint, from, to order.OrderStatus) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.moveOrder(orderID, from, to), nil
}

func (s *Store) moveOrder(orderID uint, from, to order.OrderStatus) bool {
	o, ok := s.orders[orderID]
	if !ok || o.Status != from {
		return false
	}
	o.Status = to
	o.UpdatedAt = s.now()
	return true
}

func copyOrder(o *order.Order) *order.Order {
	cp := *o
	cp.Items = append([]order.OrderItem(nil), o.Items...)
	return &cp
}

// ---- tracking ----

func (s *Store) AppendTracking(_ context.Context, e *tracking.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.appendTracking(e)
	return nil
}

func (s *Store) appendTracking(e *tracking.Entry) {
	s.nextTracking++
	e.ID = s.nextTracking
	e.CreatedAt = s.now()
	s.trackingRows = append(s.trackingRows, *e)
}

func (s *Store) ListTracking(_ context.Context, orderID uint) ([]tracking.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := []tracking.Entry{}
	for _, e := range s.trackingRows {
		if e.OrderID == orderID {
			out = append(out, e)
		}
	}
	return out, nil
}

// ---- payments ----

func (s *Store) SavePayment(_ context.Context, p *payment.Payment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.payments {
		if existing.ConversationID == p.ConversationID {
			return payment.ErrDuplicateReference
		}
	}

	now := s.now()
	s.nextPayment++
	p.ID = s.nextPayment
	p.CreatedAt, p.UpdatedAt = now, now
	cp := *p
	s.payments[p.ID] = &cp
	return nil
}

func (s *Store) GetPaymentByExternalID(_ context.Context, externalID string) (*payment.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, p := range s.payments {
		if p.ExternalID != nil && *p.ExternalID == externalID {
			cp := *p
			return &cp, nil
		}
	}
	return nil, payment.ErrPaymentNotFound
}

func (s *Store) GetPaymentByConversationID(_ context.Context, conversationID string) (*payment.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, p := range s.payments {
		if p.ConversationID == conversationID {
			cp := *p
			return &cp, nil
		}
	}
	return nil, payment.ErrPaymentNotFound
}

func (s *Store) MarkPaymentProcessing(_ context.Context, paymentID uint, externalID string, raw json.RawMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.payments[paymentID]
	if !ok || p.Status != payment.StatusInitiated {
		return nil
	}
	ext := externalID
	p.ExternalID = &ext
	p.RawPayload = raw
	p.Status = payment.StatusProcessing
	p.UpdatedAt = s.now()
	return nil
}

func (s *Store) SettlePayment(_ context.Context, st payment.Settlement) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.payments[st.PaymentID]
	if !ok {
		return false, nil
	}
	if p.Status != payment.StatusInitiated && p.Status != payment.StatusProcessing {
		return false, nil
	}
	if st.To == payment.StatusSucceeded {
		for _, other := range s.payments {
			if other.ID != p.ID && other.OrderID == p.OrderID && other.Status == payment.StatusSucceeded {
				return false, payment.ErrDuplicateSuccess
			}
		}
	}

	p.Status = st.To
	if len(st.Raw) > 0 {
		p.RawPayload = st.Raw
	}
	p.UpdatedAt = s.now()

	trackStatus, trackMsg := st.TrackingStatus, st.TrackingMessage
	if st.OrderTo != "" && !s.moveOrder(st.OrderID, st.OrderFrom, st.OrderTo) && st.UnmovedMessage != "" {
		if o, ok := s.orders[st.OrderID]; ok {
			trackStatus = string(o.Status)
		}
		trackMsg = st.UnmovedMessage
	}
	if trackStatus != "" {
		s.appendTracking(&tracking.Entry{OrderID: st.OrderID, Status: trackStatus, Message: trackMsg})
	}
	return true, nil
}

func (s *Store) SaveWebhookEvent(_ context.Context, ev *payment.WebhookEvent) (int64, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := ev.Provider + "\x00" + ev.EventID
	if row, ok := s.webhooks[key]; ok {
		row.attempts++
		ev.ID = row.ev.ID
		return row.ev.ID, row.processed, nil
	}

	s.nextWebhook++
	ev.ID = s.nextWebhook
	row := &webhookRow{ev: *ev, attempts: 1}
	s.webhooks[key] = row
	s.webhookByID[ev.ID] = row
	return ev.ID, false, nil
}

func (s *Store) MarkWebhookProcessed(_ context.Context, webhookID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if row, ok := s.webhookByID[webhookID]; ok {
		row.processed = true
		row.lastError = ""
	}
	return nil
}

func (s *Store) MarkWebhookFailed(_ context.Context, webhookID int64, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if row, ok := s.webhookByID[webhookID]; ok {
		row.lastError = reason
	}
	return nil
}

// WebhookAttempts reports how often an event was delivered.
func (s *Store) WebhookAttempts(provider, eventID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	if row, ok := s.webhooks[provider+"\x00"+eventID]; ok {
		return row.attempts
	}
	return 0
}

// ---- inventory ----

func (s *Store) ClaimForItem(_ context.Context, item inventory.ItemClaim) (*inventory.ClaimResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	oi, ok := s.orderItems[item.OrderItemID]
	if !ok {
		return nil, inventory.ErrOrderItemNotFound
	}

	res := &inventory.ClaimResult{Requested: oi.Quantity}
	for _, d := range s.delivered {
		if d.OrderItemID == oi.ID {
			res.Delivered++
		}
	}

	// codes are kept in id order, so the first unused ones are the oldest
	now := s.now()
	for _, c := range s.codes {
		if res.Delivered >= res.Requested {
			break
		}
		if c.ProductID != oi.ProductID || c.IsUsed {
			continue
		}
		c.IsUsed = true
		usedAt := now
		c.UsedAt = &usedAt

		s.nextDelivered++
		d := inventory.DeliveredCode{
			ID:          s.nextDelivered,
			OrderItemID: oi.ID,
			ProductID:   oi.ProductID,
			CodeID:      c.ID,
			Code:        c.Code,
			CreatedAt:   now,
		}
		s.delivered = append(s.delivered, d)
		res.Claimed = append(res.Claimed, d)
		res.Delivered++
	}
	return res, nil
}

func (s *Store) ListDeliveredByOrder(_ context.Context, orderID uint) ([]inventory.DeliveredCode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := []inventory.DeliveredCode{}
	for _, d := range s.delivered {
		if oi, ok := s.orderItems[d.OrderItemID]; ok && oi.OrderID == orderID {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) ImportCodes(_ context.Context, productID string, codes []string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing := map[string]bool{}
	for _, c := range s.codes {
		if c.ProductID == productID {
			existing[c.Code] = true
		}
	}

	imported := 0
	now := s.now()
	for _, code := range codes {
		if existing[code] {
			continue
		}
		existing[code] = true
		s.nextCode++
		s.codes = append(s.codes, &inventory.Code{ID: s.nextCode, ProductID: productID, Code: code, CreatedAt: now})
		imported++
	}
	return imported, nil
}

func (s *Store) CountAvailable(_ context.Context, productID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, c := range s.codes {
		if c.ProductID == productID && !c.IsUsed {
			n++
		}
	}
	return n, nil
}

// ---- coupons ----

func (s *Store) SaveCoupon(c coupon.Coupon) coupon.Coupon {
	s.mu.Lock()
	defer s.mu.Unlock()

	if c.ID == 0 {
		s.nextCoupon++
		c.ID = s.nextCoupon
	}
	s.coupons[strings.ToLower(c.Code)] = &c
	return c
}

func (s *Store) RecordCouponUsage(couponID, userID uint) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.usages = append(s.usages, couponUsage{couponID: couponID, userID: userID, usedAt: s.now()})
	for _, c := range s.coupons {
		if c.ID == couponID {
			c.UsedCount++
		}
	}
}

func (s *Store) GetCouponByCode(_ context.Context, code string) (*coupon.Coupon, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.coupons[strings.ToLower(strings.TrimSpace(code))]
	if !ok {
		return nil, coupon.ErrCouponNotFound
	}
	cp := *c
	cp.TargetValues = append([]string(nil), c.TargetValues...)
	return &cp, nil
}

func (s *Store) HasUserUsedCoupon(_ context.Context, couponID, userID uint) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.usages {
		if u.couponID == couponID && u.userID == userID {
			return true, nil
		}
	}
	return false, nil
}

var (
	_ product.Repository   = (*Store)(nil)
	_ order.Repository     = (*Store)(nil)
	_ tracking.Repository  = (*Store)(nil)
	_ payment.Repository   = (*Store)(nil)
	_ inventory.Repository = (*Store)(nil)
	_ coupon.Repository    = (*Store)(nil)
)
