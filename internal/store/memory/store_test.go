package memory

import (
	"context"
	"sync"
	"testing"

	"gamekeys-be/internal/inventory"
	"gamekeys-be/internal/order"
	"gamekeys-be/internal/payment"
	"gamekeys-be/internal/product"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedOrder(t *testing.T, s *Store, qty int) *order.Order {
	t.Helper()
	s.SaveProduct(product.Product{ID: "steam-50", Price: 50000, Currency: "IDR", Active: true})
	o := &order.Order{
		UserID:     1,
		Status:     order.StatusPaid,
		Currency:   "IDR",
		Items:      []order.OrderItem{{ProductID: "steam-50", Quantity: qty, UnitPrice: 50000}},
		TotalPrice: int64(qty) * 50000,
	}
	require.NoError(t, s.CreateOrder(context.Background(), o))
	return o
}

func TestStore_ClaimForItem(t *testing.T) {
	ctx := context.Background()

	t.Run("PartialThenTopUp", func(t *testing.T) {
		s := New()
		o := seedOrder(t, s, 3)
		_, err := s.ImportCodes(ctx, "steam-50", []string{"A", "B"})
		require.NoError(t, err)

		claim := inventory.ItemClaim{OrderItemID: o.Items[0].ID, ProductID: "steam-50", Quantity: 3}
		res, err := s.ClaimForItem(ctx, claim)
		require.NoError(t, err)
		assert.Equal(t, 2, res.Delivered)
		assert.True(t, res.Short())
		assert.Equal(t, "A", res.Claimed[0].Code)

		_, err = s.ImportCodes(ctx, "steam-50", []string{"B", "C", "D"})
		require.NoError(t, err)

		res, err = s.ClaimForItem(ctx, claim)
		require.NoError(t, err)
		assert.Equal(t, 3, res.Delivered)
		require.Len(t, res.Claimed, 1)
		assert.Equal(t, "C", res.Claimed[0].Code)

		n, _ := s.CountAvailable(ctx, "steam-50")
		assert.Equal(t, 1, n)
	})

	t.Run("ConcurrentClaimsNeverShareCodes", func(t *testing.T) {
		s := New()
		o := seedOrder(t, s, 5)
		_, err := s.ImportCodes(ctx, "steam-50", []string{"1", "2", "3", "4", "5", "6", "7"})
		require.NoError(t, err)

		var wg sync.WaitGroup
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, _ = s.ClaimForItem(ctx, inventory.ItemClaim{OrderItemID: o.Items[0].ID, ProductID: "steam-50", Quantity: 5})
			}()
		}
		wg.Wait()

		delivered, err := s.ListDeliveredByOrder(ctx, o.ID)
		require.NoError(t, err)
		assert.Len(t, delivered, 5)

		seen := map[uint]bool{}
		for _, d := range delivered {
			assert.False(t, seen[d.CodeID])
			seen[d.CodeID] = true
		}
	})

	t.Run("UnknownItem", func(t *testing.T) {
		_, err := New().ClaimForItem(ctx, inventory.ItemClaim{OrderItemID: 99})
		assert.ErrorIs(t, err, inventory.ErrOrderItemNotFound)
	})
}

func TestStore_SettlePayment(t *testing.T) {
	ctx := context.Background()
	s := New()
	o := seedOrder(t, s, 1)
	_, err := s.UpdateOrderStatus(ctx, o.ID, order.StatusPaid, order.StatusPending)
	require.NoError(t, err)

	first := &payment.Payment{OrderID: o.ID, UserID: 1, ConversationID: "PAY-1", Status: payment.StatusInitiated}
	second := &payment.Payment{OrderID: o.ID, UserID: 1, ConversationID: "PAY-2", Status: payment.StatusInitiated}
	require.NoError(t, s.SavePayment(ctx, first))
	require.NoError(t, s.SavePayment(ctx, second))

	settle := payment.Settlement{
		PaymentID:       first.ID,
		OrderID:         o.ID,
		To:              payment.StatusSucceeded,
		OrderFrom:       order.StatusPending,
		OrderTo:         order.StatusPaid,
		TrackingStatus:  "processing",
		TrackingMessage: "Payment confirmed",
	}

	won, err := s.SettlePayment(ctx, settle)
	require.NoError(t, err)
	assert.True(t, won)

	won, err = s.SettlePayment(ctx, settle)
	require.NoError(t, err)
	assert.False(t, won)

	settle.PaymentID = second.ID
	_, err = s.SettlePayment(ctx, settle)
	assert.ErrorIs(t, err, payment.ErrDuplicateSuccess)

	got, _ := s.GetOrder(ctx, o.ID)
	assert.Equal(t, order.StatusPaid, got.Status)

	entries, _ := s.ListTracking(ctx, o.ID)
	require.Len(t, entries, 2)
	assert.Equal(t, order.CreatedMessage, entries[0].Message)
	assert.Equal(t, "Payment confirmed", entries[1].Message)

	err = s.SavePayment(ctx, &payment.Payment{OrderID: o.ID, UserID: 1, ConversationID: "PAY-1"})
	assert.ErrorIs(t, err, payment.ErrDuplicateReference)
}

func TestStore_SettlePayment_OrderAlreadyMoved(t *testing.T) {
	ctx := context.Background()
	s := New()
	o := seedOrder(t, s, 1)
	_, err := s.UpdateOrderStatus(ctx, o.ID, order.StatusPaid, order.StatusCancelled)
	require.NoError(t, err)

	p := &payment.Payment{OrderID: o.ID, UserID: 1, ConversationID: "PAY-1", Status: payment.StatusInitiated}
	require.NoError(t, s.SavePayment(ctx, p))

	won, err := s.SettlePayment(ctx, payment.Settlement{
		PaymentID:       p.ID,
		OrderID:         o.ID,
		To:              payment.StatusSucceeded,
		OrderFrom:       order.StatusPending,
		OrderTo:         order.StatusPaid,
		TrackingStatus:  "processing",
		TrackingMessage: "Payment confirmed",
		UnmovedMessage:  "Payment received for a cancelled order",
	})
	require.NoError(t, err)
	assert.True(t, won)

	got, _ := s.GetOrder(ctx, o.ID)
	assert.Equal(t, order.StatusCancelled, got.Status)

	entries, _ := s.ListTracking(ctx, o.ID)
	require.Len(t, entries, 2)
	assert.Equal(t, "cancelled", entries[1].Status)
	assert.Equal(t, "Payment received for a cancelled order", entries[1].Message)
}

func TestStore_SaveWebhookEvent(t *testing.T) {
	ctx := context.Background()
	s := New()

	ev := &payment.WebhookEvent{Provider: "xendit", EventID: "inv_1:PAID"}
	id, processed, err := s.SaveWebhookEvent(ctx, ev)
	require.NoError(t, err)
	assert.False(t, processed)

	require.NoError(t, s.MarkWebhookProcessed(ctx, id))

	again, processed, err := s.SaveWebhookEvent(ctx, &payment.WebhookEvent{Provider: "xendit", EventID: "inv_1:PAID"})
	require.NoError(t, err)
	assert.Equal(t, id, again)
	assert.True(t, processed)
	assert.Equal(t, 2, s.WebhookAttempts("xendit", "inv_1:PAID"))
}
