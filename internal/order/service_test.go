package order

import (
	"context"
	"errors"
	"testing"
	"time"

	"gamekeys-be/internal/inventory"
	"gamekeys-be/internal/product"
	"gamekeys-be/internal/tracking"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// --- Mocks ---

type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) CreateOrder(ctx context.Context, o *Order) error {
	args := m.Called(ctx, o)
	if args.Error(0) == nil {
		o.ID = 42
		for i := range o.Items {
			o.Items[i].ID = uint(i + 1)
			o.Items[i].OrderID = 42
		}
	}
	return args.Error(0)
}

func (m *MockRepository) GetOrder(ctx context.Context, orderID uint) (*Order, error) {
	args := m.Called(ctx, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Order), args.Error(1)
}

func (m *MockRepository) UpdateOrderStatus(ctx context.Context, orderID uint, from, to OrderStatus) (bool, error) {
	args := m.Called(ctx, orderID, from, to)
	return args.Bool(0), args.Error(1)
}

type MockProducts struct {
	mock.Mock
}

func (m *MockProducts) GetProductsByIDs(ctx context.Context, ids []string) (map[string]product.Product, error) {
	args := m.Called(ctx, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]product.Product), args.Error(1)
}

type MockCodes struct {
	mock.Mock
}

func (m *MockCodes) ListDeliveredByOrder(ctx context.Context, orderID uint) ([]inventory.DeliveredCode, error) {
	args := m.Called(ctx, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]inventory.DeliveredCode), args.Error(1)
}

type MockHistory struct {
	mock.Mock
}

func (m *MockHistory) Append(ctx context.Context, orderID uint, status, message string) error {
	return m.Called(ctx, orderID, status, message).Error(0)
}

func (m *MockHistory) ReadHistory(ctx context.Context, orderID uint) ([]tracking.Entry, error) {
	args := m.Called(ctx, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]tracking.Entry), args.Error(1)
}

type fixture struct {
	repo     *MockRepository
	products *MockProducts
	codes    *MockCodes
	history  *MockHistory
	svc      Service
}

func newFixture() *fixture {
	f := &fixture{
		repo:     new(MockRepository),
		products: new(MockProducts),
		codes:    new(MockCodes),
		history:  new(MockHistory),
	}
	f.svc = NewService(f.repo, f.products, f.codes, f.history)
	return f
}

var catalog = map[string]product.Product{
	"steam-50": {ID: "steam-50", Name: "Steam Wallet 50K", Price: 50000, Currency: "IDR", Active: true},
	"vp-1000":  {ID: "vp-1000", Name: "Valorant 1000 VP", Price: 120000, Currency: "IDR", Active: true},
	"old-card": {ID: "old-card", Name: "Retired", Price: 1000, Currency: "IDR", Active: false},
	"usd-card": {ID: "usd-card", Name: "US card", Price: 1000, Currency: "USD", Active: true},
}

func TestService_CreateOrder(t *testing.T) {
	ctx := context.Background()

	t.Run("Success merges duplicate lines and snapshots prices", func(t *testing.T) {
		f := newFixture()
		f.products.On("GetProductsByIDs", ctx, []string{"steam-50", "vp-1000"}).Return(catalog, nil)
		f.repo.On("CreateOrder", ctx, mock.AnythingOfType("*order.Order")).Return(nil)

		o, err := f.svc.CreateOrder(ctx, 7, []LineRequest{
			{ProductID: "steam-50", Quantity: 1},
			{ProductID: "vp-1000", Quantity: 1},
			{ProductID: "steam-50", Quantity: 2},
		})
		require.NoError(t, err)

		assert.Equal(t, uint(42), o.ID)
		assert.Equal(t, StatusPending, o.Status)
		assert.Equal(t, "IDR", o.Currency)
		require.Len(t, o.Items, 2)
		assert.Equal(t, 3, o.Items[0].Quantity)
		assert.Equal(t, int64(50000), o.Items[0].UnitPrice)
		assert.Equal(t, int64(3*50000+120000), o.TotalPrice)
		f.repo.AssertExpectations(t)
		f.history.AssertNotCalled(t, "Append", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("Empty lines", func(t *testing.T) {
		f := newFixture()
		_, err := f.svc.CreateOrder(ctx, 7, nil)
		assert.ErrorIs(t, err, ErrInvalidOrder)
		f.repo.AssertNotCalled(t, "CreateOrder", mock.Anything, mock.Anything)
	})

	t.Run("Zero quantity", func(t *testing.T) {
		f := newFixture()
		_, err := f.svc.CreateOrder(ctx, 7, []LineRequest{{ProductID: "steam-50", Quantity: 0}})
		assert.ErrorIs(t, err, ErrInvalidOrder)
	})

	t.Run("Unknown product", func(t *testing.T) {
		f := newFixture()
		f.products.On("GetProductsByIDs", ctx, []string{"nope"}).Return(catalog, nil)

		_, err := f.svc.CreateOrder(ctx, 7, []LineRequest{{ProductID: "nope", Quantity: 1}})
		assert.ErrorIs(t, err, ErrInvalidProduct)
		f.repo.AssertNotCalled(t, "CreateOrder", mock.Anything, mock.Anything)
	})

	t.Run("Inactive product", func(t *testing.T) {
		f := newFixture()
		f.products.On("GetProductsByIDs", ctx, []string{"old-card"}).Return(catalog, nil)

		_, err := f.svc.CreateOrder(ctx, 7, []LineRequest{{ProductID: "old-card", Quantity: 1}})
		assert.ErrorIs(t, err, ErrInvalidProduct)
	})

	t.Run("Mixed currencies", func(t *testing.T) {
		f := newFixture()
		f.products.On("GetProductsByIDs", ctx, []string{"steam-50", "usd-card"}).Return(catalog, nil)

		_, err := f.svc.CreateOrder(ctx, 7, []LineRequest{
			{ProductID: "steam-50", Quantity: 1},
			{ProductID: "usd-card", Quantity: 1},
		})
		assert.ErrorIs(t, err, ErrInvalidOrder)
	})

	t.Run("Repository error", func(t *testing.T) {
		f := newFixture()
		f.products.On("GetProductsByIDs", ctx, []string{"steam-50"}).Return(catalog, nil)
		f.repo.On("CreateOrder", ctx, mock.Anything).Return(errors.New("tx failed"))

		_, err := f.svc.CreateOrder(ctx, 7, []LineRequest{{ProductID: "steam-50", Quantity: 1}})
		assert.EqualError(t, err, "tx failed")
		f.history.AssertNotCalled(t, "Append", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestService_GetOrder(t *testing.T) {
	ctx := context.Background()
	owned := &Order{ID: 1, UserID: 7, Status: StatusPending}

	t.Run("Owner", func(t *testing.T) {
		f := newFixture()
		f.repo.On("GetOrder", ctx, uint(1)).Return(owned, nil)

		o, err := f.svc.GetOrder(ctx, 1, 7)
		assert.NoError(t, err)
		assert.Equal(t, owned, o)
	})

	t.Run("Other user sees not found", func(t *testing.T) {
		f := newFixture()
		f.repo.On("GetOrder", ctx, uint(1)).Return(owned, nil)

		o, err := f.svc.GetOrder(ctx, 1, 8)
		assert.ErrorIs(t, err, ErrOrderNotFound)
		assert.Nil(t, o)
	})
}

func TestService_UpdateStatus(t *testing.T) {
	ctx := context.Background()

	t.Run("paid to processing", func(t *testing.T) {
		f := newFixture()
		f.repo.On("GetOrder", ctx, uint(1)).Return(&Order{ID: 1, Status: StatusPaid}, nil)
		f.repo.On("UpdateOrderStatus", ctx, uint(1), StatusPaid, StatusProcessing).Return(true, nil)
		f.history.On("Append", ctx, uint(1), "processing", mock.Anything).Return(nil)

		o, err := f.svc.UpdateStatus(ctx, 1, StatusProcessing)
		require.NoError(t, err)
		assert.Equal(t, StatusProcessing, o.Status)
		f.history.AssertExpectations(t)
	})

	t.Run("skipping a step is rejected", func(t *testing.T) {
		f := newFixture()
		f.repo.On("GetOrder", ctx, uint(1)).Return(&Order{ID: 1, Status: StatusPaid}, nil)

		_, err := f.svc.UpdateStatus(ctx, 1, StatusDelivered)
		assert.ErrorIs(t, err, ErrInvalidTransition)
		f.repo.AssertNotCalled(t, "UpdateOrderStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("cancel after delivered is rejected", func(t *testing.T) {
		f := newFixture()
		f.repo.On("GetOrder", ctx, uint(1)).Return(&Order{ID: 1, Status: StatusDelivered}, nil)

		_, err := f.svc.UpdateStatus(ctx, 1, StatusCancelled)
		assert.ErrorIs(t, err, ErrInvalidTransition)
	})

	t.Run("pending to paid is rejected", func(t *testing.T) {
		f := newFixture()
		f.repo.On("GetOrder", ctx, uint(1)).Return(&Order{ID: 1, Status: StatusPending}, nil)

		_, err := f.svc.UpdateStatus(ctx, 1, StatusPaid)
		assert.ErrorIs(t, err, ErrInvalidTransition)
		f.repo.AssertNotCalled(t, "UpdateOrderStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		f.history.AssertNotCalled(t, "Append", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("unknown status", func(t *testing.T) {
		f := newFixture()
		_, err := f.svc.UpdateStatus(ctx, 1, OrderStatus("refunded"))
		assert.ErrorIs(t, err, ErrInvalidTransition)
	})

	t.Run("lost race", func(t *testing.T) {
		f := newFixture()
		f.repo.On("GetOrder", ctx, uint(1)).Return(&Order{ID: 1, Status: StatusPending}, nil)
		f.repo.On("UpdateOrderStatus", ctx, uint(1), StatusPending, StatusCancelled).Return(false, nil)

		_, err := f.svc.UpdateStatus(ctx, 1, StatusCancelled)
		assert.ErrorIs(t, err, ErrStatusChanged)
	})
}

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to OrderStatus
		want     bool
	}{
		{StatusPending, StatusPaid, true},
		{StatusPaid, StatusProcessing, true},
		{StatusProcessing, StatusShipped, true},
		{StatusShipped, StatusDelivered, true},
		{StatusPending, StatusCancelled, true},
		{StatusShipped, StatusCancelled, true},
		{StatusDelivered, StatusCancelled, false},
		{StatusCancelled, StatusPending, false},
		{StatusPaid, StatusPending, false},
		{StatusPending, StatusShipped, false},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, CanTransition(c.from, c.to), "%s -> %s", c.from, c.to)
	}
}

func TestAdminCanTransition(t *testing.T) {
	assert.False(t, AdminCanTransition(StatusPending, StatusPaid))
	assert.True(t, AdminCanTransition(StatusPending, StatusCancelled))
	assert.True(t, AdminCanTransition(StatusPaid, StatusProcessing))
	assert.True(t, AdminCanTransition(StatusShipped, StatusDelivered))
	assert.False(t, AdminCanTransition(StatusCancelled, StatusPaid))
}

func TestService_GetOrderCodes(t *testing.T) {
	ctx := context.Background()

	t.Run("returns codes in delivery order", func(t *testing.T) {
		f := newFixture()
		f.repo.On("GetOrder", ctx, uint(3)).Return(&Order{ID: 3, UserID: 7}, nil)
		f.codes.On("ListDeliveredByOrder", ctx, uint(3)).Return([]inventory.DeliveredCode{
			{ID: 2, ProductID: "vp-1000", Code: "VP-2"},
			{ID: 1, ProductID: "steam-50", Code: "ST-1"},
		}, nil)

		codes, err := f.svc.GetOrderCodes(ctx, 3, 7)
		require.NoError(t, err)
		assert.Equal(t, []OrderCode{
			{ProductID: "steam-50", Code: "ST-1"},
			{ProductID: "vp-1000", Code: "VP-2"},
		}, codes)
	})

	t.Run("non-owner", func(t *testing.T) {
		f := newFixture()
		f.repo.On("GetOrder", ctx, uint(3)).Return(&Order{ID: 3, UserID: 7}, nil)

		_, err := f.svc.GetOrderCodes(ctx, 3, 99)
		assert.ErrorIs(t, err, ErrOrderNotFound)
		f.codes.AssertNotCalled(t, "ListDeliveredByOrder", mock.Anything, mock.Anything)
	})
}

func TestService_GetOrderTracking(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	entries := []tracking.Entry{{Status: "pending", CreatedAt: time.Now()}}
	f.repo.On("GetOrder", ctx, uint(3)).Return(&Order{ID: 3, UserID: 7}, nil)
	f.history.On("ReadHistory", ctx, uint(3)).Return(entries, nil)

	got, err := f.svc.GetOrderTracking(ctx, 3, 7)
	assert.NoError(t, err)
	assert.Equal(t, entries, got)
}
