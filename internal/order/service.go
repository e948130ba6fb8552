package order

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"gamekeys-be/internal/inventory"
	"gamekeys-be/internal/logger"
	"gamekeys-be/internal/product"
	"gamekeys-be/internal/tracking"

	"go.uber.org/zap"
)

type Service interface {
	CreateOrder(ctx context.Context, userID uint, lines []LineRequest) (*Order, error)
	GetOrder(ctx context.Context, orderID, userID uint) (*Order, error)
	UpdateStatus(ctx context.Context, orderID uint, status OrderStatus) (*Order, error)
	GetOrderCodes(ctx context.Context, orderID, userID uint) ([]OrderCode, error)
	GetOrderTracking(ctx context.Context, orderID, userID uint) ([]tracking.Entry, error)
}

type codeReader interface {
	ListDeliveredByOrder(ctx context.Context, orderID uint) ([]inventory.DeliveredCode, error)
}

type history interface {
	Append(ctx context.Context, orderID uint, status, message string) error
	ReadHistory(ctx context.Context, orderID uint) ([]tracking.Entry, error)
}

type service struct {
	repo     Repository
	products product.Repository
	codes    codeReader
	history  history
}

func NewService(repo Repository, products product.Repository, codes codeReader, h history) Service {
	return &service{
		repo:     repo,
		products: products,
		codes:    codes,
		history:  h,
	}
}

func (s *service) CreateOrder(ctx context.Context, userID uint, lines []LineRequest) (*Order, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "service"),
		zap.String("method", "CreateOrder"),
		zap.Uint("user_id", userID),
	)

	// 1. Validate and merge duplicate lines
	if len(lines) == 0 {
		return nil, ErrInvalidOrder.WithDetails(map[string]string{"items": "at least one item is required"})
	}

	qty := make(map[string]int, len(lines))
	ids := make([]string, 0, len(lines))
	for _, l := range lines {
		pid := strings.TrimSpace(l.ProductID)
		if pid == "" {
			return nil, ErrInvalidOrder.WithDetails(map[string]string{"product_id": "required"})
		}
		if l.Quantity < 1 {
			return nil, ErrInvalidOrder.WithDetails(map[string]string{
				"quantity": fmt.Sprintf("must be at least 1 for %s", pid),
			})
		}
		if _, seen := qty[pid]; !seen {
			ids = append(ids, pid)
		}
		qty[pid] += l.Quantity
	}

	// 2. Resolve catalog prices
	catalog, err := s.products.GetProductsByIDs(ctx, ids)
	if err != nil {
		log.Error("catalog lookup failed", zap.Error(err))
		return nil, err
	}

	o := &Order{UserID: userID, Status: StatusPending}
	for _, pid := range ids {
		p, ok := catalog[pid]
		if !ok || !p.Active {
			log.Warn("rejecting unknown or inactive product", zap.String("product_id", pid))
			return nil, ErrInvalidProduct.WithDetails(map[string]string{"product_id": pid})
		}
		if o.Currency == "" {
			o.Currency = p.Currency
		} else if o.Currency != p.Currency {
			return nil, ErrInvalidOrder.WithDetails(map[string]string{"currency": "items use different currencies"})
		}

		item := OrderItem{ProductID: pid, Quantity: qty[pid], UnitPrice: p.Price}
		o.Items = append(o.Items, item)
		o.TotalPrice += item.Subtotal()
	}

	// 3. Persist order, items and opening history atomically
	if err := s.repo.CreateOrder(ctx, o); err != nil {
		return nil, err
	}

	log.Info("order created",
		zap.Uint("order_id", o.ID),
		zap.Int64("total_price", o.TotalPrice),
		zap.Int("items", len(o.Items)),
	)
	return o, nil
}

// GetOrder hides orders of other users behind ErrOrderNotFound.
func (s *service) GetOrder(ctx context.Context, orderID, userID uint) (*Order, error) {
	o, err := s.repo.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.UserID != userID {
		logger.FromCtx(ctx).Warn("order access by non-owner",
			zap.Uint("order_id", orderID),
			zap.Uint("user_id", userID),
		)
		return nil, ErrOrderNotFound
	}
	return o, nil
}

func (s *service) UpdateStatus(ctx context.Context, orderID uint, status OrderStatus) (*Order, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "service"),
		zap.String("method", "UpdateStatus"),
		zap.Uint("order_id", orderID),
		zap.String("to", string(status)),
	)

	if !status.Valid() {
		return nil, ErrInvalidTransition.WithDetails(map[string]string{"status": string(status)})
	}

	o, err := s.repo.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !AdminCanTransition(o.Status, status) {
		return nil, ErrInvalidTransition.WithDetails(map[string]string{
			"from": string(o.Status),
			"to":   string(status),
		})
	}

	ok, err := s.repo.UpdateOrderStatus(ctx, orderID, o.Status, status)
	if err != nil {
		log.Error("update order status failed", zap.Error(err))
		return nil, err
	}
	if !ok {
		return nil, ErrStatusChanged
	}

	if err := s.history.Append(ctx, orderID, string(status), statusMessage(status)); err != nil {
		log.Warn("status changed without tracking entry", zap.Error(err))
	}

	log.Info("order status updated", zap.String("from", string(o.Status)))
	o.Status = status
	return o, nil
}

func (s *service) GetOrderCodes(ctx context.Context, orderID, userID uint) ([]OrderCode, error) {
	if _, err := s.GetOrder(ctx, orderID, userID); err != nil {
		return nil, err
	}

	delivered, err := s.codes.ListDeliveredByOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(delivered, func(i, j int) bool { return delivered[i].ID < delivered[j].ID })

	out := make([]OrderCode, 0, len(delivered))
	for _, d := range delivered {
		out = append(out, OrderCode{ProductID: d.ProductID, Code: d.Code})
	}
	return out, nil
}

func (s *service) GetOrderTracking(ctx context.Context, orderID, userID uint) ([]tracking.Entry, error) {
	if _, err := s.GetOrder(ctx, orderID, userID); err != nil {
		return nil, err
	}
	return s.history.ReadHistory(ctx, orderID)
}

func statusMessage(s OrderStatus) string {
	switch s {
	case StatusProcessing:
		return "Order is being processed"
	case StatusShipped:
		return "Codes have been sent"
	case StatusDelivered:
		return "Order delivered"
	case StatusCancelled:
		return "Order cancelled"
	default:
		return "Order status changed to " + string(s)
	}
}
