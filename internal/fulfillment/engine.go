package fulfillment

import (
	"context"
	"errors"
	"fmt"

	"gamekeys-be/internal/apperr"
	"gamekeys-be/internal/inventory"
	"gamekeys-be/internal/logger"
	"gamekeys-be/internal/metrics"
	"gamekeys-be/internal/order"

	"go.uber.org/zap"
)

var ErrOrderNotFulfillable = apperr.New(apperr.CodeStateConflict, "order is not in a fulfillable state")

type orderReader interface {
	GetOrder(ctx context.Context, orderID uint) (*order.Order, error)
}

type history interface {
	Append(ctx context.Context, orderID uint, status, message string) error
}

type ItemReport struct {
	OrderItemID uint   `json:"order_item_id"`
	ProductID   string `json:"product_id"`
	Requested   int    `json:"requested"`
	Delivered   int    `json:"delivered"`
	Claimed     int    `json:"claimed"`
}

type Report struct {
	OrderID uint         `json:"order_id"`
	Items   []ItemReport `json:"items"`
}

func (r *Report) Complete() bool {
	for _, it := range r.Items {
		if it.Delivered < it.Requested {
			return false
		}
	}
	return true
}

// Totals sums requested and delivered codes over all items.
func (r *Report) Totals() (requested, delivered int) {
	for _, it := range r.Items {
		requested += it.Requested
		delivered += it.Delivered
	}
	return requested, delivered
}

type Engine struct {
	orders  orderReader
	codes   inventory.Repository
	history history
	metrics *metrics.Pipeline
}

func NewEngine(orders orderReader, codes inventory.Repository, h history, m *metrics.Pipeline) *Engine {
	return &Engine{orders: orders, codes: codes, history: h, metrics: m}
}

// Fulfill tops every item of a paid order up to its quantity. Items are
// claimed independently; a short item leaves a tracking entry and the rest
// still proceed. Running it again only claims what is still missing.
func (e *Engine) Fulfill(ctx context.Context, orderID uint) (*Report, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "fulfillment"),
		zap.String("method", "Fulfill"),
		zap.Uint("order_id", orderID),
	)

	o, err := e.orders.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.Status == order.StatusPending || o.Status == order.StatusCancelled {
		log.Error("refusing to fulfill order", zap.String("status", string(o.Status)))
		return nil, ErrOrderNotFulfillable.WithDetails(map[string]string{"status": string(o.Status)})
	}

	report := &Report{OrderID: orderID}
	var errs []error

	for _, item := range o.Items {
		res, err := e.codes.ClaimForItem(ctx, inventory.ItemClaim{
			OrderItemID: item.ID,
			ProductID:   item.ProductID,
			Quantity:    item.Quantity,
		})
		if err != nil {
			log.Error("claim failed", zap.Uint("order_item_id", item.ID), zap.Error(err))
			errs = append(errs, fmt.Errorf("item %d: %w", item.ID, err))
			e.metrics.FulfillmentFailure("claim")
			msg := fmt.Sprintf("fulfillment failed for product %s, pending manual re-run", item.ProductID)
			if err := e.history.Append(ctx, orderID, string(order.StatusProcessing), msg); err != nil {
				log.Error("claim failure not recorded", zap.Error(err))
			}
			report.Items = append(report.Items, ItemReport{
				OrderItemID: item.ID,
				ProductID:   item.ProductID,
				Requested:   item.Quantity,
			})
			continue
		}

		report.Items = append(report.Items, ItemReport{
			OrderItemID: item.ID,
			ProductID:   item.ProductID,
			Requested:   res.Requested,
			Delivered:   res.Delivered,
			Claimed:     len(res.Claimed),
		})
		e.metrics.CodesDelivered(item.ProductID, len(res.Claimed))

		if res.Short() {
			e.metrics.Shortfall(item.ProductID)
			msg := fmt.Sprintf("insufficient stock: %d/%d for product %s", res.Delivered, res.Requested, item.ProductID)
			log.Warn("stock shortfall",
				zap.String("product_id", item.ProductID),
				zap.Int("delivered", res.Delivered),
				zap.Int("requested", res.Requested),
			)
			if err := e.history.Append(ctx, orderID, string(order.StatusProcessing), msg); err != nil {
				log.Error("shortfall not recorded", zap.Error(err))
			}
		}
	}

	requested, delivered := report.Totals()
	log.Info("fulfillment pass done",
		zap.Int("requested", requested),
		zap.Int("delivered", delivered),
		zap.Bool("complete", report.Complete()),
	)
	return report, errors.Join(errs...)
}
