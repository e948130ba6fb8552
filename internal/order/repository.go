package order

import (
	"context"
	"database/sql"
	"errors"

	"gamekeys-be/internal/db"
	"gamekeys-be/internal/logger"

	"go.uber.org/zap"
)

type Repository interface {
	// CreateOrder persists the order, its items and the opening history
	// entry in one transaction and fills in the generated ids and timestamps.
	CreateOrder(ctx context.Context, o *Order) error
	GetOrder(ctx context.Context, orderID uint) (*Order, error)
	// UpdateOrderStatus moves the order only if it is still in from.
	UpdateOrderStatus(ctx context.Context, orderID uint, from, to OrderStatus) (bool, error)
}

type repository struct {
	db *sql.DB
}

func NewRepository(conn *sql.DB) Repository {
	return &repository{db: conn}
}

func (r *repository) CreateOrder(ctx context.Context, o *Order) error {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "repository"),
		zap.String("method", "CreateOrder"),
		zap.Uint("user_id", o.UserID),
	)

	err := db.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		// 1. Insert order
		if err := tx.QueryRowContext(ctx, `
			INSERT INTO orders (user_id, total_price, currency, status)
			VALUES ($1, $2, $3, $4)
			RETURNING id, created_at, updated_at
		`, o.UserID, o.TotalPrice, o.Currency, o.Status,
		).Scan(&o.ID, &o.CreatedAt, &o.UpdatedAt); err != nil {
			return err
		}

		// 2. Insert items
		for i := range o.Items {
			o.Items[i].OrderID = o.ID
			if err := tx.QueryRowContext(ctx, `
				INSERT INTO order_items (order_id, product_id, quantity, unit_price)
				VALUES ($1, $2, $3, $4)
				RETURNING id
			`, o.ID, o.Items[i].ProductID, o.Items[i].Quantity, o.Items[i].UnitPrice,
			).Scan(&o.Items[i].ID); err != nil {
				return err
			}
		}

		// 3. Opening history entry
		_, err := tx.ExecContext(ctx, `
			INSERT INTO order_tracking (order_id, status, message)
			VALUES ($1, $2, $3)
		`, o.ID, string(o.Status), CreatedMessage)
		return err
	})
	if err != nil {
		log.Error("create order failed", zap.Error(err))
		return err
	}
	return nil
}

func (r *repository) GetOrder(ctx context.Context, orderID uint) (*Order, error) {
	var o Order
	err := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, total_price, currency, status, created_at, updated_at
		FROM orders
		WHERE id = $1
	`, orderID).Scan(&o.ID, &o.UserID, &o.TotalPrice, &o.Currency, &o.Status, &o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, order_id, product_id, quantity, unit_price
		FROM order_items
		WHERE order_id = $1
		ORDER BY id
	`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var it OrderItem
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.Quantity, &it.UnitPrice); err != nil {
			return nil, err
		}
		o.Items = append(o.Items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *repository) UpdateOrderStatus(ctx context.Context, orderID uint, from, to OrderStatus) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE orders
		SET status = $1, updated_at = NOW()
		WHERE id = $2 AND status = $3
	`, to, orderID, from)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}
