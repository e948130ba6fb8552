package inventory

import (
	"context"
	"database/sql"
	"errors"
	"sort"

	"gamekeys-be/internal/db"
	"gamekeys-be/internal/logger"

	"go.uber.org/zap"
)

type Repository interface {
	// ClaimForItem tops the item up to its quantity from unused codes,
	// oldest first. Concurrent calls never bind the same code twice.
	ClaimForItem(ctx context.Context, item ItemClaim) (*ClaimResult, error)
	ListDeliveredByOrder(ctx context.Context, orderID uint) ([]DeliveredCode, error)
	ImportCodes(ctx context.Context, productID string, codes []string) (int, error)
	CountAvailable(ctx context.Context, productID string) (int, error)
}

type repository struct {
	db *sql.DB
}

func NewRepository(conn *sql.DB) Repository {
	return &repository{db: conn}
}

func (r *repository) ClaimForItem(ctx context.Context, item ItemClaim) (*ClaimResult, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "repository"),
		zap.String("method", "ClaimForItem"),
		zap.Uint("order_item_id", item.OrderItemID),
		zap.String("product_id", item.ProductID),
	)

	res := &ClaimResult{Requested: item.Quantity}

	err := db.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		// 1. Lock the item so concurrent passes over it serialize
		var quantity int
		err := tx.QueryRowContext(ctx,
			`SELECT quantity FROM order_items WHERE id = $1 FOR UPDATE`,
			item.OrderItemID,
		).Scan(&quantity)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrOrderItemNotFound
		}
		if err != nil {
			return err
		}
		res.Requested = quantity

		// 2. Already delivered by earlier passes
		if err := tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM delivered_codes WHERE order_item_id = $1`,
			item.OrderItemID,
		).Scan(&res.Delivered); err != nil {
			return err
		}

		need := quantity - res.Delivered
		if need <= 0 {
			return nil
		}

		// 3. Claim oldest unused codes, skipping rows other claims hold
		rows, err := tx.QueryContext(ctx, `
			UPDATE inventory_codes
			SET is_used = TRUE, used_at = NOW()
			WHERE id IN (
				SELECT id FROM inventory_codes
				WHERE product_id = $1 AND is_used = FALSE
				ORDER BY id
				LIMIT $2
				FOR UPDATE SKIP LOCKED
			) AND is_used = FALSE
			RETURNING id, code
		`, item.ProductID, need)
		if err != nil {
			return err
		}

		var claimed []DeliveredCode
		for rows.Next() {
			var d DeliveredCode
			if err := rows.Scan(&d.CodeID, &d.Code); err != nil {
				rows.Close()
				return err
			}
			d.OrderItemID = item.OrderItemID
			d.ProductID = item.ProductID
			claimed = append(claimed, d)
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return err
		}
		rows.Close()

		sort.Slice(claimed, func(i, j int) bool { return claimed[i].CodeID < claimed[j].CodeID })

		// 4. Bind each claimed code to the item
		for i := range claimed {
			if err := tx.QueryRowContext(ctx, `
				INSERT INTO delivered_codes (order_item_id, product_id, code_id, code)
				VALUES ($1, $2, $3, $4)
				RETURNING id, created_at
			`, claimed[i].OrderItemID, claimed[i].ProductID, claimed[i].CodeID, claimed[i].Code,
			).Scan(&claimed[i].ID, &claimed[i].CreatedAt); err != nil {
				return err
			}
		}

		res.Claimed = claimed
		res.Delivered += len(claimed)
		return nil
	})
	if err != nil {
		log.Error("claim codes failed", zap.Error(err))
		return nil, err
	}

	log.Debug("claim pass done",
		zap.Int("requested", res.Requested),
		zap.Int("delivered", res.Delivered),
		zap.Int("claimed", len(res.Claimed)),
	)
	return res, nil
}

func (r *repository) ListDeliveredByOrder(ctx context.Context, orderID uint) ([]DeliveredCode, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT d.id, d.order_item_id, d.product_id, d.code_id, d.code, d.created_at
		FROM delivered_codes d
		JOIN order_items oi ON oi.id = d.order_item_id
		WHERE oi.order_id = $1
		ORDER BY d.id
	`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []DeliveredCode{}
	for rows.Next() {
		var d DeliveredCode
		if err := rows.Scan(&d.ID, &d.OrderItemID, &d.ProductID, &d.CodeID, &d.Code, &d.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// ImportCodes inserts codes and reports how many were new. Codes already
// present for the product are ignored.
func (r *repository) ImportCodes(ctx context.Context, productID string, codes []string) (int, error) {
	imported := 0
	err := db.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO inventory_codes (product_id, code)
			VALUES ($1, $2)
			ON CONFLICT (product_id, code) DO NOTHING
		`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, c := range codes {
			res, err := stmt.ExecContext(ctx, productID, c)
			if err != nil {
				return err
			}
			n, err := res.RowsAffected()
			if err != nil {
				return err
			}
			imported += int(n)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return imported, nil
}

func (r *repository) CountAvailable(ctx context.Context, productID string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM inventory_codes WHERE product_id = $1 AND is_used = FALSE`,
		productID,
	).Scan(&n)
	return n, err
}
