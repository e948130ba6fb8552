package product

import (
	"context"
	"database/sql"

	"gamekeys-be/internal/logger"

	"github.com/lib/pq"
	"go.uber.org/zap"
)

type Repository interface {
	// GetProductsByIDs returns the products found, keyed by id. Missing ids
	// are simply absent from the map.
	GetProductsByIDs(ctx context.Context, ids []string) (map[string]Product, error)
}

type repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &repository{db: db}
}

func (r *repository) GetProductsByIDs(ctx context.Context, ids []string) (map[string]Product, error) {
	out := make(map[string]Product, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, price, currency, category, platform, active
		FROM products
		WHERE id = ANY($1)
	`, pq.Array(ids))
	if err != nil {
		logger.FromCtx(ctx).Error("query products failed",
			zap.String("layer", "repository"),
			zap.Strings("ids", ids),
			zap.Error(err),
		)
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var p Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Price, &p.Currency, &p.Category, &p.Platform, &p.Active); err != nil {
			return nil, err
		}
		out[p.ID] = p
	}
	return out, rows.Err()
}
