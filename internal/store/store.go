// Package store picks the storage backend once at startup and exposes it
// through the repository ports of each domain package.
package store

import (
	"context"
	"database/sql"
	"fmt"

	"gamekeys-be/internal/config"
	"gamekeys-be/internal/coupon"
	"gamekeys-be/internal/db"
	"gamekeys-be/internal/inventory"
	"gamekeys-be/internal/logger"
	"gamekeys-be/internal/order"
	"gamekeys-be/internal/payment"
	"gamekeys-be/internal/product"
	"gamekeys-be/internal/store/memory"
	"gamekeys-be/internal/tracking"

	"go.uber.org/zap"
)

type Backend struct {
	Name      string
	Products  product.Repository
	Orders    order.Repository
	Payments  payment.Repository
	Inventory inventory.Repository
	Tracking  tracking.Repository
	Coupons   coupon.Repository

	// Memory is set only for the in-memory backend.
	Memory *memory.Store

	// DB is set only for the postgres backend.
	DB *sql.DB
}

func NewPostgres(conn *sql.DB) *Backend {
	return &Backend{
		Name:      config.BackendPostgres,
		Products:  product.NewRepository(conn),
		Orders:    order.NewRepository(conn),
		Payments:  payment.NewRepository(conn),
		Inventory: inventory.NewRepository(conn),
		Tracking:  tracking.NewRepository(conn),
		Coupons:   coupon.NewRepository(conn),
		DB:        conn,
	}
}

func NewMemory(s *memory.Store) *Backend {
	return &Backend{
		Name:      config.BackendMemory,
		Products:  s,
		Orders:    s,
		Payments:  s,
		Inventory: s,
		Tracking:  s,
		Coupons:   s,
		Memory:    s,
	}
}

var openDatabase = db.NewDatabase

// Open builds the backend named by cfg. The memory backend is seeded with
// the demo catalog outside production.
func Open(ctx context.Context, cfg *config.Config) (*Backend, error) {
	switch cfg.StorageBackend {
	case config.BackendPostgres:
		conn, err := openDatabase(cfg)
		if err != nil {
			return nil, err
		}
		return NewPostgres(conn), nil
	case config.BackendMemory:
		s := memory.New()
		if !cfg.IsProduction() {
			if err := SeedDemo(ctx, s, cfg.DefaultCurrency); err != nil {
				return nil, err
			}
		}
		logger.FromCtx(ctx).Warn("using in-memory storage, data is lost on restart",
			zap.Bool("seeded", !cfg.IsProduction()),
		)
		return NewMemory(s), nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.StorageBackend)
	}
}

func (b *Backend) Close() error {
	if b.DB != nil {
		return b.DB.Close()
	}
	return nil
}

// Ping reports whether the backend can serve requests.
func (b *Backend) Ping(ctx context.Context) error {
	if b.DB != nil {
		return b.DB.PingContext(ctx)
	}
	return nil
}
