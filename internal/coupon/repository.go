package coupon

import (
	"context"
	"database/sql"
	"errors"

	"gamekeys-be/internal/apperr"

	"github.com/lib/pq"
)

var ErrCouponNotFound = apperr.New(apperr.CodeNotFound, "coupon not found")

type Repository interface {
	GetCouponByCode(ctx context.Context, code string) (*Coupon, error)
	HasUserUsedCoupon(ctx context.Context, couponID, userID uint) (bool, error)
}

type repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &repository{db: db}
}

func (r *repository) GetCouponByCode(ctx context.Context, code string) (*Coupon, error) {
	var (
		c            Coupon
		validFrom    sql.NullTime
		validUntil   sql.NullTime
		targetValues pq.StringArray
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT id, code, type, value, min_order_amount, usage_limit, used_count,
			target, target_values, valid_from, valid_until, active
		FROM coupons
		WHERE LOWER(code) = LOWER($1)
	`, code).Scan(
		&c.ID, &c.Code, &c.Type, &c.Value, &c.MinOrderAmount, &c.UsageLimit, &c.UsedCount,
		&c.Target, &targetValues, &validFrom, &validUntil, &c.Active,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrCouponNotFound
	}
	if err != nil {
		return nil, err
	}

	c.TargetValues = []string(targetValues)
	if validFrom.Valid {
		c.ValidFrom = &validFrom.Time
	}
	if validUntil.Valid {
		c.ValidUntil = &validUntil.Time
	}
	return &c, nil
}

func (r *repository) HasUserUsedCoupon(ctx context.Context, couponID, userID uint) (bool, error) {
	var used bool
	err := r.db.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM coupon_usages WHERE coupon_id = $1 AND user_id = $2)
	`, couponID, userID).Scan(&used)
	return used, err
}
