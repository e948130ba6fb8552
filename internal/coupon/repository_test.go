package coupon

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRepository_GetCouponByCode(t *testing.T) {
	cols := []string{"id", "code", "type", "value", "min_order_amount", "usage_limit", "used_count",
		"target", "target_values", "valid_from", "valid_until", "active"}

	t.Run("Success", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		until := time.Date(2026, 12, 31, 0, 0, 0, 0, time.UTC)
		mock.ExpectQuery(`(?s)FROM coupons\s+WHERE LOWER\(code\) = LOWER\(\$1\)`).
			WithArgs("save20").
			WillReturnRows(sqlmock.NewRows(cols).
				AddRow(1, "SAVE20", "percentage", "20.00", "100.00", 0, 3, "platform", "{steam,valorant}", nil, until, true))

		c, err := NewRepository(db).GetCouponByCode(context.Background(), "save20")
		require.NoError(t, err)
		assert.Equal(t, TypePercentage, c.Type)
		assert.True(t, c.Value.Equal(d(20)))
		assert.True(t, c.MinOrderAmount.Equal(d(100)))
		assert.Equal(t, []string{"steam", "valorant"}, c.TargetValues)
		assert.Nil(t, c.ValidFrom)
		require.NotNil(t, c.ValidUntil)
		assert.Equal(t, until, *c.ValidUntil)
	})

	t.Run("NotFound", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectQuery(`FROM coupons`).WillReturnRows(sqlmock.NewRows(cols))

		_, err = NewRepository(db).GetCouponByCode(context.Background(), "x")
		assert.ErrorIs(t, err, ErrCouponNotFound)
	})
}

func TestRepository_HasUserUsedCoupon(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`SELECT EXISTS\(SELECT 1 FROM coupon_usages WHERE coupon_id = \$1 AND user_id = \$2\)`).
		WithArgs(uint(1), uint(7)).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	used, err := NewRepository(db).HasUserUsedCoupon(context.Background(), 1, 7)
	assert.NoError(t, err)
	assert.True(t, used)
}
