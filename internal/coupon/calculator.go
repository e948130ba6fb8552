package coupon

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Calculate prices a coupon against a cart. It mutates nothing; usage is
// recorded elsewhere.
func Calculate(c *Coupon, in Input, now time.Time) (*Result, error) {
	if c == nil || !c.Active {
		return nil, ErrInvalid
	}
	if c.ValidFrom != nil && now.Before(*c.ValidFrom) {
		return nil, ErrInvalid
	}
	if c.ValidUntil != nil && now.After(*c.ValidUntil) {
		return nil, ErrInvalid
	}
	if c.UsageLimit > 0 && c.UsedCount >= c.UsageLimit {
		return nil, ErrInvalid
	}
	if in.UserAlreadyUsed {
		return nil, ErrAlreadyUsed
	}
	if in.Amount.LessThan(c.MinOrderAmount) {
		return nil, &Error{Kind: KindMinAmount, MinAmount: c.MinOrderAmount}
	}
	if !matchesTarget(c, in.Lines) {
		return nil, ErrNotApplicable
	}

	var discount decimal.Decimal
	switch c.Type {
	case TypePercentage:
		discount = in.Amount.Mul(c.Value).Div(hundred).Floor()
	case TypeFixed:
		discount = decimal.Min(c.Value, in.Amount)
	default:
		return nil, ErrInvalid
	}
	if discount.IsNegative() {
		discount = decimal.Zero
	}

	return &Result{
		CouponID:    c.ID,
		Code:        c.Code,
		Type:        c.Type,
		Discount:    discount,
		FinalAmount: in.Amount.Sub(discount),
	}, nil
}

func matchesTarget(c *Coupon, lines []Line) bool {
	if c.Target == "" || c.Target == TargetAll {
		return true
	}
	for _, l := range lines {
		var v string
		switch c.Target {
		case TargetProduct:
			v = l.ProductID
		case TargetCategory:
			v = l.Category
		case TargetPlatform:
			v = l.Platform
		default:
			return false
		}
		for _, want := range c.TargetValues {
			if v != "" && strings.EqualFold(v, want) {
				return true
			}
		}
	}
	return false
}
