package coupon

import (
	"fmt"

	"github.com/shopspring/decimal"
)

type Kind string

const (
	KindInvalid       Kind = "invalid_coupon"
	KindMinAmount     Kind = "min_amount_not_met"
	KindNotApplicable Kind = "coupon_not_applicable"
	KindAlreadyUsed   Kind = "coupon_already_used"
)

// Error is a rejected coupon. MinAmount is set for KindMinAmount.
type Error struct {
	Kind      Kind
	MinAmount decimal.Decimal
}

func (e *Error) Error() string {
	if e.Kind == KindMinAmount {
		return fmt.Sprintf("%s: minimum order amount is %s", e.Kind, e.MinAmount.String())
	}
	return string(e.Kind)
}

// Is matches on Kind so callers can compare against ErrInvalid and friends.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

var (
	ErrInvalid       = &Error{Kind: KindInvalid}
	ErrNotApplicable = &Error{Kind: KindNotApplicable}
	ErrAlreadyUsed   = &Error{Kind: KindAlreadyUsed}
)
