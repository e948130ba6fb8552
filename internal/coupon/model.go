package coupon

import (
	"time"

	"github.com/shopspring/decimal"
)

type Type string

const (
	TypePercentage Type = "percentage"
	TypeFixed      Type = "fixed"
)

type Target string

const (
	TargetAll      Target = "all"
	TargetCategory Target = "category"
	TargetPlatform Target = "platform"
	TargetProduct  Target = "product"
)

type Coupon struct {
	ID             uint
	Code           string
	Type           Type
	Value          decimal.Decimal
	MinOrderAmount decimal.Decimal
	UsageLimit     int // 0 means unlimited
	UsedCount      int
	Target         Target
	TargetValues   []string
	ValidFrom      *time.Time
	ValidUntil     *time.Time
	Active         bool
}

// Line is one cart line as the calculator sees it.
type Line struct {
	ProductID string
	Category  string
	Platform  string
}

type Input struct {
	Amount          decimal.Decimal
	UserAlreadyUsed bool
	Lines           []Line
}

type Result struct {
	CouponID    uint            `json:"coupon_id"`
	Code        string          `json:"code"`
	Type        Type            `json:"type"`
	Discount    decimal.Decimal `json:"discount"`
	FinalAmount decimal.Decimal `json:"final_amount"`
}
