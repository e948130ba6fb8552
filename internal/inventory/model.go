package inventory

import "time"

// Code is a pre-loaded redemption code. It moves from unused to used
// exactly once and is never deleted.
type Code struct {
	ID        uint       `json:"id"`
	ProductID string     `json:"product_id"`
	Code      string     `json:"code"`
	IsUsed    bool       `json:"is_used"`
	UsedAt    *time.Time `json:"used_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// DeliveredCode binds one claimed code to one order item.
type DeliveredCode struct {
	ID          uint      `json:"id"`
	OrderItemID uint      `json:"order_item_id"`
	ProductID   string    `json:"product_id"`
	CodeID      uint      `json:"code_id"`
	Code        string    `json:"code"`
	CreatedAt   time.Time `json:"created_at"`
}

type ItemClaim struct {
	OrderItemID uint
	ProductID   string
	Quantity    int
}

// ClaimResult describes one claim pass over an order item. Delivered counts
// every code bound to the item, including those claimed by earlier passes.
type ClaimResult struct {
	Requested int
	Delivered int
	Claimed   []DeliveredCode
}

func (r *ClaimResult) Short() bool {
	return r.Delivered < r.Requested
}

type ImportResult struct {
	ProductID string `json:"product_id"`
	Submitted int    `json:"submitted"`
	Imported  int    `json:"imported"`
	Skipped   int    `json:"skipped"`
}
