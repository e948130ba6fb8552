package order

import "time"

type OrderStatus string

const (
	StatusPending    OrderStatus = "pending"
	StatusPaid       OrderStatus = "paid"
	StatusProcessing OrderStatus = "processing"
	StatusShipped    OrderStatus = "shipped"
	StatusDelivered  OrderStatus = "delivered"
	StatusCancelled  OrderStatus = "cancelled"
)

func (s OrderStatus) Valid() bool {
	_, ok := statusRank[s]
	return ok || s == StatusCancelled
}

var statusRank = map[OrderStatus]int{
	StatusPending:    0,
	StatusPaid:       1,
	StatusProcessing: 2,
	StatusShipped:    3,
	StatusDelivered:  4,
}

// CreatedMessage opens every order's history. It is written in the same
// transaction as the order.
const CreatedMessage = "Order created, waiting for payment"

// CanTransition reports whether from -> to is a legal move. Status only
// moves one step forward; cancelled is terminal and reachable from any
// state before delivered.
func CanTransition(from, to OrderStatus) bool {
	if from == StatusCancelled || from == StatusDelivered {
		return false
	}
	if to == StatusCancelled {
		return true
	}
	fr, ok1 := statusRank[from]
	tr, ok2 := statusRank[to]
	return ok1 && ok2 && tr == fr+1
}

// AdminCanTransition is CanTransition minus pending -> paid, which only a
// settled payment may perform.
func AdminCanTransition(from, to OrderStatus) bool {
	return to != StatusPaid && CanTransition(from, to)
}

type Order struct {
	ID         uint        `json:"id"`
	UserID     uint        `json:"user_id"`
	Items      []OrderItem `json:"items"`
	TotalPrice int64       `json:"total_price"`
	Currency   string      `json:"currency"`
	Status     OrderStatus `json:"status"`
	CreatedAt  time.Time   `json:"created_at"`
	UpdatedAt  time.Time   `json:"updated_at"`
}

// OrderItem snapshots the unit price at creation; later catalog changes do
// not touch it.
type OrderItem struct {
	ID        uint   `json:"id"`
	OrderID   uint   `json:"-"`
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
	UnitPrice int64  `json:"unit_price"`
}

func (i OrderItem) Subtotal() int64 {
	return i.UnitPrice * int64(i.Quantity)
}

type LineRequest struct {
	ProductID string `json:"product_id" validate:"required"`
	Quantity  int    `json:"quantity" validate:"required,min=1"`
}

// OrderCode is a code as shown to the buyer.
type OrderCode struct {
	ProductID string `json:"product_id"`
	Code      string `json:"code"`
}
