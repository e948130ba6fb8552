package tracking

import "time"

// Entry is one line of an order's user-visible history. Status holds an
// order status name at the time the entry was written.
type Entry struct {
	ID        uint      `json:"-"`
	OrderID   uint      `json:"-"`
	Status    string    `json:"status"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}
