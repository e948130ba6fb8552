package product

// Product is the read-only catalog view the order pipeline needs. Price is
// in minor units of Currency.
type Product struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Price    int64  `json:"price"`
	Currency string `json:"currency"`
	Category string `json:"category"`
	Platform string `json:"platform"`
	Active   bool   `json:"active"`
}
