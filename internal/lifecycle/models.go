package lifecycle

import "time"

// Record is one row per (shop, cart). It is an audit trail and never deleted.
type Record struct {
	ID                string     `json:"id"`
	ShopID            string     `json:"shopId"`
	CartID            string     `json:"cartId"`
	Status            Status     `json:"status"`
	CheckoutSessionID string     `json:"checkoutSessionId,omitempty"`
	OrderID           string     `json:"orderId,omitempty"`
	ClearedAt         *time.Time `json:"clearedAt,omitempty"`
	CreatedAt         time.Time  `json:"createdAt"`
	UpdatedAt         time.Time  `json:"updatedAt"`
}

// Change is applied by Repository.Upsert. Empty strings and a nil ClearedAt
// leave the stored value untouched on update.
type Change struct {
	ShopID            string
	CartID            string
	Status            Status
	CheckoutSessionID string
	OrderID           string
	ClearedAt         *time.Time
	At                time.Time
}
