package lifecycle

import (
	"encoding/json"
	"time"
)

const (
	TopicCartLifecycle     = "cart.lifecycle"
	TopicPaymentAuthorized = "order.payment.authorized"
	TopicPaymentFailed     = "order.payment.failed"
)

const (
	EventCheckoutInitiated = "CheckoutInitiated"
	EventOrderPending      = "OrderPending"
	EventCartCleared       = "CartCleared"
	EventOrderFailed       = "OrderFailed"
	EventPaymentAuthorized = "PaymentAuthorized"
	EventPaymentFailed     = "PaymentFailed"
)

type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"` // shop_id:cart_id
	Payload       json.RawMessage `json:"payload"`
}

// LifecycleChangedPayload is published on TopicCartLifecycle for every
// transition. CartCleared is what the payment side waits for.
type LifecycleChangedPayload struct {
	ShopID            string     `json:"shop_id"`
	CartID            string     `json:"cart_id"`
	Status            Status     `json:"status"`
	CheckoutSessionID string     `json:"checkout_session_id,omitempty"`
	OrderID           string     `json:"order_id,omitempty"`
	ClearedAt         *time.Time `json:"cleared_at,omitempty"`
}

type PaymentAuthorizedPayload struct {
	OrderID           string `json:"order_id"`
	ShopID            string `json:"shop_id"`
	CartID            string `json:"cart_id"`
	CheckoutSessionID string `json:"checkout_session_id"`
	PaymentRef        string `json:"payment_ref,omitempty"`
	AmountCents       int    `json:"amount_cents,omitempty"`
}

type PaymentFailedPayload struct {
	OrderID           string `json:"order_id"`
	ShopID            string `json:"shop_id"`
	CartID            string `json:"cart_id"`
	CheckoutSessionID string `json:"checkout_session_id"`
	Reason            string `json:"reason,omitempty"` // e.g. INSUFFICIENT_FUNDS
}

// PartitionKey keeps all events of one cart in order.
func PartitionKey(shopID, cartID string) []byte { return []byte(shopID + ":" + cartID) }
