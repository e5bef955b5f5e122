package lifecycle

import (
	"context"
	"errors"
	"github.com/ariefcatur/go-cart-lifecycle/internal/cartstore"
	kafkax "github.com/ariefcatur/go-cart-lifecycle/internal/kafka"
	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
	"log"
	"time"
)

var ErrMissingArgument = errors.New("lifecycle: shop, cart and session ids are required")

// Publisher is satisfied by *kafka.Producer.
type Publisher interface {
	Publish(key, value []byte, headers ...kafkago.Header)
}

// Tracker advances the per-cart checkout record and clears the cart once an
// order completes. Concurrent calls for the same cart are not serialized; the
// clear path stays safe because deleting a cart twice is harmless and the
// upsert is idempotent.
type Tracker struct {
	Repo     Repository
	Carts    cartstore.Store
	Events   Publisher // optional
	Producer string
	nowFunc  func() time.Time
}

func NewTracker(repo Repository, carts cartstore.Store, events Publisher, producer string) *Tracker {
	return &Tracker{Repo: repo, Carts: carts, Events: events, Producer: producer, nowFunc: time.Now}
}

// InitiateCheckout binds sessionID to the cart unconditionally.
func (t *Tracker) InitiateCheckout(ctx context.Context, shopID, cartID, sessionID string) (*Record, error) {
	if shopID == "" || cartID == "" || sessionID == "" {
		return nil, ErrMissingArgument
	}
	rec, err := t.Repo.Upsert(ctx, Change{
		ShopID:            shopID,
		CartID:            cartID,
		Status:            StatusCheckoutInitiated,
		CheckoutSessionID: sessionID,
		At:                t.now(),
	})
	if err != nil {
		return nil, err
	}
	t.publish(EventCheckoutInitiated, rec)
	return rec, nil
}

func (t *Tracker) MarkOrderPending(ctx context.Context, shopID, cartID, sessionID string) (*Record, error) {
	if shopID == "" || cartID == "" || sessionID == "" {
		return nil, ErrMissingArgument
	}
	existing, err := t.Repo.Find(ctx, shopID, cartID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		if err := checkSession(existing, sessionID); err != nil {
			return nil, err
		}
		if !CanTransition(existing.Status, StatusOrderPending) {
			return nil, invalidState(existing, StatusOrderPending)
		}
	}
	rec, err := t.Repo.Upsert(ctx, Change{
		ShopID:            shopID,
		CartID:            cartID,
		Status:            StatusOrderPending,
		CheckoutSessionID: sessionID,
		At:                t.now(),
	})
	if err != nil {
		return nil, err
	}
	t.publish(EventOrderPending, rec)
	return rec, nil
}

// ClearCartForOrder deletes the cart and marks the record order_complete.
// Repeating it for the same orderID is a no-op, so at-least-once payment
// notifications are safe. The cart is deleted before the record is written:
// a crash in between leaves the record incomplete and a retry finishes it.
func (t *Tracker) ClearCartForOrder(ctx context.Context, shopID, cartID, orderID, sessionID string) (*Record, error) {
	if shopID == "" || cartID == "" || sessionID == "" || orderID == "" {
		return nil, ErrMissingArgument
	}
	existing, err := t.Repo.Find(ctx, shopID, cartID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		if existing.Status == StatusOrderComplete && existing.OrderID == orderID {
			return existing, nil
		}
		if err := checkSession(existing, sessionID); err != nil {
			return nil, err
		}
		if existing.Status == StatusOrderFailed {
			return nil, &Error{
				Code:    CodeAlreadyFailed,
				Message: "checkout already failed; cart is kept for retry",
				Details: map[string]string{"shopId": shopID, "cartId": cartID, "orderId": orderID},
			}
		}
		if !CanTransition(existing.Status, StatusOrderComplete) {
			e := invalidState(existing, StatusOrderComplete)
			e.Details["orderId"] = orderID
			e.Details["completedOrderId"] = existing.OrderID
			return nil, e
		}
	}

	t.Carts.DeleteCart(ctx, cartID)

	now := t.now()
	rec, err := t.Repo.Upsert(ctx, Change{
		ShopID:            shopID,
		CartID:            cartID,
		Status:            StatusOrderComplete,
		CheckoutSessionID: sessionID,
		OrderID:           orderID,
		ClearedAt:         &now,
		At:                now,
	})
	if err != nil {
		return nil, err
	}
	log.Printf("lifecycle: cart %s/%s cleared for order %s", shopID, cartID, orderID)
	t.publish(EventCartCleared, rec)
	return rec, nil
}

// MarkOrderFailed never touches cart contents so the shopper can retry.
func (t *Tracker) MarkOrderFailed(ctx context.Context, shopID, cartID, sessionID string) (*Record, error) {
	if shopID == "" || cartID == "" || sessionID == "" {
		return nil, ErrMissingArgument
	}
	rec, err := t.Repo.Upsert(ctx, Change{
		ShopID:            shopID,
		CartID:            cartID,
		Status:            StatusOrderFailed,
		CheckoutSessionID: sessionID,
		At:                t.now(),
	})
	if err != nil {
		return nil, err
	}
	t.publish(EventOrderFailed, rec)
	return rec, nil
}

// GetCartLifecycle returns (nil, nil) when the cart never reached checkout.
func (t *Tracker) GetCartLifecycle(ctx context.Context, shopID, cartID string) (*Record, error) {
	return t.Repo.Find(ctx, shopID, cartID)
}

func (t *Tracker) now() time.Time {
	if t.nowFunc == nil {
		return time.Now().UTC()
	}
	return t.nowFunc().UTC()
}

func (t *Tracker) publish(eventType string, rec *Record) {
	if t.Events == nil {
		return
	}
	ev := Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  1,
		OccurredAt:    t.now(),
		Producer:      t.Producer,
		CorrelationID: rec.ShopID + ":" + rec.CartID,
		Payload: kafkax.MustMarshal(LifecycleChangedPayload{
			ShopID:            rec.ShopID,
			CartID:            rec.CartID,
			Status:            rec.Status,
			CheckoutSessionID: rec.CheckoutSessionID,
			OrderID:           rec.OrderID,
			ClearedAt:         rec.ClearedAt,
		}),
	}
	t.Events.Publish(PartitionKey(rec.ShopID, rec.CartID), kafkax.MustMarshal(ev),
		kafkago.Header{Key: "x-event-type", Value: []byte(eventType)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}

func checkSession(rec *Record, sessionID string) error {
	if rec.CheckoutSessionID != "" && rec.CheckoutSessionID != sessionID {
		return sessionMismatch(rec.ShopID, rec.CartID, rec.CheckoutSessionID, sessionID)
	}
	return nil
}

func invalidState(rec *Record, to Status) *Error {
	return &Error{
		Code:    CodeInvalidState,
		Message: "transition not allowed from " + string(rec.Status) + " to " + string(to),
		Details: map[string]string{"shopId": rec.ShopID, "cartId": rec.CartID, "from": string(rec.Status), "to": string(to)},
	}
}
