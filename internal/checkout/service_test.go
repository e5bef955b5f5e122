package checkout

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ariefcatur/go-cart-lifecycle/internal/cartstore"
	kafkax "github.com/ariefcatur/go-cart-lifecycle/internal/kafka"
	"github.com/ariefcatur/go-cart-lifecycle/internal/lifecycle"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
)

func paymentMessage(eventType string, payload any) kafkago.Message {
	env := lifecycle.Envelope{
		EventID:      "evt-1",
		EventType:    eventType,
		EventVersion: 1,
		OccurredAt:   time.Now().UTC(),
		Producer:     "payments",
		Payload:      kafkax.MustMarshal(payload),
	}
	return kafkago.Message{Topic: lifecycle.TopicPaymentAuthorized, Value: kafkax.MustMarshal(env)}
}

func newService() (*Service, *lifecycle.Tracker, cartstore.Store) {
	carts := cartstore.NewMemoryStore(time.Hour)
	tr := lifecycle.NewTracker(lifecycle.NewMemoryRepo(), carts, nil, "worker-test")
	return &Service{Lifecycle: tr}, tr, carts
}

func TestPaymentAuthorizedClearsCartOnce(t *testing.T) {
	ctx := context.Background()
	svc, tr, carts := newService()
	carts.IncrementQty(ctx, "cart-1", "sku1", 1, "", nil)
	_, err := tr.InitiateCheckout(ctx, "shop", "cart-1", "sess-1")
	require.NoError(t, err)

	msg := paymentMessage(lifecycle.EventPaymentAuthorized, lifecycle.PaymentAuthorizedPayload{
		OrderID: "order-1", ShopID: "shop", CartID: "cart-1", CheckoutSessionID: "sess-1",
	})
	require.NoError(t, svc.HandlePaymentEvent(ctx, msg))
	require.NoError(t, svc.HandlePaymentEvent(ctx, msg), "redelivery is a no-op")

	rec, err := tr.GetCartLifecycle(ctx, "shop", "cart-1")
	require.NoError(t, err)
	require.Equal(t, lifecycle.StatusOrderComplete, rec.Status)
	require.Empty(t, carts.GetCart(ctx, "cart-1"))
}

func TestPaymentFailedKeepsCart(t *testing.T) {
	ctx := context.Background()
	svc, tr, carts := newService()
	carts.IncrementQty(ctx, "cart-1", "sku1", 1, "", nil)

	msg := paymentMessage(lifecycle.EventPaymentFailed, lifecycle.PaymentFailedPayload{
		OrderID: "order-1", ShopID: "shop", CartID: "cart-1", CheckoutSessionID: "sess-1", Reason: "INSUFFICIENT_FUNDS",
	})
	require.NoError(t, svc.HandlePaymentEvent(ctx, msg))

	rec, err := tr.GetCartLifecycle(ctx, "shop", "cart-1")
	require.NoError(t, err)
	require.Equal(t, lifecycle.StatusOrderFailed, rec.Status)
	require.Len(t, carts.GetCart(ctx, "cart-1"), 1)

	// a late success for the failed checkout is acknowledged, not applied
	late := paymentMessage(lifecycle.EventPaymentAuthorized, lifecycle.PaymentAuthorizedPayload{
		OrderID: "order-1", ShopID: "shop", CartID: "cart-1", CheckoutSessionID: "sess-1",
	})
	require.NoError(t, svc.HandlePaymentEvent(ctx, late))
	require.Len(t, carts.GetCart(ctx, "cart-1"), 1)
}

func TestUndecodableAndUnknownEventsAreAcked(t *testing.T) {
	svc, _, _ := newService()
	ctx := context.Background()

	require.NoError(t, svc.HandlePaymentEvent(ctx, kafkago.Message{Value: []byte("{")}))
	require.NoError(t, svc.HandlePaymentEvent(ctx, paymentMessage("OrderShipped", map[string]string{})))
	require.NoError(t, svc.HandlePaymentEvent(ctx, paymentMessage(lifecycle.EventPaymentAuthorized, "not an object")))
}

type brokenLifecycle struct{}

func (brokenLifecycle) ClearCartForOrder(context.Context, string, string, string, string) (*lifecycle.Record, error) {
	return nil, errors.New("postgres: connection refused")
}

func (brokenLifecycle) MarkOrderFailed(context.Context, string, string, string) (*lifecycle.Record, error) {
	return nil, errors.New("postgres: connection refused")
}

func TestInfrastructureErrorsAreReturned(t *testing.T) {
	svc := &Service{Lifecycle: brokenLifecycle{}}
	msg := paymentMessage(lifecycle.EventPaymentAuthorized, lifecycle.PaymentAuthorizedPayload{
		OrderID: "order-1", ShopID: "shop", CartID: "cart-1", CheckoutSessionID: "sess-1",
	})
	require.Error(t, svc.HandlePaymentEvent(context.Background(), msg))
}

// flakyLifecycle fails the first n calls, then delegates.
type flakyLifecycle struct {
	Lifecycle
	mu   sync.Mutex
	fail int
}

func (f *flakyLifecycle) ClearCartForOrder(ctx context.Context, shopID, cartID, orderID, sessionID string) (*lifecycle.Record, error) {
	f.mu.Lock()
	if f.fail > 0 {
		f.fail--
		f.mu.Unlock()
		return nil, errors.New("postgres: connection refused")
	}
	f.mu.Unlock()
	return f.Lifecycle.ClearCartForOrder(ctx, shopID, cartID, orderID, sessionID)
}

type queueReader struct {
	msgs    chan kafkago.Message
	mu      sync.Mutex
	commits int
}

func (r *queueReader) FetchMessage(ctx context.Context) (kafkago.Message, error) {
	select {
	case m := <-r.msgs:
		return m, nil
	case <-ctx.Done():
		return kafkago.Message{}, ctx.Err()
	}
}

func (r *queueReader) CommitMessages(context.Context, ...kafkago.Message) error {
	r.mu.Lock()
	r.commits++
	r.mu.Unlock()
	return nil
}

func (r *queueReader) Close() error { return nil }

func TestPaymentAuthorizedSurvivesDatabaseBlip(t *testing.T) {
	ctx := context.Background()
	carts := cartstore.NewMemoryStore(time.Hour)
	tracker := lifecycle.NewTracker(lifecycle.NewMemoryRepo(), carts, nil, "worker-test")
	carts.IncrementQty(ctx, "cart-1", "sku1", 1, "", nil)
	_, err := tracker.InitiateCheckout(ctx, "shop", "cart-1", "sess-1")
	require.NoError(t, err)

	svc := &Service{Lifecycle: &flakyLifecycle{Lifecycle: tracker, fail: 1}}
	r := &queueReader{msgs: make(chan kafkago.Message, 1)}
	r.msgs <- paymentMessage(lifecycle.EventPaymentAuthorized, lifecycle.PaymentAuthorizedPayload{
		OrderID: "order-1", ShopID: "shop", CartID: "cart-1", CheckoutSessionID: "sess-1",
	})
	cons := kafkax.NewConsumerWithReader(r, 2)
	cons.RetryBase = time.Millisecond

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan error, 1)
	go func() { done <- cons.Start(runCtx, svc.HandlePaymentEvent) }()

	require.Eventually(t, func() bool {
		r.mu.Lock()
		defer r.mu.Unlock()
		return r.commits == 1
	}, time.Second, 2*time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	require.Empty(t, carts.GetCart(ctx, "cart-1"))
	rec, err := tracker.GetCartLifecycle(ctx, "shop", "cart-1")
	require.NoError(t, err)
	require.Equal(t, lifecycle.StatusOrderComplete, rec.Status)
}
