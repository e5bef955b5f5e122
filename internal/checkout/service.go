package checkout

import (
	"context"
	"encoding/json"
	"errors"
	kafkax "github.com/ariefcatur/go-cart-lifecycle/internal/kafka"
	"github.com/ariefcatur/go-cart-lifecycle/internal/lifecycle"
	kafkago "github.com/segmentio/kafka-go"
	"log"
)

// Lifecycle is the part of *lifecycle.Tracker the worker drives.
type Lifecycle interface {
	ClearCartForOrder(ctx context.Context, shopID, cartID, orderID, sessionID string) (*lifecycle.Record, error)
	MarkOrderFailed(ctx context.Context, shopID, cartID, sessionID string) (*lifecycle.Record, error)
}

// Service turns payment outcomes into lifecycle transitions. Redelivered
// PaymentAuthorized events are absorbed by ClearCartForOrder's idempotency.
type Service struct {
	Lifecycle Lifecycle
}

// HandlePaymentEvent is installed as the consumer handler. A nil return
// commits the offset.
func (s *Service) HandlePaymentEvent(ctx context.Context, m kafkago.Message) error {
	var env lifecycle.Envelope
	if err := json.Unmarshal(m.Value, &env); err != nil {
		// a poison message would block the partition forever
		log.Printf("checkout: drop undecodable message topic=%s offset=%d: %v", m.Topic, m.Offset, err)
		return nil
	}

	switch env.EventType {
	case lifecycle.EventPaymentAuthorized:
		p, err := kafkax.UnwrapPayload[lifecycle.PaymentAuthorizedPayload](env.Payload)
		if err != nil {
			log.Printf("checkout: drop event %s: %v", env.EventID, err)
			return nil
		}
		_, err = s.Lifecycle.ClearCartForOrder(ctx, p.ShopID, p.CartID, p.OrderID, p.CheckoutSessionID)
		return settle(env, err)

	case lifecycle.EventPaymentFailed:
		p, err := kafkax.UnwrapPayload[lifecycle.PaymentFailedPayload](env.Payload)
		if err != nil {
			log.Printf("checkout: drop event %s: %v", env.EventID, err)
			return nil
		}
		_, err = s.Lifecycle.MarkOrderFailed(ctx, p.ShopID, p.CartID, p.CheckoutSessionID)
		return settle(env, err)
	}
	return nil // ignore
}

// settle acknowledges rule violations (a retry cannot fix a wrong session)
// and returns infrastructure errors so the consumer retries before committing.
func settle(env lifecycle.Envelope, err error) error {
	if err == nil {
		return nil
	}
	var lerr *lifecycle.Error
	if errors.As(err, &lerr) || errors.Is(err, lifecycle.ErrMissingArgument) {
		log.Printf("checkout: event %s (%s) rejected: %v", env.EventID, env.EventType, err)
		return nil
	}
	return err
}
