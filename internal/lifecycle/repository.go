package lifecycle

import (
	"context"
	"github.com/google/uuid"
	"sync"
)

type Repository interface {
	// Find returns (nil, nil) when no record exists.
	Find(ctx context.Context, shopID, cartID string) (*Record, error)
	// Upsert creates or updates the record for (ShopID, CartID) and returns it.
	Upsert(ctx context.Context, c Change) (*Record, error)
}

// MemoryRepo is used for tests and local runs without Postgres.
type MemoryRepo struct {
	mu      sync.Mutex
	records map[[2]string]Record
	upserts int
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{records: map[[2]string]Record{}}
}

func (r *MemoryRepo) Find(ctx context.Context, shopID, cartID string) (*Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[[2]string{shopID, cartID}]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (r *MemoryRepo) Upsert(ctx context.Context, c Change) (*Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.upserts++

	key := [2]string{c.ShopID, c.CartID}
	rec, ok := r.records[key]
	if !ok {
		rec = Record{ID: uuid.NewString(), ShopID: c.ShopID, CartID: c.CartID, CreatedAt: c.At}
	}
	rec.Status = c.Status
	if c.CheckoutSessionID != "" {
		rec.CheckoutSessionID = c.CheckoutSessionID
	}
	if c.OrderID != "" {
		rec.OrderID = c.OrderID
	}
	if c.ClearedAt != nil {
		t := *c.ClearedAt
		rec.ClearedAt = &t
	}
	rec.UpdatedAt = c.At
	r.records[key] = rec
	return &rec, nil
}

// Upserts counts write calls.
func (r *MemoryRepo) Upserts() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.upserts
}
