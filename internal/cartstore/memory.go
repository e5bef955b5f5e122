package cartstore

import (
	"context"
	"sync"
	"time"
)

type memEntry struct {
	cart      Cart
	expiresAt time.Time
	timer     *time.Timer
}

// MemoryStore keeps carts in process memory. Entries expire lazily on read and
// are also evicted by a timer re-armed on every mutation, so carts nobody reads
// again are still reclaimed. It doubles as the fallback for RedisStore.
type MemoryStore struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]*memEntry
	nowFunc func() time.Time
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemoryStore{
		ttl:     ttl,
		entries: map[string]*memEntry{},
		nowFunc: time.Now,
	}
}

func (s *MemoryStore) Backend() string { return "memory" }

func (s *MemoryStore) CreateCart(ctx context.Context) string {
	id := NewCartID()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touchLocked(id, Cart{})
	return id
}

func (s *MemoryStore) GetCart(ctx context.Context, id string) Cart {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.liveLocked(id)
	if e == nil {
		return Cart{}
	}
	return e.cart.Clone()
}

func (s *MemoryStore) SetCart(ctx context.Context, id string, cart Cart) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touchLocked(id, cart.normalized())
}

func (s *MemoryStore) DeleteCart(ctx context.Context, id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dropLocked(id)
}

func (s *MemoryStore) IncrementQty(ctx context.Context, id, skuID string, qty int, size string, rental *RentalMeta) Cart {
	s.mu.Lock()
	defer s.mu.Unlock()

	cart := Cart{}
	if e := s.liveLocked(id); e != nil {
		cart = e.cart
	}
	key := LineKey(skuID, size)
	next := cart[key].Qty + qty
	if next <= 0 {
		delete(cart, key)
	} else {
		// the detail written is the one given, as in RedisStore
		cart[key] = CartLine{SKUID: skuID, Qty: next, Size: size, Rental: rental.clone()}
	}
	s.touchLocked(id, cart)
	return cart.Clone()
}

func (s *MemoryStore) SetQty(ctx context.Context, id, lineKey string, qty int) (Cart, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.liveLocked(id)
	if e == nil {
		return nil, false
	}
	line, ok := e.cart[lineKey]
	if !ok {
		return nil, false
	}
	if qty <= 0 {
		delete(e.cart, lineKey)
	} else {
		line.Qty = qty
		e.cart[lineKey] = line
	}
	s.touchLocked(id, e.cart)
	return e.cart.Clone(), true
}

func (s *MemoryStore) RemoveItem(ctx context.Context, id, lineKey string) (Cart, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.liveLocked(id)
	if e == nil {
		return nil, false
	}
	if _, ok := e.cart[lineKey]; !ok {
		return nil, false
	}
	delete(e.cart, lineKey)
	s.touchLocked(id, e.cart)
	return e.cart.Clone(), true
}

// Len reports entries still held, expired or not. Used by tests.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// liveLocked returns the entry for id, dropping it if it has expired.
func (s *MemoryStore) liveLocked(id string) *memEntry {
	e, ok := s.entries[id]
	if !ok {
		return nil
	}
	if !s.nowFunc().Before(e.expiresAt) {
		s.dropLocked(id)
		return nil
	}
	return e
}

// touchLocked stores cart under id and restarts the sliding TTL.
func (s *MemoryStore) touchLocked(id string, cart Cart) {
	if cart == nil {
		cart = Cart{}
	}
	if old, ok := s.entries[id]; ok && old.timer != nil {
		old.timer.Stop()
	}
	exp := ExpiresAt(s.nowFunc(), s.ttl)
	e := &memEntry{cart: cart, expiresAt: exp}
	e.timer = time.AfterFunc(s.ttl, func() { s.evict(id, e) })
	s.entries[id] = e
}

// evict runs from the timer. A newer touch replaces the entry, which makes a
// stale timer a no-op.
func (s *MemoryStore) evict(id string, armed *memEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.entries[id]; ok && e == armed {
		delete(s.entries, id)
	}
}

func (s *MemoryStore) dropLocked(id string) {
	if e, ok := s.entries[id]; ok {
		if e.timer != nil {
			e.timer.Stop()
		}
		delete(s.entries, id)
	}
}
