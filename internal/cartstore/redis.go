package cartstore

import (
	"context"
	"encoding/json"
	"errors"
	"github.com/ariefcatur/go-cart-lifecycle/internal/redisx"
	"github.com/redis/go-redis/v9"
	"io"
	"log"
	"strconv"
	"time"
)

// RedisStore keeps a cart in two hashes: cart:{id} holds quantities and
// cart:{id}:sku holds the full line as JSON. Every redis call goes through
// exec; a failed call hands the whole logical operation to the fallback
// store, and after DefaultFailureThreshold consecutive failures the breaker
// opens and redis is not called again.
type RedisStore struct {
	rdb      redis.Cmdable
	ttl      time.Duration
	fallback *MemoryStore
	breaker  *breaker
	owned    io.Closer // client built by the factory, released by Close
}

func NewRedisStore(rdb redis.Cmdable, ttl time.Duration, fallback *MemoryStore) *RedisStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if fallback == nil {
		fallback = NewMemoryStore(ttl)
	}
	return &RedisStore{
		rdb:      rdb,
		ttl:      ttl,
		fallback: fallback,
		breaker:  newBreaker(DefaultFailureThreshold),
	}
}

func (s *RedisStore) Backend() string {
	if s.breaker.Open() {
		return "redis (fallback: memory)"
	}
	return "redis"
}

// Close releases a client the factory built from config. A client passed in
// by the caller is left open.
func (s *RedisStore) Close() error {
	if s.owned == nil {
		return nil
	}
	return s.owned.Close()
}

// CircuitOpen reports whether all calls are being served by the fallback.
func (s *RedisStore) CircuitOpen() bool { return s.breaker.Open() }

// exec runs one redis primitive. ok=false means "unavailable": either the
// breaker is open or the call failed. redis.Nil is a normal empty answer.
func exec[T any](ctx context.Context, s *RedisStore, op string, call func(context.Context) (T, error)) (T, bool) {
	var zero T
	if s.breaker.Open() {
		return zero, false
	}
	v, err := call(ctx)
	if err != nil && !errors.Is(err, redis.Nil) {
		n, tripped := s.breaker.Failure()
		log.Printf("cartstore: redis %s failed (consecutive=%d): %v", op, n, err)
		if tripped {
			log.Printf("cartstore: circuit open after %d failures, serving carts from memory", n)
		}
		return zero, false
	}
	s.breaker.Success()
	return v, true
}

func (s *RedisStore) hgetall(ctx context.Context, key string) (map[string]string, bool) {
	return exec(ctx, s, "HGETALL", func(ctx context.Context) (map[string]string, error) {
		return s.rdb.HGetAll(ctx, key).Result()
	})
}

func (s *RedisStore) hset(ctx context.Context, key string, values ...any) (int64, bool) {
	return exec(ctx, s, "HSET", func(ctx context.Context) (int64, error) {
		return s.rdb.HSet(ctx, key, values...).Result()
	})
}

func (s *RedisStore) hdel(ctx context.Context, key string, fields ...string) (int64, bool) {
	return exec(ctx, s, "HDEL", func(ctx context.Context) (int64, error) {
		return s.rdb.HDel(ctx, key, fields...).Result()
	})
}

func (s *RedisStore) hincrby(ctx context.Context, key, field string, delta int) (int64, bool) {
	return exec(ctx, s, "HINCRBY", func(ctx context.Context) (int64, error) {
		return s.rdb.HIncrBy(ctx, key, field, int64(delta)).Result()
	})
}

func (s *RedisStore) hexists(ctx context.Context, key, field string) (bool, bool) {
	return exec(ctx, s, "HEXISTS", func(ctx context.Context) (bool, error) {
		return s.rdb.HExists(ctx, key, field).Result()
	})
}

func (s *RedisStore) expire(ctx context.Context, key string) (bool, bool) {
	return exec(ctx, s, "EXPIRE", func(ctx context.Context) (bool, error) {
		return s.rdb.Expire(ctx, key, s.ttl).Result()
	})
}

func (s *RedisStore) del(ctx context.Context, keys ...string) (int64, bool) {
	return exec(ctx, s, "DEL", func(ctx context.Context) (int64, error) {
		return s.rdb.Del(ctx, keys...).Result()
	})
}

func (s *RedisStore) CreateCart(ctx context.Context) string {
	if s.breaker.Open() {
		return s.fallback.CreateCart(ctx)
	}
	// an empty cart has no redis footprint; the hashes appear on first write
	return NewCartID()
}

func (s *RedisStore) GetCart(ctx context.Context, id string) Cart {
	if s.breaker.Open() {
		return s.fallback.GetCart(ctx, id)
	}
	qty, ok := s.hgetall(ctx, redisx.CartQtyKey(id))
	if !ok {
		return s.fallback.GetCart(ctx, id)
	}
	details, ok := s.hgetall(ctx, redisx.CartLinesKey(id))
	if !ok {
		return s.fallback.GetCart(ctx, id)
	}
	return decodeCart(qty, details)
}

func (s *RedisStore) SetCart(ctx context.Context, id string, cart Cart) {
	if s.breaker.Open() {
		s.fallback.SetCart(ctx, id, cart)
		return
	}
	cart = cart.normalized()
	qk, lk := redisx.CartQtyKey(id), redisx.CartLinesKey(id)

	if _, ok := s.del(ctx, qk, lk); !ok {
		s.fallback.SetCart(ctx, id, cart)
		return
	}
	if len(cart) == 0 {
		return
	}
	qtyFields := make(map[string]any, len(cart))
	lineFields := make(map[string]any, len(cart))
	for k, l := range cart {
		qtyFields[k] = l.Qty
		lineFields[k] = encodeLine(l)
	}
	if _, ok := s.hset(ctx, qk, qtyFields); !ok {
		s.fallback.SetCart(ctx, id, cart)
		return
	}
	if _, ok := s.hset(ctx, lk, lineFields); !ok {
		s.fallback.SetCart(ctx, id, cart)
		return
	}
	if !s.refreshTTL(ctx, id) {
		s.fallback.SetCart(ctx, id, cart)
	}
}

func (s *RedisStore) DeleteCart(ctx context.Context, id string) {
	// the fallback may hold a copy written during an earlier failure
	s.fallback.DeleteCart(ctx, id)
	if s.breaker.Open() {
		return
	}
	s.del(ctx, redisx.CartQtyKey(id), redisx.CartLinesKey(id))
}

func (s *RedisStore) IncrementQty(ctx context.Context, id, skuID string, qty int, size string, rental *RentalMeta) Cart {
	if s.breaker.Open() {
		return s.fallback.IncrementQty(ctx, id, skuID, qty, size, rental)
	}
	qk, lk := redisx.CartQtyKey(id), redisx.CartLinesKey(id)
	key := LineKey(skuID, size)

	n, ok := s.hincrby(ctx, qk, key, qty)
	if !ok {
		return s.fallback.IncrementQty(ctx, id, skuID, qty, size, rental)
	}
	if n <= 0 {
		if _, ok := s.hdel(ctx, qk, key); !ok {
			return s.fallback.IncrementQty(ctx, id, skuID, qty, size, rental)
		}
		if _, ok := s.hdel(ctx, lk, key); !ok {
			return s.fallback.IncrementQty(ctx, id, skuID, qty, size, rental)
		}
	} else {
		line := CartLine{SKUID: skuID, Qty: int(n), Size: size, Rental: rental}
		if _, ok := s.hset(ctx, lk, key, encodeLine(line)); !ok {
			return s.fallback.IncrementQty(ctx, id, skuID, qty, size, rental)
		}
	}
	if !s.refreshTTL(ctx, id) {
		return s.fallback.IncrementQty(ctx, id, skuID, qty, size, rental)
	}
	return s.GetCart(ctx, id)
}

func (s *RedisStore) SetQty(ctx context.Context, id, lineKey string, qty int) (Cart, bool) {
	if s.breaker.Open() {
		return s.fallback.SetQty(ctx, id, lineKey, qty)
	}
	qk, lk := redisx.CartQtyKey(id), redisx.CartLinesKey(id)

	exists, ok := s.hexists(ctx, qk, lineKey)
	if !ok {
		return s.fallback.SetQty(ctx, id, lineKey, qty)
	}
	if !exists {
		return nil, false
	}
	if qty <= 0 {
		if _, ok := s.hdel(ctx, qk, lineKey); !ok {
			return s.fallback.SetQty(ctx, id, lineKey, qty)
		}
		if _, ok := s.hdel(ctx, lk, lineKey); !ok {
			return s.fallback.SetQty(ctx, id, lineKey, qty)
		}
	} else if _, ok := s.hset(ctx, qk, lineKey, qty); !ok {
		return s.fallback.SetQty(ctx, id, lineKey, qty)
	}
	if !s.refreshTTL(ctx, id) {
		return s.fallback.SetQty(ctx, id, lineKey, qty)
	}
	return s.GetCart(ctx, id), true
}

func (s *RedisStore) RemoveItem(ctx context.Context, id, lineKey string) (Cart, bool) {
	if s.breaker.Open() {
		return s.fallback.RemoveItem(ctx, id, lineKey)
	}
	qk, lk := redisx.CartQtyKey(id), redisx.CartLinesKey(id)

	exists, ok := s.hexists(ctx, qk, lineKey)
	if !ok {
		return s.fallback.RemoveItem(ctx, id, lineKey)
	}
	if !exists {
		return nil, false
	}
	if _, ok := s.hdel(ctx, qk, lineKey); !ok {
		return s.fallback.RemoveItem(ctx, id, lineKey)
	}
	if _, ok := s.hdel(ctx, lk, lineKey); !ok {
		return s.fallback.RemoveItem(ctx, id, lineKey)
	}
	if !s.refreshTTL(ctx, id) {
		return s.fallback.RemoveItem(ctx, id, lineKey)
	}
	return s.GetCart(ctx, id), true
}

// refreshTTL restarts the sliding expiry on both hashes. EXPIRE on a missing
// key answers false, which is not a failure.
func (s *RedisStore) refreshTTL(ctx context.Context, id string) bool {
	if _, ok := s.expire(ctx, redisx.CartQtyKey(id)); !ok {
		return false
	}
	_, ok := s.expire(ctx, redisx.CartLinesKey(id))
	return ok
}

func encodeLine(l CartLine) string {
	b, err := json.Marshal(l)
	if err != nil {
		log.Printf("cartstore: encode line %s: %v (rental metadata dropped)", l.SKUID, err)
		b, _ = json.Marshal(CartLine{SKUID: l.SKUID, Qty: l.Qty, Size: l.Size})
	}
	return string(b)
}

// decodeCart joins the two hashes. The quantity hash is authoritative; a
// missing or unreadable detail entry degrades to a bare line.
func decodeCart(qty, details map[string]string) Cart {
	cart := make(Cart, len(qty))
	for key, raw := range qty {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			continue
		}
		var line CartLine
		if d, ok := details[key]; ok {
			if err := json.Unmarshal([]byte(d), &line); err != nil {
				line = CartLine{}
			}
		}
		if line.SKUID == "" {
			line.SKUID = SKUFromLineKey(key)
		}
		line.Qty = n
		cart[key] = line
	}
	return cart
}
