package cartstore

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"github.com/google/uuid"
	"strings"
	"time"
)

// RentalMeta is carried verbatim on a line; the store never interprets it.
type RentalMeta struct {
	Start        time.Time  `json:"start"`
	End          time.Time  `json:"end"`
	DepositCents int        `json:"depositCents,omitempty"`
	ReturnBy     *time.Time `json:"returnBy,omitempty"`
}

func (r *RentalMeta) clone() *RentalMeta {
	if r == nil {
		return nil
	}
	c := *r
	if r.ReturnBy != nil {
		t := *r.ReturnBy
		c.ReturnBy = &t
	}
	return &c
}

type CartLine struct {
	SKUID  string      `json:"skuId"`
	Qty    int         `json:"qty"`
	Size   string      `json:"size,omitempty"`
	Rental *RentalMeta `json:"rental,omitempty"`
}

// Cart maps line keys (see LineKey) to lines. Quantities are always > 0.
type Cart map[string]CartLine

// Store is the contract every backend satisfies. Backend failures are
// absorbed (fallback), so none of the operations return an error.
type Store interface {
	CreateCart(ctx context.Context) string
	GetCart(ctx context.Context, id string) Cart
	SetCart(ctx context.Context, id string, cart Cart)
	DeleteCart(ctx context.Context, id string)
	IncrementQty(ctx context.Context, id, skuID string, qty int, size string, rental *RentalMeta) Cart
	// SetQty returns ok=false when the line is not in the cart.
	SetQty(ctx context.Context, id, lineKey string, qty int) (Cart, bool)
	// RemoveItem returns ok=false when the line is not in the cart.
	RemoveItem(ctx context.Context, id, lineKey string) (Cart, bool)
	Backend() string
}

// LineKey is skuID, or skuID:size for sized products.
func LineKey(skuID, size string) string {
	if size == "" {
		return skuID
	}
	return skuID + ":" + size
}

// SKUFromLineKey recovers the sku id from a line key.
func SKUFromLineKey(key string) string {
	if i := strings.IndexByte(key, ':'); i >= 0 {
		return key[:i]
	}
	return key
}

// NewCartID returns 128 random bits as 32 hex characters.
func NewCartID() string {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		return strings.ReplaceAll(uuid.NewString(), "-", "")
	}
	return hex.EncodeToString(b[:])
}

// Clone returns a deep copy. A nil cart clones to an empty one.
func (c Cart) Clone() Cart {
	out := make(Cart, len(c))
	for k, l := range c {
		l.Rental = l.Rental.clone()
		out[k] = l
	}
	return out
}

// normalized drops non-positive lines and fills in SKUID from the key.
func (c Cart) normalized() Cart {
	out := make(Cart, len(c))
	for k, l := range c.Clone() {
		if l.Qty <= 0 {
			continue
		}
		if l.SKUID == "" {
			l.SKUID = SKUFromLineKey(k)
		}
		out[k] = l
	}
	return out
}
