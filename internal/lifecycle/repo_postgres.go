package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"time"
)

// DB is the part of *pgxpool.Pool the repository uses.
type DB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type PostgresRepo struct{ DB DB }

const recordColumns = `id, shop_id, cart_id, status, checkout_session_id, order_id, cleared_at, created_at, updated_at`

func (r *PostgresRepo) Find(ctx context.Context, shopID, cartID string) (*Record, error) {
	row := r.DB.QueryRow(ctx, `SELECT `+recordColumns+` FROM cart_lifecycles WHERE shop_id=$1 AND cart_id=$2`, shopID, cartID)
	rec, err := scanRecord(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find cart lifecycle: %w", err)
	}
	return rec, nil
}

// Upsert relies on UNIQUE (shop_id, cart_id); NULL inputs keep the stored value.
func (r *PostgresRepo) Upsert(ctx context.Context, c Change) (*Record, error) {
	row := r.DB.QueryRow(ctx, `
		INSERT INTO cart_lifecycles (id, shop_id, cart_id, status, checkout_session_id, order_id, cleared_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)
		ON CONFLICT (shop_id, cart_id) DO UPDATE SET
			status              = EXCLUDED.status,
			checkout_session_id = COALESCE(EXCLUDED.checkout_session_id, cart_lifecycles.checkout_session_id),
			order_id            = COALESCE(EXCLUDED.order_id, cart_lifecycles.order_id),
			cleared_at          = COALESCE(EXCLUDED.cleared_at, cart_lifecycles.cleared_at),
			updated_at          = EXCLUDED.updated_at
		RETURNING `+recordColumns,
		uuid.NewString(), c.ShopID, c.CartID, string(c.Status),
		nullable(c.CheckoutSessionID), nullable(c.OrderID), c.ClearedAt, c.At,
	)
	rec, err := scanRecord(row)
	if err != nil {
		return nil, fmt.Errorf("upsert cart lifecycle: %w", err)
	}
	return rec, nil
}

func scanRecord(row pgx.Row) (*Record, error) {
	var (
		rec     Record
		status  string
		session *string
		orderID *string
		cleared *time.Time
	)
	if err := row.Scan(&rec.ID, &rec.ShopID, &rec.CartID, &status, &session, &orderID, &cleared, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
		return nil, err
	}
	rec.Status = Status(status)
	if session != nil {
		rec.CheckoutSessionID = *session
	}
	if orderID != nil {
		rec.OrderID = *orderID
	}
	rec.ClearedAt = cleared
	return &rec, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
