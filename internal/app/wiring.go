package app

import (
	"context"
	"fmt"
	"github.com/ariefcatur/go-cart-lifecycle/internal/cartstore"
	"github.com/ariefcatur/go-cart-lifecycle/internal/config"
	"github.com/ariefcatur/go-cart-lifecycle/internal/lifecycle"
	"github.com/ariefcatur/go-cart-lifecycle/internal/postgres"
	"github.com/jackc/pgx/v5/pgxpool"
	"log"
)

// Carts builds the cart store from config. The returned close func releases
// the redis client the store built, if any.
func Carts(cfg config.Config) (cartstore.Store, func()) {
	store := cartstore.New(cartstore.Options{}, cfg)
	log.Printf("app: cart backend=%s", store.Backend())
	closeFn := func() {}
	if rs, ok := store.(*cartstore.RedisStore); ok {
		closeFn = func() {
			if err := rs.Close(); err != nil {
				log.Printf("app: close redis: %v", err)
			}
		}
	}
	return store, closeFn
}

// Lifecycle connects to Postgres and makes sure the lifecycle table exists.
func Lifecycle(ctx context.Context, cfg config.Config) (*pgxpool.Pool, *lifecycle.PostgresRepo, error) {
	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		return nil, nil, fmt.Errorf("db connect: %w", err)
	}
	if err := postgres.EnsureSchema(ctx, db); err != nil {
		db.Close()
		return nil, nil, err
	}
	return db, &lifecycle.PostgresRepo{DB: db}, nil
}
