package app

import (
	"github.com/alicebob/miniredis/v2"
	"github.com/ariefcatur/go-cart-lifecycle/internal/config"
	"github.com/stretchr/testify/require"
	"testing"
)

func TestCartsPicksRedisFromURL(t *testing.T) {
	mr := miniredis.RunT(t)
	store, closeFn := Carts(config.Config{RedisURL: "redis://" + mr.Addr()})
	defer closeFn()
	require.Equal(t, "redis", store.Backend())
}

func TestCartsFallsBackToAddr(t *testing.T) {
	mr := miniredis.RunT(t)
	store, closeFn := Carts(config.Config{RedisURL: "://bad", RedisAddr: mr.Addr()})
	defer closeFn()
	require.Equal(t, "redis", store.Backend())
}

func TestCartsMemoryWhenForced(t *testing.T) {
	mr := miniredis.RunT(t)
	store, closeFn := Carts(config.Config{CartBackend: "memory", RedisAddr: mr.Addr()})
	defer closeFn()
	require.Equal(t, "memory", store.Backend())
}

func TestCartsMemoryWithoutCredentials(t *testing.T) {
	store, closeFn := Carts(config.Config{})
	defer closeFn()
	require.Equal(t, "memory", store.Backend())
}
