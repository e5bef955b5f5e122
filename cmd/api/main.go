package main

import (
	"context"
	"github.com/ariefcatur/go-cart-lifecycle/internal/app"
	"github.com/ariefcatur/go-cart-lifecycle/internal/config"
	"github.com/ariefcatur/go-cart-lifecycle/internal/httpx"
	kafkax "github.com/ariefcatur/go-cart-lifecycle/internal/kafka"
	"github.com/ariefcatur/go-cart-lifecycle/internal/lifecycle"
	"github.com/joho/godotenv"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// DB
	db, repo, err := app.Lifecycle(ctx, cfg)
	if err != nil {
		log.Fatalf("lifecycle store: %v", err)
	}
	defer db.Close()

	// Cart store
	carts, closeCarts := app.Carts(cfg)
	defer closeCarts()

	// Kafka producer
	prod := kafkax.NewProducer(cfg.KafkaBrokers, lifecycle.TopicCartLifecycle, 1024)
	prod.Start(ctx)

	tracker := lifecycle.NewTracker(repo, carts, prod, cfg.ServiceName)
	router := httpx.NewRouter(carts.Backend)
	(&httpx.CartHandler{Store: carts}).Register(router)
	(&httpx.CheckoutHandler{Tracker: tracker}).Register(router)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router}

	go func() {
		log.Printf("HTTP listening at %s", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Println("shutting down...")

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	_ = srv.Shutdown(ctx2)
	prod.Close() // flush pending lifecycle events
	prod.WaitClosed()
	cancel()
}
