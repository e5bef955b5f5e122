package main

import (
	"context"
	"github.com/ariefcatur/go-cart-lifecycle/internal/app"
	"github.com/ariefcatur/go-cart-lifecycle/internal/checkout"
	"github.com/ariefcatur/go-cart-lifecycle/internal/config"
	kafkax "github.com/ariefcatur/go-cart-lifecycle/internal/kafka"
	"github.com/ariefcatur/go-cart-lifecycle/internal/lifecycle"
	"github.com/joho/godotenv"
	"log"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, repo, err := app.Lifecycle(ctx, cfg)
	if err != nil {
		log.Fatalf("lifecycle store: %v", err)
	}
	defer db.Close()

	carts, closeCarts := app.Carts(cfg)
	defer closeCarts()
	if carts.Backend() == "memory" {
		log.Printf("worker: memory cart backend is process local, clears will not reach the api's carts")
	}

	prod := kafkax.NewProducer(cfg.KafkaBrokers, lifecycle.TopicCartLifecycle, 1024)
	prod.Start(ctx)

	svc := &checkout.Service{
		Lifecycle: lifecycle.NewTracker(repo, carts, prod, cfg.ServiceName+"-worker"),
	}

	topics := []string{lifecycle.TopicPaymentAuthorized, lifecycle.TopicPaymentFailed}
	cons := kafkax.NewConsumer(cfg.KafkaBrokers, cfg.WorkerGroup, topics, cfg.WorkerCount)

	done := make(chan struct{})
	go func() {
		defer close(done)
		log.Printf("payment consumer started: group=%s topics=%v workers=%d", cfg.WorkerGroup, topics, cfg.WorkerCount)
		if err := cons.Start(ctx, svc.HandlePaymentEvent); err != nil {
			log.Printf("consumer exit: %v", err)
			cancel()
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sig:
	case <-ctx.Done():
	}
	log.Println("shutting down consumer...")
	cancel()
	<-done
	prod.Close()
	prod.WaitClosed()
}
