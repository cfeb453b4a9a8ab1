package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/ariefcatur/go-storefront/internal/config"
	"github.com/ariefcatur/go-storefront/internal/events"
	kafkax "github.com/ariefcatur/go-storefront/internal/kafka"
	"github.com/ariefcatur/go-storefront/internal/kvstore"
	"github.com/ariefcatur/go-storefront/internal/notify"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	kv, closeKV, err := kvstore.Open(ctx, cfg.KVBackend, cfg.RedisAddr, cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("kv: %v", err)
	}
	defer closeKV()

	svc := notify.NewService(kv, log.Default())

	// Consumer
	cons := kafkax.NewConsumer(cfg.KafkaBrokers, cfg.NotifierGroup, events.TopicStorefront, cfg.NotifierWorkers)
	done := make(chan struct{})
	go func() {
		defer close(done)
		log.Printf("notifier consumer started: group=%s topic=%s workers=%d", cfg.NotifierGroup, events.TopicStorefront, cfg.NotifierWorkers)
		if err := cons.Start(ctx, svc.Handle); err != nil {
			log.Printf("consumer exit: %v", err)
			cancel()
		}
	}()

	// graceful shutdown
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sig:
	case <-ctx.Done():
	}
	log.Println("shutting down consumer...")
	cancel()
	<-done
}
