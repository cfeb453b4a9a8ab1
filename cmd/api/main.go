package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/ariefcatur/go-storefront/internal/config"
	"github.com/ariefcatur/go-storefront/internal/events"
	"github.com/ariefcatur/go-storefront/internal/httpx"
	kafkax "github.com/ariefcatur/go-storefront/internal/kafka"
	"github.com/ariefcatur/go-storefront/internal/kvstore"
	"github.com/ariefcatur/go-storefront/internal/notify"
	"github.com/ariefcatur/go-storefront/internal/payment"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// KV store (redis | postgres | memory)
	kv, closeKV, err := kvstore.Open(ctx, cfg.KVBackend, cfg.RedisAddr, cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("kv connect: %v", err)
	}
	defer closeKV()

	// Kafka producer
	prod := kafkax.NewProducer(cfg.KafkaBrokers, events.TopicStorefront, 1024)
	prod.Start(ctx)

	router := httpx.NewRouter()
	sh := &httpx.StoreHandler{
		KV:            kv,
		Events:        prod,
		Notifications: notify.NewService(kv, log.Default()),
		Paytm:         payment.Paytm(cfg.Paytm),
		Service:       cfg.ServiceName,
		Log:           log.Default(),
	}
	sh.Register(router)

	// HTTP server
	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router, ReadHeaderTimeout: 10 * time.Second}

	// graceful shutdown
	go func() {
		log.Printf("HTTP listening at %s (kv=%s)", cfg.HTTPAddr, cfg.KVBackend)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	// wait signal
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Println("shutting down...")

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	_ = srv.Shutdown(ctx2)
	prod.Close()      // tutup inbox -> flush & close writer
	prod.WaitClosed() // drain
}
