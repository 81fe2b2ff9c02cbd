package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ariefcatur/exam-vouchers/internal/config"
	"github.com/ariefcatur/exam-vouchers/internal/inventory"
	kafkax "github.com/ariefcatur/exam-vouchers/internal/kafka"
	"github.com/ariefcatur/exam-vouchers/internal/notify"
	"github.com/ariefcatur/exam-vouchers/internal/orders"
	"github.com/ariefcatur/exam-vouchers/internal/postgres"
	"github.com/ariefcatur/exam-vouchers/internal/redisx"
	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// DB
	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer db.Close()

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	var notifier notify.Notifier = notify.Log{}
	if cfg.SMTP.Enabled() {
		notifier = notify.NewSMTP(cfg.SMTP)
	}

	store := &inventory.Repo{DB: db}
	f := &inventory.Fulfiller{
		Store:    store,
		Dedup:    &redisx.Dedup{Redis: rdb},
		Notifier: notifier,
	}

	go inventory.RunExpirySweep(ctx, store, time.Hour)

	// Consumer
	cons := kafkax.NewConsumer(cfg.KafkaBrokers, cfg.FulfillmentGroup, orders.TopicOrderPaid, cfg.FulfillmentWorkers)
	go func() {
		log.Printf("fulfillment consumer started: group=%s topic=%s workers=%d",
			cfg.FulfillmentGroup, orders.TopicOrderPaid, cfg.FulfillmentWorkers)
		if err := cons.Start(ctx, f.HandleOrderPaid); err != nil {
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
	time.Sleep(500 * time.Millisecond)
}
