package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ariefcatur/exam-vouchers/internal/config"
	"github.com/ariefcatur/exam-vouchers/internal/discounts"
	"github.com/ariefcatur/exam-vouchers/internal/httpx"
	"github.com/ariefcatur/exam-vouchers/internal/inventory"
	"github.com/ariefcatur/exam-vouchers/internal/invoices"
	kafkax "github.com/ariefcatur/exam-vouchers/internal/kafka"
	"github.com/ariefcatur/exam-vouchers/internal/notify"
	"github.com/ariefcatur/exam-vouchers/internal/orders"
	"github.com/ariefcatur/exam-vouchers/internal/payments"
	"github.com/ariefcatur/exam-vouchers/internal/postgres"
	"github.com/ariefcatur/exam-vouchers/internal/redisx"
	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.MigrateOnStart {
		if err := postgres.Migrate(cfg.PostgresDSN); err != nil {
			log.Fatalf("migrate: %v", err)
		}
	}

	// DB
	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("db connect: %v", err)
	}
	defer db.Close()

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	// Kafka producers
	paidProd := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicOrderPaid, 1024)
	paidProd.Start(ctx)
	cancelProd := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicOrderCancelled, 1024)
	cancelProd.Start(ctx)

	var notifier notify.Notifier = notify.Log{}
	if cfg.SMTP.Enabled() {
		notifier = notify.NewSMTP(cfg.SMTP)
	}

	catalog := &orders.CatalogRepo{DB: db, Defaults: orders.Settings{
		VATPercent:        cfg.Seller.VATPercent,
		SellerName:        cfg.Seller.Name,
		SellerVATNumber:   cfg.Seller.VATNumber,
		LowStockThreshold: cfg.LowStockThreshold,
	}}
	ledger := &discounts.Ledger{Store: &discounts.Repo{DB: db}}
	gateway := payments.NewTapGateway(cfg.Gateway)
	svc := &orders.Service{
		Store:      &orders.Repo{DB: db},
		Catalog:    catalog,
		Discounts:  ledger,
		Gateway:    gateway,
		Currency:   cfg.Gateway.Currency,
		ReturnURL:  func(id string) string { return cfg.PublicBaseURL + "/orders/" + id + "/success" },
		WebhookURL: cfg.PublicBaseURL + "/api/webhooks/payments",
	}
	issuer := &invoices.Issuer{Store: &invoices.Repo{DB: db}, Catalog: catalog}
	rec := &payments.Reconciler{
		Orders:      svc,
		Discounts:   ledger,
		Invoices:    issuer,
		Gateway:     gateway,
		Paid:        paidProd,
		Cancelled:   cancelProd,
		Notifier:    notifier,
		Dedup:       &redisx.Dedup{Redis: rdb},
		ServiceName: cfg.ServiceName,
		InvoiceURL:  func(id string) string { return cfg.PublicBaseURL + "/api/orders/" + id + "/invoice" },
		PollTimeout: cfg.Gateway.Timeout,
	}

	router := httpx.NewRouter()
	api := &httpx.API{
		Orders:     svc,
		Catalog:    catalog,
		Discounts:  ledger,
		Reconciler: rec,
		Invoices:   issuer,
		Renderer:   invoices.PDFRenderer{},
		Inventory:  &inventory.Repo{DB: db},
		Views:      &redisx.Cache{Redis: rdb, Key: redisx.KeyOrderView, TTL: redisx.TTLOrderView},
		Callers:    httpx.NewCallers(cfg.AdminTokens, cfg.InstitutionTokens),
		Currency:   cfg.Gateway.Currency,
	}
	api.Register(router)

	// HTTP server
	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router, ReadHeaderTimeout: 10 * time.Second}

	// graceful shutdown
	go func() {
		log.Printf("HTTP listening at %s", cfg.HTTPAddr)
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
	paidProd.Close()   // tutup inbox -> flush & close writer
	cancelProd.Close() // tutup inbox -> flush & close writer
	cancel()           // stop producer loop
	paidProd.WaitClosed()
	cancelProd.WaitClosed()
}
