package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Ukt21/avia/internal/app"
	"github.com/Ukt21/avia/internal/cache"
	"github.com/Ukt21/avia/internal/clock"
	"github.com/Ukt21/avia/internal/config"
	"github.com/Ukt21/avia/internal/storage/postgres"
	transporthttp "github.com/Ukt21/avia/internal/transport/http"
	"github.com/Ukt21/avia/internal/travelpayouts"
	"github.com/Ukt21/avia/migrations"
	"github.com/jackc/pgx/v5/pgxpool"
)

const shutdownTimeout = 10 * time.Second

func main() {
	logger := log.Default()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if cfg.TravelpayoutsToken == "" {
		logger.Printf("WARN: TP_API_TOKEN not set, offer search will fail")
	}

	startupCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	pool, err := pgxpool.New(startupCtx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("connect to db: %v", err)
	}
	defer pool.Close()

	if err := pool.Ping(startupCtx); err != nil {
		log.Fatalf("db ping: %v", err)
	}
	if err := migrations.Apply(startupCtx, pool); err != nil {
		log.Fatalf("apply migrations: %v", err)
	}

	clk := clock.NewSystem()
	orderRepo := postgres.NewOrderRepository(pool)
	entitlementRepo := postgres.NewEntitlementRepository(pool)
	results := cache.NewResults(cfg.ResultTTL, clk)

	offerSource := travelpayouts.New(cfg.TravelpayoutsToken, cfg.TravelpayoutsMarker)
	searchSvc := app.NewSearchService(offerSource, results, entitlementRepo, cfg.FeeCurrency,
		app.WithPaidCap(cfg.PaidTierCap))
	paymentSvc := app.NewPaymentService(orderRepo, entitlementRepo, clk, app.PaymentConfig{
		SigningSecret:   cfg.SigningSecret,
		FeeAmount:       cfg.FeeAmount,
		FeeCurrency:     cfg.FeeCurrency,
		CallbackBaseURL: cfg.CallbackBaseURL,
		OrderExpiry:     cfg.OrderExpiry,
	})
	adminSvc := app.NewAdminService(orderRepo, entitlementRepo)

	mux := http.NewServeMux()
	mux.HandleFunc("/health", transporthttp.HealthHandler)
	mux.Handle("/search", transporthttp.HandleSearch(searchSvc))
	mux.Handle("/results/", transporthttp.HandleResults(searchSvc))
	mux.Handle("/orders", transporthttp.HandleCreateOrder(paymentSvc))
	mux.Handle("/payments/webhook", transporthttp.HandlePaymentWebhook(paymentSvc, cfg.SigningSecret, logger))
	admin := http.NewServeMux()
	admin.Handle("/admin/orders", transporthttp.HandleAdminOrders(adminSvc))
	admin.Handle("/admin/orders/", transporthttp.HandleAdminOrders(adminSvc))
	admin.Handle("/admin/entitlements/", transporthttp.HandleAdminEntitlements(adminSvc))
	admin.Handle("/admin/conflicts", transporthttp.HandleAdminConflicts(adminSvc))
	mux.Handle("/admin/", transporthttp.AdminAuth(cfg.AdminToken, admin))
	mux.Handle("/", transporthttp.NotFoundHandler())

	handler := transporthttp.RequestLogger(transporthttp.CORS(cfg.CORSOrigins, mux), logger)

	server := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: handler,
	}

	log.Printf("api listening on :%s", cfg.Port)

	srvErr := make(chan error, 1)
	go func() {
		srvErr <- server.ListenAndServe()
	}()

	stopCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go runSweeper(stopCtx, logger, cfg.SweepInterval, results, paymentSvc)

	select {
	case err := <-srvErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("server error: %v", err)
		}
	case <-stopCtx.Done():
		log.Printf("shutdown signal received, stopping server")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Printf("server shutdown error: %v", err)
	}
	log.Printf("server stopped")
}

// runSweeper periodically drops expired cached results and cancels orders
// abandoned before payment.
func runSweeper(ctx context.Context, logger *log.Logger, interval time.Duration, results *cache.Results, payments *app.PaymentService) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			results.Sweep()
			expired, err := payments.ExpireStaleOrders(ctx)
			if err != nil {
				logger.Printf("sweep stale orders: %v", err)
				continue
			}
			if expired > 0 {
				logger.Printf("sweep cancelled %d stale orders", expired)
			}
		}
	}
}
