package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"billpay-wizard/internal/config"
	"billpay-wizard/internal/domain/ports/repository"
	"billpay-wizard/internal/infra/billing"
	pg "billpay-wizard/internal/infra/db/postgres"
	"billpay-wizard/internal/infra/logging"
	"billpay-wizard/internal/infra/memory"
	"billpay-wizard/internal/infra/metrics"
	red "billpay-wizard/internal/infra/redis"
	"billpay-wizard/internal/infra/web"
	"billpay-wizard/internal/usecase"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "development mode (console logs, relaxed redaction)")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	metrics.MustRegister()

	// ---- Session store (redis when configured, in-memory otherwise) ----
	var sessions repository.SessionRepository
	var limiter web.SessionLimiter
	if cfg.Redis.URL != "" {
		client, err := red.NewClient(ctx, &cfg.Redis)
		if err != nil {
			log.Fatalf("redis: %v", err)
		}
		defer client.Close()
		sessions = red.NewSessionRepo(client, cfg.Redis.TTL)
		limiter = red.NewRateLimiter(client)
	} else {
		logger.Warn().Msg("redis not configured; using in-memory session store")
		sessions = memory.NewSessionRepo(cfg.Redis.TTL)
	}

	// ---- Receipt history (optional) ----
	var receipts repository.ReceiptRepository
	if cfg.Database.URL != "" {
		pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, 10)
		if err != nil {
			log.Fatalf("postgres: %v", err)
		}
		defer pool.Close()
		receipts = pg.NewReceiptRepo(pool)
	} else {
		logger.Warn().Msg("database not configured; receipt history disabled")
	}

	// ---- Backend gateway and use cases ----
	gateway := billing.NewRESTGateway(cfg.Backend.BaseURL, cfg.Backend.APIKey, cfg.Backend.Timeout, cfg.Backend.Currency, logger)
	catalogUC := usecase.NewCatalogUseCase(gateway, logger)
	chargesUC := usecase.NewChargesUseCase(gateway, logger)
	wizardUC := usecase.NewWizardUseCase(catalogUC, chargesUC, gateway, sessions, receipts, cfg.ServiceRules(), cfg.Backend.Currency, logger)

	// ---- HTTP API for the host UI ----
	auth := web.NewAuthManager(cfg.Web.APISecret, cfg.Web.TokenTTL)
	server := web.NewServer(
		wizardUC, catalogUC, receipts, auth, limiter,
		web.RateConfig{Limit: cfg.Web.RateLimit, Window: cfg.Web.RateWindow},
		cfg.Web.APISecret, logger,
	)
	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Web.Port),
		Handler: server.Routes(),
	}

	go func() {
		logger.Info().Int("port", cfg.Web.Port).Msg("wizard API listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("http server stopped")
			cancel()
		}
	}()

	// ---- Graceful shutdown ----
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sig:
	case <-ctx.Done():
	}
	logger.Info().Msg("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("shutdown failed")
	}
}
