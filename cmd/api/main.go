package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	"github.com/adkhamov/termpay/internal/config"
	"github.com/adkhamov/termpay/internal/dispatcher"
	"github.com/adkhamov/termpay/internal/fx"
	"github.com/adkhamov/termpay/internal/handler"
	"github.com/adkhamov/termpay/internal/ledger"
	"github.com/adkhamov/termpay/internal/logging"
	"github.com/adkhamov/termpay/internal/middleware"
	"github.com/adkhamov/termpay/internal/pricing"
	"github.com/adkhamov/termpay/internal/provider"
	"github.com/adkhamov/termpay/internal/repository"
	"github.com/adkhamov/termpay/internal/transfer"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := logging.Init("termpay-api", cfg.LogLevel, cfg.AppEnv)

	rounding, err := pricing.ParseRounding(cfg.QuoteRounding)
	if err != nil {
		slog.Error("invalid quote rounding", "value", cfg.QuoteRounding, "error", err)
		os.Exit(1)
	}

	db, err := connectDB(cfg)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	var cache *redis.Client
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			slog.Error("invalid redis url", "error", err)
			os.Exit(1)
		}
		cache = redis.NewClient(opts)
		defer cache.Close()
	}

	agentRepo := repository.NewAgentRepository(db)
	historyRepo := repository.NewHistoryRepository(db)
	transferRepo := repository.NewTransferRepository(db)
	outboxRepo := repository.NewOutboxRepository(db)
	catalogRepo := repository.NewCatalogRepository(db)
	rateRepo := repository.NewRateRepository(db)

	ledgerSvc := ledger.NewService(agentRepo, historyRepo, db)
	fxSvc := fx.NewService(rateRepo, cache, cfg.FXCacheTTL())
	providerClient := provider.NewClient()

	transferSvc := transfer.NewService(
		transferRepo, outboxRepo, agentRepo, catalogRepo,
		ledgerSvc, fxSvc, providerClient, db,
		transfer.Options{
			QuoteTTL:        cfg.QuoteTTL(),
			Rounding:        rounding,
			ProviderTimeout: cfg.ProviderTimeout(),
		},
	)

	disp := dispatcher.New(
		outboxRepo, catalogRepo, transferSvc, providerClient, logger,
		dispatcher.Options{
			Workers:        cfg.DispatcherWorkers,
			BatchSize:      cfg.DispatcherBatchSize,
			BusySleep:      cfg.DispatcherBusySleep(),
			IdleSleep:      cfg.DispatcherIdleSleep(),
			DefaultTimeout: cfg.ProviderTimeout(),
		},
	)

	dispCtx, stopDispatcher := context.WithCancel(context.Background())
	dispatcherDone := make(chan struct{})
	go func() {
		defer close(dispatcherDone)
		disp.Run(dispCtx)
	}()

	transferHandler := handler.NewTransferHandler(transferSvc)
	ledgerHandler := handler.NewLedgerHandler(ledgerSvc)
	healthHandler := handler.NewHealthHandler(db, cache)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health/live", healthHandler.Liveness)
	mux.HandleFunc("GET /health/ready", healthHandler.Readiness)
	mux.HandleFunc("POST /api/v1/transfers/check", transferHandler.Check)
	mux.HandleFunc("POST /api/v1/transfers/prepare", transferHandler.Prepare)
	mux.HandleFunc("POST /api/v1/transfers/confirm", transferHandler.Confirm)
	mux.HandleFunc("GET /api/v1/transfers/{reference}", transferHandler.Status)
	mux.HandleFunc("POST /api/v1/ledger/credit", ledgerHandler.Credit)
	mux.HandleFunc("POST /api/v1/ledger/debit", ledgerHandler.Debit)

	root := middleware.RequestID(middleware.Logging(middleware.Recovery(mux)))

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           root,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		slog.Info("server started", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	stopDispatcher()
	select {
	case <-dispatcherDone:
	case <-ctx.Done():
		slog.Warn("dispatcher did not stop in time")
	}

	slog.Info("server stopped")
}

func connectDB(cfg *config.Config) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("connectDB: %w", err)
	}

	db.SetMaxOpenConns(cfg.DBMaxOpenConns)
	db.SetMaxIdleConns(cfg.DBMaxIdleConns)
	db.SetConnMaxLifetime(time.Duration(cfg.DBConnMaxLifetimeS) * time.Second)
	db.SetConnMaxIdleTime(time.Duration(cfg.DBConnMaxIdleTimeS) * time.Second)

	for i := range 30 {
		if err = db.Ping(); err == nil {
			return db, nil
		}
		slog.Info("waiting for database", "attempt", i+1)
		time.Sleep(time.Second)
	}

	db.Close()
	return nil, fmt.Errorf("connectDB: gave up after 30 attempts: %w", err)
}
