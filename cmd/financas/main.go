package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dal01/financas/internal/config"
	"github.com/dal01/financas/internal/domain"
	"github.com/dal01/financas/internal/handler"
	"github.com/dal01/financas/internal/infra/cache"
	"github.com/dal01/financas/internal/infra/extract"
	"github.com/dal01/financas/internal/infra/observability"
	"github.com/dal01/financas/internal/infra/resilience"
	"github.com/dal01/financas/internal/infra/supabase"
	"github.com/dal01/financas/internal/installments"
	"github.com/dal01/financas/internal/parser"
	"github.com/dal01/financas/internal/service"

	"go.uber.org/zap"
)

func main() {
	// --- Load .env file (for local development) ---
	_ = config.LoadDotEnv(".env")

	// --- Config ---
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "invalid configuration:", err)
		os.Exit(1)
	}

	// --- Logger ---
	logger := observability.NewLogger(cfg.LogLevel)
	defer logger.Sync()

	logger.Info("configuration loaded",
		zap.Int("port", cfg.Port),
		zap.String("log_level", cfg.LogLevel),
		zap.Duration("http_timeout", cfg.HTTPTimeout),
		zap.Duration("cache_ttl", cfg.CacheTTL),
		zap.Int("max_retries", cfg.MaxRetries),
		zap.Duration("initial_backoff", cfg.InitialBackoff),
		zap.Int("import_concurrency", cfg.ImportConcurrency),
	)

	if cfg.StoreURL == "" {
		logger.Fatal("STORE_URL is required")
	}

	// --- Tracing ---
	shutdown, err := observability.InitTracer(cfg.OTLPEndpoint, "financas")
	if err != nil {
		logger.Fatal("failed to init tracer", zap.Error(err))
	}
	defer shutdown(context.Background())

	// --- Metrics ---
	metrics := observability.NewMetrics()

	// --- Caches ---
	statementCache := cache.New[[]domain.Statement](cfg.CacheTTL)
	installmentCache := cache.New[[]domain.InstallmentGroup](cfg.CacheTTL)

	// --- Resilience ---
	resilienceCfg := resilience.Config{
		MaxRetries:     cfg.MaxRetries,
		InitialBackoff: cfg.InitialBackoff,
	}
	cb := resilience.NewCircuitBreaker("postgrest")

	// --- Store ---
	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}
	store := supabase.NewClient(
		httpClient,
		cfg.StoreURL,
		cfg.StoreAnonKey,
		cfg.StoreServiceKey,
		cb,
		resilienceCfg,
		logger,
	)

	// --- Services ---
	extractor := extract.NewPDFExtractor(logger)
	patterns := parser.DefaultPatterns()
	parserOpts := parser.Options{
		DebugUnmatched: cfg.ParserDebugUnmatched,
		DebugMax:       cfg.ParserDebugMax,
		Issuer:         cfg.DefaultIssuer,
	}

	importSvc := service.NewImportService(store, extractor, patterns, parserOpts, cfg.ImportConcurrency, metrics, logger)
	statementSvc := service.NewStatementService(store, statementCache, metrics, logger)

	installmentSvc, err := service.NewInstallmentService(store, installmentCache, installments.Options{
		ValueTolerance: cfg.InstallmentValueTolerance,
		MinDays:        cfg.InstallmentMinDays,
		MaxDays:        cfg.InstallmentMaxDays,
	}, metrics, logger)
	if err != nil {
		logger.Fatal("invalid installment options", zap.Error(err))
	}

	exportSvc := service.NewExportService(statementSvc, installmentSvc, logger)
	extractSvc := service.NewExtractService(store, cfg.ImportConcurrency, metrics, logger)

	// --- Router ---
	router := handler.NewRouter(handler.Services{
		Import:       importSvc,
		Statements:   statementSvc,
		Installments: installmentSvc,
		Export:       exportSvc,
		Extracts:     extractSvc,
	}, cfg.JWTSecret, metrics, logger)

	// --- Server ---
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// --- Graceful shutdown ---
	go func() {
		logger.Info("server starting", zap.Int("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("server shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("server forced shutdown", zap.Error(err))
	}

	logger.Info("server stopped")
}
