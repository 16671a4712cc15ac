package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // Register pgx as database/sql driver
	"github.com/lofthq/loft-assistant/internal/api"
	"github.com/lofthq/loft-assistant/internal/audit"
	"github.com/lofthq/loft-assistant/internal/generation"
	"github.com/lofthq/loft-assistant/internal/intent"
	"github.com/lofthq/loft-assistant/internal/orchestrator"
	"github.com/lofthq/loft-assistant/internal/registry"
	"github.com/lofthq/loft-assistant/internal/store"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	// Logger
	logger := mustBuildLogger(envOrDefault("ASSISTANT_LOG_LEVEL", "info"))
	defer logger.Sync() //nolint:errcheck // best-effort flush

	// Config from env
	httpPort := envOrDefault("ASSISTANT_HTTP_PORT", "8080")
	generationURL := os.Getenv("GENERATION_ENDPOINT")
	toolPlatformURL := os.Getenv("TOOL_PLATFORM_URL")
	clickhouseDSN := os.Getenv("CLICKHOUSE_DSN")
	postgresDSN := os.Getenv("POSTGRES_DSN")
	cacheTTL := envOrDefaultInt("ASSISTANT_AUTH_CACHE_TTL_S", 30)
	connCacheTTL := envOrDefaultInt("ASSISTANT_CONN_CACHE_TTL_S", 30)
	intentCacheTTL := envOrDefaultInt("ASSISTANT_INTENT_CACHE_TTL_S", 120)
	generationTimeoutMs := envOrDefaultInt("GENERATION_TIMEOUT_MS", 30_000)
	toolPlatformTimeoutMs := envOrDefaultInt("TOOL_PLATFORM_TIMEOUT_MS", 15_000)

	logger.Info("starting assistant server",
		zap.String("http_port", httpPort),
		zap.Int("auth_cache_ttl_s", cacheTTL),
		zap.Int("conn_cache_ttl_s", connCacheTTL),
	)

	if generationURL == "" {
		logger.Fatal("GENERATION_ENDPOINT is required")
	}
	if toolPlatformURL == "" {
		logger.Fatal("TOOL_PLATFORM_URL is required")
	}

	// Generation client — shared by the orchestrator and the classifier
	// fallback pass.
	generator := generation.NewHTTPClient(
		generationURL,
		time.Duration(generationTimeoutMs)*time.Millisecond,
		logger,
	)

	// Intent classifier
	classifier, err := intent.NewClassifier(intent.Config{
		Fallback: generator,
		CacheTTL: time.Duration(intentCacheTTL) * time.Second,
		Logger:   logger,
	})
	if err != nil {
		logger.Fatal("failed to create classifier", zap.Error(err))
	}
	defer classifier.Close()

	// Audit storage — ClickHouse or LogWriter fallback
	var writer audit.EventWriter
	if clickhouseDSN != "" {
		chWriter, err := audit.NewClickHouseWriter(clickhouseDSN, logger)
		if err != nil {
			logger.Warn("clickhouse connection failed, falling back to log writer",
				zap.Error(err),
			)
			writer = audit.NewLogWriter(logger)
		} else {
			writer = chWriter
			logger.Info("clickhouse writer connected")
		}
	} else {
		writer = audit.NewLogWriter(logger)
		logger.Info("no CLICKHOUSE_DSN set, using log writer")
	}
	defer writer.Close()

	// Postgres pool (required)
	if postgresDSN == "" {
		logger.Fatal("POSTGRES_DSN is required")
	}
	db, err := sql.Open("pgx", postgresDSN)
	if err != nil {
		logger.Fatal("failed to open postgres", zap.Error(err))
	}
	defer func() { _ = db.Close() }()
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)
	if err := db.PingContext(context.Background()); err != nil {
		logger.Fatal("failed to ping postgres", zap.Error(err))
	}
	pgStore := store.NewPostgresStore(db)
	logger.Info("postgres connected")

	// Tool registry over the hosted tool platform
	reg := registry.NewRegistry(registry.Config{
		Store:        pgStore,
		Provider:     registry.NewHTTPProvider(toolPlatformURL, time.Duration(toolPlatformTimeoutMs)*time.Millisecond),
		ConnCacheTTL: time.Duration(connCacheTTL) * time.Second,
		Logger:       logger,
	})

	// Orchestration driver
	driver := orchestrator.NewDriver(orchestrator.Config{
		Classifier: classifier,
		Registry:   reg,
		Generator:  generator,
		Recorder:   audit.NewRecorder(writer, logger),
		Logger:     logger,
	})

	// ClickHouse reader (for audit-event HTTP endpoints)
	var chReader *audit.Reader
	if clickhouseDSN != "" {
		chReader, err = audit.NewReader(clickhouseDSN, logger)
		if err != nil {
			logger.Warn("clickhouse reader connection failed", zap.Error(err))
		} else {
			defer func() { _ = chReader.Close() }()
			logger.Info("clickhouse reader connected")
		}
	}

	// HTTP API server
	deps := &api.Dependencies{
		Store:    pgStore,
		Driver:   driver,
		Reader:   chReader,
		Logger:   logger,
		CacheTTL: time.Duration(cacheTTL) * time.Second,
	}
	httpServer := &http.Server{
		Addr:         ":" + httpPort,
		Handler:      api.NewRouter(deps),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	go func() {
		logger.Info("http server listening", zap.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("http server failed", zap.Error(err))
		}
	}()

	// Block until shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("received signal, shutting down", zap.String("signal", sig.String()))

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", zap.Error(err))
	}

	logger.Info("assistant server stopped")
}

func mustBuildLogger(level string) *zap.Logger {
	var zapLevel zapcore.Level
	switch level {
	case "debug":
		zapLevel = zapcore.DebugLevel
	case "warn":
		zapLevel = zapcore.WarnLevel
	case "error":
		zapLevel = zapcore.ErrorLevel
	default:
		zapLevel = zapcore.InfoLevel
	}

	cfg := zap.Config{
		Level:            zap.NewAtomicLevelAt(zapLevel),
		Development:      false,
		Encoding:         "json",
		EncoderConfig:    zap.NewProductionEncoderConfig(),
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
	}

	logger, err := cfg.Build()
	if err != nil {
		panic(fmt.Sprintf("failed to build logger: %v", err))
	}
	return logger
}

func envOrDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envOrDefaultInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultVal
}
