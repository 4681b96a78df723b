// Package main is the entry point for the sales reporting API server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"salesbi/internal/config"
	"salesbi/internal/domain/auth"
	"salesbi/internal/domain/reports"
	v1 "salesbi/internal/infrastructure/http/v1"
	"salesbi/internal/infrastructure/metrics"
	"salesbi/internal/infrastructure/storage/postgres"
	"salesbi/internal/infrastructure/storage/postgres/report_repo"
	"salesbi/internal/infrastructure/storage/postgres/run_repo"
	"salesbi/pkg/logger"
)

var version = "dev"

func main() {
	configPath := flag.String("config", os.Getenv("SALESBI_CONFIG"), "path to the YAML configuration file")
	issueToken := flag.String("issue-token", "", "print an access token for the given subject and exit")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Printf("failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log, err := logger.New(cfg.Log.LoggerConfig())
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	var jwtService *auth.JWTService
	if cfg.Auth.Enabled() {
		jwtConfig := auth.DefaultJWTConfig(cfg.Auth.JWTSecret)
		if cfg.Auth.Issuer != "" {
			jwtConfig.Issuer = cfg.Auth.Issuer
		}
		jwtService = auth.NewJWTService(jwtConfig)
	}

	if *issueToken != "" {
		if jwtService == nil {
			log.Fatal("auth is disabled: set SALESBI_AUTH_JWT_SECRET to issue tokens")
		}
		token, expiresAt, err := jwtService.GenerateAccessToken(*issueToken, []string{auth.ScopeReportsRead})
		if err != nil {
			log.Fatalw("failed to issue token", "error", err)
		}
		fmt.Println(token)
		log.Infow("token issued", "subject", *issueToken, "expires_at", expiresAt)
		return
	}

	ctx := context.Background()
	log.Infow("starting salesbi server", "version", version)

	// --- Database connection ---
	pool, err := postgres.NewPool(ctx, cfg.Database.PoolConfig())
	if err != nil {
		log.Fatalw("failed to connect to database", "error", err)
	}
	defer pool.Close()

	if err := postgres.CreateSchema(ctx, pool); err != nil {
		log.Fatalw("failed to create schema", "error", err)
	}
	log.Info("database connection established")

	txManager := postgres.NewTxManager(pool)
	codec, err := postgres.NewPayloadCodec(postgres.DefaultCompressThreshold)
	if err != nil {
		log.Fatalw("failed to create payload codec", "error", err)
	}

	edges, err := cfg.Pipeline.Edges()
	if err != nil {
		log.Fatalw("invalid bucket edges", "error", err)
	}

	// --- Router ---
	routerCfg := v1.RouterConfig{
		DB:        pool,
		PoolStats: func() any { return postgres.GetPoolStats(pool.Pool) },
		Version:   version,
		Logger:    log,
		Metrics:   metrics.New(),
		Reports:   reports.NewService(report_repo.NewReportRepo(txManager), edges),
		Runs:      run_repo.NewRunRepo(txManager, codec),
	}
	if jwtService != nil {
		routerCfg.JWTValidator = jwtService
	}
	router := v1.NewRouter(routerCfg)

	// --- HTTP Server ---
	addr := ":" + strconv.Itoa(cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start server in goroutine
	go func() {
		log.Infow("server starting", "addr", addr, "auth", cfg.Auth.Enabled())
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalw("server failed", "error", err)
		}
	}()

	// --- Graceful shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	log.Infow("shutting down server...", "signal", strings.ToUpper(sig.String()))

	shutdownTimeout := cfg.Server.ShutdownTimeout
	if shutdownTimeout <= 0 {
		shutdownTimeout = 30 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatalw("server forced to shutdown", "error", err)
	}

	log.Info("server stopped")
}
