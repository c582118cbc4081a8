package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/iudanet/gophauth/internal/config"
	"github.com/iudanet/gophauth/internal/crypto"
	"github.com/iudanet/gophauth/internal/logger"
	"github.com/iudanet/gophauth/internal/metrics"
	"github.com/iudanet/gophauth/internal/server/auth"
	"github.com/iudanet/gophauth/internal/server/handlers"
	"github.com/iudanet/gophauth/internal/server/session"
	"github.com/iudanet/gophauth/internal/server/storage"
	"github.com/iudanet/gophauth/internal/server/storage/boltdb"
	"github.com/iudanet/gophauth/internal/server/storage/sqlite"
	"github.com/iudanet/gophauth/internal/server/token"
	"github.com/iudanet/gophauth/internal/server/worker/sweep"
)

var (
	// Version information set via ldflags during build
	Version   = "dev"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

const shutdownTimeout = 30 * time.Second

// ledger объединяет интерфейсы, которые должен реализовать backend цепочек
type ledger interface {
	storage.ChainLedger
	storage.ExpiredNodeSweeper
	handlers.Pinger
}

func main() {
	// Parse flags
	showVersion := flag.Bool("version", false, "Show version information")
	envFile := flag.String("env-file", ".env", "Path to optional .env file")
	flag.Parse()

	// Show version and exit if requested
	if *showVersion {
		printVersion()
		os.Exit(0)
	}

	if err := run(*envFile); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(envFile string) error {
	cfg, err := config.LoadFile(envFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log, err := logger.Setup(os.Stdout, cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return err
	}
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info("Starting GophAuth server",
		slog.String("version", Version),
		slog.String("addr", cfg.HTTPAddr),
		slog.String("ledger_backend", cfg.LedgerBackend))

	// Пользователи всегда в sqlite
	users, err := sqlite.New(ctx, cfg.DatabasePath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer func() {
		if err := users.Close(); err != nil {
			log.Error("Failed to close database", slog.Any("error", err))
		}
	}()

	var chains ledger = users
	pingers := []handlers.Pinger{users}
	if cfg.LedgerBackend == config.BackendBolt {
		bolt, err := boltdb.New(ctx, cfg.BoltPath)
		if err != nil {
			return fmt.Errorf("failed to open bolt ledger: %w", err)
		}
		defer func() {
			if err := bolt.Close(); err != nil {
				log.Error("Failed to close bolt ledger", slog.Any("error", err))
			}
		}()
		chains = bolt
		pingers = append(pingers, bolt)
	}

	codec, err := token.NewCodec(token.Config{
		Issuer:   cfg.JWTIssuer,
		Audience: cfg.JWTAudience,
		Access: token.KeyConfig{
			Secret: []byte(cfg.JWTAccessSecret),
			TTL:    cfg.AccessTTL,
		},
		Refresh: token.KeyConfig{
			Secret: []byte(cfg.JWTRefreshSecret),
			TTL:    cfg.RefreshTTL,
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create token codec: %w", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	collector := metrics.NewCollector(reg)

	revoker := session.NewRevoker(chains, log, session.RevokerConfig{
		QueueSize: cfg.RevokeQueueSize,
		Workers:   cfg.RevokeWorkers,
		Timeout:   cfg.RevokeTimeoutDur,
	}, session.WithRevokerRecorder(collector))
	revoker.Start()

	engine := session.NewEngine(codec, chains, revoker, log, session.WithRecorder(collector))

	hasher, err := crypto.NewPasswordHasher(crypto.Params{
		Memory:  uint32(cfg.Argon2MemoryKB),
		Time:    uint32(cfg.Argon2Time),
		Threads: uint8(cfg.Argon2Threads),
	})
	if err != nil {
		return fmt.Errorf("failed to create password hasher: %w", err)
	}

	authService, err := auth.NewService(users, hasher, engine, log, auth.WithRecorder(collector))
	if err != nil {
		return fmt.Errorf("failed to create auth service: %w", err)
	}

	router := handlers.NewRouter(handlers.RouterConfig{
		Logger:   log,
		Verifier: engine,
		Auth:     handlers.NewAuthHandler(log, authService),
		Health:   handlers.NewHealthHandler(log, Version, pingers...),
		Metrics:  metrics.Handler(reg),
		Recorder: collector,
	})

	sweeper := sweep.NewJob(chains, log, sweep.WithRecorder(collector))
	sweepDone := make(chan struct{})
	go func() {
		defer close(sweepDone)
		sweeper.Start(ctx, cfg.SweepIntervalDur)
	}()

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info("HTTP server listening", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	var listenErr error
	select {
	case <-ctx.Done():
		log.Info("Shutting down server")
	case listenErr = <-serveErr:
		log.Error("HTTP server failed", slog.Any("error", listenErr))
		stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown failed", slog.Any("error", err))
	}

	// Дожидаемся фоновых отзывов до закрытия хранилища
	if err := revoker.Stop(shutdownCtx); err != nil {
		log.Error("Revoker did not drain in time", slog.Any("error", err))
	}
	<-sweepDone

	if listenErr != nil {
		return fmt.Errorf("http server: %w", listenErr)
	}

	log.Info("Server stopped")
	return nil
}

func printVersion() {
	fmt.Printf("GophAuth Server\n")
	fmt.Printf("Version:    %s\n", Version)
	fmt.Printf("Build Date: %s\n", BuildDate)
	fmt.Printf("Git Commit: %s\n", GitCommit)
}
