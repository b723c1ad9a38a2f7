package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/sasha-s/go-deadlock"
	"go.uber.org/zap"

	"audit-chain/config"
	"audit-chain/db"
	"audit-chain/handlers"
	"audit-chain/ledger"
	"audit-chain/logger"
	"audit-chain/repository"
	"audit-chain/routers"
)

func main() {
	// Load config
	cfg, err := config.Load("config/config.yaml")
	if err != nil {
		fmt.Println("Config file error:", err)
		os.Exit(1)
	}

	if err := logger.InitLogger(cfg.Log.AppLogFile, cfg.Log.Level); err != nil {
		fmt.Println("Failed to initialize logger:", err)
		os.Exit(1)
	}
	defer logger.Logger.Sync()

	logger.Logger.Info("Starting audit chain server...")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Mining holds the ledger lock, so waiting on it is only suspicious past the mining timeout.
	// An unbounded search disables detection.
	deadlock.Opts.DeadlockTimeout = 0
	if cfg.Ledger.MiningTimeout > 0 {
		deadlock.Opts.DeadlockTimeout = 2 * cfg.Ledger.MiningTimeout
	}

	opts := []ledger.Option{}

	signer, err := newSigner(cfg.Signer)
	if err != nil {
		logger.Logger.Fatal("Failed to initialize signer", zap.Error(err))
	}
	opts = append(opts, ledger.WithSigner(signer))

	// Connect to LevelDB
	if cfg.LevelDB.Enabled {
		ldb, err := db.NewLevelDB(cfg.LevelDB.Path)
		if err != nil {
			logger.Logger.Fatal("Failed to open leveldb", zap.Error(err))
		}
		defer ldb.Close()
		opts = append(opts, ledger.WithRepository(repository.NewChainRepository(ldb)))
	} else {
		logger.Logger.Warn("LevelDB disabled, chain is kept in memory only")
	}

	l, err := ledger.New(ctx, ledger.Config{
		Difficulty:     cfg.Ledger.Difficulty,
		BlockThreshold: cfg.Ledger.BlockThreshold,
		IdleInterval:   cfg.Ledger.IdleInterval,
		MiningTimeout:  cfg.Ledger.MiningTimeout,
		NodeID:         cfg.Ledger.NodeID,
	}, opts...)
	if err != nil {
		logger.Logger.Fatal("Failed to initialize ledger", zap.Error(err))
	}
	go l.Run(ctx)

	h := handlers.NewHandler(l)

	r := mux.NewRouter()
	routers.RegisterRoutes(r, h)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Logger.Error("Server stopped", zap.Error(err))
			stop()
		}
	}()

	logger.Logger.Info("Server running on port", zap.Int("port", cfg.Server.Port))

	// Graceful shutdown
	<-ctx.Done()
	logger.Logger.Info("Shutdown signal received, exiting...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Logger.Warn("Graceful shutdown failed", zap.Error(err))
	}
}

func newSigner(cfg config.SignerConfig) (ledger.Signer, error) {
	switch cfg.Type {
	case "schnorr":
		s, err := ledger.NewSchnorrSigner(cfg.PrivateKey)
		if err != nil {
			return nil, err
		}
		logger.Logger.Info("Using schnorr transaction signer", zap.String("public_key", s.PublicKey()))
		return s, nil
	default:
		if cfg.Secret == "" {
			logger.Logger.Warn("HMAC signer secret is empty")
		}
		return ledger.NewHMACSigner(cfg.Secret), nil
	}
}
