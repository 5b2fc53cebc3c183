package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/G9000/argenta-finance-sub001/pkg/app/httpserver"
	"github.com/G9000/argenta-finance-sub001/pkg/config"
	"github.com/G9000/argenta-finance-sub001/pkg/engine"
	"github.com/G9000/argenta-finance-sub001/pkg/ethereum"
)

var configPath = flag.String("config", "config.yaml", "Path to configuration file")

func main() {
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := config.NewLogger(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("Starting batch depositor",
		zap.Int("chains", len(cfg.Chains)),
		zap.Int("deposits", len(cfg.Deposits)))

	registry, err := config.NewRegistry(cfg.Chains)
	if err != nil {
		logger.Fatal("Invalid chain configuration", zap.Error(err))
	}

	wallet, err := ethereum.NewClient(cfg.Chains, cfg.Operator.PrivateKey, logger)
	if err != nil {
		logger.Fatal("Failed to initialize wallet client", zap.Error(err))
	}
	defer wallet.Close()

	eng := engine.New(wallet, wallet, wallet, registry, engine.BatchConfig{
		Timeout:             cfg.Batch.Timeout,
		ConfirmationTimeout: cfg.Batch.ConfirmationTimeout,
		RetryAttempts:       cfg.Batch.RetryAttempts,
		RetryDelay:          cfg.Batch.RetryDelay,
		ApproveUnlimited:    cfg.Batch.ApproveUnlimited,
	}, logger)
	subscribeProgressLogging(eng, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Ops surface: liveness and metrics while the batch runs.
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	if cfg.Monitoring.Enabled {
		r.Handle("/metrics", promhttp.Handler())
	}

	srv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler: r,
	}
	serverDone := make(chan error, 1)
	go func() {
		serverDone <- httpserver.ServeAndWait(ctx, logger, srv, cfg.Server.ShutdownTimeout)
	}()

	amounts := make([]engine.ChainAmount, 0, len(cfg.Deposits))
	for _, d := range cfg.Deposits {
		amounts = append(amounts, engine.ChainAmount{ChainID: d.ChainID, Amount: d.Amount})
	}

	results, err := eng.ExecuteBatch(ctx, amounts)
	if err != nil {
		logger.Fatal("Batch rejected", zap.Error(err))
	}

	failures := 0
	for _, res := range results {
		if res.Status != engine.StatusSuccess {
			failures++
		}
		logger.Info("Chain result",
			zap.Uint64("chain_id", res.ChainID),
			zap.String("status", string(res.Status)),
			zap.String("approval_tx", res.ApprovalTxHash.Hex()),
			zap.String("deposit_tx", res.DepositTxHash.Hex()))
	}

	stop()
	if err := <-serverDone; err != nil {
		logger.Warn("Ops server exited with error", zap.Error(err))
	}

	if failures > 0 {
		logger.Error("Batch finished with failures", zap.Int("failed", failures))
		os.Exit(1)
	}
	logger.Info("All deposits completed")
}

// subscribeProgressLogging mirrors the engine's event stream into the log so
// batch progress is visible without a UI attached.
func subscribeProgressLogging(eng *engine.Engine, logger *zap.Logger) {
	eng.On(engine.EventChainStarted, func(payload any) {
		if ev, ok := payload.(engine.ChainStartedEvent); ok {
			logger.Info("Chain started", zap.Uint64("chain_id", ev.ChainID), zap.Int("index", ev.Index))
		}
	})
	eng.On(engine.EventStepStarted, func(payload any) {
		if ev, ok := payload.(engine.StepStartedEvent); ok {
			logger.Info("Step started",
				zap.Uint64("chain_id", ev.ChainID),
				zap.String("step", string(ev.Step)),
				zap.Int("step_index", ev.StepIndex),
				zap.Int("step_total", ev.StepTotal))
		}
	})
	eng.On(engine.EventTransactionSubmitted, func(payload any) {
		if ev, ok := payload.(engine.TransactionSubmittedEvent); ok {
			logger.Info("Transaction submitted",
				zap.Uint64("chain_id", ev.ChainID),
				zap.String("type", string(ev.Type)),
				zap.String("tx_hash", ev.TxHash))
		}
	})
	eng.On(engine.EventProgressUpdated, func(payload any) {
		if ev, ok := payload.(engine.ProgressUpdatedEvent); ok {
			logger.Info("Batch progress",
				zap.Int("completed", ev.Completed),
				zap.Int("total", ev.Total),
				zap.Int("percentage", ev.Percentage))
		}
	})
}
