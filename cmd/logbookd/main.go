package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"logbook/chain"
	"logbook/cmd/internal/stack"
	"logbook/config"
	"logbook/core/projection"
	"logbook/observability/logging"
	"logbook/observability/metrics"
	"logbook/storage/entitystore"
)

const service = "logbookd"

func main() {
	var cfgPath string
	flag.StringVar(&cfgPath, "config", "logbook.toml", "path to logbookd configuration file (.toml or .yaml)")
	flag.Parse()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("logbookd: load config: %v", err)
	}
	if err := cfg.ValidateChain(); err != nil {
		log.Fatalf("logbookd: %v", err)
	}
	logger, err := stack.Logger(service, cfg)
	if err != nil {
		log.Fatalf("logbookd: configure logging: %v", err)
	}
	runID := uuid.NewString()
	logger = logger.With(slog.String("run_id", runID))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, err := stack.Telemetry(ctx, service, runID, cfg)
	if err != nil {
		log.Fatalf("logbookd: init telemetry: %v", err)
	}

	err = run(ctx, cfg, logger)
	if shutdownErr := shutdownTelemetry(context.Background()); shutdownErr != nil {
		logger.Warn("telemetry shutdown failed", slog.Any("error", shutdownErr))
	}
	if err != nil {
		logger.Error("indexer stopped", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("indexer stopped")
}

func run(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	db, err := stack.OpenStore(cfg.Storage)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer db.Close()
	store := entitystore.New(db)

	projectionMetrics := metrics.NewProjection()

	client, err := chain.Dial(ctx, cfg.Chain.RPCURL)
	if err != nil {
		return err
	}
	defer client.Close()

	reader, err := chain.NewEVMReader(client, logger, projectionMetrics)
	if err != nil {
		return err
	}
	source, err := chain.NewSource(client, chain.SourceConfig{
		Contract:      cfg.ContractAddress(),
		Confirmations: cfg.Chain.Confirmations,
		BatchBlocks:   cfg.Chain.BatchBlocks,
		RPS:           cfg.Chain.RPS,
		Logger:        logger,
	})
	if err != nil {
		return err
	}
	mode, err := stack.DonationIDs(cfg)
	if err != nil {
		return err
	}
	dispatcher, err := projection.New(projection.Config{
		Store:       store,
		Reader:      reader,
		Logger:      logger,
		Observer:    projectionMetrics,
		DonationIDs: mode,
	})
	if err != nil {
		return err
	}
	runner, err := projection.NewRunner(projection.RunnerConfig{
		Dispatcher:   dispatcher,
		Store:        store,
		Source:       source,
		StartBlock:   cfg.Chain.StartBlock,
		PollInterval: cfg.Chain.PollInterval.Duration,
		Logger:       logger,
		OnCheckpoint: projectionMetrics.SetLastBlock,
	})
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var server *http.Server
	serverErr := make(chan error, 1)
	if cfg.Telemetry.MetricsListen != "" {
		server = &http.Server{
			Addr:              cfg.Telemetry.MetricsListen,
			Handler:           newRouter(projectionMetrics),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				serverErr <- err
				cancel()
			}
		}()
		logger.Info("metrics listening", slog.String("addr", cfg.Telemetry.MetricsListen))
	}

	logger.Info("indexer starting",
		logging.Endpoint("rpc", cfg.Chain.RPCURL),
		slog.String("contract", cfg.Chain.Contract),
		slog.String("storage", cfg.Storage.Backend),
		slog.Uint64("start_block", cfg.Chain.StartBlock),
	)
	err = runner.Run(ctx)

	if server != nil {
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancelShutdown()
		if shutdownErr := server.Shutdown(shutdownCtx); shutdownErr != nil {
			logger.Warn("metrics server shutdown failed", slog.Any("error", shutdownErr))
		}
	}
	select {
	case listenErr := <-serverErr:
		return fmt.Errorf("metrics server: %w", listenErr)
	default:
	}
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
