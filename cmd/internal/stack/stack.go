// Package stack builds the pieces shared by the logbook binaries from a
// loaded configuration.
package stack

import (
	"context"
	"fmt"
	"log/slog"

	"logbook/config"
	"logbook/core/projection"
	"logbook/observability/logging"
	telemetry "logbook/observability/otel"
	"logbook/storage"
	"logbook/storage/sqldb"
)

// Logger sets up the process-wide structured logger.
func Logger(service string, cfg config.Config) (*slog.Logger, error) {
	level, err := cfg.Log.SlogLevel()
	if err != nil {
		return nil, err
	}
	return logging.SetupWithOptions(service, cfg.Env, logging.Options{
		Level:      level,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
	}), nil
}

// Telemetry initialises OTLP export as configured.
func Telemetry(ctx context.Context, service, instance string, cfg config.Config) (func(context.Context) error, error) {
	return telemetry.Init(ctx, telemetry.Config{
		ServiceName: service,
		Environment: cfg.Env,
		ServiceID:   instance,
		Endpoint:    cfg.Telemetry.OTLPEndpoint,
		Insecure:    cfg.Telemetry.Insecure,
		Headers:     telemetry.ParseHeaders(cfg.Telemetry.OTLPHeaders),
		Metrics:     cfg.Telemetry.Metrics,
		Traces:      cfg.Telemetry.Traces,
		SampleRatio: cfg.Telemetry.SampleRatio,
	})
}

// OpenStore opens the configured entity store backend.
func OpenStore(cfg config.StorageConfig) (storage.Database, error) {
	switch cfg.Backend {
	case config.BackendSQLite:
		dsn, err := sqldb.FileDSN(cfg.Path)
		if err != nil {
			return nil, err
		}
		return sqldb.Open("sqlite", dsn)
	case config.BackendPostgres:
		return sqldb.Open("postgres", cfg.DSN)
	default:
		return storage.OpenKV(cfg.Backend, cfg.Path)
	}
}

// DonationIDs parses the configured donation keying mode.
func DonationIDs(cfg config.Config) (projection.DonationIDMode, error) {
	mode, err := projection.ParseDonationIDMode(cfg.Projection.DonationIDs)
	if err != nil {
		return "", fmt.Errorf("projection: %w", err)
	}
	return mode, nil
}
