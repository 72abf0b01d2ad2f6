package config

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration so both TOML and YAML accept strings such as
// "5s" or "1m30s".
type Duration struct {
	time.Duration
}

// UnmarshalText is used by the TOML decoder.
func (d *Duration) UnmarshalText(text []byte) error {
	raw := string(text)
	if raw == "" {
		d.Duration = 0
		return nil
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", raw, err)
	}
	d.Duration = parsed
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// UnmarshalYAML parses human readable duration strings.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	if value == nil {
		return nil
	}
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("duration must be string")
	}
	return d.UnmarshalText([]byte(value.Value))
}

// ChainConfig points the indexer at a node and a contract.
type ChainConfig struct {
	RPCURL        string   `toml:"rpc_url" yaml:"rpc_url"`
	Contract      string   `toml:"contract" yaml:"contract"`
	StartBlock    uint64   `toml:"start_block" yaml:"start_block"`
	Confirmations uint64   `toml:"confirmations" yaml:"confirmations"`
	BatchBlocks   uint64   `toml:"batch_blocks" yaml:"batch_blocks"`
	PollInterval  Duration `toml:"poll_interval" yaml:"poll_interval"`
	RPS           float64  `toml:"rps" yaml:"rps"`
}

// StorageConfig selects the entity store backend. Path is used by the
// embedded backends, DSN by postgres.
type StorageConfig struct {
	Backend string `toml:"backend" yaml:"backend"`
	Path    string `toml:"path" yaml:"path"`
	DSN     string `toml:"dsn" yaml:"dsn"`
}

type ProjectionConfig struct {
	// DonationIDs is "tx_log" (default) or "tx".
	DonationIDs string `toml:"donation_ids" yaml:"donation_ids"`
}

// TelemetryConfig controls the metrics listener and trace export.
type TelemetryConfig struct {
	MetricsListen string  `toml:"metrics_listen" yaml:"metrics_listen"`
	OTLPEndpoint  string  `toml:"otlp_endpoint" yaml:"otlp_endpoint"`
	OTLPHeaders   string  `toml:"otlp_headers" yaml:"otlp_headers"`
	Insecure      bool    `toml:"insecure" yaml:"insecure"`
	Traces        bool    `toml:"traces" yaml:"traces"`
	Metrics       bool    `toml:"metrics" yaml:"metrics"`
	SampleRatio   float64 `toml:"sample_ratio" yaml:"sample_ratio"`
}

type LogConfig struct {
	Level      string `toml:"level" yaml:"level"`
	File       string `toml:"file" yaml:"file"`
	MaxSizeMB  int    `toml:"max_size_mb" yaml:"max_size_mb"`
	MaxBackups int    `toml:"max_backups" yaml:"max_backups"`
}
