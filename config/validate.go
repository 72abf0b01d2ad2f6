package config

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// Storage backends.
const (
	BackendMemory   = "memory"
	BackendLevelDB  = "leveldb"
	BackendBolt     = "bolt"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
)

// Validate checks every section that does not depend on how the config is
// used. Chain settings are checked separately by ValidateChain.
func (c Config) Validate() error {
	switch c.Storage.Backend {
	case BackendMemory:
	case BackendLevelDB, BackendBolt, BackendSQLite:
		if strings.TrimSpace(c.Storage.Path) == "" {
			return fmt.Errorf("storage: path required for %s backend", c.Storage.Backend)
		}
	case BackendPostgres:
		if strings.TrimSpace(c.Storage.DSN) == "" {
			return fmt.Errorf("storage: dsn required for postgres backend")
		}
	default:
		return fmt.Errorf("storage: unknown backend %q", c.Storage.Backend)
	}
	switch c.Projection.DonationIDs {
	case "tx_log", "tx":
	default:
		return fmt.Errorf("projection: donation_ids must be tx_log or tx, got %q", c.Projection.DonationIDs)
	}
	if c.Chain.Contract != "" && !common.IsHexAddress(c.Chain.Contract) {
		return fmt.Errorf("chain: contract %q is not an address", c.Chain.Contract)
	}
	if c.Chain.RPS < 0 {
		return fmt.Errorf("chain: rps must not be negative")
	}
	if c.Telemetry.SampleRatio < 0 || c.Telemetry.SampleRatio > 1 {
		return fmt.Errorf("telemetry: sample_ratio must be within [0,1]")
	}
	if _, err := c.Log.SlogLevel(); err != nil {
		return err
	}
	return nil
}

// ValidateChain checks the settings needed to follow a live node.
func (c Config) ValidateChain() error {
	if strings.TrimSpace(c.Chain.RPCURL) == "" {
		return fmt.Errorf("chain: rpc_url required")
	}
	if c.Chain.Contract == "" {
		return fmt.Errorf("chain: contract required")
	}
	return nil
}

// ContractAddress returns the configured contract.
func (c Config) ContractAddress() common.Address {
	return common.HexToAddress(c.Chain.Contract)
}

// SlogLevel parses the configured log level.
func (l LogConfig) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(l.Level)); err != nil {
		return level, fmt.Errorf("log: %w", err)
	}
	return level, nil
}
