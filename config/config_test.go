package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
	return path
}

func TestLoadTOML(t *testing.T) {
	path := writeFile(t, "logbook.toml", `
env = "staging"

[chain]
rpc_url = "http://localhost:8545"
contract = "0x00000000000000000000000000000000000000c0"
start_block = 1200
confirmations = 12
poll_interval = "2s"
rps = 10

[storage]
backend = "LevelDB"
path = "./data/entities"

[projection]
donation_ids = "tx"

[log]
level = "debug"
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "staging", cfg.Env)
	require.Equal(t, uint64(1200), cfg.Chain.StartBlock)
	require.Equal(t, 2*time.Second, cfg.Chain.PollInterval.Duration)
	require.Equal(t, uint64(2000), cfg.Chain.BatchBlocks)
	require.Equal(t, BackendLevelDB, cfg.Storage.Backend)
	require.Equal(t, "tx", cfg.Projection.DonationIDs)
	require.NoError(t, cfg.ValidateChain())
	require.Equal(t, "0x00000000000000000000000000000000000000C0", cfg.ContractAddress().Hex())
}

func TestLoadYAML(t *testing.T) {
	path := writeFile(t, "logbook.yaml", `
chain:
  rpc_url: http://localhost:8545
  contract: "0x00000000000000000000000000000000000000c0"
  poll_interval: 1m
storage:
  backend: sqlite
  path: /tmp/logbook.db
telemetry:
  metrics_listen: ":9102"
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, time.Minute, cfg.Chain.PollInterval.Duration)
	require.Equal(t, BackendSQLite, cfg.Storage.Backend)
	require.Equal(t, ":9102", cfg.Telemetry.MetricsListen)
	require.Equal(t, "dev", cfg.Env)
	require.Equal(t, "tx_log", cfg.Projection.DonationIDs)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv(EnvVar, "prod")
	cfg, err := Load(writeFile(t, "logbook.toml", `env = "dev"`))
	require.NoError(t, err)
	require.Equal(t, "prod", cfg.Env)
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	_, err := Load(writeFile(t, "logbook.toml", "[chain]\nrpc = \"x\"\n"))
	require.ErrorContains(t, err, "chain.rpc")

	_, err = Load(writeFile(t, "logbook.yml", "storage:\n  engine: bolt\n"))
	require.Error(t, err)
}

func TestLoadValidation(t *testing.T) {
	cases := map[string]string{
		"backend":      "[storage]\nbackend = \"redis\"\n",
		"path":         "[storage]\nbackend = \"bolt\"\n",
		"dsn":          "[storage]\nbackend = \"postgres\"\n",
		"donation ids": "[projection]\ndonation_ids = \"block\"\n",
		"contract":     "[chain]\ncontract = \"not-an-address\"\n",
		"level":        "[log]\nlevel = \"loud\"\n",
		"duration":     "[chain]\npoll_interval = \"soon\"\n",
	}
	for name, contents := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeFile(t, "logbook.toml", contents))
			require.Error(t, err)
		})
	}
}

func TestValidateChainRequiresEndpoint(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	require.Error(t, cfg.ValidateChain())
}

func TestPersistRoundTrip(t *testing.T) {
	cfg := Default()
	cfg.Chain.RPCURL = "http://node:8545"
	cfg.Chain.Contract = "0x00000000000000000000000000000000000000c0"
	path := filepath.Join(t.TempDir(), "nested", "logbook.toml")
	require.NoError(t, Persist(path, cfg))

	loaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, cfg, loaded)
}

func TestLoadUnsupportedExtension(t *testing.T) {
	_, err := Load(writeFile(t, "logbook.json", "{}"))
	require.ErrorContains(t, err, "unsupported extension")
}
