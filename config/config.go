package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// EnvVar overrides the environment name reported in logs and traces.
const EnvVar = "LOGBOOK_ENV"

type Config struct {
	Env        string           `toml:"env" yaml:"env"`
	Chain      ChainConfig      `toml:"chain" yaml:"chain"`
	Storage    StorageConfig    `toml:"storage" yaml:"storage"`
	Projection ProjectionConfig `toml:"projection" yaml:"projection"`
	Telemetry  TelemetryConfig  `toml:"telemetry" yaml:"telemetry"`
	Log        LogConfig        `toml:"log" yaml:"log"`
}

// Default returns a configuration that projects into memory.
func Default() Config {
	cfg := Config{}
	applyDefaults(&cfg)
	return cfg
}

// Load reads a TOML or YAML file, chosen by extension, applies defaults and
// validates the result. Unknown keys are rejected.
func Load(path string) (Config, error) {
	cfg := Config{}
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return cfg, fmt.Errorf("config path required")
	}
	clean := filepath.Clean(trimmed)
	switch strings.ToLower(filepath.Ext(clean)) {
	case ".toml":
		meta, err := toml.DecodeFile(clean, &cfg)
		if err != nil {
			return cfg, fmt.Errorf("decode config: %w", err)
		}
		if undecoded := meta.Undecoded(); len(undecoded) > 0 {
			keys := make([]string, 0, len(undecoded))
			for _, key := range undecoded {
				keys = append(keys, key.String())
			}
			sort.Strings(keys)
			return cfg, fmt.Errorf("config %s: unknown keys %s", clean, strings.Join(keys, ", "))
		}
	case ".yaml", ".yml":
		file, err := os.Open(clean)
		if err != nil {
			return cfg, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()
		dec := yaml.NewDecoder(file)
		dec.KnownFields(true)
		if err := dec.Decode(&cfg); err != nil {
			return cfg, fmt.Errorf("decode config: %w", err)
		}
	default:
		return cfg, fmt.Errorf("config %s: unsupported extension", clean)
	}

	if env := strings.TrimSpace(os.Getenv(EnvVar)); env != "" {
		cfg.Env = env
	}
	applyDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Env == "" {
		cfg.Env = "dev"
	}
	if cfg.Chain.BatchBlocks == 0 {
		cfg.Chain.BatchBlocks = 2000
	}
	if cfg.Chain.PollInterval.Duration == 0 {
		cfg.Chain.PollInterval.Duration = 5 * time.Second
	}
	cfg.Storage.Backend = strings.ToLower(strings.TrimSpace(cfg.Storage.Backend))
	if cfg.Storage.Backend == "" {
		cfg.Storage.Backend = BackendMemory
	}
	if cfg.Projection.DonationIDs == "" {
		cfg.Projection.DonationIDs = "tx_log"
	}
	if cfg.Telemetry.SampleRatio == 0 {
		cfg.Telemetry.SampleRatio = 1
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.MaxSizeMB == 0 {
		cfg.Log.MaxSizeMB = 100
	}
	if cfg.Log.MaxBackups == 0 {
		cfg.Log.MaxBackups = 5
	}
}

// Persist writes cfg as TOML, creating parent directories as needed.
func Persist(path string, cfg Config) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}
