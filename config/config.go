package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"nftstake/storage"
)

// Config is the node runtime configuration loaded from TOML.
type Config struct {
	RPCAddress  string    `toml:"RPCAddress"`
	DataDir     string    `toml:"DataDir"`
	Backend     string    `toml:"Backend"`
	GenesisFile string    `toml:"GenesisFile"`
	Environment string    `toml:"Environment"`
	Journal     Journal   `toml:"Journal"`
	Logging     Logging   `toml:"Logging"`
	Telemetry   Telemetry `toml:"Telemetry"`
	RPC         RPC       `toml:"RPC"`
}

// Journal selects the SQL database that records committed events. An empty
// driver disables the journal.
type Journal struct {
	Driver string `toml:"Driver"`
	DSN    string `toml:"DSN"`
}

// Logging configures the optional rotating log file.
type Logging struct {
	File       string `toml:"File"`
	MaxSizeMB  int    `toml:"MaxSizeMB"`
	MaxBackups int    `toml:"MaxBackups"`
	Debug      bool   `toml:"Debug"`
}

// Telemetry configures OTLP export.
type Telemetry struct {
	Endpoint string `toml:"Endpoint"`
	Insecure bool   `toml:"Insecure"`
	Headers  string `toml:"Headers"`
	Metrics  bool   `toml:"Metrics"`
	Traces   bool   `toml:"Traces"`
}

// RPC configures the JSON-RPC server guards.
type RPC struct {
	JWTSecret          string   `toml:"JWTSecret"`
	JWTSecretEnv       string   `toml:"JWTSecretEnv"`
	JWTIssuer          string   `toml:"JWTIssuer"`
	RateLimitPerMinute int      `toml:"RateLimitPerMinute"`
	Burst              int      `toml:"Burst"`
	AllowedOrigins     []string `toml:"AllowedOrigins"`
	ReadTimeoutSeconds int      `toml:"ReadTimeoutSeconds"`
}

// Default returns a configuration suitable for a local single node.
func Default() *Config {
	return &Config{
		RPCAddress:  ":8080",
		DataDir:     "./nftstake-data",
		Backend:     storage.BackendLevelDB,
		GenesisFile: "genesis.yaml",
		Environment: "local",
		Journal:     Journal{Driver: "sqlite", DSN: "file:nftstake-journal.db"},
		RPC: RPC{
			RateLimitPerMinute: 600,
			Burst:              60,
			AllowedOrigins:     []string{},
			ReadTimeoutSeconds: 10,
		},
	}
}

// Load loads the configuration from path. A missing file is created with
// defaults.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		cfg := Default()
		if err := persist(path, cfg); err != nil {
			return nil, err
		}
		return cfg, nil
	} else if err != nil {
		return nil, err
	}

	cfg := Default()
	meta, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, fmt.Errorf("config: decode %s: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("config: unknown key %q in %s", undecoded[0].String(), path)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if strings.TrimSpace(c.Backend) == "" {
		c.Backend = storage.BackendLevelDB
	}
	if c.RPC.AllowedOrigins == nil {
		c.RPC.AllowedOrigins = []string{}
	}
	if c.RPC.ReadTimeoutSeconds <= 0 {
		c.RPC.ReadTimeoutSeconds = 10
	}
	if env := strings.TrimSpace(c.RPC.JWTSecretEnv); env != "" && c.RPC.JWTSecret == "" {
		c.RPC.JWTSecret = os.Getenv(env)
	}
}

// Validate checks the configuration for inconsistencies.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.RPCAddress) == "" {
		return errors.New("config: RPCAddress required")
	}
	switch strings.ToLower(c.Backend) {
	case storage.BackendLevelDB, storage.BackendBolt, storage.BackendMemory:
	default:
		return fmt.Errorf("config: unsupported Backend %q", c.Backend)
	}
	if c.Backend != storage.BackendMemory && strings.TrimSpace(c.DataDir) == "" {
		return errors.New("config: DataDir required for persistent backends")
	}
	if c.Journal.Driver != "" && strings.TrimSpace(c.Journal.DSN) == "" {
		return errors.New("config: Journal.DSN required when a driver is set")
	}
	if c.RPC.RateLimitPerMinute < 0 || c.RPC.Burst < 0 {
		return errors.New("config: RPC rate limits must not be negative")
	}
	if c.RPC.JWTIssuer != "" && c.RPC.JWTSecret == "" {
		return errors.New("config: RPC.JWTIssuer requires a JWT secret")
	}
	return nil
}

func persist(path string, cfg *Config) error {
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
