package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"nftstake/storage"
)

func TestLoadCreatesDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "node", "config.toml")
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, ":8080", cfg.RPCAddress)
	require.Equal(t, storage.BackendLevelDB, cfg.Backend)

	_, err = os.Stat(path)
	require.NoError(t, err)

	reloaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, cfg.DataDir, reloaded.DataDir)
	require.Equal(t, cfg.Journal, reloaded.Journal)
}

func TestLoadParsesSections(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	t.Setenv("NFTSTAKE_JWT", "top-secret")
	require.NoError(t, os.WriteFile(path, []byte(`
RPCAddress = "127.0.0.1:9090"
DataDir = "/var/lib/nftstake"
Backend = "bolt"

[Journal]
Driver = "postgres"
DSN = "postgres://nftstake@localhost/nftstake"

[Logging]
File = "/var/log/nftstake.log"

[Telemetry]
Endpoint = "otel:4318"
Traces = true

[RPC]
JWTSecretEnv = "NFTSTAKE_JWT"
JWTIssuer = "ops"
RateLimitPerMinute = 120
Burst = 10
AllowedOrigins = ["https://app.example"]
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, storage.BackendBolt, cfg.Backend)
	require.Equal(t, "postgres", cfg.Journal.Driver)
	require.Equal(t, "/var/log/nftstake.log", cfg.Logging.File)
	require.True(t, cfg.Telemetry.Traces)
	require.Equal(t, "top-secret", cfg.RPC.JWTSecret)
	require.Equal(t, 120, cfg.RPC.RateLimitPerMinute)
	require.Equal(t, []string{"https://app.example"}, cfg.RPC.AllowedOrigins)
}

func TestLoadRejectsInvalid(t *testing.T) {
	cases := map[string]string{
		"unknown key":     "RPCAddress = \":1\"\nBogus = 1\n",
		"bad backend":     "Backend = \"rocksdb\"\n",
		"journal dsn":     "[Journal]\nDriver = \"sqlite\"\nDSN = \"\"\n",
		"issuer no key":   "[RPC]\nJWTIssuer = \"ops\"\n",
		"negative limits": "[RPC]\nBurst = -1\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.toml")
			require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
			_, err := Load(path)
			require.Error(t, err)
		})
	}
}
