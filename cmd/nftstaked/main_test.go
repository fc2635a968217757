package main

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"nftstake/config"
	"nftstake/crypto"
	"nftstake/storage"
)

const genesisYAML = `collection: punks
vault: %VAULT%
reward_token:
  symbol: RWD
  owner: %ADMIN%
initial_rate: "3"
unbonding_delay: 24h
time_unit: 1s
genesis_time: 1000
admins:
  - %ADMIN%
mints:
  - owner: %ADMIN%
    token_id: 1
`

func writeGenesis(t *testing.T) string {
	t.Helper()
	vault := crypto.FormatRaw([20]byte{0xaa})
	admin := crypto.FormatRaw([20]byte{0xad})
	body := strings.NewReplacer("%VAULT%", vault, "%ADMIN%", admin).Replace(genesisYAML)
	path := filepath.Join(t.TempDir(), "genesis.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestResolveGenesisPath(t *testing.T) {
	lookup := func(key string) (string, bool) {
		if key == genesisPathEnv {
			return "/env/genesis.yaml", true
		}
		return "", false
	}
	require.Equal(t, "/flag.yaml", resolveGenesisPath(" /flag.yaml ", "/cfg.yaml", lookup))
	require.Equal(t, "/env/genesis.yaml", resolveGenesisPath("", "/cfg.yaml", lookup))
	require.Equal(t, "/cfg.yaml", resolveGenesisPath("", "/cfg.yaml", nil))
}

func TestOpenNodeAppliesGenesisOnce(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := config.Default()
	cfg.Backend = storage.BackendBolt
	cfg.DataDir = t.TempDir()
	cfg.Journal.Driver = ""
	genesisPath := writeGenesis(t)

	node, err := openNode(cfg, logger)
	require.NoError(t, err)
	require.Error(t, ensureGenesis(context.Background(), node, "", logger))
	require.NoError(t, ensureGenesis(context.Background(), node, genesisPath, logger))
	owner, err := node.OwnerOf(1)
	require.NoError(t, err)
	require.Equal(t, [20]byte{0xad}, owner)
	require.NoError(t, node.Close())

	reopened, err := openNode(cfg, logger)
	require.NoError(t, err)
	defer reopened.Close()
	require.True(t, reopened.Initialized())
	require.NoError(t, ensureGenesis(context.Background(), reopened, "", logger))
	rates, err := reopened.Rates()
	require.NoError(t, err)
	require.Len(t, rates, 1)
}
