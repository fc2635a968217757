package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"nftstake/config"
	"nftstake/core"
	"nftstake/observability/logging"
	"nftstake/observability/otel"
	"nftstake/rpc"
	"nftstake/storage"
	"nftstake/storage/journal"
)

const (
	genesisPathEnv = "NFTSTAKE_GENESIS"
	environmentEnv = "NFTSTAKE_ENV"
)

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	genesisFlag := flag.String("genesis", "", "Path to the genesis YAML (overrides NFTSTAKE_GENESIS and config GenesisFile)")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, *configFile, *genesisFlag); err != nil {
		slog.Error("nftstaked exited", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath, genesisOverride string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	env := strings.TrimSpace(os.Getenv(environmentEnv))
	if env == "" {
		env = cfg.Environment
	}
	level := slog.LevelInfo
	if cfg.Logging.Debug {
		level = slog.LevelDebug
	}
	logger := logging.New(logging.Options{
		Service:    "nftstaked",
		Env:        env,
		File:       cfg.Logging.File,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		Level:      level,
	})

	shutdown, err := otel.Init(ctx, otel.Config{
		ServiceName: "nftstaked",
		Environment: env,
		Endpoint:    cfg.Telemetry.Endpoint,
		Insecure:    cfg.Telemetry.Insecure,
		Headers:     otel.ParseHeaders(cfg.Telemetry.Headers),
		Metrics:     cfg.Telemetry.Metrics,
		Traces:      cfg.Telemetry.Traces,
	})
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(flushCtx); err != nil {
			logger.Warn("telemetry shutdown failed", slog.Any("error", err))
		}
	}()

	node, err := openNode(cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := node.Close(); err != nil {
			logger.Warn("close node", slog.Any("error", err))
		}
	}()

	if err := ensureGenesis(ctx, node, resolveGenesisPath(genesisOverride, cfg.GenesisFile, os.LookupEnv), logger); err != nil {
		return err
	}

	server, err := rpc.NewServer(node, rpc.ServerConfig{
		JWT:                rpc.JWTConfig{Secret: cfg.RPC.JWTSecret, Issuer: cfg.RPC.JWTIssuer},
		RateLimitPerMinute: cfg.RPC.RateLimitPerMinute,
		Burst:              cfg.RPC.Burst,
		AllowedOrigins:     cfg.RPC.AllowedOrigins,
		ReadTimeout:        time.Duration(cfg.RPC.ReadTimeoutSeconds) * time.Second,
		Logger:             logger,
	})
	if err != nil {
		return err
	}
	if cfg.RPC.JWTSecret == "" {
		logger.Warn("RPC bearer authentication disabled; mutations rely on signatures only")
	}
	err = server.Serve(ctx, cfg.RPCAddress)
	logger.Info("nftstaked stopped")
	return err
}

func openNode(cfg *config.Config, logger *slog.Logger) (*core.Node, error) {
	db, err := storage.Open(cfg.Backend, cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", cfg.Backend, err)
	}
	var j *journal.Journal
	if driver := strings.TrimSpace(cfg.Journal.Driver); driver != "" {
		j, err = journal.Open(driver, cfg.Journal.DSN)
		if err != nil {
			db.Close()
			return nil, err
		}
		logger.Info("event journal enabled", slog.String("driver", driver))
	}
	node, err := core.NewNode(db, core.Options{Journal: j, Logger: logger})
	if err != nil {
		if j != nil {
			_ = j.Close()
		}
		db.Close()
		return nil, err
	}
	return node, nil
}

func resolveGenesisPath(flagValue, configValue string, lookup func(string) (string, bool)) string {
	if trimmed := strings.TrimSpace(flagValue); trimmed != "" {
		return trimmed
	}
	if lookup != nil {
		if value, ok := lookup(genesisPathEnv); ok && strings.TrimSpace(value) != "" {
			return strings.TrimSpace(value)
		}
	}
	return strings.TrimSpace(configValue)
}

// ensureGenesis applies the genesis document on first start. A node whose
// store already holds genesis ignores the file.
func ensureGenesis(ctx context.Context, node *core.Node, path string, logger *slog.Logger) error {
	if node.Initialized() {
		logger.Info("genesis already applied; skipping genesis file")
		return nil
	}
	if path == "" {
		return errors.New("genesis file required for an uninitialised store")
	}
	g, err := config.LoadGenesis(path)
	if err != nil {
		return err
	}
	if err := node.ApplyGenesis(ctx, g); err != nil {
		return err
	}
	logger.Info("genesis loaded", slog.String("path", path))
	return nil
}
