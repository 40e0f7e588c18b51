package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"sharepool/cmd/internal/passphrase"
	"sharepool/config"
	"sharepool/core"
	"sharepool/core/events"
	"sharepool/indexer"
	"sharepool/observability"
	"sharepool/observability/logging"
	"sharepool/observability/otel"
	"sharepool/rpc"
	"sharepool/storage"
)

const (
	issuerPassEnv = "SHAREPOOL_ISSUER_PASS"
	envVar        = "SHAREPOOL_ENV"
	serviceName   = "poold"
)

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file (.toml, .yaml or .yml)")
	flag.Parse()

	if err := run(*configFile); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(configFile string) error {
	passSource := passphrase.NewSource(issuerPassEnv, "issuer keystore")
	pass, err := passSource.Get()
	if err != nil {
		return err
	}
	cfg, err := config.Load(configFile, pass)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	env := strings.TrimSpace(os.Getenv(envVar))
	if env == "" {
		env = cfg.Logging.Environment
	}
	logger := logging.Setup(serviceName, env, logging.Options{
		File:       cfg.Logging.File,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		Level:      logging.ParseLevel(cfg.Logging.Level),
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, err := otel.Init(ctx, otel.Config{
		ServiceName: serviceName,
		Environment: env,
		Endpoint:    cfg.Telemetry.Endpoint,
		Insecure:    cfg.Telemetry.Insecure,
		Headers:     otel.ParseHeaders(cfg.Telemetry.Headers),
		Traces:      cfg.Telemetry.Traces,
		Metrics:     cfg.Telemetry.Metrics,
	})
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	if cfg.Telemetry.Endpoint != "" {
		logger.Info("telemetry exporter configured",
			slog.String("endpoint", cfg.Telemetry.Endpoint),
			logging.MaskField("headers", cfg.Telemetry.Headers))
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(flushCtx); err != nil {
			logger.Warn("telemetry shutdown", slog.String("error", err.Error()))
		}
	}()

	db, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	mint, err := cfg.CurrencyMintAddress()
	if err != nil {
		return err
	}
	issuer, err := cfg.CurrencyIssuerAddress()
	if err != nil {
		return err
	}
	node, err := core.NewNode(db, core.Config{
		ChainID:              cfg.ChainID,
		CurrencyMint:         mint,
		CurrencyIssuer:       issuer,
		MinDeposit:           cfg.Pool.MinDeposit,
		RequireCreatorPermit: cfg.Pool.RequireCreatorPermit,
	})
	if err != nil {
		return fmt.Errorf("open node: %w", err)
	}
	node.SetLogger(logger)

	hub := rpc.NewHub(0)
	sinks := events.NewFanout(observability.Events(), hub)
	opts := []rpc.Option{rpc.WithHub(hub), rpc.WithLogger(logger)}
	if cfg.Indexer.Driver != "" {
		gdb, err := indexer.Open(cfg.Indexer.Driver, cfg.Indexer.DSN)
		if err != nil {
			return fmt.Errorf("indexer: %w", err)
		}
		idx, err := indexer.New(gdb, logger)
		if err != nil {
			return err
		}
		defer idx.Close()
		sinks.Add(idx)
		opts = append(opts, rpc.WithActivity(idx))
		logger.Info("activity indexer enabled",
			slog.String("driver", cfg.Indexer.Driver),
			slog.String("dsn", logging.MaskDSN(cfg.Indexer.DSN)))
	}
	node.SetEmitter(sinks)

	server := rpc.NewServer(node, rpc.ServerConfig{
		ReadHeaderTimeout: seconds(cfg.RPC.ReadHeaderTimeout),
		ReadTimeout:       seconds(cfg.RPC.ReadTimeout),
		WriteTimeout:      seconds(cfg.RPC.WriteTimeout),
		IdleTimeout:       seconds(cfg.RPC.IdleTimeout),
		MaxBodyBytes:      cfg.RPC.MaxBodyBytes,
		RateLimitPerSec:   cfg.RPC.RateLimitPerSec,
		RateLimitBurst:    cfg.RPC.RateLimitBurst,
	}, opts...)

	ln, err := net.Listen("tcp", cfg.RPC.Address)
	if err != nil {
		return fmt.Errorf("listen %s: %w", cfg.RPC.Address, err)
	}
	logger.Info("poold starting",
		slog.Uint64("chain_id", cfg.ChainID),
		slog.String("storage", cfg.Storage.Backend),
		slog.String("currency_mint", mint.String()),
		slog.String("currency_issuer", issuer.String()))

	if err := server.Serve(ctx, ln); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info("poold stopped")
	return nil
}

func openDatabase(cfg *config.Config) (storage.Database, error) {
	switch cfg.Storage.Backend {
	case "memory":
		return storage.NewMemDB(), nil
	case "bolt":
		if err := os.MkdirAll(cfg.DataDir, 0o700); err != nil {
			return nil, err
		}
		return storage.NewBoltDB(filepath.Join(cfg.DataDir, "state.bolt"))
	case "leveldb":
		return storage.NewLevelDB(filepath.Join(cfg.DataDir, "state"))
	}
	return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
}

func seconds(n int) time.Duration { return time.Duration(n) * time.Second }
