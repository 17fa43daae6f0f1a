package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"

	"github.com/infodancer/mtawire/internal/config"
	"github.com/infodancer/mtawire/internal/logging"
	"github.com/infodancer/mtawire/internal/lookupd"
	"github.com/infodancer/mtawire/internal/metrics"
	"github.com/infodancer/mtawire/internal/server"
	"github.com/infodancer/mtawire/internal/table"
)

func runServe() {
	flags := config.ParseFlags()

	cfg, err := config.LoadWithFlags(flags)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error loading config: %v\n", err)
		os.Exit(1)
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	logger := logging.NewLogger(cfg.LogLevel)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		logger.Info("received signal, shutting down", "signal", sig.String())
		cancel()
	}()

	collector, metricsServer := metrics.New(metrics.Config{
		Enabled: cfg.Metrics.Enabled,
		Address: cfg.Metrics.Address,
		Path:    cfg.Metrics.Path,
	})
	if cfg.Metrics.Enabled {
		go func() {
			if err := metricsServer.Start(ctx); err != nil && err != context.Canceled {
				logger.Error("metrics server error", "error", err)
			}
		}()
	}

	// One Redis client serves every configured table; tables differ only
	// in their key prefix.
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Address,
		DB:       cfg.Redis.DB,
		Password: cfg.Redis.Password,
	})

	tables := make([]table.Table, 0, len(cfg.Tables))
	for _, tc := range cfg.Tables {
		tables = append(tables, table.NewRedisTable(redisClient, table.RedisConfig{
			Name:      tc.Name,
			KeyPrefix: tc.KeyPrefix,
		}))
		logger.Info("configured table",
			"name", tc.Name,
			"key_prefix", tc.KeyPrefix)
	}
	registry := table.NewRegistry(tables...)
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Error("closing redis client", "error", err)
		}
	}()

	handler := lookupd.NewHandler(lookupd.HandlerConfig{
		Tables:  registry,
		Metrics: collector,
		Logger:  logger,
	})

	srv, err := server.New(&cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error creating server: %v\n", err)
		os.Exit(1)
	}
	srv.SetHandler(handler.Handle)

	logger.Info("starting attrlookupd",
		"hostname", cfg.Hostname,
		"listeners", len(cfg.Listeners),
		"tables", len(cfg.Tables))

	if err := srv.Run(ctx); err != nil && err != context.Canceled {
		fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		os.Exit(1)
	}
}

// runCheckConfig loads and validates the configuration, then reports the
// result. Useful before reloading a production daemon.
func runCheckConfig() {
	flags := config.ParseFlags()

	cfg, err := config.LoadWithFlags(flags)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error loading config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("%s: configuration ok (%d listeners, %d tables)\n",
		flags.ConfigPath, len(cfg.Listeners), len(cfg.Tables))
}
