package main

import (
	"context"
	"fmt"
	"os"

	"github.com/infodancer/mtawire/internal/config"
	"github.com/infodancer/mtawire/internal/logging"
	"github.com/infodancer/mtawire/internal/proxy"
)

// runProxyCheck opens a proxy session against the configured filter and
// reports whether the preamble succeeds. Useful for verifying filter
// reachability and credentials before directing traffic at it.
func runProxyCheck() {
	flags := config.ParseFlags()

	cfg, err := config.LoadWithFlags(flags)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error loading config: %v\n", err)
		os.Exit(1)
	}
	if cfg.Proxy.Address == "" {
		fmt.Fprintln(os.Stderr, "no proxy configured")
		os.Exit(1)
	}

	logger := logging.NewLogger(cfg.LogLevel)

	ehloName := cfg.Proxy.EhloName
	if ehloName == "" {
		ehloName = cfg.Hostname
	}

	client, err := proxy.Open(context.Background(), proxy.Config{
		Address:   cfg.Proxy.Address,
		Timeout:   cfg.Proxy.ProxyTimeout(),
		EhloName:  ehloName,
		Username:  cfg.Proxy.Username,
		Password:  cfg.Proxy.Password,
		LineLimit: cfg.Limits.LineLength,
		Logger:    logger,
	}, nil, "MAIL FROM:<>")
	if err != nil {
		fmt.Fprintf(os.Stderr, "proxy check failed: %v\n", err)
		os.Exit(1)
	}
	reply := client.LastReply()
	if err := client.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "closing proxy session: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("%s: proxy ok (%s)\n", cfg.Proxy.Address, reply)
}
