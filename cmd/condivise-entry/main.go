package main

import (
	"context"
	"flag"
	"os"

	"condivise/internal/cli"
	"condivise/internal/config"
	"condivise/internal/entry"
	"condivise/internal/gateway"
	"condivise/internal/log"
	"condivise/internal/metrics"
	"condivise/internal/prefs"
)

func main() {
	server := flag.String("server", "", "record store URL (overrides SERVER_URL)")
	flag.Parse()

	cli.LoadEnvFile()
	if *server != "" {
		_ = os.Setenv("SERVER_URL", *server)
	}
	// Prompts go to stdout, so log to stderr in the colored format unless
	// told otherwise.
	if os.Getenv("LOG_FORMAT") == "" {
		_ = os.Setenv("LOG_FORMAT", log.FormatPretty)
	}
	if os.Getenv("LOG_LEVEL") == "" {
		_ = os.Setenv("LOG_LEVEL", "warn")
	}
	cfg := config.Load()
	lc := log.DefaultConfig()
	lc.Level = log.ParseLevel(cfg.LogLevel)
	lc.Format = cfg.LogFormat
	lc.Output = os.Stderr
	logger := log.New(lc)
	log.SetDefault(logger)
	if err := cfg.ValidateClient(); err != nil {
		cli.ExitOnError(logger, "Configuration validation failed", err)
	}

	ctx, stop := cli.SignalContext(context.Background())
	defer stop()

	remote := gateway.New(cfg.ServerURL, cfg.RequestTimeout,
		gateway.WithLogger(logger),
		gateway.WithMetrics(metrics.New()))
	console, err := entry.New(remote, prefs.NewStore(cfg.PrefsPath, logger), os.Stdin, os.Stdout,
		entry.WithLogger(logger))
	cli.ExitOnError(logger, "Failed to load preferences", err)

	cli.ExitOnError(logger, "Entry client error", console.Run(ctx))
}
