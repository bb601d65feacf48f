package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"condivise/internal/backend"
	"condivise/internal/cache"
	"condivise/internal/cli"
	"condivise/internal/config"
	apphttp "condivise/internal/http"
	"condivise/internal/log"
	"condivise/internal/metrics"
)

const cacheSweepInterval = time.Minute

func main() {
	cli.LoadEnvFile()
	cfg, logger := cli.LoadAndValidateConfig((*config.Config).Validate)

	ctx, stop := cli.SignalContext(context.Background())
	defer stop()

	m := metrics.New()
	bcfg, err := backend.FromAppConfig(cfg)
	cli.ExitOnError(logger, "Invalid backend configuration", err)

	result, err := backend.NewFactory(logger, m).CreateBackend(ctx, bcfg)
	cli.ExitOnError(logger, "Failed to initialize backend", err)
	defer func() {
		if err := result.Cleanup(); err != nil {
			logger.Error("Backend cleanup failed", log.FieldError, err)
		}
	}()

	srv := apphttp.NewServer(":"+cfg.Port, result.Service, apphttp.Options{
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		Metrics:            m,
		Logger:             logger,
	})

	sweeper := cache.NewManager(logger)
	if result.Cache != nil {
		sweeper.Register(result.Cache)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Starting condivise server",
			"port", cfg.Port,
			"backend", cfg.DataBackend,
			"events", cfg.AMQPURL != "")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return sweeper.Run(gctx, cacheSweepInterval)
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down server", log.FieldOperation, log.OpShutdown)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	cli.ExitOnError(logger, "Server error", g.Wait())
	logger.Info("Server stopped gracefully")
}
