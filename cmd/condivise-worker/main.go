package main

import (
	"context"
	"errors"
	"flag"
	"time"

	"golang.org/x/sync/errgroup"

	"condivise/internal/amqp"
	"condivise/internal/cache"
	"condivise/internal/cli"
	"condivise/internal/config"
	"condivise/internal/log"
	"condivise/internal/metrics"
	ports "condivise/internal/sheets"
	gsheet "condivise/internal/sheets/google"
	"condivise/internal/worker"
)

const seenSweepInterval = 10 * time.Minute

func main() {
	logOnly := flag.Bool("log-only", false, "write journal rows to the log instead of Google Sheets")
	flag.Parse()

	cli.LoadEnvFile()
	validate := (*config.Config).ValidateWorker
	if *logOnly {
		validate = func(c *config.Config) error {
			if c.AMQPURL == "" {
				return errors.New("AMQP_URL is required for the worker")
			}
			return nil
		}
	}
	cfg, logger := cli.LoadAndValidateConfig(validate)
	logger = logger.WithComponent(log.ComponentWorker)

	ctx, stop := cli.SignalContext(context.Background())
	defer stop()

	var journal ports.JournalWriter = worker.LogJournal{Logger: logger}
	if !*logOnly {
		sheetsClient, err := gsheet.New(ctx, gsheet.Config{
			SpreadsheetID:   cfg.GoogleSpreadsheetID,
			SheetName:       cfg.GoogleSheetName,
			CredentialsJSON: cfg.GoogleServiceAccountJSON,
			CredentialsFile: cfg.GoogleServiceAccountFile,
			OAuthClientJSON: cfg.GoogleOAuthClientJSON,
			OAuthClientFile: cfg.GoogleOAuthClientFile,
			OAuthTokenFile:  cfg.GoogleOAuthTokenFile,
		}, logger)
		cli.ExitOnError(logger, "Failed to initialize Google Sheets client", err)
		cli.ExitOnError(logger, "Failed to prepare journal sheet", sheetsClient.EnsureHeader(ctx))
		journal = sheetsClient
		logger.Info("Google Sheets journal ready",
			"spreadsheet_id", cfg.GoogleSpreadsheetID,
			"sheet", cfg.GoogleSheetName)
	}

	m := metrics.New()
	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue,
		amqp.WithLogger(logger), amqp.WithMetrics(m))
	cli.ExitOnError(logger, "Failed to initialize AMQP client", err)
	defer func() {
		if err := client.Close(); err != nil {
			logger.Warn("AMQP close failed", log.FieldError, err)
		}
	}()

	jw := worker.NewJournalWorker(journal, m, logger)
	sweeper := cache.NewManager(logger)
	sweeper.Register(jw.Seen())

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Consuming expense events", "queue", cfg.AMQPQueue)
		return client.Consume(gctx, jw.HandleEvent)
	})
	g.Go(func() error {
		return sweeper.Run(gctx, seenSweepInterval)
	})

	cli.ExitOnError(logger, "Worker error", g.Wait())
	logger.Info("Worker stopped")
}
