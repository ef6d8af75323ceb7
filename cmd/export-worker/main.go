package main

import (
	"context"
	"errors"
	"os"
	"time"

	"cashflow/internal/amqp"
	"cashflow/internal/backend"
	"cashflow/internal/cli"
	applog "cashflow/internal/log"
	"cashflow/internal/services"
	"cashflow/internal/sheets"
	gsheet "cashflow/internal/sheets/google"
	"cashflow/internal/sheets/memory"
	"cashflow/internal/worker"
)

func main() {
	cfg, logger := cli.MustBootstrap(applog.ComponentWorker)
	logger.Info("Starting export-worker")

	if cfg.AMQPURL == "" {
		logger.Error("AMQP_URL is required for the export worker")
		os.Exit(1)
	}

	ctx, stop := cli.ShutdownContext(logger)
	defer stop()

	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", applog.FieldError, err)
		os.Exit(1)
	}
	// The worker only reads; it neither caches nor publishes.
	bcfg.Cache = backend.NoCache
	bcfg.AMQPURL = ""
	res, err := backend.NewFactory(logger).CreateBackend(ctx, bcfg)
	if err != nil {
		logger.Error("Failed to initialize backend", applog.FieldError, err)
		os.Exit(1)
	}
	defer res.Cleanup()

	var exporter sheets.TotalsExporter
	if cfg.SheetsEnabled() {
		client, err := gsheet.New(ctx, gsheet.Config{
			SpreadsheetID:      cfg.GoogleSpreadsheetID,
			ServiceAccountJSON: cfg.GoogleServiceAccountJSON,
			ServiceAccountFile: cfg.GoogleServiceAccountFile,
			SheetPrefix:        cfg.GoogleTotalsSheetPrefix,
		})
		if err != nil {
			logger.Error("Failed to initialize Google Sheets client", applog.FieldError, err)
			os.Exit(1)
		}
		exporter = client
		logger.Info("Google Sheets export enabled", "spreadsheet_id", cfg.GoogleSpreadsheetID)
	} else {
		exporter = memory.New()
		logger.Info("Google Sheets disabled - no GOOGLE_SPREADSHEET_ID provided, exporting in memory")
	}

	app := backend.NewApp(res, services.SystemClock, cfg.StoreTimeout)
	exportWorker := worker.NewExportWorker(app.Reports, exporter)

	if err := exportWorker.StartupExport(ctx, time.Now().Year()); err != nil {
		logger.Error("Startup export failed", applog.FieldError, err)
	}

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", applog.FieldError, err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	err = amqpClient.ConsumeEntryChanged(ctx, exportWorker.HandleEntryChanged)
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Message consumption failed", applog.FieldError, err)
		os.Exit(1)
	}
	logger.Info("export-worker stopped")
}
