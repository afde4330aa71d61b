package main

import (
	"context"
	"errors"
	"os"

	"golang.org/x/sync/errgroup"

	"assofin/internal/backend"
	"assofin/internal/cli"
	"assofin/internal/config"
	"assofin/internal/jobs"
	"assofin/internal/log"
	"assofin/internal/services"
	"assofin/internal/sheets"
	gsheet "assofin/internal/sheets/google"
	"assofin/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(log.ComponentWorker)
	logger.Info("Starting assofin-worker")
	cfg := cli.LoadAndValidateConfig(logger)

	ctx, stop := cli.SignalContext()
	defer stop()

	if cfg.DataBackend != config.BackendSQLite {
		logger.Warn("Worker is running against a private in-memory store; use DATA_BACKEND=sqlite to share data with the server")
	}

	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", log.FieldError, err)
		os.Exit(1)
	}
	be, err := backend.Open(ctx, bcfg, logger)
	if err != nil {
		logger.Error("Failed to open backend", log.FieldError, err)
		os.Exit(1)
	}
	defer func() {
		if err := be.Close(); err != nil {
			logger.Error("Failed to close backend", log.FieldError, err)
		}
	}()

	// Assigned categories go back on the bus so the ledger rows follow. The
	// server's report cache is in another process and only expires on
	// REPORT_CACHE_TTL after a run here.
	categorizer := services.NewCategorizationService(be.Store, nil, nil).
		WithEvents(be.Events()).
		WithLogger(logger.WithComponent(log.ComponentCategorize))

	var ledger sheets.Ledger
	if cfg.SheetsEnabled() {
		client, err := gsheet.New(ctx, gsheet.Config{
			SpreadsheetID:      cfg.GoogleSpreadsheetID,
			SheetName:          cfg.GoogleSheetName,
			ServiceAccountJSON: cfg.GoogleServiceAccountJSON,
			ServiceAccountFile: cfg.GoogleServiceAccountFile,
		})
		if err != nil {
			logger.Error("Failed to initialize Google Sheets client", log.FieldError, err)
			os.Exit(1)
		}
		ledger = client
		logger.Info("Google Sheets ledger enabled", "spreadsheet_id", cfg.GoogleSpreadsheetID, "sheet", cfg.GoogleSheetName)
	} else {
		logger.Info("Google Sheets ledger disabled - no GOOGLE_SPREADSHEET_ID provided")
	}

	g, gctx := errgroup.WithContext(ctx)
	tasks := 0

	if be.Broker != nil {
		w := worker.New(categorizer, be.Store, ledger, logger)
		tasks++
		g.Go(func() error {
			err := be.Broker.Consume(gctx, w.Handle)
			if err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	} else {
		logger.Info("Skipping AMQP consumption - no broker available")
	}

	if cfg.CategorizeSchedule != "" {
		loc, _ := cfg.Location()
		sched := jobs.NewCategorizeScheduler(categorizer, jobs.Config{
			Schedule: cfg.CategorizeSchedule,
			Location: loc,
		}, logger)
		if err := sched.Start(gctx); err != nil {
			logger.Error("Failed to start categorize scheduler", log.FieldError, err)
			os.Exit(1)
		}
		tasks++
		g.Go(func() error {
			<-gctx.Done()
			stopCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
			defer cancel()
			return sched.Stop(stopCtx)
		})
	}

	if tasks == 0 {
		logger.Error("Nothing to do: configure AMQP_URL or CATEGORIZE_SCHEDULE")
		os.Exit(1)
	}

	if err := g.Wait(); err != nil {
		logger.Error("Worker stopped with error", log.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Worker stopped gracefully")
}
