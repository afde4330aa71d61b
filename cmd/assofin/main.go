package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"assofin/internal/backend"
	"assofin/internal/cache"
	"assofin/internal/cli"
	"assofin/internal/config"
	"assofin/internal/core"
	apphttp "assofin/internal/http"
	"assofin/internal/jobs"
	"assofin/internal/log"
	"assofin/internal/middleware/ratelimit"
	"assofin/internal/services"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(log.ComponentApp)
	cfg := cli.LoadAndValidateConfig(logger)

	ctx, stop := cli.SignalContext()
	defer stop()

	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", log.FieldError, err)
		os.Exit(1)
	}
	be, err := backend.Open(ctx, bcfg, logger)
	if err != nil {
		logger.Error("Failed to open backend", log.FieldError, err, "backend", cfg.DataBackend)
		os.Exit(1)
	}
	defer func() {
		if err := be.Close(); err != nil {
			logger.Error("Failed to close backend", log.FieldError, err)
		}
	}()

	caches := cache.NewManager()
	reportCache := cache.NewLRUCache[core.Report](64, cfg.ReportCacheTTL)
	caches.Register(reportCache)
	caches.StartCleanup(time.Minute)
	defer caches.Stop()

	reports := services.NewReportService(be.Store, reportCache)
	transactions := services.NewTransactionService(be.Store, be.Events(), reports).
		WithLogger(logger.WithComponent(log.ComponentTransaction))
	categorizer := services.NewCategorizationService(be.Store, be.Jobs(), reports).
		WithEvents(be.Events()).
		WithLogger(logger.WithComponent(log.ComponentCategorize))
	accounts := services.NewAccountService(be.Store, reports)
	categories := services.NewCategoryService(be.Store, reports)
	rules := services.NewRuleService(be.Store)

	if err := cli.SeedStore(ctx, cfg.SeedFile, categories, rules, logger); err != nil {
		logger.Error("Failed to seed store", log.FieldError, err)
		os.Exit(1)
	}

	ready := []apphttp.ReadinessCheck{{Name: "store", Check: be.Ping}}
	if be.Broker != nil {
		ready = append(ready, apphttp.ReadinessCheck{Name: "amqp", Check: func(context.Context) error {
			if !be.Broker.Healthy() {
				return errors.New("circuit breaker open")
			}
			return nil
		}})
	}

	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Deps{
		Accounts:       accounts,
		Categories:     categories,
		Transactions:   transactions,
		Rules:          rules,
		Categorize:     categorizer,
		Imports:        services.NewImportService(transactions),
		Reports:        reports,
		Ready:          ready,
		Logger:         logger,
		ImportMaxBytes: cfg.ImportMaxBytes,
		RateLimit:      ratelimit.DefaultConfig(),
	})

	g, gctx := errgroup.WithContext(ctx)

	// The worker process cannot see an in-memory store, so the scheduled run
	// lives here for that backend.
	if cfg.DataBackend == config.BackendMemory && cfg.CategorizeSchedule != "" {
		loc, _ := cfg.Location()
		sched := jobs.NewCategorizeScheduler(categorizer, jobs.Config{
			Schedule: cfg.CategorizeSchedule,
			Location: loc,
		}, logger)
		if err := sched.Start(gctx); err != nil {
			logger.Error("Failed to start categorize scheduler", log.FieldError, err)
			os.Exit(1)
		}
		g.Go(func() error {
			<-gctx.Done()
			stopCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
			defer cancel()
			return sched.Stop(stopCtx)
		})
	}

	g.Go(func() error {
		logger.Info("Starting assofin server", "port", cfg.Port, "backend", cfg.DataBackend, "async", be.Broker != nil)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}
	logger.Info("Server stopped gracefully")
}
