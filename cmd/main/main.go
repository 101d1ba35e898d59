package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"financials-sync/src/config"
	"financials-sync/src/helpers"
	"financials-sync/src/logger"
	"financials-sync/src/models"
	"financials-sync/src/synchronizer"
	"financials-sync/src/utils"

	"github.com/spf13/pflag"
)

// -----------------------------------------------------------------------------

func main() {

	// Parse command line flags
	configPath := pflag.StringP("config", "c", "config/default.yaml", "path to config file")
	maxCompanies := pflag.Int("max-companies", -1, "limit the run to the first N companies (0 = all)")
	once := pflag.Bool("once", false, "run a single synchronization and exit, ignoring the schedule")
	pflag.Parse()

	// Load config from YAML file
	config, err := config.NewConfig(*configPath)
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}
	if *maxCompanies >= 0 {
		config.Sync.MaxCompanies = *maxCompanies
	}
	if *once {
		config.Schedule.IntervalHours = 0
	}

	// Setup logger
	appLogger := logger.NewLogger(config, config.Name)

	// Cancel everything on SIGINT/SIGTERM
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Setup Components
	comps, err := setupComponents(ctx, config.MConfig)
	if err != nil {
		var cfgErr *helpers.ConfigurationError
		if errors.As(err, &cfgErr) {
			appLogger.Critical("Invalid configuration: %v", err)
		}
		appLogger.Critical("Startup failed: %v", err)
	}
	defer comps.sink.Close()

	// Start Servers
	srv := startServers(config.MConfig, appLogger)
	defer srv.stop(appLogger)

	syncer := synchronizer.NewSynchronizer(
		comps.fetcher,
		comps.sink,
		srv.reporter(appLogger),
		synchronizer.OptionsFromConfig(config.MConfig),
		logger.NewLogger(config, "Synchronizer"),
	)

	// Main Loop
	scheduler := utils.NewRunScheduler(config.Schedule, logger.NewLogger(config, "RunScheduler"))
	err = scheduler.Loop(ctx, func(ctx context.Context) {
		runOnce(ctx, config.MConfig, comps, syncer, appLogger)
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		appLogger.Error("Scheduler stopped: %v", err)
	}

	appLogger.Info("Shutting down...")
}

// -----------------------------------------------------------------------------

// runOnce synchronizes the current directory. A directory failure aborts this
// run only.
func runOnce(ctx context.Context, config *models.MConfig, comps *components, syncer *synchronizer.Synchronizer, appLogger *logger.Logger) models.MSyncSummary {
	summary, err := syncer.SyncDirectory(ctx, comps.directory, config.Storage.RegisterDirectory)
	if err != nil {
		appLogger.Error("Directory fetch failed, skipping run: %v", err)
		return summary
	}
	appLogger.Info("Run finished: %d/%d companies updated, %d failed in %.1fs (interrupted: %v)",
		summary.Succeeded, summary.Attempted, summary.Failed(), summary.DurationSeconds, summary.Interrupted)
	return summary
}
