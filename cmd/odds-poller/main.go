package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	pkgconfig "github.com/Vodeneev/openingline/internal/pkg/config"
	"github.com/Vodeneev/openingline/internal/pkg/health"
	"github.com/Vodeneev/openingline/internal/pkg/logging"
	"github.com/Vodeneev/openingline/internal/pkg/oddsapi"
	"github.com/Vodeneev/openingline/internal/pkg/scheduler"
	"github.com/Vodeneev/openingline/internal/pkg/storage"
	"github.com/Vodeneev/openingline/internal/pkg/supervisor"
)

const (
	defaultConfigPath = "configs/production.yaml"
	serviceName       = "odds-poller"
)

type config struct {
	configPath string
	runFor     time.Duration
}

func main() {
	if err := run(); err != nil {
		slog.Error("Odds poller failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	slog.Info("Starting odds poller...")

	cfg := parseFlags()
	slog.Info("Loading config", "path", cfg.configPath)

	appConfig, err := pkgconfig.Load(cfg.configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if _, err := logging.SetupLogger(&appConfig.Logging, serviceName); err != nil {
		slog.Warn("Failed to setup logging, continuing with default logger", "error", err)
	}

	if appConfig.Odds.APIKey == "" {
		return errors.New("odds.api_key is required (or set ODDS_API_KEY)")
	}

	loc, err := appConfig.Location()
	if err != nil {
		return err
	}

	store, err := storage.Open(appConfig.Storage)
	if err != nil {
		return fmt.Errorf("failed to open blob store: %w", err)
	}
	defer store.Close()

	keys := storage.Keys{Sport: appConfig.SportKey}
	source := oddsapi.NewClient(appConfig.Odds)
	poller := scheduler.NewPoller(appConfig, loc, source, storage.NewQuoteLog(store, keys, loc), nil)

	slog.Info("Config loaded successfully",
		"sport", appConfig.SportKey,
		"timezone", appConfig.Timezone,
		"books", appConfig.Books,
		"regions", appConfig.Odds.Regions,
		"interval", appConfig.Poller.Interval,
		"storage", appConfig.Storage.Backend)

	ctx, cancel := createContext(cfg.runFor)
	defer cancel()
	setupSignalHandler(ctx, cancel)

	if addr, ok := health.AddrFor(appConfig.Health.Port); ok {
		health.Run(ctx, addr, serviceName, func() any { return poller.Snapshot() }, appConfig.Health.ReadHeaderTimeout)
	}

	err = supervisor.Run(ctx, serviceName, supervisor.DefaultOptions(), poller.Run)
	slog.Info("Odds poller stopped gracefully")
	return err
}

func parseFlags() config {
	var cfg config

	defaultConfig := os.Getenv("CONFIG_PATH")
	if defaultConfig == "" {
		defaultConfig = defaultConfigPath
	}

	flag.StringVar(&cfg.configPath, "config", defaultConfig, "Path to config file (can be set via CONFIG_PATH env var)")
	flag.DurationVar(&cfg.runFor, "run-for", 0, "Auto-stop after duration (e.g. 10s, 1m). 0 = run until SIGINT/SIGTERM")
	flag.Parse()
	return cfg
}

func createContext(runFor time.Duration) (context.Context, context.CancelFunc) {
	if runFor > 0 {
		return context.WithTimeout(context.Background(), runFor)
	}
	return context.WithCancel(context.Background())
}

func setupSignalHandler(ctx context.Context, cancel context.CancelFunc) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		select {
		case sig := <-sigChan:
			slog.Info("Received shutdown signal, stopping poller...", "signal", sig.String())
			cancel()
		case <-ctx.Done():
			// Context already cancelled (timeout or parent cancellation)
		}
		signal.Stop(sigChan)
	}()
}
