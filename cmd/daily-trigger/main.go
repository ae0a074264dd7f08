package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	pkgconfig "github.com/Vodeneev/openingline/internal/pkg/config"
	"github.com/Vodeneev/openingline/internal/pkg/health"
	"github.com/Vodeneev/openingline/internal/pkg/lease"
	"github.com/Vodeneev/openingline/internal/pkg/logging"
	"github.com/Vodeneev/openingline/internal/pkg/models"
	"github.com/Vodeneev/openingline/internal/pkg/pipeline"
	"github.com/Vodeneev/openingline/internal/pkg/report"
	"github.com/Vodeneev/openingline/internal/pkg/storage"
	"github.com/Vodeneev/openingline/internal/pkg/supervisor"
	"github.com/Vodeneev/openingline/internal/pkg/trigger"
)

const (
	defaultConfigPath = "configs/production.yaml"
	serviceName       = "daily-trigger"
)

type config struct {
	configPath string
	runFor     time.Duration
	date       string // run once for this date and exit
}

func main() {
	if err := run(); err != nil {
		slog.Error("Daily trigger failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	slog.Info("Starting daily trigger...")

	cfg := parseFlags()
	slog.Info("Loading config", "path", cfg.configPath)

	appConfig, err := pkgconfig.Load(cfg.configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if _, err := logging.SetupLogger(&appConfig.Logging, serviceName); err != nil {
		slog.Warn("Failed to setup logging, continuing with default logger", "error", err)
	}

	if cfg.date != "" {
		if _, err := time.Parse(models.DateLayout, cfg.date); err != nil {
			return fmt.Errorf("invalid -date %q, want YYYY-MM-DD: %w", cfg.date, err)
		}
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

	locker, err := lease.Open(appConfig.Lease)
	if err != nil {
		return fmt.Errorf("failed to open lease: %w", err)
	}
	defer locker.Close()

	keys := storage.Keys{Sport: appConfig.SportKey}
	p := pipeline.New(appConfig, pipeline.Deps{
		QuoteLog: storage.NewQuoteLog(store, keys, loc),
		History:  storage.NewHistoryStore(store, keys),
		Reports:  newReportGenerator(appConfig, store, keys),
		Notifier: newNotifier(appConfig),
		Locker:   locker,
	})

	ctx, cancel := createContext(cfg.runFor)
	defer cancel()
	setupSignalHandler(ctx, cancel)

	if cfg.date != "" {
		slog.Info("Running pipeline once", "date", cfg.date)
		runCtx, cancelRun := supervisor.CycleContext(ctx, appConfig.Trigger.Timeout)
		defer cancelRun()
		_, err := p.Run(runCtx, cfg.date)
		return err
	}

	tr, err := trigger.New(appConfig, loc, nil, func(ctx context.Context, date string) error {
		_, err := p.Run(ctx, date)
		return err
	})
	if err != nil {
		return err
	}

	slog.Info("Config loaded successfully",
		"sport", appConfig.SportKey,
		"timezone", appConfig.Timezone,
		"time_of_day", appConfig.Trigger.TimeOfDay,
		"storage", appConfig.Storage.Backend,
		"reports", appConfig.Report.Enabled)

	if addr, ok := health.AddrFor(appConfig.Health.Port); ok {
		health.Run(ctx, addr, serviceName, func() any {
			return map[string]any{"trigger": tr.Status(), "last_run": p.LastRun()}
		}, appConfig.Health.ReadHeaderTimeout)
	}

	err = supervisor.Run(ctx, serviceName, supervisor.DefaultOptions(), tr.Run)
	slog.Info("Daily trigger stopped gracefully")
	return err
}

func newReportGenerator(cfg *pkgconfig.Config, store storage.BlobStore, keys storage.Keys) *report.Generator {
	if !cfg.Report.Enabled {
		slog.Info("Reports disabled")
		return nil
	}
	var pdf report.PDFRenderer
	if cfg.Report.PDF {
		pdf = report.ChromePDF{}
	}
	return report.NewGenerator(store, keys, pdf)
}

func newNotifier(cfg *pkgconfig.Config) report.Notifier {
	tg := cfg.Report.Telegram
	if tg.Token == "" || tg.ChatID == 0 {
		return nil
	}
	n, err := report.NewTelegramNotifier(tg.Token, tg.ChatID)
	if err != nil {
		slog.Warn("Telegram notifier disabled", "error", err)
		return nil
	}
	return n
}

func parseFlags() config {
	var cfg config

	defaultConfig := os.Getenv("CONFIG_PATH")
	if defaultConfig == "" {
		defaultConfig = defaultConfigPath
	}

	flag.StringVar(&cfg.configPath, "config", defaultConfig, "Path to config file (can be set via CONFIG_PATH env var)")
	flag.DurationVar(&cfg.runFor, "run-for", 0, "Auto-stop after duration (e.g. 10s, 1m). 0 = run until SIGINT/SIGTERM")
	flag.StringVar(&cfg.date, "date", "", "Run the end-of-day pipeline once for this date (YYYY-MM-DD) and exit")
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
			slog.Info("Received shutdown signal, stopping daily trigger...", "signal", sig.String())
			cancel()
		case <-ctx.Done():
			// Context already cancelled (timeout or parent cancellation)
		}
		signal.Stop(sigChan)
	}()
}
