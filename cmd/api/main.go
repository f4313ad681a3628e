package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/jobsweep/backend/internal/agent"
	"github.com/jobsweep/backend/internal/api"
	"github.com/jobsweep/backend/internal/api/handlers"
	"github.com/jobsweep/backend/internal/api/middleware"
	"github.com/jobsweep/backend/internal/browser"
	"github.com/jobsweep/backend/internal/config"
	"github.com/jobsweep/backend/internal/delivery"
	"github.com/jobsweep/backend/internal/domain"
	"github.com/jobsweep/backend/internal/platform"
	"github.com/jobsweep/backend/internal/progress"
	"github.com/jobsweep/backend/internal/scheduler"
	"github.com/jobsweep/backend/internal/scraper"
	"github.com/jobsweep/backend/internal/session"
	"github.com/jobsweep/backend/internal/store"
	"github.com/jobsweep/backend/pkg/logger"
)

const (
	appName         = "Jobsweep API"
	appVersion      = "1.0.0"
	shutdownTimeout = 20 * time.Second
)

// stateStore is implemented by both the Redis and the in-memory store
type stateStore interface {
	progress.Store
	session.SessionStore
	session.JobCache
	handlers.Pinger
}

func main() {
	// Parse flags
	configPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger.Init(cfg.Server.Debug, "jobsweep")
	defer logger.Sync()

	logger.Info("Starting "+appName,
		zap.String("version", appVersion),
		zap.Bool("debug", cfg.Server.Debug),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	checks := map[string]handlers.Pinger{}

	// State store
	var state stateStore
	if cfg.Redis.Enabled {
		client, err := store.NewRedisClient(ctx, cfg.Redis.URL)
		if err != nil {
			logger.Fatal("Failed to connect to Redis", zap.Error(err))
		}
		defer client.Close()
		state = store.NewRedis(client, cfg.Redis.KeyPrefix)
		checks["redis"] = state
		logger.Info("Using Redis state store")
	} else {
		state = store.NewMemory()
		logger.Info("Using in-memory state store")
	}

	// Session archive
	var archive *store.Archive
	if cfg.Postgres.Enabled {
		pool, err := store.NewPostgresPool(ctx, cfg.Postgres.DSN())
		if err != nil {
			logger.Fatal("Failed to connect to PostgreSQL", zap.Error(err))
		}
		archive = store.NewArchive(pool)
		defer archive.Close()
		if err := archive.EnsureSchema(ctx); err != nil {
			logger.Fatal("Failed to prepare archive schema", zap.Error(err))
		}
		checks["postgres"] = archive
	}

	// Event fan-out
	hub := progress.NewHub(64, logger.Get())
	publishers := []progress.Publisher{hub}
	if cfg.NATS.URL != "" {
		sink, err := progress.NewNATSSink(cfg.NATS.URL, cfg.NATS.SubjectPrefix, cfg.NATS.ConnTimeout, logger.Get())
		if err != nil {
			logger.Fatal("Failed to connect to NATS", zap.Error(err))
		}
		defer sink.Close()
		publishers = append(publishers, sink)
	}

	// Platforms
	registry := platform.NewDefaultRegistry(cfg.Scraping.DefaultPageTimeout, cfg.Scraping.DefaultCountry)
	for id, t := range cfg.Scraping.Platforms {
		registry.Tune(domain.PlatformID(id), platform.Tuning{PageTimeout: t.PageTimeout, Retries: t.Retries})
	}

	// Browser
	driver, err := browser.NewChromeDriver(browser.ChromeConfig{
		Headless:      cfg.Browser.Headless,
		ExecPath:      cfg.Browser.ExecPath,
		UserDataDir:   cfg.Browser.UserDataDir,
		UserAgent:     cfg.Browser.UserAgent,
		DisableImages: cfg.Browser.DisableImages,
	}, logger.Get())
	if err != nil {
		logger.Fatal("Failed to launch browser", zap.Error(err))
	}
	defer driver.Close()
	checks["browser"] = handlers.PingFunc(func(ctx context.Context) error {
		_, err := driver.ScreenSize(ctx)
		return err
	})

	tabs := browser.NewManager(driver, browser.Options{
		ZoomFactor:    cfg.Browser.ZoomFactor,
		SettleDelay:   cfg.Browser.SettleDelay,
		PollInterval:  cfg.Browser.PollInterval,
		OverlayText:   cfg.Browser.OverlayText,
		DefaultScreen: browser.Screen{Width: cfg.Browser.ScreenWidth, Height: cfg.Browser.ScreenHeight},
	}, logger.Get())

	bus := agent.NewBus(
		agent.NewChromeAgent(driver, agent.DefaultParsers(), nil, agent.ChromeOptions{}, logger.Get()),
		logger.Get(),
	)

	// Progress
	aggregator := progress.NewAggregator(progress.Options{
		Order:    registry.Platforms(),
		Names:    registry.Name,
		PageRate: cfg.Scraping.ProgressRate,
	}, state, logger.Get(), publishers...)
	aggDone := make(chan struct{})
	go func() {
		defer close(aggDone)
		aggregator.Run(ctx)
	}()

	// Scraping
	ledger := session.NewLedger(state, logger.Get())
	coordinator := scraper.NewCoordinator(tabs, bus, ledger, registry, cfg.Scraping.MaxJobsPerPage, logger.Get())
	loop := scraper.NewLoop(tabs, coordinator, registry, aggregator, scraper.LoopOptions{
		PageLoadTimeout: cfg.Scraping.PageLoadTimeout,
		InterPageDelay:  cfg.Scraping.InterPageDelay,
	}, logger.Get())

	// Delivery
	deliveries := delivery.NewService(cfg.Backend.Timeout, logger.Get())
	if cfg.Backend.URL != "" {
		deliveries.Add("backend", delivery.NewBackend(cfg.Backend.URL, cfg.Backend.Token, cfg.Backend.Timeout))
	}
	if cfg.ResultsPage.URLPrefix != "" {
		deliveries.Add("results-page", delivery.NewInjector(driver, cfg.ResultsPage.URLPrefix, cfg.ResultsPage.EventName, cfg.ResultsPage.StorageKey))
	}
	if archive != nil {
		deliveries.Add("archive", delivery.TargetFunc(archive.ArchiveSession))
	}
	logger.Info("Delivery targets configured", zap.Strings("targets", deliveries.Targets()))

	orchestrator := session.NewOrchestrator(
		registry, loop, tabs, aggregator, ledger, state, deliveries,
		session.Options{
			Retention:        cfg.Scraping.Retention,
			TabCloseDebounce: cfg.Scraping.TabCloseDebounce,
		},
		logger.Get(),
	)
	if n, err := orchestrator.Restore(ctx); err != nil {
		logger.Warn("Failed to restore sessions", zap.Error(err))
	} else if n > 0 {
		logger.Info("Restored interrupted sessions", zap.Int("count", n))
	}

	janitor := scheduler.NewJanitor(orchestrator, cfg.Scraping.CleanupSpec, logger.Get())
	if err := janitor.Start(ctx); err != nil {
		logger.Fatal("Failed to start janitor", zap.Error(err))
	}

	// Create Fiber app
	app := fiber.New(fiber.Config{
		AppName:               appName + " v" + appVersion,
		ReadTimeout:           cfg.Server.ReadTimeout,
		WriteTimeout:          cfg.Server.WriteTimeout,
		DisableStartupMessage: !cfg.Server.Debug,
		ErrorHandler:          errorHandler,
	})

	// Setup middleware
	middleware.Setup(app, cfg)

	// Setup routes
	api.SetupRoutes(app, cfg, &api.Dependencies{
		Sessions:  orchestrator,
		Events:    hub,
		Jobs:      state,
		Archive:   archiveReader(archive),
		Platforms: registry,
		Checks:    checks,
		Gauges: map[string]handlers.Gauge{
			"active_sessions":        func() int { return len(orchestrator.Active()) },
			"agent_pending_requests": bus.Pending,
			"event_subscribers":      hub.Subscribers,
		},
	})

	// Graceful shutdown
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-c
		logger.Info("Shutting down gracefully...")
		_ = app.ShutdownWithTimeout(shutdownTimeout)
	}()

	// Start server
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	logger.Info("Server starting",
		zap.String("address", addr),
		zap.Strings("platforms", platformNames(registry.Platforms())),
	)

	if err := app.Listen(addr); err != nil {
		logger.Error("Server stopped", zap.Error(err))
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	janitor.Stop()
	if err := orchestrator.Shutdown(shutdownCtx); err != nil {
		logger.Warn("Sessions did not settle before shutdown", zap.Error(err))
	}
	cancel()
	<-aggDone
	logger.Info("Shutdown complete")
}

// archiveReader keeps a nil *store.Archive from becoming a non-nil interface
func archiveReader(a *store.Archive) handlers.ArchiveReader {
	if a == nil {
		return nil
	}
	return a
}

func platformNames(ids []domain.PlatformID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = string(id)
	}
	return out
}

// errorHandler handles errors globally
func errorHandler(c *fiber.Ctx, err error) error {
	// Default to 500
	code := fiber.StatusInternalServerError
	message := "Internal server error"

	// Check if it's a Fiber error
	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}

	// Log error
	logger.Error("Request error",
		zap.Int("status", code),
		zap.String("path", c.Path()),
		zap.Error(err),
	)

	return c.Status(code).JSON(fiber.Map{
		"error":   "request_failed",
		"message": message,
		"path":    c.Path(),
	})
}
