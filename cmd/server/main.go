package main

import (
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"time"

	"shipment-tracking/internal/cache"
	"shipment-tracking/internal/carriers"
	"shipment-tracking/internal/config"
	"shipment-tracking/internal/database"
	"shipment-tracking/internal/orders"
	"shipment-tracking/internal/report"
	"shipment-tracking/internal/server"
	"shipment-tracking/internal/session"
	"shipment-tracking/internal/workers"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "order-tracker",
	Short: "Shipment tracking server for e-commerce orders",
	Long: `order-tracker fetches orders from the store, resolves each shipment's
carrier and scrapes the current delivery status, serving results over an
HTTP API with live progress streaming.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runServer() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger := newLogger(cfg.Logging.Level)
	slog.SetDefault(logger)

	db, err := database.Open(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()
	logger.Info("Database initialized", "path", cfg.Database.Path)

	if err := session.ValidateChromeAvailable(); err != nil {
		logger.Warn("Headless Chrome not detected, browser-based carriers will fail", "error", err)
	}

	launcher := session.NewChromeLauncher(session.ChromeOptions{
		Mode:      cfg.Session.Mode,
		Headless:  cfg.Session.Headless,
		UserAgent: cfg.Session.UserAgent,
		Timeout:   cfg.Session.NavigationTimeout,
	})
	defer launcher.Close()

	pool := session.NewPool(launcher, cfg.Session.MaxConcurrent, logger)
	defer pool.Close()

	registry := carriers.NewRegistry(pool, carriers.RegistryOptions{
		UserAgent:       cfg.Session.UserAgent,
		TransitKeywords: cfg.Tracking.TransitKeywords,
	}, logger)

	cacheManager := cache.NewManager(db.TrackingCache, cfg.Tracking.CacheDisabled, cfg.Tracking.CacheTTL, logger)
	defer cacheManager.Close()

	processor := workers.NewProcessor(registry, cacheManager, cfg.Tracking.BatchSize, logger)

	source := orders.NewShopifyClient(cfg.Shopify.StoreURL, cfg.Shopify.AccessToken, cfg.Shopify.APIVersion, nil, logger)

	var sender report.Sender = report.NopSender{}
	var recipients []string
	if cfg.Email.Enabled {
		sender = report.NewSMTPSender(cfg.Email.SMTPHost, cfg.Email.SMTPPort, cfg.Email.Username, cfg.Email.Password, cfg.Email.From)
		recipients = cfg.Email.To
	}

	handler := server.NewRouter(server.Dependencies{
		Source:     source,
		Processor:  processor,
		Registry:   registry,
		Cache:      cacheManager,
		DB:         db,
		Sender:     sender,
		Recipients: recipients,
	})

	srv := &http.Server{
		Addr:        cfg.Address(),
		Handler:     handler,
		ReadTimeout: 15 * time.Second,
		// No write timeout: SSE progress streams stay open for the whole run
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Starting server on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	server.NewSignalHandler(srv, 30*time.Second).WaitForShutdown()
	return nil
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}
