package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os/signal"
	"syscall"

	"sitewatch/internal/api"
	"sitewatch/internal/config"
	"sitewatch/internal/dnsinfo"
	"sitewatch/internal/mailer"
	"sitewatch/internal/monitor"
	"sitewatch/internal/probe"
	"sitewatch/internal/prune"
	"sitewatch/internal/report"
	"sitewatch/internal/scanner"
	"sitewatch/internal/scheduler"
	"sitewatch/internal/screenshot"
	"sitewatch/internal/snapshot"
	"sitewatch/internal/storage/sqlite"
	"sitewatch/internal/whois"
)

func main() {
	// The main function is the entry point of the application.
	// It's responsible for initializing components, starting the server,
	// and handling graceful shutdown.
	if err := run(); err != nil {
		log.Fatalf("application failed: %v", err)
	}
	log.Println("application shut down gracefully")
}

func run() error {
	configPath := flag.String("config", "", "path to YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}

	// Create a context that is canceled on OS signals like SIGINT or SIGTERM.
	// This is the foundation for graceful shutdown.
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	log.Println("initializing SQLite database connection...")
	store, err := sqlite.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to initialize sqlite storage: %w", err)
	}
	defer store.Close()
	log.Println("database connection successful")

	snapshots, err := snapshot.NewStore(cfg.SnapshotDir)
	if err != nil {
		return fmt.Errorf("failed to initialize snapshot store: %w", err)
	}

	var shots screenshot.Screenshotter
	if cfg.Screenshots {
		capturer, err := screenshot.NewChromeCapturer(cfg.ChromePath, cfg.ScreenshotDir)
		if err != nil {
			log.Printf("screenshots disabled: %v", err)
		} else {
			shots = capturer
		}
	}

	mon := monitor.New(
		store,
		probe.New(cfg.RequestTimeout),
		whois.NewResolver(),
		dnsinfo.New(cfg.DNSResolvers),
		scanner.New(snapshots, cfg.ScanRateLimit),
		monitor.Options{
			Screenshots: shots,
			Notifiers:   []monitor.Notifier{monitor.LogNotifier{}},
		},
	)

	reports := report.NewService(store, mailer.NewSMTPSender(cfg.SMTPAddr, cfg.SMTPFrom), cfg.ReportRecipient)
	pruner := prune.New(store, snapshots, cfg.RetentionDays)

	schedulerSvc := scheduler.New(
		store,
		scheduler.NewWorkerPool(mon, cfg.MaxConcurrency),
		reports,
		pruner,
		cfg.CheckInterval,
	)
	server := api.NewServer(cfg.HTTPPort, store, mon, reports)

	schedulerSvc.Start()
	server.Start()

	log.Println("application is running...")

	// Block here until the context is canceled (e.g., by pressing Ctrl+C).
	<-ctx.Done()

	log.Println("shutdown signal received, starting graceful shutdown...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownGrace)
	defer shutdownCancel()

	// Stop the scheduler first to prevent new batches from starting.
	schedulerSvc.Stop()

	// Then, shut down the HTTP server, allowing in-flight requests to finish.
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http server shutdown error: %w", err)
	}

	return nil
}
