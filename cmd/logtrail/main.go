// Package main provides the entry point for LogTrail.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/logtrail/logtrail/internal/api"
	"github.com/logtrail/logtrail/internal/appinfo"
	"github.com/logtrail/logtrail/internal/config"
	"github.com/logtrail/logtrail/internal/correlate"
	"github.com/logtrail/logtrail/internal/event"
	"github.com/logtrail/logtrail/internal/ingest"
	"github.com/logtrail/logtrail/internal/lookup"
	"github.com/logtrail/logtrail/internal/notify"
	"github.com/logtrail/logtrail/internal/report"
	"github.com/logtrail/logtrail/internal/singleinstance"
	"github.com/logtrail/logtrail/internal/store"
	"github.com/logtrail/logtrail/internal/version"
)

func main() {
	// 1. Single instance check (Windows: mutex, other: no-op)
	release, ok, err := singleinstance.AcquireLock()
	if err != nil {
		log.Fatalf("Failed to acquire lock: %v", err)
	}
	if !ok {
		log.Println("Another instance is already running")
		os.Exit(1)
	}
	defer release()

	// 2. Load configuration (corrupt config falls back to defaults with warning)
	cfg, _ := config.LoadConfig()
	cfg = config.ApplyEnvOverrides(cfg)
	secrets, secretsStatus, err := config.LoadSecrets()
	if err != nil {
		log.Printf("Warning: %v", err)
	}

	// 3. Ensure LAN auth credentials if LAN mode is enabled
	updated, generatedPw, err := config.EnsureLanAuth(&secrets, cfg.LanEnabled)
	if err != nil {
		log.Fatalf("Failed to ensure LAN auth: %v", err)
	}

	// Only save if loaded successfully or file was missing (prevent overwrite on fallback)
	if updated && secretsStatus != config.SecretsFallback {
		if err := config.SaveSecrets(secrets); err != nil {
			log.Fatalf("Failed to save secrets: %v", err)
		}
		if generatedPw != "" {
			// Write password to file instead of logging
			pwPath, err := config.WritePasswordFile(secrets.BasicAuthUsername, generatedPw)
			if err != nil {
				log.Printf("Warning: failed to write password file: %v", err)
				// Fallback to log output if file write fails
				log.Println("=== GENERATED BASIC AUTH CREDENTIALS ===")
				log.Printf("Username: %s", secrets.BasicAuthUsername)
				log.Printf("Password: %s", generatedPw)
				log.Println("=========================================")
			} else {
				log.Println("=== BASIC AUTH CREDENTIALS GENERATED ===")
				log.Printf("Credentials saved to: %s", pwPath)
				log.Println("Delete this file after saving the credentials!")
				log.Println("=========================================")
			}
		}
	} else if updated && secretsStatus == config.SecretsFallback {
		log.Println("WARNING: Secrets file has errors; new credentials not saved to avoid data loss")
		log.Println("Please fix or delete secrets.json and restart")
	}

	// 4. Parse flags (port can override config)
	port := flag.Int("port", cfg.Port, "HTTP server port")
	flag.Parse()

	// 5. Open SQLite store
	dbPath := cfg.DBPath
	if dbPath == "" {
		dataDir, err := config.EnsureDataDir()
		if err != nil {
			log.Fatalf("Failed to ensure data directory: %v", err)
		}
		dbPath = filepath.Join(dataDir, appinfo.DatabaseFileName)
	}
	db, err := store.Open(dbPath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	// 6. Create cancellable context for background workers
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 7. Build the correlator from config
	corr := correlate.New(
		correlate.WithStrict(cfg.StrictCorrelation),
		correlate.WithPendingTTL(time.Duration(cfg.PendingTTLSec)*time.Second),
	)

	// 8. Create notifier and reporter when a webhook is configured
	var notifier *notify.Notifier
	var reporter *report.Reporter
	if !secrets.DiscordWebhookURL.IsEmpty() {
		sender := notify.NewDiscordSender(secrets.DiscordWebhookURL)
		notifier = notify.NewNotifier(sender, cfg.NotifyBatchSec, notify.FilterConfig{
			NotifyOnConnect:    cfg.NotifyOnConnect,
			NotifyOnDisconnect: cfg.NotifyOnDisconnect,
		})
		go notifier.Run(ctx)
		reporter = report.New(db, sender)
		log.Println("Discord notifications enabled")
	} else {
		log.Println("Discord webhook not configured, notifications disabled")
	}

	// 9. Build the ingestion pipeline
	resolver := lookup.Resolver(lookup.Nop{})
	if cfg.LookupEnabled {
		resolver = lookup.NewSteamResolver()
		log.Println("Profile name lookup enabled")
	}

	pipelineOpts := []ingest.Option{
		ingest.WithResolver(resolver),
	}
	if notifier != nil {
		pipelineOpts = append(pipelineOpts, ingest.WithOnCommit(func(_ context.Context, change event.SessionChange) {
			notifier.Enqueue(&change)
		}))
	}
	pipeline := ingest.New(db, corr, pipelineOpts...)

	// 10. Determine bind address
	host := "127.0.0.1"
	if cfg.LanEnabled {
		host = "0.0.0.0"
	}
	addr := fmt.Sprintf("%s:%d", host, *port)

	// Build server options
	serverOpts := []api.ServerOption{}
	if reporter != nil {
		serverOpts = append(serverOpts, api.WithReporter(reporter))
	}

	// Enable Basic Auth and rate limiting for LAN mode (credentials are
	// guaranteed by EnsureLanAuth)
	var limiter *api.RateLimiter
	if cfg.LanEnabled {
		serverOpts = append(serverOpts, api.WithBasicAuth(secrets.BasicAuthUsername, secrets.BasicAuthPassword.Value()))
		limiter = api.NewRateLimiter(api.DefaultRateLimiterConfig())
		serverOpts = append(serverOpts, api.WithRateLimiter(limiter))
		log.Println("Basic Auth and rate limiting enabled for LAN mode")
	}

	server := api.NewServer(addr, pipeline, db, corr, serverOpts...)

	// Graceful shutdown
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	// Error channel for server errors
	errCh := make(chan error, 1)

	go func() {
		log.Printf("Starting LogTrail v%s on %s", version.String(), addr)
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	// Wait for shutdown signal or server error
	select {
	case <-done:
		log.Println("Shutting down...")
	case err := <-errCh:
		log.Printf("Server error: %v", err)
		os.Exit(1)
	}

	// Cancel background context first (stops the notifier run loop)
	cancel()

	// Stop notifier gracefully (best-effort flush)
	if notifier != nil {
		stopCtx, stopCancel := context.WithTimeout(context.Background(), 3*time.Second)
		if err := notifier.Stop(stopCtx); err != nil {
			log.Printf("Notifier stop error: %v", err)
		}
		stopCancel()
	}

	if limiter != nil {
		limiter.Stop()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}

	log.Println("Server stopped")
}
