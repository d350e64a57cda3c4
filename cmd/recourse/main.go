package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"github.com/vietddude/stylelog"

	"github.com/vietddude/recourse/internal/control"
	"github.com/vietddude/recourse/internal/core/config"
)

func main() {
	// Parse flags
	configPath := flag.String("config", "config.yaml", "Path to configuration file")
	interval := flag.Duration("interval", 0, "Run the scheduled pass repeatedly at this interval (0 = one pass and exit)")
	isDebug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	// A missing .env is fine; config can come from the YAML file alone.
	_ = godotenv.Load()

	// Load Configuration first (before setting up logger)
	cfg, err := config.Load(*configPath)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			stylelog.InitDefault()
			slog.Error("Failed to load config", "error", err)
			os.Exit(1)
		}
		cfg = config.Default()
	}

	slogLevel := slog.LevelInfo
	if *isDebug || cfg.Logging.Level == "debug" {
		slogLevel = slog.LevelDebug
	}

	// Initialize stylelog with tint.Options for level control
	stylelog.InitDefault(
		&tint.Options{
			Level:      slogLevel,
			TimeFormat: time.RFC3339,
		})
	slog.Info("Logger initialized", "level", slogLevel.String())

	app, err := control.NewApp(cfg, slog.Default())
	if err != nil {
		slog.Error("Failed to initialize app", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	if *interval <= 0 {
		// One-shot mode: a single scheduled pass, then exit. This is the mode
		// cron and container schedulers run.
		if err := app.RunScheduled(ctx); err != nil {
			slog.Error("Scheduled pass aborted", "error", err)
			os.Exit(1)
		}
		if err := app.Stop(context.Background()); err != nil {
			slog.Warn("Error during shutdown", "error", err)
		}
		return
	}

	// Long-running mode: health server, queue workers, periodic scans.
	app.Start(ctx)

	ticker := time.NewTicker(*interval)
	defer ticker.Stop()

	if err := app.RunScheduled(ctx); err != nil {
		slog.Error("Scheduled pass aborted", "error", err)
	}

loop:
	for {
		select {
		case sig := <-sigChan:
			slog.Info("Received signal, shutting down...", "signal", sig)
			break loop
		case <-ticker.C:
			if err := app.RunScheduled(ctx); err != nil {
				slog.Error("Scheduled pass aborted", "error", err)
				break loop
			}
		}
	}

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := app.Stop(shutdownCtx); err != nil {
		slog.Error("Error during shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("Stopped gracefully")
}
