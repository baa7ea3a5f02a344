package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"careerforge/internal/app"
	"careerforge/internal/config"
	"careerforge/internal/logger"
)

// ConfigFileEnv names the optional YAML configuration file
const ConfigFileEnv = "CAREERFORGE_CONFIG_FILE"

// FUNCTIONAL DISCOVERY: Main entry point with comprehensive error handling and signal management
// Graceful shutdown on SIGINT/SIGTERM ensures proper resource cleanup
func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// ARCHITECTURAL DISCOVERY: Separate run function enables testing and error handling
func run() error {
	// STEP 1: Load configuration with precedence (file > env > defaults)
	cfg, err := config.Load(os.Getenv(ConfigFileEnv))
	if err != nil {
		return err
	}

	// STEP 2: Structured logging
	log, err := logger.New(cfg.Log.Mode, cfg.Log.Level)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer log.Sync()

	// STEP 3: Setup signal handling for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// STEP 4: Create and start the application
	application, err := app.NewApplication(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("failed to create application: %w", err)
	}
	if err := application.Start(ctx); err != nil {
		_ = application.Stop(context.Background())
		return fmt.Errorf("failed to start application: %w", err)
	}

	// STEP 5: Wait for shutdown signal or server error
	var serveErr error
	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
	case err, ok := <-application.Err():
		if ok {
			serveErr = err
			log.Error("server stopped unexpectedly", "error", err)
		}
	}

	// STEP 6: Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	if err := application.Stop(shutdownCtx); err != nil {
		log.Error("shutdown completed with errors", "error", err)
		if serveErr == nil {
			serveErr = err
		}
	}
	return serveErr
}
