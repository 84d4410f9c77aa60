package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"zapcentral/internal/config"
	"zapcentral/internal/constants"
	"zapcentral/internal/database"
	"zapcentral/internal/models"
	"zapcentral/internal/retry"
	"zapcentral/internal/service"
	"zapcentral/internal/tracing"
	"zapcentral/pkg/wpp"
	"zapcentral/pkg/wpp/types"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

var (
	// Version information (set at build time)
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"

	// CLI flags
	verbose    = flag.Bool("verbose", false, "Enable verbose logging (includes sensitive information)")
	configPath = flag.String("config", "config.json", "Path to configuration file")
	version    = flag.Bool("version", false, "Show version information")
)

func main() {
	flag.Parse()

	if *version {
		fmt.Printf("ZapCentral %s\nBuild Time: %s\nGit Commit: %s\n", Version, BuildTime, GitCommit)
		os.Exit(0)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		logrus.Fatalf("Application error: %v", err)
	}
}

func run(ctx context.Context) error {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	// Local .env files are optional; containers inject the environment directly
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		logger.WithError(err).Warn("Failed to load .env file")
	}

	logger.WithFields(logrus.Fields{
		"version": Version,
		"build":   BuildTime,
		"commit":  GitCommit,
	}).Info("Starting ZapCentral")

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	configureLogLevel(logger, cfg)

	tracingManager := tracing.NewTracingManager(cfg.Tracing, logger)
	if err := tracingManager.Initialize(ctx); err != nil {
		logger.Warnf("Failed to initialize tracing: %v", err)
	}
	defer func() {
		if err := tracingManager.Shutdown(context.Background()); err != nil {
			logger.Warnf("Failed to shutdown tracing: %v", err)
		}
	}()

	// Initialize the reminder store with exponential backoff retry
	var db *database.Database
	backoff := retry.NewBackoff(retry.BackoffConfig{
		InitialDelay: time.Duration(cfg.Retry.InitialBackoffMs) * time.Millisecond,
		MaxDelay:     time.Duration(cfg.Retry.MaxBackoffMs) * time.Millisecond,
		Multiplier:   2.0,
		MaxAttempts:  cfg.Retry.MaxAttempts,
		Jitter:       true,
	})

	err = backoff.Retry(ctx, func() error {
		var initErr error
		db, initErr = database.New(cfg.Database.Path)
		if initErr != nil {
			logger.Warnf("Failed to initialize database: %v", initErr)
		}
		return initErr
	})
	if err != nil {
		return fmt.Errorf("failed to initialize database after retries: %w", err)
	}
	defer db.Close()

	connector := wpp.NewConnector(types.ClientConfig{
		BaseURL:        cfg.WPP.APIBaseURL,
		APIKey:         cfg.WPP.APIKey,
		Timeout:        time.Duration(cfg.WPP.TimeoutMs) * time.Millisecond,
		ConnectTimeout: time.Duration(cfg.WPP.ConnectTimeoutSec) * time.Second,
	}, logger)

	registry := service.NewRegistry(connector, cfg.TokensDir, logger)

	if restored := registry.RestoreSessions(); restored > 0 {
		logger.WithField("count", restored).Info("Restored sessions from stored tokens")
	}

	// Validated by config.LoadConfig
	loc, err := time.LoadLocation(cfg.TimeZone)
	if err != nil {
		return fmt.Errorf("failed to load time zone: %w", err)
	}

	scheduler := service.NewReminderScheduler(db, registry, cfg.Scheduler, loc, logger)
	scheduler.Start(ctx)
	defer scheduler.Stop()

	server := NewServer(ctx, cfg.Server, registry, scheduler, logger)
	serverErrCh := make(chan error, constants.ServerErrorChannelSize)
	go func() {
		if err := server.Start(); err != nil {
			serverErrCh <- fmt.Errorf("server error: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("Received shutdown signal")
	case err := <-serverErrCh:
		logger.Error(err)
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(constants.DefaultGracefulShutdownSec)*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shutdown server gracefully: %w", err)
	}

	logger.Info("Server shutdown completed")
	return nil
}

func configureLogLevel(logger *logrus.Logger, cfg *models.Config) {
	if *verbose {
		logger.SetLevel(logrus.DebugLevel)
		logger.Info("Verbose logging enabled - sensitive information will be logged")
		return
	}
	if cfg.LogLevel == "" {
		logger.SetLevel(logrus.InfoLevel)
		return
	}
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		logger.Warnf("Invalid log level %q, defaulting to info", cfg.LogLevel)
		logger.SetLevel(logrus.InfoLevel)
		return
	}
	if level > logrus.InfoLevel {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)
}
