package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/carenotes/veil/internal/anonymizer"
	"github.com/carenotes/veil/internal/audit"
	"github.com/carenotes/veil/internal/config"
	"github.com/carenotes/veil/internal/logger"
	"github.com/carenotes/veil/internal/server"
	"github.com/carenotes/veil/internal/session"
	"go.uber.org/zap"
)

var (
	version = "0.1.0"
	commit  = "dev"
	date    = "unknown"
)

func main() {
	// Parse command line flags
	var (
		configPath  = flag.String("config", "", "Path to configuration file")
		showVersion = flag.Bool("version", false, "Show version information")
		healthCheck = flag.Bool("health-check", false, "Perform health check and exit")
	)
	flag.Parse()

	// Show version and exit
	if *showVersion {
		fmt.Printf("veil %s (commit: %s, built: %s)\n", version, commit, date)
		os.Exit(0)
	}

	// Perform health check and exit
	if *healthCheck {
		performHealthCheck()
		return
	}

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	loggerConfig := logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	}

	if cfg.Logging.File.Enabled {
		loggerConfig.File = &logger.FileConfig{
			Enabled:  cfg.Logging.File.Enabled,
			Path:     cfg.Logging.File.Path,
			MaxSize:  cfg.Logging.File.MaxSize,
			MaxAge:   cfg.Logging.File.MaxAge,
			Compress: cfg.Logging.File.Compress,
		}
	}

	log, err := logger.New(loggerConfig)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	log.Info("Starting veil",
		zap.String("version", version),
		zap.String("commit", commit),
		zap.String("build_date", date),
		zap.Int("port", cfg.Server.Port),
	)

	// Watch for config file changes. Most settings need a restart; the
	// watcher just surfaces that a reload is pending.
	if err := config.Watch(cfg, func(updated *config.Config) {
		log.Info("Configuration file changed; restart to apply",
			zap.Bool("trace", updated.Engine.Trace))
	}); err != nil {
		log.Warn("Config watcher unavailable", zap.Error(err))
	}

	// Create anonymization engine
	engine, err := anonymizer.New(cfg.Engine, log.WithComponent("anonymizer"))
	if err != nil {
		log.Fatal("Failed to create anonymization engine", zap.Error(err))
	}

	// Create session mapping store
	sessions, err := newSessionStore(cfg, log)
	if err != nil {
		log.Fatal("Failed to create session store", zap.Error(err))
	}
	defer sessions.Close()

	// Create audit sink
	auditor, err := newAuditor(cfg, log)
	if err != nil {
		log.Fatal("Failed to create audit store", zap.Error(err))
	}
	defer auditor.Close()

	// Create gateway server
	srv, err := server.New(cfg, log, engine, sessions, auditor)
	if err != nil {
		log.Fatal("Failed to create gateway server", zap.Error(err))
	}

	// Start server in goroutine
	serverErrors := make(chan error, 1)
	go func() {
		log.Info("HTTP server listening", zap.Int("port", cfg.Server.Port))
		serverErrors <- srv.Start()
	}()

	// Setup graceful shutdown
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	// Wait for shutdown signal or server error
	select {
	case err := <-serverErrors:
		log.Error("Server error", zap.Error(err))
	case sig := <-shutdown:
		log.Info("Shutdown signal received", zap.String("signal", sig.String()))

		// Give outstanding requests 30 seconds to complete
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Stop(ctx); err != nil {
			log.Error("Failed to shutdown server gracefully", zap.Error(err))
			os.Exit(1)
		}

		log.Info("Server shutdown complete")
	}
}

// newSessionStore picks the configured session backend.
func newSessionStore(cfg *config.Config, log *logger.Logger) (session.Store, error) {
	switch cfg.Session.Backend {
	case "redis":
		return session.NewRedisStore(cfg.Session, log.WithComponent("session").Logger)
	default:
		log.Info("Using in-memory session store")
		return session.NewMemoryStore(), nil
	}
}

// newAuditor returns the postgres sink when auditing is on, a no-op
// otherwise.
func newAuditor(cfg *config.Config, log *logger.Logger) (audit.Recorder, error) {
	if !cfg.Audit.Enabled {
		return audit.Nop{}, nil
	}
	return audit.NewStore(cfg.Audit, log.WithComponent("audit").Logger)
}

// performHealthCheck performs a health check against the running server
func performHealthCheck() {
	client := &http.Client{
		Timeout: 5 * time.Second,
	}

	resp, err := client.Get("http://localhost:8080/health")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Health check failed: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		fmt.Fprintf(os.Stderr, "Health check failed: HTTP %d\n", resp.StatusCode)
		os.Exit(1)
	}

	fmt.Println("Health check passed")
	os.Exit(0)
}
