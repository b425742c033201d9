/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the agency engine HTTP server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load configuration (defaults, agency.yaml, .env, AGENCY_* env)
  2. Apply command-line flag overrides
  3. Build the zap logger
  4. Initialize SQLite store
  5. Create API handler and router
  6. Start the SLA sweeper and the server

COMMAND-LINE FLAGS:
  -config  Config file path (default: ./agency.yaml when present)
  -port    HTTP server port (overrides server.port)
  -db      SQLite database path (overrides database.path)
           Use ":memory:" for in-memory database

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop the SLA sweeper
  2. Stop accepting new connections
  3. Wait for active requests (server.shutdown_timeout)
  4. Close database connection

EXAMPLES:
  ./server -db="./data/agency.db"
  ./server -db=":memory:" -port=3000
  AGENCY_ENGINE_TIME_ZONE=America/Sao_Paulo ./server

SEE ALSO:
  - config/config.go: Configuration sources
  - api/server.go: Router configuration
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/warp/agency-engine/api"
	"github.com/warp/agency-engine/config"
	"github.com/warp/agency-engine/logger"
	"github.com/warp/agency-engine/sla"
	"github.com/warp/agency-engine/store/sqlite"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "server: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Flags
	configPath := flag.String("config", "", "Config file path")
	port := flag.Int("port", 0, "HTTP server port (overrides config)")
	dbPath := flag.String("db", "", "SQLite database path (overrides config)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if *port > 0 {
		cfg.Server.Port = *port
	}
	if *dbPath != "" {
		cfg.Database.Path = *dbPath
	}

	log, err := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	// Initialize store
	store, err := sqlite.New(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("init database: %w", err)
	}
	defer store.Close()

	// Initialize handler
	handler, err := api.NewHandler(store, sla.NewClassifier(cfg.SLARules()), loc, log)
	if err != nil {
		return fmt.Errorf("init handler: %w", err)
	}
	handler.Prorate = cfg.Prorate()

	router := api.NewRouter(handler, cfg.CORS.AllowedOrigins)

	server := &http.Server{
		Addr:         cfg.ServerAddr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	sweeper := api.NewSLASweeper(handler, cfg.Scheduler.Interval)
	sweeper.Enabled = cfg.Scheduler.Enabled
	sweeper.Start()

	serverErr := make(chan error, 1)
	go func() {
		log.Info("server starting",
			zap.String("addr", cfg.ServerAddr()),
			zap.String("db", cfg.Database.Path),
			zap.String("time_zone", loc.String()),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-serverErr:
		sweeper.Stop()
		return fmt.Errorf("server failed: %w", err)
	}

	log.Info("shutting down server")
	sweeper.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("forced shutdown: %w", err)
	}

	log.Info("server stopped")
	return nil
}
