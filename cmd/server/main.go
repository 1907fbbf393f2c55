/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the incentive engine HTTP server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load config (.env, environment), then apply flags
  2. Open the configured store, seed the staff directory
  3. Load the commission scheme
  4. Register Prometheus metrics
  5. Configure HTTP router and start with graceful shutdown

COMMAND-LINE FLAGS (override the environment):
  -port       HTTP server port
  -db         SQLite database path (":memory:" for a throwaway database)
  -driver     sqlite | postgres | memory
  -roster     YAML roster file
  -scheme     YAML or JSON scheme file
  -log-level  zerolog level

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Close database connection
  4. Exit

EXAMPLES:
  ./server -db="./data/incentives.db"
  INCENTIVE_DB_DRIVER=postgres DATABASE_URL=postgres://... ./server
  ./server -driver=memory -port=3000

SEE ALSO:
  - config/config.go: Environment variables
  - api/server.go: Router configuration
  - app/app.go: Dependency wiring
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

	"github.com/prometheus/client_golang/prometheus"

	"github.com/warp/incentive-engine/api"
	"github.com/warp/incentive-engine/app"
	"github.com/warp/incentive-engine/config"
	"github.com/warp/incentive-engine/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	// Flags
	flag.IntVar(&cfg.Port, "port", cfg.Port, "HTTP server port")
	flag.StringVar(&cfg.DBPath, "db", cfg.DBPath, "SQLite database path")
	flag.StringVar(&cfg.DBDriver, "driver", cfg.DBDriver, "Store driver: sqlite, postgres or memory")
	flag.StringVar(&cfg.RosterFile, "roster", cfg.RosterFile, "YAML roster file")
	flag.StringVar(&cfg.SchemeFile, "scheme", cfg.SchemeFile, "YAML or JSON scheme file")
	flag.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level")
	flag.Parse()

	log := logger.New(cfg.LogLevel, cfg.LogPretty)
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	ctx := logger.WithContext(context.Background(), log)
	a, err := app.Build(ctx, cfg, log, prometheus.DefaultRegisterer)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize")
	}
	defer a.Close()

	handler := api.NewHandler(a.Store, a.Engine, a.Reader, a.Directory, log.With().Str("component", "api").Logger())
	router := api.NewRouter(handler, api.RouterOptions{
		CORSOrigins: cfg.CORSOrigins,
		Gatherer:    prometheus.DefaultGatherer,
	})

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info().Int("port", cfg.Port).Str("driver", cfg.DBDriver).Msg("server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}
