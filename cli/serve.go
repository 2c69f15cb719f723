/*
serve.go - HTTP server command

STARTUP SEQUENCE:
  1. Open the configured store (migrates the schema)
  2. Create API handler around the engine
  3. Configure HTTP router
  4. Start server with graceful shutdown

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Close database connection
*/
package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/cinemacentral/borderel/api"
	"github.com/cinemacentral/borderel/logger"
)

func (a *app) serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Example: `  # Serve on the configured port (HTTP_PORT, default 8080)
  borderel serve

  # Serve on another port with a demo scenario loaded
  borderel serve --port 3000 --scenario ticket-continuity`,
		RunE: a.runServe,
	}
	cmd.Flags().Int("port", 0, "HTTP server port (default: HTTP_PORT)")
	cmd.Flags().String("scenario", "", "Load a demo scenario on startup (resets the database)")
	return cmd
}

func (a *app) runServe(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("serve")

	port, _ := cmd.Flags().GetInt("port")
	if port == 0 {
		port = a.cfg.HTTPPort
	}
	scenario, _ := cmd.Flags().GetString("scenario")

	engine, closeFn, err := a.openEngine()
	if err != nil {
		return err
	}
	defer closeFn()

	handler := api.NewHandler(engine)
	if scenario != "" {
		if err := handler.LoadScenarioByID(cmd.Context(), scenario); err != nil {
			return err
		}
	}

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      api.NewRouter(handler),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().
			Int("port", port).
			Str("db_driver", a.cfg.DBDriver).
			Msg("Server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-quit:
	}

	log.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Info().Msg("Server stopped")
	return nil
}
