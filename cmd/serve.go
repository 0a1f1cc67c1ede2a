package cmd

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/lehigh-university-libraries/uiaudit/internal/handlers"
	"github.com/lehigh-university-libraries/uiaudit/internal/metrics"
)

func newServeCmd() *cobra.Command {
	var (
		port      string
		staticDir string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start web server for the design review workspace",
		Long: `Starts the uiaudit web interface on the specified port.

The web interface lets you upload a UI screenshot, run an AI design
analysis, auto-correct the design and chat about it. Prometheus metrics
are served at /metrics.`,
		Example: `  # Start server on default port 8888
  uiaudit serve

  # Share sessions between replicas through redis
  SESSION_STORE=redis REDIS_URL=redis://localhost:6379/0 uiaudit serve --port 3000`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), true)
			if err != nil {
				return err
			}
			defer a.close()

			handler, err := handlers.New(handlers.Options{
				Workspace:    a.workspace,
				Spec:         a.cfg.DesignSpec,
				SpecsFile:    a.cfg.DesignSpecsFile,
				OnSpecChange: a.engine.SetSpec,
				StaticDir:    staticDir,
			})
			if err != nil {
				return err
			}

			metrics.Register(prometheus.DefaultRegisterer)

			// Set up routes
			mux := http.NewServeMux()
			handler.Routes(mux)
			mux.Handle("/metrics", metrics.Handler())

			addr := ":" + port
			server := &http.Server{
				Addr:              addr,
				Handler:           mux,
				ReadHeaderTimeout: 10 * time.Second,
			}

			// Start server in goroutine
			serverErr := make(chan error, 1)
			go func() {
				slog.Info("uiaudit interface available", "addr", addr, "url", "http://localhost"+addr)
				if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					serverErr <- err
				}
			}()

			// Wait for context cancellation (Ctrl+C) or server error
			select {
			case <-cmd.Context().Done():
				slog.Info("Shutting down server...")
				// Give server 5 seconds to shut down gracefully
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := server.Shutdown(shutdownCtx); err != nil {
					slog.Error("Server shutdown failed", "err", err)
					return err
				}
				slog.Info("Server stopped")
				return nil
			case err := <-serverErr:
				return err
			}
		},
	}

	cmd.Flags().StringVarP(&port, "port", "p", "8888", "Port to listen on")
	cmd.Flags().StringVar(&staticDir, "static-dir", "static", "Directory holding the web interface")

	return cmd
}
