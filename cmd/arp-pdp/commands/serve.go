package commands

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/upb/arp-template-pdp/app"
	"github.com/upb/arp-template-pdp/config"
	"github.com/upb/arp-template-pdp/routes"
	"go.uber.org/zap"
)

func newServeCmd(st *state) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the PDP HTTP server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr == "" {
				addr = st.cfg.Server.Address()
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			ln, err := net.Listen("tcp", addr)
			if err != nil {
				return fmt.Errorf("listen on %s: %w", addr, err)
			}
			return serve(ctx, st.cfg, st.logger, ln)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default SERVER_HOST:PORT)")

	return cmd
}

// serve runs the HTTP server on ln until ctx is done, then shuts down gracefully
func serve(ctx context.Context, cfg *config.Config, logger *zap.Logger, ln net.Listener) error {
	deps, err := app.NewDependencies(ctx, cfg, logger)
	if err != nil {
		_ = ln.Close()
		return fmt.Errorf("failed to initialize dependencies: %w", err)
	}

	srv := &http.Server{
		Handler:      routes.SetupRoutes(deps),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting",
			zap.String("address", ln.Addr().String()),
			zap.String("environment", cfg.Environment),
			zap.String("policy_mode", deps.Evaluator.Mode()))
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	var serveErr error
	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case serveErr = <-errCh:
		logger.Error("server failed", zap.Error(serveErr))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown failed", zap.Error(err))
	}
	if err := deps.Close(shutdownCtx); err != nil {
		logger.Error("dependency shutdown failed", zap.Error(err))
	}

	logger.Info("server stopped")
	return serveErr
}
