package cli

import (
	gocontext "context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/example/forge/internal/adapters/httpapi"
	"github.com/example/forge/internal/wire"
)

const shutdownTimeout = 10 * time.Second

// ServeCmd returns the serve command
func ServeCmd() *cobra.Command {
	var listen string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the forge HTTP API",
		Long: `Serve the planning and orchestration API until interrupted.

Examples:
  forge serve
  forge serve --listen 127.0.0.1:9090
  FORGE_LOG_FORMAT=console forge serve`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(gocontext.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			app, err := wire.Get(ctx, configPath)
			if err != nil {
				return fmt.Errorf("failed to open forge: %w", err)
			}
			defer func() {
				closeCtx, cancel := gocontext.WithTimeout(gocontext.Background(), shutdownTimeout)
				defer cancel()
				if err := app.Close(closeCtx); err != nil {
					fmt.Fprintln(os.Stderr, err)
				}
			}()

			if listen == "" {
				listen = app.Config.ListenAddr
			}
			srv := &http.Server{
				Addr:              listen,
				Handler:           httpapi.NewServer(app.Services, app.Logger).Router(),
				ReadHeaderTimeout: 10 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				app.Logger.Info("forge api listening", zap.String("addr", listen))
				errCh <- srv.ListenAndServe()
			}()

			select {
			case err := <-errCh:
				if !errors.Is(err, http.ErrServerClosed) {
					return fmt.Errorf("server failed: %w", err)
				}
				return nil
			case <-ctx.Done():
			}

			app.Logger.Info("shutting down")
			shutdownCtx, cancel := gocontext.WithTimeout(gocontext.Background(), shutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("failed to shut down server: %w", err)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&listen, "listen", "", "Listen address (defaults to listen_addr)")
	return cmd
}
