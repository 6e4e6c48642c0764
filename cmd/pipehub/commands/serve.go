package commands

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"pipehub/internal/api"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the pipehub HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := setup()
		if err != nil {
			return err
		}
		defer a.close()

		server := api.NewServer(a.cfg, a.store, a.scraping, a.analysis, a.metrics, a.logger)

		errCh := make(chan error, 1)
		go func() {
			if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
		}()
		a.logger.Info("server started", zap.String("port", a.cfg.ServerPort))

		select {
		case err := <-errCh:
			return err
		case <-cmd.Context().Done():
		}

		a.logger.Info("shutting down server...")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			return err
		}
		a.logger.Info("server exiting")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
