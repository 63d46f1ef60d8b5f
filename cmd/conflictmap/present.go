package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"conflictmap/pkg/config"
	"conflictmap/pkg/logger"
	"conflictmap/pkg/metrics"
	"conflictmap/pkg/present"
	"conflictmap/pkg/ui"
)

const shutdownTimeout = 5 * time.Second

// presentCmd represents the present command
var presentCmd = &cobra.Command{
	Use:   "present",
	Short: "Serve the animation over HTTP until interrupted",
	Long: `Serve a page showing the animation at 800x800, the raw GIF at
/animation.gif, a health check at /healthz and Prometheus metrics at /metrics.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		ctx, stop := signalContext()
		defer stop()
		return serve(ctx, cfg, metrics.NewMetrics())
	},
}

func init() {
	rootCmd.AddCommand(presentCmd)
	presentCmd.Flags().StringVarP(&gifPath, "output", "o", "", "animation to serve (default: conflict_ethiopia.gif)")
	presentCmd.Flags().StringVar(&presentAddr, "addr", "", "listen address (default: 127.0.0.1:8085)")
}

// serve runs the presentation server until ctx is done
func serve(ctx context.Context, cfg *config.Config, m *metrics.Metrics) error {
	opts := present.ServerOptionsFromConfig(cfg)
	opts.Gatherer = m.Gatherer()
	opts.Logger = logger.GetLogger()
	server := present.NewServer(opts)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()
	ui.PrintHighlight("Presenting " + server.URL() + " (Ctrl+C to stop)")

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	logger.Info("Presentation server stopped")
	return nil
}
