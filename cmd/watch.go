package cmd

import (
	"bytes"
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"tranche-node/metrics"
)

var WatchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Keep the campaign view fresh and report changes until interrupted",
	Args:  cobra.NoArgs,
	RunE:  watch,
}

func init() {
	WatchCmd.Flags().String("metrics-addr", "", "Serve prometheus metrics on this address")
}

func watch(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	metricsAddr, _ := cmd.Flags().GetString("metrics-addr")
	if metricsAddr == "" {
		metricsAddr = cfg.Client.MetricsAddr
	}

	registry := prometheus.NewRegistry()
	m := metrics.New(registry)
	controller, err := newController(ctx, false, m)
	if err != nil {
		return err
	}
	defer controller.Session().Close()

	if metricsAddr != "" {
		server := &http.Server{Addr: metricsAddr, Handler: promhttp.HandlerFor(registry, promhttp.HandlerOpts{})}
		go func() {
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("Metrics server stopped", "err", err)
			}
		}()
		defer server.Close()
		logger.Info("Serving metrics", "addr", metricsAddr)
	}

	threshold, err := controller.Threshold(ctx)
	if err != nil {
		return err
	}
	printSnapshot(os.Stdout, controller.Snapshot(), threshold)
	last := controller.Snapshot().Hash()

	controller.StartAutoRefresh(cfg.Client.RefreshInterval)
	controller.Session().Every("report", cfg.Client.RefreshInterval, func(ctx context.Context) error {
		snapshot := controller.Snapshot()
		if hash := snapshot.Hash(); !bytes.Equal(hash, last) {
			last = hash
			printSnapshot(os.Stdout, snapshot, threshold)
		}
		return nil
	})

	sign := make(chan os.Signal, 1)
	signal.Notify(sign, syscall.SIGINT, syscall.SIGTERM)
	<-sign
	return nil
}
