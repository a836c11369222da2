package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/TheusHen/OpenFSW/logging"
	"github.com/TheusHen/OpenFSW/metrics"
)

var serveMetricsAddr string

var serveMetricsCmd = &cobra.Command{
	Use:   "serve-metrics",
	Short: "Start the Prometheus exporter for the simulator's live state",
	RunE:  runServeMetrics,
}

func init() {
	rootCmd.AddCommand(serveMetricsCmd)
	serveMetricsCmd.Flags().StringVar(&serveMetricsAddr, "addr", ":9090", "listen address for the /metrics endpoint")
}

func runServeMetrics(cmd *cobra.Command, args []string) error {
	st, err := newStack(globalState, configPath())
	if err != nil {
		return err
	}
	defer st.Close()

	reg := metrics.NewRegistry(metrics.Sources{
		Scheduler:   st.Scheduler,
		Mode:        st.Mode,
		FDIR:        st.FDIR,
		Telemetry:   st.Telemetry,
		Telecommand: st.Telecommand,
		EPS:         st.EPS,
		Health:      st.Health,
		Beacon:      st.Beacon,
	})

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	srv := &http.Server{Addr: serveMetricsAddr, Handler: mux}

	ctx, cancel := runContext()
	defer cancel()

	go func() {
		<-ctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	go func() {
		ticker := time.NewTicker(100 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				st.Mode.Process()
				st.Scheduler.Step(100)
			}
		}
	}()

	logging.Info("openfsw-sim: serving metrics", "addr", serveMetricsAddr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
