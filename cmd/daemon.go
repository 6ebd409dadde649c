package cmd

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/kpihub/scmscan/internal/scheduler"
)

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Run scheduled scans over the configured repositories",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		sched := scheduler.New(a.executor, a.store, a.cfg.Daemon)
		if err := sched.Start(ctx); err != nil {
			return err
		}
		defer sched.Stop()

		if port := a.cfg.Daemon.MetricsPort; port > 0 {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			srv := &http.Server{
				Addr:              fmt.Sprintf("127.0.0.1:%d", port),
				Handler:           mux,
				ReadHeaderTimeout: 5 * time.Second,
			}
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					slog.Error("metrics server failed", "error", err)
				}
			}()
			defer srv.Close()
			slog.Info("metrics endpoint up", "addr", srv.Addr)
		}

		// One sweep up front so a fresh daemon is useful before the first tick.
		if err := sched.RunSweep(ctx); err != nil {
			slog.Warn("initial sweep failed", "error", err)
		}

		<-ctx.Done()
		slog.Info("daemon shutting down")
		return nil
	},
}
