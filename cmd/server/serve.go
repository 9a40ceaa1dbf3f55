package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prudhvinik1/fieldsync/internal/handlers"
	"github.com/prudhvinik1/fieldsync/internal/logging"
	"github.com/prudhvinik1/fieldsync/internal/scheduler"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and the background reconcile job",
	Long: `Start the form API, the websocket streams and the periodic reconcile job.

The reconcile job runs once at startup, then every SYNC_INTERVAL while the
network is available. A transition from offline to online triggers an
extra run right away.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		origins, _ := cmd.Flags().GetStringSlice("origin")

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		jobs := scheduler.New(a.oracle, scheduler.Options{MinBackoff: a.cfg.SyncMinBackoff})
		defer jobs.Stop()
		jobs.EnqueueUniquePeriodic(scheduler.ReconcileJobName, a.cfg.SyncInterval, a.engine.ReconcileJob)
		go triggerOnReconnect(ctx, a, jobs)

		server := &http.Server{
			Addr: fmt.Sprintf(":%s", a.cfg.ServerPort),
			Handler: handlers.NewRouter(handlers.RouterConfig{
				Auth:           a.auth,
				Engine:         a.engine,
				Jobs:           jobs,
				Oracle:         a.oracle,
				Metrics:        a.metrics.Handler(),
				OriginPatterns: origins,
			}),
		}

		// graceful shutdown
		go func() {
			<-ctx.Done()

			logging.Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			server.Shutdown(shutdownCtx)
		}()

		logging.Info("starting server", logging.Fields{"port": a.cfg.ServerPort})
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}

		logging.Info("server stopped gracefully")
		return nil
	},
}

// triggerOnReconnect wakes the reconcile job whenever the network comes
// back, instead of waiting out the interval.
func triggerOnReconnect(ctx context.Context, a *app, jobs *scheduler.Scheduler) {
	online := a.oracle.IsAvailable()
	for state := range a.oracle.Observe(ctx) {
		if state && !online {
			logging.Info("network available, triggering reconcile")
			jobs.Trigger(scheduler.ReconcileJobName)
		}
		online = state
	}
}

func init() {
	serveCmd.Flags().StringSlice("origin", nil, "allowed websocket origin patterns (repeatable)")
	rootCmd.AddCommand(serveCmd)
}
