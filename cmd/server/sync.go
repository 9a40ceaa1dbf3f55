package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Run one reconcile pass and print its summary",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(ctx context.Context, a *app) error {
			result, err := a.engine.ReconcileAll(ctx)
			if err != nil {
				return err
			}
			return printJSON(result)
		})
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show connectivity and the local sync backlog",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(ctx context.Context, a *app) error {
			status, err := a.engine.Status(ctx)
			if err != nil {
				return err
			}
			return printJSON(status)
		})
	},
}

var queueCmd = &cobra.Command{
	Use:   "queue",
	Short: "Inspect and manage the pending sync queue",
}

var queueListCmd = &cobra.Command{
	Use:   "list",
	Short: "List pending queue entries",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(ctx context.Context, a *app) error {
			entries, err := a.engine.ListQueue(ctx)
			if err != nil {
				return err
			}
			return printJSON(entries)
		})
	},
}

var queueRetryCmd = &cobra.Command{
	Use:   "retry",
	Short: "Reset attempt counters so exhausted items are retried",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(ctx context.Context, a *app) error {
			records, entries, err := a.engine.RetryExhausted(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("Reset %d record(s) and %d queue entries\n", records, entries)
			return nil
		})
	},
}

var queueClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete every local record and queue entry",
	Long: `Delete every local beneficiary, child and queue entry on this device.

Unsynced records are lost. The remote store is not touched.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		confirm, _ := cmd.Flags().GetBool("confirm")
		if !confirm {
			return fmt.Errorf("refusing to clear local data without --confirm")
		}
		return withApp(func(ctx context.Context, a *app) error {
			if err := a.engine.ClearLocalData(ctx); err != nil {
				return err
			}
			fmt.Println("Local data cleared")
			return nil
		})
	},
}

func withApp(fn func(ctx context.Context, a *app) error) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func init() {
	queueClearCmd.Flags().Bool("confirm", false, "confirm that unsynced local data may be lost")
	queueCmd.AddCommand(queueListCmd, queueRetryCmd, queueClearCmd)
	rootCmd.AddCommand(syncCmd, statusCmd, queueCmd)
}
