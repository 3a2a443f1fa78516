// Command jobctl is a small administrative CLI that wires the same
// job table as cmd/server against the same SQLite file, without
// starting the cron ticker, and drives the scheduler's
// status/trigger/cancel surface directly — for operators who do not
// want to go through the (out-of-scope) HTTP façade.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/cesargomez89/crateflow/internal/config"
	"github.com/cesargomez89/crateflow/internal/logger"
	"github.com/cesargomez89/crateflow/internal/scheduler"
	"github.com/cesargomez89/crateflow/internal/wiring"
)

var dbPath string

var rootCmd = &cobra.Command{
	Use:   "jobctl",
	Short: "Inspect and drive crateflow's scheduled jobs",
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print each registered job's cron, running state, and last/next run",
	RunE: func(cmd *cobra.Command, args []string) error {
		deps, err := build(cmd.Context())
		if err != nil {
			return err
		}
		defer deps.Close()

		statuses, err := deps.Scheduler.Status()
		if err != nil {
			return fmt.Errorf("fetch status: %w", err)
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(statuses)
	},
}

var triggerCmd = &cobra.Command{
	Use:   "trigger <job>",
	Short: "Trigger a job to run immediately, skipping its cron schedule",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		deps, err := build(cmd.Context())
		if err != nil {
			return err
		}
		defer deps.Close()

		result := deps.Scheduler.Trigger(cmd.Context(), args[0])
		fmt.Println(result)
		if result == scheduler.Unknown {
			return fmt.Errorf("unknown job %q", args[0])
		}
		return nil
	},
}

var cancelTimeout time.Duration

var cancelCmd = &cobra.Command{
	Use:   "cancel <job>",
	Short: "Set a running job's cooperative abort flag and wait for it to exit",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		deps, err := build(cmd.Context())
		if err != nil {
			return err
		}
		defer deps.Close()

		result := deps.Scheduler.Cancel(cmd.Context(), args[0], cancelTimeout)
		fmt.Println(result)
		if result == scheduler.UnknownJob {
			return fmt.Errorf("unknown job %q", args[0])
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "Path to the crateflow SQLite file (defaults to the same CRATEFLOW_DB_PATH the server uses)")
	cancelCmd.Flags().DurationVar(&cancelTimeout, "timeout", 10*time.Second, "How long to wait for cooperative exit")
	rootCmd.AddCommand(statusCmd, triggerCmd, cancelCmd)
}

func build(ctx context.Context) (*wiring.Deps, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if dbPath != "" {
		cfg.DBPath = dbPath
	}

	log := logger.New(logger.Config{Level: "warn", Format: "text"})
	return wiring.Build(ctx, cfg, log)
}

func main() {
	ctx := context.Background()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
