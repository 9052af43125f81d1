package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func buildRunCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the assistant daemon",
		Long: `Run the assistant daemon: loads configuration, starts the task
scheduler, recovers any missed tasks, and serves the CLI transport until
interrupted.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()
			return runDaemon(ctx, configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "cortex.yaml", "path to YAML configuration file")
	return cmd
}

func runDaemon(ctx context.Context, configPath string) error {
	app, err := buildApp(configPath)
	if err != nil {
		return fmt.Errorf("cortexd: build app: %w", err)
	}
	defer app.Close()

	if err := app.scheduler.Start(ctx); err != nil {
		return fmt.Errorf("cortexd: start scheduler: %w", err)
	}
	defer app.scheduler.Stop(context.Background())

	if err := app.recovery.Scan(ctx); err != nil {
		app.logger.Error("missed-task recovery scan failed", "error", err)
	}

	app.logger.Info("cortexd ready", "owner", app.cfg.Owner.UserID)
	err = app.transport.Run(ctx, app.handler)
	if err != nil && ctx.Err() != nil {
		// Shutting down on signal/parent cancellation is not a failure.
		return nil
	}
	return err
}

func buildTasksCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "tasks",
		Short: "Inspect scheduled tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			return listTasks(cmd.Context(), configPath)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "cortex.yaml", "path to YAML configuration file")
	return cmd
}

func listTasks(ctx context.Context, configPath string) error {
	app, err := buildApp(configPath)
	if err != nil {
		return fmt.Errorf("cortexd: build app: %w", err)
	}
	defer app.Close()

	active, err := app.taskStore.ListActive(ctx)
	if err != nil {
		return fmt.Errorf("cortexd: list tasks: %w", err)
	}
	if len(active) == 0 {
		fmt.Println("no active tasks")
		return nil
	}
	for _, t := range active {
		fmt.Println(t.DescribeState())
	}
	return nil
}

func newLogger(format, level string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(level)}
	var handler slog.Handler
	if format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	return slog.New(handler)
}

func parseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
