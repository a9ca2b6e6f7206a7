package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/amishk599/jobpipe/internal/model"
	"github.com/amishk599/jobpipe/internal/pipeline"
	"github.com/amishk599/jobpipe/internal/scheduler"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the pipeline on the configured schedule",
	Long:  "Starts the scheduler daemon: one run immediately, then one per schedule tick. Blocks until SIGINT/SIGTERM.",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	logger := setupLogger(debug)

	cfg, err := loadConfig(cfgPath)
	if err != nil {
		return err
	}
	sel, err := pipeline.ParseMode(cfg.Schedule.Mode)
	if err != nil {
		return err
	}
	if !sel.Fetch {
		return model.Configurationf("schedule mode %q does not fetch; scheduled runs need a source stage", cfg.Schedule.Mode)
	}

	logger.Info("config loaded",
		"schedule", cfg.Schedule.Cron,
		"mode", sel.String(),
		"sources", len(cfg.EnabledSources()),
		"storage", cfg.Storage.Driver,
		"auto_respond", cfg.Respond.AutoRespond,
	)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	sched, err := scheduler.New(cfg.Schedule.Cron, func(ctx context.Context) error {
		_, err := a.runOnce(ctx, pipeline.Input{}, sel)
		return err
	}, logger)
	if err != nil {
		return err
	}
	if err := sched.Run(ctx); err != nil {
		return err
	}

	logger.Info("goodbye", "runs", sched.Runs())
	return nil
}
