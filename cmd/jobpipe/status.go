package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/amishk599/jobpipe/internal/events"
	"github.com/amishk599/jobpipe/internal/model"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show job counts per status and the last published run",
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	logger := setupLogger(debug)
	cfg, err := loadConfig(cfgPath)
	if err != nil {
		return err
	}
	st, err := openStore(cmd.Context(), cfg.Storage, logger)
	if err != nil {
		return err
	}
	defer st.Close()

	counts, err := st.CountByStatus(cmd.Context())
	if err != nil {
		return err
	}

	fmt.Printf("%-12s %s\n", "Status", "Jobs")
	fmt.Println(strings.Repeat("─", 20))
	total := 0
	for _, s := range []model.Status{model.StatusStored, model.StatusResponded, model.StatusFailed} {
		fmt.Printf("%-12s %d\n", s, counts[s])
		total += counts[s]
	}
	fmt.Printf("\nTotal: %d jobs\n", total)

	if cfg.Events.RedisURL == "" {
		return nil
	}
	pub, err := events.NewRedisPublisher(cmd.Context(), cfg.Events.RedisURL, cfg.Events.Channel)
	if err != nil {
		logger.Warn("cannot read last run", "error", err)
		return nil
	}
	defer pub.Close()

	last, ok, err := pub.Last(cmd.Context())
	if err != nil {
		return err
	}
	if !ok {
		fmt.Println("\nNo run published yet.")
		return nil
	}
	fmt.Printf("\nLast run %s (%s) finished %s, took %s\n",
		last.RunID, last.Mode, last.FinishedAt.Local().Format(time.DateTime), last.FinishedAt.Sub(last.StartedAt).Round(time.Millisecond))
	for _, s := range last.Stages {
		fmt.Printf("  %-10s attempted %d, succeeded %d, failed %d\n", s.Stage, s.Attempted, s.Succeeded, s.Failed)
	}
	if last.Error != "" {
		fmt.Printf("  error: %s\n", last.Error)
	}
	return nil
}
