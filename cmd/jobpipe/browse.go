package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/amishk599/jobpipe/internal/browse"
	"github.com/amishk599/jobpipe/internal/model"
)

var browseCmd = &cobra.Command{
	Use:   "browse",
	Short: "Browse stored jobs interactively (TUI)",
	Long:  "Shows the status picker, then those jobs in tabs: all of them, the ones eligible for a response and the ones with extraction warnings.",
	RunE:  runBrowse,
}

func init() {
	rootCmd.AddCommand(browseCmd)
}

func runBrowse(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cfgPath)
	if err != nil {
		return err
	}
	logger := silentLogger()
	st, err := openStore(cmd.Context(), cfg.Storage, logger)
	if err != nil {
		return err
	}
	defer st.Close()
	jobFilter := setupFilter(cfg.Respond.Criteria)

	for {
		counts, err := st.CountByStatus(cmd.Context())
		if err != nil {
			return err
		}
		choices := browse.Choices(counts)
		choice, err := browse.RunStatusPicker(choices)
		if err != nil {
			return fmt.Errorf("picker: %w", err)
		}
		if choice < 0 {
			return nil
		}

		var f model.Filter
		if status := choices[choice].Status; status != "" {
			f.Statuses = []model.Status{status}
		}
		snap, err := browse.RunLoader(cmd.Context(), "jobs", func(ctx context.Context) (browse.Snapshot, error) {
			return browse.LoadSnapshot(ctx, st, f, jobFilter)
		})
		if err != nil {
			if errors.Is(err, model.ErrCancelled) {
				return nil
			}
			fmt.Printf("Error loading jobs: %v\n", err)
			continue
		}

		wantQuit, err := browse.Run(snap, st)
		if err != nil {
			fmt.Printf("TUI error: %v\n", err)
		}
		if wantQuit {
			return nil
		}
		// else: loop → back to picker
	}
}
