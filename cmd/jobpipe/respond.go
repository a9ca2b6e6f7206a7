package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var respondSend bool

var respondCmd = &cobra.Command{
	Use:   "respond",
	Short: "Respond to stored jobs matching the criteria",
	Long:  "Lists STORED jobs that pass respond.criteria. With --send each one is dispatched through the configured notifier and marked RESPONDED.",
	RunE:  runRespond,
}

func init() {
	respondCmd.Flags().BoolVar(&respondSend, "send", false, "dispatch and mark jobs RESPONDED (default: list only)")
	rootCmd.AddCommand(respondCmd)
}

func runRespond(cmd *cobra.Command, args []string) error {
	logger := setupLogger(debug)
	cfg, err := loadConfig(cfgPath)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	candidates, err := a.responder.Candidates(ctx)
	if err != nil {
		return err
	}
	rep, err := a.responder.Respond(ctx, candidates, respondSend)

	for _, o := range rep.Outcomes {
		mark := " "
		switch {
		case o.Error != "":
			mark = "✗"
		case o.Sent:
			mark = "✓"
		}
		fmt.Printf("%s %-36s %-32s %s\n", mark, o.Job.ID, truncate(o.Job.Title, 32), o.Job.Company)
		if o.Error != "" {
			fmt.Printf("    %s\n", o.Error)
		}
	}
	if respondSend {
		fmt.Printf("\n%d candidates, %d sent, %d failed\n", rep.Candidates, rep.Sent, rep.Failed)
	} else {
		fmt.Printf("\n%d candidates (dry run, use --send to respond)\n", rep.Candidates)
	}
	return err
}
