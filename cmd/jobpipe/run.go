package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/amishk599/jobpipe/internal/fetch"
	"github.com/amishk599/jobpipe/internal/model"
	"github.com/amishk599/jobpipe/internal/pipeline"
)

var (
	runMode   string
	runInput  string
	runOutput string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the pipeline once",
	Long: "Runs the selected stages once and prints per-stage stats. Modes: " + strings.Join(pipeline.ModeNames(), ", ") + ".\n" +
		"Modes that start at normalize read raw postings from --input; persist-only reads normalized jobs.",
	RunE: runRun,
}

func init() {
	runCmd.Flags().StringVarP(&runMode, "mode", "m", "full", "stages to run")
	runCmd.Flags().StringVarP(&runInput, "input", "i", "", "JSON input for runs that do not start at fetch")
	runCmd.Flags().StringVarP(&runOutput, "output", "o", "", "write the full run result as JSON to this file")
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	logger := setupLogger(debug)

	cfg, err := loadConfig(cfgPath)
	if err != nil {
		return err
	}
	sel, err := pipeline.ParseMode(runMode)
	if err != nil {
		return err
	}
	in, err := readInput(runInput, sel, logger)
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

	res, runErr := a.runOnce(ctx, in, sel)
	if runOutput != "" {
		if err := writeResult(runOutput, res); err != nil {
			return errors.Join(runErr, err)
		}
		logger.Info("run result written", "path", runOutput)
	}
	printRunSummary(os.Stdout, res)
	return runErr
}

// readInput loads the seed data of a run that does not start at fetch.
func readInput(path string, sel pipeline.Selection, logger *slog.Logger) (pipeline.Input, error) {
	if sel.Fetch {
		if path != "" {
			logger.Warn("--input ignored: run starts at fetch", "mode", sel.String())
		}
		return pipeline.Input{}, nil
	}
	if path == "" {
		return pipeline.Input{}, model.Configurationf("mode %s needs --input", sel.String())
	}

	if sel.Normalize {
		raws, err := fetch.ReadRawJobs(path)
		if err != nil {
			if !errors.Is(err, model.ErrMalformedInput) || len(raws) == 0 {
				return pipeline.Input{}, err
			}
			logger.Warn("some input records were rejected", "kept", len(raws), "error", err)
		}
		return pipeline.Input{Raw: raws}, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return pipeline.Input{}, fmt.Errorf("read input: %w", err)
	}
	var jobs []model.Job
	if err := json.Unmarshal(data, &jobs); err != nil {
		return pipeline.Input{}, fmt.Errorf("%w: input must be a JSON array of jobs: %v", model.ErrMalformedInput, err)
	}
	return pipeline.Input{Jobs: jobs}, nil
}

// runOutputFile is the JSON document --output writes.
type runOutputFile struct {
	pipeline.RunResult
	Raw      []model.RawJob `json:"raw,omitempty"`
	Jobs     []model.Job    `json:"jobs"`
	Eligible []model.Job    `json:"eligible"`
}

func writeResult(path string, res pipeline.RunResult) error {
	data, err := json.MarshalIndent(runOutputFile{
		RunResult: res,
		Raw:       res.Raw,
		Jobs:      res.Jobs,
		Eligible:  res.Eligible,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal run result: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write run result: %w", err)
	}
	return nil
}

func printRunSummary(w io.Writer, res pipeline.RunResult) {
	fmt.Fprintf(w, "Run %s (%s)\n\n", res.RunID, res.Mode)
	fmt.Fprintf(w, "%-10s %9s %9s %7s %8s %9s  %s\n", "Stage", "Attempted", "Succeeded", "Failed", "Skipped", "Cancelled", "Duration")
	fmt.Fprintln(w, strings.Repeat("─", 72))
	for _, s := range res.Stages {
		fmt.Fprintf(w, "%-10s %9d %9d %7d %8d %9d  %s\n",
			s.Stage, s.Attempted, s.Succeeded, s.Failed, s.Skipped, s.Cancelled, s.Duration.Round(time.Millisecond))
	}

	if len(res.Errors) > 0 {
		fmt.Fprintf(w, "\nItem errors (%d):\n", len(res.Errors))
		for _, e := range res.Errors {
			fmt.Fprintf(w, "  [%s #%d] %s %s: %s\n", e.Stage, e.Index, e.Key, e.Kind, e.Message)
		}
	}

	fmt.Fprintf(w, "\nStored: %d  Failed: %d  Eligible: %d", res.CountStatus(model.StatusStored), res.CountStatus(model.StatusFailed), len(res.Eligible))
	if res.Cancelled {
		fmt.Fprintf(w, "  (cancelled: %d)", res.CountStatus(model.StatusCancelled))
	}
	fmt.Fprintln(w)
}
