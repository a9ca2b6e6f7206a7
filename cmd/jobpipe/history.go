package main

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/amishk599/jobpipe/internal/model"
)

var historyCmd = &cobra.Command{
	Use:   "history <job-id>",
	Short: "Show a job and its audit log",
	Args:  cobra.ExactArgs(1),
	RunE:  runHistory,
}

func init() {
	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
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

	job, err := st.Get(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	entries, err := st.AuditLog(cmd.Context(), job.ID)
	if err != nil {
		return err
	}
	printHistory(os.Stdout, job, entries)
	return nil
}

func printHistory(w io.Writer, job model.Job, entries []model.AuditEntry) {
	fmt.Fprintf(w, "%s at %s (%s)\n", job.Title, job.Company, job.Key())
	fmt.Fprintf(w, "status %s, stored %s, updated %s\n\n",
		job.Status, job.CreatedAt.Format("2006-01-02 15:04:05"), job.UpdatedAt.Format("2006-01-02 15:04:05"))

	if len(entries) == 0 {
		fmt.Fprintln(w, "No changes since first stored.")
		return
	}
	fmt.Fprintf(w, "%-20s %s\n", "Recorded", "Prior values")
	fmt.Fprintln(w, strings.Repeat("─", 72))
	for _, e := range entries {
		fields := make([]string, 0, len(e.Prior))
		for k := range e.Prior {
			fields = append(fields, k)
		}
		sort.Strings(fields)
		for i, k := range fields {
			ts := ""
			if i == 0 {
				ts = e.RecordedAt.Format("2006-01-02 15:04:05")
			}
			fmt.Fprintf(w, "%-20s %s = %v\n", ts, k, e.Prior[k])
		}
	}
}
