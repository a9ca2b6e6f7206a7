package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/amishk599/jobpipe/internal/model"
)

var jobsFlags struct {
	statuses  []string
	platforms []string
	skills    []string
	minSalary int64
	maxSalary int64
	since     string
	until     string
	limit     int
	offset    int
	asJSON    bool
}

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "List stored jobs",
	Long:  "Queries the store, newest first. Filters combine with AND.",
	RunE:  runJobs,
}

func init() {
	addQueryFlags(jobsCmd)
	jobsCmd.Flags().IntVar(&jobsFlags.limit, "limit", model.DefaultPageSize, "page size")
	jobsCmd.Flags().IntVar(&jobsFlags.offset, "offset", 0, "page offset")
	jobsCmd.Flags().BoolVar(&jobsFlags.asJSON, "json", false, "print JSON instead of a table")
	rootCmd.AddCommand(jobsCmd)
}

// addQueryFlags registers the store filter flags shared by jobs and export.
func addQueryFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringSliceVar(&jobsFlags.statuses, "status", nil, "only these statuses (STORED, RESPONDED, FAILED)")
	f.StringSliceVar(&jobsFlags.platforms, "platform", nil, "only these source platforms")
	f.StringSliceVar(&jobsFlags.skills, "skill", nil, "jobs must list every one of these skills")
	f.Int64Var(&jobsFlags.minSalary, "min-salary", 0, "salary range must reach at least this")
	f.Int64Var(&jobsFlags.maxSalary, "max-salary", 0, "salary range must start at or below this")
	f.StringVar(&jobsFlags.since, "since", "", "posted at or after (YYYY-MM-DD or RFC3339)")
	f.StringVar(&jobsFlags.until, "until", "", "posted before (YYYY-MM-DD or RFC3339)")
}

func runJobs(cmd *cobra.Command, args []string) error {
	logger := setupLogger(debug)
	cfg, err := loadConfig(cfgPath)
	if err != nil {
		return err
	}
	f, err := buildQueryFilter()
	if err != nil {
		return err
	}

	st, err := openStore(cmd.Context(), cfg.Storage, logger)
	if err != nil {
		return err
	}
	defer st.Close()

	jobs, err := st.Query(cmd.Context(), f, model.Page{Offset: jobsFlags.offset, Limit: jobsFlags.limit})
	if err != nil {
		return err
	}
	if jobsFlags.asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(jobs)
	}
	printJobs(os.Stdout, jobs)
	return nil
}

func buildQueryFilter() (model.Filter, error) {
	var f model.Filter
	for _, s := range jobsFlags.statuses {
		st, err := model.ParseStatus(strings.ToUpper(s))
		if err != nil {
			return f, model.Configurationf("--status: %v", err)
		}
		f.Statuses = append(f.Statuses, st)
	}
	f.Platforms = jobsFlags.platforms
	f.Skills = jobsFlags.skills
	if jobsFlags.minSalary > 0 {
		f.SalaryMin = &jobsFlags.minSalary
	}
	if jobsFlags.maxSalary > 0 {
		f.SalaryMax = &jobsFlags.maxSalary
	}
	var err error
	if f.PostedAfter, err = parseDateFlag("--since", jobsFlags.since); err != nil {
		return f, err
	}
	if f.PostedBefore, err = parseDateFlag("--until", jobsFlags.until); err != nil {
		return f, err
	}
	return f, nil
}

func parseDateFlag(name, v string) (*time.Time, error) {
	if v == "" {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, v); err == nil {
			t = t.UTC()
			return &t, nil
		}
	}
	return nil, model.Configurationf("%s: %q is not a date", name, v)
}

func printJobs(w io.Writer, jobs []model.Job) {
	fmt.Fprintf(w, "%-36s %-10s %-11s %-32s %-20s %-16s %s\n", "ID", "Status", "Platform", "Title", "Company", "Salary", "Posted")
	fmt.Fprintln(w, strings.Repeat("─", 140))
	for _, j := range jobs {
		posted := "n/a"
		if j.PostedAt != nil {
			posted = j.PostedAt.Format("2006-01-02")
		}
		fmt.Fprintf(w, "%-36s %-10s %-11s %-32s %-20s %-16s %s\n",
			j.ID, j.Status, j.SourcePlatform, truncate(j.Title, 32), truncate(j.Company, 20), salaryRange(j), posted)
	}
	fmt.Fprintf(w, "\n%d jobs\n", len(jobs))
}

func salaryRange(j model.Job) string {
	if !j.HasSalary() {
		return "-"
	}
	bound := func(v *int64) string {
		if v == nil {
			return "?"
		}
		return fmt.Sprintf("%dk", *v/1000)
	}
	s := bound(j.SalaryMin) + "-" + bound(j.SalaryMax)
	if j.Currency != model.CurrencyUnknown && j.Currency != "" {
		s += " " + string(j.Currency)
	}
	return s
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
