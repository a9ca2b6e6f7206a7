// Package export writes stored jobs to an XLSX workbook.
package export

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/amishk599/jobpipe/internal/model"
)

const (
	jobsSheet    = "Jobs"
	summarySheet = "Summary"
)

var headers = []string{
	"ID",
	"Platform",
	"External ID",
	"Title",
	"Company",
	"Location",
	"Job Type",
	"Remote",
	"Salary Min",
	"Salary Max",
	"Currency",
	"Skills",
	"Posted",
	"Status",
	"Warnings",
	"URL",
}

// Service produces XLSX bytes from the job store.
type Service struct {
	store  model.JobStore
	logger *slog.Logger
}

func NewService(store model.JobStore, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, logger: logger}
}

// JobsXLSX returns a workbook with every job matching f on a "Jobs" sheet and
// per-status counts on a "Summary" sheet.
func (s *Service) JobsXLSX(ctx context.Context, f model.Filter) ([]byte, error) {
	start := time.Now()

	jobs, err := s.collect(ctx, f)
	if err != nil {
		return nil, err
	}
	counts, err := s.store.CountByStatus(ctx)
	if err != nil {
		return nil, fmt.Errorf("count jobs: %w", err)
	}

	x := excelize.NewFile()
	defer x.Close()

	// The default sheet becomes the jobs sheet so it opens first.
	if err := x.SetSheetName("Sheet1", jobsSheet); err != nil {
		return nil, err
	}
	if err := writeJobs(x, jobs); err != nil {
		return nil, err
	}
	if _, err := x.NewSheet(summarySheet); err != nil {
		return nil, err
	}
	if err := writeSummary(x, counts); err != nil {
		return nil, err
	}

	buf, err := x.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}
	s.logger.Info("export.jobs.completed", "jobs", len(jobs), "bytes", buf.Len(), "duration", time.Since(start))
	return buf.Bytes(), nil
}

func (s *Service) collect(ctx context.Context, f model.Filter) ([]model.Job, error) {
	var all []model.Job
	page := model.Page{Limit: model.MaxPageSize}
	for {
		jobs, err := s.store.Query(ctx, f, page)
		if err != nil {
			return nil, fmt.Errorf("query jobs: %w", err)
		}
		all = append(all, jobs...)
		if len(jobs) < page.Limit {
			return all, nil
		}
		page.Offset += page.Limit
	}
}

func writeJobs(x *excelize.File, jobs []model.Job) error {
	if err := x.SetSheetRow(jobsSheet, "A1", &headers); err != nil {
		return err
	}
	bold, err := x.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}
	last, _ := excelize.CoordinatesToCellName(len(headers), 1)
	if err := x.SetCellStyle(jobsSheet, "A1", last, bold); err != nil {
		return err
	}

	for i, j := range jobs {
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		row := jobRow(j)
		if err := x.SetSheetRow(jobsSheet, cell, &row); err != nil {
			return err
		}
		if j.URL != "" {
			link, _ := excelize.CoordinatesToCellName(len(headers), i+2)
			_ = x.SetCellHyperLink(jobsSheet, link, j.URL, "External")
		}
	}

	_ = x.SetPanes(jobsSheet, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"})
	_ = x.SetColWidth(jobsSheet, "A", "A", 38) // id
	_ = x.SetColWidth(jobsSheet, "D", "F", 30) // title, company, location
	_ = x.SetColWidth(jobsSheet, "L", "L", 36) // skills
	_ = x.SetColWidth(jobsSheet, "O", "O", 40) // warnings
	_ = x.SetColWidth(jobsSheet, "P", "P", 60) // url
	return nil
}

func jobRow(j model.Job) []any {
	posted := ""
	if j.PostedAt != nil {
		posted = j.PostedAt.UTC().Format("2006-01-02")
	}
	warnings := make([]string, len(j.Warnings))
	for i, w := range j.Warnings {
		warnings[i] = w.String()
	}
	return []any{
		j.ID,
		j.SourcePlatform,
		j.ExternalID,
		j.Title,
		j.Company,
		j.Location,
		string(j.JobType),
		string(j.RemoteType),
		salaryCell(j.SalaryMin),
		salaryCell(j.SalaryMax),
		string(j.Currency),
		strings.Join(j.RequiredSkills, ", "),
		posted,
		string(j.Status),
		strings.Join(warnings, "; "),
		j.URL,
	}
}

func salaryCell(v *int64) any {
	if v == nil {
		return ""
	}
	return *v
}

func writeSummary(x *excelize.File, counts map[model.Status]int) error {
	statuses := make([]string, 0, len(counts))
	for st := range counts {
		statuses = append(statuses, string(st))
	}
	sort.Strings(statuses)

	if err := x.SetSheetRow(summarySheet, "A1", &[]any{"Status", "Jobs"}); err != nil {
		return err
	}
	total := 0
	for i, st := range statuses {
		n := counts[model.Status(st)]
		total += n
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := x.SetSheetRow(summarySheet, cell, &[]any{st, n}); err != nil {
			return err
		}
	}
	cell, _ := excelize.CoordinatesToCellName(1, len(statuses)+2)
	return x.SetSheetRow(summarySheet, cell, &[]any{"Total", total})
}
