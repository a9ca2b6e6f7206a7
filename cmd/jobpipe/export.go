package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/amishk599/jobpipe/internal/export"
)

var exportOut string

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export stored jobs to an XLSX workbook",
	Long:  "Writes every job matching the jobs filters (--status, --platform, --skill, ...) to an XLSX file.",
	RunE:  runExport,
}

func init() {
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "jobs.xlsx", "output file")
	addQueryFlags(exportCmd)
	rootCmd.AddCommand(exportCmd)
}

func runExport(cmd *cobra.Command, args []string) error {
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

	data, err := export.NewService(st, logger).JobsXLSX(cmd.Context(), f)
	if err != nil {
		return err
	}
	if err := os.WriteFile(exportOut, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", exportOut, err)
	}
	fmt.Printf("wrote %s\n", exportOut)
	return nil
}
