package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/lehigh-university-libraries/uiaudit/internal/report"
)

func newSummaryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "summary <report.parquet>...",
		Short: "Summarize parquet reports written by analyze",
		Args:  cobra.MinimumNArgs(1),
		Example: `  uiaudit analyze --format parquet --output audit.parquet shots/*.png
  uiaudit summary audit.parquet`,
		RunE: func(cmd *cobra.Command, args []string) error {
			var rows []report.IssueRow
			for _, path := range args {
				fileRows, err := readReportFile(path)
				if err != nil {
					return err
				}
				rows = append(rows, fileRows...)
			}

			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			if err := enc.Encode(report.Summarize(rows)); err != nil {
				return fmt.Errorf("failed to encode summary: %w", err)
			}
			return enc.Close()
		},
	}

	return cmd
}

func readReportFile(path string) ([]report.IssueRow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open report: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat report: %w", err)
	}
	rows, err := report.ReadParquet(f, info.Size())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return rows, nil
}
