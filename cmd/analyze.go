package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/lehigh-university-libraries/uiaudit/internal/models"
	"github.com/lehigh-university-libraries/uiaudit/internal/report"
)

func newAnalyzeCmd() *cobra.Command {
	var (
		format      string
		output      string
		concurrency int
	)

	cmd := &cobra.Command{
		Use:   "analyze <image>...",
		Short: "Analyze UI screenshots and print a design report",
		Args:  cobra.MinimumNArgs(1),
		Example: `  # Review one screen
  uiaudit analyze login.png

  # Review a folder of screens, four at a time, into a parquet file
  uiaudit analyze --concurrency 4 --format parquet --output audit.parquet shots/*.png`,
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := report.ParseFormat(format)
			if err != nil {
				return err
			}
			if concurrency < 1 {
				return fmt.Errorf("--concurrency must be at least 1")
			}

			ctx := cmd.Context()
			a, err := newApp(ctx, true)
			if err != nil {
				return err
			}
			defer a.close()

			reports, err := a.analyzeFiles(ctx, args, concurrency)
			if err != nil {
				return err
			}

			var out io.Writer = cmd.OutOrStdout()
			if output != "" {
				file, err := os.Create(output)
				if err != nil {
					return fmt.Errorf("failed to create output file: %w", err)
				}
				defer file.Close()
				out = file
			}
			if err := report.Write(out, f, reports...); err != nil {
				return err
			}

			failed := 0
			for _, r := range reports {
				if r.Status == string(models.OutcomeFailed) {
					failed++
				}
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d analyses failed", failed, len(reports))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "yaml", "Report format: yaml, json or parquet")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Write the report to a file instead of stdout")
	cmd.Flags().IntVarP(&concurrency, "concurrency", "c", 2, "Number of screenshots analyzed in parallel")

	return cmd
}

// analyzeFiles reviews every file with at most concurrency calls in flight.
// Sessions are deleted once their report is built.
func (a *app) analyzeFiles(ctx context.Context, paths []string, concurrency int) ([]report.Report, error) {
	reports := make([]report.Report, len(paths))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i, path := range paths {
		g.Go(func() error {
			slog.Info("Analyzing", "file", path, "progress", fmt.Sprintf("%d/%d", i+1, len(paths)))
			snap, err := a.loadSession(gctx, path)
			if err != nil {
				return err
			}
			defer a.discard(gctx, snap.ID)

			snap, err = a.workspace.Analyze(gctx, snap.ID)
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			if snap.LastAnalysis != nil && snap.LastAnalysis.Status == models.OutcomeFailed {
				slog.Error("Analysis failed", "file", path, "reason", snap.LastAnalysis.Reason)
			}
			reports[i] = report.FromSnapshot(snap, time.Now())
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return reports, nil
}
