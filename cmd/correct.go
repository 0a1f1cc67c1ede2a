package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lehigh-university-libraries/uiaudit/internal/models"
	"github.com/lehigh-university-libraries/uiaudit/internal/workspace"
)

func newCorrectCmd() *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "correct <image>",
		Short: "Analyze a screenshot and write an auto-corrected version",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, true)
			if err != nil {
				return err
			}
			defer a.close()

			return a.correctFile(ctx, args[0], out, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVarP(&out, "out", "o", "", "Where to write the corrected image (default <image>-corrected.<ext>)")

	return cmd
}

// correctFile analyzes path, applies every fix and writes the result to out
func (a *app) correctFile(ctx context.Context, path, out string, w io.Writer) error {
	snap, err := a.loadSession(ctx, path)
	if err != nil {
		return err
	}
	defer a.discard(ctx, snap.ID)

	snap, err = a.workspace.Analyze(ctx, snap.ID)
	if err != nil {
		return err
	}
	if snap.LastAnalysis != nil && snap.LastAnalysis.Status == models.OutcomeFailed {
		return fmt.Errorf("analysis failed: %s", snap.LastAnalysis.Reason)
	}
	if len(snap.Issues) == 0 {
		fmt.Fprintln(w, "No issues found, nothing to correct")
		return nil
	}
	slog.Info("Applying fixes", "issues", len(snap.Issues), "instruction", workspace.BuildInstruction(snap.Issues))

	snap, err = a.workspace.Correct(ctx, snap.ID)
	if err != nil {
		return err
	}
	if !snap.HasCorrection {
		reason := "no image returned"
		if snap.LastCorrection != nil && snap.LastCorrection.Reason != "" {
			reason = snap.LastCorrection.Reason
		}
		return fmt.Errorf("correction failed: %s", reason)
	}

	img, err := a.workspace.Image(ctx, snap.ID, true)
	if err != nil {
		return err
	}
	if out == "" {
		out = correctedPath(path, img.MIMEType)
	}
	if err := os.WriteFile(out, img.Data, 0644); err != nil {
		return fmt.Errorf("failed to write corrected image: %w", err)
	}
	fmt.Fprintf(w, "Fixed %d issues, wrote %s\n", len(snap.Issues), out)
	return nil
}

func correctedPath(src, mimeType string) string {
	ext := ".png"
	switch mimeType {
	case "image/jpeg":
		ext = ".jpg"
	case "image/webp":
		ext = ".webp"
	}
	base := strings.TrimSuffix(src, filepath.Ext(src))
	return base + "-corrected" + ext
}
