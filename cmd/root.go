package cmd

import (
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func NewRootCmd() *cobra.Command {
	var verbose bool

	cmd := &cobra.Command{
		Use:   "uiaudit",
		Short: "AI-assisted UI design review",
		Long: `uiaudit reviews UI screenshots with Gemini.

It finds design issues (contrast, typography, spacing, consistency,
usability) with their location on the screenshot, can regenerate the
design with every fix applied, and answers follow-up questions about it.
Run "uiaudit serve" for the browser workspace or use the one-shot
commands from a terminal.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Load .env file if present (ignore errors)
			_ = godotenv.Load()

			level := slog.LevelInfo
			if verbose {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
		},
	}

	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	// Add subcommands
	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newAnalyzeCmd())
	cmd.AddCommand(newCorrectCmd())
	cmd.AddCommand(newChatCmd())
	cmd.AddCommand(newSummaryCmd())

	return cmd
}
