package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newChatCmd() *cobra.Command {
	var imagePath string

	cmd := &cobra.Command{
		Use:   "chat <message>",
		Short: "Ask the design expert a question",
		Args:  cobra.MinimumNArgs(1),
		Example: `  uiaudit chat --image checkout.png "Is the primary button prominent enough?"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, false)
			if err != nil {
				return err
			}
			defer a.close()

			snap, err := a.workspace.Create(ctx, "chat")
			if err != nil {
				return err
			}
			defer a.discard(ctx, snap.ID)
			if imagePath != "" {
				img, err := readImageFile(imagePath)
				if err != nil {
					return err
				}
				if _, err := a.workspace.Upload(ctx, snap.ID, imagePath, img); err != nil {
					return err
				}
			}

			snap, err = a.workspace.Chat(ctx, snap.ID, strings.Join(args, " "))
			if err != nil {
				return err
			}
			reply := snap.Transcript[len(snap.Transcript)-1]
			fmt.Fprintln(cmd.OutOrStdout(), reply.Content)
			return nil
		},
	}

	cmd.Flags().StringVarP(&imagePath, "image", "i", "", "Screenshot to discuss")

	return cmd
}
