// Package installcmd records workspace installations so serve can post
// with each workspace's own bot token. Installations are provisioned from
// the command line; there is no in-process OAuth flow.
package installcmd

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/quailyquaily/slackbard/internal/installstore"
	"github.com/quailyquaily/slackbard/internal/statepaths"
)

func New() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "install",
		Short: "Manage workspace installations",
	}
	cmd.AddCommand(newAddCmd())
	return cmd
}

func newAddCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Record a workspace's bot credentials",
		RunE: func(cmd *cobra.Command, args []string) error {
			teamID, _ := cmd.Flags().GetString("team-id")
			teamName, _ := cmd.Flags().GetString("team-name")
			botToken, _ := cmd.Flags().GetString("bot-token")
			botUserID, _ := cmd.Flags().GetString("bot-user-id")
			store := installstore.NewFileStore(statepaths.InstallsDir())
			return addInstallation(cmd.Context(), cmd.OutOrStdout(), store, installstore.Installation{
				TeamID:    teamID,
				TeamName:  teamName,
				BotToken:  botToken,
				BotUserID: botUserID,
			})
		},
	}

	cmd.Flags().String("team-id", "", "Slack team id (T...).")
	cmd.Flags().String("team-name", "", "Workspace display name.")
	cmd.Flags().String("bot-token", "", "Bot token for the workspace (xoxb-...).")
	cmd.Flags().String("bot-user-id", "", "Bot user id in the workspace (U...).")
	_ = cmd.MarkFlagRequired("team-id")
	_ = cmd.MarkFlagRequired("bot-token")

	return cmd
}

func addInstallation(ctx context.Context, out io.Writer, store *installstore.FileStore, install installstore.Installation) error {
	if err := store.Ensure(ctx); err != nil {
		return err
	}
	if err := store.Save(ctx, install); err != nil {
		return err
	}
	fmt.Fprintf(out, "Recorded installation for %s\n", strings.TrimSpace(install.TeamID))
	return nil
}
