package askcmd

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/quailyquaily/slackbard/internal/configutil"
	"github.com/quailyquaily/slackbard/llm"
	"github.com/quailyquaily/slackbard/providers/gemini"
)

// New returns the one-shot query command. It sends a single prompt with no
// conversation history and prints the raw model text to stdout.
func New() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ask [prompt]",
		Short: "Send a single prompt to Gemini and print the response",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			apiKey := strings.TrimSpace(configutil.FlagOrViperString(cmd, "gemini-api-key", "gemini.api_key"))
			if apiKey == "" {
				return fmt.Errorf("missing gemini.api_key (set via --gemini-api-key or SLACKBARD_GEMINI_API_KEY)")
			}
			client, err := gemini.NewClient(
				&http.Client{Timeout: 30 * time.Second},
				viper.GetString("gemini.endpoint"),
				apiKey,
				configutil.FlagOrViperString(cmd, "model", "gemini.model"),
			)
			if err != nil {
				return err
			}

			prompt := strings.TrimSpace(strings.Join(args, " "))
			result, err := client.Complete(cmd.Context(), llm.Request{
				Contents: []llm.Content{{Role: llm.RoleUser, Text: prompt}},
				Params:   llm.DefaultParams(),
			})
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), result.Text)
			return nil
		},
	}

	cmd.Flags().String("gemini-api-key", "", "Gemini API key.")
	cmd.Flags().String("model", "", "Gemini model name.")

	return cmd
}
