package weathercmd

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/quailyquaily/slackbard/internal/configutil"
	"github.com/quailyquaily/slackbard/internal/weather"
)

func New() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "weather [station-id]",
		Short: "Print the current WeatherFlow station report",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			apiKey := strings.TrimSpace(configutil.FlagOrViperString(cmd, "weatherflow-api-key", "weatherflow.api_key"))
			if apiKey == "" {
				return fmt.Errorf("missing weatherflow.api_key (set via --weatherflow-api-key or SLACKBARD_WEATHERFLOW_API_KEY)")
			}
			client, err := weather.NewClient(
				&http.Client{Timeout: 30 * time.Second},
				viper.GetString("weatherflow.endpoint"),
				apiKey,
			)
			if err != nil {
				return err
			}

			stationID := strings.TrimSpace(viper.GetString("weatherflow.station_id"))
			if len(args) > 0 && strings.TrimSpace(args[0]) != "" {
				stationID = strings.TrimSpace(args[0])
			}
			fmt.Fprintln(cmd.OutOrStdout(), client.StationReport(cmd.Context(), stationID))
			return nil
		},
	}

	cmd.Flags().String("weatherflow-api-key", "", "WeatherFlow API key.")

	return cmd
}
