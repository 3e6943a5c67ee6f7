package servecmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/quailyquaily/slackbard/internal/slackapi"
	"github.com/quailyquaily/slackbard/internal/slackfmt"
)

type commandHandler func(ctx context.Context, srv *server, cmd slashCommand)

// commandTable routes slash commands. The z-prefixed aliases exist so a
// second install of the app can register commands in the same workspace
// without colliding with the first.
var commandTable = map[string]commandHandler{
	"/bard":  handleBardCommand,
	"/zbard": handleBardCommand,
	"/wf":    handleWeatherCommand,
	"/zwf":   handleWeatherCommand,
}

func handleBardCommand(ctx context.Context, srv *server, cmd slashCommand) {
	query := strings.TrimSpace(cmd.Text)
	api := srv.apiFor(cmd.TeamID)
	if query == "" {
		srv.respond(ctx, api, cmd, slackapi.CommandResponse{
			ResponseType: "ephemeral",
			Text:         fmt.Sprintf("Usage: %s <question>", cmd.Command),
		})
		return
	}

	reply, _ := srv.botFor(cmd.TeamID).Ask(ctx, cmd.UserID, query)
	username := api.UserRealName(ctx, cmd.UserID)

	header := fmt.Sprintf("*%s* asked \"_%s_\"", username, query)
	blocks := slackfmt.BuildBlocks(header, slackfmt.AdjustMarkdown(reply))
	fallback := fmt.Sprintf("%s asked %q.\n\nGenerated response:\n%s", username, query, reply)
	srv.respond(ctx, api, cmd, slackapi.CommandResponse{
		ResponseType: "in_channel",
		Text:         fallback,
		Blocks:       blocks,
	})
}

func handleWeatherCommand(ctx context.Context, srv *server, cmd slashCommand) {
	api := srv.apiFor(cmd.TeamID)
	if srv.weather == nil {
		srv.respond(ctx, api, cmd, slackapi.CommandResponse{
			ResponseType: "ephemeral",
			Text:         "WeatherFlow is not configured.",
		})
		return
	}
	stationID := strings.TrimSpace(cmd.Text)
	if stationID == "" {
		stationID = srv.defaultStation
	}
	report := srv.weather.StationReport(ctx, stationID)
	srv.respond(ctx, api, cmd, slackapi.CommandResponse{
		ResponseType: "in_channel",
		Text:         report,
		Blocks:       slackfmt.BuildBlocks(report),
	})
}

func (s *server) respond(ctx context.Context, api *slackapi.API, cmd slashCommand, payload slackapi.CommandResponse) {
	if err := api.Respond(ctx, cmd.ResponseURL, payload); err != nil {
		s.logger.Warn("serve_command_respond_error",
			"command", cmd.Command,
			"channel_id", cmd.ChannelID,
			"error", err.Error(),
		)
	}
}
