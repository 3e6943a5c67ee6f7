package servecmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/quailyquaily/slackbard/db"
	"github.com/quailyquaily/slackbard/internal/bot"
	"github.com/quailyquaily/slackbard/internal/configutil"
	"github.com/quailyquaily/slackbard/internal/dedup"
	"github.com/quailyquaily/slackbard/internal/healthcheck"
	"github.com/quailyquaily/slackbard/internal/history"
	"github.com/quailyquaily/slackbard/internal/installstore"
	"github.com/quailyquaily/slackbard/internal/logutil"
	"github.com/quailyquaily/slackbard/internal/session"
	"github.com/quailyquaily/slackbard/internal/slackapi"
	"github.com/quailyquaily/slackbard/internal/slackfmt"
	"github.com/quailyquaily/slackbard/internal/statepaths"
	"github.com/quailyquaily/slackbard/internal/weather"
	"github.com/quailyquaily/slackbard/llm"
	"github.com/quailyquaily/slackbard/providers/gemini"
)

// server holds the shared runtime for the socket loop: one session cache,
// one dedup window, and one bot per workspace bound to that team's token.
type server struct {
	logger         *slog.Logger
	api            *slackapi.API
	installs       *installstore.FileStore
	sessions       *session.Cache
	window         *dedup.Window
	history        *history.Store
	client         llm.Client
	params         llm.Params
	weather        *weather.Client
	defaultStation string
	botUserID      string
	homeTeamID     string
	trigger        string

	mu   sync.Mutex
	apis map[string]*slackapi.API
	bots map[string]*bot.Bot
}

func New() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the Slack bot with Socket Mode",
		RunE: func(cmd *cobra.Command, args []string) error {
			botToken := strings.TrimSpace(configutil.FlagOrViperString(cmd, "slack-bot-token", "slack.bot_token"))
			if botToken == "" {
				return fmt.Errorf("missing slack.bot_token (set via --slack-bot-token or SLACKBARD_SLACK_BOT_TOKEN)")
			}
			appToken := strings.TrimSpace(configutil.FlagOrViperString(cmd, "slack-app-token", "slack.app_token"))
			if appToken == "" {
				return fmt.Errorf("missing slack.app_token (set via --slack-app-token or SLACKBARD_SLACK_APP_TOKEN)")
			}

			logger, err := logutil.LoggerFromViper()
			if err != nil {
				return err
			}
			slog.SetDefault(logger)

			gdb, err := db.Open(viper.GetString("db.dsn"))
			if err != nil {
				return fmt.Errorf("open database: %w", err)
			}

			hist, err := history.NewStore(gdb, viper.GetInt("history.max_turns"))
			if err != nil {
				return err
			}
			sessions, err := session.NewCache(hist)
			if err != nil {
				return err
			}

			httpClient := &http.Client{Timeout: 30 * time.Second}

			apiKey := strings.TrimSpace(configutil.FlagOrViperString(cmd, "gemini-api-key", "gemini.api_key"))
			if apiKey == "" {
				return fmt.Errorf("missing gemini.api_key (set via --gemini-api-key or SLACKBARD_GEMINI_API_KEY)")
			}
			client, err := gemini.NewClient(httpClient, viper.GetString("gemini.endpoint"), apiKey, viper.GetString("gemini.model"))
			if err != nil {
				return err
			}
			params := paramsFromViper()

			api := slackapi.New(httpClient, "https://slack.com/api", botToken, appToken)
			auth, err := api.AuthTest(cmd.Context())
			if err != nil {
				return fmt.Errorf("slack auth.test: %w", err)
			}
			botUserID := strings.TrimSpace(auth.UserID)
			if botUserID == "" {
				return fmt.Errorf("slack auth.test returned empty user_id")
			}

			installs := installstore.NewFileStore(statepaths.InstallsDir())
			if err := installs.Ensure(cmd.Context()); err != nil {
				return err
			}

			var wf *weather.Client
			wfKey := strings.TrimSpace(viper.GetString("weatherflow.api_key"))
			if wfKey != "" {
				wf, err = weather.NewClient(httpClient, viper.GetString("weatherflow.endpoint"), wfKey)
				if err != nil {
					return err
				}
			}

			taskTimeout := configutil.FlagOrViperDuration(cmd, "task-timeout", "slack.task_timeout")
			if taskTimeout <= 0 {
				taskTimeout = 5 * time.Minute
			}
			maxConc := configutil.FlagOrViperInt(cmd, "max-concurrency", "slack.max_concurrency")
			if maxConc <= 0 {
				maxConc = 3
			}
			sem := make(chan struct{}, maxConc)

			healthListen := healthcheck.NormalizeListen(configutil.FlagOrViperString(cmd, "health-listen", "health.listen"))
			if healthListen != "" {
				healthServer, err := healthcheck.StartServer(cmd.Context(), logger, healthListen, "serve")
				if err != nil {
					logger.Warn("serve_health_server_start_error", "addr", healthListen, "error", err.Error())
				} else {
					defer func() {
						shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
						_ = healthServer.Shutdown(shutdownCtx)
						cancel()
					}()
				}
			}

			srv := &server{
				logger:         logger,
				api:            api,
				installs:       installs,
				sessions:       sessions,
				window:         dedup.NewWindow(dedup.DefaultCapacity),
				history:        hist,
				client:         client,
				params:         params,
				weather:        wf,
				defaultStation: strings.TrimSpace(viper.GetString("weatherflow.station_id")),
				botUserID:      botUserID,
				homeTeamID:     strings.TrimSpace(auth.TeamID),
				trigger:        strings.TrimSpace(viper.GetString("slack.trigger")),
				apis:           make(map[string]*slackapi.API),
				bots:           make(map[string]*bot.Bot),
			}

			logger.Info("serve_start",
				"bot_user_id", botUserID,
				"team_id", srv.homeTeamID,
				"model", viper.GetString("gemini.model"),
				"max_turns", viper.GetInt("history.max_turns"),
				"task_timeout", taskTimeout.String(),
				"max_concurrency", maxConc,
			)

			for {
				if cmd.Context().Err() != nil {
					logger.Info("serve_stop", "reason", "context_canceled")
					return nil
				}
				conn, err := api.ConnectSocket(cmd.Context())
				if err != nil {
					if cmd.Context().Err() != nil {
						logger.Info("serve_stop", "reason", "context_canceled")
						return nil
					}
					logger.Warn("serve_socket_connect_error", "error", err.Error())
					if err := slackapi.SleepWithContext(cmd.Context(), 2*time.Second); err != nil {
						return nil
					}
					continue
				}
				logger.Info("serve_socket_connected")
				readErr := consumeSocket(cmd.Context(), conn, func(envelope socketEnvelope) error {
					inbound, ok, err := parseInboundEvent(envelope)
					if err != nil {
						logger.Warn("serve_event_parse_error", "error", err.Error())
						return nil
					}
					if ok {
						ev := inbound.Event
						if ev.BotID == "" && !shouldHandleMessage(ev, srv.trigger, botUserID) {
							return nil
						}
						sem <- struct{}{}
						go func() {
							defer func() { <-sem }()
							ctx, cancel := context.WithTimeout(context.Background(), taskTimeout)
							defer cancel()
							outcome, err := srv.botFor(inbound.TeamID).HandleEvent(ctx, ev)
							if err != nil {
								logger.Warn("serve_event_error", "event_id", ev.EventID, "channel_id", ev.ChannelID, "error", err.Error())
								return
							}
							logger.Info("serve_event_done", "event_id", ev.EventID, "channel_id", ev.ChannelID, "outcome", string(outcome))
						}()
						return nil
					}

					slash, ok, err := parseSlashCommand(envelope)
					if err != nil {
						logger.Warn("serve_command_parse_error", "error", err.Error())
						return nil
					}
					if !ok {
						return nil
					}
					handler, ok := commandTable[strings.ToLower(strings.TrimSpace(slash.Command))]
					if !ok {
						logger.Debug("serve_command_unknown", "command", slash.Command)
						return nil
					}
					sem <- struct{}{}
					go func() {
						defer func() { <-sem }()
						ctx, cancel := context.WithTimeout(context.Background(), taskTimeout)
						defer cancel()
						handler(ctx, srv, slash)
					}()
					return nil
				})
				_ = conn.Close()
				if readErr != nil && !errors.Is(readErr, context.Canceled) && !errors.Is(readErr, context.DeadlineExceeded) {
					logger.Warn("serve_socket_read_error", "error", readErr.Error())
				}
			}
		},
	}

	cmd.Flags().String("slack-bot-token", "", "Slack bot token (xoxb-...).")
	cmd.Flags().String("slack-app-token", "", "Slack app-level token for Socket Mode (xapp-...).")
	cmd.Flags().String("gemini-api-key", "", "Gemini API key.")
	cmd.Flags().Duration("task-timeout", 0, "Per-event handling timeout (0 uses 5m).")
	cmd.Flags().Int("max-concurrency", 3, "Max number of events processed concurrently.")
	cmd.Flags().String("health-listen", "", "Health check listen address (e.g. :8080). Empty disables.")

	return cmd
}

// apiFor returns the Slack client for a workspace. The home workspace uses
// the configured bot token; other workspaces use their stored installation
// token and fall back to the home token when no installation is recorded.
func (s *server) apiFor(teamID string) *slackapi.API {
	teamID = strings.TrimSpace(teamID)
	if teamID == "" || teamID == s.homeTeamID {
		return s.api
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if api, ok := s.apis[teamID]; ok {
		return api
	}
	api := s.api
	install, ok, err := s.installs.Find(context.Background(), teamID)
	if err != nil {
		s.logger.Warn("serve_install_lookup_error", "team_id", teamID, "error", err.Error())
	} else if ok {
		api = s.api.WithBotToken(install.BotToken)
	}
	s.apis[teamID] = api
	return api
}

func (s *server) botFor(teamID string) *bot.Bot {
	teamID = strings.TrimSpace(teamID)
	api := s.apiFor(teamID)
	s.mu.Lock()
	defer s.mu.Unlock()
	if b, ok := s.bots[teamID]; ok {
		return b
	}
	b, err := bot.New(bot.Options{
		Logger:    s.logger,
		Window:    s.window,
		Sessions:  s.sessions,
		History:   s.history,
		Client:    s.client,
		Params:    s.params,
		Poster:    &channelPoster{api: api},
		BotUserID: s.botUserID,
		Trigger:   s.trigger,
	})
	if err != nil {
		// Options are validated at startup; this only trips on a nil dep.
		panic(err)
	}
	s.bots[teamID] = b
	return b
}

type channelPoster struct {
	api *slackapi.API
}

func (p *channelPoster) Post(ctx context.Context, channelID, fallback string, blocks []slackfmt.Block, threadTS string) error {
	return p.api.PostMessage(ctx, channelID, fallback, slackapi.PostMessageOptions{
		Blocks:   blocks,
		ThreadTS: threadTS,
	})
}

func paramsFromViper() llm.Params {
	params := llm.DefaultParams()
	if v := viper.GetInt("gemini.candidate_count"); v > 0 {
		params.CandidateCount = v
	}
	if v := viper.GetInt("gemini.max_output_tokens"); v > 0 {
		params.MaxOutputTokens = v
	}
	if viper.IsSet("gemini.temperature") {
		params.Temperature = viper.GetFloat64("gemini.temperature")
	}
	params.Safety = llm.Safety{
		Harassment: llm.NormalizeThreshold(viper.GetString("gemini.safety.harassment")),
		Hate:       llm.NormalizeThreshold(viper.GetString("gemini.safety.hate")),
		Sexual:     llm.NormalizeThreshold(viper.GetString("gemini.safety.sexual")),
		Dangerous:  llm.NormalizeThreshold(viper.GetString("gemini.safety.dangerous")),
	}
	return params
}
