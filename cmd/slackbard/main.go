package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/quailyquaily/slackbard/cmd/slackbard/askcmd"
	"github.com/quailyquaily/slackbard/cmd/slackbard/installcmd"
	"github.com/quailyquaily/slackbard/cmd/slackbard/servecmd"
	"github.com/quailyquaily/slackbard/cmd/slackbard/weathercmd"
	"github.com/quailyquaily/slackbard/internal/bot"
	"github.com/quailyquaily/slackbard/internal/history"
	"github.com/quailyquaily/slackbard/internal/statepaths"
	"github.com/quailyquaily/slackbard/providers/gemini"
)

func newRootCmd() *cobra.Command {
	var configFile string

	cmd := &cobra.Command{
		Use:           "slackbard",
		Short:         "Slack bot bridging slash commands and mentions to Gemini",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig(configFile)
		},
	}

	cmd.PersistentFlags().StringVar(&configFile, "config", "", "Config file (default: ~/.slackbard/config.yaml).")
	cmd.PersistentFlags().String("log-level", "", "Log level: debug|info|warn|error.")
	_ = viper.BindPFlag("log.level", cmd.PersistentFlags().Lookup("log-level"))

	cmd.AddCommand(servecmd.New())
	cmd.AddCommand(askcmd.New())
	cmd.AddCommand(installcmd.New())
	cmd.AddCommand(weathercmd.New())

	return cmd
}

func initConfig(configFile string) error {
	viper.SetDefault("log.level", "info")

	viper.SetDefault("slack.trigger", bot.DefaultTrigger)
	viper.SetDefault("slack.task_timeout", "5m")
	viper.SetDefault("slack.max_concurrency", 3)

	viper.SetDefault("gemini.model", gemini.DefaultModel)
	viper.SetDefault("gemini.candidate_count", 1)
	viper.SetDefault("gemini.max_output_tokens", 8192)
	viper.SetDefault("gemini.temperature", 0.9)
	viper.SetDefault("gemini.safety.harassment", "unspecified")
	viper.SetDefault("gemini.safety.hate", "unspecified")
	viper.SetDefault("gemini.safety.sexual", "unspecified")
	viper.SetDefault("gemini.safety.dangerous", "unspecified")

	viper.SetDefault("history.max_turns", history.DefaultMaxTurns)

	viper.SetEnvPrefix("SLACKBARD")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if strings.TrimSpace(configFile) != "" {
		viper.SetConfigFile(configFile)
		if err := viper.ReadInConfig(); err != nil {
			return fmt.Errorf("read config %s: %w", configFile, err)
		}
		return nil
	}

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(statepaths.Dir())
	viper.AddConfigPath(".")
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
