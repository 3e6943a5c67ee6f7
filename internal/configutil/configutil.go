// Package configutil resolves settings that may arrive as a CLI flag or a
// viper key, with the flag winning when explicitly set.
package configutil

import (
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func FlagOrViperString(cmd *cobra.Command, flag, key string) string {
	if cmd != nil && flag != "" && cmd.Flags().Changed(flag) {
		v, err := cmd.Flags().GetString(flag)
		if err == nil {
			return v
		}
	}
	if key == "" {
		return ""
	}
	return viper.GetString(key)
}

func FlagOrViperInt(cmd *cobra.Command, flag, key string) int {
	if cmd != nil && flag != "" && cmd.Flags().Changed(flag) {
		v, err := cmd.Flags().GetInt(flag)
		if err == nil {
			return v
		}
	}
	if key == "" {
		return 0
	}
	return viper.GetInt(key)
}

func FlagOrViperFloat64(cmd *cobra.Command, flag, key string) float64 {
	if cmd != nil && flag != "" && cmd.Flags().Changed(flag) {
		v, err := cmd.Flags().GetFloat64(flag)
		if err == nil {
			return v
		}
	}
	if key == "" {
		return 0
	}
	return viper.GetFloat64(key)
}

func FlagOrViperDuration(cmd *cobra.Command, flag, key string) time.Duration {
	if cmd != nil && flag != "" && cmd.Flags().Changed(flag) {
		v, err := cmd.Flags().GetDuration(flag)
		if err == nil {
			return v
		}
	}
	if key == "" {
		return 0
	}
	return viper.GetDuration(key)
}

func FlagOrViperBool(cmd *cobra.Command, flag, key string) bool {
	if cmd != nil && flag != "" && cmd.Flags().Changed(flag) {
		v, err := cmd.Flags().GetBool(flag)
		if err == nil {
			return v
		}
	}
	if key == "" {
		return false
	}
	return viper.GetBool(key)
}
