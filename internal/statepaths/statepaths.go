// Package statepaths resolves the directories slackbard keeps state in.
package statepaths

import (
	"os"
	"path/filepath"
)

func Dir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Clean(".slackbard")
	}
	return filepath.Join(home, ".slackbard")
}

func InstallsDir() string {
	return filepath.Join(Dir(), "installs")
}
