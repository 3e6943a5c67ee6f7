package db

import (
	"os"
	"path/filepath"
	"strings"
)

// ResolveSQLiteDSN picks the database file. An explicit DSN wins; otherwise
// an existing file under the state dir, then an existing file in the working
// directory, then a fresh file under the state dir.
func ResolveSQLiteDSN(dsn string) (string, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn != "" {
		return dsn, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}

	homeDir := filepath.Join(home, ".slackbard")
	homeDB := filepath.Join(homeDir, "slackbard.sqlite")
	localDB := filepath.Clean("./slackbard.sqlite")

	if _, err := os.Stat(homeDB); err == nil {
		return homeDB, nil
	}
	if _, err := os.Stat(localDB); err == nil {
		return localDB, nil
	}
	if err := os.MkdirAll(homeDir, 0o755); err != nil {
		return "", err
	}
	return homeDB, nil
}
