// Package installstore persists per-workspace installation credentials as
// JSON files under the state directory.
package installstore

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Installation is one workspace's bot credentials.
type Installation struct {
	ID          string    `json:"id"`
	TeamID      string    `json:"team_id"`
	TeamName    string    `json:"team_name,omitempty"`
	BotToken    string    `json:"bot_token"`
	BotUserID   string    `json:"bot_user_id,omitempty"`
	InstalledAt time.Time `json:"installed_at"`
}

type FileStore struct {
	dir string
}

func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: strings.TrimSpace(dir)}
}

// Ensure creates the backing directory.
func (s *FileStore) Ensure(_ context.Context) error {
	if s == nil || s.dir == "" {
		return fmt.Errorf("install store dir is required")
	}
	return os.MkdirAll(s.dir, 0o700)
}

func (s *FileStore) Save(_ context.Context, install Installation) error {
	if s == nil || s.dir == "" {
		return fmt.Errorf("install store is not initialized")
	}
	teamID := strings.TrimSpace(install.TeamID)
	if teamID == "" {
		return fmt.Errorf("team_id is required")
	}
	if strings.TrimSpace(install.BotToken) == "" {
		return fmt.Errorf("bot_token is required")
	}
	install.TeamID = teamID
	if strings.TrimSpace(install.ID) == "" {
		install.ID = "inst_" + uuid.NewString()
	}
	if install.InstalledAt.IsZero() {
		install.InstalledAt = time.Now().UTC()
	}

	raw, err := json.MarshalIndent(install, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(s.dir, 0o700); err != nil {
		return err
	}
	return os.WriteFile(s.path(teamID), raw, 0o600)
}

// Find returns the installation for teamID when present.
func (s *FileStore) Find(_ context.Context, teamID string) (*Installation, bool, error) {
	if s == nil || s.dir == "" {
		return nil, false, fmt.Errorf("install store is not initialized")
	}
	teamID = strings.TrimSpace(teamID)
	if teamID == "" {
		return nil, false, fmt.Errorf("team_id is required")
	}
	raw, err := os.ReadFile(s.path(teamID))
	if os.IsNotExist(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var install Installation
	if err := json.Unmarshal(raw, &install); err != nil {
		return nil, false, fmt.Errorf("install record for %s is invalid: %w", teamID, err)
	}
	return &install, true, nil
}

func (s *FileStore) path(teamID string) string {
	return filepath.Join(s.dir, teamID+".json")
}
