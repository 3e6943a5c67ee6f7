package installcmd

import (
	"context"
	"strings"
	"testing"

	"github.com/quailyquaily/slackbard/internal/installstore"
)

func TestAddInstallationRoundTrip(t *testing.T) {
	t.Parallel()

	store := installstore.NewFileStore(t.TempDir())
	var out strings.Builder
	err := addInstallation(context.Background(), &out, store, installstore.Installation{
		TeamID:    "T1",
		TeamName:  "Acme",
		BotToken:  "xoxb-acme",
		BotUserID: "U9",
	})
	if err != nil {
		t.Fatalf("addInstallation: %v", err)
	}
	if !strings.Contains(out.String(), "T1") {
		t.Fatalf("output = %q, want team id echoed", out.String())
	}

	install, ok, err := store.Find(context.Background(), "T1")
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if !ok {
		t.Fatalf("installation not found after add")
	}
	if install.BotToken != "xoxb-acme" || install.TeamName != "Acme" {
		t.Fatalf("installation = %+v", install)
	}
}

func TestAddInstallationRequiresToken(t *testing.T) {
	t.Parallel()

	store := installstore.NewFileStore(t.TempDir())
	err := addInstallation(context.Background(), &strings.Builder{}, store, installstore.Installation{TeamID: "T1"})
	if err == nil {
		t.Fatalf("expected error for missing bot token")
	}
}
