package history

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/quailyquaily/slackbard/db/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "test.sqlite")
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := gdb.AutoMigrate(&models.Turn{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return gdb
}

func TestStoreLoadEmpty(t *testing.T) {
	t.Parallel()

	store, err := NewStore(openTestDB(t), 5)
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	turns, err := store.Load(context.Background(), "U1")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(turns) != 0 {
		t.Fatalf("len(turns) = %d, want 0", len(turns))
	}
}

func TestStoreRetentionKeepsNewestN(t *testing.T) {
	t.Parallel()

	const maxTurns = 5
	store, err := NewStore(openTestDB(t), maxTurns)
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	ctx := context.Background()
	for i := 1; i <= maxTurns+5; i++ {
		if err := store.Append(ctx, "U1", fmt.Sprintf("q%d", i), fmt.Sprintf("a%d", i)); err != nil {
			t.Fatalf("Append(%d) error = %v", i, err)
		}
	}

	turns, err := store.Load(ctx, "U1")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(turns) != maxTurns {
		t.Fatalf("len(turns) = %d, want %d", len(turns), maxTurns)
	}
	// The last N appends, oldest-first.
	for i, turn := range turns {
		wantQ := fmt.Sprintf("q%d", 6+i)
		if turn.UserText != wantQ {
			t.Fatalf("turns[%d].UserText = %q, want %q", i, turn.UserText, wantQ)
		}
	}

	// Nothing beyond N persists durably either.
	var total int64
	if err := store.db.Model(&models.Turn{}).Where("user_id = ?", "U1").Count(&total).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if total != maxTurns {
		t.Fatalf("durable rows = %d, want %d", total, maxTurns)
	}
}

func TestStoreRetentionIsPerUser(t *testing.T) {
	t.Parallel()

	store, err := NewStore(openTestDB(t), 3)
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	ctx := context.Background()
	for i := 1; i <= 4; i++ {
		if err := store.Append(ctx, "U1", fmt.Sprintf("u1-q%d", i), "a"); err != nil {
			t.Fatalf("Append(U1) error = %v", err)
		}
	}
	if err := store.Append(ctx, "U2", "u2-q1", "a"); err != nil {
		t.Fatalf("Append(U2) error = %v", err)
	}

	u2, err := store.Load(ctx, "U2")
	if err != nil {
		t.Fatalf("Load(U2) error = %v", err)
	}
	if len(u2) != 1 || u2[0].UserText != "u2-q1" {
		t.Fatalf("Load(U2) = %+v, want the single U2 turn", u2)
	}
	u1, err := store.Load(ctx, "U1")
	if err != nil {
		t.Fatalf("Load(U1) error = %v", err)
	}
	if len(u1) != 3 || u1[0].UserText != "u1-q2" {
		t.Fatalf("Load(U1) = %d turns starting %q, want 3 starting u1-q2", len(u1), u1[0].UserText)
	}
}

func TestStoreAssignsTimestamps(t *testing.T) {
	t.Parallel()

	store, err := NewStore(openTestDB(t), 5)
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	ctx := context.Background()
	if err := store.Append(ctx, "U1", "q", "a"); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	turns, err := store.Load(ctx, "U1")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(turns) != 1 {
		t.Fatalf("len(turns) = %d, want 1", len(turns))
	}
	if turns[0].CreatedAt.IsZero() {
		t.Fatalf("CreatedAt is zero, want store-assigned timestamp")
	}
}
