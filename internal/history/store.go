// Package history persists the per-user conversation log with a bounded
// retention policy.
package history

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/quailyquaily/slackbard/db/models"
	"gorm.io/gorm"
)

const DefaultMaxTurns = 25

// ErrStorageUnavailable wraps any backing-store failure. The orchestrator
// converts it into a retry-later reply instead of degrading to an empty
// history.
var ErrStorageUnavailable = errors.New("history storage unavailable")

type Store struct {
	db       *gorm.DB
	maxTurns int
}

func NewStore(gdb *gorm.DB, maxTurns int) (*Store, error) {
	if gdb == nil {
		return nil, fmt.Errorf("db handle is required")
	}
	if maxTurns <= 0 {
		maxTurns = DefaultMaxTurns
	}
	return &Store{db: gdb, maxTurns: maxTurns}, nil
}

// Load returns up to maxTurns most recent turns for userID, ordered
// oldest-first so they can replay directly as conversation context.
func (s *Store) Load(ctx context.Context, userID string) ([]models.Turn, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("history store is not initialized")
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, fmt.Errorf("user_id is required")
	}

	var turns []models.Turn
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").
		Limit(s.maxTurns).
		Find(&turns).Error
	if err != nil {
		return nil, fmt.Errorf("%w: load turns for %s: %v", ErrStorageUnavailable, userID, err)
	}
	// Query returns newest-first; replay order is chronological.
	for i, j := 0, len(turns)-1; i < j; i, j = i+1, j-1 {
		turns[i], turns[j] = turns[j], turns[i]
	}
	return turns, nil
}

// Append writes a new turn with a store-assigned timestamp, then compacts
// anything beyond the newest maxTurns. Write and compaction are separate
// statements; the bound is eventual, not atomic.
func (s *Store) Append(ctx context.Context, userID, userText, modelText string) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("history store is not initialized")
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return fmt.Errorf("user_id is required")
	}

	turn := models.Turn{
		UserID:    userID,
		UserText:  userText,
		ModelText: modelText,
	}
	if err := s.db.WithContext(ctx).Create(&turn).Error; err != nil {
		return fmt.Errorf("%w: append turn for %s: %v", ErrStorageUnavailable, userID, err)
	}
	return s.compact(ctx, userID)
}

func (s *Store) compact(ctx context.Context, userID string) error {
	var total int64
	err := s.db.WithContext(ctx).
		Model(&models.Turn{}).
		Where("user_id = ?", userID).
		Count(&total).Error
	if err != nil {
		return fmt.Errorf("%w: count turns for %s: %v", ErrStorageUnavailable, userID, err)
	}
	excess := int(total) - s.maxTurns
	if excess <= 0 {
		return nil
	}

	var staleIDs []uint64
	err = s.db.WithContext(ctx).
		Model(&models.Turn{}).
		Where("user_id = ?", userID).
		Order("created_at ASC, id ASC").
		Limit(excess).
		Pluck("id", &staleIDs).Error
	if err != nil {
		return fmt.Errorf("%w: find stale turns for %s: %v", ErrStorageUnavailable, userID, err)
	}
	if len(staleIDs) == 0 {
		return nil
	}
	err = s.db.WithContext(ctx).Delete(&models.Turn{}, staleIDs).Error
	if err != nil {
		return fmt.Errorf("%w: delete stale turns for %s: %v", ErrStorageUnavailable, userID, err)
	}
	return nil
}
