package models

import "time"

// Turn is one completed conversation exchange for a user. Rows are
// immutable after creation and removed only by retention compaction.
type Turn struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"`

	UserID    string `gorm:"type:text;not null;index:idx_turns_user_created,priority:1"`
	UserText  string `gorm:"type:text;not null"`
	ModelText string `gorm:"type:text;not null"`

	// Assigned by the store at write time, never by the caller.
	CreatedAt time.Time `gorm:"autoCreateTime;index:idx_turns_user_created,priority:2"`
}

func (Turn) TableName() string { return "conversation_turns" }
