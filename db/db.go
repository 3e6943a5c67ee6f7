// Package db opens the sqlite database backing durable conversation state.
package db

import (
	"fmt"
	"strings"

	"github.com/quailyquaily/slackbard/db/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Open resolves the DSN, opens sqlite, and migrates the turn table. The
// pool is pinned to a single connection; sqlite allows one writer.
func Open(dsn string) (*gorm.DB, error) {
	resolved, err := ResolveSQLiteDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("resolve sqlite dsn: %w", err)
	}

	gdb, err := gorm.Open(sqlite.Open(withSQLiteParams(resolved)), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)

	if err := gdb.AutoMigrate(&models.Turn{}); err != nil {
		return nil, fmt.Errorf("automigrate: %w", err)
	}
	return gdb, nil
}

func withSQLiteParams(dsn string) string {
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "_busy_timeout=5000&_foreign_keys=on&_journal_mode=WAL"
}
