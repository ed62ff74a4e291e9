package db

import (
	"fmt"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"github.com/yungbote/skillforge-backend/internal/platform/logger"
)

// OpenSQLite opens a SQLite database for local development and tests.
// The pool is pinned to one connection so ":memory:" databases are shared
// by every query and writers never contend for the file lock.
func OpenSQLite(logg *logger.Logger, path string) (*gorm.DB, error) {
	if path == "" {
		path = "file::memory:?cache=shared"
	}
	var gl gormLogger.Interface = gormLogger.Default.LogMode(gormLogger.Silent)
	if logg != nil {
		gl = gormLog(logg)
	}
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		Logger:                                   gl,
	})
	if err != nil {
		return nil, fmt.Errorf("open sqlite %q: %w", path, err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("sqlite pool: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)
	return db, nil
}
