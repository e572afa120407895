package dbtest

import (
	"fmt"
	"sync/atomic"

	"roadassist/internal/database"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var memSeq atomic.Int64

// New opens a private in-memory SQLite database with every model
// migrated. Tests across packages use it in place of MySQL.
func New() (*gorm.DB, error) {
	dsn := fmt.Sprintf("file:roadassist_%d?mode=memory&cache=shared", memSeq.Add(1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)
	if err := database.AutoMigrate(db); err != nil {
		return nil, err
	}
	return db, nil
}
