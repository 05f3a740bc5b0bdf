// Package datastore opens and migrates the durable store backing the
// response cache and the pending-order queue.
package datastore

import (
	"fmt"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gorm_logger "gorm.io/gorm/logger"

	"github.com/Abdallaheslam/ostaz-edge/internal/datastore/entities"
)

// Open opens (creating if needed) the SQLite database at path and migrates
// the schema. WAL mode keeps concurrent request handlers from serializing
// on reads.
func Open(path string) (*gorm.DB, error) {
	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000", path)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gorm_logger.Default.LogMode(gorm_logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database %s: %w", path, err)
	}

	if err := db.AutoMigrate(
		&entities.CachedResponse{},
		&entities.PendingOrder{},
	); err != nil {
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}
	return db, nil
}
