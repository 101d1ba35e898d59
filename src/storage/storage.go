// Package storage persists company fundamentals documents keyed by symbol.
package storage

import (
	"strings"

	"financials-sync/src/helpers"
	"financials-sync/src/interfaces"
	"financials-sync/src/logger"
	"financials-sync/src/models"
)

// NewSnapshotSink picks the backend from storage.db_type.
func NewSnapshotSink(cfg *models.MConfig, log *logger.Logger) (interfaces.ISnapshotSink, error) {
	switch strings.ToLower(cfg.Storage.DBType) {
	case "postgres", "postgresql":
		db, err := NewPostgresDB(cfg, log)
		if err != nil {
			return nil, err
		}
		return db, nil
	case "sqlite", "":
		db, err := NewAsyncSQLiteDB(cfg, log)
		if err != nil {
			return nil, err
		}
		return db, nil
	default:
		return nil, helpers.NewConfigurationError("unsupported db_type %q", cfg.Storage.DBType)
	}
}
