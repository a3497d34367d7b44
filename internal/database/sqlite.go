package database

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

const sqliteBusyTimeoutMillis = "5000"

func openSQLite(cfg Config) (*gorm.DB, error) {
	dsn, memory, err := buildSQLiteDSN(cfg)
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(sqlite.Open(dsn), gormConfig())
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if _, err := sqlDB.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return nil, fmt.Errorf("sqlite: enable foreign keys: %w", err)
	}

	if memory {
		// Shared-cache handles fail fast on table locks rather than honouring busy_timeout.
		sqlDB.SetMaxOpenConns(1)
		return db, nil
	}
	if err := configurePool(db, cfg); err != nil {
		return nil, err
	}
	return db, nil
}

// buildSQLiteDSN returns the connection string and whether it names an in-memory database.
// An empty path or ":memory:" yields a fresh named database per call.
func buildSQLiteDSN(cfg Config) (string, bool, error) {
	if dsn := strings.TrimSpace(cfg.DSN); dsn != "" {
		return dsn, strings.Contains(dsn, "mode=memory") || strings.Contains(dsn, ":memory:"), nil
	}

	params := url.Values{}
	params.Set("_foreign_keys", "1")

	path := strings.TrimSpace(cfg.Path)
	if path == "" || strings.EqualFold(path, ":memory:") {
		params.Set("mode", "memory")
		params.Set("cache", "shared")
		return "file:memdb-" + uuid.NewString() + "?" + params.Encode(), true, nil
	}

	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", false, fmt.Errorf("sqlite: create data directory: %w", err)
		}
	}
	params.Set("_journal_mode", "WAL")
	params.Set("_busy_timeout", sqliteBusyTimeoutMillis)
	return "file:" + filepath.ToSlash(path) + "?" + params.Encode(), false, nil
}
