package testutil

import (
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/charlesng35/studynotify/internal/database"
)

// TestDBOption customises MustOpenTestDB.
type TestDBOption func(*testDBConfig)

type testDBConfig struct {
	migrate  bool
	seed     bool
	fixtures []any
}

// WithAutoMigrate creates the engine schema.
func WithAutoMigrate() TestDBOption {
	return func(cfg *testDBConfig) {
		cfg.migrate = true
	}
}

// WithSeedData creates the schema and installs the default notification templates.
func WithSeedData() TestDBOption {
	return func(cfg *testDBConfig) {
		cfg.migrate = true
		cfg.seed = true
	}
}

// WithFixtures inserts model rows (assignments, mood entries, preferences...) after migration.
// Pass pointers so generated IDs are visible to the caller.
func WithFixtures(rows ...any) TestDBOption {
	return func(cfg *testDBConfig) {
		cfg.migrate = true
		cfg.fixtures = append(cfg.fixtures, rows...)
	}
}

// MustOpenTestDB opens a private in-memory SQLite database closed on test cleanup.
func MustOpenTestDB(t *testing.T, opts ...TestDBOption) *gorm.DB {
	t.Helper()

	var cfg testDBConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	db, err := database.Open(database.Config{Driver: "sqlite"})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	switch {
	case cfg.seed:
		require.NoError(t, database.AutoMigrateAndSeed(db))
	case cfg.migrate:
		require.NoError(t, database.AutoMigrate(db))
	}

	Insert(t, db, cfg.fixtures...)
	return db
}

// Insert creates each row, failing the test on the first error.
func Insert(t *testing.T, db *gorm.DB, rows ...any) {
	t.Helper()
	for _, row := range rows {
		require.NoError(t, db.Create(row).Error, "insert %T", row)
	}
}
