package database

import (
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/charlesng35/studynotify/internal/models"
)

func TestOpenSQLiteMemory(t *testing.T) {
	db := openTestDB(t)

	if err := db.Exec("SELECT 1").Error; err != nil {
		t.Fatalf("expected health query to succeed: %v", err)
	}
}

func TestOpenSQLiteMemoryIsolatesHandles(t *testing.T) {
	first := openTestDB(t)
	second := openTestDB(t)

	require.NoError(t, AutoMigrate(first))
	require.True(t, first.Migrator().HasTable(&models.Notification{}))
	require.False(t, second.Migrator().HasTable(&models.Notification{}))
}

func TestAutoMigrateCreatesTables(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, AutoMigrate(db))

	migrator := db.Migrator()
	for _, table := range []interface{}{
		&models.Assignment{},
		&models.Course{},
		&models.Submission{},
		&models.StudySession{},
		&models.CalendarEvent{},
		&models.MoodEntry{},
		&models.NotificationPreference{},
		&models.NotificationTemplate{},
		&models.Notification{},
		&models.NotificationDedupClaim{},
		&models.NotificationUserLock{},
		&models.TriggerLog{},
		&models.CacheEntry{},
	} {
		require.True(t, migrator.HasTable(table), "expected table for %T to exist", table)
	}
}

func TestAutoMigrateAndSeedData(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, AutoMigrateAndSeed(db))

	var count int64
	require.NoError(t, db.Model(&models.NotificationTemplate{}).Count(&count).Error)
	require.Equal(t, int64(len(DefaultTemplates())), count)

	var tmpl models.NotificationTemplate
	require.NoError(t, db.Take(&tmpl, map[string]any{"key": "deadline_due_tomorrow"}).Error)
	require.True(t, tmpl.IsActive)
	require.Equal(t, 80, tmpl.Priority)
}

func TestSeedDataKeepsEditedTemplates(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, AutoMigrateAndSeed(db))

	require.NoError(t, db.Model(&models.NotificationTemplate{}).
		Where(map[string]any{"key": "mood_improvement"}).
		Update("title_template", "Nice work").Error)

	require.NoError(t, SeedData(db))

	var tmpl models.NotificationTemplate
	require.NoError(t, db.Take(&tmpl, map[string]any{"key": "mood_improvement"}).Error)
	require.Equal(t, "Nice work", tmpl.TitleTemplate)
}

func TestDefaultTemplatesHaveUniqueKeys(t *testing.T) {
	seen := map[string]bool{}
	for _, tmpl := range DefaultTemplates() {
		require.False(t, seen[tmpl.Key], "duplicate template key %s", tmpl.Key)
		seen[tmpl.Key] = true
		require.NotEmpty(t, tmpl.TitleTemplate)
		require.NotEmpty(t, tmpl.Type)
	}
}

func TestAutoMigrateAndSeedRejectsNil(t *testing.T) {
	require.Error(t, AutoMigrateAndSeed(nil))
}

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := Open(Config{Driver: "sqlite"})
	if err != nil {
		t.Fatalf("open database: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	t.Cleanup(func() {
		_ = sqlDB.Close()
	})
	return db
}
