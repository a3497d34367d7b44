package database

import (
	"gorm.io/gorm"

	"github.com/charlesng35/studynotify/internal/models"
)

// AutoMigrate creates or updates the database schema for all models.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.Course{},
		&models.Assignment{},
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
	)
}

// SeedData inserts the default template for every trigger key. Existing templates are
// left untouched so authored copy survives restarts.
func SeedData(db *gorm.DB) error {
	for _, tmpl := range DefaultTemplates() {
		if err := db.Where(models.NotificationTemplate{Key: tmpl.Key}).Attrs(tmpl).FirstOrCreate(&models.NotificationTemplate{}).Error; err != nil {
			return err
		}
	}
	return nil
}
