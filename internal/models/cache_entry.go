package models

import "time"

// CacheEntry is a row of the database-backed cache. Counters use Hits; leases and other
// values use Value. A zero ExpiresAt never expires.
type CacheEntry struct {
	Key       string `gorm:"primaryKey;size:256"`
	Value     []byte
	Hits      int64     `gorm:"not null;default:0"`
	ExpiresAt time.Time `gorm:"index"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TableName pins the table so raw upsert expressions can qualify its columns.
func (CacheEntry) TableName() string {
	return "cache_entries"
}
