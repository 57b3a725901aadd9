package models

import "time"

// Setting is one daemon-level key/value pair, e.g. the generated access
// API key. Account credentials never live here.
type Setting struct {
	Key       string `gorm:"primaryKey"`
	Value     string
	CreatedAt time.Time
	UpdatedAt time.Time
}
