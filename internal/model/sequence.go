package model

import "time"

// Sequence is the atomic counter row behind business number allocation.
// Key is PREFIX_YEAR, e.g. ORD_2026.
type Sequence struct {
	Key       string    `gorm:"type:varchar(50);primaryKey" json:"key"`
	Value     int64     `gorm:"not null;default:0" json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}
