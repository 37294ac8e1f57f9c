package model

import "time"

// Blob is one serialized document in the device-local key-value store. The
// room collection, the history log and the last-active-day marker each live
// under their own key.
type Blob struct {
	Key       string `gorm:"primaryKey;size:64"`
	Value     []byte `gorm:"not null"`
	UpdatedAt time.Time
}
