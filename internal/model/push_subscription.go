package model

import "time"

// PushSubscription holds the information for a browser push subscription.
type PushSubscription struct {
	Endpoint  string    `gorm:"primaryKey"`
	P256DH    string    `gorm:"column:p256dh;not null"`
	Auth      string    `gorm:"not null"`
	CreatedAt time.Time `gorm:"not null"`
}

// RoomWatch maps a push subscription to a room number it wants updates for.
// Rooms themselves are not database rows, so the mapping is by number.
type RoomWatch struct {
	Endpoint   string `gorm:"primaryKey;size:512"`
	RoomNumber string `gorm:"primaryKey;size:8;index"`
}
