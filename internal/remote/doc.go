package remote

import (
	"fmt"
	"time"

	"roomstatus-backend/internal/model"
)

// Doc is the wire form of one room document in the remote store. Each room
// maps to exactly one document keyed by its id.
type Doc struct {
	ID            string     `json:"id"`
	Number        string     `json:"number"`
	Color         string     `json:"color"`
	UnsetAt       *time.Time `json:"unsetAt,omitempty"`
	RedAt         *time.Time `json:"redAt,omitempty"`
	GreenAt       *time.Time `json:"greenAt,omitempty"`
	BlueAt        *time.Time `json:"blueAt,omitempty"`
	WhiteAt       *time.Time `json:"whiteAt,omitempty"`
	ScheduledTime string     `json:"scheduledTime,omitempty"`
	IsMarked      bool       `json:"isMarked"`
	IsDeepCleaned bool       `json:"isDeepCleaned"`
	IsLocked      bool       `json:"isLockedBeforeCutoff"`
	DeviceID      string     `json:"deviceId"`
}

// DocFromRoom converts a room to its wire form, stamping the owning device.
func DocFromRoom(room model.Room, deviceID string) Doc {
	return Doc{
		ID:            room.ID,
		Number:        room.Number,
		Color:         string(room.Color),
		UnsetAt:       room.UnsetAt,
		RedAt:         room.RedAt,
		GreenAt:       room.GreenAt,
		BlueAt:        room.BlueAt,
		WhiteAt:       room.WhiteAt,
		ScheduledTime: room.ScheduledTime,
		IsMarked:      room.IsMarked,
		IsDeepCleaned: room.IsDeepCleaned,
		IsLocked:      room.IsLockedBeforeCutoff,
		DeviceID:      deviceID,
	}
}

// Room converts the document back to a room, rejecting malformed content so
// a single bad document can be skipped without killing the subscription.
func (d Doc) Room() (model.Room, error) {
	if d.ID == "" {
		return model.Room{}, fmt.Errorf("document has no id")
	}
	color := model.Color(d.Color)
	if !color.Valid() {
		return model.Room{}, fmt.Errorf("document %s has unknown color %q", d.ID, d.Color)
	}
	return model.Room{
		ID:                   d.ID,
		Number:               d.Number,
		Color:                color,
		UnsetAt:              d.UnsetAt,
		RedAt:                d.RedAt,
		GreenAt:              d.GreenAt,
		BlueAt:               d.BlueAt,
		WhiteAt:              d.WhiteAt,
		ScheduledTime:        d.ScheduledTime,
		IsMarked:             d.IsMarked,
		IsDeepCleaned:        d.IsDeepCleaned,
		IsLockedBeforeCutoff: d.IsLocked,
	}, nil
}

// DeviceMeta is the per-device "last sync" metadata document.
type DeviceMeta struct {
	DeviceID   string    `json:"deviceId"`
	DeviceName string    `json:"deviceName"`
	LastSyncAt time.Time `json:"lastSyncAt"`
}
