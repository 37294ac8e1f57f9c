package model

import (
	"time"

	"github.com/google/uuid"
)

// Color is the workflow stage of a room.
type Color string

const (
	ColorUnset  Color = "unset"
	ColorRed    Color = "red"
	ColorGreen  Color = "green"
	ColorBlue   Color = "blue"
	ColorPurple Color = "purple"
	ColorWhite  Color = "white"
)

// stageRank orders colors by housekeeping progress. Purple sits between red
// and green: a scheduled room is further along than an untouched red one but
// has not been cleaned yet.
var stageRank = map[Color]int{
	ColorUnset:  0,
	ColorRed:    1,
	ColorPurple: 2,
	ColorGreen:  3,
	ColorBlue:   4,
	ColorWhite:  5,
}

// Rank returns the stage-priority rank of the color.
func (c Color) Rank() int {
	return stageRank[c]
}

// Valid reports whether c is a recognized color value.
func (c Color) Valid() bool {
	_, ok := stageRank[c]
	return ok
}

// Room is one housekeeping unit.
type Room struct {
	ID     string `json:"id"`
	Number string `json:"number"`
	Color  Color  `json:"color"`

	// Stage entry timestamps. Each is set when the room transitions into
	// the matching color and is not cleared by later transitions, except
	// that entering white resets every timestamp but its own.
	UnsetAt *time.Time `json:"unsetAt,omitempty"`
	RedAt   *time.Time `json:"redAt,omitempty"`
	GreenAt *time.Time `json:"greenAt,omitempty"`
	BlueAt  *time.Time `json:"blueAt,omitempty"`
	WhiteAt *time.Time `json:"whiteAt,omitempty"`

	// ScheduledTime is a wall-clock time of day ("15:04"), meaningful only
	// while Color == ColorPurple.
	ScheduledTime string `json:"scheduledTime,omitempty"`

	IsMarked             bool `json:"isMarked"`
	IsDeepCleaned        bool `json:"isDeepCleaned"`
	IsLockedBeforeCutoff bool `json:"isLockedBeforeCutoff"`
}

// NewRoom creates a room with a fresh identity, color unset and the unset
// timestamp stamped at now.
func NewRoom(number string, now time.Time) Room {
	ts := now
	return Room{
		ID:      uuid.NewString(),
		Number:  number,
		Color:   ColorUnset,
		UnsetAt: &ts,
	}
}

// Clone returns a deep copy of the room. Timestamp pointers are re-allocated
// so a retained snapshot cannot be mutated through the original.
func (r Room) Clone() Room {
	out := r
	out.UnsetAt = cloneTime(r.UnsetAt)
	out.RedAt = cloneTime(r.RedAt)
	out.GreenAt = cloneTime(r.GreenAt)
	out.BlueAt = cloneTime(r.BlueAt)
	out.WhiteAt = cloneTime(r.WhiteAt)
	return out
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}

// Snapshot is a full copy of the room collection at one point in time.
type Snapshot []Room

// Clone deep-copies the snapshot.
func (s Snapshot) Clone() Snapshot {
	if s == nil {
		return nil
	}
	out := make(Snapshot, len(s))
	for i, r := range s {
		out[i] = r.Clone()
	}
	return out
}

// CanTransition reports whether a direct color change from -> to is allowed.
// A white room is locked and only leaves white through an explicit unlock,
// never through a plain color change.
func CanTransition(from, to Color) bool {
	if !to.Valid() {
		return false
	}
	if from == ColorWhite {
		return false
	}
	return from != to
}

// ApplyColorChange returns a copy of room moved to newColor at now, with the
// stage timestamp rules applied: the entered stage is stamped, leaving purple
// clears the scheduled time, and entering white resets every other timestamp,
// clears the schedule and flags, and engages the before-cutoff lock.
func ApplyColorChange(room Room, newColor Color, now time.Time) Room {
	out := room.Clone()
	if room.Color == ColorPurple && newColor != ColorPurple {
		out.ScheduledTime = ""
	}
	out.Color = newColor

	ts := now
	switch newColor {
	case ColorUnset:
		out.UnsetAt = &ts
	case ColorRed:
		out.RedAt = &ts
	case ColorGreen:
		out.GreenAt = &ts
	case ColorBlue:
		out.BlueAt = &ts
	case ColorWhite:
		out.UnsetAt = nil
		out.RedAt = nil
		out.GreenAt = nil
		out.BlueAt = nil
		out.WhiteAt = &ts
		out.ScheduledTime = ""
		out.IsMarked = false
		out.IsDeepCleaned = false
		out.IsLockedBeforeCutoff = true
	}
	return out
}

// Unlock releases a white-locked room back to unset with a fresh unset
// timestamp. Rooms that are not locked are returned unchanged.
func Unlock(room Room, now time.Time) Room {
	if !room.IsLockedBeforeCutoff {
		return room.Clone()
	}
	out := room.Clone()
	out.IsLockedBeforeCutoff = false
	out.Color = ColorUnset
	ts := now
	out.UnsetAt = &ts
	out.WhiteAt = nil
	return out
}
