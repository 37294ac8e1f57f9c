package model

import "time"

// ActionKind classifies an undoable store action.
type ActionKind string

const (
	ActionAdd             ActionKind = "add"
	ActionDelete          ActionKind = "delete"
	ActionStatusChange    ActionKind = "statusChange"
	ActionMarkToggle      ActionKind = "markToggle"
	ActionScheduleChange  ActionKind = "scheduleChange"
	ActionBulkClear       ActionKind = "bulkClear"
	ActionDeepCleanToggle ActionKind = "deepCleanToggle"
	ActionSystemChange    ActionKind = "systemChange"
)

// HistoryEntry records one mutating store action with full before/after
// snapshots of the room collection.
type HistoryEntry struct {
	ID          string     `json:"id"`
	Timestamp   time.Time  `json:"timestamp"`
	Kind        ActionKind `json:"kind"`
	RoomNumber  string     `json:"roomNumber,omitempty"` // empty for bulk and system actions
	Description string     `json:"description"`
	Before      Snapshot   `json:"before"`
	After       Snapshot   `json:"after"`
}
