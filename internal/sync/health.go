package sync

import "time"

// Status is the device's view of its link to the shared collection.
type Status string

const (
	StatusConnected    Status = "connected"
	StatusUnstable     Status = "unstable"
	StatusDisconnected Status = "disconnected"
)

// connectedWindow is how recent the last successful sync must be for the
// link to count as healthy.
const connectedWindow = 30 * time.Second

// ResolveStatus derives the connection status from the raw signals.
// Unreachability or a missing login always wins; a reachable device that
// has not synced recently (or ever) is unstable, not disconnected.
func ResolveStatus(reachable, authenticated bool, lastSyncAt, now time.Time) Status {
	if !reachable || !authenticated {
		return StatusDisconnected
	}
	if !lastSyncAt.IsZero() && now.Sub(lastSyncAt) < connectedWindow {
		return StatusConnected
	}
	return StatusUnstable
}
