// Package conflict reconciles a local and a remote version of one room.
package conflict

import (
	"fmt"
	"time"

	"roomstatus-backend/internal/model"
)

// Strategy selects how a local/remote divergence is resolved.
type Strategy string

const (
	// LastWriteWins returns the remote version unconditionally. No
	// per-document modification time is transmitted, so this can discard
	// newer local edits after a reconnect; kept for compatibility with the
	// deployed fleet.
	LastWriteWins Strategy = "lastWriteWins"

	// Merge combines both sides field by field: the more advanced color by
	// stage rank, the later of each stage timestamp, OR'd flags.
	Merge Strategy = "merge"

	// AskUser returns the local version unchanged; the actual decision is
	// deferred to the presentation layer.
	AskUser Strategy = "askUser"
)

// Resolve reconciles local and remote. It is pure and total over its inputs;
// an unrecognized strategy is a programming error and panics.
func Resolve(local, remote model.Room, strategy Strategy) model.Room {
	switch strategy {
	case LastWriteWins:
		return remote.Clone()
	case AskUser:
		return local.Clone()
	case Merge:
		return merge(local, remote)
	default:
		panic(fmt.Sprintf("conflict: unknown strategy %q", strategy))
	}
}

func merge(local, remote model.Room) model.Room {
	out := local.Clone()

	if remote.Color.Rank() > local.Color.Rank() {
		out.Color = remote.Color
		out.ScheduledTime = remote.ScheduledTime
	}

	out.UnsetAt = laterOf(local.UnsetAt, remote.UnsetAt)
	out.RedAt = laterOf(local.RedAt, remote.RedAt)
	out.GreenAt = laterOf(local.GreenAt, remote.GreenAt)
	out.BlueAt = laterOf(local.BlueAt, remote.BlueAt)
	out.WhiteAt = laterOf(local.WhiteAt, remote.WhiteAt)

	out.IsMarked = local.IsMarked || remote.IsMarked
	out.IsDeepCleaned = local.IsDeepCleaned || remote.IsDeepCleaned
	out.IsLockedBeforeCutoff = local.IsLockedBeforeCutoff || remote.IsLockedBeforeCutoff

	return out
}

// laterOf returns a copy of the later of two optional timestamps.
func laterOf(a, b *time.Time) *time.Time {
	switch {
	case a == nil && b == nil:
		return nil
	case a == nil:
		c := *b
		return &c
	case b == nil:
		c := *a
		return &c
	case b.After(*a):
		c := *b
		return &c
	default:
		c := *a
		return &c
	}
}
