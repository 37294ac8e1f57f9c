// Package store owns the authoritative in-memory room collection. Every
// mutating entry point — user actions, remote-apply callbacks and the
// scheduled-room sweep — runs through one mutex-serialized path; reads hand
// out snapshots.
package store

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"roomstatus-backend/internal/conflict"
	"roomstatus-backend/internal/history"
	"roomstatus-backend/internal/model"
	"roomstatus-backend/internal/parse"
	"roomstatus-backend/internal/persist"
)

var (
	ErrInvalidNumber     = errors.New("invalid room number")
	ErrDuplicateRoom     = errors.New("room number already exists")
	ErrRoomNotFound      = errors.New("room not found")
	ErrRoomLocked        = errors.New("room is locked before cutoff")
	ErrInvalidTransition = errors.New("color transition not allowed")
	ErrInvalidSchedule   = errors.New("invalid scheduled time")
)

// Syncer is the capability the store needs from the sync engine. Both calls
// must return immediately; the engine does the network work in the
// background.
type Syncer interface {
	// RequestPush schedules a debounced push of the current collection.
	RequestPush()
	// RequestDelete asks for an explicit remote document removal.
	RequestDelete(roomID string)
}

type noopSyncer struct{}

func (noopSyncer) RequestPush()         {}
func (noopSyncer) RequestDelete(string) {}

// Options wires the store's collaborators.
type Options struct {
	History  *history.Manager
	Persist  persist.Store
	Ranges   parse.Ranges
	Location *time.Location
}

// Store is the aggregate root over the room collection.
type Store struct {
	mu        sync.Mutex
	rooms     model.Snapshot
	history   *history.Manager
	persist   persist.Store
	ranges    parse.Ranges
	loc       *time.Location
	observers *observerSet
	syncer    Syncer
	now       func() time.Time
}

// New creates an empty store. Call Load to restore persisted state.
func New(opts Options) *Store {
	loc := opts.Location
	if loc == nil {
		loc = time.UTC
	}
	return &Store{
		history:   opts.History,
		persist:   opts.Persist,
		ranges:    opts.Ranges,
		loc:       loc,
		observers: newObserverSet(),
		syncer:    noopSyncer{},
		now:       time.Now,
	}
}

// AttachSyncer connects the sync engine. Before this is called, push and
// delete requests are dropped.
func (s *Store) AttachSyncer(sy Syncer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.syncer = sy
}

// Subscribe registers an observer for room change notifications.
func (s *Store) Subscribe(o Observer) { s.observers.add(o) }

// Unsubscribe removes a previously registered observer.
func (s *Store) Unsubscribe(o Observer) { s.observers.remove(o) }

// History exposes the undo log for read-only callers.
func (s *Store) History() *history.Manager { return s.history }

// Load restores the persisted collection and applies the day rollover: the
// first start on a new calendar day clears the board.
func (s *Store) Load(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rooms, err := s.persist.LoadRooms(ctx)
	if err != nil {
		return fmt.Errorf("load rooms: %w", err)
	}
	s.rooms = rooms

	today := s.now().In(s.loc).Format("2006-01-02")
	lastDay, err := s.persist.LastActiveDay(ctx)
	if err != nil {
		log.Printf("store: could not read last-active-day marker: %v", err)
	}
	if lastDay != "" && lastDay != today && len(s.rooms) > 0 {
		log.Printf("store: new day %s (last active %s), clearing %d rooms", today, lastDay, len(s.rooms))
		before := s.rooms
		s.rooms = nil
		s.history.Record(ctx, model.ActionBulkClear, "New day: cleared all rooms", "", before, nil)
		s.persistLocked(ctx)
	}
	if err := s.persist.SetLastActiveDay(ctx, today); err != nil {
		log.Printf("store: could not write last-active-day marker: %v", err)
	}
	return nil
}

// Rooms returns a snapshot of the collection, safe to hold across later
// mutations.
func (s *Store) Rooms() model.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rooms.Clone()
}

// RoomByNumber returns the room with the given number, if present.
func (s *Store) RoomByNumber(number string) (model.Room, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.rooms {
		if r.Number == number {
			return r.Clone(), true
		}
	}
	return model.Room{}, false
}

// RoomByID returns the room with the given id, if present.
func (s *Store) RoomByID(id string) (model.Room, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.indexByID(id); i >= 0 {
		return s.rooms[i].Clone(), true
	}
	return model.Room{}, false
}

// AddRoom validates and appends a new room with color unset.
func (s *Store) AddRoom(ctx context.Context, number string) (model.Room, error) {
	if err := parse.Validate(number, s.ranges); err != nil {
		return model.Room{}, fmt.Errorf("%w: %v", ErrInvalidNumber, err)
	}

	s.mu.Lock()
	for _, r := range s.rooms {
		if r.Number == number {
			s.mu.Unlock()
			return model.Room{}, fmt.Errorf("%w: %s", ErrDuplicateRoom, number)
		}
	}

	before := s.rooms.Clone()
	room := model.NewRoom(number, s.now())
	s.rooms = append(s.rooms, room)
	s.history.Record(ctx, model.ActionAdd, fmt.Sprintf("Added room %s", number), number, before, s.rooms)
	s.persistLocked(ctx)
	s.mu.Unlock()

	s.observers.upserted(room)
	s.syncer.RequestPush()
	return room.Clone(), nil
}

// DeleteRoom removes the room locally and issues an explicit remote
// document removal.
func (s *Store) DeleteRoom(ctx context.Context, id string) error {
	s.mu.Lock()
	i := s.indexByID(id)
	if i < 0 {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrRoomNotFound, id)
	}

	before := s.rooms.Clone()
	room := s.rooms[i]
	s.rooms = append(s.rooms[:i], s.rooms[i+1:]...)
	s.history.Record(ctx, model.ActionDelete, fmt.Sprintf("Deleted room %s", room.Number), room.Number, before, s.rooms)
	s.persistLocked(ctx)
	s.mu.Unlock()

	s.observers.removed(id)
	s.syncer.RequestDelete(id)
	return nil
}

// SetColor moves a room to a new workflow stage, applying the stage
// timestamp rules. Locked rooms reject everything but Unlock.
func (s *Store) SetColor(ctx context.Context, id string, newColor model.Color) error {
	s.mu.Lock()
	i := s.indexByID(id)
	if i < 0 {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrRoomNotFound, id)
	}
	room := s.rooms[i]
	if room.IsLockedBeforeCutoff {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrRoomLocked, room.Number)
	}
	if !model.CanTransition(room.Color, newColor) {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, room.Color, newColor)
	}

	before := s.rooms.Clone()
	updated := model.ApplyColorChange(room, newColor, s.now())
	s.rooms[i] = updated
	s.history.Record(ctx, model.ActionStatusChange,
		fmt.Sprintf("Room %s: %s -> %s", room.Number, room.Color, newColor),
		room.Number, before, s.rooms)
	s.persistLocked(ctx)
	s.mu.Unlock()

	s.observers.upserted(updated)
	s.syncer.RequestPush()
	return nil
}

// Unlock releases a white-locked room back to unset.
func (s *Store) Unlock(ctx context.Context, id string) error {
	s.mu.Lock()
	i := s.indexByID(id)
	if i < 0 {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrRoomNotFound, id)
	}
	room := s.rooms[i]
	if !room.IsLockedBeforeCutoff {
		s.mu.Unlock()
		return nil
	}

	before := s.rooms.Clone()
	updated := model.Unlock(room, s.now())
	s.rooms[i] = updated
	s.history.Record(ctx, model.ActionStatusChange,
		fmt.Sprintf("Unlocked room %s", room.Number), room.Number, before, s.rooms)
	s.persistLocked(ctx)
	s.mu.Unlock()

	s.observers.upserted(updated)
	s.syncer.RequestPush()
	return nil
}

// ToggleMark flips the marked flag.
func (s *Store) ToggleMark(ctx context.Context, id string) error {
	return s.toggleFlag(ctx, id, model.ActionMarkToggle, func(r *model.Room) {
		r.IsMarked = !r.IsMarked
	})
}

// ToggleDeepClean flips the deep-cleaned flag.
func (s *Store) ToggleDeepClean(ctx context.Context, id string) error {
	return s.toggleFlag(ctx, id, model.ActionDeepCleanToggle, func(r *model.Room) {
		r.IsDeepCleaned = !r.IsDeepCleaned
	})
}

func (s *Store) toggleFlag(ctx context.Context, id string, kind model.ActionKind, flip func(*model.Room)) error {
	s.mu.Lock()
	i := s.indexByID(id)
	if i < 0 {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrRoomNotFound, id)
	}
	room := s.rooms[i]
	if room.IsLockedBeforeCutoff {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrRoomLocked, room.Number)
	}

	before := s.rooms.Clone()
	updated := room.Clone()
	flip(&updated)
	s.rooms[i] = updated
	s.history.Record(ctx, kind, fmt.Sprintf("Toggled %s on room %s", kind, room.Number), room.Number, before, s.rooms)
	s.persistLocked(ctx)
	s.mu.Unlock()

	s.observers.upserted(updated)
	s.syncer.RequestPush()
	return nil
}

// Schedule marks a room purple for later cleaning at the given wall-clock
// time of day ("15:04").
func (s *Store) Schedule(ctx context.Context, id string, timeOfDay string) error {
	if _, err := time.ParseInLocation("15:04", timeOfDay, s.loc); err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidSchedule, timeOfDay)
	}

	s.mu.Lock()
	i := s.indexByID(id)
	if i < 0 {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrRoomNotFound, id)
	}
	room := s.rooms[i]
	if room.IsLockedBeforeCutoff {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrRoomLocked, room.Number)
	}

	before := s.rooms.Clone()
	updated := model.ApplyColorChange(room, model.ColorPurple, s.now())
	updated.ScheduledTime = timeOfDay
	s.rooms[i] = updated
	s.history.Record(ctx, model.ActionScheduleChange,
		fmt.Sprintf("Scheduled room %s for %s", room.Number, timeOfDay), room.Number, before, s.rooms)
	s.persistLocked(ctx)
	s.mu.Unlock()

	s.observers.upserted(updated)
	s.syncer.RequestPush()
	return nil
}

// ClearAll removes every room from the board.
func (s *Store) ClearAll(ctx context.Context) {
	s.mu.Lock()
	if len(s.rooms) == 0 {
		s.mu.Unlock()
		return
	}
	before := s.rooms.Clone()
	removed := s.rooms
	s.rooms = nil
	s.history.Record(ctx, model.ActionBulkClear, fmt.Sprintf("Cleared all %d rooms", len(removed)), "", before, nil)
	s.persistLocked(ctx)
	s.mu.Unlock()

	for _, room := range removed {
		s.observers.removed(room.ID)
		s.syncer.RequestDelete(room.ID)
	}
	s.syncer.RequestPush()
}

// Undo restores the collection to the snapshot preceding the most recent
// recorded action. The undo itself is not recorded. Returns false when the
// history log is empty.
func (s *Store) Undo(ctx context.Context) bool {
	s.mu.Lock()
	snap, ok := s.history.UndoLast(ctx)
	if !ok {
		s.mu.Unlock()
		return false
	}
	prev := s.rooms
	s.rooms = snap
	s.persistLocked(ctx)
	current := s.rooms.Clone()

	// Rooms that existed before the undo but not after (undoing an add)
	// leave as removals, not silently.
	restored := make(map[string]struct{}, len(snap))
	for _, r := range snap {
		restored[r.ID] = struct{}{}
	}
	var removed []string
	for _, r := range prev {
		if _, ok := restored[r.ID]; !ok {
			removed = append(removed, r.ID)
		}
	}
	s.mu.Unlock()

	s.observers.upserted(current...)
	s.observers.removed(removed...)
	s.syncer.RequestPush()
	return true
}

// ApplyRemoteChange folds one inbound document into the collection. Known
// rooms go through last-write-wins conflict resolution; unknown ids insert
// as genuinely new rooms. The mutation never schedules a push back: remote
// applies must not feed the sync loop.
func (s *Store) ApplyRemoteChange(ctx context.Context, remoteRoom model.Room) {
	s.mu.Lock()
	before := s.rooms.Clone()
	i := s.indexByID(remoteRoom.ID)
	if i < 0 {
		// Two devices can create the same number while offline. Fold the
		// inbound document onto the number-matching room instead of
		// inserting a duplicate.
		i = s.indexByNumber(remoteRoom.Number)
	}

	var applied model.Room
	var description string
	var replacedID string
	if i < 0 {
		applied = remoteRoom.Clone()
		s.rooms = append(s.rooms, applied)
		description = fmt.Sprintf("Sync: added room %s", remoteRoom.Number)
	} else {
		prior := s.rooms[i]
		applied = conflict.Resolve(prior, remoteRoom, conflict.LastWriteWins)
		s.rooms[i] = applied
		if prior.ID != applied.ID {
			replacedID = prior.ID
		}
		description = fmt.Sprintf("Sync: updated room %s", remoteRoom.Number)
	}
	s.history.Record(ctx, model.ActionSystemChange, description, remoteRoom.Number, before, s.rooms)
	s.persistLocked(ctx)
	s.mu.Unlock()

	if replacedID != "" {
		s.observers.removed(replacedID)
	}
	s.observers.upserted(applied)
}

// ApplyRemoteDelete removes a room deleted on another device. Unknown ids
// are a silent no-op: no error, no history entry.
func (s *Store) ApplyRemoteDelete(ctx context.Context, id string) {
	s.mu.Lock()
	i := s.indexByID(id)
	if i < 0 {
		s.mu.Unlock()
		return
	}
	before := s.rooms.Clone()
	room := s.rooms[i]
	s.rooms = append(s.rooms[:i], s.rooms[i+1:]...)
	s.history.Record(ctx, model.ActionSystemChange,
		fmt.Sprintf("Sync: removed room %s", room.Number), room.Number, before, s.rooms)
	s.persistLocked(ctx)
	s.mu.Unlock()

	s.observers.removed(id)
}

// AdvanceScheduledRooms transitions every purple room whose scheduled time
// has passed (interpreted as today's wall clock) to red. Idempotent: the
// transition clears the schedule, so a second pass finds nothing to do.
func (s *Store) AdvanceScheduledRooms(ctx context.Context, now time.Time) int {
	local := now.In(s.loc)

	s.mu.Lock()
	var due []int
	for i, room := range s.rooms {
		if room.Color != model.ColorPurple || room.ScheduledTime == "" {
			continue
		}
		at, err := time.ParseInLocation("15:04", room.ScheduledTime, s.loc)
		if err != nil {
			log.Printf("store: room %s has unparseable scheduled time %q", room.Number, room.ScheduledTime)
			continue
		}
		dueAt := time.Date(local.Year(), local.Month(), local.Day(), at.Hour(), at.Minute(), 0, 0, s.loc)
		if !local.Before(dueAt) {
			due = append(due, i)
		}
	}
	if len(due) == 0 {
		s.mu.Unlock()
		return 0
	}

	before := s.rooms.Clone()
	var advanced []model.Room
	for _, i := range due {
		updated := model.ApplyColorChange(s.rooms[i], model.ColorRed, now)
		s.rooms[i] = updated
		advanced = append(advanced, updated)
	}
	s.history.Record(ctx, model.ActionSystemChange,
		fmt.Sprintf("Advanced %d scheduled rooms to red", len(advanced)), "", before, s.rooms)
	s.persistLocked(ctx)
	s.mu.Unlock()

	s.observers.upserted(advanced...)
	s.syncer.RequestPush()
	return len(advanced)
}

// RunSweep drives the scheduled-room sweep on a fixed interval until ctx is
// cancelled.
func (s *Store) RunSweep(ctx context.Context, interval time.Duration) {
	timer := time.NewTimer(interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("store: scheduled-room sweep shutting down")
			return
		case <-timer.C:
			if n := s.AdvanceScheduledRooms(ctx, s.now()); n > 0 {
				log.Printf("store: advanced %d scheduled rooms", n)
			}
			timer.Reset(interval)
		}
	}
}

// indexByID must be called with the lock held.
func (s *Store) indexByID(id string) int {
	for i, r := range s.rooms {
		if r.ID == id {
			return i
		}
	}
	return -1
}

// indexByNumber must be called with the lock held.
func (s *Store) indexByNumber(number string) int {
	for i, r := range s.rooms {
		if r.Number == number {
			return i
		}
	}
	return -1
}

// persistLocked writes the collection best-effort: persistence errors never
// block the in-memory mutation, which is the session's source of truth.
func (s *Store) persistLocked(ctx context.Context) {
	if err := s.persist.SaveRooms(ctx, s.rooms); err != nil {
		log.Printf("store: persist failed (in-memory state kept): %v", err)
	}
}
