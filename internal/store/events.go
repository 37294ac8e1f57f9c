package store

import (
	"sync"

	"roomstatus-backend/internal/model"
)

// Observer receives room change notifications after a mutation has fully
// committed. Callbacks run outside the store's mutation lock and must not
// call back into mutating store operations synchronously.
type Observer interface {
	RoomUpserted(room model.Room)
	RoomRemoved(id string)
}

type observerSet struct {
	mu        sync.Mutex
	observers map[Observer]struct{}
}

func newObserverSet() *observerSet {
	return &observerSet{observers: make(map[Observer]struct{})}
}

func (o *observerSet) add(obs Observer) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.observers[obs] = struct{}{}
}

func (o *observerSet) remove(obs Observer) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.observers, obs)
}

func (o *observerSet) upserted(rooms ...model.Room) {
	o.mu.Lock()
	targets := make([]Observer, 0, len(o.observers))
	for obs := range o.observers {
		targets = append(targets, obs)
	}
	o.mu.Unlock()

	for _, obs := range targets {
		for _, room := range rooms {
			obs.RoomUpserted(room.Clone())
		}
	}
}

func (o *observerSet) removed(ids ...string) {
	o.mu.Lock()
	targets := make([]Observer, 0, len(o.observers))
	for obs := range o.observers {
		targets = append(targets, obs)
	}
	o.mu.Unlock()

	for _, obs := range targets {
		for _, id := range ids {
			obs.RoomRemoved(id)
		}
	}
}
