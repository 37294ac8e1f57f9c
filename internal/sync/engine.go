// Package sync keeps the local room collection and the shared remote
// collection converged: debounced pushes, a realtime pull feed, and a
// polled reachability check that drives the connection status.
package sync

import (
	"context"
	"log"
	stdsync "sync"
	"time"

	"roomstatus-backend/config"
	"roomstatus-backend/internal/model"
	"roomstatus-backend/internal/remote"
)

// flushTimeout bounds one push attempt against a slow remote.
const flushTimeout = 15 * time.Second

// Board is the local collection the engine reads from and applies remote
// changes into.
type Board interface {
	Rooms() model.Snapshot
	ApplyRemoteChange(ctx context.Context, room model.Room)
	ApplyRemoteDelete(ctx context.Context, id string)
}

// Watcher is a live change feed, see remote.Subscription.
type Watcher interface {
	Events() <-chan remote.Event
	Stop()
}

// Transport is the remote surface the engine drives.
type Transport interface {
	CommitRooms(ctx context.Context, rooms model.Snapshot) error
	DeleteRoom(ctx context.Context, id string) error
	FetchAll(ctx context.Context) (model.Snapshot, error)
	WriteDeviceMeta(ctx context.Context, lastSyncAt time.Time) error
	Ping(ctx context.Context) bool
	Watch(ctx context.Context) (Watcher, error)
}

type clientTransport struct {
	*remote.Client
}

func (t clientTransport) Watch(ctx context.Context) (Watcher, error) {
	return t.Client.Watch(ctx)
}

// NewTransport wraps the HTTP client as an engine transport.
func NewTransport(c *remote.Client) Transport {
	return clientTransport{c}
}

// State is a snapshot of the engine's observable sync state.
type State struct {
	Status           Status     `json:"connectionStatus"`
	LastSyncAt       *time.Time `json:"lastSuccessfulSyncAt,omitempty"`
	NetworkReachable bool       `json:"isNetworkReachable"`
	PushPending      bool       `json:"pushPending"`
	PendingPushAt    *time.Time `json:"pendingPushScheduledAt,omitempty"`
	RealtimeActive   bool       `json:"realtimeActive"`
	LastError        string     `json:"lastError,omitempty"`
}

// Engine coordinates local mutations with the remote collection. Local
// writes call RequestPush/RequestDelete; inbound changes arrive through
// the realtime subscription and land on the board without echoing back.
type Engine struct {
	board     Board
	transport Transport
	auth      remote.Authenticator
	debounce  time.Duration
	poll      time.Duration

	mu        stdsync.Mutex
	timer     *time.Timer
	pendingAt time.Time
	dirty     bool
	deletes   []string
	lastSync  time.Time
	reachable bool
	lastErr   error
	sub       Watcher
	subDone   chan struct{}

	now func() time.Time
}

func NewEngine(board Board, transport Transport, auth remote.Authenticator, cfg *config.SyncConfig) *Engine {
	return &Engine{
		board:     board,
		transport: transport,
		auth:      auth,
		debounce:  cfg.Debounce,
		poll:      cfg.PollInterval,
		now:       time.Now,
	}
}

// RequestPush marks the collection dirty and (re)arms the debounce timer.
// Rapid successive calls coalesce into a single commit.
func (e *Engine) RequestPush() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.dirty = true
	e.armLocked()
}

// RequestDelete queues an explicit remote document removal. Deletions ride
// the same debounce window as pushes and are sent before the commit.
func (e *Engine) RequestDelete(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.deletes = append(e.deletes, id)
	e.dirty = true
	e.armLocked()
}

func (e *Engine) armLocked() {
	e.pendingAt = e.now().Add(e.debounce)
	if e.timer != nil {
		e.timer.Reset(e.debounce)
		return
	}
	e.timer = time.AfterFunc(e.debounce, func() {
		ctx, cancel := context.WithTimeout(context.Background(), flushTimeout)
		defer cancel()
		e.flush(ctx)
	})
}

// flush sends queued deletions and the full local collection. On failure
// the pending work is requeued; the next local mutation or a ForceSync
// retries it, a quiet period does not.
func (e *Engine) flush(ctx context.Context) error {
	e.mu.Lock()
	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
	e.pendingAt = time.Time{}
	deletes := e.deletes
	e.deletes = nil
	dirty := e.dirty
	e.dirty = false
	e.mu.Unlock()

	if !dirty && len(deletes) == 0 {
		return nil
	}

	for i, id := range deletes {
		if err := e.transport.DeleteRoom(ctx, id); err != nil {
			e.requeue(deletes[i:], dirty, err)
			return err
		}
	}
	if dirty {
		if err := e.transport.CommitRooms(ctx, e.board.Rooms()); err != nil {
			e.requeue(nil, true, err)
			return err
		}
	}
	e.markSynced(ctx)
	return nil
}

func (e *Engine) requeue(deletes []string, dirty bool, err error) {
	log.Printf("sync: push failed, queued for the next mutation or force sync: %v", err)
	e.mu.Lock()
	e.deletes = append(deletes, e.deletes...)
	e.dirty = e.dirty || dirty
	e.lastErr = err
	e.mu.Unlock()
}

func (e *Engine) markSynced(ctx context.Context) {
	now := e.now()
	e.mu.Lock()
	e.lastSync = now
	e.lastErr = nil
	e.mu.Unlock()
	if err := e.transport.WriteDeviceMeta(ctx, now); err != nil {
		log.Printf("sync: device metadata write failed: %v", err)
	}
}

// touch records a successful inbound event as proof of a live link. It
// does not clear lastErr: a queued failed push stays visible until a
// flush succeeds.
func (e *Engine) touch() {
	e.mu.Lock()
	e.lastSync = e.now()
	e.mu.Unlock()
}

// ForceSync pushes any pending work immediately, then pulls the full
// remote collection and applies it to the board.
func (e *Engine) ForceSync(ctx context.Context) error {
	if err := e.flush(ctx); err != nil {
		return err
	}
	rooms, err := e.transport.FetchAll(ctx)
	if err != nil {
		e.mu.Lock()
		e.lastErr = err
		e.mu.Unlock()
		return err
	}
	for _, room := range rooms {
		e.board.ApplyRemoteChange(ctx, room)
	}
	e.markSynced(ctx)
	return nil
}

// StartRealtimeSubscription opens the live change feed. Calling it while a
// subscription is already running is a no-op.
func (e *Engine) StartRealtimeSubscription(ctx context.Context) error {
	e.mu.Lock()
	if e.sub != nil {
		e.mu.Unlock()
		return nil
	}
	e.mu.Unlock()

	sub, err := e.transport.Watch(ctx)
	if err != nil {
		e.mu.Lock()
		e.lastErr = err
		e.mu.Unlock()
		return err
	}

	done := make(chan struct{})
	e.mu.Lock()
	if e.sub != nil {
		e.mu.Unlock()
		sub.Stop()
		return nil
	}
	e.sub = sub
	e.subDone = done
	e.mu.Unlock()

	go e.consume(sub, done)
	return nil
}

// StopRealtimeSubscription tears the live feed down and waits for the
// consumer to drain. Safe to call when no subscription is active.
func (e *Engine) StopRealtimeSubscription() {
	e.mu.Lock()
	sub, done := e.sub, e.subDone
	e.sub, e.subDone = nil, nil
	e.mu.Unlock()
	if sub == nil {
		return
	}
	sub.Stop()
	<-done
}

func (e *Engine) consume(sub Watcher, done chan struct{}) {
	defer close(done)
	ctx := context.Background()
	for ev := range sub.Events() {
		switch ev.Type {
		case remote.EventRemoved:
			if ev.Doc.ID == "" {
				continue
			}
			e.board.ApplyRemoteDelete(ctx, ev.Doc.ID)
		default:
			room, err := ev.Doc.Room()
			if err != nil {
				log.Printf("sync: skipping event: %v", err)
				continue
			}
			e.board.ApplyRemoteChange(ctx, room)
		}
		e.touch()
	}
}

// Run polls remote reachability until ctx is cancelled, keeping the
// connection status current. It is the engine's only background loop
// besides the feed.
func (e *Engine) Run(ctx context.Context) {
	ticker := time.NewTicker(e.poll)
	defer ticker.Stop()

	e.checkLink(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.checkLink(ctx)
		}
	}
}

func (e *Engine) checkLink(ctx context.Context) {
	reachable := e.transport.Ping(ctx)
	e.mu.Lock()
	e.reachable = reachable
	e.mu.Unlock()
}

// State reports the current observable sync state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()

	st := State{
		Status:           ResolveStatus(e.reachable, e.auth.IsAuthenticated(), e.lastSync, e.now()),
		NetworkReachable: e.reachable,
		PushPending:      e.dirty || len(e.deletes) > 0 || e.timer != nil,
		RealtimeActive:   e.sub != nil,
	}
	if !e.pendingAt.IsZero() {
		at := e.pendingAt
		st.PendingPushAt = &at
	}
	if !e.lastSync.IsZero() {
		t := e.lastSync
		st.LastSyncAt = &t
	}
	if e.lastErr != nil {
		st.LastError = e.lastErr.Error()
	}
	return st
}
