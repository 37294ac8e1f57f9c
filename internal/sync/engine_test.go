package sync

import (
	"context"
	"errors"
	stdsync "sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"roomstatus-backend/config"
	"roomstatus-backend/internal/model"
	"roomstatus-backend/internal/remote"
)

// fakeBoard records applied remote changes.
type fakeBoard struct {
	mu      stdsync.Mutex
	rooms   model.Snapshot
	applied []model.Room
	removed []string
}

func (b *fakeBoard) Rooms() model.Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.rooms.Clone()
}

func (b *fakeBoard) ApplyRemoteChange(_ context.Context, room model.Room) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.applied = append(b.applied, room)
}

func (b *fakeBoard) ApplyRemoteDelete(_ context.Context, id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.removed = append(b.removed, id)
}

// fakeTransport scripts the remote side.
type fakeTransport struct {
	mu        stdsync.Mutex
	commits   []model.Snapshot
	deletes   []string
	calls     []string
	commitErr error
	deleteErr error
	fetched   model.Snapshot
	fetchErr  error
	reachable bool
	watcher   *fakeWatcher
	watchErr  error
}

func (t *fakeTransport) CommitRooms(_ context.Context, rooms model.Snapshot) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.calls = append(t.calls, "commit")
	if t.commitErr != nil {
		return t.commitErr
	}
	t.commits = append(t.commits, rooms)
	return nil
}

func (t *fakeTransport) DeleteRoom(_ context.Context, id string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.calls = append(t.calls, "delete")
	if t.deleteErr != nil {
		return t.deleteErr
	}
	t.deletes = append(t.deletes, id)
	return nil
}

func (t *fakeTransport) FetchAll(_ context.Context) (model.Snapshot, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.fetched.Clone(), t.fetchErr
}

func (t *fakeTransport) WriteDeviceMeta(_ context.Context, _ time.Time) error { return nil }

func (t *fakeTransport) Ping(_ context.Context) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.reachable
}

func (t *fakeTransport) Watch(_ context.Context) (Watcher, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.watchErr != nil {
		return nil, t.watchErr
	}
	return t.watcher, nil
}

func (t *fakeTransport) commitCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.commits)
}

type fakeWatcher struct {
	events chan remote.Event
	once   stdsync.Once
}

func newFakeWatcher() *fakeWatcher {
	return &fakeWatcher{events: make(chan remote.Event, 8)}
}

func (w *fakeWatcher) Events() <-chan remote.Event { return w.events }

func (w *fakeWatcher) Stop() {
	w.once.Do(func() { close(w.events) })
}

func newTestEngine(board *fakeBoard, transport *fakeTransport, debounce time.Duration) *Engine {
	cfg := &config.SyncConfig{Debounce: debounce, PollInterval: time.Second}
	auth := &remote.StaticAuth{UserID: "u1", AuthToken: "tok"}
	return NewEngine(board, transport, auth, cfg)
}

func TestRequestPush_Coalesces(t *testing.T) {
	board := &fakeBoard{rooms: model.Snapshot{model.NewRoom("101", time.Now())}}
	transport := &fakeTransport{}
	e := newTestEngine(board, transport, 30*time.Millisecond)

	e.RequestPush()
	e.RequestPush()
	e.RequestPush()

	assert.Eventually(t, func() bool { return transport.commitCount() == 1 },
		time.Second, 5*time.Millisecond, "rapid pushes collapse into a single commit")

	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, 1, transport.commitCount())
	require.Len(t, transport.commits[0], 1)
	assert.Equal(t, "101", transport.commits[0][0].Number)
	assert.False(t, e.State().PushPending)
}

func TestRequestDelete_SentBeforeCommit(t *testing.T) {
	board := &fakeBoard{}
	transport := &fakeTransport{}
	e := newTestEngine(board, transport, 10*time.Millisecond)

	e.RequestDelete("room-1")

	assert.Eventually(t, func() bool { return transport.commitCount() == 1 },
		time.Second, 5*time.Millisecond)

	transport.mu.Lock()
	defer transport.mu.Unlock()
	assert.Equal(t, []string{"room-1"}, transport.deletes)
	assert.Equal(t, []string{"delete", "commit"}, transport.calls)
}

func TestFlushFailure_RetriedOnNextMutation(t *testing.T) {
	board := &fakeBoard{}
	transport := &fakeTransport{commitErr: errors.New("backend down"), reachable: true}
	e := newTestEngine(board, transport, 5*time.Millisecond)
	e.checkLink(context.Background())

	e.RequestPush()
	assert.Eventually(t, func() bool {
		return e.State().LastError != ""
	}, time.Second, 5*time.Millisecond)

	st := e.State()
	assert.True(t, st.PushPending, "failed push stays pending")
	assert.Nil(t, st.PendingPushAt, "no debounce window in flight after a failure")
	assert.Contains(t, st.LastError, "backend down")

	// A quiet outage does not retry by itself.
	e.checkLink(context.Background())
	assert.Equal(t, 0, transport.commitCount())

	// The next local mutation picks the failed batch back up.
	transport.mu.Lock()
	transport.commitErr = nil
	transport.mu.Unlock()
	e.RequestPush()

	assert.Eventually(t, func() bool { return transport.commitCount() == 1 },
		time.Second, 5*time.Millisecond)

	st = e.State()
	assert.False(t, st.PushPending)
	assert.Empty(t, st.LastError)
	assert.Equal(t, StatusConnected, st.Status)
}

func TestInboundEventsKeepPushErrorVisible(t *testing.T) {
	board := &fakeBoard{}
	watcher := newFakeWatcher()
	transport := &fakeTransport{commitErr: errors.New("backend down"), watcher: watcher}
	e := newTestEngine(board, transport, 5*time.Millisecond)

	e.RequestPush()
	assert.Eventually(t, func() bool {
		return e.State().LastError != ""
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, e.StartRealtimeSubscription(context.Background()))
	room := model.NewRoom("101", time.Now())
	watcher.events <- remote.Event{Type: remote.EventModified, Doc: remote.DocFromRoom(room, "other-device")}

	assert.Eventually(t, func() bool {
		board.mu.Lock()
		defer board.mu.Unlock()
		return len(board.applied) == 1
	}, time.Second, 5*time.Millisecond)

	st := e.State()
	assert.True(t, st.PushPending, "the failed batch is still queued")
	assert.Contains(t, st.LastError, "backend down", "inbound events do not hide the unsent-edits signal")
	require.NotNil(t, st.LastSyncAt, "the event still counts as a live link")

	e.StopRealtimeSubscription()
}

func TestForceSync_AppliesRemoteCollection(t *testing.T) {
	now := time.Now()
	r1 := model.NewRoom("101", now)
	r2 := model.NewRoom("204", now)

	board := &fakeBoard{}
	transport := &fakeTransport{fetched: model.Snapshot{r1, r2}}
	e := newTestEngine(board, transport, time.Millisecond)

	require.NoError(t, e.ForceSync(context.Background()))

	board.mu.Lock()
	defer board.mu.Unlock()
	require.Len(t, board.applied, 2)
	assert.Equal(t, "101", board.applied[0].Number)
	assert.Equal(t, "204", board.applied[1].Number)
}

func TestRealtimeSubscription(t *testing.T) {
	board := &fakeBoard{}
	watcher := newFakeWatcher()
	transport := &fakeTransport{watcher: watcher}
	e := newTestEngine(board, transport, time.Millisecond)

	require.NoError(t, e.StartRealtimeSubscription(context.Background()))
	require.NoError(t, e.StartRealtimeSubscription(context.Background()), "second start is a no-op")
	assert.True(t, e.State().RealtimeActive)

	room := model.NewRoom("101", time.Now())
	watcher.events <- remote.Event{Type: remote.EventModified, Doc: remote.DocFromRoom(room, "other-device")}
	watcher.events <- remote.Event{Type: remote.EventRemoved, Doc: remote.Doc{ID: "gone"}}
	watcher.events <- remote.Event{Type: remote.EventAdded, Doc: remote.Doc{ID: "bad", Color: "mauve"}}

	assert.Eventually(t, func() bool {
		board.mu.Lock()
		defer board.mu.Unlock()
		return len(board.applied) == 1 && len(board.removed) == 1
	}, time.Second, 5*time.Millisecond, "valid events land, malformed ones are skipped")

	e.StopRealtimeSubscription()
	e.StopRealtimeSubscription()
	assert.False(t, e.State().RealtimeActive)
}

func TestState_Resolution(t *testing.T) {
	board := &fakeBoard{}
	transport := &fakeTransport{}
	e := newTestEngine(board, transport, time.Millisecond)

	st := e.State()
	assert.Equal(t, StatusDisconnected, st.Status, "unreachable until the first ping")
	assert.Nil(t, st.LastSyncAt)

	transport.mu.Lock()
	transport.reachable = true
	transport.mu.Unlock()
	e.checkLink(context.Background())

	assert.Equal(t, StatusUnstable, e.State().Status, "reachable but never synced")

	require.NoError(t, e.ForceSync(context.Background()))
	st = e.State()
	assert.Equal(t, StatusConnected, st.Status)
	require.NotNil(t, st.LastSyncAt)

	// A stale last sync degrades to unstable without going disconnected.
	e.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	assert.Equal(t, StatusUnstable, e.State().Status)
}

func TestState_DisconnectedWhenNotAuthenticated(t *testing.T) {
	board := &fakeBoard{}
	transport := &fakeTransport{reachable: true}
	cfg := &config.SyncConfig{Debounce: time.Millisecond, PollInterval: time.Second}
	e := NewEngine(board, transport, &remote.StaticAuth{}, cfg)
	e.checkLink(context.Background())

	assert.Equal(t, StatusDisconnected, e.State().Status)
}
