package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"roomstatus-backend/config"
	"roomstatus-backend/internal/history"
	"roomstatus-backend/internal/model"
	"roomstatus-backend/internal/parse"
	"roomstatus-backend/internal/persist"
	"roomstatus-backend/internal/remote"
	"roomstatus-backend/internal/store"
	syncengine "roomstatus-backend/internal/sync"
)

// stubTransport never reaches a remote.
type stubTransport struct{}

func (stubTransport) CommitRooms(context.Context, model.Snapshot) error { return nil }
func (stubTransport) DeleteRoom(context.Context, string) error          { return nil }
func (stubTransport) FetchAll(context.Context) (model.Snapshot, error)  { return nil, nil }
func (stubTransport) WriteDeviceMeta(context.Context, time.Time) error  { return nil }
func (stubTransport) Ping(context.Context) bool                         { return false }
func (stubTransport) Watch(context.Context) (syncengine.Watcher, error) {
	return nil, errors.New("no feed")
}

func setupRouter(t *testing.T) (*gin.Engine, *syncengine.Engine) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&model.Blob{}, &model.PushSubscription{}, &model.RoomWatch{}))

	p := persist.NewGormStore(db)
	s := store.New(store.Options{
		History:  history.NewManager(context.Background(), p),
		Persist:  p,
		Ranges:   parse.Ranges{MinFloor: 1, MaxFloor: 6, MinUnit: 1, MaxUnit: 30},
		Location: time.UTC,
	})

	cfg := &config.SyncConfig{Debounce: time.Hour, PollInterval: time.Hour}
	engine := syncengine.NewEngine(s, stubTransport{}, &remote.StaticAuth{UserID: "u1", AuthToken: "t"}, cfg)

	return NewRouter(s, engine, db, nil, nil), engine
}

func do(r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req, _ := http.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	return w
}

func TestPostAndGetRooms(t *testing.T) {
	r, _ := setupRouter(t)

	w := do(r, http.MethodPost, "/api/rooms", `{"number":"101"}`)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Contains(t, w.Body.String(), `"number":"101"`)
	assert.Contains(t, w.Body.String(), `"color":"unset"`)

	w = do(r, http.MethodGet, "/api/rooms", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"number":"101"`)
}

func TestPostRoom_Rejections(t *testing.T) {
	r, _ := setupRouter(t)

	w := do(r, http.MethodPost, "/api/rooms", `{"number":"901"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(r, http.MethodPost, "/api/rooms", `{"number":"101"}`)
	require.Equal(t, http.StatusCreated, w.Code)

	w = do(r, http.MethodPost, "/api/rooms", `{"number":"101"}`)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestColorChangeAndUndo(t *testing.T) {
	r, _ := setupRouter(t)

	w := do(r, http.MethodPost, "/api/rooms", `{"number":"204"}`)
	require.Equal(t, http.StatusCreated, w.Code)
	var room model.Room
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &room))

	w = do(r, http.MethodPut, "/api/rooms/"+room.ID+"/color", `{"color":"red"}`)
	require.Equal(t, http.StatusNoContent, w.Code)

	w = do(r, http.MethodPost, "/api/undo", "")
	require.Equal(t, http.StatusNoContent, w.Code)

	w = do(r, http.MethodGet, "/api/rooms", "")
	assert.Contains(t, w.Body.String(), `"color":"unset"`)
}

func TestUndoEmpty(t *testing.T) {
	r, _ := setupRouter(t)

	w := do(r, http.MethodPost, "/api/undo", "")
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestSyncStatus(t *testing.T) {
	r, _ := setupRouter(t)

	w := do(r, http.MethodGet, "/api/sync/status", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"connectionStatus":"disconnected"`)
}

func TestSyncStatusNeverCached(t *testing.T) {
	r, engine := setupRouter(t)

	w := do(r, http.MethodGet, "/api/sync/status", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"pushPending":false`)

	// The debounce is an hour in the test config, so the push stays
	// pending and the second read must see it.
	engine.RequestPush()

	w = do(r, http.MethodGet, "/api/sync/status", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"pushPending":true`)
}

func TestVAPIDKeyUnconfigured(t *testing.T) {
	r, _ := setupRouter(t)

	w := do(r, http.MethodGet, "/api/vapid_public_key", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
