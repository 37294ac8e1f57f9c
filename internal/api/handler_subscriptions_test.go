package api

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPutSubscription_MissingFields(t *testing.T) {
	r, _ := setupRouter(t)

	w := do(r, http.MethodPut, "/api/subscriptions", `{"endpoint":"https://push.example/abc"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSubscriptionLifecycle(t *testing.T) {
	r, _ := setupRouter(t)

	body := `{"endpoint":"https://push.example/abc","p256dh":"key","auth":"secret","watched_rooms":["101","204"]}`
	w := do(r, http.MethodPut, "/api/subscriptions", body)
	require.Equal(t, http.StatusCreated, w.Code)

	w = do(r, http.MethodGet, "/api/subscriptions?endpoint=https://push.example/abc", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"101"`)
	assert.Contains(t, w.Body.String(), `"204"`)

	w = do(r, http.MethodDelete, "/api/subscriptions", `{"endpoint":"https://push.example/abc"}`)
	require.Equal(t, http.StatusNoContent, w.Code)

	w = do(r, http.MethodGet, "/api/subscriptions?endpoint=https://push.example/abc", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}
