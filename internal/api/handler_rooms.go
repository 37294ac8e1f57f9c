package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"roomstatus-backend/internal/model"
	"roomstatus-backend/internal/store"
)

// statusFor maps store errors to HTTP codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, store.ErrInvalidNumber),
		errors.Is(err, store.ErrInvalidTransition),
		errors.Is(err, store.ErrInvalidSchedule):
		return http.StatusBadRequest
	case errors.Is(err, store.ErrRoomNotFound):
		return http.StatusNotFound
	case errors.Is(err, store.ErrDuplicateRoom),
		errors.Is(err, store.ErrRoomLocked):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func abortWith(c *gin.Context, err error) {
	c.AbortWithStatusJSON(statusFor(err), gin.H{"error": err.Error()})
}

// GetRooms handles GET /api/rooms.
func (h *Handler) GetRooms(c *gin.Context) {
	rooms := h.store.Rooms()
	if rooms == nil {
		rooms = model.Snapshot{}
	}
	c.JSON(http.StatusOK, rooms)
}

type addRoomRequest struct {
	Number string `json:"number" binding:"required"`
}

// PostRoom handles POST /api/rooms.
func (h *Handler) PostRoom(c *gin.Context) {
	var req addRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	room, err := h.store.AddRoom(c.Request.Context(), req.Number)
	if err != nil {
		abortWith(c, err)
		return
	}
	c.JSON(http.StatusCreated, room)
}

// DeleteRoom handles DELETE /api/rooms/:id.
func (h *Handler) DeleteRoom(c *gin.Context) {
	if err := h.store.DeleteRoom(c.Request.Context(), c.Param("id")); err != nil {
		abortWith(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type setColorRequest struct {
	Color string `json:"color" binding:"required"`
}

// PutRoomColor handles PUT /api/rooms/:id/color.
func (h *Handler) PutRoomColor(c *gin.Context) {
	var req setColorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.store.SetColor(c.Request.Context(), c.Param("id"), model.Color(req.Color)); err != nil {
		abortWith(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// PostRoomMark handles POST /api/rooms/:id/mark. The flag toggles.
func (h *Handler) PostRoomMark(c *gin.Context) {
	if err := h.store.ToggleMark(c.Request.Context(), c.Param("id")); err != nil {
		abortWith(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// PostRoomDeepClean handles POST /api/rooms/:id/deep_clean. The flag toggles.
func (h *Handler) PostRoomDeepClean(c *gin.Context) {
	if err := h.store.ToggleDeepClean(c.Request.Context(), c.Param("id")); err != nil {
		abortWith(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type scheduleRequest struct {
	Time string `json:"time" binding:"required"`
}

// PutRoomSchedule handles PUT /api/rooms/:id/schedule.
func (h *Handler) PutRoomSchedule(c *gin.Context) {
	var req scheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.store.Schedule(c.Request.Context(), c.Param("id"), req.Time); err != nil {
		abortWith(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// PostRoomUnlock handles POST /api/rooms/:id/unlock.
func (h *Handler) PostRoomUnlock(c *gin.Context) {
	if err := h.store.Unlock(c.Request.Context(), c.Param("id")); err != nil {
		abortWith(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// PostUndo handles POST /api/undo.
func (h *Handler) PostUndo(c *gin.Context) {
	if !h.store.Undo(c.Request.Context()) {
		c.JSON(http.StatusConflict, gin.H{"error": "nothing to undo"})
		return
	}
	c.Status(http.StatusNoContent)
}

// PostClear handles POST /api/clear.
func (h *Handler) PostClear(c *gin.Context) {
	h.store.ClearAll(c.Request.Context())
	c.Status(http.StatusNoContent)
}

// GetHistory handles GET /api/history, newest first.
func (h *Handler) GetHistory(c *gin.Context) {
	entries := h.store.History().Entries()
	if entries == nil {
		entries = []model.HistoryEntry{}
	}
	c.JSON(http.StatusOK, entries)
}

// GetHistoryStats handles GET /api/history/stats.
func (h *Handler) GetHistoryStats(c *gin.Context) {
	total, byKind := h.store.History().Stats()
	c.JSON(http.StatusOK, gin.H{"total": total, "byAction": byKind})
}
