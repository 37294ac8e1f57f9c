package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// GetSyncStatus handles GET /api/sync/status.
func (h *Handler) GetSyncStatus(c *gin.Context) {
	c.JSON(http.StatusOK, h.engine.State())
}

// PostSyncForce handles POST /api/sync/force: push pending work now and
// pull the remote collection.
func (h *Handler) PostSyncForce(c *gin.Context) {
	if err := h.engine.ForceSync(c.Request.Context()); err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, h.engine.State())
}
