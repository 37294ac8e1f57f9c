package api

import (
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"
	"gorm.io/gorm"

	"roomstatus-backend/config"
	"roomstatus-backend/internal/mw"
	"roomstatus-backend/internal/store"
	syncengine "roomstatus-backend/internal/sync"
)

// NewRouter creates and configures a new Gin router.
func NewRouter(s *store.Store, engine *syncengine.Engine, db *gorm.DB, webpushOptions *webpush.Options, server *config.ServerConfig) *gin.Engine {
	r := gin.Default()

	handler := NewHandler(s, engine, db, webpushOptions)

	rateLimit := rate.Limit(10)
	burst := 5
	cacheTTL := 5 * time.Second
	if server != nil {
		if server.RateLimitPerSec > 0 {
			rateLimit = rate.Limit(server.RateLimitPerSec)
		}
		if server.CacheTTLSeconds > 0 {
			cacheTTL = time.Duration(server.CacheTTLSeconds) * time.Second
		}
	}
	rateLimiter := mw.RateLimiter(rateLimit, burst)

	// Board reads are hot and cheap to cache; mutations flush the cache.
	cacheStore := cache.New(cacheTTL, time.Minute)
	caching := mw.Cache(cacheStore, cacheTTL)

	api := r.Group("/api")
	api.Use(rateLimiter)

	// Connection status changes outside the request path (pings, flush
	// outcomes) and must never be served stale.
	api.GET("/sync/status", handler.GetSyncStatus)

	cached := api.Group("")
	cached.Use(caching)
	{
		cached.GET("/rooms", handler.GetRooms)
		cached.POST("/rooms", handler.PostRoom)
		cached.DELETE("/rooms/:id", handler.DeleteRoom)
		cached.PUT("/rooms/:id/color", handler.PutRoomColor)
		cached.POST("/rooms/:id/mark", handler.PostRoomMark)
		cached.POST("/rooms/:id/deep_clean", handler.PostRoomDeepClean)
		cached.PUT("/rooms/:id/schedule", handler.PutRoomSchedule)
		cached.POST("/rooms/:id/unlock", handler.PostRoomUnlock)

		cached.POST("/undo", handler.PostUndo)
		cached.POST("/clear", handler.PostClear)
		cached.GET("/history", handler.GetHistory)
		cached.GET("/history/stats", handler.GetHistoryStats)

		cached.POST("/sync/force", handler.PostSyncForce)

		cached.GET("/subscriptions", handler.GetSubscription)
		cached.PUT("/subscriptions", handler.PutSubscription)
		cached.DELETE("/subscriptions", handler.DeleteSubscription)
		cached.GET("/vapid_public_key", handler.GetVAPIDPublicKey)
	}

	return r
}
