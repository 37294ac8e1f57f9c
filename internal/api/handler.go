package api

import (
	"gorm.io/gorm"

	"roomstatus-backend/internal/store"
	syncengine "roomstatus-backend/internal/sync"

	"github.com/SherClockHolmes/webpush-go"
)

// Handler holds shared dependencies for API handlers.
type Handler struct {
	store   *store.Store
	engine  *syncengine.Engine
	db      *gorm.DB
	webpush *webpush.Options
}

// NewHandler creates a new API handler.
func NewHandler(s *store.Store, engine *syncengine.Engine, db *gorm.DB, webpushOptions *webpush.Options) *Handler {
	return &Handler{
		store:   s,
		engine:  engine,
		db:      db,
		webpush: webpushOptions,
	}
}
