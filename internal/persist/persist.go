// Package persist is the device-local key-value blob store. The room
// collection, the bounded history log and the last-active-day marker each
// serialize to JSON under a fixed key.
package persist

import (
	"context"
	"encoding/json"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"roomstatus-backend/internal/model"
)

const (
	keyRooms         = "rooms"
	keyHistory       = "history"
	keyLastActiveDay = "last_active_day"
)

// Store reads and writes the local blobs.
type Store interface {
	SaveRooms(ctx context.Context, rooms model.Snapshot) error
	LoadRooms(ctx context.Context) (model.Snapshot, error)
	SaveHistory(ctx context.Context, entries []model.HistoryEntry) error
	LoadHistory(ctx context.Context) ([]model.HistoryEntry, error)
	LastActiveDay(ctx context.Context) (string, error)
	SetLastActiveDay(ctx context.Context, day string) error
}

type gormStore struct {
	db *gorm.DB
}

// NewGormStore creates a GORM-backed blob store.
func NewGormStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

func (s *gormStore) put(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal blob %q: %w", key, err)
	}
	blob := model.Blob{Key: key, Value: data}
	if err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&blob).Error; err != nil {
		return fmt.Errorf("write blob %q: %w", key, err)
	}
	return nil
}

// get unmarshals the blob under key into out. A missing blob leaves out
// untouched and is not an error: first run on a fresh device.
func (s *gormStore) get(ctx context.Context, key string, out any) error {
	var blob model.Blob
	err := s.db.WithContext(ctx).First(&blob, "key = ?", key).Error
	if err == gorm.ErrRecordNotFound {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read blob %q: %w", key, err)
	}
	if err := json.Unmarshal(blob.Value, out); err != nil {
		return fmt.Errorf("decode blob %q: %w", key, err)
	}
	return nil
}

func (s *gormStore) SaveRooms(ctx context.Context, rooms model.Snapshot) error {
	return s.put(ctx, keyRooms, rooms)
}

func (s *gormStore) LoadRooms(ctx context.Context) (model.Snapshot, error) {
	var rooms model.Snapshot
	if err := s.get(ctx, keyRooms, &rooms); err != nil {
		return nil, err
	}
	return rooms, nil
}

func (s *gormStore) SaveHistory(ctx context.Context, entries []model.HistoryEntry) error {
	return s.put(ctx, keyHistory, entries)
}

func (s *gormStore) LoadHistory(ctx context.Context) ([]model.HistoryEntry, error) {
	var entries []model.HistoryEntry
	if err := s.get(ctx, keyHistory, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

func (s *gormStore) LastActiveDay(ctx context.Context) (string, error) {
	var day string
	if err := s.get(ctx, keyLastActiveDay, &day); err != nil {
		return "", err
	}
	return day, nil
}

func (s *gormStore) SetLastActiveDay(ctx context.Context, day string) error {
	return s.put(ctx, keyLastActiveDay, day)
}
