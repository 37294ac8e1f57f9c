// Package notification pushes web notifications to devices watching
// specific rooms. A room becoming green (cleaned, awaiting inspection) is
// the event watchers care about.
package notification

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"sync"

	"github.com/SherClockHolmes/webpush-go"
	"gorm.io/gorm"

	"roomstatus-backend/internal/model"
)

// NotificationSender defines the interface for sending a web push notification.
type NotificationSender interface {
	Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error)
}

// WebPushSender is a real implementation of NotificationSender using the webpush library.
type WebPushSender struct{}

// Send sends a notification using the webpush library.
func (s *WebPushSender) Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
	return webpush.SendNotification(payload, sub, options)
}

// WorkerPool fans room-ready events out to watching subscriptions.
type WorkerPool struct {
	size    int
	jobs    chan string
	db      *gorm.DB
	webpush *webpush.Options
	sender  NotificationSender

	mu        sync.Mutex
	lastColor map[string]model.Color
}

// NewWorkerPool creates a new worker pool.
func NewWorkerPool(size int, db *gorm.DB, webpushOptions *webpush.Options) *WorkerPool {
	return &WorkerPool{
		size:      size,
		jobs:      make(chan string, size),
		db:        db,
		webpush:   webpushOptions,
		sender:    &WebPushSender{},
		lastColor: make(map[string]model.Color),
	}
}

// Start launches the worker goroutines.
func (wp *WorkerPool) Start(ctx context.Context) {
	for i := 0; i < wp.size; i++ {
		go wp.worker(ctx, i)
	}
}

func (wp *WorkerPool) worker(ctx context.Context, id int) {
	log.Printf("Worker %d started", id)
	for {
		select {
		case number := <-wp.jobs:
			log.Printf("Worker %d processing room %s", id, number)
			wp.sendNotificationsForRoom(ctx, number)
		case <-ctx.Done():
			log.Printf("Worker %d shutting down", id)
			return
		}
	}
}

// RoomUpserted implements the store observer. Only the transition into
// green dispatches; re-applied greens from sync stay quiet.
func (wp *WorkerPool) RoomUpserted(room model.Room) {
	wp.mu.Lock()
	prev, known := wp.lastColor[room.ID]
	wp.lastColor[room.ID] = room.Color
	wp.mu.Unlock()

	if room.Color == model.ColorGreen && (!known || prev != model.ColorGreen) {
		wp.Dispatch(room.Number)
	}
}

// RoomRemoved implements the store observer.
func (wp *WorkerPool) RoomRemoved(id string) {
	wp.mu.Lock()
	delete(wp.lastColor, id)
	wp.mu.Unlock()
}

// Dispatch queues one room-ready notification fanout.
func (wp *WorkerPool) Dispatch(number string) {
	wp.jobs <- number
}

// sendNotificationsForRoom fetches the watching subscriptions and sends
// each one a push.
func (wp *WorkerPool) sendNotificationsForRoom(ctx context.Context, number string) {
	var subscriptions []model.PushSubscription
	err := wp.db.WithContext(ctx).
		Joins("JOIN room_watches rw ON rw.endpoint = push_subscriptions.endpoint").
		Where("rw.room_number = ?", number).
		Find(&subscriptions).Error
	if err != nil {
		log.Printf("Error fetching subscriptions for room %s: %v", number, err)
		return
	}

	if len(subscriptions) == 0 {
		return
	}

	log.Printf("Sending %d notifications for room %s", len(subscriptions), number)

	message := fmt.Sprintf("Room %s is cleaned and ready for inspection", number)
	for _, sub := range subscriptions {
		wp.sendNotification(ctx, sub, []byte(message))
	}
}

func (wp *WorkerPool) sendNotification(ctx context.Context, sub model.PushSubscription, payload []byte) {
	wpSub := &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256DH,
			Auth:   sub.Auth,
		},
	}

	resp, err := wp.sender.Send(payload, wpSub, wp.webpush)
	if err != nil {
		log.Printf("Error sending notification to %s: %v", sub.Endpoint, err)
		return
	}
	defer resp.Body.Close()

	// Handle expired subscriptions
	if resp.StatusCode == http.StatusGone {
		log.Printf("Subscription for endpoint %s is expired. Deleting.", sub.Endpoint)
		if err := wp.db.WithContext(ctx).Delete(&sub).Error; err != nil {
			log.Printf("Failed to delete expired subscription %s: %v", sub.Endpoint, err)
		}
	}
}
