package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

const (
	pongWait         = 60 * time.Second
	pingPeriod       = (pongWait * 9) / 10
	maxEventSize     = 1024 * 1024
	reconnectBackoff = 2 * time.Second
	maxBackoff       = 30 * time.Second
)

// EventType classifies one inbound change from the realtime feed.
type EventType string

const (
	EventAdded    EventType = "added"
	EventModified EventType = "modified"
	EventRemoved  EventType = "removed"
)

// Event is one change to the user's room collection, produced by any device.
type Event struct {
	Type EventType `json:"type"`
	Doc  Doc       `json:"doc"`
}

// Subscription is a long-lived realtime listener on the room collection.
// Events arrive on Events(); Stop is idempotent.
type Subscription struct {
	events chan Event
	cancel context.CancelFunc
	done   chan struct{}
}

// Events returns the inbound change stream. The channel closes when the
// subscription stops.
func (s *Subscription) Events() <-chan Event { return s.events }

// Stop tears the subscription down. Safe to call repeatedly or when the
// listener already died.
func (s *Subscription) Stop() {
	s.cancel()
	<-s.done
}

// Watch opens the realtime change feed for the authenticated user. The
// listener reconnects with capped backoff until Stop is called; events that
// fail to decode are logged and skipped.
func (c *Client) Watch(ctx context.Context) (*Subscription, error) {
	if !c.auth.IsAuthenticated() {
		return nil, ErrNotAuthenticated
	}

	ctx, cancel := context.WithCancel(ctx)
	sub := &Subscription{
		events: make(chan Event, 64),
		cancel: cancel,
		done:   make(chan struct{}),
	}

	go func() {
		defer close(sub.done)
		defer close(sub.events)

		backoff := reconnectBackoff
		for {
			if ctx.Err() != nil {
				return
			}
			if err := c.pump(ctx, sub.events); err != nil && ctx.Err() == nil {
				log.Printf("remote: watch connection lost: %v (reconnecting in %s)", err, backoff)
			}
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
			backoff = nextBackoff(backoff)
		}
	}()

	return sub, nil
}

// nextBackoff doubles the reconnect delay, clamped to maxBackoff.
func nextBackoff(d time.Duration) time.Duration {
	d *= 2
	if d > maxBackoff {
		d = maxBackoff
	}
	return d
}

// pump runs one websocket connection until it fails or ctx is cancelled.
func (c *Client) pump(ctx context.Context, events chan<- Event) error {
	header := http.Header{}
	header.Set("Authorization", "Bearer "+c.auth.Token())

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, c.watchURL(), header)
	if err != nil {
		if resp != nil {
			return fmt.Errorf("dial failed with status %d: %w", resp.StatusCode, err)
		}
		return fmt.Errorf("dial failed: %w", err)
	}
	defer conn.Close()

	conn.SetReadLimit(maxEventSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	// Keepalive pings; also unblocks the reader on cancellation.
	go func() {
		ticker := time.NewTicker(pingPeriod)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				conn.Close()
				return
			case <-ticker.C:
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(10*time.Second)); err != nil {
					return
				}
			}
		}
	}()

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			return err
		}

		var event Event
		if err := json.Unmarshal(message, &event); err != nil {
			log.Printf("remote: skipping undecodable change event: %v", err)
			continue
		}
		switch event.Type {
		case EventAdded, EventModified, EventRemoved:
		default:
			log.Printf("remote: skipping change event with unknown type %q", event.Type)
			continue
		}

		select {
		case events <- event:
		case <-ctx.Done():
			return nil
		}
	}
}

func (c *Client) watchURL() string {
	url := c.userURL("/rooms/watch")
	if strings.HasPrefix(url, "https://") {
		return "wss://" + strings.TrimPrefix(url, "https://")
	}
	if strings.HasPrefix(url, "http://") {
		return "ws://" + strings.TrimPrefix(url, "http://")
	}
	return url
}
