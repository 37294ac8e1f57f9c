// Package remote speaks to the per-user room collection in the remote
// document store: batched atomic writes, explicit document deletes, one-shot
// pulls and a realtime change feed.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"roomstatus-backend/config"
	"roomstatus-backend/internal/model"
)

// Client is the HTTP client for the remote store.
type Client struct {
	baseURL    string
	client     *http.Client
	auth       Authenticator
	deviceID   string
	deviceName string
}

// NewClient creates a remote store client for the configured endpoint.
func NewClient(cfg *config.RemoteConfig, auth Authenticator) *Client {
	return &Client{
		baseURL: cfg.BaseURL,
		client: &http.Client{
			Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second,
		},
		auth:       auth,
		deviceID:   cfg.DeviceID,
		deviceName: cfg.DeviceName,
	}
}

// DeviceID returns the owning-device identifier stamped on outgoing docs.
func (c *Client) DeviceID() string { return c.deviceID }

func (c *Client) userURL(suffix string) string {
	return fmt.Sprintf("%s/v1/users/%s%s", c.baseURL, c.auth.CurrentUserID(), suffix)
}

func (c *Client) do(ctx context.Context, method, url string, body any) (*http.Response, error) {
	if !c.auth.IsAuthenticated() {
		return nil, ErrNotAuthenticated
	}

	var reader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request payload: %w", err)
		}
		reader = bytes.NewBuffer(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.auth.Token())
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request failed: %w", err)
	}
	return resp, nil
}

type commitRequest struct {
	Documents []Doc `json:"documents"`
}

// CommitRooms writes the whole batch in a single atomic multi-document
// commit: either every document lands or none does.
func (c *Client) CommitRooms(ctx context.Context, rooms model.Snapshot) error {
	docs := make([]Doc, len(rooms))
	for i, room := range rooms {
		docs[i] = DocFromRoom(room, c.deviceID)
	}

	resp, err := c.do(ctx, http.MethodPost, c.userURL("/rooms:commit"), commitRequest{Documents: docs})
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("commit rejected with status %d", resp.StatusCode)
	}
	return nil
}

// DeleteRoom removes the document for the given room id. Deletes are real
// document removals, not tombstone fields; deleting an absent document is
// not an error.
func (c *Client) DeleteRoom(ctx context.Context, id string) error {
	resp, err := c.do(ctx, http.MethodDelete, c.userURL("/rooms/"+id), nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusNotFound {
		return fmt.Errorf("delete rejected with status %d", resp.StatusCode)
	}
	return nil
}

type fetchResponse struct {
	Documents []json.RawMessage `json:"documents"`
}

// FetchAll pulls the user's full room collection. Documents that fail to
// decode are logged and skipped; one bad document does not fail the pull.
func (c *Client) FetchAll(ctx context.Context) (model.Snapshot, error) {
	resp, err := c.do(ctx, http.MethodGet, c.userURL("/rooms"), nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch rejected with status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	var fetched fetchResponse
	if err := json.Unmarshal(body, &fetched); err != nil {
		return nil, fmt.Errorf("failed to unmarshal room collection: %w", err)
	}

	rooms := make(model.Snapshot, 0, len(fetched.Documents))
	for _, raw := range fetched.Documents {
		var doc Doc
		if err := json.Unmarshal(raw, &doc); err != nil {
			log.Printf("remote: skipping undecodable document: %v", err)
			continue
		}
		room, err := doc.Room()
		if err != nil {
			log.Printf("remote: skipping malformed document: %v", err)
			continue
		}
		rooms = append(rooms, room)
	}
	return rooms, nil
}

// WriteDeviceMeta records this device's last successful sync in its
// per-device metadata document.
func (c *Client) WriteDeviceMeta(ctx context.Context, lastSyncAt time.Time) error {
	meta := DeviceMeta{
		DeviceID:   c.deviceID,
		DeviceName: c.deviceName,
		LastSyncAt: lastSyncAt,
	}
	resp, err := c.do(ctx, http.MethodPut, c.userURL("/devices/"+c.deviceID), meta)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("device meta write rejected with status %d", resp.StatusCode)
	}
	return nil
}

// Ping probes network reachability of the remote store. It deliberately
// skips authentication: an unauthenticated device can still be online.
func (c *Client) Ping(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/healthz", nil)
	if err != nil {
		return false
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode < http.StatusInternalServerError
}
