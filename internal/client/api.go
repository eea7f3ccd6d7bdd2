// Watchdeck - Media Server Companion Portal
// Copyright 2026 Watchdeck Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/watchdeck/watchdeck

package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/goccy/go-json"

	"github.com/watchdeck/watchdeck/internal/models"
)

// ErrAuthorizationLost signals that the server no longer accepts our
// credentials. The polling loop treats this as fatal: polling halts and the
// display prompts for re-authentication.
var ErrAuthorizationLost = errors.New("authorization lost")

// ErrSessionGone is returned when a session id no longer exists server-side.
var ErrSessionGone = errors.New("session no longer active")

// SnapshotAPI is the server port the polling client consumes.
type SnapshotAPI interface {
	FullSnapshot(ctx context.Context) ([]*models.SessionView, error)
	Progress(ctx context.Context) ([]models.ProgressUpdate, error)
	Session(ctx context.Context, id string) (*models.SessionView, error)
}

// HTTPSnapshotAPI implements SnapshotAPI against the Watchdeck HTTP API.
type HTTPSnapshotAPI struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewHTTPSnapshotAPI creates an API client. baseURL points at the server
// root (without /api/v1).
func NewHTTPSnapshotAPI(baseURL, token string, timeout time.Duration) *HTTPSnapshotAPI {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPSnapshotAPI{
		baseURL:    baseURL,
		token:      token,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// get fetches path and decodes the envelope's data member into result.
func (c *HTTPSnapshotAPI) get(ctx context.Context, path string, result interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, http.NoBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request %s: %w", path, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return ErrAuthorizationLost
	case resp.StatusCode == http.StatusNotFound:
		return ErrSessionGone
	case resp.StatusCode != http.StatusOK:
		return fmt.Errorf("request %s: unexpected status %d", path, resp.StatusCode)
	}

	var envelope struct {
		Status string           `json:"status"`
		Data   json.RawMessage  `json:"data"`
		Error  *models.APIError `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("decode envelope: %w", err)
	}
	if envelope.Status != "success" {
		if envelope.Error != nil {
			return fmt.Errorf("server error %s: %s", envelope.Error.Code, envelope.Error.Message)
		}
		return fmt.Errorf("server returned status %q", envelope.Status)
	}
	if result != nil && len(envelope.Data) > 0 {
		if err := json.Unmarshal(envelope.Data, result); err != nil {
			return fmt.Errorf("decode data: %w", err)
		}
	}
	return nil
}

// FullSnapshot fetches the complete sorted session list.
func (c *HTTPSnapshotAPI) FullSnapshot(ctx context.Context) ([]*models.SessionView, error) {
	var views []*models.SessionView
	if err := c.get(ctx, "/api/v1/sessions", &views); err != nil {
		return nil, err
	}
	return views, nil
}

// Progress fetches the lightweight progress payload.
func (c *HTTPSnapshotAPI) Progress(ctx context.Context) ([]models.ProgressUpdate, error) {
	var updates []models.ProgressUpdate
	if err := c.get(ctx, "/api/v1/sessions/progress", &updates); err != nil {
		return nil, err
	}
	return updates, nil
}

// Session fetches one session by identity.
func (c *HTTPSnapshotAPI) Session(ctx context.Context, id string) (*models.SessionView, error) {
	var view models.SessionView
	if err := c.get(ctx, "/api/v1/sessions/"+url.PathEscape(id), &view); err != nil {
		return nil, err
	}
	return &view, nil
}
