// Watchdeck - Media Server Companion Portal
// Copyright 2026 Watchdeck Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/watchdeck/watchdeck

// Package plex is the HTTP client for the upstream media server. It exposes
// the three read endpoints the session pipeline consumes: active sessions,
// library sections, and item metadata.
package plex

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/goccy/go-json"

	"github.com/watchdeck/watchdeck/internal/metrics"
	"github.com/watchdeck/watchdeck/internal/models"
)

// ErrUnauthorized is returned when the upstream server rejects our token.
// Callers treat this as a terminal auth loss, not a transient failure.
var ErrUnauthorized = fmt.Errorf("upstream rejected authentication token")

// Client talks to the upstream media server's REST API.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewClient creates an upstream client. baseURL must not end with a slash.
func NewClient(baseURL, token string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:    baseURL,
		token:      token,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// requestConfig holds configuration for building upstream requests.
type requestConfig struct {
	method   string
	path     string
	query    url.Values
	expectOK bool // if true, require 200 OK
}

// doRequest executes an upstream API request and decodes the JSON response
// into result when non-nil.
func (c *Client) doRequest(ctx context.Context, cfg requestConfig, result interface{}) error {
	reqURL := fmt.Sprintf("%s%s", c.baseURL, cfg.path)

	req, err := http.NewRequestWithContext(ctx, cfg.method, reqURL, http.NoBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("X-Plex-Token", c.token)
	req.Header.Set("Accept", "application/json")

	if len(cfg.query) > 0 {
		req.URL.RawQuery = cfg.query.Encode()
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.RecordUpstreamCall(cfg.path, 0, time.Since(start))
		return fmt.Errorf("upstream request %s: %w", cfg.path, err)
	}
	defer resp.Body.Close()

	metrics.RecordUpstreamCall(cfg.path, resp.StatusCode, time.Since(start))

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return ErrUnauthorized
	}
	if cfg.expectOK && resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status: %d %s", resp.StatusCode, resp.Status)
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}

	return nil
}

// doJSONRequest is a convenience wrapper for GET JSON requests.
func (c *Client) doJSONRequest(ctx context.Context, path string, result interface{}) error {
	return c.doRequest(ctx, requestConfig{
		method:   http.MethodGet,
		path:     path,
		expectOK: true,
	}, result)
}

// GetSessions fetches the currently active playback sessions.
func (c *Client) GetSessions(ctx context.Context) ([]models.Session, error) {
	var resp models.SessionsResponse
	if err := c.doJSONRequest(ctx, "/status/sessions", &resp); err != nil {
		return nil, err
	}
	return resp.MediaContainer.Metadata, nil
}

// GetSections fetches all library sections.
func (c *Client) GetSections(ctx context.Context) ([]models.Section, error) {
	var resp models.SectionsResponse
	if err := c.doJSONRequest(ctx, "/library/sections", &resp); err != nil {
		return nil, err
	}
	return resp.MediaContainer.Directory, nil
}

// GetMetadata fetches the full metadata document for a library item. The key
// is the item's ratingKey.
func (c *Client) GetMetadata(ctx context.Context, ratingKey string) (*models.MetadataItem, error) {
	var resp models.MetadataResponse
	path := "/library/metadata/" + url.PathEscape(ratingKey)
	if err := c.doJSONRequest(ctx, path, &resp); err != nil {
		return nil, err
	}
	if len(resp.MediaContainer.Metadata) == 0 {
		return nil, fmt.Errorf("metadata for %s: empty container", ratingKey)
	}
	return &resp.MediaContainer.Metadata[0], nil
}
