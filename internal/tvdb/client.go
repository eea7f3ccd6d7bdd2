// Watchdeck - Media Server Companion Portal
// Copyright 2026 Watchdeck Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/watchdeck/watchdeck

// Package tvdb is the client for the external TV episode lookup service used
// to resolve cross-reference links for TV sessions.
//
// The service requires a one-time login exchanging the API key for a bearer
// token. Login is attempted at most once per process and the outcome is
// sticky: after a failed login every lookup fails fast without retrying the
// handshake. A restart is the recovery path.
package tvdb

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/watchdeck/watchdeck/internal/logging"
	"github.com/watchdeck/watchdeck/internal/metrics"
)

var (
	// ErrNotFound is returned when the service has no record for a lookup.
	ErrNotFound = errors.New("tvlookup: not found")

	// ErrLoginFailed is returned by every lookup after the one-time login
	// handshake has failed.
	ErrLoginFailed = errors.New("tvlookup: login failed, lookups disabled until restart")
)

// Episode is one episode record from the lookup service.
type Episode struct {
	ID                 int    `json:"id"`
	SeriesID           int    `json:"seriesId"`
	AiredSeason        int    `json:"airedSeason"`
	AiredEpisodeNumber int    `json:"airedEpisodeNumber"`
	EpisodeName        string `json:"episodeName"`
	IMDBID             string `json:"imdbId"`
}

// Series is one series record from the lookup service.
type Series struct {
	ID         int    `json:"id"`
	SeriesName string `json:"seriesName"`
	IMDBID     string `json:"imdbId"`
}

// Client talks to the TV lookup service with rate limiting and circuit
// breaker protection.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	limiter    *rate.Limiter
	cb         *gobreaker.CircuitBreaker[interface{}]

	loginOnce sync.Once
	token     string
	loginErr  error
}

const breakerName = "tvlookup"

// NewClient creates a lookup client. ratePerSecond bounds outbound calls;
// zero disables the limiter.
func NewClient(baseURL, apiKey string, timeout time.Duration, ratePerSecond float64) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	limit := rate.Inf
	if ratePerSecond > 0 {
		limit = rate.Limit(ratePerSecond)
	}

	metrics.SetCircuitBreakerState(breakerName, 0)

	cb := gobreaker.NewCircuitBreaker[interface{}](gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     2 * time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 10 {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= 0.6
		},
		IsSuccessful: func(err error) bool {
			// A miss is an answer, not a service failure.
			return err == nil || errors.Is(err, ErrNotFound)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Info().Str("breaker", name).
				Str("from", from.String()).Str("to", to.String()).
				Msg("lookup circuit breaker state change")
			metrics.SetCircuitBreakerState(name, stateToInt(to))
		},
	})

	return &Client{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
		limiter:    rate.NewLimiter(limit, 1),
		cb:         cb,
	}
}

func stateToInt(s gobreaker.State) int {
	switch s {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	default:
		return 2
	}
}

// login performs the one-time token handshake. Called exactly once per
// process through loginOnce.
func (c *Client) login(ctx context.Context) {
	start := time.Now()

	body, err := json.Marshal(map[string]string{"apikey": c.apiKey})
	if err != nil {
		c.loginErr = fmt.Errorf("marshal login body: %w", err)
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/login", bytes.NewReader(body))
	if err != nil {
		c.loginErr = fmt.Errorf("create login request: %w", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.loginErr = fmt.Errorf("login request: %w", err)
		metrics.RecordTVLookup("login", c.loginErr, time.Since(start))
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.loginErr = fmt.Errorf("login rejected: status %d", resp.StatusCode)
		metrics.RecordTVLookup("login", c.loginErr, time.Since(start))
		return
	}

	var loginResp struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&loginResp); err != nil {
		c.loginErr = fmt.Errorf("decode login response: %w", err)
		metrics.RecordTVLookup("login", c.loginErr, time.Since(start))
		return
	}
	if loginResp.Token == "" {
		c.loginErr = errors.New("login response missing token")
		metrics.RecordTVLookup("login", c.loginErr, time.Since(start))
		return
	}

	c.token = loginResp.Token
	metrics.RecordTVLookup("login", nil, time.Since(start))
	logging.Info().Msg("lookup service login succeeded")
}

// ensureLogin runs the handshake once and reports its sticky outcome.
func (c *Client) ensureLogin(ctx context.Context) error {
	c.loginOnce.Do(func() { c.login(ctx) })
	if c.loginErr != nil {
		return fmt.Errorf("%w: %v", ErrLoginFailed, c.loginErr)
	}
	return nil
}

// doJSON executes an authenticated GET against the service, decoding the
// response's "data" member into result. Rate limiting and the circuit
// breaker wrap every call.
func (c *Client) doJSON(ctx context.Context, operation, path string, result interface{}) error {
	if err := c.ensureLogin(ctx); err != nil {
		return err
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	start := time.Now()
	_, err := c.cb.Execute(func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, http.NoBody)
		if err != nil {
			return nil, fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+c.token)
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("lookup request %s: %w", path, err)
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusNotFound:
			return nil, ErrNotFound
		case resp.StatusCode != http.StatusOK:
			return nil, fmt.Errorf("lookup %s: unexpected status %d", path, resp.StatusCode)
		}

		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return nil, fmt.Errorf("decode lookup response: %w", err)
		}
		return nil, nil
	})

	metrics.RecordTVLookup(operation, err, time.Since(start))
	return err
}

// GetEpisode resolves an episode by its (series, season, episode) triple.
func (c *Client) GetEpisode(ctx context.Context, seriesID string, season, episode int) (*Episode, error) {
	path := "/series/" + seriesID + "/episodes/query?airedSeason=" +
		strconv.Itoa(season) + "&airedEpisode=" + strconv.Itoa(episode)

	var resp struct {
		Data []Episode `json:"data"`
	}
	if err := c.doJSON(ctx, "episode", path, &resp); err != nil {
		return nil, err
	}
	if len(resp.Data) == 0 {
		return nil, ErrNotFound
	}
	return &resp.Data[0], nil
}

// GetEpisodeByID resolves an episode by its service-assigned id.
func (c *Client) GetEpisodeByID(ctx context.Context, episodeID string) (*Episode, error) {
	var resp struct {
		Data Episode `json:"data"`
	}
	if err := c.doJSON(ctx, "episode", "/episodes/"+episodeID, &resp); err != nil {
		return nil, err
	}
	return &resp.Data, nil
}

// GetSeries resolves a series record by its service-assigned id. Used as the
// fallback link source when an episode record carries no external id.
func (c *Client) GetSeries(ctx context.Context, seriesID string) (*Series, error) {
	var resp struct {
		Data Series `json:"data"`
	}
	if err := c.doJSON(ctx, "series", "/series/"+seriesID, &resp); err != nil {
		return nil, err
	}
	return &resp.Data, nil
}
