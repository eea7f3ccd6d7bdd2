// Watchdeck - Media Server Companion Portal
// Copyright 2026 Watchdeck Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/watchdeck/watchdeck

package api

import (
	"errors"
	"net/http"
	"strings"
)

// ErrUnknownToken is returned when a presented token maps to no privilege.
var ErrUnknownToken = errors.New("unknown access token")

// Authenticator maps an inbound request to a privilege level (0-100).
// Account management, cookies, and token issuance are an external
// collaborator's concern; this boundary only answers "how privileged is this
// caller".
type Authenticator interface {
	// Privilege returns the caller's level. A request presenting no
	// credentials is anonymous (level 0), not an error; only an invalid
	// credential returns ErrUnknownToken.
	Privilege(r *http.Request) (int, error)
}

// TokenAuthenticator resolves privilege from a static bearer-token map.
type TokenAuthenticator struct {
	tokens map[string]int
}

// NewTokenAuthenticator creates an authenticator over a token→privilege map.
func NewTokenAuthenticator(tokens map[string]int) *TokenAuthenticator {
	if tokens == nil {
		tokens = map[string]int{}
	}
	return &TokenAuthenticator{tokens: tokens}
}

// Privilege implements Authenticator.
func (a *TokenAuthenticator) Privilege(r *http.Request) (int, error) {
	token := bearerToken(r)
	if token == "" {
		return 0, nil
	}
	level, ok := a.tokens[token]
	if !ok {
		return 0, ErrUnknownToken
	}
	return level, nil
}

// bearerToken extracts the token from the Authorization header, falling back
// to the X-Watchdeck-Token header for clients that cannot set Authorization.
func bearerToken(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); auth != "" {
		if token, found := strings.CutPrefix(auth, "Bearer "); found {
			return token
		}
	}
	return r.Header.Get("X-Watchdeck-Token")
}
