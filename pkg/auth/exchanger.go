/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package auth

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

const (
	authStyleParams = "params"
	authStyleHeader = "header"

	// DefaultRequestTimeout bounds every call to the token endpoint.
	DefaultRequestTimeout = 30 * time.Second
)

// Config holds the static account credentials used for token grants.
type Config struct {
	TokenURL     string `json:"token_url"`
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret" sensitive:"true"`
	Username     string `json:"username"`
	Password     string `json:"password" sensitive:"true"`
	Scope        string `json:"scope"`
	// AuthStyle selects where client credentials travel: "params" (form body,
	// the default) or "header" (HTTP basic auth).
	AuthStyle string `json:"auth_style"`
}

// Validate checks that a password grant can be attempted.
func (c *Config) Validate() error {
	switch {
	case c.TokenURL == "":
		return ErrTokenURLRequired
	case c.Username == "":
		return ErrUsernameRequired
	case c.Password == "":
		return ErrPasswordRequired
	case c.ClientID == "":
		return ErrClientIDRequired
	}

	switch strings.ToLower(c.AuthStyle) {
	case "", authStyleParams, authStyleHeader:
		return nil
	default:
		return ErrInvalidAuthStyle
	}
}

// Scopes splits the configured scope on whitespace.
func (c *Config) Scopes() []string {
	return strings.Fields(c.Scope)
}

// OAuth2Exchanger performs password and refresh-token grants with
// golang.org/x/oauth2.
type OAuth2Exchanger struct {
	oauth      *oauth2.Config
	username   string
	password   string
	httpClient *http.Client
}

var _ Exchanger = (*OAuth2Exchanger)(nil)

// NewOAuth2Exchanger builds an exchanger for cfg. A nil client gets a
// default one with DefaultRequestTimeout.
func NewOAuth2Exchanger(cfg *Config, client *http.Client) *OAuth2Exchanger {
	if client == nil {
		client = &http.Client{Timeout: DefaultRequestTimeout}
	}

	style := oauth2.AuthStyleInParams
	if strings.EqualFold(cfg.AuthStyle, authStyleHeader) {
		style = oauth2.AuthStyleInHeader
	}

	return &OAuth2Exchanger{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Scopes:       cfg.Scopes(),
			Endpoint: oauth2.Endpoint{
				TokenURL:  cfg.TokenURL,
				AuthStyle: style,
			},
		},
		username:   cfg.Username,
		password:   cfg.Password,
		httpClient: client,
	}
}

// PasswordGrant exchanges the account username and password for a token.
func (e *OAuth2Exchanger) PasswordGrant(ctx context.Context) (*oauth2.Token, error) {
	tok, err := e.oauth.PasswordCredentialsToken(e.clientContext(ctx), e.username, e.password)
	if err != nil {
		return nil, newAuthenticationError("password", err)
	}

	return tok, nil
}

// RefreshGrant exchanges a refresh token for a new token.
func (e *OAuth2Exchanger) RefreshGrant(ctx context.Context, refreshToken string) (*oauth2.Token, error) {
	src := e.oauth.TokenSource(e.clientContext(ctx), &oauth2.Token{RefreshToken: refreshToken})

	tok, err := src.Token()
	if err != nil {
		return nil, newAuthenticationError("refresh", err)
	}

	return tok, nil
}

func (e *OAuth2Exchanger) clientContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, e.httpClient)
}

// expiresIn returns the lifetime in seconds reported by the grant response.
func expiresIn(tok *oauth2.Token, now time.Time) int64 {
	if tok.ExpiresIn > 0 {
		return tok.ExpiresIn
	}

	switch v := tok.Extra("expires_in").(type) {
	case float64:
		return int64(v)
	case string:
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}

	if !tok.Expiry.IsZero() {
		if secs := int64(tok.Expiry.Sub(now).Round(time.Second) / time.Second); secs > 0 {
			return secs
		}
	}

	return 0
}

func grantedScope(tok *oauth2.Token, fallback string) string {
	if scope, ok := tok.Extra("scope").(string); ok && scope != "" {
		return scope
	}

	return fallback
}
