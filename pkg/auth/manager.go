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

// Package auth keeps a valid bearer credential for one remote account.
package auth

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/oauth2"

	"github.com/carverauto/alarmbridge/pkg/credentials"
	"github.com/carverauto/alarmbridge/pkg/logger"
	"github.com/carverauto/alarmbridge/pkg/models"
)

// ExpiryBuffer is how long before the real expiry a token is treated as expired.
const ExpiryBuffer = 60 * time.Second

const defaultTokenType = "Bearer"

// State is the lifecycle state of the cached credential.
type State string

const (
	StateNoToken  State = "no_token"
	StateValid    State = "valid"
	StateExpiring State = "expiring"
	StateInvalid  State = "invalid"
)

// Manager acquires, caches, refreshes and persists the account credential.
// All exchanges are serialized, so concurrent callers that find the token
// expired trigger a single grant.
type Manager struct {
	exchanger Exchanger
	store     credentials.Store
	logger    logger.Logger
	scope     string
	now       func() time.Time

	mu         sync.Mutex
	credential *models.Credential
	rejected   bool
}

// Option configures a Manager.
type Option func(*Manager)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		m.now = now
	}
}

// WithDefaultScope sets the scope recorded when the token endpoint does not
// echo one.
func WithDefaultScope(scope string) Option {
	return func(m *Manager) {
		m.scope = scope
	}
}

// NewManager creates a Manager and primes it from the store.
func NewManager(ctx context.Context, exchanger Exchanger, store credentials.Store, log logger.Logger, opts ...Option) *Manager {
	if log == nil {
		log = logger.NewTestLogger()
	}

	m := &Manager{
		exchanger: exchanger,
		store:     store,
		logger:    log,
		now:       time.Now,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.credential = store.Load(ctx)
	if m.credential != nil {
		m.logger.Debug().
			Time("issued_at", m.credential.IssuedTime()).
			Time("expires_at", m.credential.ExpiresAt()).
			Msg("Loaded cached credential")
	}

	return m
}

// GetAccessToken returns a bearer token valid for at least ExpiryBuffer,
// refreshing or reacquiring it first when needed.
func (m *Manager) GetAccessToken(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.credential != nil && !m.rejected && !m.credential.ExpiredAt(m.now(), ExpiryBuffer) {
		return m.credential.AccessToken, nil
	}

	credential, err := m.renewLocked(ctx)
	if err != nil {
		return "", err
	}

	return credential.AccessToken, nil
}

// ForceRefresh renews the credential regardless of its expiry. The API layer
// calls it with the token the remote service rejected. When another caller
// has already replaced that token, the current one is returned without a new
// grant. An empty rejected token always renews.
func (m *Manager) ForceRefresh(ctx context.Context, rejected string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if rejected != "" && m.credential != nil && !m.rejected && m.credential.AccessToken != rejected {
		return m.credential.AccessToken, nil
	}

	m.rejected = true

	credential, err := m.renewLocked(ctx)
	if err != nil {
		return "", err
	}

	return credential.AccessToken, nil
}

// RequestNewToken performs a password grant and persists the result.
func (m *Manager) RequestNewToken(ctx context.Context) (*models.Credential, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	credential, err := m.requestNewLocked(ctx)
	if err != nil {
		return nil, err
	}

	out := *credential

	return &out, nil
}

// RefreshToken performs a refresh grant, falling back to a password grant
// when no refresh token is held or the endpoint rejects it.
func (m *Manager) RefreshToken(ctx context.Context) (*models.Credential, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	credential, err := m.refreshLocked(ctx)
	if err != nil {
		return nil, err
	}

	out := *credential

	return &out, nil
}

// ClearToken drops the cached and persisted credential so the next
// GetAccessToken performs a password grant.
func (m *Manager) ClearToken(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.credential = nil
	m.rejected = false

	m.logger.Info().Msg("Cleared credential")

	return m.store.Clear(ctx)
}

// State reports the credential state at now.
func (m *Manager) State(now time.Time) State {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch {
	case m.credential == nil:
		return StateNoToken
	case m.rejected || m.credential.ExpiredAt(now, 0):
		return StateInvalid
	case m.credential.ExpiredAt(now, ExpiryBuffer):
		return StateExpiring
	default:
		return StateValid
	}
}

func (m *Manager) renewLocked(ctx context.Context) (*models.Credential, error) {
	if m.credential != nil && m.credential.RefreshToken != "" {
		return m.refreshLocked(ctx)
	}

	return m.requestNewLocked(ctx)
}

func (m *Manager) requestNewLocked(ctx context.Context) (*models.Credential, error) {
	tok, err := m.exchanger.PasswordGrant(ctx)
	if err != nil {
		authErr := newAuthenticationError("password", err)

		m.logger.Error().Err(authErr).Int("status", authErr.StatusCode).Msg("Password grant failed")

		return nil, authErr
	}

	return m.adoptLocked(ctx, tok, "password")
}

func (m *Manager) refreshLocked(ctx context.Context) (*models.Credential, error) {
	if m.credential == nil || m.credential.RefreshToken == "" {
		return m.requestNewLocked(ctx)
	}

	tok, err := m.exchanger.RefreshGrant(ctx, m.credential.RefreshToken)
	if err == nil {
		return m.adoptLocked(ctx, tok, "refresh")
	}

	authErr := newAuthenticationError("refresh", err)
	if !authErr.invalidGrant() {
		m.logger.Error().Err(authErr).Int("status", authErr.StatusCode).Msg("Refresh grant failed")

		return nil, authErr
	}

	m.logger.Warn().
		Err(authErr).
		Int("status", authErr.StatusCode).
		Msg("Refresh token rejected, falling back to password grant")

	return m.requestNewLocked(ctx)
}

func (m *Manager) adoptLocked(ctx context.Context, tok *oauth2.Token, grant string) (*models.Credential, error) {
	if tok == nil || tok.AccessToken == "" {
		return nil, &AuthenticationError{Message: grant + " grant: " + errEmptyAccessToken.Error(), Err: errEmptyAccessToken}
	}

	now := m.now()

	credential := &models.Credential{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		TokenType:    tok.TokenType,
		ExpiresIn:    expiresIn(tok, now),
		Scope:        grantedScope(tok, m.scope),
		IssuedAt:     now.UnixMilli(),
	}

	if credential.TokenType == "" {
		credential.TokenType = defaultTokenType
	}

	if credential.RefreshToken == "" && m.credential != nil && grant == "refresh" {
		credential.RefreshToken = m.credential.RefreshToken
	}

	m.credential = credential
	m.rejected = false

	m.store.Save(ctx, credential)

	m.logger.Info().
		Str("grant", grant).
		Int64("expires_in", credential.ExpiresIn).
		Msg("Acquired access token")

	return credential, nil
}

// IsAuthenticationError reports whether err came from a failed token exchange.
func IsAuthenticationError(err error) bool {
	var authErr *AuthenticationError

	return errors.As(err, &authErr)
}
