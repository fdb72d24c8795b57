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

package bridge

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/carverauto/alarmbridge/pkg/api"
	"github.com/carverauto/alarmbridge/pkg/auth"
	"github.com/carverauto/alarmbridge/pkg/events"
	"github.com/carverauto/alarmbridge/pkg/logger"
	"github.com/carverauto/alarmbridge/pkg/models"
	"github.com/carverauto/alarmbridge/pkg/poller"
)

const (
	defaultStorageDir  = ".alarmbridge"
	defaultStorageFile = "token.json"
	defaultServiceName = "alarmbridge"
)

var (
	errAPIURLRequired    = errors.New("account api_url is required")
	errAdminAPIKeyNeeded = errors.New("admin api_key is required when listen_addr is set")
	errInvalidRateLimit  = errors.New("http rate_limit must not be negative")
)

// AccountConfig identifies the remote account and where to reach it.
type AccountConfig struct {
	Username     string `json:"username"`
	Password     string `json:"password" sensitive:"true"`
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret" sensitive:"true"`
	Scope        string `json:"scope,omitempty"`
	TokenURL     string `json:"token_url"`
	APIURL       string `json:"api_url"`
	AuthStyle    string `json:"auth_style,omitempty"`
}

func (a *AccountConfig) authConfig() *auth.Config {
	return &auth.Config{
		TokenURL:     a.TokenURL,
		ClientID:     a.ClientID,
		ClientSecret: a.ClientSecret,
		Username:     a.Username,
		Password:     a.Password,
		Scope:        a.Scope,
		AuthStyle:    a.AuthStyle,
	}
}

// HTTPConfig tunes the remote API transport.
type HTTPConfig struct {
	RequestTimeout models.Duration `json:"request_timeout,omitempty"`
	MaxRetries     *int            `json:"max_retries,omitempty"`
	RetryBaseDelay models.Duration `json:"retry_base_delay,omitempty"`
	RateLimit      float64         `json:"rate_limit,omitempty"`
	RateBurst      int             `json:"rate_burst,omitempty"`
}

func (h *HTTPConfig) clientConfig(baseURL string) api.Config {
	retries := api.DefaultMaxRetries
	if h.MaxRetries != nil {
		retries = *h.MaxRetries
	}

	return api.Config{
		BaseURL:        baseURL,
		RequestTimeout: time.Duration(h.RequestTimeout),
		MaxRetries:     retries,
		RetryBaseDelay: time.Duration(h.RetryBaseDelay),
		RateLimit:      h.RateLimit,
		RateBurst:      h.RateBurst,
	}
}

// AdminConfig enables the administrative HTTP endpoint.
type AdminConfig struct {
	ListenAddr string `json:"listen_addr,omitempty"`
	APIKey     string `json:"api_key,omitempty" sensitive:"true"`
}

// Config is the complete configuration of one alarmbridge process.
type Config struct {
	Account     AccountConfig          `json:"account"`
	StoragePath string                 `json:"storage_path,omitempty"`
	Polling     poller.Config          `json:"polling"`
	HTTP        HTTPConfig             `json:"http"`
	Admin       AdminConfig            `json:"admin"`
	NATS        events.NATSConfig      `json:"nats"`
	Logging     *logger.Config         `json:"logging,omitempty"`
	Telemetry   logger.TelemetryConfig `json:"telemetry"`
}

// Validate fills defaults and checks the configuration.
func (c *Config) Validate() error {
	c.applyDefaults()

	if err := c.Account.authConfig().Validate(); err != nil {
		return fmt.Errorf("account: %w", err)
	}

	if c.Account.APIURL == "" {
		return errAPIURLRequired
	}

	if err := c.Polling.Validate(); err != nil {
		return fmt.Errorf("polling: %w", err)
	}

	if c.HTTP.RateLimit < 0 {
		return errInvalidRateLimit
	}

	if c.Admin.ListenAddr != "" && c.Admin.APIKey == "" {
		return errAdminAPIKeyNeeded
	}

	return nil
}

func (c *Config) applyDefaults() {
	if c.StoragePath == "" {
		c.StoragePath = DefaultStoragePath()
	}

	c.Polling.ApplyDefaults()

	if c.Telemetry.ServiceName == "" {
		c.Telemetry.ServiceName = defaultServiceName
	}
}

// DefaultStoragePath returns the credential file location under the user's
// home directory.
func DefaultStoragePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(defaultStorageDir, defaultStorageFile)
	}

	return filepath.Join(home, defaultStorageDir, defaultStorageFile)
}
