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

package poller

import (
	"fmt"
	"time"

	"github.com/carverauto/alarmbridge/pkg/models"
)

const (
	DefaultInterval     = 60 * time.Second
	MinInterval         = 5 * time.Second
	MaxInterval         = 300 * time.Second
	DefaultFastInterval = 1 * time.Second
	DefaultFastDuration = 60 * time.Second
)

// Config controls polling cadence for one account.
type Config struct {
	// Interval is the slow (base) cadence.
	Interval models.Duration `json:"interval"`
	// AdaptivePolling switches to FastInterval for FastDuration after a
	// security level transition. Defaults to true when unset.
	AdaptivePolling *bool           `json:"adaptive_polling,omitempty"`
	FastInterval    models.Duration `json:"fast_interval,omitempty"`
	FastDuration    models.Duration `json:"fast_duration,omitempty"`
	// SiteID restricts polling to a single site. When empty, sites registered
	// with TrackSite are polled, or every site on the account.
	SiteID string `json:"site_id,omitempty"`
}

// ApplyDefaults fills unset fields.
func (c *Config) ApplyDefaults() {
	if c.Interval == 0 {
		c.Interval = models.Duration(DefaultInterval)
	}

	if c.FastInterval == 0 {
		c.FastInterval = models.Duration(DefaultFastInterval)
	}

	if c.FastDuration == 0 {
		c.FastDuration = models.Duration(DefaultFastDuration)
	}
}

// Adaptive reports whether transition-driven fast polling is enabled.
func (c *Config) Adaptive() bool {
	return c.AdaptivePolling == nil || *c.AdaptivePolling
}

// Validate checks the configured cadence. Call ApplyDefaults first.
func (c *Config) Validate() error {
	interval := time.Duration(c.Interval)
	if interval < MinInterval || interval > MaxInterval {
		return fmt.Errorf("%w: %s is outside %s..%s", ErrInvalidInterval, interval, MinInterval, MaxInterval)
	}

	if c.FastInterval <= 0 {
		return fmt.Errorf("%w: %s", ErrInvalidFastInterval, c.FastInterval)
	}

	if c.FastDuration <= 0 {
		return fmt.Errorf("%w: %s", ErrInvalidFastDuration, c.FastDuration)
	}

	return nil
}
