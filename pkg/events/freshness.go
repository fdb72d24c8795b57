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

package events

import (
	"fmt"
	"sync"
	"time"

	"github.com/carverauto/alarmbridge/pkg/models"
)

// StaleDataError reports that no update for a site arrived within the
// freshness threshold.
type StaleDataError struct {
	SiteID     string
	LastUpdate time.Time
	Threshold  time.Duration
}

func (e *StaleDataError) Error() string {
	if e.LastUpdate.IsZero() {
		return fmt.Sprintf("site %s: no update received", e.SiteID)
	}

	return fmt.Sprintf("site %s: last update at %s is older than %s",
		e.SiteID, e.LastUpdate.Format(time.RFC3339), e.Threshold)
}

// StaleThreshold returns the conventional freshness threshold for a poll
// interval: two missed polls.
func StaleThreshold(pollInterval time.Duration) time.Duration {
	return 2 * pollInterval
}

// FreshnessTracker records when each site was last updated so a consumer can
// signal a fault once updates stop arriving.
type FreshnessTracker struct {
	threshold time.Duration
	now       func() time.Time

	mu   sync.RWMutex
	last map[string]time.Time
}

// NewFreshnessTracker creates a tracker. A nil now uses time.Now.
func NewFreshnessTracker(threshold time.Duration, now func() time.Time) *FreshnessTracker {
	if now == nil {
		now = time.Now
	}

	return &FreshnessTracker{
		threshold: threshold,
		now:       now,
		last:      make(map[string]time.Time),
	}
}

// Observe records an update for siteID at the given time.
func (f *FreshnessTracker) Observe(siteID string, at time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if prev, ok := f.last[siteID]; ok && prev.After(at) {
		return
	}

	f.last[siteID] = at
}

// Handler returns a bus Handler that observes every published update.
func (f *FreshnessTracker) Handler() Handler {
	return func(siteID string, _ models.Site) {
		f.Observe(siteID, f.now())
	}
}

// LastUpdate returns when siteID was last observed.
func (f *FreshnessTracker) LastUpdate(siteID string) (time.Time, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	at, ok := f.last[siteID]

	return at, ok
}

// Check returns a *StaleDataError when siteID was never observed or its last
// update is older than the threshold.
func (f *FreshnessTracker) Check(siteID string) error {
	at, ok := f.LastUpdate(siteID)
	if !ok || f.now().Sub(at) > f.threshold {
		return &StaleDataError{SiteID: siteID, LastUpdate: at, Threshold: f.threshold}
	}

	return nil
}
