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
	"time"

	"github.com/carverauto/alarmbridge/pkg/models"
)

// Cadence is the polling speed currently selected.
type Cadence string

const (
	CadenceSlow Cadence = "slow"
	CadenceFast Cadence = "fast"
)

// cadenceController decides the polling cadence from observed security levels.
// It holds no timers; the scheduler applies its decisions.
type cadenceController struct {
	adaptive     bool
	fastDuration time.Duration

	cadence          Cadence
	lastTransitionAt time.Time
	previous         map[string]models.SecurityLevel
}

func newCadenceController(adaptive bool, fastDuration time.Duration) *cadenceController {
	return &cadenceController{
		adaptive:     adaptive,
		fastDuration: fastDuration,
		cadence:      CadenceSlow,
		previous:     make(map[string]models.SecurityLevel),
	}
}

// observe records the level seen for a site at now and reports whether the
// cadence changed as a result.
func (c *cadenceController) observe(siteID string, level models.SecurityLevel, now time.Time) bool {
	prev, seen := c.previous[siteID]
	c.previous[siteID] = level

	if !c.adaptive {
		return false
	}

	if seen && prev != level {
		c.lastTransitionAt = now

		if c.cadence == CadenceFast {
			return false
		}

		c.cadence = CadenceFast

		return true
	}

	return c.expire(now)
}

// expire returns to slow cadence once the fast window has elapsed.
func (c *cadenceController) expire(now time.Time) bool {
	if c.cadence != CadenceFast || now.Sub(c.lastTransitionAt) < c.fastDuration {
		return false
	}

	c.cadence = CadenceSlow

	return true
}

func (c *cadenceController) interval(slow, fast time.Duration) time.Duration {
	if c.cadence == CadenceFast {
		return fast
	}

	return slow
}
