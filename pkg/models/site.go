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

// Package models holds the data types shared by the alarmbridge packages.
package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// SecurityLevel is the arming state of a site.
type SecurityLevel string

const (
	SecurityLevelDisarmed SecurityLevel = "disarmed"
	SecurityLevelArmed    SecurityLevel = "armed"
	SecurityLevelPartial  SecurityLevel = "partial"
)

// ParseSecurityLevel converts a string into a SecurityLevel, case-insensitively.
func ParseSecurityLevel(s string) (SecurityLevel, error) {
	level := SecurityLevel(strings.ToLower(strings.TrimSpace(s)))
	if !level.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidSecurityLevel, s)
	}

	return level, nil
}

// Valid reports whether the level is one of the known arming states.
func (l SecurityLevel) Valid() bool {
	switch l {
	case SecurityLevelDisarmed, SecurityLevelArmed, SecurityLevelPartial:
		return true
	default:
		return false
	}
}

func (l SecurityLevel) String() string {
	return string(l)
}

// UnmarshalJSON rejects unknown levels so a malformed payload never reaches
// transition detection.
func (l *SecurityLevel) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}

	level, err := ParseSecurityLevel(s)
	if err != nil {
		return err
	}

	*l = level

	return nil
}

// Site is a monitored location as reported by the remote service.
// ID is the durable identity; SecurityLevel is the only field reconciled across polls.
type Site struct {
	ID            string        `json:"site_id"`
	Label         string        `json:"label"`
	SecurityLevel SecurityLevel `json:"security_level"`

	// Diagnostic fields, passed through untouched.
	Online          bool       `json:"online,omitempty"`
	FirmwareVersion string     `json:"firmware_version,omitempty"`
	TimeZone        string     `json:"time_zone,omitempty"`
	LastEventAt     *time.Time `json:"last_event_at,omitempty"`
}

// Clone returns an independent copy of the site.
func (s *Site) Clone() Site {
	out := *s

	if s.LastEventAt != nil {
		t := *s.LastEventAt
		out.LastEventAt = &t
	}

	return out
}

// SecurityLevelResult is returned when a security level change is accepted.
type SecurityLevelResult struct {
	TaskID string `json:"task_id"`
	SiteID string `json:"site_id"`
}

// Device is a piece of equipment attached to a site. Devices are listed for
// operators but are not reconciled by the poller.
type Device struct {
	ID           string `json:"device_id"`
	SiteID       string `json:"site_id"`
	Label        string `json:"label"`
	Type         string `json:"type"`
	Online       bool   `json:"online"`
	BatteryLevel *int   `json:"battery_level,omitempty"`
	Tampered     bool   `json:"tampered,omitempty"`
}
