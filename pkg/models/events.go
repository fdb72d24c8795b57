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

package models

import "time"

// CloudEvent represents a CloudEvents v1.0 compliant event.
type CloudEvent struct {
	SpecVersion     string      `json:"specversion"`
	ID              string      `json:"id"`
	Source          string      `json:"source"`
	Type            string      `json:"type"`
	DataContentType string      `json:"datacontenttype"`
	Subject         string      `json:"subject,omitempty"`
	Time            *time.Time  `json:"time,omitempty"`
	Data            interface{} `json:"data,omitempty"`
}

// SiteStateEventData is the payload of a site state CloudEvent.
type SiteStateEventData struct {
	SiteID        string        `json:"site_id"`
	Label         string        `json:"label"`
	SecurityLevel SecurityLevel `json:"security_level"`
	Online        bool          `json:"online"`
	ObservedAt    time.Time     `json:"observed_at"`
}

// ErrorResponse is the JSON body of an error returned by the admin API.
type ErrorResponse struct {
	Message string `json:"message"`
	Status  int    `json:"status"`
}
