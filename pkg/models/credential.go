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

// Credential is the cached bearer credential for one account.
//
// IssuedAt is milliseconds since the Unix epoch, stamped locally when the grant
// succeeded. It is never taken from the token endpoint response.
type Credential struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
	Scope        string `json:"scope,omitempty"`
	IssuedAt     int64  `json:"issued_at"`
}

// IssuedTime returns IssuedAt as a time.Time.
func (c *Credential) IssuedTime() time.Time {
	return time.UnixMilli(c.IssuedAt)
}

// ExpiresAt returns the instant the remote service stops accepting the token.
func (c *Credential) ExpiresAt() time.Time {
	return c.IssuedTime().Add(time.Duration(c.ExpiresIn) * time.Second)
}

// ExpiredAt reports whether the credential must be renewed at now, treating
// the final buffer before ExpiresAt as already expired.
func (c *Credential) ExpiredAt(now time.Time, buffer time.Duration) bool {
	deadline := c.IssuedAt + c.ExpiresIn*int64(time.Second/time.Millisecond) - buffer.Milliseconds()

	return now.UnixMilli() >= deadline
}
