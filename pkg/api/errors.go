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

package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	ErrBaseURLRequired = errors.New("api base URL is required")
	ErrSiteIDRequired  = errors.New("site id is required")
	errDecodeResponse  = errors.New("failed to decode response")
	errEncodeRequest   = errors.New("failed to encode request")
	errRetryableStatus = errors.New("retryable status")
)

// maxErrorBodyInError caps how much of a non-JSON error body becomes the message.
const maxErrorBodyInError = 512

// RemoteAPIError is returned when the remote service answers with a non-2xx
// status after retries are exhausted.
type RemoteAPIError struct {
	StatusCode int
	Message    string
	Body       string
}

func (e *RemoteAPIError) Error() string {
	return fmt.Sprintf("remote API error (status %d): %s", e.StatusCode, e.Message)
}

// TransientNetworkError wraps a transport failure that the client gave up
// on, either because retries were exhausted or because the request could not
// be safely replayed.
type TransientNetworkError struct {
	Err error
}

func (e *TransientNetworkError) Error() string {
	return "network error: " + e.Err.Error()
}

func (e *TransientNetworkError) Unwrap() error {
	return e.Err
}

// IsStatus reports whether err is a RemoteAPIError with the given status.
func IsStatus(err error, status int) bool {
	var remoteErr *RemoteAPIError

	return errors.As(err, &remoteErr) && remoteErr.StatusCode == status
}

type errorPayload struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func newRemoteAPIError(status int, body []byte) *RemoteAPIError {
	out := &RemoteAPIError{
		StatusCode: status,
		Message:    http.StatusText(status),
		Body:       string(body),
	}

	var payload errorPayload
	if err := json.Unmarshal(body, &payload); err == nil {
		switch {
		case payload.Message != "":
			out.Message = payload.Message
		case payload.Error != "":
			out.Message = payload.Error
		}
	} else if text := strings.TrimSpace(string(body)); text != "" && len(text) <= maxErrorBodyInError {
		out.Message = text
	}

	if out.Message == "" {
		out.Message = fmt.Sprintf("unexpected status %d", status)
	}

	return out
}

// statusError carries a retryable response through the backoff loop.
type statusError struct {
	status int
	body   []byte
}

func (e *statusError) Error() string {
	return fmt.Sprintf("%v: %d", errRetryableStatus, e.status)
}

func (e *statusError) Unwrap() error {
	return errRetryableStatus
}
