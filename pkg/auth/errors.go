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
	"errors"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"
)

var (
	ErrTokenURLRequired = errors.New("token_url is required")
	ErrUsernameRequired = errors.New("username is required")
	ErrPasswordRequired = errors.New("password is required")
	ErrClientIDRequired = errors.New("client_id is required")
	ErrInvalidAuthStyle = errors.New("auth_style must be 'params' or 'header'")
	errEmptyAccessToken = errors.New("token endpoint returned no access_token")
)

// AuthenticationError reports a failed token exchange. StatusCode and
// RawResponse are set when the token endpoint answered.
type AuthenticationError struct {
	Message     string
	StatusCode  int
	RawResponse string
	Err         error
}

func (e *AuthenticationError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("authentication failed: %s (status %d)", e.Message, e.StatusCode)
	}

	return "authentication failed: " + e.Message
}

func (e *AuthenticationError) Unwrap() error {
	return e.Err
}

// invalidGrant reports whether the token endpoint rejected the grant itself,
// which for a refresh means the refresh token is no longer usable.
func (e *AuthenticationError) invalidGrant() bool {
	return e.StatusCode == http.StatusBadRequest || e.StatusCode == http.StatusUnauthorized
}

func newAuthenticationError(grant string, err error) *AuthenticationError {
	var authErr *AuthenticationError
	if errors.As(err, &authErr) {
		return authErr
	}

	out := &AuthenticationError{
		Message: fmt.Sprintf("%s grant: %v", grant, err),
		Err:     err,
	}

	var retrieveErr *oauth2.RetrieveError
	if !errors.As(err, &retrieveErr) {
		return out
	}

	if retrieveErr.Response != nil {
		out.StatusCode = retrieveErr.Response.StatusCode
	}

	out.RawResponse = string(retrieveErr.Body)

	switch {
	case retrieveErr.ErrorDescription != "":
		out.Message = fmt.Sprintf("%s grant: %s", grant, retrieveErr.ErrorDescription)
	case retrieveErr.ErrorCode != "":
		out.Message = fmt.Sprintf("%s grant: %s", grant, retrieveErr.ErrorCode)
	case out.StatusCode != 0:
		out.Message = fmt.Sprintf("%s grant: %s", grant, http.StatusText(out.StatusCode))
	}

	return out
}
