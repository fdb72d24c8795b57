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

package admin

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/carverauto/alarmbridge/pkg/api"
	"github.com/carverauto/alarmbridge/pkg/auth"
	"github.com/carverauto/alarmbridge/pkg/logger"
	"github.com/carverauto/alarmbridge/pkg/models"
	"github.com/carverauto/alarmbridge/pkg/poller"
)

const testAPIKey = "s3cret"

func setupServer(t *testing.T) (*MockService, http.Handler) {
	t.Helper()

	ctrl := gomock.NewController(t)
	svc := NewMockService(ctrl)

	s, err := NewServer(svc, testAPIKey, logger.NewTestLogger())
	require.NoError(t, err)

	return svc, s.Handler()
}

func doRequest(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()

	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, http.NoBody)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}

	if !strings.Contains(target, "api_key=") {
		req.Header.Set("X-API-Key", testAPIKey)
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) models.ErrorResponse {
	t.Helper()

	var out models.ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&out))
	assert.Equal(t, rec.Code, out.Status)

	return out
}

func TestNewServerRequiresAPIKey(t *testing.T) {
	_, err := NewServer(nil, "", nil)
	require.ErrorIs(t, err, errAPIKeyRequired)
}

func TestAPIKeyMiddleware(t *testing.T) {
	svc, h := setupServer(t)
	svc.EXPECT().GetSites(gomock.Any()).Return([]models.Site{{ID: "s1"}}, nil).Times(2)

	req := httptest.NewRequest(http.MethodGet, "/api/sites", http.NoBody)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Unauthorized", decodeError(t, rec).Message)

	req = httptest.NewRequest(http.MethodGet, "/api/sites", http.NoBody)
	req.Header.Set("X-API-Key", "wrong")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doRequest(t, h, http.MethodGet, "/api/sites", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, h, http.MethodGet, "/api/sites?api_key="+testAPIKey, "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHealthIsUnauthenticated(t *testing.T) {
	svc, h := setupServer(t)
	svc.EXPECT().PollingStatus().Return(poller.Status{Running: true})
	svc.EXPECT().CredentialState().Return(auth.StateValid)

	req := httptest.NewRequest(http.MethodGet, "/healthz", http.NoBody)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var out healthResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&out))
	assert.Equal(t, "ok", out.Status)
	assert.True(t, out.Polling)
	assert.Equal(t, auth.StateValid, out.Credential)
}

func TestGetSites(t *testing.T) {
	svc, h := setupServer(t)

	gomock.InOrder(
		svc.EXPECT().GetSites(gomock.Any()).Return([]models.Site{
			{ID: "s1", Label: "Home", SecurityLevel: models.SecurityLevelArmed},
		}, nil),
		svc.EXPECT().GetSites(gomock.Any()).Return(nil, nil),
	)

	rec := doRequest(t, h, http.MethodGet, "/api/sites", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var sites []models.Site
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&sites))
	require.Len(t, sites, 1)
	assert.Equal(t, models.SecurityLevelArmed, sites[0].SecurityLevel)

	rec = doRequest(t, h, http.MethodGet, "/api/sites", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "[]", rec.Body.String())
}

func TestGetSiteAndDevices(t *testing.T) {
	svc, h := setupServer(t)

	svc.EXPECT().GetSite(gomock.Any(), "s 1").Return(&models.Site{ID: "s 1", Label: "Home"}, nil)
	svc.EXPECT().GetDevices(gomock.Any(), "s1").Return([]models.Device{{ID: "d1", SiteID: "s1"}}, nil)

	rec := doRequest(t, h, http.MethodGet, "/api/sites/s%201", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var site models.Site
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&site))
	assert.Equal(t, "Home", site.Label)

	rec = doRequest(t, h, http.MethodGet, "/api/sites/s1/devices", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var devices []models.Device
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&devices))
	require.Len(t, devices, 1)
	assert.Equal(t, "d1", devices[0].ID)
}

func TestSetSecurityLevel(t *testing.T) {
	svc, h := setupServer(t)

	svc.EXPECT().
		SetSecurityLevel(gomock.Any(), "s1", models.SecurityLevelArmed).
		Return(&models.SecurityLevelResult{TaskID: "task-9", SiteID: "s1"}, nil)

	rec := doRequest(t, h, http.MethodPut, "/api/sites/s1/security-level", `{"security_level":"ARMED"}`)
	require.Equal(t, http.StatusAccepted, rec.Code)

	var result models.SecurityLevelResult
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&result))
	assert.Equal(t, "task-9", result.TaskID)

	rec = doRequest(t, h, http.MethodPut, "/api/sites/s1/security-level", `{"security_level":"panic"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(t, h, http.MethodPut, "/api/sites/s1/security-level", `not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid request body", decodeError(t, rec).Message)

	rec = doRequest(t, h, http.MethodGet, "/api/sites/s1/security-level", "")
	require.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, "Method not allowed", decodeError(t, rec).Message)
}

func TestUnknownRoutesReturnJSONErrors(t *testing.T) {
	_, h := setupServer(t)

	rec := doRequest(t, h, http.MethodGet, "/api/nope", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Not found", decodeError(t, rec).Message)

	rec = doRequest(t, h, http.MethodPost, "/healthz", "")
	require.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, "Method not allowed", decodeError(t, rec).Message)
}

func TestServiceErrorsMapToStatus(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"authentication failure", &auth.AuthenticationError{Message: "invalid_grant", StatusCode: 400}, http.StatusBadGateway},
		{"remote not found", &api.RemoteAPIError{StatusCode: 404, Message: "site not found"}, http.StatusNotFound},
		{"remote rejected credential", &api.RemoteAPIError{StatusCode: 401, Message: "unauthorized"}, http.StatusBadGateway},
		{"remote server error", &api.RemoteAPIError{StatusCode: 503, Message: "maintenance"}, http.StatusBadGateway},
		{"network", &api.TransientNetworkError{Err: errors.New("connection reset")}, http.StatusBadGateway},
		{"invalid level", fmt.Errorf("wrap: %w", models.ErrInvalidSecurityLevel), http.StatusBadRequest},
		{"missing site", api.ErrSiteIDRequired, http.StatusBadRequest},
		{"deadline", context.DeadlineExceeded, http.StatusGatewayTimeout},
		{"other", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.status, statusForError(tt.err))
		})
	}
}

func TestGetSiteRemoteError(t *testing.T) {
	svc, h := setupServer(t)
	svc.EXPECT().GetSite(gomock.Any(), "missing").
		Return(nil, &api.RemoteAPIError{StatusCode: 404, Message: "site not found"})

	rec := doRequest(t, h, http.MethodGet, "/api/sites/missing", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, decodeError(t, rec).Message, "site not found")
}

func TestPollingControls(t *testing.T) {
	svc, h := setupServer(t)

	gomock.InOrder(
		svc.EXPECT().StartPolling().Return(true),
		svc.EXPECT().StartPolling().Return(false),
	)
	svc.EXPECT().StopPolling(gomock.Any()).Return(nil)
	svc.EXPECT().PollingStatus().Return(poller.Status{
		Running:  true,
		Cadence:  poller.CadenceFast,
		Interval: models.Duration(time.Second),
		Sites:    []string{"s1"},
	})

	rec := doRequest(t, h, http.MethodPost, "/api/polling/start", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"started":true}`, rec.Body.String())

	rec = doRequest(t, h, http.MethodPost, "/api/polling/start", "")
	assert.JSONEq(t, `{"started":false}`, rec.Body.String())

	rec = doRequest(t, h, http.MethodGet, "/api/polling", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var status map[string]interface{}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&status))
	assert.Equal(t, "fast", status["cadence"])
	assert.Equal(t, "1s", status["interval"])

	rec = doRequest(t, h, http.MethodPost, "/api/polling/stop", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"stopped":true}`, rec.Body.String())
}

func TestClearCredential(t *testing.T) {
	svc, h := setupServer(t)

	gomock.InOrder(
		svc.EXPECT().ClearCredential(gomock.Any()).Return(nil),
		svc.EXPECT().ClearCredential(gomock.Any()).Return(errors.New("permission denied")),
	)

	rec := doRequest(t, h, http.MethodPost, "/api/credential/clear", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = doRequest(t, h, http.MethodPost, "/api/credential/clear", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestListenAndServeStopsOnCancel(t *testing.T) {
	s, err := NewServer(NewMockService(gomock.NewController(t)), testAPIKey, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)

	go func() {
		done <- s.ListenAndServe(ctx, "127.0.0.1:0")
	}()

	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
