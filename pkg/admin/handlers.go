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
	"net/http"

	"github.com/gorilla/mux"

	"github.com/carverauto/alarmbridge/pkg/api"
	"github.com/carverauto/alarmbridge/pkg/auth"
	"github.com/carverauto/alarmbridge/pkg/models"
)

type securityLevelRequest struct {
	SecurityLevel string `json:"security_level"`
}

type healthResponse struct {
	Status     string     `json:"status"`
	Polling    bool       `json:"polling"`
	Credential auth.State `json:"credential"`
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status:     "ok",
		Polling:    s.service.PollingStatus().Running,
		Credential: s.service.CredentialState(),
	})
}

func (s *Server) getSites(w http.ResponseWriter, r *http.Request) {
	sites, err := s.service.GetSites(r.Context())
	if err != nil {
		s.writeServiceError(w, "list sites", err)
		return
	}

	if sites == nil {
		sites = []models.Site{}
	}

	writeJSON(w, http.StatusOK, sites)
}

func (s *Server) getSite(w http.ResponseWriter, r *http.Request) {
	site, err := s.service.GetSite(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeServiceError(w, "get site", err)
		return
	}

	writeJSON(w, http.StatusOK, site)
}

func (s *Server) setSecurityLevel(w http.ResponseWriter, r *http.Request) {
	var req securityLevelRequest

	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody)).Decode(&req); err != nil {
		writeError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	level, err := models.ParseSecurityLevel(req.SecurityLevel)
	if err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	siteID := mux.Vars(r)["id"]

	result, err := s.service.SetSecurityLevel(r.Context(), siteID, level)
	if err != nil {
		s.writeServiceError(w, "set security level", err)
		return
	}

	s.logger.Info().
		Str("site_id", siteID).
		Str("security_level", level.String()).
		Str("task_id", result.TaskID).
		Msg("Security level change accepted")

	writeJSON(w, http.StatusAccepted, result)
}

func (s *Server) getDevices(w http.ResponseWriter, r *http.Request) {
	devices, err := s.service.GetDevices(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeServiceError(w, "list devices", err)
		return
	}

	if devices == nil {
		devices = []models.Device{}
	}

	writeJSON(w, http.StatusOK, devices)
}

func (s *Server) clearCredential(w http.ResponseWriter, r *http.Request) {
	if err := s.service.ClearCredential(r.Context()); err != nil {
		s.writeServiceError(w, "clear credential", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) pollingStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.service.PollingStatus())
}

func (s *Server) startPolling(w http.ResponseWriter, _ *http.Request) {
	started := s.service.StartPolling()

	writeJSON(w, http.StatusOK, map[string]bool{"started": started})
}

func (s *Server) stopPolling(w http.ResponseWriter, r *http.Request) {
	if err := s.service.StopPolling(r.Context()); err != nil {
		s.writeServiceError(w, "stop polling", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"stopped": true})
}

func (s *Server) writeServiceError(w http.ResponseWriter, operation string, err error) {
	status := statusForError(err)

	event := s.logger.Warn()
	if status >= http.StatusInternalServerError {
		event = s.logger.Error()
	}

	event.Err(err).Str("operation", operation).Int("status", status).Msg("Admin request failed")

	writeError(w, err.Error(), status)
}

// statusForError maps a service error onto the response status. Failures
// of the remote service or of our credential surface as 502.
func statusForError(err error) int {
	var (
		remoteErr *api.RemoteAPIError
		netErr    *api.TransientNetworkError
	)

	switch {
	case errors.Is(err, api.ErrSiteIDRequired), errors.Is(err, models.ErrInvalidSecurityLevel):
		return http.StatusBadRequest
	case auth.IsAuthenticationError(err):
		return http.StatusBadGateway
	case errors.As(err, &remoteErr):
		if remoteErr.StatusCode >= http.StatusBadRequest && remoteErr.StatusCode < http.StatusInternalServerError &&
			remoteErr.StatusCode != http.StatusUnauthorized && remoteErr.StatusCode != http.StatusForbidden {
			return remoteErr.StatusCode
		}

		return http.StatusBadGateway
	case errors.As(err, &netErr):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
