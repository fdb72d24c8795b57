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

// Package admin serves the operator HTTP endpoint for an alarmbridge account.
package admin

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/carverauto/alarmbridge/pkg/logger"
	"github.com/carverauto/alarmbridge/pkg/models"
)

const (
	defaultReadTimeout     = 10 * time.Second
	defaultWriteTimeout    = 2 * time.Minute
	defaultIdleTimeout     = 60 * time.Second
	defaultShutdownTimeout = 10 * time.Second
	maxRequestBody         = 1 << 20
)

var errAPIKeyRequired = errors.New("admin API key is required")

// Server exposes site queries, security level changes and polling controls.
type Server struct {
	router  *mux.Router
	service Service
	apiKey  string
	logger  logger.Logger
}

// NewServer builds the router. Every /api route requires apiKey.
func NewServer(service Service, apiKey string, log logger.Logger) (*Server, error) {
	if apiKey == "" {
		return nil, errAPIKeyRequired
	}

	if log == nil {
		log = logger.NewTestLogger()
	}

	s := &Server{
		router:  mux.NewRouter(),
		service: service,
		apiKey:  apiKey,
		logger:  log,
	}

	s.setupRoutes()

	return s, nil
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) setupRoutes() {
	s.router.Use(s.loggingMiddleware)
	s.router.NotFoundHandler = http.HandlerFunc(notFound)
	s.router.MethodNotAllowedHandler = http.HandlerFunc(methodNotAllowed)

	s.router.HandleFunc("/healthz", s.health).Methods(http.MethodGet)

	// API routes sit on the root router so a method mismatch on one path is
	// not masked by a later route sharing the /api prefix.
	protected := []struct {
		path    string
		method  string
		handler http.HandlerFunc
	}{
		{"/api/sites", http.MethodGet, s.getSites},
		{"/api/sites/{id}", http.MethodGet, s.getSite},
		{"/api/sites/{id}/security-level", http.MethodPut, s.setSecurityLevel},
		{"/api/sites/{id}/devices", http.MethodGet, s.getDevices},
		{"/api/credential/clear", http.MethodPost, s.clearCredential},
		{"/api/polling", http.MethodGet, s.pollingStatus},
		{"/api/polling/start", http.MethodPost, s.startPolling},
		{"/api/polling/stop", http.MethodPost, s.stopPolling},
	}

	for _, route := range protected {
		s.router.Handle(route.path, s.apiKeyMiddleware(route.handler)).Methods(route.method)
	}
}

// ListenAndServe serves on addr until ctx is canceled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  defaultReadTimeout,
		WriteTimeout: defaultWriteTimeout,
		IdleTimeout:  defaultIdleTimeout,
	}

	errCh := make(chan error, 1)

	go func() {
		s.logger.Info().Str("addr", addr).Msg("Admin endpoint listening")

		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}

		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), defaultShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}

	s.logger.Info().Msg("Admin endpoint stopped")

	return nil
}

func (s *Server) apiKeyMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Header.Get("X-API-Key")
		if key == "" {
			key = r.URL.Query().Get("api_key")
		}

		if subtle.ConstantTimeCompare([]byte(key), []byte(s.apiKey)) != 1 {
			s.logger.Warn().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Str("remote_addr", r.RemoteAddr).
				Msg("Unauthorized admin request")

			writeError(w, "Unauthorized", http.StatusUnauthorized)

			return
		}

		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		s.logger.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rec.status).
			Dur("elapsed", time.Since(start)).
			Msg("Admin request")
	})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}

func notFound(w http.ResponseWriter, _ *http.Request) {
	writeError(w, "Not found", http.StatusNotFound)
}

func methodNotAllowed(w http.ResponseWriter, _ *http.Request) {
	writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
}

func writeError(w http.ResponseWriter, message string, statusCode int) {
	writeJSON(w, statusCode, models.ErrorResponse{
		Message: message,
		Status:  statusCode,
	})
}
