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

// Package credentials persists the cached bearer credential for one account.
package credentials

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/carverauto/alarmbridge/pkg/logger"
	"github.com/carverauto/alarmbridge/pkg/models"
)

const (
	credentialDirPerms  = 0o700
	credentialFilePerms = 0o600
)

var (
	ErrStorePathRequired  = errors.New("credential store path is required")
	errMissingAccessToken = errors.New("credential record has no access_token")
)

// Store persists a single credential record.
//
// Load never fails: unreadable or corrupt records are reported as absent.
// Save never fails either; persist errors are logged so that an in-flight
// authentication is not aborted by a broken disk.
type Store interface {
	Load(ctx context.Context) *models.Credential
	Save(ctx context.Context, credential *models.Credential)
	Clear(ctx context.Context) error
}

// FileStore keeps the credential record in one JSON file.
type FileStore struct {
	path   string
	logger logger.Logger
	mu     sync.Mutex
}

var _ Store = (*FileStore)(nil)

// NewFileStore constructs a file-backed credential store. The containing
// directory is created lazily on the first Save.
func NewFileStore(path string, log logger.Logger) (*FileStore, error) {
	if path == "" {
		return nil, ErrStorePathRequired
	}

	if log == nil {
		log = logger.NewTestLogger()
	}

	return &FileStore{
		path:   filepath.Clean(path),
		logger: log,
	}, nil
}

// Path returns the location of the backing file.
func (s *FileStore) Path() string {
	return s.path
}

// Load returns the persisted record, or nil when there is none or it cannot
// be used.
func (s *FileStore) Load(_ context.Context) *models.Credential {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			s.logger.Warn().Err(err).Str("path", s.path).Msg("Failed to read cached credential, ignoring it")
		}

		return nil
	}

	var credential models.Credential
	if err := json.Unmarshal(data, &credential); err != nil {
		s.logger.Warn().Err(err).Str("path", s.path).Msg("Cached credential is corrupt, ignoring it")

		return nil
	}

	if credential.AccessToken == "" {
		s.logger.Warn().Err(errMissingAccessToken).Str("path", s.path).Msg("Cached credential is corrupt, ignoring it")

		return nil
	}

	return &credential
}

// Save writes the record atomically, creating the directory if needed.
func (s *FileStore) Save(_ context.Context, credential *models.Credential) {
	if credential == nil {
		return
	}

	if err := s.write(credential); err != nil {
		s.logger.Error().Err(err).Str("path", s.path).Msg("Failed to persist credential")
	}
}

func (s *FileStore) write(credential *models.Credential) error {
	payload, err := json.MarshalIndent(credential, "", "  ")
	if err != nil {
		return fmt.Errorf("encode credential: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, credentialDirPerms); err != nil {
		return fmt.Errorf("create credential directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temporary credential file: %w", err)
	}

	tmpPath := tmp.Name()

	if _, err := tmp.Write(payload); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)

		return fmt.Errorf("write temporary credential file: %w", err)
	}

	if err := tmp.Chmod(credentialFilePerms); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)

		return fmt.Errorf("chmod temporary credential file: %w", err)
	}

	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)

		return fmt.Errorf("close temporary credential file: %w", err)
	}

	if err := os.Rename(tmpPath, s.path); err != nil {
		_ = os.Remove(tmpPath)

		return fmt.Errorf("persist credential: %w", err)
	}

	return nil
}

// Clear removes the backing file. A missing file is not an error.
func (s *FileStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove credential file: %w", err)
	}

	return nil
}
