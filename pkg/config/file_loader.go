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

package config

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

var errTrailingData = errors.New("unexpected data after the top-level object")

// FileConfigLoader loads configuration from a local JSON file. Unknown keys
// are rejected so a misspelled option fails startup instead of silently
// falling back to its default.
type FileConfigLoader struct{}

// Load decodes the file at path into dst. Fields absent from the file keep
// whatever value dst already holds.
func (*FileConfigLoader) Load(_ context.Context, path string, dst interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read file '%s': %w", path, err)
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("failed to decode config '%s': %w", path, err)
	}

	if dec.More() {
		return fmt.Errorf("config '%s': %w", path, errTrailingData)
	}

	return nil
}
