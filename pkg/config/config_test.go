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
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carverauto/alarmbridge/pkg/logger"
	"github.com/carverauto/alarmbridge/pkg/models"
)

var errMissingUser = errors.New("username is required")

type testAccount struct {
	Username string `json:"username"`
	Password string `json:"password" sensitive:"true"`
}

type testTLS struct {
	CAFile string `json:"ca_file"`
}

type testConfig struct {
	Account  testAccount       `json:"account"`
	Interval models.Duration   `json:"interval"`
	Timeout  time.Duration     `json:"-"`
	Retries  int               `json:"retries"`
	Adaptive *bool             `json:"adaptive,omitempty"`
	Rate     float64           `json:"rate"`
	Scopes   []string          `json:"scopes"`
	Headers  map[string]string `json:"headers"`
	TLS      *testTLS          `json:"tls,omitempty"`
}

func (c *testConfig) Validate() error {
	if c.Account.Username == "" {
		return errMissingUser
	}

	return nil
}

func writeConfigFile(t *testing.T, body string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "alarmbridge.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	return path
}

func TestFileConfigLoader(t *testing.T) {
	path := writeConfigFile(t, `{
		"account": {"username": "ops@example.com", "password": "hunter2"},
		"interval": "45s",
		"retries": 5,
		"adaptive": false
	}`)

	cfg := testConfig{Retries: 3}
	require.NoError(t, (&FileConfigLoader{}).Load(context.Background(), path, &cfg))

	assert.Equal(t, "ops@example.com", cfg.Account.Username)
	assert.Equal(t, models.Duration(45*time.Second), cfg.Interval)
	assert.Equal(t, 5, cfg.Retries)
	require.NotNil(t, cfg.Adaptive)
	assert.False(t, *cfg.Adaptive)
}

func TestFileConfigLoader_Errors(t *testing.T) {
	var cfg testConfig

	err := (&FileConfigLoader{}).Load(context.Background(), filepath.Join(t.TempDir(), "missing.json"), &cfg)
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)

	path := writeConfigFile(t, `{"account": `)
	require.Error(t, (&FileConfigLoader{}).Load(context.Background(), path, &cfg))

	path = writeConfigFile(t, `{"account": {"username": "a"}, "intervall": "5s"}`)
	err = (&FileConfigLoader{}).Load(context.Background(), path, &cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "intervall")

	path = writeConfigFile(t, `{"retries": 1} {"retries": 2}`)
	err = (&FileConfigLoader{}).Load(context.Background(), path, &cfg)
	require.ErrorIs(t, err, errTrailingData)
}

func TestEnvConfigLoader(t *testing.T) {
	t.Setenv("TEST_ACCOUNT_USERNAME", "env-user")
	t.Setenv("TEST_ACCOUNT_PASSWORD", "env-pass")
	t.Setenv("TEST_INTERVAL", "2m")
	t.Setenv("TEST_RETRIES", "7")
	t.Setenv("TEST_ADAPTIVE", "true")
	t.Setenv("TEST_RATE", "2.5")
	t.Setenv("TEST_SCOPES", "sites, devices")
	t.Setenv("TEST_HEADERS", `{"x-tenant":"acme"}`)

	var cfg testConfig

	loader := NewEnvConfigLoader(logger.NewTestLogger(), "TEST_")
	require.NoError(t, loader.Load(context.Background(), "", &cfg))

	assert.Equal(t, "env-user", cfg.Account.Username)
	assert.Equal(t, "env-pass", cfg.Account.Password)
	assert.Equal(t, models.Duration(2*time.Minute), cfg.Interval)
	assert.Equal(t, 7, cfg.Retries)
	require.NotNil(t, cfg.Adaptive)
	assert.True(t, *cfg.Adaptive)
	assert.InDelta(t, 2.5, cfg.Rate, 0.0001)
	assert.Equal(t, []string{"sites", "devices"}, cfg.Scopes)
	assert.Equal(t, map[string]string{"x-tenant": "acme"}, cfg.Headers)
	assert.Nil(t, cfg.TLS, "untouched pointer structs stay nil")
}

func TestEnvConfigLoader_NestedPointer(t *testing.T) {
	t.Setenv("TEST_TLS_CA_FILE", "/etc/ca.pem")

	var cfg testConfig
	require.NoError(t, NewEnvConfigLoader(nil, "TEST_").Load(context.Background(), "", &cfg))

	require.NotNil(t, cfg.TLS)
	assert.Equal(t, "/etc/ca.pem", cfg.TLS.CAFile)
}

func TestEnvConfigLoader_InvalidValueKeepsDefault(t *testing.T) {
	t.Setenv("TEST_RETRIES", "many")

	cfg := testConfig{Retries: 3}
	require.NoError(t, NewEnvConfigLoader(nil, "TEST_").Load(context.Background(), "", &cfg))

	assert.Equal(t, 3, cfg.Retries)
}

func TestEnvConfigLoader_ConfigJSON(t *testing.T) {
	t.Setenv("TEST_CONFIG_JSON", `{"account":{"username":"json-user"},"interval":"10s"}`)
	t.Setenv("TEST_ACCOUNT_USERNAME", "ignored")

	var cfg testConfig
	require.NoError(t, NewEnvConfigLoader(nil, "TEST_").Load(context.Background(), "", &cfg))

	assert.Equal(t, "json-user", cfg.Account.Username)
	assert.Equal(t, models.Duration(10*time.Second), cfg.Interval)
}

func TestEnvConfigLoader_RejectsNonPointer(t *testing.T) {
	loader := NewEnvConfigLoader(nil, "TEST_")

	require.ErrorIs(t, loader.Load(context.Background(), "", testConfig{}), ErrDstMustBeNonNilPointer)

	s := "not a struct"
	require.ErrorIs(t, loader.Load(context.Background(), "", &s), ErrDstMustBePointerToStruct)
}

func TestLoadAndValidate(t *testing.T) {
	t.Setenv("CONFIG_SOURCE", "")

	path := writeConfigFile(t, `{"account": {"username": "ops@example.com"}}`)

	var cfg testConfig
	require.NoError(t, NewConfig(nil).LoadAndValidate(context.Background(), path, &cfg))
	assert.Equal(t, "ops@example.com", cfg.Account.Username)

	invalid := writeConfigFile(t, `{"retries": 1}`)
	err := NewConfig(nil).LoadAndValidate(context.Background(), invalid, &testConfig{})
	require.ErrorIs(t, err, errMissingUser)
}

func TestLoadAndValidate_EnvSource(t *testing.T) {
	t.Setenv("CONFIG_SOURCE", "env")
	t.Setenv("CONFIG_ENV_PREFIX", "")
	t.Setenv("ALARMBRIDGE_ACCOUNT_USERNAME", "from-env")

	var cfg testConfig
	require.NoError(t, NewConfig(nil).LoadAndValidate(context.Background(), "/does/not/exist.json", &cfg))
	assert.Equal(t, "from-env", cfg.Account.Username)
}

func TestLoadAndValidate_UnknownSource(t *testing.T) {
	t.Setenv("CONFIG_SOURCE", "consul")

	err := NewConfig(nil).LoadAndValidate(context.Background(), "", &testConfig{})
	require.ErrorIs(t, err, errInvalidConfigSource)
}

func TestRedact(t *testing.T) {
	adaptive := true
	cfg := &testConfig{
		Account:  testAccount{Username: "ops@example.com", Password: "hunter2"},
		Interval: models.Duration(time.Minute),
		Adaptive: &adaptive,
	}

	out := Redact(cfg)

	account, ok := out["account"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "ops@example.com", account["username"])
	assert.Equal(t, "[redacted]", account["password"])
	assert.Equal(t, "1m0s", out["interval"])
	assert.Equal(t, true, out["adaptive"])
	assert.NotContains(t, out, "Timeout")

	empty := Redact(&testConfig{})
	assert.NotContains(t, empty["account"], "password", "empty secrets are omitted")
}
