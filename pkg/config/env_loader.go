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
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/carverauto/alarmbridge/pkg/logger"
	"github.com/carverauto/alarmbridge/pkg/models"
)

var (
	// ErrDstMustBeNonNilPointer indicates that the destination must be a non-nil pointer.
	ErrDstMustBeNonNilPointer = errors.New("dst must be a non-nil pointer")
	// ErrDstMustBePointerToStruct indicates that the destination must be a pointer to a struct.
	ErrDstMustBePointerToStruct = errors.New("dst must be a pointer to a struct")
)

var (
	durationType      = reflect.TypeOf(time.Duration(0))
	modelDurationType = reflect.TypeOf(models.Duration(0))
)

// EnvConfigLoader loads configuration from environment variables.
// Nested struct fields are joined with underscores, so with the prefix
// ALARMBRIDGE_ the variable ALARMBRIDGE_POLLING_INTERVAL maps to
// config.Polling.Interval.
type EnvConfigLoader struct {
	logger logger.Logger
	prefix string
}

// NewEnvConfigLoader creates a new environment variable config loader.
func NewEnvConfigLoader(log logger.Logger, prefix string) *EnvConfigLoader {
	return &EnvConfigLoader{
		logger: log,
		prefix: prefix,
	}
}

// Load implements ConfigLoader by reading from environment variables.
func (e *EnvConfigLoader) Load(_ context.Context, _ string, dst interface{}) error {
	if e.logger != nil {
		e.logger.Debug().Msg("Loading configuration from environment variables")
	}

	// A complete JSON document wins over individual variables.
	if jsonConfig := os.Getenv(e.prefix + "CONFIG_JSON"); jsonConfig != "" {
		if err := json.Unmarshal([]byte(jsonConfig), dst); err != nil {
			if e.logger != nil {
				e.logger.Error().Err(err).Msg("Failed to unmarshal CONFIG_JSON")
			}

			return fmt.Errorf("failed to unmarshal CONFIG_JSON: %w", err)
		}

		if e.logger != nil {
			e.logger.Info().Msg("Loaded configuration from CONFIG_JSON environment variable")
		}

		return nil
	}

	v := reflect.ValueOf(dst)
	if v.Kind() != reflect.Ptr || v.IsNil() {
		return ErrDstMustBeNonNilPointer
	}

	v = v.Elem()
	if v.Kind() != reflect.Struct {
		return ErrDstMustBePointerToStruct
	}

	e.loadStruct(v, e.prefix)

	if e.logger != nil {
		e.logger.Info().Msg("Successfully loaded configuration from environment variables")
	}

	return nil
}

// loadStruct recursively loads a struct from environment variables and
// reports whether any field was set.
func (e *EnvConfigLoader) loadStruct(v reflect.Value, prefix string) bool {
	t := v.Type()
	loaded := false

	for i := 0; i < t.NumField(); i++ {
		field := v.Field(i)
		fieldType := t.Field(i)

		if !field.CanSet() {
			continue
		}

		jsonTag := fieldType.Tag.Get("json")
		if jsonTag == "" || jsonTag == "-" {
			continue
		}

		fieldName := strings.Split(jsonTag, ",")[0]
		envName := e.buildEnvName(prefix, fieldName)

		set, err := e.setFieldValue(field, envName)
		if err != nil {
			if e.logger != nil {
				e.logger.Warn().
					Str("field", fieldName).
					Str("env", envName).
					Err(err).
					Msg("Failed to set field from environment variable")
			}

			continue
		}

		loaded = loaded || set
	}

	return loaded
}

// buildEnvName constructs the environment variable name from prefix and field name.
func (*EnvConfigLoader) buildEnvName(prefix, fieldName string) string {
	envName := strings.ToUpper(fieldName)
	envName = strings.ReplaceAll(envName, ".", "_")

	if prefix != "" {
		envName = prefix + envName
	}

	return envName
}

// setFieldValue sets a struct field value from an environment variable.
func (e *EnvConfigLoader) setFieldValue(field reflect.Value, envName string) (bool, error) {
	if isNestedStruct(field) {
		return e.loadNestedStruct(field, envName+"_"), nil
	}

	envValue, ok := os.LookupEnv(envName)
	if !ok || envValue == "" {
		return false, nil
	}

	if err := e.setFieldByKind(field, envName, envValue); err != nil {
		return false, err
	}

	if e.logger != nil {
		e.logger.Debug().
			Str("env", envName).
			Str("value", "[set]").
			Msg("Loaded value from environment variable")
	}

	return true, nil
}

func isNestedStruct(field reflect.Value) bool {
	switch field.Kind() {
	case reflect.Struct:
		return true
	case reflect.Ptr:
		return field.Type().Elem().Kind() == reflect.Struct
	default:
		return false
	}
}

// loadNestedStruct handles nested struct and pointer to struct types. A nil
// pointer is only allocated when at least one variable below it is set.
func (e *EnvConfigLoader) loadNestedStruct(field reflect.Value, prefix string) bool {
	if field.Kind() != reflect.Ptr {
		return e.loadStruct(field, prefix)
	}

	if !field.IsNil() {
		return e.loadStruct(field.Elem(), prefix)
	}

	fresh := reflect.New(field.Type().Elem())
	if !e.loadStruct(fresh.Elem(), prefix) {
		return false
	}

	field.Set(fresh)

	return true
}

// setFieldByKind sets field value based on its reflect.Kind.
func (e *EnvConfigLoader) setFieldByKind(field reflect.Value, envName, envValue string) error {
	switch field.Kind() {
	case reflect.String:
		field.SetString(envValue)

	case reflect.Bool:
		return setBoolField(field, envName, envValue)

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return setIntField(field, envName, envValue)

	case reflect.Float32, reflect.Float64:
		return setFloatField(field, envName, envValue)

	case reflect.Slice:
		return setSliceField(field, envName, envValue)

	case reflect.Ptr:
		if field.IsNil() {
			field.Set(reflect.New(field.Type().Elem()))
		}

		return e.setFieldByKind(field.Elem(), envName, envValue)

	default:
		return setJSONField(field, envName, envValue)
	}

	return nil
}

func setBoolField(field reflect.Value, envName, envValue string) error {
	b, err := strconv.ParseBool(envValue)
	if err != nil {
		return fmt.Errorf("invalid boolean value for %s: %w", envName, err)
	}

	field.SetBool(b)

	return nil
}

// setIntField sets an integer field value, parsing duration types with
// time.ParseDuration.
func setIntField(field reflect.Value, envName, envValue string) error {
	if field.Type() == durationType || field.Type() == modelDurationType {
		d, err := time.ParseDuration(envValue)
		if err != nil {
			return fmt.Errorf("invalid duration value for %s: %w", envName, err)
		}

		field.SetInt(int64(d))

		return nil
	}

	i, err := strconv.ParseInt(envValue, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid integer value for %s: %w", envName, err)
	}

	field.SetInt(i)

	return nil
}

func setFloatField(field reflect.Value, envName, envValue string) error {
	f, err := strconv.ParseFloat(envValue, 64)
	if err != nil {
		return fmt.Errorf("invalid float value for %s: %w", envName, err)
	}

	field.SetFloat(f)

	return nil
}

// setSliceField splits string slices on commas and decodes anything else as JSON.
func setSliceField(field reflect.Value, envName, envValue string) error {
	if field.Type().Elem().Kind() != reflect.String {
		return setJSONField(field, envName, envValue)
	}

	values := strings.Split(envValue, ",")
	slice := reflect.MakeSlice(field.Type(), len(values), len(values))

	for i, v := range values {
		slice.Index(i).SetString(strings.TrimSpace(v))
	}

	field.Set(slice)

	return nil
}

func setJSONField(field reflect.Value, envName, envValue string) error {
	if err := json.Unmarshal([]byte(envValue), field.Addr().Interface()); err != nil {
		return fmt.Errorf("unsupported value for %s (%s): %w", envName, field.Kind(), err)
	}

	return nil
}
