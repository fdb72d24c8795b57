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
	"reflect"
	"strings"
)

const redacted = "[redacted]"

// Redact converts a configuration struct into a generic map suitable for
// logging, replacing non-empty fields tagged `sensitive:"true"` with a
// placeholder.
func Redact(cfg interface{}) map[string]interface{} {
	if out, ok := redactValue(reflect.ValueOf(cfg)).(map[string]interface{}); ok {
		return out
	}

	return map[string]interface{}{}
}

func redactValue(rv reflect.Value) interface{} {
	for rv.Kind() == reflect.Ptr || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return nil
		}

		rv = rv.Elem()
	}

	switch rv.Kind() {
	case reflect.Struct:
		return redactStruct(rv)
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return rv.Interface()
		}

		out := make(map[string]interface{}, rv.Len())

		iter := rv.MapRange()
		for iter.Next() {
			out[iter.Key().String()] = redactValue(iter.Value())
		}

		return out
	case reflect.Slice, reflect.Array:
		out := make([]interface{}, rv.Len())

		for i := 0; i < rv.Len(); i++ {
			out[i] = redactValue(rv.Index(i))
		}

		return out
	case reflect.Invalid:
		return nil
	default:
		if s, ok := rv.Interface().(interface{ String() string }); ok && rv.Kind() == reflect.Int64 {
			return s.String()
		}

		return rv.Interface()
	}
}

func redactStruct(rv reflect.Value) map[string]interface{} {
	rt := rv.Type()
	out := make(map[string]interface{}, rt.NumField())

	for i := 0; i < rt.NumField(); i++ {
		field := rt.Field(i)
		if !field.IsExported() {
			continue
		}

		name := field.Name

		if tag := field.Tag.Get("json"); tag != "" {
			if tag == "-" {
				continue
			}

			if parts := strings.Split(tag, ","); parts[0] != "" {
				name = parts[0]
			}
		}

		value := rv.Field(i)

		if field.Tag.Get("sensitive") == "true" {
			if !value.IsZero() {
				out[name] = redacted
			}

			continue
		}

		out[name] = redactValue(value)
	}

	return out
}
