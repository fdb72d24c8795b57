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
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	meterName = "github.com/carverauto/alarmbridge/pkg/api"

	metricRequests = "alarmbridge.api.requests"
	metricRetries  = "alarmbridge.api.retries"
	metricDuration = "alarmbridge.api.duration"
)

type instruments struct {
	requests metric.Int64Counter
	retries  metric.Int64Counter
	duration metric.Float64Histogram
}

func newInstruments(provider metric.MeterProvider) *instruments {
	meter := provider.Meter(meterName)
	inst := &instruments{}

	var err error

	inst.requests, err = meter.Int64Counter(
		metricRequests,
		metric.WithDescription("Remote API operations by outcome"),
	)
	if err != nil {
		otel.Handle(err)
	}

	inst.retries, err = meter.Int64Counter(
		metricRetries,
		metric.WithDescription("Remote API attempts that were retried"),
	)
	if err != nil {
		otel.Handle(err)
	}

	inst.duration, err = meter.Float64Histogram(
		metricDuration,
		metric.WithDescription("Remote API operation latency including retries"),
		metric.WithUnit("s"),
	)
	if err != nil {
		otel.Handle(err)
	}

	return inst
}

func (i *instruments) recordRetry(ctx context.Context, operation string) {
	if i.retries == nil {
		return
	}

	i.retries.Add(ctx, 1, metric.WithAttributes(attribute.String("operation", operation)))
}

func (i *instruments) recordResult(ctx context.Context, operation string, status int, elapsed time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String("operation", operation),
		attribute.String("status_class", statusClass(status)),
	)

	if i.requests != nil {
		i.requests.Add(ctx, 1, attrs)
	}

	if i.duration != nil {
		i.duration.Record(ctx, elapsed.Seconds(), attrs)
	}
}

func statusClass(status int) string {
	if status <= 0 {
		return "error"
	}

	return fmt.Sprintf("%dxx", status/100)
}
