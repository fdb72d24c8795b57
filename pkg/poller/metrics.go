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

package poller

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	meterName = "github.com/carverauto/alarmbridge/pkg/poller"

	metricTicks           = "alarmbridge.poller.ticks"
	metricErrors          = "alarmbridge.poller.errors"
	metricCadenceSwitches = "alarmbridge.poller.cadence_switches"
)

type instruments struct {
	ticks    metric.Int64Counter
	errors   metric.Int64Counter
	switches metric.Int64Counter
}

func newInstruments(provider metric.MeterProvider) *instruments {
	meter := provider.Meter(meterName)
	inst := &instruments{}

	var err error

	inst.ticks, err = meter.Int64Counter(metricTicks, metric.WithDescription("Polling cycles run"))
	if err != nil {
		otel.Handle(err)
	}

	inst.errors, err = meter.Int64Counter(metricErrors, metric.WithDescription("Site fetches that failed during a polling cycle"))
	if err != nil {
		otel.Handle(err)
	}

	inst.switches, err = meter.Int64Counter(metricCadenceSwitches, metric.WithDescription("Polling cadence changes"))
	if err != nil {
		otel.Handle(err)
	}

	return inst
}

func (i *instruments) tick(ctx context.Context, cadence Cadence) {
	if i.ticks != nil {
		i.ticks.Add(ctx, 1, metric.WithAttributes(attribute.String("cadence", string(cadence))))
	}
}

func (i *instruments) failure(ctx context.Context, operation string) {
	if i.errors != nil {
		i.errors.Add(ctx, 1, metric.WithAttributes(attribute.String("operation", operation)))
	}
}

func (i *instruments) cadenceSwitch(ctx context.Context, to Cadence) {
	if i.switches != nil {
		i.switches.Add(ctx, 1, metric.WithAttributes(attribute.String("cadence", string(to))))
	}
}
