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

package identity

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	meterName             = "siteradar.identity"
	metricGeneratedTotal  = "identity_generated_total"
	metricAdoptedTotal    = "identity_adopted_total"
	metricConflictTotal   = "identity_conflict_total"
	metricStoreErrorTotal = "identity_store_error_total"
)

//nolint:gochecknoglobals // metrics instruments are shared across the process intentionally
var (
	meterOnce         sync.Once
	generatedCounter  metric.Int64Counter
	adoptedCounter    metric.Int64Counter
	conflictCounter   metric.Int64Counter
	storeErrorCounter metric.Int64Counter
)

func initMeter() {
	meter := otel.Meter(meterName)

	generatedCounter = newCounter(meter, metricGeneratedTotal, "Synthetic series numbers generated")
	adoptedCounter = newCounter(meter, metricAdoptedTotal, "Series numbers taken from telemetry")
	conflictCounter = newCounter(meter, metricConflictTotal, "Create-if-absent races lost to another writer")
	storeErrorCounter = newCounter(meter, metricStoreErrorTotal, "Identity store operations that failed")
}

func newCounter(meter metric.Meter, name, description string) metric.Int64Counter {
	counter, err := meter.Int64Counter(name, metric.WithDescription(description))
	if err != nil {
		otel.Handle(err)
	}

	return counter
}

func recordGenerated(ctx context.Context, persisted bool) {
	meterOnce.Do(initMeter)

	if generatedCounter == nil {
		return
	}

	generatedCounter.Add(ctx, 1, metric.WithAttributes(attribute.Bool("persisted", persisted)))
}

func recordAdopted(ctx context.Context) {
	meterOnce.Do(initMeter)

	if adoptedCounter == nil {
		return
	}

	adoptedCounter.Add(ctx, 1)
}

func recordConflict(ctx context.Context) {
	meterOnce.Do(initMeter)

	if conflictCounter == nil {
		return
	}

	conflictCounter.Add(ctx, 1)
}

func recordStoreError(ctx context.Context, op string) {
	meterOnce.Do(initMeter)

	if storeErrorCounter == nil {
		return
	}

	storeErrorCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("op", op)))
}
