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
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	meterName = "siteradar.poller"

	metricTicksTotal            = "poller_ticks_total"
	metricTickDuration          = "poller_tick_duration_seconds"
	metricRegistryFailuresTotal = "poller_registry_failures_total"
	metricDevicesReporting      = "poller_devices_reporting"
	metricServicesHealthy       = "poller_services_healthy"

	loopDevices  = "devices"
	loopServices = "services"
)

//nolint:gochecknoglobals // metrics instruments are shared across the process intentionally
var (
	meterOnce              sync.Once
	ticksCounter           metric.Int64Counter
	tickDurationHistogram  metric.Float64Histogram
	registryFailureCounter metric.Int64Counter
	devicesReportingGauge  metric.Int64Gauge
	servicesHealthyGauge   metric.Int64Gauge
)

func initMeter() {
	meter := otel.Meter(meterName)

	var err error

	ticksCounter, err = meter.Int64Counter(metricTicksTotal,
		metric.WithDescription("Poll ticks completed per loop"))
	if err != nil {
		otel.Handle(err)
	}

	tickDurationHistogram, err = meter.Float64Histogram(metricTickDuration,
		metric.WithDescription("Wall time spent in one poll tick"),
		metric.WithUnit("s"))
	if err != nil {
		otel.Handle(err)
	}

	registryFailureCounter, err = meter.Int64Counter(metricRegistryFailuresTotal,
		metric.WithDescription("Device loop ticks where the registry was unavailable"))
	if err != nil {
		otel.Handle(err)
	}

	devicesReportingGauge, err = meter.Int64Gauge(metricDevicesReporting,
		metric.WithDescription("Devices with a fresh telemetry sample in the latest snapshot"))
	if err != nil {
		otel.Handle(err)
	}

	servicesHealthyGauge, err = meter.Int64Gauge(metricServicesHealthy,
		metric.WithDescription("Health probes reporting OK in the latest snapshot"))
	if err != nil {
		otel.Handle(err)
	}
}

func recordTick(ctx context.Context, loop string, elapsed time.Duration) {
	meterOnce.Do(initMeter)

	attrs := metric.WithAttributes(attribute.String("loop", loop))

	if ticksCounter != nil {
		ticksCounter.Add(ctx, 1, attrs)
	}

	if tickDurationHistogram != nil {
		tickDurationHistogram.Record(ctx, elapsed.Seconds(), attrs)
	}
}

func recordRegistryFailure(ctx context.Context) {
	meterOnce.Do(initMeter)

	if registryFailureCounter != nil {
		registryFailureCounter.Add(ctx, 1)
	}
}

func recordDevicesReporting(ctx context.Context, reporting int) {
	meterOnce.Do(initMeter)

	if devicesReportingGauge != nil {
		devicesReportingGauge.Record(ctx, int64(reporting))
	}
}

func recordServicesHealthy(ctx context.Context, healthy int) {
	meterOnce.Do(initMeter)

	if servicesHealthyGauge != nil {
		servicesHealthyGauge.Record(ctx, int64(healthy))
	}
}
