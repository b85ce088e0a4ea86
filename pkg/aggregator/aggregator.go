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

package aggregator

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/carverauto/siteradar/pkg/logger"
	"github.com/carverauto/siteradar/pkg/models"
	"github.com/carverauto/siteradar/pkg/telemetry"
)

const (
	defaultStalenessThreshold = 10 * time.Second
	defaultIdentityTimeout    = time.Second
)

// IdentityResolver hands out the series number for a device.
type IdentityResolver interface {
	Ensure(ctx context.Context, deviceID, fromTelemetry string) string
}

// Option customises the behaviour of the Aggregator.
type Option func(*Aggregator)

// Aggregator merges registry, telemetry and identity data into DeviceViews.
type Aggregator struct {
	telemetry telemetry.Source
	identity  IdentityResolver
	logger    logger.Logger
	threshold atomic.Int64

	// identityTimeout bounds series number resolution independently of the
	// caller's deadline, which telemetry may already have used up.
	identityTimeout time.Duration
}

// New constructs an Aggregator reading from src and resolving series numbers through ids.
func New(src telemetry.Source, ids IdentityResolver, log logger.Logger, opts ...Option) *Aggregator {
	agg := &Aggregator{
		telemetry: src,
		identity:  ids,
		logger:    log,

		identityTimeout: defaultIdentityTimeout,
	}

	agg.threshold.Store(int64(defaultStalenessThreshold))

	for _, opt := range opts {
		if opt != nil {
			opt(agg)
		}
	}

	return agg
}

// WithStalenessThreshold overrides the age at which a sample stops counting as reporting.
func WithStalenessThreshold(threshold time.Duration) Option {
	return func(a *Aggregator) {
		a.SetStalenessThreshold(threshold)
	}
}

// WithIdentityTimeout overrides how long series number resolution may take.
func WithIdentityTimeout(timeout time.Duration) Option {
	return func(a *Aggregator) {
		if timeout > 0 {
			a.identityTimeout = timeout
		}
	}
}

// StalenessThreshold returns the configured threshold.
func (a *Aggregator) StalenessThreshold() time.Duration {
	return time.Duration(a.threshold.Load())
}

// SetStalenessThreshold replaces the threshold for subsequent Aggregate
// calls. Non-positive values are ignored.
func (a *Aggregator) SetStalenessThreshold(threshold time.Duration) {
	if threshold > 0 {
		a.threshold.Store(int64(threshold))
	}
}

// Aggregate builds the view of one device as of now. It never fails: an
// unavailable or misbehaving telemetry source yields a view with no
// telemetry-derived values.
func (a *Aggregator) Aggregate(ctx context.Context, device *models.Device, now time.Time) models.DeviceView {
	sample := a.latest(ctx, device.DeviceID)

	view := models.NewDeviceView(device)

	if sample != nil && sample.Location != "" {
		view.ResolvedLocation = sample.Location
	}

	if sample != nil && sample.SeriesName != "" {
		view.ResolvedSeriesName = sample.SeriesName
	}

	var fromTelemetry string
	if sample != nil {
		fromTelemetry = sample.SeriesNo
	}

	view.ResolvedSeriesNo = a.ensure(ctx, device.DeviceID, fromTelemetry)

	if sample == nil {
		return view
	}

	view.PowerValue = sample.PowerValue

	age := now.Sub(sample.ObservedAt)
	if age < 0 {
		age = 0
	}

	seconds := age.Seconds()
	view.SecondsSinceLastSample = &seconds
	view.ReportingOK = age < a.StalenessThreshold()

	if view.ReportingOK {
		view.TelemetryState = models.TelemetryReporting
	} else {
		view.TelemetryState = models.TelemetryStale
	}

	return view
}

// latest returns the device's sample, or nil when there is none to use.
func (a *Aggregator) latest(ctx context.Context, deviceID string) (sample *models.TelemetrySample) {
	defer func() {
		if r := recover(); r != nil {
			a.logger.Error().
				Str("device_id", deviceID).
				Interface("panic", r).
				Msg("Telemetry source panicked, treating as unavailable")

			sample = nil
		}
	}()

	res := a.telemetry.Latest(ctx, deviceID)

	switch res.Status {
	case telemetry.StatusOK:
		return res.Sample
	case telemetry.StatusNotFound:
		a.logger.Debug().Str("device_id", deviceID).Msg("No telemetry for device")
	case telemetry.StatusUnavailable:
		a.logger.Warn().Err(res.Err).Str("device_id", deviceID).Msg("Telemetry unavailable")
	}

	return nil
}

func (a *Aggregator) ensure(ctx context.Context, deviceID, fromTelemetry string) (value string) {
	defer func() {
		if r := recover(); r != nil {
			a.logger.Error().
				Str("device_id", deviceID).
				Interface("panic", r).
				Msg("Identity resolver panicked")

			value = fromTelemetry
		}
	}()

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.identityTimeout)
	defer cancel()

	return a.identity.Ensure(ctx, deviceID, fromTelemetry)
}
