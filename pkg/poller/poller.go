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
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/carverauto/siteradar/pkg/clock"
	"github.com/carverauto/siteradar/pkg/logger"
	"github.com/carverauto/siteradar/pkg/models"
	"github.com/carverauto/siteradar/pkg/registry"
)

const tracerName = "siteradar.poller"

// DeviceAggregator builds the view of one device as of now.
type DeviceAggregator interface {
	Aggregate(ctx context.Context, device *models.Device, now time.Time) models.DeviceView
}

// HealthProber runs the configured health probes, bounding each by timeout.
type HealthProber interface {
	Run(ctx context.Context, timeout time.Duration) []models.ServiceHealth
}

// StalenessSetter is implemented by aggregators whose staleness threshold
// can change while running.
type StalenessSetter interface {
	SetStalenessThreshold(threshold time.Duration)
}

// FleetPoller drives the device and health loops and publishes the
// resulting FleetSnapshot.
type FleetPoller struct {
	registry   registry.Source
	aggregator DeviceAggregator
	probes     HealthProber
	clock      clock.Clock
	logger     logger.Logger
	tracer     trace.Tracer
	snapshots  *snapshotHolder

	mu      sync.RWMutex
	config  Config
	started bool
	cancel  context.CancelFunc

	// lastDevices is only touched by the device loop.
	lastDevices []models.Device

	done         chan struct{}
	closeOnce    sync.Once
	wg           sync.WaitGroup
	deviceReload chan time.Duration
	healthReload chan time.Duration
}

// New creates a FleetPoller. probes may be nil, in which case the health
// loop is not run.
func New(
	config *Config,
	reg registry.Source,
	agg DeviceAggregator,
	probes HealthProber,
	clk clock.Clock,
	log logger.Logger,
) (*FleetPoller, error) {
	cfg := *config
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid poller config: %w", err)
	}

	if clk == nil {
		clk = clock.Real()
	}

	return &FleetPoller{
		registry:     reg,
		aggregator:   agg,
		probes:       probes,
		clock:        clk,
		logger:       log,
		tracer:       logger.GetTracer(tracerName),
		snapshots:    newSnapshotHolder(),
		config:       cfg,
		done:         make(chan struct{}),
		deviceReload: make(chan time.Duration, 1),
		healthReload: make(chan time.Duration, 1),
	}, nil
}

// Start implements the lifecycle.Service interface. It polls once per loop
// right away and then on every tick until Stop is called or ctx ends.
func (p *FleetPoller) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.started {
		return errAlreadyStarted
	}

	p.started = true

	loopCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel

	p.logger.Info().
		Dur("device_interval", time.Duration(p.config.DevicePollInterval)).
		Dur("health_interval", time.Duration(p.config.HealthPollInterval)).
		Int("max_concurrency", p.config.MaxConcurrency).
		Msg("Starting fleet poller")

	p.wg.Add(1)

	go p.loop(loopCtx, loopDevices, time.Duration(p.config.DevicePollInterval), p.deviceReload, p.pollDevices)

	if p.probes != nil {
		p.wg.Add(1)

		go p.loop(loopCtx, loopServices, time.Duration(p.config.HealthPollInterval), p.healthReload, p.pollServices)
	}

	return nil
}

// Stop implements the lifecycle.Service interface. No new tick starts after
// it is called, in-flight work is cancelled, and it waits at most
// stop_timeout for the loops to return.
func (p *FleetPoller) Stop(ctx context.Context) error {
	p.closeOnce.Do(func() {
		close(p.done)
	})

	p.mu.RLock()
	cancel := p.cancel
	timeout := time.Duration(p.config.StopTimeout)
	p.mu.RUnlock()

	if cancel != nil {
		cancel()
	}

	ctx, cancelWait := context.WithTimeout(ctx, timeout)
	defer cancelWait()

	finished := make(chan struct{})

	go func() {
		p.wg.Wait()
		close(finished)
	}()

	select {
	case <-finished:
		p.logger.Info().Msg("Fleet poller stopped")

		return nil
	case <-ctx.Done():
		return fmt.Errorf("%w: %w", errStopTimeout, ctx.Err())
	}
}

// Snapshot returns the latest published snapshot, or nil before the first
// publish. The returned value must not be modified.
func (p *FleetPoller) Snapshot() *models.FleetSnapshot {
	return p.snapshots.load()
}

// UpdateConfig applies a new configuration. Interval changes are picked up
// by the running loops without a restart; timeouts and concurrency apply
// from the next tick. A changed staleness threshold is pushed to the
// aggregator when it implements StalenessSetter.
func (p *FleetPoller) UpdateConfig(config *Config) error {
	cfg := *config
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid poller config: %w", err)
	}

	p.mu.Lock()
	prev := p.config
	p.config = cfg
	p.mu.Unlock()

	if cfg.DevicePollInterval != prev.DevicePollInterval {
		signalReload(p.deviceReload, time.Duration(cfg.DevicePollInterval))
	}

	if cfg.HealthPollInterval != prev.HealthPollInterval {
		signalReload(p.healthReload, time.Duration(cfg.HealthPollInterval))
	}

	if setter, ok := p.aggregator.(StalenessSetter); ok && cfg.Staleness() != prev.Staleness() {
		setter.SetStalenessThreshold(cfg.Staleness())
	}

	return nil
}

func (p *FleetPoller) currentConfig() Config {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return p.config
}

// signalReload replaces any pending interval with d.
func signalReload(ch chan time.Duration, d time.Duration) {
	for {
		select {
		case ch <- d:
			return
		default:
		}

		select {
		case <-ch:
		default:
		}
	}
}

// loop runs poll once, then once per tick. Ticks are handled one at a time,
// so a slow poll delays the next one instead of overlapping it.
func (p *FleetPoller) loop(
	ctx context.Context,
	name string,
	interval time.Duration,
	reload <-chan time.Duration,
	poll func(context.Context),
) {
	defer p.wg.Done()

	ticker := p.clock.Ticker(interval)

	defer func() {
		ticker.Stop()
	}()

	poll(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.done:
			return
		case <-ticker.Chan():
			if p.stopping() {
				return
			}

			poll(ctx)
		case next := <-reload:
			ticker.Stop()
			ticker = p.clock.Ticker(next)

			p.logger.Info().Str("loop", name).Dur("interval", next).Msg("Poll interval hot-reloaded")
		}
	}
}

func (p *FleetPoller) stopping() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}

func (p *FleetPoller) pollDevices(ctx context.Context) {
	cfg := p.currentConfig()
	start := p.clock.Now()

	ctx, span := p.tracer.Start(ctx, "poller.devices",
		trace.WithAttributes(attribute.String("tick_id", uuid.NewString())))
	defer span.End()

	devices, err := p.listDevices(ctx)
	registryAvailable := err == nil

	if registryAvailable {
		p.lastDevices = devices
	} else {
		recordRegistryFailure(ctx)
		span.RecordError(err)
		span.SetStatus(codes.Error, "registry unavailable")

		p.logger.Warn().Err(err).Int("known_devices", len(p.lastDevices)).
			Msg("Registry unavailable, re-aggregating last known devices")

		devices = p.lastDevices
	}

	now := p.clock.Now()

	var views []models.DeviceView

	if !registryAvailable && devices == nil {
		views = []models.DeviceView{}
		if prev := p.snapshots.load(); prev != nil {
			views = prev.Devices
		}
	} else {
		views = p.aggregateAll(ctx, &cfg, devices, now)
	}

	if ctx.Err() != nil {
		p.logger.Debug().Msg("Device tick cancelled before publish")

		return
	}

	p.snapshots.publishDevices(views, registryAvailable, now)

	reporting := 0

	for i := range views {
		if views[i].ReportingOK {
			reporting++
		}
	}

	span.SetAttributes(attribute.Int("devices", len(views)), attribute.Int("reporting", reporting))
	recordDevicesReporting(ctx, reporting)
	recordTick(ctx, loopDevices, p.clock.Since(start))

	p.logger.Debug().
		Int("devices", len(views)).
		Int("reporting", reporting).
		Bool("registry_available", registryAvailable).
		Msg("Published device views")
}

func (p *FleetPoller) listDevices(ctx context.Context) (devices []models.Device, err error) {
	defer func() {
		if r := recover(); r != nil {
			devices, err = nil, fmt.Errorf("%w: %v", errRegistryPanic, r)
		}
	}()

	return p.registry.ListDevices(ctx)
}

// aggregateAll builds one view per device with bounded concurrency. Every
// device sees the same now and views keep registry order.
func (p *FleetPoller) aggregateAll(ctx context.Context, cfg *Config, devices []models.Device, now time.Time) []models.DeviceView {
	views := make([]models.DeviceView, len(devices))
	timeout := time.Duration(cfg.DeviceTimeout)

	var g errgroup.Group

	g.SetLimit(cfg.MaxConcurrency)

	for i := range devices {
		g.Go(func() error {
			views[i] = p.aggregateOne(ctx, &devices[i], now, timeout)

			return nil
		})
	}

	_ = g.Wait()

	return views
}

func (p *FleetPoller) aggregateOne(ctx context.Context, device *models.Device, now time.Time, timeout time.Duration) (view models.DeviceView) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			p.logger.Error().Str("device_id", device.DeviceID).Interface("panic", r).Msg("Device aggregation panicked")

			view = models.NewDeviceView(device)
		}
	}()

	return p.aggregator.Aggregate(ctx, device, now)
}

func (p *FleetPoller) pollServices(ctx context.Context) {
	start := p.clock.Now()

	ctx, span := p.tracer.Start(ctx, "poller.services",
		trace.WithAttributes(attribute.String("tick_id", uuid.NewString())))
	defer span.End()

	results := p.probes.Run(ctx, time.Duration(p.currentConfig().ProbeTimeout))

	if ctx.Err() != nil {
		p.logger.Debug().Msg("Health tick cancelled before publish")

		return
	}

	p.snapshots.publishServices(results, p.clock.Now())

	healthy := 0

	for i := range results {
		if results[i].OK {
			healthy++
		}
	}

	span.SetAttributes(attribute.Int("services", len(results)), attribute.Int("healthy", healthy))
	recordServicesHealthy(ctx, healthy)
	recordTick(ctx, loopServices, p.clock.Since(start))

	p.logger.Debug().Int("services", len(results)).Int("healthy", healthy).Msg("Published service health")
}
