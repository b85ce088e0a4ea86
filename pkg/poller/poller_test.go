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
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/carverauto/siteradar/pkg/clock"
	"github.com/carverauto/siteradar/pkg/logger"
	"github.com/carverauto/siteradar/pkg/models"
	"github.com/carverauto/siteradar/pkg/registry"
)

var errRegistryDown = errors.New("connection refused")

type testClock struct {
	clock      *clock.MockClock
	now        time.Time
	reads      atomic.Int64
	deviceTick chan time.Time
	healthTick chan time.Time
}

// next advances by a millisecond on every read so that a tick reading the
// clock more than once would be visible.
func (tc *testClock) next() time.Time {
	return tc.now.Add(time.Duration(tc.reads.Add(1)) * time.Millisecond)
}

func newTestClock(t *testing.T, ctrl *gomock.Controller, cfg *Config) *testClock {
	t.Helper()

	tc := &testClock{
		clock:      clock.NewMockClock(ctrl),
		now:        time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
		deviceTick: make(chan time.Time),
		healthTick: make(chan time.Time),
	}

	tc.clock.EXPECT().Now().DoAndReturn(tc.next).AnyTimes()
	tc.clock.EXPECT().Since(gomock.Any()).Return(time.Millisecond).AnyTimes()

	var deviceC, healthC <-chan time.Time = tc.deviceTick, tc.healthTick

	deviceTicker := clock.NewMockTicker(ctrl)
	deviceTicker.EXPECT().Chan().Return(deviceC).AnyTimes()
	deviceTicker.EXPECT().Stop().AnyTimes()

	healthTicker := clock.NewMockTicker(ctrl)
	healthTicker.EXPECT().Chan().Return(healthC).AnyTimes()
	healthTicker.EXPECT().Stop().AnyTimes()

	tc.clock.EXPECT().Ticker(time.Duration(cfg.DevicePollInterval)).Return(deviceTicker).AnyTimes()
	tc.clock.EXPECT().Ticker(time.Duration(cfg.HealthPollInterval)).Return(healthTicker).AnyTimes()

	return tc
}

type fakeAggregator struct {
	mu       sync.Mutex
	calls    int
	nows     map[time.Time]struct{}
	inFlight atomic.Int32
	maxSeen  atomic.Int32
	delay    time.Duration
	block    bool
	stale    atomic.Int64
}

func (f *fakeAggregator) SetStalenessThreshold(threshold time.Duration) {
	f.stale.Store(int64(threshold))
}

func (f *fakeAggregator) Aggregate(ctx context.Context, device *models.Device, now time.Time) models.DeviceView {
	cur := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)

	for {
		prev := f.maxSeen.Load()
		if cur <= prev || f.maxSeen.CompareAndSwap(prev, cur) {
			break
		}
	}

	if f.block {
		select {} // ignores cancellation on purpose
	}

	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
		}
	}

	f.mu.Lock()
	f.calls++
	if f.nows == nil {
		f.nows = make(map[time.Time]struct{})
	}
	f.nows[now] = struct{}{}
	f.mu.Unlock()

	view := models.NewDeviceView(device)
	view.ReportingOK = device.RegistryStatus == models.StatusOn

	return view
}

func (f *fakeAggregator) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.calls
}

func (f *fakeAggregator) nowCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return len(f.nows)
}

type fakeProber struct {
	runs     atomic.Int32
	mu       sync.Mutex
	timeouts []time.Duration
}

func (f *fakeProber) Run(_ context.Context, timeout time.Duration) []models.ServiceHealth {
	f.runs.Add(1)

	f.mu.Lock()
	f.timeouts = append(f.timeouts, timeout)
	f.mu.Unlock()

	return []models.ServiceHealth{
		{ServiceName: "influxdb", ServiceType: "http", OK: true},
		{ServiceName: "mqtt", ServiceType: "mqtt", OK: false},
	}
}

func testConfig() *Config {
	return &Config{
		DevicePollInterval: models.Duration(5 * time.Second),
		HealthPollInterval: models.Duration(15 * time.Second),
		DeviceTimeout:      models.Duration(time.Second),
		ProbeTimeout:       models.Duration(time.Second),
		StopTimeout:        models.Duration(2 * time.Second),
	}
}

func fleet() []models.Device {
	return []models.Device{
		{DeviceID: "KSAVE01", DisplayName: "Bangkok", RegistryStatus: models.StatusOn},
		{DeviceID: "KSAVE02", DisplayName: "Phuket", RegistryStatus: models.StatusOff},
		{DeviceID: "KSAVE03", DisplayName: "Krabi", RegistryStatus: models.StatusOn},
	}
}

func startPoller(t *testing.T, p *FleetPoller) {
	t.Helper()

	require.NoError(t, p.Start(context.Background()))
	t.Cleanup(func() { _ = p.Stop(context.Background()) })
}

func waitForRevision(t *testing.T, p *FleetPoller, rev uint64) *models.FleetSnapshot {
	t.Helper()

	require.Eventually(t, func() bool {
		s := p.Snapshot()
		return s != nil && s.Revision >= rev
	}, 2*time.Second, 5*time.Millisecond)

	return p.Snapshot()
}

func TestFleetPollerInitialPoll(t *testing.T) {
	ctrl := gomock.NewController(t)
	cfg := testConfig()
	tc := newTestClock(t, ctrl, cfg)

	reg, err := registry.NewStaticSource(fleet())
	require.NoError(t, err)

	agg := &fakeAggregator{}
	probes := &fakeProber{}

	p, err := New(cfg, reg, agg, probes, tc.clock, logger.NewTestLogger())
	require.NoError(t, err)
	assert.Nil(t, p.Snapshot())

	startPoller(t, p)

	snap := waitForRevision(t, p, 2)

	require.Len(t, snap.Devices, 3)
	assert.Equal(t, "KSAVE01", snap.Devices[0].DeviceID)
	assert.Equal(t, "KSAVE02", snap.Devices[1].DeviceID)
	assert.Equal(t, "KSAVE03", snap.Devices[2].DeviceID)
	assert.True(t, snap.RegistryAvailable)
	assert.True(t, snap.DevicesUpdatedAt.After(tc.now))

	require.Len(t, snap.Services, 2)
	assert.Equal(t, "influxdb", snap.Services[0].ServiceName)
	assert.Equal(t, "mqtt", snap.Services[1].ServiceName)

	agg.mu.Lock()
	require.Len(t, agg.nows, 1)
	assert.Contains(t, agg.nows, snap.DevicesUpdatedAt)
	agg.mu.Unlock()

	assert.ErrorIs(t, p.Start(context.Background()), errAlreadyStarted)
}

func TestFleetPollerTicks(t *testing.T) {
	ctrl := gomock.NewController(t)
	cfg := testConfig()
	tc := newTestClock(t, ctrl, cfg)

	reg, err := registry.NewStaticSource(fleet())
	require.NoError(t, err)

	agg := &fakeAggregator{}
	probes := &fakeProber{}

	p, err := New(cfg, reg, agg, probes, tc.clock, logger.NewTestLogger())
	require.NoError(t, err)

	startPoller(t, p)
	first := waitForRevision(t, p, 2)

	tc.deviceTick <- tc.now
	tc.healthTick <- tc.now

	waitForRevision(t, p, first.Revision+2)

	assert.Equal(t, 6, agg.callCount())
	assert.Equal(t, 2, agg.nowCount())
	assert.Equal(t, int32(2), probes.runs.Load())

	// the earlier snapshot is untouched by later publishes
	assert.Len(t, first.Devices, 3)
	assert.Len(t, first.Services, 2)
}

func TestFleetPollerRegistryOutageKeepsDevices(t *testing.T) {
	ctrl := gomock.NewController(t)
	cfg := testConfig()
	tc := newTestClock(t, ctrl, cfg)

	reg := registry.NewMockSource(ctrl)
	gomock.InOrder(
		reg.EXPECT().ListDevices(gomock.Any()).Return(fleet(), nil),
		reg.EXPECT().ListDevices(gomock.Any()).Return(nil, errRegistryDown),
	)

	agg := &fakeAggregator{}

	p, err := New(cfg, reg, agg, nil, tc.clock, logger.NewTestLogger())
	require.NoError(t, err)

	startPoller(t, p)

	first := waitForRevision(t, p, 1)
	assert.True(t, first.RegistryAvailable)

	tc.deviceTick <- tc.now

	second := waitForRevision(t, p, 2)

	assert.False(t, second.RegistryAvailable)
	require.Len(t, second.Devices, 3)
	assert.Equal(t, first.Devices, second.Devices)
	assert.Equal(t, 6, agg.callCount())
	assert.Equal(t, 2, agg.nowCount())
	assert.Nil(t, second.Services)
}

func TestFleetPollerRegistryDownFromStart(t *testing.T) {
	ctrl := gomock.NewController(t)
	cfg := testConfig()
	tc := newTestClock(t, ctrl, cfg)

	reg := registry.NewMockSource(ctrl)
	reg.EXPECT().ListDevices(gomock.Any()).Return(nil, errRegistryDown)

	agg := &fakeAggregator{}

	p, err := New(cfg, reg, agg, nil, tc.clock, logger.NewTestLogger())
	require.NoError(t, err)

	startPoller(t, p)

	snap := waitForRevision(t, p, 1)
	assert.False(t, snap.RegistryAvailable)
	assert.NotNil(t, snap.Devices)
	assert.Empty(t, snap.Devices)
	assert.Zero(t, agg.callCount())
}

func TestFleetPollerBoundsConcurrency(t *testing.T) {
	ctrl := gomock.NewController(t)
	cfg := testConfig()
	cfg.MaxConcurrency = 2
	tc := newTestClock(t, ctrl, cfg)

	devices := make([]models.Device, 0, 10)
	for _, id := range []string{"a", "b", "c", "d", "e", "f", "g", "h", "i", "j"} {
		devices = append(devices, models.Device{DeviceID: id, RegistryStatus: models.StatusOn})
	}

	reg, err := registry.NewStaticSource(devices)
	require.NoError(t, err)

	agg := &fakeAggregator{delay: 20 * time.Millisecond}

	p, err := New(cfg, reg, agg, nil, tc.clock, logger.NewTestLogger())
	require.NoError(t, err)

	startPoller(t, p)

	snap := waitForRevision(t, p, 1)
	require.Len(t, snap.Devices, 10)
	assert.LessOrEqual(t, agg.maxSeen.Load(), int32(2))
	assert.Equal(t, "a", snap.Devices[0].DeviceID)
	assert.Equal(t, "j", snap.Devices[9].DeviceID)
}

func TestFleetPollerPanickingAggregator(t *testing.T) {
	ctrl := gomock.NewController(t)
	cfg := testConfig()
	tc := newTestClock(t, ctrl, cfg)

	reg, err := registry.NewStaticSource(fleet())
	require.NoError(t, err)

	p, err := New(cfg, reg, panicAggregator{}, nil, tc.clock, logger.NewTestLogger())
	require.NoError(t, err)

	startPoller(t, p)

	snap := waitForRevision(t, p, 1)
	require.Len(t, snap.Devices, 3)

	assert.Equal(t, models.TelemetryNoData, snap.Devices[1].TelemetryState)
	assert.False(t, snap.Devices[1].ReportingOK)
	assert.Equal(t, models.StatusOff, snap.Devices[1].OnlineStatus)
	assert.True(t, snap.Devices[0].ReportingOK)
}

type panicAggregator struct{}

func (panicAggregator) Aggregate(_ context.Context, device *models.Device, _ time.Time) models.DeviceView {
	if device.DeviceID == "KSAVE02" {
		panic("bad device")
	}

	view := models.NewDeviceView(device)
	view.ReportingOK = true

	return view
}

func TestFleetPollerStopTimesOut(t *testing.T) {
	ctrl := gomock.NewController(t)
	cfg := testConfig()
	cfg.StopTimeout = models.Duration(50 * time.Millisecond)
	tc := newTestClock(t, ctrl, cfg)

	reg, err := registry.NewStaticSource(fleet())
	require.NoError(t, err)

	agg := &fakeAggregator{block: true}

	p, err := New(cfg, reg, agg, nil, tc.clock, logger.NewTestLogger())
	require.NoError(t, err)

	require.NoError(t, p.Start(context.Background()))

	require.Eventually(t, func() bool { return agg.inFlight.Load() > 0 }, time.Second, 5*time.Millisecond)

	start := time.Now()
	err = p.Stop(context.Background())

	require.ErrorIs(t, err, errStopTimeout)
	assert.Less(t, time.Since(start), time.Second)
	assert.Nil(t, p.Snapshot())
}

func TestFleetPollerStopCancelsSlowTick(t *testing.T) {
	ctrl := gomock.NewController(t)
	cfg := testConfig()
	tc := newTestClock(t, ctrl, cfg)

	reg, err := registry.NewStaticSource(fleet())
	require.NoError(t, err)

	agg := &fakeAggregator{delay: time.Minute}

	p, err := New(cfg, reg, agg, nil, tc.clock, logger.NewTestLogger())
	require.NoError(t, err)

	require.NoError(t, p.Start(context.Background()))
	require.Eventually(t, func() bool { return agg.inFlight.Load() > 0 }, time.Second, 5*time.Millisecond)

	require.NoError(t, p.Stop(context.Background()))
	assert.Nil(t, p.Snapshot())
	require.NoError(t, p.Stop(context.Background()))
}

func TestFleetPollerUpdateConfigReloadsTicker(t *testing.T) {
	ctrl := gomock.NewController(t)
	cfg := testConfig()
	tc := newTestClock(t, ctrl, cfg)

	reloaded := make(chan struct{})
	newTick := make(chan time.Time)

	var newC <-chan time.Time = newTick

	ticker := clock.NewMockTicker(ctrl)
	ticker.EXPECT().Chan().Return(newC).AnyTimes()
	ticker.EXPECT().Stop().AnyTimes()

	tc.clock.EXPECT().Ticker(2 * time.Second).DoAndReturn(func(time.Duration) clock.Ticker {
		close(reloaded)
		return ticker
	})

	reg, err := registry.NewStaticSource(fleet())
	require.NoError(t, err)

	agg := &fakeAggregator{}

	p, err := New(cfg, reg, agg, nil, tc.clock, logger.NewTestLogger())
	require.NoError(t, err)

	startPoller(t, p)
	waitForRevision(t, p, 1)

	updated := *cfg
	updated.DevicePollInterval = models.Duration(2 * time.Second)
	require.NoError(t, p.UpdateConfig(&updated))

	select {
	case <-reloaded:
	case <-time.After(2 * time.Second):
		t.Fatal("ticker was not rebuilt")
	}

	newTick <- tc.now

	waitForRevision(t, p, 2)

	bad := *cfg
	bad.DeviceTimeout = models.Duration(10 * time.Second)
	assert.ErrorIs(t, p.UpdateConfig(&bad), errTimeoutTooLong)
}

func TestFleetPollerUpdateConfigAppliesTimeoutsAndStaleness(t *testing.T) {
	ctrl := gomock.NewController(t)
	cfg := testConfig()
	tc := newTestClock(t, ctrl, cfg)

	reg, err := registry.NewStaticSource(fleet())
	require.NoError(t, err)

	agg := &fakeAggregator{}
	probes := &fakeProber{}

	p, err := New(cfg, reg, agg, probes, tc.clock, logger.NewTestLogger())
	require.NoError(t, err)

	startPoller(t, p)
	first := waitForRevision(t, p, 2)

	updated := *cfg
	updated.ProbeTimeout = models.Duration(4 * time.Second)
	updated.StalenessThreshold = models.Duration(30 * time.Second)
	require.NoError(t, p.UpdateConfig(&updated))

	assert.Equal(t, 30*time.Second, time.Duration(agg.stale.Load()))

	tc.healthTick <- tc.now
	waitForRevision(t, p, first.Revision+1)

	probes.mu.Lock()
	defer probes.mu.Unlock()

	require.Len(t, probes.timeouts, 2)
	assert.Equal(t, time.Second, probes.timeouts[0])
	assert.Equal(t, 4*time.Second, probes.timeouts[1])
}

func TestFleetPollerUpdateConfigKeepsUnchangedStaleness(t *testing.T) {
	ctrl := gomock.NewController(t)
	cfg := testConfig()
	tc := newTestClock(t, ctrl, cfg)

	reg, err := registry.NewStaticSource(fleet())
	require.NoError(t, err)

	agg := &fakeAggregator{}

	p, err := New(cfg, reg, agg, nil, tc.clock, logger.NewTestLogger())
	require.NoError(t, err)

	updated := *cfg
	updated.DeviceTimeout = models.Duration(2 * time.Second)
	require.NoError(t, p.UpdateConfig(&updated))

	assert.Zero(t, agg.stale.Load())
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := testConfig()
	cfg.ProbeTimeout = cfg.HealthPollInterval

	_, err := New(cfg, nil, nil, nil, nil, logger.NewTestLogger())
	require.ErrorIs(t, err, errTimeoutTooLong)
}
