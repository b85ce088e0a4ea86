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
	"fmt"
	"time"

	"github.com/carverauto/siteradar/pkg/models"
)

const (
	defaultDevicePollInterval = 5 * time.Second
	defaultHealthPollInterval = 15 * time.Second
	defaultSampleInterval     = 5 * time.Second
	defaultStalenessIntervals = 2
	defaultDeviceTimeout      = 3 * time.Second
	defaultProbeTimeout       = 3 * time.Second
	defaultMaxConcurrency     = 8
	defaultStopTimeout        = 10 * time.Second
)

// Config controls the two poll loops.
type Config struct {
	DevicePollInterval models.Duration `json:"device_poll_interval" hot:"reload"`
	HealthPollInterval models.Duration `json:"health_poll_interval" hot:"reload"`
	DeviceTimeout      models.Duration `json:"device_timeout"`
	ProbeTimeout       models.Duration `json:"probe_timeout"`
	// StalenessThreshold wins over SampleInterval*StalenessIntervals when set.
	StalenessThreshold models.Duration `json:"staleness_threshold,omitempty"`
	SampleInterval     models.Duration `json:"sample_interval"`
	StalenessIntervals int             `json:"staleness_intervals"`
	MaxConcurrency     int             `json:"max_concurrency"`
	StopTimeout        models.Duration `json:"stop_timeout"`
}

// Validate implements config.Validator. Zero values are replaced by defaults
// and every per-call timeout must be shorter than the loop that owns it.
func (c *Config) Validate() error {
	setDefault(&c.DevicePollInterval, defaultDevicePollInterval)
	setDefault(&c.HealthPollInterval, defaultHealthPollInterval)
	setDefault(&c.DeviceTimeout, defaultDeviceTimeout)
	setDefault(&c.ProbeTimeout, defaultProbeTimeout)
	setDefault(&c.SampleInterval, defaultSampleInterval)
	setDefault(&c.StopTimeout, defaultStopTimeout)

	if c.StalenessIntervals == 0 {
		c.StalenessIntervals = defaultStalenessIntervals
	}

	if c.MaxConcurrency == 0 {
		c.MaxConcurrency = defaultMaxConcurrency
	}

	for name, d := range map[string]models.Duration{
		"device_poll_interval": c.DevicePollInterval,
		"health_poll_interval": c.HealthPollInterval,
		"device_timeout":       c.DeviceTimeout,
		"probe_timeout":        c.ProbeTimeout,
		"sample_interval":      c.SampleInterval,
		"stop_timeout":         c.StopTimeout,
		"staleness_threshold":  c.StalenessThreshold,
	} {
		if d < 0 {
			return fmt.Errorf("%w: %s", errNegativeDuration, name)
		}
	}

	if c.StalenessIntervals < 0 {
		return fmt.Errorf("%w: staleness_intervals=%d", errInvalidStaleness, c.StalenessIntervals)
	}

	if c.MaxConcurrency < 0 {
		return fmt.Errorf("%w: %d", errInvalidConcurrency, c.MaxConcurrency)
	}

	if c.DeviceTimeout >= c.DevicePollInterval {
		return fmt.Errorf("%w: device_timeout %s >= device_poll_interval %s",
			errTimeoutTooLong, time.Duration(c.DeviceTimeout), time.Duration(c.DevicePollInterval))
	}

	if c.ProbeTimeout >= c.HealthPollInterval {
		return fmt.Errorf("%w: probe_timeout %s >= health_poll_interval %s",
			errTimeoutTooLong, time.Duration(c.ProbeTimeout), time.Duration(c.HealthPollInterval))
	}

	return nil
}

// Staleness returns the age at which a sample no longer counts as reporting.
func (c *Config) Staleness() time.Duration {
	if c.StalenessThreshold > 0 {
		return time.Duration(c.StalenessThreshold)
	}

	return time.Duration(c.SampleInterval) * time.Duration(c.StalenessIntervals)
}

func setDefault(d *models.Duration, def time.Duration) {
	if *d == 0 {
		*d = models.Duration(def)
	}
}
