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
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carverauto/siteradar/pkg/models"
)

func TestConfigDefaults(t *testing.T) {
	var cfg Config
	require.NoError(t, cfg.Validate())

	assert.Equal(t, models.Duration(5*time.Second), cfg.DevicePollInterval)
	assert.Equal(t, models.Duration(15*time.Second), cfg.HealthPollInterval)
	assert.Equal(t, models.Duration(3*time.Second), cfg.DeviceTimeout)
	assert.Equal(t, models.Duration(3*time.Second), cfg.ProbeTimeout)
	assert.Equal(t, models.Duration(10*time.Second), cfg.StopTimeout)
	assert.Equal(t, 8, cfg.MaxConcurrency)
	assert.Equal(t, 10*time.Second, cfg.Staleness())
}

func TestConfigFromJSON(t *testing.T) {
	raw := `{
		"device_poll_interval": "10s",
		"health_poll_interval": "30s",
		"device_timeout": "4s",
		"probe_timeout": "5s",
		"sample_interval": "15s",
		"staleness_intervals": 3,
		"max_concurrency": 16
	}`

	var cfg Config
	require.NoError(t, json.Unmarshal([]byte(raw), &cfg))
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 45*time.Second, cfg.Staleness())
	assert.Equal(t, 16, cfg.MaxConcurrency)

	cfg.StalenessThreshold = models.Duration(20 * time.Second)
	assert.Equal(t, 20*time.Second, cfg.Staleness())
}

func TestConfigValidationErrors(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		want error
	}{
		{
			name: "device timeout equals interval",
			cfg:  Config{DevicePollInterval: models.Duration(3 * time.Second)},
			want: errTimeoutTooLong,
		},
		{
			name: "probe timeout longer than interval",
			cfg:  Config{HealthPollInterval: models.Duration(time.Second), ProbeTimeout: models.Duration(2 * time.Second)},
			want: errTimeoutTooLong,
		},
		{
			name: "negative duration",
			cfg:  Config{SampleInterval: models.Duration(-time.Second)},
			want: errNegativeDuration,
		},
		{
			name: "negative staleness intervals",
			cfg:  Config{StalenessIntervals: -1},
			want: errInvalidStaleness,
		},
		{
			name: "negative concurrency",
			cfg:  Config{MaxConcurrency: -2},
			want: errInvalidConcurrency,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.cfg.Validate(), tt.want)
		})
	}
}
