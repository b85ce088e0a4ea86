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

package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDurationUnmarshalJSON(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    time.Duration
		wantErr bool
	}{
		{name: "string", input: `"5s"`, want: 5 * time.Second},
		{name: "minutes", input: `"1m30s"`, want: 90 * time.Second},
		{name: "nanoseconds", input: `1000000000`, want: time.Second},
		{name: "bad string", input: `"soon"`, wantErr: true},
		{name: "bool", input: `true`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var d Duration

			err := json.Unmarshal([]byte(tt.input), &d)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, time.Duration(d))
		})
	}
}

func TestDurationMarshalJSONRoundTrip(t *testing.T) {
	in := struct {
		Interval Duration `json:"interval"`
	}{Interval: Duration(15 * time.Second)}

	data, err := json.Marshal(in)
	require.NoError(t, err)
	assert.JSONEq(t, `{"interval":"15s"}`, string(data))
}

func TestParseRegistryStatus(t *testing.T) {
	assert.Equal(t, StatusOn, ParseRegistryStatus("ON"))
	assert.Equal(t, StatusOn, ParseRegistryStatus(" on "))
	assert.Equal(t, StatusOn, ParseRegistryStatus("1"))
	assert.Equal(t, StatusOn, ParseRegistryStatus("active"))
	assert.Equal(t, StatusOff, ParseRegistryStatus("OFF"))
	assert.Equal(t, StatusOff, ParseRegistryStatus(""))
	assert.Equal(t, StatusOff, ParseRegistryStatus("maintenance"))
}

func TestDeviceViewRendersAbsentNumbersAsNull(t *testing.T) {
	view := DeviceView{DeviceID: "KSAVE01", OnlineStatus: StatusOn, TelemetryState: TelemetryNoData}

	data, err := json.Marshal(view)
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &decoded))

	assert.Nil(t, decoded["power_value"])
	assert.Contains(t, decoded, "power_value")
	assert.Nil(t, decoded["seconds_since_last_sample"])
	assert.Equal(t, "no data", decoded["telemetry_state"])
}

func TestFleetSnapshotDevice(t *testing.T) {
	snap := &FleetSnapshot{Devices: []DeviceView{{DeviceID: "a"}, {DeviceID: "b"}}}

	v, ok := snap.Device("b")
	require.True(t, ok)
	assert.Equal(t, "b", v.DeviceID)

	_, ok = snap.Device("c")
	assert.False(t, ok)

	var nilSnap *FleetSnapshot
	_, ok = nilSnap.Device("a")
	assert.False(t, ok)
}
