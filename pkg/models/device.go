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
	"strings"
	"time"
)

// RegistryStatus is the administrative on/off state recorded in the device registry.
type RegistryStatus string

const (
	StatusOn  RegistryStatus = "ON"
	StatusOff RegistryStatus = "OFF"
)

// UnknownLocation is rendered when neither telemetry nor the registry knows where a device is.
const UnknownLocation = "unknown"

// TelemetryState summarises the telemetry axis of a DeviceView for display.
type TelemetryState string

const (
	TelemetryReporting TelemetryState = "reporting"
	TelemetryStale     TelemetryState = "stale"
	TelemetryNoData    TelemetryState = "no data"
)

// ParseRegistryStatus normalises the values registries use for the on/off flag.
func ParseRegistryStatus(raw string) RegistryStatus {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "on", "1", "true", "active", "enabled":
		return StatusOn
	default:
		return StatusOff
	}
}

// Device is the semi-static record owned by the device registry.
type Device struct {
	DeviceID       string         `json:"device_id"`
	DisplayName    string         `json:"display_name"`
	IPAddress      string         `json:"ip_address,omitempty"`
	Location       string         `json:"location,omitempty"`
	BeforeMeterNo  string         `json:"before_meter_no,omitempty"`
	MetricsMeterNo string         `json:"metrics_meter_no,omitempty"`
	ContactPhone   string         `json:"contact_phone,omitempty"`
	RegistryStatus RegistryStatus `json:"registry_status"`
}

// TelemetrySample is the latest reading the time-series backend holds for a device.
// Empty strings and a nil PowerValue mean the backend did not supply the field.
type TelemetrySample struct {
	DeviceID   string          `json:"device_id"`
	ObservedAt time.Time       `json:"observed_at"`
	PowerValue *float64        `json:"power_value"`
	SeriesName string          `json:"series_name,omitempty"`
	SeriesNo   string          `json:"series_no,omitempty"`
	Location   string          `json:"location,omitempty"`
	Raw        json.RawMessage `json:"raw,omitempty"`
}

// DeviceView is the merged, display-ready status of one device for one poll tick.
// It is built once per tick and never modified after it has been published.
type DeviceView struct {
	DeviceID               string         `json:"device_id"`
	DisplayName            string         `json:"display_name"`
	IPAddress              string         `json:"ip_address,omitempty"`
	BeforeMeterNo          string         `json:"before_meter_no,omitempty"`
	MetricsMeterNo         string         `json:"metrics_meter_no,omitempty"`
	ContactPhone           string         `json:"contact_phone,omitempty"`
	ResolvedLocation       string         `json:"location"`
	ResolvedSeriesName     string         `json:"series_name"`
	ResolvedSeriesNo       string         `json:"series_no"`
	PowerValue             *float64       `json:"power_value"`
	SecondsSinceLastSample *float64       `json:"seconds_since_last_sample"`
	ReportingOK            bool           `json:"reporting_ok"`
	OnlineStatus           RegistryStatus `json:"online_status"`
	TelemetryState         TelemetryState `json:"telemetry_state"`
}

// NewDeviceView returns the view of d with no telemetry applied: location
// and series name fall back to registry values and the telemetry state is
// "no data".
func NewDeviceView(d *Device) DeviceView {
	view := DeviceView{
		DeviceID:           d.DeviceID,
		DisplayName:        d.DisplayName,
		IPAddress:          d.IPAddress,
		BeforeMeterNo:      d.BeforeMeterNo,
		MetricsMeterNo:     d.MetricsMeterNo,
		ContactPhone:       d.ContactPhone,
		ResolvedLocation:   d.Location,
		ResolvedSeriesName: d.DisplayName,
		OnlineStatus:       d.RegistryStatus,
		TelemetryState:     TelemetryNoData,
	}

	if view.ResolvedLocation == "" {
		view.ResolvedLocation = UnknownLocation
	}

	if view.ResolvedSeriesName == "" {
		view.ResolvedSeriesName = d.DeviceID
	}

	return view
}
