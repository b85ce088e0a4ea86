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
	"time"
)

// ServiceHealth is the outcome of one infrastructure health probe.
type ServiceHealth struct {
	ServiceName  string          `json:"service_name"`
	ServiceType  string          `json:"service_type"`
	OK           bool            `json:"ok"`
	Detail       json.RawMessage `json:"detail,omitempty"`
	ResponseTime time.Duration   `json:"response_time"`
	CheckedAt    time.Time       `json:"checked_at"`
}

// FleetSnapshot is the immutable bundle handed to the presentation layer.
// Devices keep registry order and Services keep probe configuration order.
type FleetSnapshot struct {
	Revision          uint64          `json:"revision"`
	Timestamp         time.Time       `json:"timestamp"`
	Devices           []DeviceView    `json:"devices"`
	Services          []ServiceHealth `json:"services"`
	DevicesUpdatedAt  time.Time       `json:"devices_updated_at"`
	ServicesUpdatedAt time.Time       `json:"services_updated_at"`
	RegistryAvailable bool            `json:"registry_available"`
}

// Device returns the view for deviceID, if present in the snapshot.
func (s *FleetSnapshot) Device(deviceID string) (DeviceView, bool) {
	if s == nil {
		return DeviceView{}, false
	}

	for i := range s.Devices {
		if s.Devices[i].DeviceID == deviceID {
			return s.Devices[i], true
		}
	}

	return DeviceView{}, false
}
