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

package registry

import (
	"context"

	"github.com/carverauto/siteradar/pkg/models"
)

// StaticSource serves a device list fixed at startup.
type StaticSource struct {
	devices []models.Device
}

var _ Source = (*StaticSource)(nil)

// NewStaticSource copies devices and normalises their status values.
func NewStaticSource(devices []models.Device) (*StaticSource, error) {
	if err := validateDevices(devices); err != nil {
		return nil, err
	}

	out := make([]models.Device, len(devices))
	copy(out, devices)

	for i := range out {
		out[i].RegistryStatus = models.ParseRegistryStatus(string(out[i].RegistryStatus))
	}

	return &StaticSource{devices: out}, nil
}

// ListDevices implements Source. Callers get their own copy.
func (s *StaticSource) ListDevices(_ context.Context) ([]models.Device, error) {
	out := make([]models.Device, len(s.devices))
	copy(out, s.devices)

	return out, nil
}
