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
	"fmt"
	"strings"
	"time"

	"github.com/carverauto/siteradar/pkg/models"
)

const (
	defaultTable   = "devices"
	defaultTimeout = 3 * time.Second
)

// Config selects the registry backend: a PostgreSQL table or a static list.
type Config struct {
	CNPG    *models.CNPGDatabase `json:"cnpg,omitempty"`
	Table   string               `json:"table,omitempty"`
	Timeout models.Duration      `json:"timeout,omitempty"`
	Devices []models.Device      `json:"devices,omitempty"`
}

// Validate implements config.Validator and fills defaults.
func (c *Config) Validate() error {
	switch {
	case c.CNPG == nil && len(c.Devices) == 0:
		return errNoSource
	case c.CNPG != nil && len(c.Devices) > 0:
		return errBothSources
	}

	if c.Table == "" {
		c.Table = defaultTable
	}

	if c.Timeout <= 0 {
		c.Timeout = models.Duration(defaultTimeout)
	}

	return validateDevices(c.Devices)
}

func validateDevices(devices []models.Device) error {
	seen := make(map[string]struct{}, len(devices))

	for i := range devices {
		id := strings.TrimSpace(devices[i].DeviceID)
		if id == "" {
			return fmt.Errorf("%w: devices[%d]", errEmptyDeviceID, i)
		}

		if _, dup := seen[id]; dup {
			return fmt.Errorf("%w: %s", errDuplicateDeviceID, id)
		}

		seen[id] = struct{}{}
	}

	return nil
}
