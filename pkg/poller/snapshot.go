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
	"sync"
	"sync/atomic"
	"time"

	"github.com/carverauto/siteradar/pkg/models"
)

// snapshotHolder publishes FleetSnapshots copy-on-write. Readers load the
// pointer without locking; writers serialise on mu and always store a new value.
type snapshotHolder struct {
	mu      sync.Mutex
	current atomic.Pointer[models.FleetSnapshot]
}

func newSnapshotHolder() *snapshotHolder {
	return &snapshotHolder{}
}

func (h *snapshotHolder) load() *models.FleetSnapshot {
	return h.current.Load()
}

func (h *snapshotHolder) publishDevices(devices []models.DeviceView, registryAvailable bool, at time.Time) *models.FleetSnapshot {
	return h.update(at, func(next *models.FleetSnapshot) {
		next.Devices = devices
		next.DevicesUpdatedAt = at
		next.RegistryAvailable = registryAvailable
	})
}

func (h *snapshotHolder) publishServices(services []models.ServiceHealth, at time.Time) *models.FleetSnapshot {
	return h.update(at, func(next *models.FleetSnapshot) {
		next.Services = services
		next.ServicesUpdatedAt = at
	})
}

func (h *snapshotHolder) update(at time.Time, apply func(*models.FleetSnapshot)) *models.FleetSnapshot {
	h.mu.Lock()
	defer h.mu.Unlock()

	next := &models.FleetSnapshot{}
	if prev := h.current.Load(); prev != nil {
		*next = *prev
	}

	apply(next)

	next.Revision++
	next.Timestamp = at

	h.current.Store(next)

	return next
}
