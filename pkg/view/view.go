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

// Package view projects fleet snapshots into filtered, sorted device lists
// for the presentation layer.
package view

import (
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/carverauto/siteradar/pkg/models"
)

// SortMode selects the ordering of projected devices.
type SortMode string

const (
	SortRegistry    SortMode = "registry"
	SortPowerAsc    SortMode = "power_asc"
	SortPowerDesc   SortMode = "power_desc"
	SortDeviceIDAsc SortMode = "device_id"
)

// All disables the location or status filter.
const All = "All"

var (
	errInvalidStatus = errors.New("invalid status filter")
	errInvalidSort   = errors.New("invalid sort mode")
)

// Criteria is the user-selected filter and sort.
type Criteria struct {
	// Location matches ResolvedLocation exactly. Empty or All matches everything.
	Location string
	// Status is All, ON or OFF. Empty means All.
	Status string
	Sort   SortMode
}

// ParseCriteria reads location, status and sort from query values.
func ParseCriteria(values url.Values) (Criteria, error) {
	c := Criteria{
		Location: strings.TrimSpace(values.Get("location")),
		Status:   All,
		Sort:     SortRegistry,
	}

	if raw := strings.TrimSpace(values.Get("status")); raw != "" && !strings.EqualFold(raw, All) {
		switch status := models.RegistryStatus(strings.ToUpper(raw)); status {
		case models.StatusOn, models.StatusOff:
			c.Status = string(status)
		default:
			return Criteria{}, fmt.Errorf("%w: %q", errInvalidStatus, raw)
		}
	}

	if raw := strings.TrimSpace(values.Get("sort")); raw != "" {
		mode := SortMode(strings.ToLower(raw))

		switch mode {
		case SortRegistry, SortPowerAsc, SortPowerDesc, SortDeviceIDAsc:
			c.Sort = mode
		default:
			return Criteria{}, fmt.Errorf("%w: %q", errInvalidSort, raw)
		}
	}

	return c, nil
}

// Project returns the snapshot's devices that match c, in c's order. The
// result is a fresh slice; the snapshot is never modified. Ties keep
// registry order.
func Project(snapshot *models.FleetSnapshot, c Criteria) []models.DeviceView {
	if snapshot == nil {
		return []models.DeviceView{}
	}

	out := make([]models.DeviceView, 0, len(snapshot.Devices))

	for i := range snapshot.Devices {
		if c.matches(&snapshot.Devices[i]) {
			out = append(out, snapshot.Devices[i])
		}
	}

	switch c.Sort {
	case SortPowerAsc:
		sort.SliceStable(out, func(i, j int) bool { return powerLess(out[i].PowerValue, out[j].PowerValue, false) })
	case SortPowerDesc:
		sort.SliceStable(out, func(i, j int) bool { return powerLess(out[i].PowerValue, out[j].PowerValue, true) })
	case SortDeviceIDAsc:
		sort.SliceStable(out, func(i, j int) bool { return deviceNumber(out[i].DeviceID) < deviceNumber(out[j].DeviceID) })
	case SortRegistry, "":
	}

	return out
}

// Locations returns the distinct resolved locations in the snapshot, sorted.
func Locations(snapshot *models.FleetSnapshot) []string {
	if snapshot == nil {
		return []string{}
	}

	seen := make(map[string]struct{}, len(snapshot.Devices))
	out := make([]string, 0, len(snapshot.Devices))

	for i := range snapshot.Devices {
		loc := snapshot.Devices[i].ResolvedLocation
		if _, ok := seen[loc]; ok {
			continue
		}

		seen[loc] = struct{}{}
		out = append(out, loc)
	}

	sort.Strings(out)

	return out
}

func (c *Criteria) matches(v *models.DeviceView) bool {
	if c.Location != "" && c.Location != All && v.ResolvedLocation != c.Location {
		return false
	}

	if c.Status != "" && c.Status != All && string(v.OnlineStatus) != c.Status {
		return false
	}

	return true
}

// powerLess orders present values before absent ones in both directions.
func powerLess(a, b *float64, desc bool) bool {
	switch {
	case a == nil:
		return false
	case b == nil:
		return true
	case desc:
		return *a > *b
	default:
		return *a < *b
	}
}

// deviceNumber returns the trailing digits of id as a number, or 0.
func deviceNumber(id string) int64 {
	end := len(id)
	start := end

	for start > 0 && id[start-1] >= '0' && id[start-1] <= '9' {
		start--
	}

	if start == end {
		return 0
	}

	n, err := strconv.ParseInt(id[start:end], 10, 64)
	if err != nil {
		return 0
	}

	return n
}
