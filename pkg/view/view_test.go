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

package view

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carverauto/siteradar/pkg/models"
)

func power(v float64) *float64 { return &v }

func ids(views []models.DeviceView) []string {
	out := make([]string, len(views))
	for i := range views {
		out[i] = views[i].DeviceID
	}

	return out
}

func testSnapshot() *models.FleetSnapshot {
	return &models.FleetSnapshot{
		Devices: []models.DeviceView{
			{DeviceID: "KSAVE10", ResolvedLocation: "Bangkok", OnlineStatus: models.StatusOn},
			{DeviceID: "KSAVE02", ResolvedLocation: "Phuket", OnlineStatus: models.StatusOff, PowerValue: power(5)},
			{DeviceID: "KSAVE03", ResolvedLocation: "Bangkok", OnlineStatus: models.StatusOn, PowerValue: power(2)},
			{DeviceID: "site-a", ResolvedLocation: models.UnknownLocation, OnlineStatus: models.StatusOff},
		},
	}
}

func TestProjectPowerSortNullsLast(t *testing.T) {
	snap := &models.FleetSnapshot{Devices: []models.DeviceView{
		{DeviceID: "a"},
		{DeviceID: "b", PowerValue: power(5)},
		{DeviceID: "c", PowerValue: power(2)},
	}}

	asc := Project(snap, Criteria{Sort: SortPowerAsc})
	assert.Equal(t, []string{"c", "b", "a"}, ids(asc))

	desc := Project(snap, Criteria{Sort: SortPowerDesc})
	assert.Equal(t, []string{"b", "c", "a"}, ids(desc))

	// the snapshot keeps its order
	assert.Equal(t, []string{"a", "b", "c"}, ids(snap.Devices))
}

func TestProjectFilters(t *testing.T) {
	snap := testSnapshot()

	tests := []struct {
		name     string
		criteria Criteria
		want     []string
	}{
		{name: "no filter", criteria: Criteria{}, want: []string{"KSAVE10", "KSAVE02", "KSAVE03", "site-a"}},
		{name: "all", criteria: Criteria{Location: All, Status: All}, want: []string{"KSAVE10", "KSAVE02", "KSAVE03", "site-a"}},
		{name: "location", criteria: Criteria{Location: "Bangkok"}, want: []string{"KSAVE10", "KSAVE03"}},
		{name: "status off", criteria: Criteria{Status: "OFF"}, want: []string{"KSAVE02", "site-a"}},
		{name: "location and status", criteria: Criteria{Location: "Bangkok", Status: "OFF"}, want: []string{}},
		{name: "device id order", criteria: Criteria{Sort: SortDeviceIDAsc}, want: []string{"site-a", "KSAVE02", "KSAVE03", "KSAVE10"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Project(snap, tt.criteria)
			assert.Equal(t, tt.want, ids(got))

			for _, v := range got {
				if tt.criteria.Location != "" && tt.criteria.Location != All {
					assert.Equal(t, tt.criteria.Location, v.ResolvedLocation)
				}
			}
		})
	}
}

func TestProjectIsIdempotent(t *testing.T) {
	snap := testSnapshot()
	c := Criteria{Location: "Bangkok", Sort: SortPowerDesc}

	first := Project(snap, c)
	second := Project(snap, c)

	assert.Equal(t, first, second)

	first[0].DeviceID = "changed"
	assert.Equal(t, "KSAVE10", snap.Devices[0].DeviceID)
}

func TestProjectNilSnapshot(t *testing.T) {
	assert.Empty(t, Project(nil, Criteria{}))
	assert.Empty(t, Locations(nil))
}

func TestLocations(t *testing.T) {
	assert.Equal(t, []string{"Bangkok", "Phuket", models.UnknownLocation}, Locations(testSnapshot()))
}

func TestParseCriteria(t *testing.T) {
	c, err := ParseCriteria(url.Values{})
	require.NoError(t, err)
	assert.Equal(t, Criteria{Status: All, Sort: SortRegistry}, c)

	c, err = ParseCriteria(url.Values{"location": {"Bangkok"}, "status": {"on"}, "sort": {"POWER_DESC"}})
	require.NoError(t, err)
	assert.Equal(t, Criteria{Location: "Bangkok", Status: "ON", Sort: SortPowerDesc}, c)

	c, err = ParseCriteria(url.Values{"status": {"all"}})
	require.NoError(t, err)
	assert.Equal(t, All, c.Status)

	_, err = ParseCriteria(url.Values{"status": {"maybe"}})
	require.ErrorIs(t, err, errInvalidStatus)

	_, err = ParseCriteria(url.Values{"sort": {"random"}})
	require.ErrorIs(t, err, errInvalidSort)
}

func TestDeviceNumber(t *testing.T) {
	assert.Equal(t, int64(1), deviceNumber("KSAVE01"))
	assert.Equal(t, int64(120), deviceNumber("site-120"))
	assert.Equal(t, int64(0), deviceNumber("gateway"))
	assert.Equal(t, int64(0), deviceNumber(""))
}
