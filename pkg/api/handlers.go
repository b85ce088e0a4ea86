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

package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/carverauto/siteradar/pkg/models"
	"github.com/carverauto/siteradar/pkg/version"
	"github.com/carverauto/siteradar/pkg/view"
)

const msgNoSnapshot = "no fleet snapshot published yet"

// snapshot writes a 503 and returns nil until the poller has published.
func (s *APIServer) snapshot(w http.ResponseWriter) *models.FleetSnapshot {
	snap := s.snapshots.Snapshot()
	if snap == nil {
		s.writeAPIError(w, http.StatusServiceUnavailable, msgNoSnapshot)
	}

	return snap
}

func (s *APIServer) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	snap := s.snapshot(w)
	if snap == nil {
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":             "ok",
		"revision":           snap.Revision,
		"registry_available": snap.RegistryAvailable,
	})
}

func (s *APIServer) handleFleet(w http.ResponseWriter, _ *http.Request) {
	if snap := s.snapshot(w); snap != nil {
		s.writeJSON(w, http.StatusOK, snap)
	}
}

func (s *APIServer) handleListDevices(w http.ResponseWriter, r *http.Request) {
	criteria, err := view.ParseCriteria(r.URL.Query())
	if err != nil {
		s.writeAPIError(w, http.StatusBadRequest, err.Error())
		return
	}

	snap := s.snapshot(w)
	if snap == nil {
		return
	}

	s.writeJSON(w, http.StatusOK, view.Project(snap, criteria))
}

func (s *APIServer) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	snap := s.snapshot(w)
	if snap == nil {
		return
	}

	id := mux.Vars(r)["id"]

	device, ok := snap.Device(id)
	if !ok {
		s.writeAPIError(w, http.StatusNotFound, "device not found: "+id)
		return
	}

	s.writeJSON(w, http.StatusOK, device)
}

func (s *APIServer) handleServices(w http.ResponseWriter, _ *http.Request) {
	snap := s.snapshot(w)
	if snap == nil {
		return
	}

	services := snap.Services
	if services == nil {
		services = []models.ServiceHealth{}
	}

	s.writeJSON(w, http.StatusOK, services)
}

func (s *APIServer) handleLocations(w http.ResponseWriter, _ *http.Request) {
	if snap := s.snapshot(w); snap != nil {
		s.writeJSON(w, http.StatusOK, view.Locations(snap))
	}
}

func (s *APIServer) handleVersion(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, version.Get())
}
