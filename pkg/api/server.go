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

// Package api serves the read-only fleet status API.
package api

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	srHttp "github.com/carverauto/siteradar/pkg/http"
	"github.com/carverauto/siteradar/pkg/logger"
	"github.com/carverauto/siteradar/pkg/models"
)

// SnapshotProvider hands out the latest published fleet snapshot.
type SnapshotProvider interface {
	Snapshot() *models.FleetSnapshot
}

// APIServer routes read requests to the latest snapshot.
type APIServer struct {
	router     *mux.Router
	snapshots  SnapshotProvider
	corsConfig models.CORSConfig
	logger     logger.Logger
}

// NewAPIServer creates a new API server instance with the given configuration.
func NewAPIServer(config models.CORSConfig, snapshots SnapshotProvider, log logger.Logger) *APIServer {
	s := &APIServer{
		router:     mux.NewRouter(),
		snapshots:  snapshots,
		corsConfig: config,
		logger:     log,
	}

	s.setupRoutes()

	return s
}

// Handler returns the router with middleware applied.
func (s *APIServer) Handler() http.Handler {
	return s.router
}

func (s *APIServer) setupRoutes() {
	s.router.Use(func(next http.Handler) http.Handler {
		return srHttp.CommonMiddleware(next, s.corsConfig, s.logger)
	})

	s.router.HandleFunc("/healthz", s.handleHealthz).Methods(http.MethodGet, http.MethodOptions)

	api := s.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/fleet", s.handleFleet).Methods(http.MethodGet, http.MethodOptions)
	api.HandleFunc("/devices", s.handleListDevices).Methods(http.MethodGet, http.MethodOptions)
	api.HandleFunc("/devices/{id}", s.handleGetDevice).Methods(http.MethodGet, http.MethodOptions)
	api.HandleFunc("/services", s.handleServices).Methods(http.MethodGet, http.MethodOptions)
	api.HandleFunc("/locations", s.handleLocations).Methods(http.MethodGet, http.MethodOptions)
	api.HandleFunc("/version", s.handleVersion).Methods(http.MethodGet, http.MethodOptions)
}

func (s *APIServer) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error().Err(err).Msg("Error encoding response")
	}
}

func (s *APIServer) writeAPIError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, models.ErrorResponse{Message: message, Status: status})
}
