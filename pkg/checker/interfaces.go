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

// Package checker probes the infrastructure services the fleet depends on.
package checker

import (
	"context"
	"encoding/json"

	"github.com/carverauto/siteradar/pkg/models"
)

// Checker probes one service. Check reports health plus a JSON detail;
// failures are described as {"error": "..."} rather than returned.
type Checker interface {
	Check(ctx context.Context) (bool, json.RawMessage)
	Close() error
}

// ProbeConfig declares one health probe.
type ProbeConfig struct {
	Name   string `json:"name"`
	Type   string `json:"type"`
	Target string `json:"target"`

	// Service is the grpc.health.v1 service name; empty asks about the server.
	Service  string `json:"service,omitempty"`
	Username string `json:"username,omitempty"`
	Password string `json:"password,omitempty" sensitive:"true"`
	// TLS enables TLS for grpc probes.
	TLS bool `json:"tls,omitempty"`
	// CNPG configures postgres probes in place of Target.
	CNPG *models.CNPGDatabase `json:"cnpg,omitempty"`
}

func jsonError(msg string) json.RawMessage {
	data, _ := json.Marshal(map[string]string{"error": msg})

	return data
}

func jsonDetail(detail map[string]interface{}) (bool, json.RawMessage) {
	data, err := json.Marshal(detail)
	if err != nil {
		return false, jsonError("failed to marshal response: " + err.Error())
	}

	return true, data
}
