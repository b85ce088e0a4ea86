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

package checker

import (
	"context"
	"fmt"
	"strings"

	"github.com/carverauto/siteradar/pkg/logger"
)

// Probe types understood by NewDefaultRegistry.
const (
	TypeHTTP     = "http"
	TypePort     = "port"
	TypeMQTT     = "mqtt"
	TypeNATS     = "nats"
	TypeGRPC     = "grpc"
	TypePostgres = "postgres"
)

// CheckerCreator builds a Checker from its probe declaration.
type CheckerCreator func(ctx context.Context, probe *ProbeConfig, log logger.Logger) (Checker, error)

// Registry defines how to store and retrieve checker factories.
type Registry interface {
	Register(probeType string, creator CheckerCreator)
	Get(ctx context.Context, probe *ProbeConfig, log logger.Logger) (Checker, error)
}

type checkerRegistry struct {
	factories map[string]CheckerCreator
}

// NewRegistry creates an empty checker registry.
func NewRegistry() Registry {
	return &checkerRegistry{
		factories: make(map[string]CheckerCreator),
	}
}

// NewDefaultRegistry returns a registry with every built-in probe type.
func NewDefaultRegistry() Registry {
	r := NewRegistry()

	r.Register(TypeHTTP, NewHTTPChecker)
	r.Register(TypePort, NewPortChecker)
	r.Register(TypeMQTT, NewMQTTChecker)
	r.Register(TypeNATS, NewNATSChecker)
	r.Register(TypeGRPC, NewGRPCChecker)
	r.Register(TypePostgres, NewPostgresChecker)

	return r
}

func (r *checkerRegistry) Register(probeType string, creator CheckerCreator) {
	r.factories[strings.ToLower(probeType)] = creator
}

func (r *checkerRegistry) Get(ctx context.Context, probe *ProbeConfig, log logger.Logger) (Checker, error) {
	f, ok := r.factories[strings.ToLower(probe.Type)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", errNoChecker, probe.Type)
	}

	return f(ctx, probe, log)
}
