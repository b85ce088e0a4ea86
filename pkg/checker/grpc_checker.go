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
	"crypto/tls"
	"encoding/json"
	"fmt"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/carverauto/siteradar/pkg/logger"
)

// GRPCChecker asks a gRPC server's health service whether it is SERVING.
type GRPCChecker struct {
	target  string
	service string
	conn    *grpc.ClientConn
	client  healthpb.HealthClient
}

func NewGRPCChecker(_ context.Context, probe *ProbeConfig, _ logger.Logger) (Checker, error) {
	if probe.Target == "" {
		return nil, errTargetRequired
	}

	creds := insecure.NewCredentials()
	if probe.TLS {
		creds = credentials.NewTLS(&tls.Config{MinVersion: tls.VersionTLS12})
	}

	conn, err := grpc.NewClient(probe.Target,
		grpc.WithTransportCredentials(creds),
		grpc.WithStatsHandler(otelgrpc.NewClientHandler()))
	if err != nil {
		return nil, fmt.Errorf("failed to create grpc client for %s: %w", probe.Target, err)
	}

	return &GRPCChecker{
		target:  probe.Target,
		service: probe.Service,
		conn:    conn,
		client:  healthpb.NewHealthClient(conn),
	}, nil
}

func (g *GRPCChecker) Check(ctx context.Context) (bool, json.RawMessage) {
	start := time.Now()

	resp, err := g.client.Check(ctx, &healthpb.HealthCheckRequest{Service: g.service})
	if err != nil {
		return false, jsonError(fmt.Sprintf("health check against %s failed: %v", g.target, err))
	}

	if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		return false, jsonError(fmt.Sprintf("service reports %s", resp.GetStatus()))
	}

	return jsonDetail(map[string]interface{}{
		"status":        resp.GetStatus().String(),
		"response_time": time.Since(start).Nanoseconds(),
	})
}

func (g *GRPCChecker) Close() error {
	return g.conn.Close()
}
