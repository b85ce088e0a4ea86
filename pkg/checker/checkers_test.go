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
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/carverauto/siteradar/pkg/logger"
)

func check(t *testing.T, c Checker) (bool, map[string]interface{}) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	ok, raw := c.Check(ctx)

	var detail map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &detail))

	return ok, detail
}

func closedAddr(t *testing.T) string {
	t.Helper()

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	addr := lis.Addr().String()
	require.NoError(t, lis.Close())

	return addr
}

func TestHTTPChecker(t *testing.T) {
	healthy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer healthy.Close()

	broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer broken.Close()

	c, err := NewHTTPChecker(context.Background(), &ProbeConfig{Target: healthy.URL + "/ping"}, logger.NewTestLogger())
	require.NoError(t, err)

	ok, detail := check(t, c)
	assert.True(t, ok)
	assert.InDelta(t, float64(http.StatusNoContent), detail["status_code"], 0)

	c, err = NewHTTPChecker(context.Background(), &ProbeConfig{Target: broken.URL + "/api/health"}, logger.NewTestLogger())
	require.NoError(t, err)

	ok, detail = check(t, c)
	assert.False(t, ok)
	assert.Contains(t, detail["error"], "503")

	_, err = NewHTTPChecker(context.Background(), &ProbeConfig{Target: "ftp://x"}, logger.NewTestLogger())
	assert.ErrorIs(t, err, errInvalidURLScheme)
}

func TestPortChecker(t *testing.T) {
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	defer lis.Close()

	go func() {
		for {
			conn, err := lis.Accept()
			if err != nil {
				return
			}

			_ = conn.Close()
		}
	}()

	c, err := NewPortChecker(context.Background(), &ProbeConfig{Target: lis.Addr().String()}, logger.NewTestLogger())
	require.NoError(t, err)

	ok, detail := check(t, c)
	assert.True(t, ok)
	assert.Equal(t, "127.0.0.1", detail["host"])

	c, err = NewPortChecker(context.Background(), &ProbeConfig{Target: closedAddr(t)}, logger.NewTestLogger())
	require.NoError(t, err)

	ok, _ = check(t, c)
	assert.False(t, ok)

	_, err = NewPortChecker(context.Background(), &ProbeConfig{Target: "localhost:99999"}, logger.NewTestLogger())
	assert.ErrorIs(t, err, errInvalidPort)
}

func TestNATSChecker(t *testing.T) {
	srv, err := server.NewServer(&server.Options{Host: "127.0.0.1", Port: -1})
	require.NoError(t, err)

	go srv.Start()
	t.Cleanup(srv.Shutdown)

	require.True(t, srv.ReadyForConnections(10*time.Second))

	c, err := NewNATSChecker(context.Background(), &ProbeConfig{Target: srv.ClientURL()}, logger.NewTestLogger())
	require.NoError(t, err)

	ok, detail := check(t, c)
	assert.True(t, ok)
	assert.NotEmpty(t, detail["server_version"])

	c, err = NewNATSChecker(context.Background(), &ProbeConfig{Target: "nats://" + closedAddr(t)}, logger.NewTestLogger())
	require.NoError(t, err)

	ok, _ = check(t, c)
	assert.False(t, ok)
}

func TestGRPCChecker(t *testing.T) {
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	hs := health.NewServer()
	hs.SetServingStatus("telemetry", healthpb.HealthCheckResponse_SERVING)
	hs.SetServingStatus("registry", healthpb.HealthCheckResponse_NOT_SERVING)

	gs := grpc.NewServer()
	healthpb.RegisterHealthServer(gs, hs)

	go func() { _ = gs.Serve(lis) }()
	t.Cleanup(gs.Stop)

	serving, err := NewGRPCChecker(context.Background(), &ProbeConfig{Target: lis.Addr().String(), Service: "telemetry"}, logger.NewTestLogger())
	require.NoError(t, err)

	defer serving.Close()

	ok, detail := check(t, serving)
	assert.True(t, ok)
	assert.Equal(t, "SERVING", detail["status"])

	down, err := NewGRPCChecker(context.Background(), &ProbeConfig{Target: lis.Addr().String(), Service: "registry"}, logger.NewTestLogger())
	require.NoError(t, err)

	defer down.Close()

	ok, detail = check(t, down)
	assert.False(t, ok)
	assert.Contains(t, detail["error"], "NOT_SERVING")
}

func TestMQTTCheckerUnreachableBroker(t *testing.T) {
	c, err := NewMQTTChecker(context.Background(), &ProbeConfig{Target: "tcp://" + closedAddr(t)}, logger.NewTestLogger())
	require.NoError(t, err)

	ok, detail := check(t, c)
	assert.False(t, ok)
	assert.NotEmpty(t, detail["error"])
}

func TestPostgresCheckerUnreachable(t *testing.T) {
	c, err := NewPostgresChecker(context.Background(), &ProbeConfig{
		Target: "postgres://reader@" + closedAddr(t) + "/siteradar?sslmode=disable&connect_timeout=1",
	}, logger.NewTestLogger())
	require.NoError(t, err)

	defer c.Close()

	ok, detail := check(t, c)
	assert.False(t, ok)
	assert.Contains(t, detail["error"], "ping")
}
