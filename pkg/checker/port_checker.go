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
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/carverauto/siteradar/pkg/logger"
)

// PortChecker dials a TCP listener, e.g. the metrics-shipping agent.
type PortChecker struct {
	Host string
	Port int
}

func NewPortChecker(_ context.Context, probe *ProbeConfig, _ logger.Logger) (Checker, error) {
	if probe.Target == "" {
		return nil, errTargetRequired
	}

	host, portStr, err := net.SplitHostPort(probe.Target)
	if err != nil {
		return nil, fmt.Errorf("invalid target %q: %w", probe.Target, err)
	}

	port, err := strconv.Atoi(portStr)
	if err != nil || port <= 0 || port > 65535 {
		return nil, fmt.Errorf("%w: %s", errInvalidPort, portStr)
	}

	return &PortChecker{Host: host, Port: port}, nil
}

// Check validates if a port is accessible.
func (p *PortChecker) Check(ctx context.Context) (bool, json.RawMessage) {
	var d net.Dialer

	start := time.Now()

	conn, err := d.DialContext(ctx, "tcp", net.JoinHostPort(p.Host, strconv.Itoa(p.Port)))
	if err != nil {
		return false, jsonError(fmt.Sprintf("port %d is not accessible: %v", p.Port, err))
	}

	responseTime := time.Since(start).Nanoseconds()

	_ = conn.Close()

	return jsonDetail(map[string]interface{}{
		"host":          p.Host,
		"port":          p.Port,
		"response_time": responseTime,
	})
}

func (*PortChecker) Close() error {
	return nil
}
