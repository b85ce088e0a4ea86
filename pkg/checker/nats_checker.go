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
	"time"

	"github.com/nats-io/nats.go"

	"github.com/carverauto/siteradar/pkg/logger"
)

const natsDefaultTimeout = 5 * time.Second

// NATSChecker connects to a NATS server and round-trips a flush.
type NATSChecker struct {
	url      string
	username string
	password string
}

func NewNATSChecker(_ context.Context, probe *ProbeConfig, _ logger.Logger) (Checker, error) {
	if probe.Target == "" {
		return nil, errTargetRequired
	}

	return &NATSChecker{
		url:      probe.Target,
		username: probe.Username,
		password: probe.Password,
	}, nil
}

func (n *NATSChecker) Check(ctx context.Context) (bool, json.RawMessage) {
	timeout := natsDefaultTimeout
	if deadline, ok := ctx.Deadline(); ok {
		timeout = time.Until(deadline)
	}

	opts := []nats.Option{
		nats.Name("siteradar-probe"),
		nats.Timeout(timeout),
		nats.NoReconnect(),
	}

	if n.username != "" {
		opts = append(opts, nats.UserInfo(n.username, n.password))
	}

	start := time.Now()

	nc, err := nats.Connect(n.url, opts...)
	if err != nil {
		return false, jsonError(fmt.Sprintf("failed to connect to %s: %v", n.url, err))
	}
	defer nc.Close()

	if err := nc.FlushWithContext(ctx); err != nil {
		return false, jsonError(fmt.Sprintf("flush to %s failed: %v", n.url, err))
	}

	return jsonDetail(map[string]interface{}{
		"server":         nc.ConnectedUrlRedacted(),
		"server_version": nc.ConnectedServerVersion(),
		"response_time":  time.Since(start).Nanoseconds(),
	})
}

func (*NATSChecker) Close() error {
	return nil
}
