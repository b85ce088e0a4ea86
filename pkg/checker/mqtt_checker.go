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

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/carverauto/siteradar/pkg/logger"
)

const (
	mqttDefaultTimeout  = 5 * time.Second
	mqttDisconnectQuiet = 100
)

// MQTTChecker connects to the message broker with a throwaway client id and
// disconnects again.
type MQTTChecker struct {
	broker   string
	username string
	password string
	logger   logger.Logger
}

func NewMQTTChecker(_ context.Context, probe *ProbeConfig, log logger.Logger) (Checker, error) {
	if probe.Target == "" {
		return nil, errTargetRequired
	}

	return &MQTTChecker{
		broker:   probe.Target,
		username: probe.Username,
		password: probe.Password,
		logger:   log,
	}, nil
}

func (m *MQTTChecker) Check(ctx context.Context) (bool, json.RawMessage) {
	timeout := mqttDefaultTimeout
	if deadline, ok := ctx.Deadline(); ok {
		timeout = time.Until(deadline)
	}

	clientID := "siteradar-probe-" + uuid.NewString()

	opts := mqtt.NewClientOptions()
	opts.AddBroker(m.broker)
	opts.SetClientID(clientID)
	opts.SetUsername(m.username)
	opts.SetPassword(m.password)
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(false)
	opts.SetConnectRetry(false)
	opts.SetConnectTimeout(timeout)

	client := mqtt.NewClient(opts)

	start := time.Now()
	token := client.Connect()

	select {
	case <-token.Done():
	case <-ctx.Done():
		return false, jsonError(fmt.Sprintf("broker %s did not accept a connection: %v", m.broker, ctx.Err()))
	}

	if err := token.Error(); err != nil {
		return false, jsonError(fmt.Sprintf("failed to connect to broker %s: %v", m.broker, err))
	}

	responseTime := time.Since(start).Nanoseconds()

	client.Disconnect(mqttDisconnectQuiet)

	m.logger.Debug().Str("broker", m.broker).Str("client_id", clientID).Msg("MQTT probe connected")

	return jsonDetail(map[string]interface{}{
		"broker":        m.broker,
		"response_time": responseTime,
	})
}

func (*MQTTChecker) Close() error {
	return nil
}
