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

package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/carverauto/siteradar/pkg/checker"
	"github.com/carverauto/siteradar/pkg/kv"
	"github.com/carverauto/siteradar/pkg/logger"
	"github.com/carverauto/siteradar/pkg/models"
	"github.com/carverauto/siteradar/pkg/poller"
	"github.com/carverauto/siteradar/pkg/registry"
	"github.com/carverauto/siteradar/pkg/telemetry"
)

const (
	defaultListenAddr      = ":8090"
	defaultServiceName     = "siteradar"
	defaultIdentityTimeout = time.Second
)

var (
	errIdentityStoreRequired   = errors.New("identity requires either nats or file_path")
	errIdentityStoreConflict   = errors.New("identity accepts only one of nats or file_path")
	errSourceTimeoutTooLong    = errors.New("source timeout must be shorter than device_poll_interval")
	errNegativeIdentityTimeout = errors.New("identity timeout must not be negative")
)

// IdentityConfig selects where synthetic series numbers are persisted.
type IdentityConfig struct {
	NATS     *kv.NATSConfig `json:"nats,omitempty"`
	FilePath string         `json:"file_path,omitempty"`
	// Timeout bounds each series number lookup or write. It is separate
	// from the device timeout so a slow telemetry call cannot starve it.
	Timeout models.Duration `json:"timeout,omitempty"`
}

// Validate implements config.Validator.
func (c *IdentityConfig) Validate() error {
	if c.Timeout < 0 {
		return errNegativeIdentityTimeout
	}

	if c.Timeout == 0 {
		c.Timeout = models.Duration(defaultIdentityTimeout)
	}

	switch {
	case c.NATS == nil && c.FilePath == "":
		return errIdentityStoreRequired
	case c.NATS != nil && c.FilePath != "":
		return errIdentityStoreConflict
	case c.NATS != nil:
		return c.NATS.Validate()
	default:
		return nil
	}
}

// Config is the siteradar configuration file.
type Config struct {
	ListenAddr     string                `json:"listen_addr"`
	GRPCListenAddr string                `json:"grpc_listen_addr,omitempty"`
	ServiceName    string                `json:"service_name"`
	Logging        *logger.Config        `json:"logging,omitempty"`
	CORS           models.CORSConfig     `json:"cors"`
	Poller         poller.Config         `json:"poller"`
	Registry       registry.Config       `json:"registry"`
	Telemetry      telemetry.Config      `json:"telemetry"`
	Identity       IdentityConfig        `json:"identity"`
	Probes         []checker.ProbeConfig `json:"probes,omitempty"`
}

// Validate implements config.Validator.
func (c *Config) Validate() error {
	if c.ListenAddr == "" {
		c.ListenAddr = defaultListenAddr
	}

	if c.ServiceName == "" {
		c.ServiceName = defaultServiceName
	}

	if c.Logging == nil {
		c.Logging = logger.DefaultConfig()
	}

	if err := c.Poller.Validate(); err != nil {
		return fmt.Errorf("poller: %w", err)
	}

	if err := c.Registry.Validate(); err != nil {
		return fmt.Errorf("registry: %w", err)
	}

	if err := c.Telemetry.Validate(); err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}

	if err := c.Identity.Validate(); err != nil {
		return fmt.Errorf("identity: %w", err)
	}

	interval := time.Duration(c.Poller.DevicePollInterval)

	if time.Duration(c.Registry.Timeout) >= interval {
		return fmt.Errorf("%w: registry.timeout %s", errSourceTimeoutTooLong, time.Duration(c.Registry.Timeout))
	}

	if time.Duration(c.Telemetry.Timeout) >= interval {
		return fmt.Errorf("%w: telemetry.timeout %s", errSourceTimeoutTooLong, time.Duration(c.Telemetry.Timeout))
	}

	if time.Duration(c.Identity.Timeout) >= interval {
		return fmt.Errorf("%w: identity.timeout %s", errSourceTimeoutTooLong, time.Duration(c.Identity.Timeout))
	}

	return nil
}
