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

//go:generate mockgen -destination=mock_source.go -package=telemetry github.com/carverauto/siteradar/pkg/telemetry Source

// Package telemetry fetches the latest time-series sample for a device.
package telemetry

import (
	"context"

	"github.com/carverauto/siteradar/pkg/models"
)

// Status classifies the outcome of a telemetry lookup.
type Status int

const (
	StatusOK Status = iota
	StatusNotFound
	StatusUnavailable
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusNotFound:
		return "not_found"
	case StatusUnavailable:
		return "unavailable"
	default:
		return "unknown"
	}
}

// Result is what a Source hands back for one device. Sample is set only
// when Status is StatusOK; Err explains a StatusUnavailable result.
type Result struct {
	Sample *models.TelemetrySample
	Status Status
	Err    error
}

// OK wraps a sample.
func OK(sample *models.TelemetrySample) Result {
	return Result{Sample: sample, Status: StatusOK}
}

// NotFound reports that the backend answered but holds nothing for the device.
func NotFound() Result {
	return Result{Status: StatusNotFound}
}

// Unavailable reports a backend that could not be queried or parsed.
func Unavailable(err error) Result {
	return Result{Status: StatusUnavailable, Err: err}
}

// Source returns the latest sample for a device. Implementations fail soft:
// every failure is reported through Result, never as a panic.
type Source interface {
	Latest(ctx context.Context, deviceID string) Result
}
