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

//go:generate mockgen -destination=mock_source.go -package=registry github.com/carverauto/siteradar/pkg/registry Source

// Package registry lists the devices an operator has declared.
package registry

import (
	"context"

	"github.com/carverauto/siteradar/pkg/models"
)

// Source returns the full device list in registry order. A non-nil error
// means the registry is unavailable; no partial list is returned with it.
type Source interface {
	ListDevices(ctx context.Context) ([]models.Device, error)
}
