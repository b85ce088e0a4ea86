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

package registry

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/carverauto/siteradar/pkg/logger"
	"github.com/carverauto/siteradar/pkg/models"
)

// Querier is the subset of *pgxpool.Pool used to read the registry.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// CNPGSource reads devices from a PostgreSQL table.
type CNPGSource struct {
	db      Querier
	query   string
	timeout time.Duration
	logger  logger.Logger
}

var _ Source = (*CNPGSource)(nil)

// NewCNPGSource reads from table (optionally schema qualified) through db.
func NewCNPGSource(db Querier, table string, timeout time.Duration, log logger.Logger) *CNPGSource {
	if table == "" {
		table = defaultTable
	}

	if timeout <= 0 {
		timeout = defaultTimeout
	}

	return &CNPGSource{
		db:      db,
		query:   listDevicesQuery(table),
		timeout: timeout,
		logger:  log,
	}
}

func listDevicesQuery(table string) string {
	ident := pgx.Identifier(strings.Split(table, ".")).Sanitize()

	return `SELECT device_id, display_name, ip_address, location, before_meter_no,
		metrics_meter_no, contact_phone, status
	FROM ` + ident + `
	ORDER BY sort_order NULLS LAST, device_id`
}

// ListDevices implements Source.
func (s *CNPGSource) ListDevices(ctx context.Context) ([]models.Device, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	rows, err := s.db.Query(ctx, s.query)
	if err != nil {
		return nil, fmt.Errorf("failed to query device registry: %w", err)
	}
	defer rows.Close()

	var devices []models.Device

	for rows.Next() {
		var (
			id                                  string
			name, ip, location, before, metrics *string
			phone, status                       *string
		)

		if err := rows.Scan(&id, &name, &ip, &location, &before, &metrics, &phone, &status); err != nil {
			return nil, fmt.Errorf("failed to scan device row: %w", err)
		}

		id = strings.TrimSpace(id)
		if id == "" {
			s.logger.Warn().Msg("Skipping registry row with empty device_id")

			continue
		}

		devices = append(devices, models.Device{
			DeviceID:       id,
			DisplayName:    deref(name),
			IPAddress:      deref(ip),
			Location:       deref(location),
			BeforeMeterNo:  deref(before),
			MetricsMeterNo: deref(metrics),
			ContactPhone:   deref(phone),
			RegistryStatus: models.ParseRegistryStatus(deref(status)),
		})
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read device registry: %w", err)
	}

	return devices, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}

	return strings.TrimSpace(*s)
}
