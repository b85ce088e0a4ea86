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

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/carverauto/siteradar/pkg/logger"
	"github.com/carverauto/siteradar/pkg/registry"
)

// PostgresChecker pings the registry database through a small pool.
type PostgresChecker struct {
	host string
	pool *pgxpool.Pool
}

// NewPostgresChecker accepts either probe.CNPG or a connection string in probe.Target.
// The pool dials lazily, so an unreachable database does not fail construction.
func NewPostgresChecker(ctx context.Context, probe *ProbeConfig, _ logger.Logger) (Checker, error) {
	var (
		poolConfig *pgxpool.Config
		err        error
	)

	switch {
	case probe.CNPG != nil:
		cnpg := *probe.CNPG
		cnpg.MaxConnections = 1
		cnpg.MinConnections = 0

		poolConfig, err = registry.PoolConfig(&cnpg)
	case probe.Target != "":
		poolConfig, err = pgxpool.ParseConfig(probe.Target)
		if err == nil {
			poolConfig.MaxConns = 1
		}
	default:
		return nil, errTargetRequired
	}

	if err != nil {
		return nil, fmt.Errorf("invalid postgres probe config: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create postgres pool: %w", err)
	}

	return &PostgresChecker{host: poolConfig.ConnConfig.Host, pool: pool}, nil
}

func (p *PostgresChecker) Check(ctx context.Context) (bool, json.RawMessage) {
	start := time.Now()

	if err := p.pool.Ping(ctx); err != nil {
		return false, jsonError(fmt.Sprintf("ping %s failed: %v", p.host, err))
	}

	return jsonDetail(map[string]interface{}{
		"host":          p.host,
		"response_time": time.Since(start).Nanoseconds(),
	})
}

func (p *PostgresChecker) Close() error {
	p.pool.Close()

	return nil
}

