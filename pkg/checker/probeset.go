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
	"errors"
	"fmt"
	"time"

	"github.com/carverauto/siteradar/pkg/clock"
	"github.com/carverauto/siteradar/pkg/logger"
	"github.com/carverauto/siteradar/pkg/models"
)

type probe struct {
	name    string
	typ     string
	checker Checker
}

type outcome struct {
	ok     bool
	detail json.RawMessage
}

// ProbeSet runs a fixed list of probes concurrently.
type ProbeSet struct {
	probes  []probe
	timeout time.Duration
	clock   clock.Clock
	logger  logger.Logger
}

// NewProbeSet builds one checker per declaration through reg. Any failure
// closes the checkers built so far.
func NewProbeSet(
	ctx context.Context,
	reg Registry,
	configs []ProbeConfig,
	timeout time.Duration,
	clk clock.Clock,
	log logger.Logger,
) (*ProbeSet, error) {
	if clk == nil {
		clk = clock.Real()
	}

	set := &ProbeSet{
		probes:  make([]probe, 0, len(configs)),
		timeout: timeout,
		clock:   clk,
		logger:  log,
	}

	seen := make(map[string]struct{}, len(configs))

	for i := range configs {
		cfg := &configs[i]

		if cfg.Name == "" {
			_ = set.Close()

			return nil, fmt.Errorf("%w: probes[%d]", errNameRequired, i)
		}

		if _, dup := seen[cfg.Name]; dup {
			_ = set.Close()

			return nil, fmt.Errorf("%w: %s", errDuplicateProbe, cfg.Name)
		}

		seen[cfg.Name] = struct{}{}

		c, err := reg.Get(ctx, cfg, log)
		if err != nil {
			_ = set.Close()

			return nil, fmt.Errorf("probe %s: %w", cfg.Name, err)
		}

		set.probes = append(set.probes, probe{name: cfg.Name, typ: cfg.Type, checker: c})
	}

	return set, nil
}

// Len reports how many probes the set runs.
func (s *ProbeSet) Len() int {
	return len(s.probes)
}

// Run executes every probe and returns their results in configuration order.
// Each probe is bounded by timeout, or by the set's own timeout when timeout
// is not positive, even if the checker ignores its context. Errors, timeouts
// and panics all become OK=false.
func (s *ProbeSet) Run(ctx context.Context, timeout time.Duration) []models.ServiceHealth {
	if timeout <= 0 {
		timeout = s.timeout
	}

	results := make([]models.ServiceHealth, len(s.probes))
	done := make(chan struct{}, len(s.probes))

	for i := range s.probes {
		go func(i int) {
			results[i] = s.runOne(ctx, &s.probes[i], timeout)
			done <- struct{}{}
		}(i)
	}

	for range s.probes {
		<-done
	}

	return results
}

func (s *ProbeSet) runOne(ctx context.Context, p *probe, timeout time.Duration) models.ServiceHealth {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := s.clock.Now()
	resCh := make(chan outcome, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				s.logger.Error().Interface("panic", r).Str("service_name", p.name).Msg("Probe panicked")
				resCh <- outcome{detail: jsonError(fmt.Sprintf("probe panicked: %v", r))}
			}
		}()

		ok, detail := p.checker.Check(ctx)
		resCh <- outcome{ok: ok, detail: detail}
	}()

	var res outcome

	select {
	case res = <-resCh:
	case <-ctx.Done():
		err := ctx.Err()
		if errors.Is(err, context.DeadlineExceeded) {
			err = errProbeTimeout
		}

		res = outcome{detail: jsonError(err.Error())}
	}

	if !res.ok && len(res.detail) == 0 {
		res.detail = jsonError("service reported unhealthy")
	}

	health := models.ServiceHealth{
		ServiceName:  p.name,
		ServiceType:  p.typ,
		OK:           res.ok,
		Detail:       res.detail,
		ResponseTime: s.clock.Since(start),
		CheckedAt:    s.clock.Now(),
	}

	if !health.OK {
		s.logger.Debug().
			Str("service_name", p.name).
			RawJSON("detail", res.detail).
			Msg("Service probe failed")
	}

	return health
}

// Close releases every checker.
func (s *ProbeSet) Close() error {
	var errs []error

	for _, p := range s.probes {
		if err := p.checker.Close(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", p.name, err))
		}
	}

	return errors.Join(errs...)
}
