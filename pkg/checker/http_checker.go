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
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/carverauto/siteradar/pkg/logger"
)

// HTTPChecker GETs a URL and treats any 2xx as healthy.
type HTTPChecker struct {
	url    string
	client *http.Client
}

func NewHTTPChecker(_ context.Context, probe *ProbeConfig, _ logger.Logger) (Checker, error) {
	if probe.Target == "" {
		return nil, errTargetRequired
	}

	u, err := url.Parse(probe.Target)
	if err != nil {
		return nil, fmt.Errorf("invalid url %q: %w", probe.Target, err)
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("%w: %q", errInvalidURLScheme, probe.Target)
	}

	if probe.Username != "" {
		u.User = url.UserPassword(probe.Username, probe.Password)
	}

	return &HTTPChecker{
		url: u.String(),
		client: &http.Client{
			CheckRedirect: func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse },
		},
	}, nil
}

func (h *HTTPChecker) Check(ctx context.Context) (bool, json.RawMessage) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.url, http.NoBody)
	if err != nil {
		return false, jsonError(fmt.Sprintf("failed to build request: %v", err))
	}

	start := time.Now()

	resp, err := h.client.Do(req)
	if err != nil {
		return false, jsonError(fmt.Sprintf("request failed: %v", err))
	}

	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	_ = resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return false, jsonError(fmt.Sprintf("unexpected status %d", resp.StatusCode))
	}

	return jsonDetail(map[string]interface{}{
		"status_code":   resp.StatusCode,
		"response_time": time.Since(start).Nanoseconds(),
	})
}

func (h *HTTPChecker) Close() error {
	h.client.CloseIdleConnections()

	return nil
}
