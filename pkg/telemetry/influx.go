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

package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/carverauto/siteradar/pkg/logger"
	"github.com/carverauto/siteradar/pkg/models"
)

const (
	defaultTimeout   = 3 * time.Second
	defaultDeviceTag = "device_id"
	maxErrorBody     = 2048
	maxResponseBody  = 4 << 20
)

// Config describes an InfluxDB 1.x compatible /query endpoint.
type Config struct {
	URL             string              `json:"url"`
	Database        string              `json:"database"`
	RetentionPolicy string              `json:"retention_policy,omitempty"`
	Measurement     string              `json:"measurement"`
	DeviceTag       string              `json:"device_tag,omitempty"`
	Username        string              `json:"username,omitempty"`
	Password        string              `json:"password,omitempty" sensitive:"true"`
	Token           string              `json:"token,omitempty" sensitive:"true"`
	Timeout         models.Duration     `json:"timeout,omitempty"`
	Fields          FieldMapping        `json:"fields"`
	Patterns        map[string][]string `json:"patterns,omitempty"`
}

// Validate implements config.Validator and fills defaults.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.URL) == "" {
		return errURLRequired
	}

	if c.Database == "" {
		return errDatabaseRequired
	}

	if c.Measurement == "" {
		return errMeasurementRequired
	}

	if c.DeviceTag == "" {
		c.DeviceTag = defaultDeviceTag
	}

	if c.Timeout <= 0 {
		c.Timeout = models.Duration(defaultTimeout)
	}

	c.Fields.applyDefaults()

	return nil
}

// InfluxSource reads the newest point per device from InfluxDB.
type InfluxSource struct {
	cfg       Config
	endpoint  *url.URL
	client    *http.Client
	extractor *Extractor
	logger    logger.Logger
}

var _ Source = (*InfluxSource)(nil)

// NewInfluxSource validates cfg and builds the source. A nil client gets a
// default one.
func NewInfluxSource(cfg Config, client *http.Client, log logger.Logger) (*InfluxSource, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	parsed, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid telemetry url: %w", err)
	}

	parsed.Path = path.Join("/", parsed.Path, "query")

	extractor, err := NewExtractor(cfg.Fields, cfg.Patterns)
	if err != nil {
		return nil, err
	}

	if client == nil {
		client = &http.Client{}
	}

	return &InfluxSource{
		cfg:       cfg,
		endpoint:  parsed,
		client:    client,
		extractor: extractor,
		logger:    log,
	}, nil
}

type influxResponse struct {
	Results []influxResult `json:"results"`
	Error   string         `json:"error,omitempty"`
}

type influxResult struct {
	Series []influxSeries `json:"series"`
	Error  string         `json:"error,omitempty"`
}

type influxSeries struct {
	Name    string            `json:"name"`
	Tags    map[string]string `json:"tags,omitempty"`
	Columns []string          `json:"columns"`
	Values  [][]interface{}   `json:"values"`
}

// Latest implements Source.
func (s *InfluxSource) Latest(ctx context.Context, deviceID string) Result {
	ctx, cancel := context.WithTimeout(ctx, time.Duration(s.cfg.Timeout))
	defer cancel()

	resp, err := s.query(ctx, buildQuery(s.cfg.Measurement, s.cfg.DeviceTag, deviceID))
	if err != nil {
		s.logger.Debug().Err(err).Str("device_id", deviceID).Msg("Telemetry query failed")

		return Unavailable(err)
	}

	row, ok := latestRow(resp)
	if !ok {
		return NotFound()
	}

	raw, err := json.Marshal(row)
	if err != nil {
		return Unavailable(fmt.Errorf("failed to encode raw row: %w", err))
	}

	sample, err := s.extractor.Extract(deviceID, row, raw)
	if err != nil {
		s.logger.Debug().Err(err).Str("device_id", deviceID).Msg("Malformed telemetry row")

		return Unavailable(err)
	}

	return OK(sample)
}

func (s *InfluxSource) query(ctx context.Context, q string) (*influxResponse, error) {
	params := url.Values{}
	params.Set("db", s.cfg.Database)
	params.Set("q", q)
	params.Set("epoch", "ms")

	if s.cfg.RetentionPolicy != "" {
		params.Set("rp", s.cfg.RetentionPolicy)
	}

	endpoint := *s.endpoint
	endpoint.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create telemetry request: %w", err)
	}

	req.Header.Set("Accept", "application/json")

	switch {
	case s.cfg.Token != "":
		req.Header.Set("Authorization", "Token "+s.cfg.Token)
	case s.cfg.Username != "":
		req.SetBasicAuth(s.cfg.Username, s.cfg.Password)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("telemetry request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

		return nil, fmt.Errorf("%w %d: %s", errUnexpectedStatus, resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return nil, fmt.Errorf("failed to read telemetry response: %w", err)
	}

	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var decoded influxResponse
	if err := dec.Decode(&decoded); err != nil {
		return nil, fmt.Errorf("failed to decode telemetry response: %w", err)
	}

	if decoded.Error != "" {
		return nil, fmt.Errorf("%w: %s", errQueryFailed, decoded.Error)
	}

	for _, r := range decoded.Results {
		if r.Error != "" {
			return nil, fmt.Errorf("%w: %s", errQueryFailed, r.Error)
		}
	}

	return &decoded, nil
}

// latestRow flattens the newest row across all series into one map of
// tags and columns. Columns win over tags of the same name.
func latestRow(resp *influxResponse) (map[string]interface{}, bool) {
	var (
		best     map[string]interface{}
		bestTime time.Time
	)

	for _, result := range resp.Results {
		for _, series := range result.Series {
			for _, values := range series.Values {
				row := make(map[string]interface{}, len(series.Tags)+len(series.Columns))

				for k, v := range series.Tags {
					row[k] = v
				}

				for i, col := range series.Columns {
					if i < len(values) && values[i] != nil {
						row[col] = values[i]
					}
				}

				ts, _ := parseTime(row["time"])
				if best == nil || ts.After(bestTime) {
					best = row
					bestTime = ts
				}
			}
		}
	}

	return best, best != nil
}

// buildQuery selects the newest point for one device across every tag set.
func buildQuery(measurement, tag, deviceID string) string {
	return fmt.Sprintf(`SELECT * FROM %s WHERE %s = '%s' GROUP BY * ORDER BY time DESC LIMIT 1`,
		quoteIdent(measurement), quoteIdent(tag), escapeLiteral(deviceID))
}

func quoteIdent(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`)

	return `"` + r.Replace(s) + `"`
}

func escapeLiteral(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `'`, `\'`)

	return r.Replace(s)
}
