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
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/carverauto/siteradar/pkg/models"
)

// Field names accepted in pattern overrides.
const (
	FieldLocation   = "location"
	FieldSeriesName = "series_name"
	FieldSeriesNo   = "series_no"
	FieldPower      = "power"
)

// FieldMapping names the tags or columns that carry each sample field.
type FieldMapping struct {
	Location   string `json:"location,omitempty"`
	SeriesName string `json:"series_name,omitempty"`
	SeriesNo   string `json:"series_no,omitempty"`
	Power      string `json:"power,omitempty"`
	Time       string `json:"time,omitempty"`
}

func (m *FieldMapping) applyDefaults() {
	if m.Location == "" {
		m.Location = FieldLocation
	}

	if m.SeriesName == "" {
		m.SeriesName = FieldSeriesName
	}

	if m.SeriesNo == "" {
		m.SeriesNo = FieldSeriesNo
	}

	if m.Power == "" {
		m.Power = FieldPower
	}

	if m.Time == "" {
		m.Time = "time"
	}
}

// Each pattern's first capture group is the value.
//
//nolint:gochecknoglobals // default pattern table
var defaultPatterns = map[string][]string{
	FieldLocation: {
		`(?i)\blocation"?\s*[:=]\s*"?([^",;}\\]+)`,
		`(?i)\b(?:loc|site)"?\s*[:=]\s*"?([^",;}\\]+)`,
	},
	FieldSeriesName: {
		`(?i)\bseries_?name"?\s*[:=]\s*"?([^",;}\\]+)`,
		`(?i)\bdevice_?name"?\s*[:=]\s*"?([^",;}\\]+)`,
	},
	FieldSeriesNo: {
		`(?i)\bseries_?no"?\s*[:=]\s*"?([A-Za-z0-9-]+)`,
		`(?i)\bserial_?no"?\s*[:=]\s*"?([A-Za-z0-9-]+)`,
	},
	FieldPower: {
		`(?i)\bpower"?\s*[:=]\s*"?(-?\d+(?:\.\d+)?)`,
		`(?i)\bwatts?"?\s*[:=]\s*"?(-?\d+(?:\.\d+)?)`,
	},
}

// Extractor turns one backend row into a TelemetrySample. Structured
// columns and tags win; the ordered regex fallback over the raw row is only
// consulted for fields they leave empty; anything still missing stays absent.
type Extractor struct {
	fields   FieldMapping
	patterns map[string][]*regexp.Regexp
}

// NewExtractor compiles the fallback patterns. overrides replaces the
// default list for the fields it names.
func NewExtractor(fields FieldMapping, overrides map[string][]string) (*Extractor, error) {
	fields.applyDefaults()

	sources := make(map[string][]string, len(defaultPatterns))
	for field, list := range defaultPatterns {
		sources[field] = list
	}

	for field, list := range overrides {
		if _, ok := defaultPatterns[field]; !ok {
			return nil, fmt.Errorf("%w: %s", errUnknownPatternField, field)
		}

		sources[field] = list
	}

	compiled := make(map[string][]*regexp.Regexp, len(sources))

	for field, list := range sources {
		for _, expr := range list {
			re, err := regexp.Compile(expr)
			if err != nil {
				return nil, fmt.Errorf("invalid %s pattern %q: %w", field, expr, err)
			}

			compiled[field] = append(compiled[field], re)
		}
	}

	return &Extractor{fields: fields, patterns: compiled}, nil
}

// Extract builds a sample from row. raw is the opaque form of the same row
// and feeds the regex fallback.
func (e *Extractor) Extract(deviceID string, row map[string]interface{}, raw []byte) (*models.TelemetrySample, error) {
	observedAt, ok := parseTime(row[e.fields.Time])
	if !ok {
		return nil, errMissingTime
	}

	sample := &models.TelemetrySample{
		DeviceID:   deviceID,
		ObservedAt: observedAt,
		Location:   e.text(row, raw, e.fields.Location, FieldLocation),
		SeriesName: e.text(row, raw, e.fields.SeriesName, FieldSeriesName),
		SeriesNo:   e.text(row, raw, e.fields.SeriesNo, FieldSeriesNo),
		PowerValue: e.power(row, raw),
		Raw:        json.RawMessage(raw),
	}

	return sample, nil
}

func (e *Extractor) text(row map[string]interface{}, raw []byte, column, field string) string {
	if v := stringValue(row[column]); v != "" {
		return v
	}

	return e.fallback(raw, field)
}

func (e *Extractor) power(row map[string]interface{}, raw []byte) *float64 {
	if v, ok := numberValue(row[e.fields.Power]); ok {
		return &v
	}

	if s := e.fallback(raw, FieldPower); s != "" {
		if v, ok := numberValue(s); ok {
			return &v
		}
	}

	return nil
}

func (e *Extractor) fallback(raw []byte, field string) string {
	if len(raw) == 0 {
		return ""
	}

	for _, re := range e.patterns[field] {
		if m := re.FindSubmatch(raw); len(m) > 1 {
			if v := strings.TrimSpace(string(m[1])); v != "" {
				return v
			}
		}
	}

	return ""
}

func stringValue(v interface{}) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case json.Number:
		return t.String()
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return ""
	}
}

// numberValue reads a finite number; NaN and infinities count as absent
// because they cannot be encoded as JSON.
func numberValue(v interface{}) (float64, bool) {
	var (
		f   float64
		err error
	)

	switch t := v.(type) {
	case json.Number:
		f, err = t.Float64()
	case float64:
		f = t
	case string:
		f, err = strconv.ParseFloat(strings.TrimSpace(t), 64)
	default:
		return 0, false
	}

	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}

	return f, true
}

// parseTime accepts epoch milliseconds or an RFC3339 string.
func parseTime(v interface{}) (time.Time, bool) {
	switch t := v.(type) {
	case json.Number:
		ms, err := t.Int64()
		if err != nil {
			f, ferr := t.Float64()
			if ferr != nil {
				return time.Time{}, false
			}

			ms = int64(f)
		}

		return time.UnixMilli(ms).UTC(), true
	case float64:
		return time.UnixMilli(int64(t)).UTC(), true
	case string:
		parsed, err := time.Parse(time.RFC3339Nano, t)
		if err != nil {
			return time.Time{}, false
		}

		return parsed.UTC(), true
	default:
		return time.Time{}, false
	}
}
