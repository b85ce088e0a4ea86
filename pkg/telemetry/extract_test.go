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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carverauto/siteradar/pkg/models"
)

func newTestExtractor(t *testing.T) *Extractor {
	t.Helper()

	e, err := NewExtractor(FieldMapping{}, nil)
	require.NoError(t, err)

	return e
}

func TestExtractStructuredFieldsWin(t *testing.T) {
	e := newTestExtractor(t)

	row := map[string]interface{}{
		"time":        json.Number("1700000000000"),
		"location":    "Bangkok",
		"series_name": "KSAVE Main",
		"series_no":   "1234567890",
		"power":       json.Number("102"),
		"message":     "location=Chiang Mai series_no=999 power=1",
	}

	raw, err := json.Marshal(row)
	require.NoError(t, err)

	sample, err := e.Extract("KSAVE01", row, raw)
	require.NoError(t, err)

	assert.Equal(t, "KSAVE01", sample.DeviceID)
	assert.Equal(t, time.UnixMilli(1700000000000).UTC(), sample.ObservedAt)
	assert.Equal(t, "Bangkok", sample.Location)
	assert.Equal(t, "KSAVE Main", sample.SeriesName)
	assert.Equal(t, "1234567890", sample.SeriesNo)
	require.NotNil(t, sample.PowerValue)
	assert.InDelta(t, 102.0, *sample.PowerValue, 1e-9)
	assert.JSONEq(t, string(raw), string(sample.Raw))
}

func TestExtractFallsBackToPatterns(t *testing.T) {
	e := newTestExtractor(t)

	row := map[string]interface{}{
		"time":    "2026-03-01T10:00:00Z",
		"payload": "loc: Chiang Mai; serialNo=KS-77; watts=55.5",
	}

	raw, err := json.Marshal(row)
	require.NoError(t, err)

	sample, err := e.Extract("KSAVE02", row, raw)
	require.NoError(t, err)

	assert.Equal(t, "Chiang Mai", sample.Location)
	assert.Equal(t, "KS-77", sample.SeriesNo)
	require.NotNil(t, sample.PowerValue)
	assert.InDelta(t, 55.5, *sample.PowerValue, 1e-9)
	assert.Empty(t, sample.SeriesName)
}

func TestExtractAbsentFieldsStayAbsent(t *testing.T) {
	e := newTestExtractor(t)

	row := map[string]interface{}{
		"time":  json.Number("1700000000000"),
		"power": "n/a",
	}

	raw, err := json.Marshal(row)
	require.NoError(t, err)

	sample, err := e.Extract("KSAVE03", row, raw)
	require.NoError(t, err)

	assert.Nil(t, sample.PowerValue)
	assert.Empty(t, sample.Location)
	assert.Empty(t, sample.SeriesNo)
	assert.Empty(t, sample.SeriesName)
}

func TestExtractPowerAsNumericString(t *testing.T) {
	e := newTestExtractor(t)

	row := map[string]interface{}{"time": json.Number("1"), "power": " 7.25 "}

	sample, err := e.Extract("KSAVE04", row, nil)
	require.NoError(t, err)
	require.NotNil(t, sample.PowerValue)
	assert.InDelta(t, 7.25, *sample.PowerValue, 1e-9)
}

func TestExtractZeroPowerIsPresent(t *testing.T) {
	e := newTestExtractor(t)

	sample, err := e.Extract("KSAVE05", map[string]interface{}{"time": json.Number("1"), "power": json.Number("0")}, nil)
	require.NoError(t, err)
	require.NotNil(t, sample.PowerValue)
	assert.Zero(t, *sample.PowerValue)
}

func TestExtractRequiresTime(t *testing.T) {
	e := newTestExtractor(t)

	_, err := e.Extract("KSAVE06", map[string]interface{}{"power": json.Number("1")}, nil)
	assert.ErrorIs(t, err, errMissingTime)

	_, err = e.Extract("KSAVE06", map[string]interface{}{"time": "yesterday"}, nil)
	assert.ErrorIs(t, err, errMissingTime)
}

func TestExtractCustomMapping(t *testing.T) {
	e, err := NewExtractor(FieldMapping{Location: "site", Power: "kw"}, map[string][]string{
		FieldSeriesNo: {`meter#(\d+)`},
	})
	require.NoError(t, err)

	row := map[string]interface{}{
		"time": json.Number("1"),
		"site": "Phuket",
		"kw":   json.Number("3"),
		"note": "meter#4455 series_no=1",
	}

	raw, err := json.Marshal(row)
	require.NoError(t, err)

	sample, err := e.Extract("KSAVE07", row, raw)
	require.NoError(t, err)

	assert.Equal(t, "Phuket", sample.Location)
	assert.Equal(t, "4455", sample.SeriesNo)
	require.NotNil(t, sample.PowerValue)
	assert.InDelta(t, 3.0, *sample.PowerValue, 1e-9)
}

func TestNewExtractorRejectsBadPatterns(t *testing.T) {
	_, err := NewExtractor(FieldMapping{}, map[string][]string{"colour": {`x`}})
	assert.ErrorIs(t, err, errUnknownPatternField)

	_, err = NewExtractor(FieldMapping{}, map[string][]string{FieldPower: {`(`}})
	assert.Error(t, err)
}

func TestExtractNonFinitePowerIsAbsent(t *testing.T) {
	for _, value := range []string{"NaN", "Inf", "+Inf", "-Infinity"} {
		t.Run(value, func(t *testing.T) {
			e := newTestExtractor(t)

			sample, err := e.Extract("KSAVE05", map[string]interface{}{"time": json.Number("1"), "power": value}, nil)
			require.NoError(t, err)
			assert.Nil(t, sample.PowerValue)

			_, err = json.Marshal(models.DeviceView{DeviceID: "KSAVE05", PowerValue: sample.PowerValue})
			assert.NoError(t, err)
		})
	}

	e, err := NewExtractor(FieldMapping{}, map[string][]string{FieldPower: {`power=(\w+)`}})
	require.NoError(t, err)

	raw := []byte(`{"payload":"power=NaN"}`)

	sample, err := e.Extract("KSAVE05", map[string]interface{}{"time": json.Number("1")}, raw)
	require.NoError(t, err)
	assert.Nil(t, sample.PowerValue)
}
