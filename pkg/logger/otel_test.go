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

package logger

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	otellog "go.opentelemetry.io/otel/log"
)

func TestNewOTELWriterValidation(t *testing.T) {
	_, err := NewOTELWriter(context.Background(), OTelConfig{})
	assert.ErrorIs(t, err, ErrOTelLoggingDisabled)

	_, err = NewOTELWriter(context.Background(), OTelConfig{Enabled: true})
	assert.ErrorIs(t, err, ErrOTelEndpointRequired)
}

func TestInitializeMetricsDisabled(t *testing.T) {
	_, err := InitializeMetrics(context.Background(), MetricsConfig{})
	assert.ErrorIs(t, err, ErrOTelMetricsDisabled)
}

func TestInitializeTracingWithoutExporter(t *testing.T) {
	tp, err := InitializeTracing(context.Background(), TracingConfig{ServiceName: "siteradar-test"})
	require.NoError(t, err)

	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	_, span := GetTracer("test").Start(context.Background(), "op")
	defer span.End()

	assert.True(t, span.SpanContext().IsValid())
}

func TestBuildRecord(t *testing.T) {
	entry := map[string]interface{}{
		"time":      "2026-01-02T03:04:05Z",
		"level":     "warn",
		"message":   "probe failed",
		"component": "checker",
		"service":   "broker",
		"latency":   12.5,
	}

	record, scope := buildRecord(entry)

	assert.Equal(t, "checker", scope)
	assert.Equal(t, otellog.SeverityWarn, record.Severity())
	assert.Equal(t, "warn", record.SeverityText())
	assert.Equal(t, "probe failed", record.Body().AsString())
	assert.Equal(t, 2026, record.Timestamp().Year())

	attrs := map[string]string{}
	record.WalkAttributes(func(kv otellog.KeyValue) bool {
		attrs[kv.Key] = kv.Value.AsString()
		return true
	})

	assert.Equal(t, map[string]string{"service": "broker", "latency": "12.5"}, attrs)
}

func TestBuildRecordDefaultScope(t *testing.T) {
	_, scope := buildRecord(map[string]interface{}{"message": "x"})
	assert.Equal(t, defaultLoggerScope, scope)
}

func TestTruncateString(t *testing.T) {
	got, cut := truncateString("short", 10)
	assert.False(t, cut)
	assert.Equal(t, "short", got)

	got, cut = truncateString(strings.Repeat("a", 20), 10)
	assert.True(t, cut)
	assert.Equal(t, "aaaaaaa...", got)

	got, cut = truncateString("héllo", 2)
	assert.True(t, cut)
	assert.Equal(t, "h", got)
}

func TestFormatAttributeValue(t *testing.T) {
	v, cut := formatAttributeValue(nil)
	assert.Equal(t, "null", v)
	assert.False(t, cut)

	v, _ = formatAttributeValue(true)
	assert.Equal(t, "true", v)

	v, _ = formatAttributeValue(map[string]interface{}{"k": "v"})
	assert.Equal(t, `{"k":"v"}`, v)

	v, cut = formatAttributeValue(strings.Repeat("x", maxAttributeValueLength+1))
	assert.True(t, cut)
	assert.Len(t, v, maxAttributeValueLength)
}

func TestMapZerologLevelToOTEL(t *testing.T) {
	assert.Equal(t, otellog.SeverityTrace, mapZerologLevelToOTEL("trace"))
	assert.Equal(t, otellog.SeverityError, mapZerologLevelToOTEL("ERROR"))
	assert.Equal(t, otellog.SeverityFatal, mapZerologLevelToOTEL("panic"))
	assert.Equal(t, otellog.SeverityInfo, mapZerologLevelToOTEL("other"))
}

type failingWriter struct{}

var errWriteFailed = errors.New("write failed")

func (failingWriter) Write([]byte) (int, error) { return 0, errWriteFailed }

func TestMultiWriter(t *testing.T) {
	var a, b bytes.Buffer

	n, err := NewMultiWriter(&a, &b).Write([]byte("line"))
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Equal(t, "line", a.String())
	assert.Equal(t, "line", b.String())

	_, err = NewMultiWriter(&a, failingWriter{}).Write([]byte("x"))
	assert.ErrorIs(t, err, errWriteFailed)
}
