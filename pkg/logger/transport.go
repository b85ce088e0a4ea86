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
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"

	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploggrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"google.golang.org/grpc/credentials"

	"github.com/carverauto/siteradar/pkg/models"
)

var errFailedToParseCACert = errors.New("failed to parse CA certificate")

// otlpTransport is the collector connection shared by the log, trace and
// metric exporters.
type otlpTransport struct {
	endpoint string
	headers  map[string]string
	insecure bool
	creds    credentials.TransportCredentials
}

func newOTLPTransport(config *OTelConfig) (*otlpTransport, error) {
	if config.Endpoint == "" {
		return nil, ErrOTelEndpointRequired
	}

	t := &otlpTransport{
		endpoint: config.Endpoint,
		headers:  config.Headers,
		insecure: config.Insecure,
	}

	if !config.Insecure && config.TLS != nil {
		tlsConfig, err := clientTLSConfig(config.TLS)
		if err != nil {
			return nil, fmt.Errorf("failed to setup TLS configuration: %w", err)
		}

		t.creds = credentials.NewTLS(tlsConfig)
	}

	return t, nil
}

func (t *otlpTransport) logOptions() []otlploggrpc.Option {
	opts := []otlploggrpc.Option{otlploggrpc.WithEndpoint(t.endpoint)}

	switch {
	case t.insecure:
		opts = append(opts, otlploggrpc.WithInsecure())
	case t.creds != nil:
		opts = append(opts, otlploggrpc.WithTLSCredentials(t.creds))
	}

	if len(t.headers) > 0 {
		opts = append(opts, otlploggrpc.WithHeaders(t.headers))
	}

	return opts
}

func (t *otlpTransport) traceOptions() []otlptracegrpc.Option {
	opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(t.endpoint)}

	switch {
	case t.insecure:
		opts = append(opts, otlptracegrpc.WithInsecure())
	case t.creds != nil:
		opts = append(opts, otlptracegrpc.WithTLSCredentials(t.creds))
	}

	if len(t.headers) > 0 {
		opts = append(opts, otlptracegrpc.WithHeaders(t.headers))
	}

	return opts
}

func (t *otlpTransport) metricOptions() []otlpmetricgrpc.Option {
	opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithEndpoint(t.endpoint)}

	switch {
	case t.insecure:
		opts = append(opts, otlpmetricgrpc.WithInsecure())
	case t.creds != nil:
		opts = append(opts, otlpmetricgrpc.WithTLSCredentials(t.creds))
	}

	if len(t.headers) > 0 {
		opts = append(opts, otlpmetricgrpc.WithHeaders(t.headers))
	}

	return opts
}

// clientTLSConfig loads an optional client certificate and CA bundle. Unlike
// the NATS connection the collector does not require mTLS.
func clientTLSConfig(sec *models.TLSConfig) (*tls.Config, error) {
	config := &tls.Config{MinVersion: tls.VersionTLS12}

	if sec.CertFile != "" && sec.KeyFile != "" {
		cert, err := tls.LoadX509KeyPair(sec.CertFile, sec.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load client certificate: %w", err)
		}

		config.Certificates = []tls.Certificate{cert}
	}

	if sec.CAFile == "" {
		return config, nil
	}

	caCert, err := os.ReadFile(sec.CAFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read CA certificate: %w", err)
	}

	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(caCert) {
		return nil, errFailedToParseCACert
	}

	config.RootCAs = pool

	return config, nil
}
