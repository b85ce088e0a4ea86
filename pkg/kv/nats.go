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

package kv

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/carverauto/siteradar/pkg/logger"
	"github.com/carverauto/siteradar/pkg/models"
	"github.com/carverauto/siteradar/pkg/natsutil"
)

const (
	defaultBucket         = "siteradar_identity"
	defaultConnectTimeout = 5 * time.Second
)

// NATSConfig configures the JetStream key/value bucket used by NatsStore.
type NATSConfig struct {
	URL            string            `json:"url"`
	Bucket         string            `json:"bucket,omitempty"`
	Domain         string            `json:"domain,omitempty"`
	CredsFile      string            `json:"creds_file,omitempty"`
	Replicas       int               `json:"replicas,omitempty"`
	ConnectTimeout models.Duration   `json:"connect_timeout,omitempty"`
	TLS            *models.TLSConfig `json:"tls,omitempty"`
	ServerName     string            `json:"server_name,omitempty"`
}

// Validate implements config.Validator and fills defaults.
func (c *NATSConfig) Validate() error {
	if c.URL == "" {
		return errNatsURLRequired
	}

	if c.Bucket == "" {
		c.Bucket = defaultBucket
	}

	if time.Duration(c.ConnectTimeout) == 0 {
		c.ConnectTimeout = models.Duration(defaultConnectTimeout)
	}

	return nil
}

// NatsStore is a Store backed by a NATS JetStream key/value bucket.
type NatsStore struct {
	nc     *nats.Conn
	kv     jetstream.KeyValue
	logger logger.Logger
}

var _ Store = (*NatsStore)(nil)

// NewNatsStore connects to NATS and opens (or creates) the configured bucket.
func NewNatsStore(ctx context.Context, cfg *NATSConfig, log logger.Logger) (*NatsStore, error) {
	if cfg == nil {
		return nil, errNatsURLRequired
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	opts := []nats.Option{
		nats.Name("siteradar-kv"),
		nats.Timeout(time.Duration(cfg.ConnectTimeout)),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Warn().Err(err).Msg("NATS KV connection lost")
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS KV connection re-established")
		}),
	}

	if cfg.CredsFile != "" {
		opts = append(opts, nats.UserCredentials(cfg.CredsFile))
	}

	if cfg.TLS != nil {
		tlsConfig, err := natsutil.TLSConfig(cfg.TLS, cfg.ServerName)
		if err != nil {
			return nil, fmt.Errorf("failed to build NATS TLS config: %w", err)
		}

		opts = append(opts, nats.Secure(tlsConfig))
	}

	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	var js jetstream.JetStream
	if cfg.Domain != "" {
		js, err = jetstream.NewWithDomain(nc, cfg.Domain)
	} else {
		js, err = jetstream.New(nc)
	}

	if err != nil {
		nc.Close()

		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	bucketCfg := jetstream.KeyValueConfig{
		Bucket:      cfg.Bucket,
		Description: "SiteRadar persisted device identifiers",
		History:     1,
		Storage:     jetstream.FileStorage,
	}

	if cfg.Replicas > 0 {
		bucketCfg.Replicas = cfg.Replicas
	}

	kv, err := js.CreateOrUpdateKeyValue(ctx, bucketCfg)
	if err != nil {
		nc.Close()

		return nil, fmt.Errorf("failed to create KV bucket %s: %w", cfg.Bucket, err)
	}

	log.Info().Str("bucket", cfg.Bucket).Str("url", cfg.URL).Msg("Opened NATS KV bucket")

	return &NatsStore{
		nc:     nc,
		kv:     kv,
		logger: log,
	}, nil
}

func (n *NatsStore) Get(ctx context.Context, key string) (value []byte, found bool, err error) {
	var entry jetstream.KeyValueEntry

	entry, err = n.kv.Get(ctx, encodeKey(key))
	if errors.Is(err, jetstream.ErrKeyNotFound) || errors.Is(err, jetstream.ErrKeyDeleted) {
		return nil, false, nil
	}

	if err != nil {
		return nil, false, fmt.Errorf("failed to get key %s: %w", key, err)
	}

	return entry.Value(), true, nil
}

func (n *NatsStore) Put(ctx context.Context, key string, value []byte) error {
	if _, err := n.kv.Put(ctx, encodeKey(key), value); err != nil {
		return fmt.Errorf("failed to put key %s: %w", key, err)
	}

	return nil
}

func (n *NatsStore) Create(ctx context.Context, key string, value []byte) error {
	_, err := n.kv.Create(ctx, encodeKey(key), value)
	if errors.Is(err, jetstream.ErrKeyExists) {
		return ErrKeyExists
	}

	if err != nil {
		return fmt.Errorf("failed to create key %s: %w", key, err)
	}

	return nil
}

func (n *NatsStore) Delete(ctx context.Context, key string) error {
	err := n.kv.Delete(ctx, encodeKey(key))
	if err != nil && !errors.Is(err, jetstream.ErrKeyNotFound) {
		return fmt.Errorf("failed to delete key %s: %w", key, err)
	}

	return nil
}

func (n *NatsStore) Close() error {
	n.nc.Close()

	return nil
}

// encodeKey maps arbitrary keys onto the JetStream key alphabet.
// Bytes outside [A-Za-z0-9_-/] are written as =XX so the mapping stays reversible.
func encodeKey(key string) string {
	var b strings.Builder

	b.Grow(len(key))

	for i := 0; i < len(key); i++ {
		c := key[i]

		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '_', c == '-', c == '/':
			b.WriteByte(c)
		default:
			fmt.Fprintf(&b, "=%02X", c)
		}
	}

	return b.String()
}
