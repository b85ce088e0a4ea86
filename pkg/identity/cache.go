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

// Package identity resolves the stable series number shown for each device.
package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/carverauto/siteradar/pkg/kv"
	"github.com/carverauto/siteradar/pkg/logger"
)

const (
	keyPrefix = "seriesNo:"

	// maxGenerateAttempts bounds redraws when a fresh value is already
	// assigned to another device.
	maxGenerateAttempts = 8
)

var errEmptyDeviceID = errors.New("device id is required")

type origin int

const (
	originSynthetic origin = iota
	originTelemetry
)

type entry struct {
	value  string
	origin origin
	// persisted is false while the value only lives in memory.
	persisted bool
}

// Cache maps device ids to series numbers. Values come from telemetry when
// it carries one, otherwise a synthetic identifier is generated once and
// persisted through the kv.Store so it survives restarts.
//
// A value handed out while the store was unreachable is provisional: once
// the store answers again, a telemetry value is written over the record and
// a synthetic one yields to whatever the store already holds.
type Cache struct {
	store    kv.Store
	logger   logger.Logger
	generate func() string

	mu    sync.Mutex
	locks map[string]*sync.Mutex
	memo  map[string]entry
	inUse map[string]int
}

// NewCache returns a Cache backed by store.
func NewCache(store kv.Store, log logger.Logger) *Cache {
	return &Cache{
		store:    store,
		logger:   log,
		generate: GenerateSeriesNo,
		locks:    make(map[string]*sync.Mutex),
		memo:     make(map[string]entry),
		inUse:    make(map[string]int),
	}
}

// Key returns the kv key holding deviceID's series number.
func Key(deviceID string) string {
	return keyPrefix + deviceID
}

// Get reads the persisted value for deviceID.
func (c *Cache) Get(ctx context.Context, deviceID string) (string, bool, error) {
	if deviceID == "" {
		return "", false, errEmptyDeviceID
	}

	if e, ok := c.cached(deviceID); ok && e.persisted {
		return e.value, true, nil
	}

	raw, found, err := c.store.Get(ctx, Key(deviceID))
	if err != nil {
		return "", false, fmt.Errorf("failed to read series number for %s: %w", deviceID, err)
	}

	if !found {
		return "", false, nil
	}

	return string(raw), true, nil
}

// Put persists value for deviceID, replacing whatever was stored.
func (c *Cache) Put(ctx context.Context, deviceID, value string) error {
	if deviceID == "" {
		return errEmptyDeviceID
	}

	lock := c.keyLock(deviceID)
	lock.Lock()
	defer lock.Unlock()

	return c.putLocked(ctx, deviceID, value)
}

// Ensure returns the series number to display for deviceID. It never fails:
// store errors are logged and the in-memory value is returned, with
// persistence retried on a later call.
func (c *Cache) Ensure(ctx context.Context, deviceID, fromTelemetry string) string {
	fromTelemetry = strings.TrimSpace(fromTelemetry)

	lock := c.keyLock(deviceID)
	lock.Lock()
	defer lock.Unlock()

	if fromTelemetry != "" {
		return c.adoptLocked(ctx, deviceID, fromTelemetry)
	}

	if e, ok := c.cached(deviceID); ok {
		if e.persisted {
			return e.value
		}

		return c.retryLocked(ctx, deviceID, e)
	}

	raw, found, err := c.store.Get(ctx, Key(deviceID))
	if err == nil && found && len(raw) > 0 {
		c.remember(deviceID, entry{value: string(raw), persisted: true})

		return string(raw)
	}

	if err != nil {
		recordStoreError(ctx, "get")
		c.logger.Warn().Err(err).Str("device_id", deviceID).Msg("Identity store unavailable, using in-memory series number")

		value := c.newSeriesNo()
		c.remember(deviceID, entry{value: value})
		recordGenerated(ctx, false)

		return value
	}

	return c.createLocked(ctx, deviceID, c.newSeriesNo())
}

func (c *Cache) adoptLocked(ctx context.Context, deviceID, value string) string {
	if e, ok := c.cached(deviceID); ok && e.persisted && e.value == value {
		return value
	}

	if err := c.putLocked(ctx, deviceID, value); err != nil {
		c.logger.Warn().Err(err).Str("device_id", deviceID).Msg("Failed to persist series number from telemetry")
		c.remember(deviceID, entry{value: value, origin: originTelemetry})
	}

	recordAdopted(ctx)

	return value
}

func (c *Cache) putLocked(ctx context.Context, deviceID, value string) error {
	if err := c.store.Put(ctx, Key(deviceID), []byte(value)); err != nil {
		recordStoreError(ctx, "put")

		return fmt.Errorf("failed to persist series number for %s: %w", deviceID, err)
	}

	c.remember(deviceID, entry{value: value, origin: originTelemetry, persisted: true})

	return nil
}

// createLocked stores a freshly generated value unless another writer got
// there first, in which case the stored value wins.
func (c *Cache) createLocked(ctx context.Context, deviceID, value string) string {
	err := c.store.Create(ctx, Key(deviceID), []byte(value))

	switch {
	case err == nil:
		c.remember(deviceID, entry{value: value, persisted: true})
		recordGenerated(ctx, true)

		c.logger.Info().Str("device_id", deviceID).Str("series_no", value).Msg("Generated synthetic series number")

		return value
	case errors.Is(err, kv.ErrKeyExists):
		recordConflict(ctx)

		if stored, ok := c.readStored(ctx, deviceID); ok {
			return stored
		}

		c.logger.Warn().Str("device_id", deviceID).Msg("Lost series number race but could not read the winner")
	default:
		recordStoreError(ctx, "create")
		c.logger.Warn().Err(err).Str("device_id", deviceID).Msg("Failed to persist synthetic series number")
	}

	c.remember(deviceID, entry{value: value})
	recordGenerated(ctx, false)

	return value
}

// retryLocked tries to persist a value handed out while the store was
// unreachable. Telemetry values overwrite the record. Synthetic values are
// only created; if the store already holds one, that persisted value
// replaces the provisional one.
func (c *Cache) retryLocked(ctx context.Context, deviceID string, e entry) string {
	if e.origin == originTelemetry {
		if err := c.putLocked(ctx, deviceID, e.value); err != nil {
			c.logger.Debug().Err(err).Str("device_id", deviceID).Msg("Identity store still unavailable")
		}

		return e.value
	}

	err := c.store.Create(ctx, Key(deviceID), []byte(e.value))

	switch {
	case err == nil:
		c.remember(deviceID, entry{value: e.value, persisted: true})
	case errors.Is(err, kv.ErrKeyExists):
		recordConflict(ctx)

		if stored, ok := c.readStored(ctx, deviceID); ok {
			c.logger.Warn().
				Str("device_id", deviceID).
				Str("provisional", e.value).
				Str("series_no", stored).
				Msg("Replacing provisional series number with the persisted one")

			return stored
		}
	default:
		recordStoreError(ctx, "create")
		c.logger.Debug().Err(err).Str("device_id", deviceID).Msg("Identity store still unavailable")
	}

	return e.value
}

// readStored loads and memoises the persisted value after a create conflict.
func (c *Cache) readStored(ctx context.Context, deviceID string) (string, bool) {
	raw, found, err := c.store.Get(ctx, Key(deviceID))
	if err != nil || !found || len(raw) == 0 {
		return "", false
	}

	c.remember(deviceID, entry{value: string(raw), persisted: true})

	return string(raw), true
}

// newSeriesNo draws a value not already assigned to another device in this
// process. Uniqueness across processes is left to the store's create.
func (c *Cache) newSeriesNo() string {
	c.mu.Lock()
	defer c.mu.Unlock()

	var value string

	for i := 0; i < maxGenerateAttempts; i++ {
		value = c.generate()
		if c.inUse[value] == 0 {
			return value
		}
	}

	return value
}

func (c *Cache) cached(deviceID string) (entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.memo[deviceID]

	return e, ok
}

func (c *Cache) remember(deviceID string, e entry) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if prev, ok := c.memo[deviceID]; ok {
		if prev.value == e.value {
			c.memo[deviceID] = e

			return
		}

		if c.inUse[prev.value]--; c.inUse[prev.value] <= 0 {
			delete(c.inUse, prev.value)
		}
	}

	c.memo[deviceID] = e
	c.inUse[e.value]++
}

func (c *Cache) keyLock(deviceID string) *sync.Mutex {
	c.mu.Lock()
	defer c.mu.Unlock()

	l, ok := c.locks[deviceID]
	if !ok {
		l = &sync.Mutex{}
		c.locks[deviceID] = l
	}

	return l
}
