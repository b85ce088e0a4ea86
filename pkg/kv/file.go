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
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// FileStore persists keys as a JSON object in a single file.
// It suits single-node installs that run without NATS.
type FileStore struct {
	path   string
	mu     sync.Mutex
	data   map[string]string
	closed bool
}

var _ Store = (*FileStore)(nil)

// NewFileStore loads path if it exists; the file is created on first write.
func NewFileStore(path string) (*FileStore, error) {
	if path == "" {
		return nil, errFilePathRequired
	}

	fs := &FileStore{
		path: path,
		data: make(map[string]string),
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fs, nil
		}

		return nil, fmt.Errorf("failed to read kv file '%s': %w", path, err)
	}

	if len(raw) == 0 {
		return fs, nil
	}

	if err := json.Unmarshal(raw, &fs.data); err != nil {
		return nil, fmt.Errorf("failed to unmarshal kv file '%s': %w", path, err)
	}

	return fs, nil
}

func (f *FileStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return nil, false, errStoreClosed
	}

	v, ok := f.data[key]
	if !ok {
		return nil, false, nil
	}

	return []byte(v), true, nil
}

func (f *FileStore) Put(_ context.Context, key string, value []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return errStoreClosed
	}

	prev, had := f.data[key]
	f.data[key] = string(value)

	if err := f.flushLocked(); err != nil {
		if had {
			f.data[key] = prev
		} else {
			delete(f.data, key)
		}

		return err
	}

	return nil
}

func (f *FileStore) Create(_ context.Context, key string, value []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return errStoreClosed
	}

	if _, ok := f.data[key]; ok {
		return ErrKeyExists
	}

	f.data[key] = string(value)

	if err := f.flushLocked(); err != nil {
		delete(f.data, key)

		return err
	}

	return nil
}

func (f *FileStore) Delete(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return errStoreClosed
	}

	prev, ok := f.data[key]
	if !ok {
		return nil
	}

	delete(f.data, key)

	if err := f.flushLocked(); err != nil {
		f.data[key] = prev

		return err
	}

	return nil
}

func (f *FileStore) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.closed = true

	return nil
}

// flushLocked rewrites the file through a temp file and rename so readers never see a torn write.
func (f *FileStore) flushLocked() error {
	payload, err := json.MarshalIndent(f.data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal kv data: %w", err)
	}

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("failed to create kv directory '%s': %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(f.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp kv file: %w", err)
	}

	tmpName := tmp.Name()

	if _, err := tmp.Write(payload); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)

		return fmt.Errorf("failed to write temp kv file: %w", err)
	}

	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)

		return fmt.Errorf("failed to sync temp kv file: %w", err)
	}

	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)

		return fmt.Errorf("failed to close temp kv file: %w", err)
	}

	if err := os.Rename(tmpName, f.path); err != nil {
		_ = os.Remove(tmpName)

		return fmt.Errorf("failed to replace kv file '%s': %w", f.path, err)
	}

	return nil
}
