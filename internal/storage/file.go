// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"

	"github.com/jeranaias/parley/internal/util"
)

// FileStore keeps one file per key inside a private directory. Writes go
// through util.AtomicWriteFile so a crash leaves either the old or the new
// value on disk.
type FileStore struct {
	// BaseDir is the directory holding the value files.
	// Default: ~/.parley/data/
	BaseDir string

	mu     sync.RWMutex
	closed bool
}

// NewFileStore creates the directory if needed and returns a store over it.
func NewFileStore(baseDir string) (*FileStore, error) {
	if err := os.MkdirAll(baseDir, util.PrivateDirPerm); err != nil {
		return nil, errors.Wrap(err, "create store directory")
	}
	return &FileStore{BaseDir: baseDir}, nil
}

// Get implements Store.
func (s *FileStore) Get(key string) (string, bool, error) {
	if err := validateKey(key); err != nil {
		return "", false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return "", false, ErrClosed
	}

	data, err := os.ReadFile(s.filePath(key))
	if err != nil {
		if os.IsNotExist(err) {
			return "", false, nil
		}
		return "", false, errors.Wrapf(err, "read %s", key)
	}
	return string(data), true, nil
}

// Set implements Store.
func (s *FileStore) Set(key, value string) error {
	if err := validateKey(key); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}

	// SECURITY: values include the credential, so files are owner-only.
	if err := util.AtomicWriteFile(s.filePath(key), []byte(value), 0600); err != nil {
		return errors.Wrapf(err, "write %s", key)
	}
	return nil
}

// Remove implements Store.
func (s *FileStore) Remove(key string) error {
	if err := validateKey(key); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}

	if err := os.Remove(s.filePath(key)); err != nil && !os.IsNotExist(err) {
		return errors.Wrapf(err, "remove %s", key)
	}
	return nil
}

// Close implements Store.
func (s *FileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// filePath returns the file path for a key.
func (s *FileStore) filePath(key string) string {
	return filepath.Join(s.BaseDir, key)
}
