// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"regexp"
	"strings"

	"github.com/pkg/errors"
)

// =============================================================================
// STORE CONTRACT
// =============================================================================

// Store is a durable string key/value store. It is the only state that
// survives a restart. All operations are synchronous.
type Store interface {
	// Get returns the value for key and whether it was present.
	Get(key string) (string, bool, error)

	// Set stores value under key, replacing any previous value.
	Set(key, value string) error

	// Remove deletes key. Removing an absent key is not an error.
	Remove(key string) error

	// Close releases the underlying resources.
	Close() error
}

// Keys used by parley.
const (
	KeyConversations      = "conversations"
	KeyActiveConversation = "active_conversation"
	KeyCredential         = "credential"
	KeyModel              = "model"
	KeySystemInstructions = "system_instructions"
	KeyVoiceLanguage      = "voice_language"
	KeyVoicePitch         = "voice_pitch"
	KeyVoiceRate          = "voice_rate"
	KeyVoiceName          = "voice_name"
)

// =============================================================================
// BACKENDS
// =============================================================================

// Backend names a Store implementation.
type Backend string

const (
	BackendFile   Backend = "file"
	BackendBolt   Backend = "bolt"
	BackendSQLite Backend = "sqlite"
	BackendMemory Backend = "memory"
)

// Backends returns all supported backend names.
func Backends() []Backend {
	return []Backend{BackendFile, BackendBolt, BackendSQLite, BackendMemory}
}

// ParseBackend validates a backend name.
func ParseBackend(name string) (Backend, error) {
	b := Backend(strings.ToLower(strings.TrimSpace(name)))
	for _, known := range Backends() {
		if b == known {
			return b, nil
		}
	}
	return "", errors.Wrapf(ErrUnknownBackend, "%q", name)
}

// Open opens the named backend rooted at dir.
func Open(backend Backend, dir string) (Store, error) {
	switch backend {
	case BackendFile:
		return NewFileStore(dir)
	case BackendBolt:
		return NewBoltStore(dir)
	case BackendSQLite:
		return NewSQLiteStore(dir)
	case BackendMemory:
		return NewMemoryStore(), nil
	default:
		return nil, errors.Wrapf(ErrUnknownBackend, "%q", backend)
	}
}

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrInvalidKey is returned for keys outside [a-z0-9_.-].
	ErrInvalidKey = &StoreError{Message: "invalid storage key"}

	// ErrClosed is returned when a closed store is used.
	ErrClosed = &StoreError{Message: "store is closed"}

	// ErrUnknownBackend is returned by Open and ParseBackend.
	ErrUnknownBackend = &StoreError{Message: "unknown storage backend"}
)

// StoreError represents a storage-related error.
// It implements the error interface and can be compared using errors.Is.
type StoreError struct {
	Message string
}

// Error implements the error interface.
func (e *StoreError) Error() string {
	return e.Message
}

// Is implements errors.Is support for comparing store errors.
func (e *StoreError) Is(target error) bool {
	t, ok := target.(*StoreError)
	if !ok {
		return false
	}
	return e.Message == t.Message
}

var keyPattern = regexp.MustCompile(`^[a-z0-9_.-]+$`)

// validateKey keeps keys safe to use as file names and bucket keys.
func validateKey(key string) error {
	if !keyPattern.MatchString(key) || strings.Trim(key, ".") == "" {
		return errors.Wrapf(ErrInvalidKey, "%q", key)
	}
	return nil
}
