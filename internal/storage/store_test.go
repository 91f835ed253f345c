// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// backendCases opens every backend in a fresh directory.
func backendCases(t *testing.T) map[Backend]func(dir string) (Store, error) {
	t.Helper()
	return map[Backend]func(dir string) (Store, error){
		BackendFile:   func(dir string) (Store, error) { return NewFileStore(dir) },
		BackendBolt:   func(dir string) (Store, error) { return NewBoltStore(dir) },
		BackendSQLite: func(dir string) (Store, error) { return NewSQLiteStore(dir) },
		BackendMemory: func(string) (Store, error) { return NewMemoryStore(), nil },
	}
}

// =============================================================================
// CONTRACT TESTS (ALL BACKENDS)
// =============================================================================

func TestStore_Contract(t *testing.T) {
	for name, open := range backendCases(t) {
		t.Run(string(name), func(t *testing.T) {
			store, err := open(t.TempDir())
			require.NoError(t, err)
			defer store.Close()

			_, ok, err := store.Get(KeyModel)
			require.NoError(t, err)
			assert.False(t, ok, "fresh store should not contain keys")

			require.NoError(t, store.Set(KeyModel, "gemini-2.0-flash"))
			v, ok, err := store.Get(KeyModel)
			require.NoError(t, err)
			assert.True(t, ok)
			assert.Equal(t, "gemini-2.0-flash", v)

			require.NoError(t, store.Set(KeyModel, "gpt-4o"))
			v, _, _ = store.Get(KeyModel)
			assert.Equal(t, "gpt-4o", v)

			require.NoError(t, store.Set(KeySystemInstructions, ""))
			v, ok, err = store.Get(KeySystemInstructions)
			require.NoError(t, err)
			assert.True(t, ok, "empty values are still present")
			assert.Equal(t, "", v)

			require.NoError(t, store.Remove(KeyModel))
			_, ok, err = store.Get(KeyModel)
			require.NoError(t, err)
			assert.False(t, ok)

			assert.NoError(t, store.Remove(KeyModel), "removing an absent key is not an error")
		})
	}
}

func TestStore_LargeUnicodeValue(t *testing.T) {
	value := strings.Repeat("héllo 世界 🌍 ", 20000)
	for name, open := range backendCases(t) {
		t.Run(string(name), func(t *testing.T) {
			store, err := open(t.TempDir())
			require.NoError(t, err)
			defer store.Close()

			require.NoError(t, store.Set(KeyConversations, value))
			got, ok, err := store.Get(KeyConversations)
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, value, got)
		})
	}
}

func TestStore_InvalidKeys(t *testing.T) {
	for name, open := range backendCases(t) {
		t.Run(string(name), func(t *testing.T) {
			store, err := open(t.TempDir())
			require.NoError(t, err)
			defer store.Close()

			for _, key := range []string{"", "..", "../escape", "UPPER", "a/b"} {
				assert.ErrorIs(t, store.Set(key, "x"), ErrInvalidKey, "key %q", key)
				_, _, err := store.Get(key)
				assert.ErrorIs(t, err, ErrInvalidKey, "key %q", key)
			}
		})
	}
}

func TestStore_UseAfterClose(t *testing.T) {
	for name, open := range backendCases(t) {
		t.Run(string(name), func(t *testing.T) {
			store, err := open(t.TempDir())
			require.NoError(t, err)
			require.NoError(t, store.Close())

			assert.ErrorIs(t, store.Set(KeyModel, "x"), ErrClosed)
		})
	}
}

func TestStore_SurvivesReopen(t *testing.T) {
	for name, open := range backendCases(t) {
		if name == BackendMemory {
			continue
		}
		t.Run(string(name), func(t *testing.T) {
			dir := t.TempDir()

			store, err := open(dir)
			require.NoError(t, err)
			require.NoError(t, store.Set(KeyCredential, "secret"))
			require.NoError(t, store.Close())

			reopened, err := open(dir)
			require.NoError(t, err)
			defer reopened.Close()

			v, ok, err := reopened.Get(KeyCredential)
			require.NoError(t, err)
			assert.True(t, ok)
			assert.Equal(t, "secret", v)
		})
	}
}

// =============================================================================
// BACKEND-SPECIFIC TESTS
// =============================================================================

func TestFileStore_OwnerOnlyFiles(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("file modes are not enforced on windows")
	}
	dir := t.TempDir()
	store, err := NewFileStore(dir)
	require.NoError(t, err)

	require.NoError(t, store.Set(KeyCredential, "secret"))

	info, err := os.Stat(filepath.Join(dir, KeyCredential))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestOpen(t *testing.T) {
	for _, b := range Backends() {
		store, err := Open(b, t.TempDir())
		require.NoError(t, err, "backend %s", b)
		require.NoError(t, store.Close())
	}

	_, err := Open(Backend("redis"), t.TempDir())
	assert.ErrorIs(t, err, ErrUnknownBackend)
}

func TestParseBackend(t *testing.T) {
	b, err := ParseBackend(" SQLite ")
	require.NoError(t, err)
	assert.Equal(t, BackendSQLite, b)

	_, err = ParseBackend("postgres")
	assert.ErrorIs(t, err, ErrUnknownBackend)
}

func TestStoreError_Is(t *testing.T) {
	assert.ErrorIs(t, &StoreError{Message: "store is closed"}, ErrClosed)
	assert.NotErrorIs(t, ErrClosed, ErrInvalidKey)
}
