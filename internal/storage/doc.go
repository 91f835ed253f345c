// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage provides durable key/value persistence for parley.
//
// Everything that must survive a restart goes through the Store interface:
// the serialized conversation collection, the active conversation id and the
// individual settings. Four backends implement it:
//
//   - FileStore: one owner-only file per key, written atomically
//   - BoltStore: a single bbolt bucket in parley.db
//   - SQLiteStore: a kv table in parley.sqlite (pure Go driver)
//   - MemoryStore: process memory, for ephemeral sessions and tests
//
// # Key Types
//
//   - Store: synchronous Get/Set/Remove/Close contract
//   - Backend: backend name accepted by Open
//   - StoreError: comparable error type (ErrInvalidKey, ErrClosed, ...)
//
// # Usage
//
//	store, err := storage.Open(storage.BackendBolt, "~/.parley/data")
//	if err != nil {
//	    return err
//	}
//	defer store.Close()
//
//	doc, err := storage.EncodeConversations(convs)
//	err = store.Set(storage.KeyConversations, doc)
package storage
