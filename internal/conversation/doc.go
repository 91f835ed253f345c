// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package conversation manages the collection of chat threads and the
// pointer to the active one.
//
// # Key Types
//
//   - Repository: ordered thread collection with write-through persistence
//   - RepositoryError: sentinel error type (ErrConversationNotFound, ...)
//
// # Usage
//
//	repo := conversation.New(store)
//	id := repo.Create()
//	_ = repo.Append(id, model.NewUserMessage("hello", nil))
//	active, _ := repo.Active()
package conversation
