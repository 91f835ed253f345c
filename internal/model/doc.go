// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for conversations and messages.
//
// This package defines the core domain types shared by the repository, the
// request builder and the user interfaces.
//
// # Key Types
//
//   - Conversation: a titled, ordered thread of messages with a stable ID
//   - Message: a single user or assistant turn with optional image attachment
//   - Attachment: an inline image carried as MIME type plus base64 payload
//   - ModelInfo: catalog entry for a hosted model (ID, provider, context size)
//   - Role: message role enumeration (user, assistant)
//
// # Usage
//
// Create a conversation and derive its title from the first user message:
//
//	conv := model.NewConversation()
//	msg := model.NewUserMessage("Hello there, how are you today", nil)
//	conv.Messages = append(conv.Messages, msg)
//	conv.Title = model.DeriveTitle(msg.Text) // "Hello there, how are..."
//
// Resolve a short model name:
//
//	info, ok := model.GetModelInfo("flash")
package model
