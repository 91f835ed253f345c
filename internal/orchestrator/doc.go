// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package orchestrator runs chat turns: it records the user's message,
// calls the model gateway in the background and records the reply or an
// error notice in the conversation the turn came from.
//
// Only one turn is in flight at a time across all conversations. A
// submission made while a turn is pending is dropped.
package orchestrator
