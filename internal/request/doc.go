// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package request builds provider-neutral model requests from a
// conversation snapshot and a new user submission.
//
// # Key Types
//
//   - Builder: creates a TurnRequest per turn
//   - TurnRequest: KindMultiTurn (history, system instruction, output cap)
//     or KindSingleShot (text plus one inline image)
//
// Roles are mapped to the neutral labels "user" and "model"; each gateway
// translates them to its provider's wire names.
package request
