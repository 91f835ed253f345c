// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package settings holds global user preferences: the API credential, the
// model, system instructions and the voice profile.
//
// Settings values are snapshots. Manager persists every change under its own
// storage key and can layer an environment credential over the stored one
// without ever writing it back.
package settings
