// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package export writes conversations to shareable files.
//
// # Key Types
//
//   - Exporter: Markdown and JSON conversation exporters
//   - Options: output directory, metadata and timestamp switches
//   - DiagramRenderer: turns ```mermaid blocks into files
//
// # Usage
//
//	exp, err := export.ForFormat("markdown", export.DefaultOptions())
//	path, err := export.ExportToFile(conv, exp, opts)
//
// Diagrams:
//
//	paths, err := export.WriteDiagrams(ctx, conv, export.SourceRenderer{}, dir)
package export
