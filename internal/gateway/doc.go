// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package gateway sends turn requests to hosted model providers.
//
// # Key Types
//
//   - Gateway: Generate(ctx, *request.TurnRequest) (string, error)
//   - Gemini, OpenAI, Anthropic: provider implementations on their SDKs
//   - Router: selects a provider from the model name
//   - Error: classified failure; every error matches ErrGatewayFailure
//
// # Usage
//
//	gw := gateway.Chain(gateway.NewRouter(gateway.RouterConfig{}),
//	    gateway.WithLogging(log.Logger),
//	    gateway.WithRateLimit(30),
//	    gateway.WithTimeout(time.Minute),
//	)
//	text, err := gw.Generate(ctx, req)
//
// Provider SDK retries are disabled; a failed turn is reported, not retried.
package gateway
