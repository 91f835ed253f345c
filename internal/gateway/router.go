// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package gateway

import (
	"context"
	"strings"
	"sync"

	"github.com/pkg/errors"

	"github.com/jeranaias/parley/internal/model"
	"github.com/jeranaias/parley/internal/request"
)

// modelPrefixes maps model-name prefixes to providers, checked in order.
var modelPrefixes = []struct {
	prefix   string
	provider string
}{
	{"gemini", model.ProviderGemini},
	{"gemma", model.ProviderGemini},
	{"gpt-", model.ProviderOpenAI},
	{"chatgpt", model.ProviderOpenAI},
	{"o1", model.ProviderOpenAI},
	{"o3", model.ProviderOpenAI},
	{"o4", model.ProviderOpenAI},
	{"claude", model.ProviderAnthropic},
}

// ResolveProvider returns the provider for a model ID and the model name to
// send to it. An explicit "provider:model" prefix wins over name matching.
func ResolveProvider(modelID string) (provider, name string, err error) {
	modelID = strings.TrimSpace(modelID)
	if p, rest, ok := strings.Cut(modelID, ":"); ok {
		switch p = strings.ToLower(p); p {
		case model.ProviderGemini, model.ProviderOpenAI, model.ProviderAnthropic:
			if rest == "" {
				break
			}
			return p, rest, nil
		}
	}

	lower := strings.ToLower(modelID)
	for _, mp := range modelPrefixes {
		if strings.HasPrefix(lower, mp.prefix) {
			return mp.provider, modelID, nil
		}
	}
	return "", "", &Error{Reason: ReasonUnsupported, Message: modelID}
}

// Router dispatches each request to the gateway of the provider that serves
// the requested model.
type Router struct {
	mu        sync.RWMutex
	providers map[string]Gateway
}

// RouterConfig configures the built-in providers.
type RouterConfig struct {
	Gemini    ProviderConfig
	OpenAI    ProviderConfig
	Anthropic ProviderConfig
}

// NewRouter creates a router with the Gemini, OpenAI and Anthropic
// gateways registered.
func NewRouter(cfg RouterConfig) *Router {
	r := &Router{providers: make(map[string]Gateway)}
	r.Register(model.ProviderGemini, NewGemini(cfg.Gemini))
	r.Register(model.ProviderOpenAI, NewOpenAI(cfg.OpenAI))
	r.Register(model.ProviderAnthropic, NewAnthropic(cfg.Anthropic))
	return r
}

// Register sets the gateway for a provider, replacing any existing one.
func (r *Router) Register(provider string, g Gateway) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.providers == nil {
		r.providers = make(map[string]Gateway)
	}
	r.providers[provider] = g
}

// Generate implements Gateway.
func (r *Router) Generate(ctx context.Context, req *request.TurnRequest) (string, error) {
	if req == nil {
		return "", &Error{Reason: ReasonBadRequest, Message: "nil request"}
	}
	provider, name, err := ResolveProvider(req.Model)
	if err != nil {
		return "", err
	}

	r.mu.RLock()
	g, ok := r.providers[provider]
	r.mu.RUnlock()
	if !ok {
		return "", &Error{Provider: provider, Reason: ReasonUnsupported, Message: "provider not registered"}
	}

	routed := *req
	routed.Model = name
	text, err := g.Generate(ctx, &routed)
	return text, asError(provider, err)
}

// IsUnsupported reports whether err is an unsupported-model error.
func IsUnsupported(err error) bool {
	return errors.Is(err, ErrUnsupportedModel)
}
