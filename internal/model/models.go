// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"fmt"
	"sort"
	"strings"
)

// Provider names used by the model catalog and the gateway router.
const (
	ProviderGemini    = "gemini"
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

// DefaultModel is used until the user selects another model.
const DefaultModel = "gemini-2.0-flash"

// =============================================================================
// MODEL INFO TYPE
// =============================================================================

// ModelInfo contains display information about a hosted model.
type ModelInfo struct {
	// ID is the model identifier used in API calls
	ID string `json:"id"`

	// Name is the human-readable display name
	Name string `json:"name"`

	// Provider is one of the Provider* constants
	Provider string `json:"provider"`

	// Vision reports whether the model accepts image attachments
	Vision bool `json:"vision"`

	// MaxTokens is the context window size
	MaxTokens int `json:"max_tokens"`

	// Description is a brief explanation of the model's strengths
	Description string `json:"description"`
}

// =============================================================================
// MODEL CATALOG
// =============================================================================

// Models is the catalog of well-known models keyed by short name. Any other
// model ID is still accepted; the catalog only drives listing and completion.
var Models = map[string]ModelInfo{
	"flash": {
		ID:          "gemini-2.0-flash",
		Name:        "Gemini 2.0 Flash",
		Provider:    ProviderGemini,
		Vision:      true,
		MaxTokens:   1048576,
		Description: "Fast multimodal model, the default",
	},
	"flash-lite": {
		ID:          "gemini-2.0-flash-lite",
		Name:        "Gemini 2.0 Flash-Lite",
		Provider:    ProviderGemini,
		Vision:      true,
		MaxTokens:   1048576,
		Description: "Cheapest Gemini model for simple chats",
	},
	"pro": {
		ID:          "gemini-2.5-pro",
		Name:        "Gemini 2.5 Pro",
		Provider:    ProviderGemini,
		Vision:      true,
		MaxTokens:   1048576,
		Description: "Most capable Gemini model",
	},
	"gpt-4o": {
		ID:          "gpt-4o",
		Name:        "GPT-4o",
		Provider:    ProviderOpenAI,
		Vision:      true,
		MaxTokens:   128000,
		Description: "OpenAI flagship multimodal model",
	},
	"gpt-4o-mini": {
		ID:          "gpt-4o-mini",
		Name:        "GPT-4o mini",
		Provider:    ProviderOpenAI,
		Vision:      true,
		MaxTokens:   128000,
		Description: "Small, fast OpenAI model",
	},
	"haiku": {
		ID:          "claude-3-5-haiku-latest",
		Name:        "Claude 3.5 Haiku",
		Provider:    ProviderAnthropic,
		Vision:      true,
		MaxTokens:   200000,
		Description: "Fast and efficient for simple tasks",
	},
	"sonnet": {
		ID:          "claude-sonnet-4-0",
		Name:        "Claude Sonnet 4",
		Provider:    ProviderAnthropic,
		Vision:      true,
		MaxTokens:   200000,
		Description: "Best balance of speed and capability",
	},
}

// ContextString returns a formatted context window string.
func (m ModelInfo) ContextString() string {
	if m.MaxTokens >= 1000000 {
		return fmt.Sprintf("%.1fM tokens", float64(m.MaxTokens)/1000000)
	}
	if m.MaxTokens >= 1000 {
		return fmt.Sprintf("%dK tokens", m.MaxTokens/1000)
	}
	return fmt.Sprintf("%d tokens", m.MaxTokens)
}

// =============================================================================
// MODEL LOOKUP FUNCTIONS
// =============================================================================

// GetModelInfo looks up a model by short name or exact ID.
func GetModelInfo(nameOrID string) (ModelInfo, bool) {
	if info, ok := Models[nameOrID]; ok {
		return info, true
	}
	for _, info := range Models {
		if info.ID == nameOrID {
			return info, true
		}
	}
	return ModelInfo{}, false
}

// ResolveModelID maps a short name to its model ID. Unknown names are
// returned unchanged so any provider model can be used.
func ResolveModelID(nameOrID string) string {
	nameOrID = strings.TrimSpace(nameOrID)
	if info, ok := Models[nameOrID]; ok {
		return info.ID
	}
	return nameOrID
}

// GetModelsByProvider returns catalog models from one provider, sorted by ID.
func GetModelsByProvider(provider string) []ModelInfo {
	result := []ModelInfo{}
	for _, info := range Models {
		if strings.EqualFold(info.Provider, provider) {
			result = append(result, info)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result
}

// ModelShortNames returns a sorted slice of all model short names.
func ModelShortNames() []string {
	names := make([]string, 0, len(Models))
	for name := range Models {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
