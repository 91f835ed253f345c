// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package settings

import (
	"crypto/sha256"
	"fmt"
	"strings"

	"github.com/jeranaias/parley/internal/model"
)

// =============================================================================
// SETTINGS
// =============================================================================

// Voice defaults.
const (
	DefaultVoiceLanguage = "en-US"
	DefaultVoicePitch    = 1.0
	DefaultVoiceRate     = 1.0

	// Pitch and rate are multipliers of the speech engine's defaults.
	MinVoiceScale = 0.1
	MaxVoiceScale = 2.0
)

// VoiceProfile configures speech input and output.
type VoiceProfile struct {
	Language string  `json:"language"`
	Pitch    float64 `json:"pitch"`
	Rate     float64 `json:"rate"`
	Voice    string  `json:"voice,omitempty"`
}

// DefaultVoice returns the voice profile used when nothing is stored.
func DefaultVoice() VoiceProfile {
	return VoiceProfile{
		Language: DefaultVoiceLanguage,
		Pitch:    DefaultVoicePitch,
		Rate:     DefaultVoiceRate,
	}
}

// Normalize clamps pitch and rate and fills a missing language.
func (v VoiceProfile) Normalize() VoiceProfile {
	if strings.TrimSpace(v.Language) == "" {
		v.Language = DefaultVoiceLanguage
	}
	v.Pitch = clampScale(v.Pitch, DefaultVoicePitch)
	v.Rate = clampScale(v.Rate, DefaultVoiceRate)
	v.Voice = strings.TrimSpace(v.Voice)
	return v
}

func clampScale(v, fallback float64) float64 {
	switch {
	case v == 0:
		return fallback
	case v < MinVoiceScale:
		return MinVoiceScale
	case v > MaxVoiceScale:
		return MaxVoiceScale
	}
	return v
}

// Settings is an immutable snapshot of user preferences. It is global, not
// per-conversation, and is passed by value into each turn.
type Settings struct {
	// Credential is the provider API key. Empty means absent.
	Credential string

	// Model is the model ID requests are sent to.
	Model string

	// SystemInstructions is sent alongside multi-turn requests.
	SystemInstructions string

	Voice VoiceProfile
}

// Default returns settings with no credential and the default model.
func Default() Settings {
	return Settings{
		Model: model.DefaultModel,
		Voice: DefaultVoice(),
	}
}

// HasCredential reports whether a credential is present.
func (s Settings) HasCredential() bool {
	return strings.TrimSpace(s.Credential) != ""
}

// MaskedCredential returns a display form of the credential that reveals
// nothing but a short hash fingerprint.
func (s Settings) MaskedCredential() string {
	return MaskCredential(s.Credential)
}

// MaskCredential masks an API key for display.
func MaskCredential(key string) string {
	if key == "" {
		return "(not set)"
	}
	if len(key) < 8 {
		return "[invalid key]"
	}
	hash := sha256.Sum256([]byte(key))
	return fmt.Sprintf("sha256:%x...", hash[:4])
}
