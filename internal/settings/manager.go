// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package settings

import (
	"strconv"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/jeranaias/parley/internal/model"
	"github.com/jeranaias/parley/internal/storage"
)

// CredentialSource reports where the active credential came from.
type CredentialSource string

const (
	SourceNone  CredentialSource = "none"
	SourceStore CredentialSource = "store"
	SourceEnv   CredentialSource = "env"
)

// Manager loads settings from a store, hands out snapshots and persists each
// change under its own key.
type Manager struct {
	mu sync.RWMutex

	store  storage.Store
	logger zerolog.Logger

	current      Settings
	stored       string
	envOverride  string
	defaultModel string
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(m *Manager) { m.logger = logger }
}

// WithCredentialOverride supplies a credential (typically from the
// environment) that takes precedence over the stored one and is never
// written back.
func WithCredentialOverride(key string) Option {
	return func(m *Manager) { m.envOverride = strings.TrimSpace(key) }
}

// WithDefaultModel sets the model used when none is stored.
func WithDefaultModel(name string) Option {
	return func(m *Manager) {
		if name = strings.TrimSpace(name); name != "" {
			m.defaultModel = model.ResolveModelID(name)
		}
	}
}

// NewManager loads settings from store. Unparseable scalars fall back to
// their defaults with a warning; only store read failures are returned.
func NewManager(store storage.Store, opts ...Option) (*Manager, error) {
	m := &Manager{
		store:        store,
		logger:       log.Logger.With().Str("component", "settings").Logger(),
		defaultModel: model.DefaultModel,
	}
	for _, opt := range opts {
		opt(m)
	}
	if err := m.load(); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Manager) load() error {
	s := Default()
	s.Model = m.defaultModel

	get := func(key string) (string, bool, error) {
		v, ok, err := m.store.Get(key)
		if err != nil {
			return "", false, errors.Wrapf(err, "read setting %s", key)
		}
		return v, ok, nil
	}

	cred, _, err := get(storage.KeyCredential)
	if err != nil {
		return err
	}
	m.stored = strings.TrimSpace(cred)

	if v, ok, err := get(storage.KeyModel); err != nil {
		return err
	} else if ok && strings.TrimSpace(v) != "" {
		s.Model = strings.TrimSpace(v)
	}

	sys, _, err := get(storage.KeySystemInstructions)
	if err != nil {
		return err
	}
	s.SystemInstructions = sys

	if v, ok, err := get(storage.KeyVoiceLanguage); err != nil {
		return err
	} else if ok {
		s.Voice.Language = v
	}
	if v, ok, err := get(storage.KeyVoiceName); err != nil {
		return err
	} else if ok {
		s.Voice.Voice = v
	}
	if v, ok, err := get(storage.KeyVoicePitch); err != nil {
		return err
	} else if ok {
		s.Voice.Pitch = m.parseScale(storage.KeyVoicePitch, v, DefaultVoicePitch)
	}
	if v, ok, err := get(storage.KeyVoiceRate); err != nil {
		return err
	} else if ok {
		s.Voice.Rate = m.parseScale(storage.KeyVoiceRate, v, DefaultVoiceRate)
	}
	s.Voice = s.Voice.Normalize()

	m.current = s
	return nil
}

func (m *Manager) parseScale(key, raw string, fallback float64) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		m.logger.Warn().Str("key", key).Str("value", raw).Msg("Ignoring unparseable voice setting")
		return fallback
	}
	return f
}

// =============================================================================
// READ
// =============================================================================

// Snapshot returns the current settings. The credential override, if any,
// replaces the stored credential.
func (m *Manager) Snapshot() Settings {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s := m.current
	s.Credential = m.stored
	if m.envOverride != "" {
		s.Credential = m.envOverride
	}
	return s
}

// CredentialSource reports where Snapshot's credential comes from.
func (m *Manager) CredentialSource() CredentialSource {
	m.mu.RLock()
	defer m.mu.RUnlock()

	switch {
	case m.envOverride != "":
		return SourceEnv
	case m.stored != "":
		return SourceStore
	}
	return SourceNone
}

// =============================================================================
// WRITE
// =============================================================================

// SetCredential stores the API key. An empty key clears it.
func (m *Manager) SetCredential(key string) error {
	key = strings.TrimSpace(key)

	m.mu.Lock()
	defer m.mu.Unlock()

	var err error
	if key == "" {
		err = m.store.Remove(storage.KeyCredential)
	} else {
		err = m.store.Set(storage.KeyCredential, key)
	}
	if err != nil {
		return errors.Wrap(err, "save credential")
	}
	m.stored = key
	return nil
}

// ClearCredential removes the stored API key.
func (m *Manager) ClearCredential() error {
	return m.SetCredential("")
}

// SetModel selects a model by catalog short name or full ID.
func (m *Manager) SetModel(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return errors.New("model name is empty")
	}
	id := model.ResolveModelID(name)

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.store.Set(storage.KeyModel, id); err != nil {
		return errors.Wrap(err, "save model")
	}
	m.current.Model = id
	return nil
}

// SetSystemInstructions replaces the system instructions. Empty clears them.
func (m *Manager) SetSystemInstructions(text string) error {
	text = strings.TrimSpace(text)

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.store.Set(storage.KeySystemInstructions, text); err != nil {
		return errors.Wrap(err, "save system instructions")
	}
	m.current.SystemInstructions = text
	return nil
}

// SetVoice stores a voice profile after normalizing it.
func (m *Manager) SetVoice(v VoiceProfile) error {
	v = v.Normalize()

	m.mu.Lock()
	defer m.mu.Unlock()

	values := []struct{ key, value string }{
		{storage.KeyVoiceLanguage, v.Language},
		{storage.KeyVoicePitch, strconv.FormatFloat(v.Pitch, 'f', -1, 64)},
		{storage.KeyVoiceRate, strconv.FormatFloat(v.Rate, 'f', -1, 64)},
		{storage.KeyVoiceName, v.Voice},
	}
	for _, kv := range values {
		if err := m.store.Set(kv.key, kv.value); err != nil {
			return errors.Wrapf(err, "save %s", kv.key)
		}
	}
	m.current.Voice = v
	return nil
}
