// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"

	"github.com/jeranaias/parley/internal/model"
	"github.com/jeranaias/parley/internal/storage"
	"github.com/jeranaias/parley/internal/util"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete parley configuration.
type Config struct {
	Version string        `toml:"version" json:"version"`
	Storage StorageConfig `toml:"storage" json:"storage"`
	Logging LoggingConfig `toml:"logging" json:"logging"`
	Gateway GatewayConfig `toml:"gateway" json:"gateway"`
	UI      UIConfig      `toml:"ui" json:"ui"`
	Speech  SpeechConfig  `toml:"speech" json:"speech"`
}

// StorageConfig selects where conversations and settings live.
type StorageConfig struct {
	// Backend is one of file, bolt, sqlite, memory.
	Backend string `toml:"backend" json:"backend"`

	// Dir is the data directory. Empty means the config directory.
	Dir string `toml:"dir" json:"dir"`
}

// LoggingConfig controls the zerolog sink.
type LoggingConfig struct {
	Level      string `toml:"level" json:"level"`
	Format     string `toml:"format" json:"format"`
	File       string `toml:"file" json:"file"`
	MaxSizeMB  int    `toml:"max_size_mb" json:"max_size_mb"`
	MaxBackups int    `toml:"max_backups" json:"max_backups"`
	MaxAgeDays int    `toml:"max_age_days" json:"max_age_days"`
}

// GatewayConfig configures model providers.
type GatewayConfig struct {
	DefaultModel      string `toml:"default_model" json:"default_model"`
	MaxOutputTokens   int    `toml:"max_output_tokens" json:"max_output_tokens"`
	TimeoutSecs       int    `toml:"timeout_secs" json:"timeout_secs"`
	RequestsPerMinute int    `toml:"requests_per_minute" json:"requests_per_minute"`
	GeminiBaseURL     string `toml:"gemini_base_url" json:"gemini_base_url"`
	OpenAIBaseURL     string `toml:"openai_base_url" json:"openai_base_url"`
	AnthropicBaseURL  string `toml:"anthropic_base_url" json:"anthropic_base_url"`
}

// Timeout returns the per-request timeout.
func (g GatewayConfig) Timeout() time.Duration {
	return time.Duration(g.TimeoutSecs) * time.Second
}

// UIConfig contains UI configuration.
type UIConfig struct {
	// Mode is the default interface: repl or tui.
	Mode         string `toml:"mode" json:"mode"`
	Markdown     bool   `toml:"markdown" json:"markdown"`
	SpeakReplies bool   `toml:"speak_replies" json:"speak_replies"`
}

// SpeechConfig configures the text-to-speech command.
type SpeechConfig struct {
	// Command is an espeak-compatible executable. Empty disables speech.
	Command string `toml:"command" json:"command"`
}

// =============================================================================
// DEFAULT CONFIGURATION
// =============================================================================

// Defaults that Validate and SetDefaults rely on.
const (
	CurrentVersion           = "1"
	DefaultMaxOutputTokens   = 1500
	DefaultTimeoutSecs       = 60
	DefaultRequestsPerMinute = 30
	DefaultLogFile           = "parley.log"
)

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Version: CurrentVersion,
		Storage: StorageConfig{
			Backend: string(storage.BackendFile),
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "text",
			File:       DefaultLogFile,
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
		Gateway: GatewayConfig{
			DefaultModel:      model.DefaultModel,
			MaxOutputTokens:   DefaultMaxOutputTokens,
			TimeoutSecs:       DefaultTimeoutSecs,
			RequestsPerMinute: DefaultRequestsPerMinute,
		},
		UI: UIConfig{
			Mode:     "repl",
			Markdown: true,
		},
		Speech: SpeechConfig{
			Command: "espeak",
		},
	}
}

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// ConfigDir returns the parley configuration directory path.
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.Wrap(err, "could not determine home directory")
	}
	return filepath.Join(home, ".parley"), nil
}

// ConfigPath returns the path to the TOML config file.
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// DataDir returns the resolved data directory.
func (c *Config) DataDir() (string, error) {
	if c.Storage.Dir != "" {
		return expandHome(c.Storage.Dir)
	}
	return ConfigDir()
}

// LogFilePath returns the resolved log file path, or "" when file logging
// is disabled. Relative paths are placed in the data directory.
func (c *Config) LogFilePath() (string, error) {
	file := strings.TrimSpace(c.Logging.File)
	if file == "" || file == "-" {
		return "", nil
	}
	file, err := expandHome(file)
	if err != nil {
		return "", err
	}
	if filepath.IsAbs(file) {
		return file, nil
	}
	dir, err := c.DataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, file), nil
}

func expandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.Wrap(err, "could not determine home directory")
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}

// ensureSecurePermissions tightens a config file to 0600.
func ensureSecurePermissions(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if mode := info.Mode().Perm(); mode != 0600 {
		if err := os.Chmod(path, 0600); err != nil {
			return errors.Wrapf(err, "failed to fix insecure permissions (was %o)", mode)
		}
	}
	return nil
}

// =============================================================================
// LOAD FUNCTIONS
// =============================================================================

// Load loads ~/.parley/config.toml if it exists, falling back to defaults.
// Environment overrides are applied last.
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return nil, err
	}
	if _, statErr := os.Stat(path); os.IsNotExist(statErr) {
		return finish(Default())
	}
	return LoadFrom(path)
}

// LoadFrom loads configuration from a specific TOML file. Unlike Load, a
// missing file is an error.
func LoadFrom(path string) (*Config, error) {
	cfg, err := ReadFile(path)
	if err != nil {
		return nil, err
	}
	return finish(cfg)
}

// ReadFile decodes path over the defaults without applying environment
// overrides or validation. The config CLI edits files through it so that
// PARLEY_* variables are never written back.
func ReadFile(path string) (*Config, error) {
	cfg := Default()

	if err := ensureSecurePermissions(path); err != nil && !os.IsNotExist(errors.Cause(err)) {
		fmt.Fprintf(os.Stderr, "Warning: could not ensure secure permissions on %s: %v\n", path, err)
	}

	meta, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to load config %s", path)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		fmt.Fprintf(os.Stderr, "Warning: unknown config keys in %s: %s\n", path, strings.Join(keys, ", "))
	}
	cfg.SetDefaults()
	return cfg, nil
}

func finish(cfg *Config) (*Config, error) {
	cfg.ApplyEnvOverrides()
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid config")
	}
	return cfg, nil
}

// =============================================================================
// SAVE FUNCTIONS
// =============================================================================

// Save writes the configuration to path with 0600 permissions. An empty
// path means the default location.
func Save(cfg *Config, path string) error {
	if path == "" {
		var err error
		if path, err = ConfigPath(); err != nil {
			return err
		}
	}
	if err := os.MkdirAll(filepath.Dir(path), util.PrivateDirPerm); err != nil {
		return errors.Wrap(err, "failed to create config directory")
	}

	var buf bytes.Buffer
	buf.WriteString("# parley configuration file\n")
	buf.WriteString("# Generated by parley - edit with care\n\n")
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return errors.Wrap(err, "failed to encode config")
	}

	if err := util.AtomicWriteFile(path, buf.Bytes(), 0600); err != nil {
		return errors.Wrap(err, "failed to write config file")
	}
	return nil
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateErrors is a collection of validation errors.
type ValidateErrors []ValidationError

func (e ValidateErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	msgs := make([]string, len(e))
	for i, err := range e {
		msgs[i] = err.Error()
	}
	return strings.Join(msgs, "; ")
}

// Validate validates the configuration and returns any errors.
func (c *Config) Validate() error {
	var errs ValidateErrors

	if _, err := storage.ParseBackend(c.Storage.Backend); err != nil {
		errs = append(errs, ValidationError{
			Field:   "storage.backend",
			Message: fmt.Sprintf("invalid backend '%s', must be one of: file, bolt, sqlite, memory", c.Storage.Backend),
		})
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true, "disabled": true}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, ValidationError{
			Field:   "logging.level",
			Message: fmt.Sprintf("invalid level '%s', must be one of: debug, info, warn, error, disabled", c.Logging.Level),
		})
	}
	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[strings.ToLower(c.Logging.Format)] {
		errs = append(errs, ValidationError{
			Field:   "logging.format",
			Message: fmt.Sprintf("invalid format '%s', must be one of: text, json", c.Logging.Format),
		})
	}
	if c.Logging.MaxSizeMB < 0 || c.Logging.MaxBackups < 0 || c.Logging.MaxAgeDays < 0 {
		errs = append(errs, ValidationError{
			Field:   "logging",
			Message: "rotation limits must not be negative",
		})
	}

	if strings.TrimSpace(c.Gateway.DefaultModel) == "" {
		errs = append(errs, ValidationError{Field: "gateway.default_model", Message: "must not be empty"})
	}
	if c.Gateway.MaxOutputTokens < 1 || c.Gateway.MaxOutputTokens > 1000000 {
		errs = append(errs, ValidationError{
			Field:   "gateway.max_output_tokens",
			Message: fmt.Sprintf("%d out of range (1-1000000)", c.Gateway.MaxOutputTokens),
		})
	}
	if c.Gateway.TimeoutSecs < 1 || c.Gateway.TimeoutSecs > 3600 {
		errs = append(errs, ValidationError{
			Field:   "gateway.timeout_secs",
			Message: fmt.Sprintf("%d out of range (1-3600)", c.Gateway.TimeoutSecs),
		})
	}
	if c.Gateway.RequestsPerMinute < 0 {
		errs = append(errs, ValidationError{
			Field:   "gateway.requests_per_minute",
			Message: "must not be negative (0 disables the limit)",
		})
	}
	for field, url := range map[string]string{
		"gateway.gemini_base_url":    c.Gateway.GeminiBaseURL,
		"gateway.openai_base_url":    c.Gateway.OpenAIBaseURL,
		"gateway.anthropic_base_url": c.Gateway.AnthropicBaseURL,
	} {
		if url != "" && !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
			errs = append(errs, ValidationError{Field: field, Message: "must start with http:// or https://"})
		}
	}

	validModes := map[string]bool{"repl": true, "tui": true}
	if !validModes[strings.ToLower(c.UI.Mode)] {
		errs = append(errs, ValidationError{
			Field:   "ui.mode",
			Message: fmt.Sprintf("invalid mode '%s', must be one of: repl, tui", c.UI.Mode),
		})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// SetDefaults fills zero-value fields with defaults.
func (c *Config) SetDefaults() {
	d := Default()
	if c.Version == "" {
		c.Version = d.Version
	}
	if c.Storage.Backend == "" {
		c.Storage.Backend = d.Storage.Backend
	}
	if c.Logging.Level == "" {
		c.Logging.Level = d.Logging.Level
	}
	if c.Logging.Format == "" {
		c.Logging.Format = d.Logging.Format
	}
	if c.Gateway.DefaultModel == "" {
		c.Gateway.DefaultModel = d.Gateway.DefaultModel
	}
	if c.Gateway.MaxOutputTokens == 0 {
		c.Gateway.MaxOutputTokens = d.Gateway.MaxOutputTokens
	}
	if c.Gateway.TimeoutSecs == 0 {
		c.Gateway.TimeoutSecs = d.Gateway.TimeoutSecs
	}
	if c.UI.Mode == "" {
		c.UI.Mode = d.UI.Mode
	}
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// Environment variables read by parley.
const (
	EnvDataDir  = "PARLEY_DATA_DIR"
	EnvStore    = "PARLEY_STORE"
	EnvLogLevel = "PARLEY_LOG_LEVEL"
	EnvModel    = "PARLEY_MODEL"

	// EnvAPIKey overrides the stored credential. It is consumed by the
	// settings manager and never written to the config file or the store.
	EnvAPIKey = "PARLEY_API_KEY"
)

// ApplyEnvOverrides applies environment variable overrides to the config.
//
// Supported environment variables:
//   - PARLEY_DATA_DIR: overrides storage.dir
//   - PARLEY_STORE: overrides storage.backend
//   - PARLEY_LOG_LEVEL: overrides logging.level
//   - PARLEY_MODEL: overrides gateway.default_model
func (c *Config) ApplyEnvOverrides() {
	if dir := os.Getenv(EnvDataDir); dir != "" {
		c.Storage.Dir = dir
	}
	if backend := os.Getenv(EnvStore); backend != "" {
		c.Storage.Backend = backend
	}
	if level := os.Getenv(EnvLogLevel); level != "" {
		c.Logging.Level = level
	}
	if m := os.Getenv(EnvModel); m != "" {
		c.Gateway.DefaultModel = m
	}
}

// EnvCredential returns the credential supplied through PARLEY_API_KEY.
func EnvCredential() string {
	return strings.TrimSpace(os.Getenv(EnvAPIKey))
}

// =============================================================================
// GET/SET HELPERS (DOT NOTATION)
// =============================================================================

// Get retrieves a configuration value using dot notation (e.g., "gateway.timeout_secs").
func (c *Config) Get(key string) (interface{}, error) {
	field, err := c.lookup(key)
	if err != nil {
		return nil, err
	}
	return field.Interface(), nil
}

// Set sets a configuration value using dot notation. String values are
// converted to the field's type.
func (c *Config) Set(key string, value interface{}) error {
	field, err := c.lookup(key)
	if err != nil {
		return err
	}
	if !field.CanSet() {
		return errors.Errorf("cannot set field: %s", key)
	}
	return setFieldValue(field, value)
}

func (c *Config) lookup(key string) (reflect.Value, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return reflect.Value{}, errors.New("empty key")
	}
	parts := strings.Split(key, ".")

	v := reflect.ValueOf(c).Elem()
	for i, part := range parts {
		fieldName := normalizeFieldName(part)
		field := v.FieldByNameFunc(func(name string) bool {
			return strings.EqualFold(name, fieldName)
		})
		if !field.IsValid() {
			return reflect.Value{}, errors.Errorf("unknown field: %s", strings.Join(parts[:i+1], "."))
		}
		if i == len(parts)-1 {
			if field.Kind() == reflect.Struct {
				return reflect.Value{}, errors.Errorf("field '%s' is a section", key)
			}
			return field, nil
		}
		if field.Kind() != reflect.Struct {
			return reflect.Value{}, errors.Errorf("field '%s' is not a struct", strings.Join(parts[:i+1], "."))
		}
		v = field
	}
	return reflect.Value{}, errors.Errorf("invalid key: %s", key)
}

// normalizeFieldName converts a snake_case or kebab-case name to its Go field equivalent.
func normalizeFieldName(name string) string {
	parts := strings.FieldsFunc(name, func(r rune) bool {
		return r == '_' || r == '-'
	})

	var result strings.Builder
	for _, part := range parts {
		if len(part) > 0 {
			result.WriteString(strings.ToUpper(string(part[0])))
			result.WriteString(strings.ToLower(part[1:]))
		}
	}
	return result.String()
}

// setFieldValue sets a reflect.Value from an interface{} value with type conversion.
func setFieldValue(field reflect.Value, value interface{}) error {
	if strVal, ok := value.(string); ok {
		switch field.Kind() {
		case reflect.String:
			field.SetString(strVal)
			return nil
		case reflect.Int, reflect.Int64:
			intVal, err := strconv.ParseInt(strings.TrimSpace(strVal), 10, 64)
			if err != nil {
				return errors.Errorf("invalid integer value: %v", err)
			}
			field.SetInt(intVal)
			return nil
		case reflect.Bool:
			field.SetBool(parseBool(strVal))
			return nil
		}
	}

	val := reflect.ValueOf(value)
	if !val.IsValid() {
		return errors.Errorf("cannot assign nil to %s", field.Type())
	}
	if val.Type().AssignableTo(field.Type()) {
		field.Set(val)
		return nil
	}
	if val.Type().ConvertibleTo(field.Type()) && val.Kind() != reflect.String {
		field.Set(val.Convert(field.Type()))
		return nil
	}
	return errors.Errorf("cannot assign %T to %s", value, field.Type())
}

// parseBool parses a boolean string value.
func parseBool(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	return s == "true" || s == "1" || s == "yes" || s == "on"
}

// GetAllKeys returns all configuration keys in dot notation.
func GetAllKeys() []string {
	return []string{
		"version",
		"storage.backend",
		"storage.dir",
		"logging.level",
		"logging.format",
		"logging.file",
		"logging.max_size_mb",
		"logging.max_backups",
		"logging.max_age_days",
		"gateway.default_model",
		"gateway.max_output_tokens",
		"gateway.timeout_secs",
		"gateway.requests_per_minute",
		"gateway.gemini_base_url",
		"gateway.openai_base_url",
		"gateway.anthropic_base_url",
		"ui.mode",
		"ui.markdown",
		"ui.speak_replies",
		"speech.command",
	}
}

// Clone returns a copy of the configuration. Config holds no reference
// types, so a value copy is deep.
func (c *Config) Clone() *Config {
	clone := *c
	return &clone
}

// String renders the configuration as TOML.
func (c *Config) String() string {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(c); err != nil {
		return fmt.Sprintf("<config: %v>", err)
	}
	return buf.String()
}

// =============================================================================
// SINGLETON PATTERN (THREAD-SAFE)
// =============================================================================

var (
	globalConfig     *Config
	globalConfigOnce sync.Once
	globalConfigMu   sync.RWMutex
)

// Global returns the global configuration instance.
// Loads configuration on first access. Thread-safe.
func Global() *Config {
	globalConfigOnce.Do(func() {
		cfg, err := Load()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v (using defaults)\n", err)
			cfg = Default()
		}
		globalConfigMu.Lock()
		if globalConfig == nil {
			globalConfig = cfg
		}
		globalConfigMu.Unlock()
	})

	globalConfigMu.RLock()
	defer globalConfigMu.RUnlock()
	return globalConfig
}

// SetGlobal sets the global configuration instance. Thread-safe.
func SetGlobal(cfg *Config) {
	globalConfigOnce.Do(func() {})
	globalConfigMu.Lock()
	defer globalConfigMu.Unlock()
	globalConfig = cfg
}

// ResetGlobalForTesting resets the global config state for testing.
func ResetGlobalForTesting() {
	globalConfigMu.Lock()
	defer globalConfigMu.Unlock()
	globalConfig = nil
	globalConfigOnce = sync.Once{}
}
