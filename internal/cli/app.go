// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/jeranaias/parley/internal/commands"
	"github.com/jeranaias/parley/internal/config"
	"github.com/jeranaias/parley/internal/conversation"
	"github.com/jeranaias/parley/internal/export"
	"github.com/jeranaias/parley/internal/gateway"
	"github.com/jeranaias/parley/internal/logging"
	"github.com/jeranaias/parley/internal/orchestrator"
	"github.com/jeranaias/parley/internal/request"
	"github.com/jeranaias/parley/internal/settings"
	"github.com/jeranaias/parley/internal/speech"
	"github.com/jeranaias/parley/internal/storage"
)

// =============================================================================
// GLOBAL FLAGS
// =============================================================================

// globalFlags are the persistent flags shared by every command. Non-empty
// values override the config file.
type globalFlags struct {
	configPath string
	dataDir    string
	store      string
	logLevel   string
	logFormat  string
	logFile    string
	model      string
}

// loadConfig reads the config file named by --config, or the default one,
// and layers the flags on top.
func (f *globalFlags) loadConfig() (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if f.configPath != "" {
		cfg, err = config.LoadFrom(f.configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}

	if f.dataDir != "" {
		cfg.Storage.Dir = f.dataDir
	}
	if f.store != "" {
		cfg.Storage.Backend = f.store
	}
	if f.logLevel != "" {
		cfg.Logging.Level = f.logLevel
	}
	if f.logFormat != "" {
		cfg.Logging.Format = f.logFormat
	}
	if f.logFile != "" {
		cfg.Logging.File = f.logFile
	}
	if f.model != "" {
		cfg.Gateway.DefaultModel = f.model
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid flags")
	}
	return cfg, nil
}

// initLogging configures the global logger. Interactive sessions log to the
// file only so log lines never land in the transcript.
func initLogging(cfg *config.Config, interactive bool) (logging.Closer, error) {
	file, err := cfg.LogFilePath()
	if err != nil {
		return nil, err
	}
	return logging.Init(logging.Options{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		File:       file,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
		Console:    !interactive,
	})
}

// =============================================================================
// APP
// =============================================================================

// App wires parley's components together for one process.
type App struct {
	Config       *config.Config
	Store        storage.Store
	Repo         *conversation.Repository
	Settings     *settings.Manager
	Gateway      gateway.Gateway
	Orchestrator *orchestrator.Orchestrator
	Registry     *commands.Registry

	// Speaker is nil when no TTS command is configured.
	Speaker  *speech.ExecSpeaker
	Renderer export.DiagramRenderer
}

type appOption func(*appOptions)

type appOptions struct {
	store   storage.Store
	gateway gateway.Gateway
}

// withStore replaces the configured backend.
func withStore(s storage.Store) appOption {
	return func(o *appOptions) { o.store = s }
}

// withGateway replaces the provider router and its middleware.
func withGateway(g gateway.Gateway) appOption {
	return func(o *appOptions) { o.gateway = g }
}

// newApp opens storage and builds the component graph described by cfg.
func newApp(cfg *config.Config, opts ...appOption) (*App, error) {
	var o appOptions
	for _, opt := range opts {
		opt(&o)
	}

	store := o.store
	if store == nil {
		backend, err := storage.ParseBackend(cfg.Storage.Backend)
		if err != nil {
			return nil, err
		}
		dir, err := cfg.DataDir()
		if err != nil {
			return nil, err
		}
		if store, err = storage.Open(backend, dir); err != nil {
			return nil, errors.Wrapf(err, "open %s store in %s", backend, dir)
		}
		log.Debug().Str("backend", string(backend)).Str("dir", dir).Msg("Store opened")
	}

	mgr, err := settings.NewManager(store,
		settings.WithCredentialOverride(config.EnvCredential()),
		settings.WithDefaultModel(cfg.Gateway.DefaultModel),
	)
	if err != nil {
		store.Close()
		return nil, errors.Wrap(err, "load settings")
	}
	repo := conversation.New(store)

	gw := o.gateway
	if gw == nil {
		router := gateway.NewRouter(gateway.RouterConfig{
			Gemini:    gateway.ProviderConfig{BaseURL: cfg.Gateway.GeminiBaseURL},
			OpenAI:    gateway.ProviderConfig{BaseURL: cfg.Gateway.OpenAIBaseURL},
			Anthropic: gateway.ProviderConfig{BaseURL: cfg.Gateway.AnthropicBaseURL},
		})
		gw = gateway.Chain(router,
			gateway.WithLogging(log.Logger.With().Str("component", "gateway").Logger()),
			gateway.WithRateLimit(cfg.Gateway.RequestsPerMinute),
			gateway.WithTimeout(cfg.Gateway.Timeout()),
		)
	}

	orch := orchestrator.New(repo, gw,
		orchestrator.WithBuilder(request.NewBuilder(request.WithMaxOutputTokens(cfg.Gateway.MaxOutputTokens))),
	)

	app := &App{
		Config:       cfg,
		Store:        store,
		Repo:         repo,
		Settings:     mgr,
		Gateway:      gw,
		Orchestrator: orch,
		Registry:     commands.NewRegistry(),
		Renderer:     export.SourceRenderer{},
	}
	if cfg.Speech.Command != "" {
		app.Speaker = speech.NewExecSpeaker(cfg.Speech.Command)
	}
	if mmdc := export.NewCommandRenderer(export.DefaultMermaidCommand); mmdc.Available() {
		app.Renderer = mmdc
	}
	return app, nil
}

// CommandContext returns the environment slash commands run against.
func (a *App) CommandContext() *commands.Context {
	env := &commands.Context{
		Repo:         a.Repo,
		Settings:     a.Settings,
		Orchestrator: a.Orchestrator,
		Recognizer:   speech.UnsupportedRecognizer{},
		Renderer:     a.Renderer,
		Logger:       log.Logger.With().Str("component", "commands").Logger(),
	}
	if a.Speaker != nil {
		env.Speaker = a.Speaker
	}
	return env
}

// Completer returns a slash-command completer bound to the repository.
func (a *App) Completer() *commands.Completer {
	c := commands.NewCompleter(a.Registry)
	c.ConversationsFn = a.Repo.List
	return c
}

// Close waits for any in-flight turn so its reply is persisted, then
// closes the store.
func (a *App) Close() error {
	a.Orchestrator.Wait()
	if a.Speaker != nil {
		a.Speaker.Stop()
	}
	return a.Store.Close()
}
