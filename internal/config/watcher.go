// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/jeranaias/parley/internal/util"
)

// =============================================================================
// CONFIG WATCHER
// =============================================================================

// DefaultReloadDebounce collapses the burst of events an editor produces
// when it saves a file.
const DefaultReloadDebounce = 250 * time.Millisecond

// Watcher reloads the config file when it changes on disk and hands every
// valid result to a callback. Invalid edits are logged and skipped so the
// last good configuration stays in effect.
type Watcher struct {
	path     string
	load     func() (*Config, error)
	onChange func(*Config)
	debounce time.Duration
	logger   zerolog.Logger

	watcher *fsnotify.Watcher
}

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithDebounce sets how long the file must be quiet before it is reloaded.
func WithDebounce(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// WithWatcherLogger sets the watcher's logger.
func WithWatcherLogger(logger zerolog.Logger) WatcherOption {
	return func(w *Watcher) { w.logger = logger }
}

// NewWatcher watches path. The parent directory is watched rather than the
// file so that atomic saves, which replace the file, are seen. load is
// called after each change; it normally re-reads path and applies the same
// overrides as startup.
func NewWatcher(path string, load func() (*Config, error), onChange func(*Config), opts ...WatcherOption) (*Watcher, error) {
	if load == nil || onChange == nil {
		return nil, errors.New("config watcher needs load and onChange")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, errors.Wrap(err, "resolve config path")
	}

	w := &Watcher{
		path:     abs,
		load:     load,
		onChange: onChange,
		debounce: DefaultReloadDebounce,
		logger:   log.Logger.With().Str("component", "config-watcher").Logger(),
	}
	for _, opt := range opts {
		opt(w)
	}

	dir := filepath.Dir(abs)
	if err := os.MkdirAll(dir, util.PrivateDirPerm); err != nil {
		return nil, errors.Wrap(err, "create config directory")
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(err, "create file watcher")
	}
	if err := fw.Add(dir); err != nil {
		fw.Close()
		return nil, errors.Wrapf(err, "watch %s", dir)
	}
	w.watcher = fw
	return w, nil
}

// Path returns the watched config file.
func (w *Watcher) Path() string {
	return w.path
}

// Run processes file events until ctx is cancelled, then releases the
// underlying watcher.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.watcher.Close()

	var (
		timer *time.Timer
		fire  <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			// Atomic saves arrive as Create on the target name.
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			fire = timer.C

		case <-fire:
			fire = nil
			w.reload()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn().Err(err).Msg("Config watcher error")
		}
	}
}

func (w *Watcher) reload() {
	cfg, err := w.load()
	if err != nil {
		w.logger.Warn().Err(err).Str("path", w.path).Msg("Config change ignored")
		return
	}
	w.logger.Info().Str("path", w.path).Msg("Config reloaded")
	w.onChange(cfg)
}
