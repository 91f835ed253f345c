// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/parley/internal/commands"
	"github.com/jeranaias/parley/internal/config"
	"github.com/jeranaias/parley/internal/conversation"
	"github.com/jeranaias/parley/internal/gateway"
	"github.com/jeranaias/parley/internal/model"
	"github.com/jeranaias/parley/internal/request"
	"github.com/jeranaias/parley/internal/settings"
	"github.com/jeranaias/parley/internal/storage"
)

// =============================================================================
// HARNESS
// =============================================================================

type env struct {
	t          *testing.T
	configPath string
	dataDir    string
}

func newEnv(t *testing.T) *env {
	t.Helper()
	for _, name := range []string{config.EnvDataDir, config.EnvStore, config.EnvLogLevel, config.EnvModel, config.EnvAPIKey} {
		t.Setenv(name, "")
	}

	root := t.TempDir()
	e := &env{
		t:          t,
		configPath: filepath.Join(root, "config.toml"),
		dataDir:    filepath.Join(root, "data"),
	}
	require.NoError(t, config.Save(config.Default(), e.configPath))
	return e
}

type result struct {
	stdout string
	stderr string
	code   int
}

func (e *env) run(args ...string) result {
	e.t.Helper()
	var stdout, stderr bytes.Buffer
	r := &runner{
		stdin:  strings.NewReader(""),
		stdout: &stdout,
		stderr: &stderr,
	}
	root := newRootCommand(r)
	root.SetArgs(append([]string{
		"--config", e.configPath,
		"--data-dir", e.dataDir,
		"--log-file", "-",
		"--log-level", "disabled",
	}, args...))
	code := execute(context.Background(), root, &stderr)
	return result{stdout: stdout.String(), stderr: stderr.String(), code: code}
}

// seed writes a conversation with one exchange to the file store.
func (e *env) seed(title string) {
	e.t.Helper()
	store, err := storage.Open(storage.BackendFile, e.dataDir)
	require.NoError(e.t, err)
	defer store.Close()

	repo := conversation.New(store)
	id := repo.ActiveID()
	require.NoError(e.t, repo.Append(id, model.NewUserMessage("What is a mermaid diagram?", nil)))
	require.NoError(e.t, repo.Append(id, model.NewMessage(model.RoleAssistant, "A text format for charts.")))
	repo.Rename(id, title)
	require.NoError(e.t, repo.LastPersistError())
}

func (e *env) settings() settings.Settings {
	e.t.Helper()
	store, err := storage.Open(storage.BackendFile, e.dataDir)
	require.NoError(e.t, err)
	defer store.Close()

	mgr, err := settings.NewManager(store)
	require.NoError(e.t, err)
	return mgr.Snapshot()
}

func decodeSummaries(t *testing.T, out string) []conversationSummary {
	t.Helper()
	var rows []conversationSummary
	require.NoError(t, json.Unmarshal([]byte(out), &rows))
	return rows
}

// =============================================================================
// CONVERSATION COMMANDS
// =============================================================================

func TestListFreshStore(t *testing.T) {
	e := newEnv(t)

	res := e.run("list", "--json")
	require.Equal(t, ExitSuccess, res.code, res.stderr)

	rows := decodeSummaries(t, res.stdout)
	require.Len(t, rows, 1)
	assert.Equal(t, 1, rows[0].Index)
	assert.True(t, rows[0].Active)
	assert.Zero(t, rows[0].Messages)
}

func TestListWithBoltBackend(t *testing.T) {
	e := newEnv(t)

	res := e.run("--store", "bolt", "list")
	require.Equal(t, ExitSuccess, res.code, res.stderr)
	assert.Contains(t, res.stdout, "  1. ")
}

func TestRenameShowDelete(t *testing.T) {
	e := newEnv(t)
	e.seed("Diagrams")

	res := e.run("rename", "1", "Mermaid", "notes")
	require.Equal(t, ExitSuccess, res.code, res.stderr)
	assert.Equal(t, "Renamed to \"Mermaid notes\".\n", res.stdout)

	res = e.run("show", "1", "--json")
	require.Equal(t, ExitSuccess, res.code, res.stderr)
	var conv model.Conversation
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &conv))
	assert.Equal(t, "Mermaid notes", conv.Title)
	assert.True(t, conv.TitleLocked)
	require.Len(t, conv.Messages, 2)

	res = e.run("show", "1", "--render=false")
	require.Equal(t, ExitSuccess, res.code, res.stderr)
	assert.Contains(t, res.stdout, "Mermaid notes")
	assert.Contains(t, res.stdout, "A text format for charts.")

	res = e.run("delete", "1")
	require.Equal(t, ExitSuccess, res.code, res.stderr)
	assert.Equal(t, "Deleted \"Mermaid notes\".\n", res.stdout)

	rows := decodeSummaries(t, e.run("list", "--json").stdout)
	require.Len(t, rows, 1, "deleting the last conversation leaves a fresh one")
	assert.NotEqual(t, conv.ID, rows[0].ID)
}

func TestSearch(t *testing.T) {
	e := newEnv(t)
	e.seed("Diagrams")

	res := e.run("search", "text", "format")
	require.Equal(t, ExitSuccess, res.code, res.stderr)
	assert.Contains(t, res.stdout, "Diagrams")

	res = e.run("search", "nothing-like-this")
	require.Equal(t, ExitSuccess, res.code, res.stderr)
	assert.Equal(t, "No conversations match \"nothing-like-this\".\n", res.stdout)
}

func TestExport(t *testing.T) {
	e := newEnv(t)
	e.seed("Diagrams")

	res := e.run("export", "1", "--stdout")
	require.Equal(t, ExitSuccess, res.code, res.stderr)
	assert.Contains(t, res.stdout, "Diagrams")
	assert.Contains(t, res.stdout, "A text format for charts.")

	res = e.run("export", "1", "-f", "json", "--stdout")
	require.Equal(t, ExitSuccess, res.code, res.stderr)
	assert.True(t, json.Valid([]byte(res.stdout)))

	out := t.TempDir()
	res = e.run("export", "1", "-o", out)
	require.Equal(t, ExitSuccess, res.code, res.stderr)
	assert.Contains(t, res.stdout, "Exported")
	files, err := filepath.Glob(filepath.Join(out, "*.md"))
	require.NoError(t, err)
	assert.Len(t, files, 1)
}

func TestExitCodes(t *testing.T) {
	e := newEnv(t)
	e.seed("Diagrams")

	tests := []struct {
		name string
		args []string
		want int
	}{
		{"unknown reference", []string{"show", "9"}, ExitNotFoundError},
		{"missing argument", []string{"show"}, ExitUsageError},
		{"extra argument", []string{"list", "extra"}, ExitUsageError},
		{"unknown flag", []string{"list", "--bogus"}, ExitUsageError},
		{"blank title", []string{"rename", "1", "  "}, ExitUsageError},
		{"unknown export format", []string{"export", "1", "-f", "html"}, ExitUsageError},
		{"unknown config key", []string{"config", "get", "nope.nothing"}, ExitUsageError},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			res := e.run(tc.args...)
			assert.Equal(t, tc.want, res.code, res.stderr)
			assert.Contains(t, res.stderr, "[Error]")
		})
	}
}

// =============================================================================
// KEY / MODEL
// =============================================================================

func TestKeyLifecycle(t *testing.T) {
	e := newEnv(t)
	const key = "sk-test-0123456789abcdef"

	res := e.run("key", "set", key)
	require.Equal(t, ExitSuccess, res.code, res.stderr)
	assert.Contains(t, res.stdout, "API key saved")
	assert.NotContains(t, res.stdout, key)

	res = e.run("key", "status")
	require.Equal(t, ExitSuccess, res.code, res.stderr)
	assert.Contains(t, res.stdout, "stored")
	assert.NotContains(t, res.stdout, key)
	assert.Equal(t, key, e.settings().Credential)

	res = e.run("key", "clear")
	require.Equal(t, ExitSuccess, res.code, res.stderr)
	assert.False(t, e.settings().HasCredential())

	res = e.run("key")
	require.Equal(t, ExitSuccess, res.code, res.stderr)
	assert.Contains(t, res.stdout, "none")
}

func TestKeyFromEnvironmentIsNotStored(t *testing.T) {
	e := newEnv(t)
	t.Setenv(config.EnvAPIKey, "sk-env-0123456789")

	res := e.run("key", "status")
	require.Equal(t, ExitSuccess, res.code, res.stderr)
	assert.Contains(t, res.stdout, config.EnvAPIKey)

	t.Setenv(config.EnvAPIKey, "")
	assert.False(t, e.settings().HasCredential())
}

func TestModelSelection(t *testing.T) {
	e := newEnv(t)

	res := e.run("model", "sonnet")
	require.Equal(t, ExitSuccess, res.code, res.stderr)
	assert.Contains(t, res.stdout, "anthropic")
	assert.Equal(t, model.ResolveModelID("sonnet"), e.settings().Model)

	before := e.settings().Model
	res = e.run("model", "definitely-not-a-model")
	assert.NotEqual(t, ExitSuccess, res.code)
	assert.Equal(t, before, e.settings().Model, "rejected model must not be saved")
}

// =============================================================================
// CONFIG
// =============================================================================

func TestConfigSetAndGet(t *testing.T) {
	e := newEnv(t)

	res := e.run("config", "set", "gateway.max_output_tokens", "2048")
	require.Equal(t, ExitSuccess, res.code, res.stderr)
	assert.Contains(t, res.stdout, "gateway.max_output_tokens = 2048")

	res = e.run("config", "get", "gateway.max_output_tokens")
	require.Equal(t, ExitSuccess, res.code, res.stderr)
	assert.Equal(t, "2048\n", res.stdout)

	cfg, err := config.ReadFile(e.configPath)
	require.NoError(t, err)
	assert.Equal(t, 2048, cfg.Gateway.MaxOutputTokens)
}

func TestConfigSetDoesNotPersistEnvironment(t *testing.T) {
	e := newEnv(t)
	t.Setenv(config.EnvModel, "gpt-4o")

	res := e.run("config", "set", "ui.mode", "tui")
	require.Equal(t, ExitSuccess, res.code, res.stderr)

	cfg, err := config.ReadFile(e.configPath)
	require.NoError(t, err)
	assert.Equal(t, "tui", cfg.UI.Mode)
	assert.NotEqual(t, "gpt-4o", cfg.Gateway.DefaultModel)
}

func TestConfigInitAndPath(t *testing.T) {
	e := newEnv(t)

	res := e.run("config", "init")
	assert.Equal(t, ExitUsageError, res.code)
	assert.Contains(t, res.stderr, "already exists")

	res = e.run("config", "init", "--force")
	require.Equal(t, ExitSuccess, res.code, res.stderr)

	res = e.run("config", "path")
	require.Equal(t, ExitSuccess, res.code, res.stderr)
	assert.Equal(t, e.configPath+"\n", res.stdout)
}

func TestDoctorJSON(t *testing.T) {
	e := newEnv(t)

	res := e.run("doctor", "--json")
	require.Equal(t, ExitSuccess, res.code, res.stderr)

	var out struct {
		Checks []struct {
			Name   string `json:"name"`
			Status string `json:"status"`
		} `json:"checks"`
		Healthy bool `json:"healthy"`
	}
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &out))
	assert.True(t, out.Healthy)

	statuses := map[string]string{}
	for _, c := range out.Checks {
		statuses[c.Name] = c.Status
	}
	assert.Equal(t, "pass", statuses["config"])
	assert.Equal(t, "pass", statuses["store"])
	assert.Equal(t, "warn", statuses["api_key"])
	assert.Equal(t, "pass", statuses["model"])
}

func TestVersion(t *testing.T) {
	var stdout bytes.Buffer
	r := &runner{info: BuildInfo{Version: "1.2.3", GitCommit: "abc123"}, stdout: &stdout, stderr: &stdout}
	root := newRootCommand(r)
	root.SetArgs([]string{"version"})

	require.Equal(t, ExitSuccess, execute(context.Background(), root, &stdout))
	assert.Contains(t, stdout.String(), "parley 1.2.3")
	assert.Contains(t, stdout.String(), "abc123")
}

// =============================================================================
// CHAT SESSION
// =============================================================================

func newTestApp(t *testing.T, gw gateway.Gateway) *App {
	t.Helper()
	cfg := config.Default()
	cfg.UI.Markdown = false

	app, err := newApp(cfg, withStore(storage.NewMemoryStore()), withGateway(gw))
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Close() })
	return app
}

func TestChatSessionTurn(t *testing.T) {
	gw := gateway.Func(func(_ context.Context, req *request.TurnRequest) (string, error) {
		return "Hi! How can I help?", nil
	})
	app := newTestApp(t, gw)
	require.NoError(t, app.Settings.SetCredential("sk-test-0123456789"))

	var out bytes.Buffer
	s := newChatSession(app, &out)

	assert.False(t, s.handleLine(context.Background(), "hello"))
	assert.Contains(t, out.String(), "Hi! How can I help?")

	conv, err := app.Repo.Active()
	require.NoError(t, err)
	require.Len(t, conv.Messages, 2)
	assert.Equal(t, "hello", conv.Messages[0].Text)
}

func TestChatSessionMissingKey(t *testing.T) {
	app := newTestApp(t, gateway.Func(func(context.Context, *request.TurnRequest) (string, error) {
		t.Fatal("gateway must not be called without a key")
		return "", nil
	}))

	var out bytes.Buffer
	s := newChatSession(app, &out)

	assert.False(t, s.handleLine(context.Background(), "hello"))
	assert.Contains(t, out.String(), "parley key set")

	conv, err := app.Repo.Active()
	require.NoError(t, err)
	assert.Empty(t, conv.Messages)
}

func TestChatSessionCommands(t *testing.T) {
	app := newTestApp(t, gateway.Func(func(context.Context, *request.TurnRequest) (string, error) {
		return "unused", nil
	}))

	var out bytes.Buffer
	s := newChatSession(app, &out)
	ctx := context.Background()

	assert.False(t, s.handleLine(ctx, ""))
	assert.False(t, s.handleLine(ctx, "/rename Road trip"))
	assert.Contains(t, out.String(), `Renamed to "Road trip".`)

	out.Reset()
	assert.False(t, s.handleLine(ctx, "/new"))
	assert.Equal(t, 2, app.Repo.Len())

	out.Reset()
	assert.False(t, s.handleLine(ctx, "/nonsense"))
	assert.Contains(t, out.String(), "[Error]")

	assert.True(t, s.handleLine(ctx, "/quit"))
	assert.True(t, s.handleLine(ctx, "exit"))
}

// =============================================================================
// HELPERS
// =============================================================================

func TestGetExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, ExitSuccess},
		{"usage", &UsageError{Message: "bad"}, ExitUsageError},
		{"validation", &commands.ValidationError{Message: "bad"}, ExitUsageError},
		{"config", config.ValidationError{Field: "ui.mode", Message: "bad"}, ExitConfigError},
		{"not found", conversation.ErrConversationNotFound, ExitNotFoundError},
		{"no match", commands.ErrNoMatch, ExitNotFoundError},
		{"other", assert.AnError, ExitGeneralError},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, GetExitCode(tc.err))
		})
	}
}

func TestWrapText(t *testing.T) {
	text := "the quick brown fox jumps over the lazy dog and keeps running"
	wrapped := WrapText(text, 20)
	for _, line := range strings.Split(wrapped, "\n") {
		assert.LessOrEqual(t, len(line), 20, "line %q", line)
	}
	assert.Equal(t, strings.Fields(text), strings.Fields(wrapped))
}

func TestShortID(t *testing.T) {
	assert.Equal(t, "01234567", shortID("0123456789abcdef"))
	assert.Equal(t, "abc", shortID("abc"))
}

func TestWatchConfigForwardsUISection(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, config.Save(config.Default(), path))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	updates := watchConfig(ctx, path, func() (*config.Config, error) { return config.LoadFrom(path) })
	require.NotNil(t, updates)

	cfg := config.Default()
	cfg.UI.SpeakReplies = true
	require.NoError(t, config.Save(cfg, path))

	select {
	case ui := <-updates:
		assert.True(t, ui.SpeakReplies)
	case <-time.After(5 * time.Second):
		t.Fatal("no config update")
	}

	cancel()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case _, ok := <-updates:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("updates channel not closed after cancel")
		}
	}
}
