// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// doctor_cmd.go - environment health checks.
//
// Command: doctor
// Short:   Check configuration, storage, credentials and optional tools
// Aliases: diag
//
// Checks Performed:
//   1. Config Valid       - config file parses and validates
//   2. Data Dir Writable  - conversations and settings can be written
//   3. Store Opens        - the configured backend opens and loads
//   4. API Key            - a key is stored or set in PARLEY_API_KEY
//   5. Model Routable     - the selected model maps to a provider
//   6. Diagram Renderer   - mmdc is installed (optional)
//   7. Speech Output      - the configured TTS command exists (optional)
//   8. Terminal           - stdin and stdout are terminals
//
// Exit Codes:
//   0   No check failed
//   1   One or more checks failed
package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/jeranaias/parley/internal/config"
	"github.com/jeranaias/parley/internal/export"
	"github.com/jeranaias/parley/internal/gateway"
	"github.com/jeranaias/parley/internal/settings"
	"github.com/jeranaias/parley/internal/speech"
	"github.com/jeranaias/parley/internal/util"
)

// =============================================================================
// HEALTH CHECK TYPES
// =============================================================================

// CheckStatus represents the status of a health check.
type CheckStatus int

const (
	CheckPass CheckStatus = iota
	CheckWarn
	CheckFail
)

// String returns the lowercase status name used in JSON output.
func (s CheckStatus) String() string {
	switch s {
	case CheckPass:
		return "pass"
	case CheckWarn:
		return "warn"
	case CheckFail:
		return "fail"
	default:
		return "unknown"
	}
}

// Symbol returns the styled status marker.
func (s CheckStatus) Symbol() string {
	switch s {
	case CheckPass:
		return SuccessStyle.Render("[OK]")
	case CheckWarn:
		return WarningStyle.Render("[!!]")
	case CheckFail:
		return ErrorStyle.Render("[FAIL]")
	default:
		return "?"
	}
}

// HealthCheck is a single check result.
type HealthCheck struct {
	Name    string      `json:"name"`
	Status  CheckStatus `json:"-"`
	Message string      `json:"message"`
	Fix     string      `json:"fix,omitempty"`
}

// Render formats the check for the terminal.
func (c *HealthCheck) Render() string {
	out := fmt.Sprintf("%s %s", c.Status.Symbol(), c.Message)
	if c.Status != CheckPass && c.Fix != "" {
		out += "\n" + DimStyle.Render("     -> "+c.Fix)
	}
	return out
}

// errChecksFailed is returned so the process exits non-zero.
var errChecksFailed = errors.New("one or more health checks failed")

// =============================================================================
// COMMAND
// =============================================================================

func newDoctorCommand(r *runner) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:     "doctor",
		Aliases: []string{"diag"},
		Short:   "Check configuration, storage, credentials and optional tools",
		Args:    noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			checks := r.runChecks()
			if asJSON {
				if err := writeDoctorJSON(r.stdout, checks); err != nil {
					return err
				}
			} else {
				writeDoctor(r.stdout, checks)
			}
			for _, c := range checks {
				if c.Status == CheckFail {
					return errChecksFailed
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "output results as JSON")
	return cmd
}

func writeDoctor(w io.Writer, checks []*HealthCheck) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, TitleStyle.Render("parley doctor"))
	fmt.Fprintln(w, RenderSeparator(41))
	for _, c := range checks {
		fmt.Fprintln(w, c.Render())
	}
	fmt.Fprintln(w, RenderSeparator(41))

	var passed, warned, failed int
	for _, c := range checks {
		switch c.Status {
		case CheckPass:
			passed++
		case CheckWarn:
			warned++
		case CheckFail:
			failed++
		}
	}
	parts := []string{fmt.Sprintf("%d passed", passed)}
	if warned > 0 {
		parts = append(parts, WarningStyle.Render(fmt.Sprintf("%d warning", warned)))
	}
	if failed > 0 {
		parts = append(parts, ErrorStyle.Render(fmt.Sprintf("%d failed", failed)))
	}
	fmt.Fprintln(w, DimStyle.Render(strings.Join(parts, ", ")))
}

type doctorCheckJSON struct {
	HealthCheck
	Status string `json:"status"`
}

func writeDoctorJSON(w io.Writer, checks []*HealthCheck) error {
	out := struct {
		Checks  []doctorCheckJSON `json:"checks"`
		Healthy bool              `json:"healthy"`
	}{Healthy: true}
	for _, c := range checks {
		out.Checks = append(out.Checks, doctorCheckJSON{HealthCheck: *c, Status: c.Status.String()})
		if c.Status == CheckFail {
			out.Healthy = false
		}
	}
	return outputJSON(w, out)
}

// =============================================================================
// CHECKS
// =============================================================================

// runChecks runs every check it can. Later checks are skipped when the
// config or the store cannot be loaded.
func (r *runner) runChecks() []*HealthCheck {
	cfgCheck, cfg := r.checkConfig()
	checks := []*HealthCheck{cfgCheck}
	if cfg == nil {
		return checks
	}

	closeLog, err := initLogging(cfg, false)
	if err == nil {
		defer closeLog()
	}

	checks = append(checks, checkDataDir(cfg))

	app, err := newApp(cfg, r.appOpts...)
	if err != nil {
		return append(checks, &HealthCheck{
			Name:    "store",
			Status:  CheckFail,
			Message: "Store failed to open: " + err.Error(),
			Fix:     "Check storage.backend and storage.dir, or move the data directory aside",
		})
	}
	defer app.Close()

	checks = append(checks,
		&HealthCheck{
			Name:    "store",
			Status:  CheckPass,
			Message: fmt.Sprintf("%s store loaded (%d conversations)", cfg.Storage.Backend, app.Repo.Len()),
		},
		checkCredential(app.Settings),
		checkModel(app.Settings.Snapshot().Model),
		checkDiagramRenderer(),
		checkSpeech(cfg),
		checkTerminal(),
	)
	return checks
}

func (r *runner) checkConfig() (*HealthCheck, *config.Config) {
	check := &HealthCheck{Name: "config"}
	path, _ := r.configFilePath()

	cfg, err := r.flags.loadConfig()
	if err != nil {
		check.Status = CheckFail
		check.Message = "Config invalid: " + err.Error()
		check.Fix = "Edit " + path + " or run: parley config init --force"
		return check, nil
	}

	check.Status = CheckPass
	check.Message = "Config valid"
	if _, statErr := os.Stat(path); os.IsNotExist(statErr) {
		check.Message = "No config file, using defaults"
	}
	return check, cfg
}

func checkDataDir(cfg *config.Config) *HealthCheck {
	check := &HealthCheck{Name: "data_dir"}
	dir, err := cfg.DataDir()
	if err != nil {
		check.Status = CheckFail
		check.Message = "Cannot determine data directory: " + err.Error()
		return check
	}

	probe := filepath.Join(dir, ".doctor")
	err = util.AtomicWriteFile(probe, []byte("ok"), 0o600)
	if err == nil {
		err = os.Remove(probe)
	}
	if err != nil {
		check.Status = CheckFail
		check.Message = "Data directory not writable: " + dir
		check.Fix = "Fix permissions or pass --data-dir"
		return check
	}

	check.Status = CheckPass
	check.Message = "Data directory writable: " + dir
	return check
}

func checkCredential(mgr *settings.Manager) *HealthCheck {
	check := &HealthCheck{Name: "api_key"}
	switch mgr.CredentialSource() {
	case settings.SourceEnv:
		check.Status = CheckPass
		check.Message = "API key set from " + config.EnvAPIKey
	case settings.SourceStore:
		check.Status = CheckPass
		check.Message = "API key stored (" + mgr.Snapshot().MaskedCredential() + ")"
	default:
		check.Status = CheckWarn
		check.Message = "No API key; messages cannot be sent"
		check.Fix = "Run: parley key set"
	}
	return check
}

func checkModel(modelID string) *HealthCheck {
	check := &HealthCheck{Name: "model"}
	provider, _, err := gateway.ResolveProvider(modelID)
	if err != nil {
		check.Status = CheckFail
		check.Message = fmt.Sprintf("Model %q does not map to a provider", modelID)
		check.Fix = "Run: parley model <name> (parley model lists the catalog)"
		return check
	}
	check.Status = CheckPass
	check.Message = fmt.Sprintf("Model %s via %s", modelID, provider)
	return check
}

func checkDiagramRenderer() *HealthCheck {
	check := &HealthCheck{Name: "diagrams"}
	if export.NewCommandRenderer(export.DefaultMermaidCommand).Available() {
		check.Status = CheckPass
		check.Message = "Mermaid CLI found; diagrams export as SVG"
		return check
	}
	check.Status = CheckWarn
	check.Message = "Mermaid CLI not found; diagrams export as .mmd source"
	check.Fix = "npm install -g @mermaid-js/mermaid-cli"
	return check
}

func checkSpeech(cfg *config.Config) *HealthCheck {
	check := &HealthCheck{Name: "speech"}
	if cfg.Speech.Command == "" {
		check.Status = CheckPass
		check.Message = "Speech output disabled"
		return check
	}
	if speech.NewExecSpeaker(cfg.Speech.Command).Available() {
		check.Status = CheckPass
		check.Message = "Speech command found: " + cfg.Speech.Command
		return check
	}
	check.Status = CheckWarn
	check.Message = "Speech command not found: " + cfg.Speech.Command
	check.Fix = "Install it or run: parley config set speech.command \"\""
	return check
}

func checkTerminal() *HealthCheck {
	check := &HealthCheck{Name: "terminal"}
	if IsTTY() && IsStdoutTTY() {
		check.Status = CheckPass
		check.Message = fmt.Sprintf("Interactive terminal, %d columns", GetTerminalWidth())
		return check
	}
	check.Status = CheckWarn
	check.Message = "Not an interactive terminal; chat and tui need one"
	return check
}
