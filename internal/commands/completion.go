// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package commands

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/jeranaias/parley/internal/model"
	"github.com/jeranaias/parley/internal/util"
)

// =============================================================================
// COMPLETER
// =============================================================================

// Completer handles tab completion for commands and arguments.
type Completer struct {
	registry *Registry

	// ModelsFn returns selectable models; defaults to the catalog.
	ModelsFn func() []string

	// ConversationsFn returns the conversation list in display order.
	ConversationsFn func() []model.Conversation

	// FilesFn returns paths matching a prefix; defaults to a directory read.
	FilesFn func(prefix string) []string
}

// NewCompleter creates a new completer with the given registry.
func NewCompleter(registry *Registry) *Completer {
	return &Completer{registry: registry}
}

// Complete returns completions for the given input at the cursor position.
func (c *Completer) Complete(input string, cursorPos int) []Completion {
	if cursorPos >= 0 && cursorPos < len(input) {
		input = input[:cursorPos]
	}
	input = strings.TrimLeft(input, " \t")

	if !strings.HasPrefix(input, "/") {
		return nil
	}

	parts := splitCommandLine(input)
	if len(parts) == 0 {
		return c.completeCommands("")
	}

	// Still typing the command name?
	if len(parts) == 1 && !strings.HasSuffix(input, " ") {
		return c.completeCommands(parts[0])
	}

	cmd := c.registry.Get(parts[0])
	if cmd == nil {
		return nil
	}

	argIndex := len(parts) - 2
	partial := ""
	if strings.HasSuffix(input, " ") {
		argIndex++
	} else {
		partial = parts[len(parts)-1]
	}

	return c.completeArg(cmd, argIndex, partial)
}

// CompleteLine returns whole-line candidates for line editors that replace
// the entire input (liner's WordCompleter contract without the head/tail
// split).
func (c *Completer) CompleteLine(line string) []string {
	completions := c.Complete(line, len(line))
	if len(completions) == 0 {
		return nil
	}

	prefix := ""
	if parts := splitCommandLine(line); len(parts) > 1 || strings.HasSuffix(line, " ") {
		cut := strings.LastIndexAny(line, " \t")
		prefix = line[:cut+1]
	}

	out := make([]string, 0, len(completions))
	for _, comp := range completions {
		value := comp.Value
		if strings.ContainsAny(value, " \t") {
			value = strconv.Quote(value)
		}
		out = append(out, prefix+value)
	}
	return out
}

// =============================================================================
// COMMAND COMPLETION
// =============================================================================

// completeCommands returns completions for command names.
func (c *Completer) completeCommands(partial string) []Completion {
	var completions []Completion

	partial = strings.ToLower(partial)

	for _, cmd := range c.registry.All() {
		if cmd.Hidden {
			continue
		}

		if strings.HasPrefix(cmd.Name, partial) {
			completions = append(completions, Completion{
				Value:       cmd.Name,
				Display:     cmd.Name,
				Description: cmd.Description,
				Score:       calculateScore(cmd.Name, partial),
			})
		}

		for _, alias := range cmd.Aliases {
			// Aliases only show up once they are the better match.
			if partial != "" && strings.HasPrefix(alias, partial) && !strings.HasPrefix(cmd.Name, partial) {
				completions = append(completions, Completion{
					Value:       alias,
					Display:     alias + " -> " + cmd.Name,
					Description: cmd.Description,
					Score:       calculateScore(alias, partial) - 10,
				})
			}
		}
	}

	sortCompletions(completions)
	return completions
}

// =============================================================================
// ARGUMENT COMPLETION
// =============================================================================

// completeArg returns completions for a command argument.
func (c *Completer) completeArg(cmd *Command, argIndex int, partial string) []Completion {
	if argIndex < 0 || argIndex >= len(cmd.Args) {
		return nil
	}

	arg := cmd.Args[argIndex]

	switch arg.Type {
	case ArgTypeModel:
		return c.completeModels(partial)
	case ArgTypeConversation:
		return c.completeConversations(partial)
	case ArgTypeFile:
		return c.completeFiles(partial)
	case ArgTypeEnum:
		return completeFromList(arg.Values, partial)
	default:
		return nil
	}
}

// completeModels returns completions for model names.
func (c *Completer) completeModels(partial string) []Completion {
	models := model.ModelShortNames()
	if c.ModelsFn != nil {
		models = c.ModelsFn()
	}

	completions := completeFromList(models, partial)
	for i := range completions {
		if info, ok := model.GetModelInfo(completions[i].Value); ok {
			completions[i].Description = info.Name
		}
	}
	return completions
}

// completeConversations offers list positions and id prefixes.
func (c *Completer) completeConversations(partial string) []Completion {
	if c.ConversationsFn == nil {
		return nil
	}

	var completions []Completion
	partial = strings.ToLower(partial)

	for i, conv := range c.ConversationsFn() {
		index := strconv.Itoa(i + 1)
		title := util.TruncateRunes(conv.GetTitle(), 30)

		switch {
		case strings.HasPrefix(index, partial):
			completions = append(completions, Completion{
				Value:       index,
				Display:     index + " - " + title,
				Description: shortID(conv.ID),
				Score:       1000 - i,
			})
		case partial != "" && strings.HasPrefix(strings.ToLower(conv.ID), partial):
			completions = append(completions, Completion{
				Value:       conv.ID,
				Display:     shortID(conv.ID) + " - " + title,
				Description: title,
				Score:       calculateScore(conv.ID, partial),
			})
		}
	}

	sortCompletions(completions)
	return completions
}

// completeFiles returns completions for file paths.
func (c *Completer) completeFiles(partial string) []Completion {
	if c.FilesFn != nil {
		return completeFromList(c.FilesFn(partial), partial)
	}
	return defaultFileCompletion(partial)
}

// defaultFileCompletion provides basic file path completion.
func defaultFileCompletion(partial string) []Completion {
	var completions []Completion

	dir := filepath.Dir(partial)
	prefix := filepath.Base(partial)
	if partial == "" || strings.HasSuffix(partial, string(os.PathSeparator)) {
		dir = partial
		prefix = ""
	}

	readDir := dir
	if readDir == "" {
		readDir = "."
	}
	entries, err := os.ReadDir(expandHome(readDir))
	if err != nil {
		return nil
	}

	lowerPrefix := strings.ToLower(prefix)

	for _, entry := range entries {
		name := entry.Name()
		if !strings.HasPrefix(strings.ToLower(name), lowerPrefix) {
			continue
		}

		// Skip hidden files unless asked for.
		if strings.HasPrefix(name, ".") && !strings.HasPrefix(prefix, ".") {
			continue
		}

		path := name
		if dir != "" && dir != "." {
			path = filepath.Join(dir, name)
		}
		score := calculateScore(name, lowerPrefix)
		desc := "directory"
		if entry.IsDir() {
			path += string(os.PathSeparator)
			score += 5
		} else if info, err := entry.Info(); err == nil {
			desc = formatFileSize(info.Size())
		}

		completions = append(completions, Completion{
			Value:       path,
			Display:     name,
			Description: desc,
			Score:       score,
		})
	}

	sortCompletions(completions)

	if len(completions) > 20 {
		completions = completions[:20]
	}
	return completions
}

// completeFromList returns completions from a list of strings.
func completeFromList(values []string, partial string) []Completion {
	var completions []Completion

	partial = strings.ToLower(partial)

	for _, value := range values {
		if strings.HasPrefix(strings.ToLower(value), partial) {
			completions = append(completions, Completion{
				Value:   value,
				Display: value,
				Score:   calculateScore(value, partial),
			})
		}
	}

	sortCompletions(completions)
	return completions
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// calculateScore ranks a completion. Exact matches win, then shorter
// prefix matches.
func calculateScore(value, partial string) int {
	value = strings.ToLower(value)
	partial = strings.ToLower(partial)

	score := 100

	if value == partial {
		return score + 100
	}

	if strings.HasPrefix(value, partial) {
		score += 50
		score += 20 - len(value)
	}

	score -= len(value) / 2

	return score
}

// sortCompletions sorts completions by score (descending), then alphabetically.
func sortCompletions(completions []Completion) {
	sort.SliceStable(completions, func(i, j int) bool {
		if completions[i].Score != completions[j].Score {
			return completions[i].Score > completions[j].Score
		}
		return completions[i].Value < completions[j].Value
	})
}

// shortID returns the first eight characters of an id.
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// formatFileSize formats a file size in human-readable form.
func formatFileSize(size int64) string {
	const (
		KB = 1024
		MB = KB * 1024
		GB = MB * 1024
	)

	switch {
	case size >= GB:
		return formatSizeNum(float64(size)/GB) + " GB"
	case size >= MB:
		return formatSizeNum(float64(size)/MB) + " MB"
	case size >= KB:
		return formatSizeNum(float64(size)/KB) + " KB"
	default:
		return strconv.FormatInt(size, 10) + " B"
	}
}

func formatSizeNum(f float64) string {
	s := fmt.Sprintf("%.1f", f)
	return strings.TrimSuffix(s, ".0")
}

// =============================================================================
// COMPLETION NAVIGATION
// =============================================================================

// CompletionState holds the state for cycling through completions.
type CompletionState struct {
	// Original input before completion
	OriginalInput string

	Completions []Completion

	// Selected index (-1 for none)
	Selected int

	// Visible indicates if completions should be shown
	Visible bool
}

// NewCompletionState creates a new completion state.
func NewCompletionState() *CompletionState {
	return &CompletionState{Selected: -1}
}

// Update replaces the completions and selects the first one.
func (cs *CompletionState) Update(input string, completions []Completion) {
	cs.OriginalInput = input
	cs.Completions = completions
	cs.Selected = 0
	cs.Visible = len(completions) > 0
}

// Next moves to the next completion.
func (cs *CompletionState) Next() {
	if len(cs.Completions) == 0 {
		return
	}
	cs.Selected = (cs.Selected + 1) % len(cs.Completions)
}

// Prev moves to the previous completion.
func (cs *CompletionState) Prev() {
	if len(cs.Completions) == 0 {
		return
	}
	cs.Selected--
	if cs.Selected < 0 {
		cs.Selected = len(cs.Completions) - 1
	}
}

// Accept returns the selected completion value, or empty if none selected.
func (cs *CompletionState) Accept() string {
	if cs.Selected < 0 || cs.Selected >= len(cs.Completions) {
		if len(cs.Completions) > 0 {
			return cs.Completions[0].Value
		}
		return ""
	}
	return cs.Completions[cs.Selected].Value
}

// Clear clears the completion state.
func (cs *CompletionState) Clear() {
	cs.OriginalInput = ""
	cs.Completions = nil
	cs.Selected = -1
	cs.Visible = false
}

// GetSelected returns the currently selected completion, or nil.
func (cs *CompletionState) GetSelected() *Completion {
	if cs.Selected < 0 || cs.Selected >= len(cs.Completions) {
		return nil
	}
	return &cs.Completions[cs.Selected]
}
