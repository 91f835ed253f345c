// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package commands

import (
	"context"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/jeranaias/parley/internal/conversation"
	"github.com/jeranaias/parley/internal/export"
	"github.com/jeranaias/parley/internal/model"
	"github.com/jeranaias/parley/internal/orchestrator"
	"github.com/jeranaias/parley/internal/settings"
	"github.com/jeranaias/parley/internal/speech"
)

// =============================================================================
// COMMAND DEFINITION
// =============================================================================

// HandlerFunc executes a command. Handlers never print; everything the user
// should see goes into the Result.
type HandlerFunc func(ctx context.Context, env *Context, args []string) (Result, error)

// Command represents a slash command that can be executed.
type Command struct {
	// Name is the primary command name (e.g., "/help")
	Name string

	// Aliases are alternative names (e.g., "/h", "/?")
	Aliases []string

	// Description is shown in help and completion
	Description string

	// Usage shows argument syntax (e.g., "/model [name]")
	Usage string

	// Args defines the expected arguments
	Args []ArgDef

	Handler HandlerFunc

	// Hidden commands don't appear in help
	Hidden bool

	// Category for grouping in help display
	Category string
}

// ArgDef defines an argument for a command.
type ArgDef struct {
	Name        string
	Required    bool
	Type        ArgType
	Description string

	// Values for enum types
	Values []string

	// Rest makes the argument take the remainder of the line verbatim,
	// quotes and apostrophes included. Only meaningful on the first argument.
	Rest bool
}

// ArgType indicates what kind of completion to provide.
type ArgType int

const (
	ArgTypeString       ArgType = iota // Free-form string
	ArgTypeModel                       // Model short name or id
	ArgTypeConversation                // List index or conversation id
	ArgTypeFile                        // File path
	ArgTypeEnum                        // One of predefined values
)

// =============================================================================
// RESULT
// =============================================================================

// Action tells the front end what to do after a command ran.
type Action int

const (
	// ActionNone: show Output, nothing else.
	ActionNone Action = iota
	// ActionQuit: leave the chat.
	ActionQuit
	// ActionRefresh: the active conversation changed; redraw it.
	ActionRefresh
	// ActionSubmit: submit Text as if the user had typed it.
	ActionSubmit
	// ActionAttach: hold Attachment for the next submission.
	ActionAttach
	// ActionDetach: drop any held attachment.
	ActionDetach
)

// Result is what a command hands back to the front end.
type Result struct {
	Output     string
	Action     Action
	Text       string
	Attachment *model.Attachment
}

// =============================================================================
// CONTEXT
// =============================================================================

// Context provides access to application state for command handlers.
// Repo and Settings are required; the rest may be nil and handlers report
// the feature as unavailable.
type Context struct {
	Repo         *conversation.Repository
	Settings     *settings.Manager
	Orchestrator *orchestrator.Orchestrator
	Speaker      speech.Speaker
	Recognizer   speech.Recognizer
	Renderer     export.DiagramRenderer

	// ExportDir receives exports and diagrams. Empty means the working
	// directory.
	ExportDir string

	// Attachment is the attachment currently held by the front end, if any.
	Attachment *model.Attachment

	Logger zerolog.Logger

	registry *Registry
}

// =============================================================================
// COMMAND REGISTRY
// =============================================================================

// Registry holds all registered commands.
type Registry struct {
	commands map[string]*Command
	aliases  map[string]*Command
}

// NewRegistry creates a new command registry with all built-in commands.
func NewRegistry() *Registry {
	r := &Registry{
		commands: make(map[string]*Command),
		aliases:  make(map[string]*Command),
	}
	r.registerBuiltins()
	return r
}

// Register adds a command to the registry.
func (r *Registry) Register(cmd *Command) {
	r.commands[cmd.Name] = cmd
	for _, alias := range cmd.Aliases {
		r.aliases[alias] = cmd
	}
}

// Get retrieves a command by name or alias. Lookup is case-insensitive.
func (r *Registry) Get(name string) *Command {
	name = strings.ToLower(name)
	if cmd, ok := r.commands[name]; ok {
		return cmd
	}
	if cmd, ok := r.aliases[name]; ok {
		return cmd
	}
	return nil
}

// All returns all registered commands sorted by name.
func (r *Registry) All() []*Command {
	cmds := make([]*Command, 0, len(r.commands))
	for _, cmd := range r.commands {
		cmds = append(cmds, cmd)
	}
	sort.Slice(cmds, func(i, j int) bool { return cmds[i].Name < cmds[j].Name })
	return cmds
}

// Names returns every command name and alias, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.commands)+len(r.aliases))
	for name := range r.commands {
		names = append(names, name)
	}
	for alias := range r.aliases {
		names = append(names, alias)
	}
	sort.Strings(names)
	return names
}

// ByCategory returns visible commands grouped by category.
func (r *Registry) ByCategory() map[string][]*Command {
	result := make(map[string][]*Command)
	for _, cmd := range r.All() {
		if cmd.Hidden {
			continue
		}
		category := cmd.Category
		if category == "" {
			category = "General"
		}
		result[category] = append(result[category], cmd)
	}
	return result
}

// =============================================================================
// EXECUTION
// =============================================================================

// Execute parses input, validates its arguments and runs the command.
func (r *Registry) Execute(ctx context.Context, env *Context, input string) (Result, error) {
	parsed := NewParser(r).Parse(input)
	if !parsed.IsCommand {
		return Result{}, ErrNotCommand
	}
	if parsed.Command == nil {
		return Result{}, errors.Wrapf(ErrUnknownCommand, "%s (try /help)", parsed.CommandName)
	}

	cmd := parsed.Command
	args := parsed.Args
	if len(cmd.Args) > 0 && cmd.Args[0].Rest && parsed.RawArgs != "" {
		args = []string{parsed.RawArgs}
	}
	if err := ValidateArgs(cmd, args); err != nil {
		return Result{}, err
	}

	env.registry = r
	env.Logger.Debug().Str("command", cmd.Name).Int("args", len(args)).Msg("running command")
	return cmd.Handler(ctx, env, args)
}

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrNotCommand is returned by Execute for input without a leading "/".
	ErrNotCommand = &CommandError{Message: "input is not a command"}

	// ErrUnknownCommand is returned for names the registry does not know.
	ErrUnknownCommand = &CommandError{Message: "unknown command"}

	// ErrNoMatch is returned when a conversation reference resolves to nothing.
	ErrNoMatch = &CommandError{Message: "no matching conversation"}

	// ErrAmbiguous is returned when an id prefix matches several conversations.
	ErrAmbiguous = &CommandError{Message: "ambiguous conversation reference"}

	// ErrUnavailable is returned when a collaborator is not configured.
	ErrUnavailable = &CommandError{Message: "not available"}
)

// CommandError is a command failure the user can act on.
type CommandError struct {
	Message string
}

// Error implements the error interface.
func (e *CommandError) Error() string {
	return e.Message
}

// Is implements errors.Is support for comparing command errors.
func (e *CommandError) Is(target error) bool {
	t, ok := target.(*CommandError)
	if !ok {
		return false
	}
	return e.Message == t.Message
}

// =============================================================================
// COMPLETION TYPE
// =============================================================================

// Completion represents a completion suggestion.
type Completion struct {
	// Value to insert
	Value string

	// Display text
	Display string

	// Description shown alongside
	Description string

	// Score for ranking (higher = better match)
	Score int
}
