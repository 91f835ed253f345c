// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package conversation

import (
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/jeranaias/parley/internal/model"
	"github.com/jeranaias/parley/internal/storage"
)

// corruptBackupKey receives an undecodable collection document so that
// starting fresh never destroys the only copy.
const corruptBackupKey = storage.KeyConversations + ".corrupt"

// ErrInvalidMessage is returned by Append for messages with an unknown role,
// an attachment on a non-user message, or an attachment that would not
// decode after a restart.
var ErrInvalidMessage = &RepositoryError{Message: "invalid message"}

// =============================================================================
// REPOSITORY
// =============================================================================

// Repository owns the conversation collection and the active-conversation
// pointer. The collection is never empty and the active id always resolves.
//
// Every mutating call writes the whole collection and the active id through
// to the store before it returns. Store failures are logged and swallowed:
// the in-memory state stays authoritative for the rest of the session and
// LastPersistError reports the most recent failure.
//
// Repository is safe for concurrent use. Accessors return copies, so callers
// can hold on to a conversation while the repository keeps changing.
type Repository struct {
	mu sync.Mutex

	store  storage.Store
	logger zerolog.Logger

	// conversations is ordered most-recently-created first.
	conversations []model.Conversation
	activeID      string

	lastPersistErr error
}

// Option configures a Repository.
type Option func(*Repository)

// WithLogger sets the logger used for persistence and repair events.
func WithLogger(logger zerolog.Logger) Option {
	return func(r *Repository) {
		r.logger = logger
	}
}

// New loads the collection from store, repairing it if needed so that at
// least one conversation exists and the active id resolves.
func New(store storage.Store, opts ...Option) *Repository {
	r := &Repository{
		store:  store,
		logger: log.Logger.With().Str("component", "conversations").Logger(),
	}
	for _, opt := range opts {
		opt(r)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.load() {
		r.persistLocked()
	}
	return r
}

// load reads persisted state. It reports whether the loaded state had to be
// changed and should be written back.
func (r *Repository) load() bool {
	r.conversations = []model.Conversation{}
	changed := false

	doc, ok, err := r.store.Get(storage.KeyConversations)
	switch {
	case err != nil:
		r.recordPersistError("read", storage.KeyConversations, err)
	case !ok:
		changed = true
	default:
		convs, err := storage.DecodeConversations(doc)
		if err != nil {
			r.logger.Error().Err(err).Msg("Stored conversations are unreadable, starting fresh")
			if err := r.store.Set(corruptBackupKey, doc); err != nil {
				r.recordPersistError("write", corruptBackupKey, err)
			}
			changed = true
			break
		}
		r.conversations = dedupe(convs)
		changed = len(r.conversations) != len(convs)
	}

	active, _, err := r.store.Get(storage.KeyActiveConversation)
	if err != nil {
		r.recordPersistError("read", storage.KeyActiveConversation, err)
	}
	r.activeID = active

	if r.ensureInvariantsLocked() {
		changed = true
	}
	return changed
}

// dedupe drops conversations whose id already appeared earlier.
func dedupe(convs []model.Conversation) []model.Conversation {
	seen := make(map[string]bool, len(convs))
	out := convs[:0]
	for _, c := range convs {
		if seen[c.ID] {
			continue
		}
		seen[c.ID] = true
		out = append(out, c)
	}
	return out
}

// ensureInvariantsLocked synthesizes a conversation when the collection is
// empty and points activeID at the first entry when it does not resolve.
// Returns true if anything changed.
func (r *Repository) ensureInvariantsLocked() bool {
	changed := false
	if len(r.conversations) == 0 {
		r.conversations = append(r.conversations, model.NewConversation())
		changed = true
	}
	if r.indexLocked(r.activeID) < 0 {
		r.activeID = r.conversations[0].ID
		changed = true
	}
	return changed
}

// =============================================================================
// QUERIES
// =============================================================================

// List returns all conversations, most recently created first.
func (r *Repository) List() []model.Conversation {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]model.Conversation, len(r.conversations))
	for i, c := range r.conversations {
		out[i] = c.Clone()
	}
	return out
}

// Len returns the number of conversations.
func (r *Repository) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.conversations)
}

// Get returns the conversation with the given id.
func (r *Repository) Get(id string) (model.Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	idx := r.indexLocked(id)
	if idx < 0 {
		return model.Conversation{}, errors.Wrapf(ErrConversationNotFound, "%q", id)
	}
	return r.conversations[idx].Clone(), nil
}

// ActiveID returns the id of the active conversation.
func (r *Repository) ActiveID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.activeID
}

// Active returns the active conversation. If the active pointer does not
// resolve, it is repaired to the first conversation and persisted; the
// repaired conversation is returned together with an error matching
// ErrInvariantViolation. The returned conversation is always usable.
func (r *Repository) Active() (model.Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if idx := r.indexLocked(r.activeID); idx >= 0 {
		return r.conversations[idx].Clone(), nil
	}

	err := errors.Wrapf(ErrInvariantViolation, "active id %q", r.activeID)
	r.logger.Error().Err(err).Msg("Repairing active conversation pointer")
	r.ensureInvariantsLocked()
	r.persistLocked()
	return r.conversations[0].Clone(), err
}

// Search returns conversations whose title or message text contains query,
// in list order. A blank query matches nothing.
func (r *Repository) Search(query string) []model.Conversation {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	var out []model.Conversation
	for _, c := range r.conversations {
		if c.Contains(query) {
			out = append(out, c.Clone())
		}
	}
	return out
}

// LastPersistError returns the most recent store failure, or nil if the last
// write succeeded.
func (r *Repository) LastPersistError() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastPersistErr
}

// =============================================================================
// MUTATIONS
// =============================================================================

// Create inserts a new empty conversation at the front of the collection,
// makes it active and returns its id.
func (r *Repository) Create() string {
	r.mu.Lock()
	defer r.mu.Unlock()

	conv := model.NewConversation()
	r.conversations = append([]model.Conversation{conv}, r.conversations...)
	r.activeID = conv.ID
	r.persistLocked()

	r.logger.Debug().Str("conversation", conv.ID).Msg("Created conversation")
	return conv.ID
}

// Delete removes a conversation. Deleting the last conversation leaves a
// fresh empty one in its place; deleting the active conversation activates
// the new first entry. Unknown ids are ignored.
func (r *Repository) Delete(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	idx := r.indexLocked(id)
	if idx < 0 {
		return
	}

	r.conversations = append(r.conversations[:idx:idx], r.conversations[idx+1:]...)
	if len(r.conversations) == 0 {
		r.conversations = append(r.conversations, model.NewConversation())
	}
	if r.activeID == id {
		r.activeID = r.conversations[0].ID
	}
	r.persistLocked()

	r.logger.Debug().Str("conversation", id).Msg("Deleted conversation")
}

// Rename sets a user-chosen title and locks it against automatic titling.
// Blank titles and unknown ids are ignored.
func (r *Repository) Rename(id, title string) {
	title = strings.TrimSpace(title)
	if title == "" {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	idx := r.indexLocked(id)
	if idx < 0 {
		return
	}
	r.conversations[idx].Title = title
	r.conversations[idx].TitleLocked = true
	r.persistLocked()
}

// Append adds msg to the end of the conversation's history. When msg is the
// first message, comes from the user and the title is not locked, the title
// is derived from its text.
func (r *Repository) Append(id string, msg model.Message) error {
	if !msg.Role.Valid() {
		return errors.Wrapf(ErrInvalidMessage, "role %q", msg.Role)
	}
	if msg.Attachment != nil && msg.Role != model.RoleUser {
		return errors.Wrap(ErrInvalidMessage, "only user messages carry attachments")
	}
	if msg.Attachment != nil {
		if err := msg.Attachment.Validate(); err != nil {
			return errors.Wrap(ErrInvalidMessage, err.Error())
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	idx := r.indexLocked(id)
	if idx < 0 {
		return errors.Wrapf(ErrConversationNotFound, "%q", id)
	}

	conv := &r.conversations[idx]
	if len(conv.Messages) == 0 && msg.Role == model.RoleUser && !conv.TitleLocked {
		if title := model.DeriveTitle(msg.Text); title != "" {
			conv.Title = title
		}
	}
	conv.Messages = append(conv.Messages, msg)
	r.persistLocked()
	return nil
}

// SetActive switches the active conversation. Unknown ids are ignored.
func (r *Repository) SetActive(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.indexLocked(id) < 0 || r.activeID == id {
		return
	}
	r.activeID = id
	r.persistLocked()
}

// =============================================================================
// INTERNALS
// =============================================================================

func (r *Repository) indexLocked(id string) int {
	if id == "" {
		return -1
	}
	for i := range r.conversations {
		if r.conversations[i].ID == id {
			return i
		}
	}
	return -1
}

// persistLocked writes the collection and the active id through to the
// store. Failures are recorded and logged, never returned.
func (r *Repository) persistLocked() {
	doc, err := storage.EncodeConversations(r.conversations)
	if err != nil {
		r.recordPersistError("encode", storage.KeyConversations, err)
		return
	}
	if err := r.store.Set(storage.KeyConversations, doc); err != nil {
		r.recordPersistError("write", storage.KeyConversations, err)
		return
	}
	if err := r.store.Set(storage.KeyActiveConversation, r.activeID); err != nil {
		r.recordPersistError("write", storage.KeyActiveConversation, err)
		return
	}
	r.lastPersistErr = nil
}

func (r *Repository) recordPersistError(op, key string, cause error) {
	err := errors.Wrapf(ErrPersistenceFailure, "%s %s: %v", op, key, cause)
	r.lastPersistErr = err
	r.logger.Error().Err(err).Msg("Conversation state not persisted")
}
