// Package session tracks per-chat conversation state.
//
// Sessions live only in process memory. They are created lazily on first
// interaction, wiped on "start over" actions, and simply abandoned when a
// user stops writing. The store's mutex only guards the map; a session's
// fields are mutated exclusively by that chat's serialized handler.
package session

import (
	"sync"

	"github.com/okravets/zapytai/internal/completion"
)

// State tags which conversational flow is active for a chat
type State int

const (
	StateIdle State = iota
	StateAskingGPT
	StateTalking
	StateTranslating
	StatePickingGenre
)

// String returns a readable state name for logging
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAskingGPT:
		return "gpt"
	case StateTalking:
		return "talk"
	case StateTranslating:
		return "translate"
	case StatePickingGenre:
		return "recommend_genre"
	default:
		return "unknown"
	}
}

// Session is the mutable per-chat state
type Session struct {
	State State

	// TargetLanguage is set while translating
	TargetLanguage string

	// Personality is the selected persona ID while talking
	Personality string

	// Recommendation flow fields
	RecCategory string
	RecGenre    string
	Rejected    []string

	// Conversation holds the multi-turn transcript for the gpt and talk
	// flows. One conversation per session; transcripts of different chats
	// can never interleave.
	Conversation *completion.Conversation
}

// reset wipes every field back to defaults
func (s *Session) reset() {
	*s = Session{}
}

// Store maps chat IDs to sessions
type Store struct {
	mu       sync.RWMutex
	sessions map[int64]*Session
}

// NewStore creates an empty session store
func NewStore() *Store {
	return &Store{sessions: make(map[int64]*Session)}
}

// Get returns the session for a chat, creating an empty one if absent
func (st *Store) Get(chatID int64) *Session {
	st.mu.RLock()
	s, ok := st.sessions[chatID]
	st.mu.RUnlock()
	if ok {
		return s
	}

	st.mu.Lock()
	defer st.mu.Unlock()
	if s, ok := st.sessions[chatID]; ok {
		return s
	}
	s = &Session{}
	st.sessions[chatID] = s
	return s
}

// Reset wipes the chat's session back to defaults
func (st *Store) Reset(chatID int64) {
	st.Get(chatID).reset()
}

// Len returns the number of live sessions
func (st *Store) Len() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.sessions)
}
