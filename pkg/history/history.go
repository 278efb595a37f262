// Package history keeps the bounded chat transcript shared by all
// requests.
package history

import "sync"

// DefaultMaxTurns is the number of user/assistant pairs retained.
const DefaultMaxTurns = 10

// Roles used in entries.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Entry is one message in the transcript.
type Entry struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// History is a mutex-guarded transcript bounded to the most recent turns.
// Entries are only added as user/assistant pairs, so the transcript always
// starts with a user entry. When it grows past the cap the oldest pair is
// dropped.
type History struct {
	mu       sync.Mutex
	entries  []Entry
	maxTurns int
}

// New returns an empty history. maxTurns <= 0 selects DefaultMaxTurns.
func New(maxTurns int) *History {
	if maxTurns <= 0 {
		maxTurns = DefaultMaxTurns
	}
	return &History{maxTurns: maxTurns}
}

// MaxTurns returns the configured cap.
func (h *History) MaxTurns() int {
	return h.maxTurns
}

// AddTurn appends a user message and the assistant reply together.
func (h *History) AddTurn(user, assistant string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.entries = append(h.entries,
		Entry{Role: RoleUser, Content: user},
		Entry{Role: RoleAssistant, Content: assistant},
	)
	for len(h.entries) > 2*h.maxTurns {
		h.entries = h.entries[2:]
	}
}

// Entries returns a copy of the transcript, oldest first.
func (h *History) Entries() []Entry {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := make([]Entry, len(h.entries))
	copy(out, h.entries)
	return out
}

// Len returns the number of entries.
func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.entries)
}

// Clear drops all entries.
func (h *History) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries = nil
}
