package advisor

import (
	"sync"

	"github.com/google/uuid"

	"accidentadvisor/internal/logging"
)

// Exchange is one completed user/assistant turn.
type Exchange struct {
	User      string
	Assistant string
}

// Session holds the conversation state for one user. Only the most recent
// exchanges feed back into prompts, so the prompt size stays bounded no
// matter how long the conversation runs. Safe for concurrent use.
type Session struct {
	ID string

	mu        sync.Mutex
	window    int
	exchanges []Exchange
}

// NewSession creates a session with the given history window. Non-positive
// windows fall back to 3 exchanges.
func NewSession(window int) *Session {
	if window <= 0 {
		window = 3
	}
	s := &Session{
		ID:     uuid.NewString(),
		window: window,
	}
	logging.Session("Session %s started (window=%d)", s.ID, window)
	return s
}

// Append records a completed exchange, evicting the oldest one when the
// window is full.
func (s *Session) Append(user, assistant string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.exchanges = append(s.exchanges, Exchange{User: user, Assistant: assistant})
	if len(s.exchanges) > s.window {
		s.exchanges = s.exchanges[len(s.exchanges)-s.window:]
	}
	logging.SessionDebug("Session %s: %d exchanges in window", s.ID, len(s.exchanges))
}

// History returns a copy of the windowed exchanges, oldest first.
func (s *Session) History() []Exchange {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Exchange, len(s.exchanges))
	copy(out, s.exchanges)
	return out
}

// Clear drops all remembered exchanges. The session ID stays.
func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.exchanges = nil
	logging.Session("Session %s cleared", s.ID)
}
