package api

import (
	"sync"

	"github.com/GetStream/teamchat/chat"
)

// Sessions holds one chat.Session per signed-in user for the lifetime of the
// process.
type Sessions struct {
	// Demo is the directory handed to new sessions; nil disables demo users.
	Demo chat.DemoDirectory

	mu       sync.Mutex
	sessions map[string]*chat.Session
}

// Get returns the session for userID, starting one if needed.
func (s *Sessions) Get(userID string) *chat.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sessions == nil {
		s.sessions = make(map[string]*chat.Session)
	}
	sess, ok := s.sessions[userID]
	if !ok {
		sess = chat.NewSession(userID, s.Demo)
		s.sessions[userID] = sess
	}
	return sess
}

// End resets and forgets the session for userID.
func (s *Sessions) End(userID string) {
	s.mu.Lock()
	sess, ok := s.sessions[userID]
	delete(s.sessions, userID)
	s.mu.Unlock()
	if ok {
		sess.Reset()
	}
}
