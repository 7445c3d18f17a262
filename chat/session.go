package chat

import (
	"sync"
	"time"
)

// ConversationKind distinguishes channels from direct message pairs.
type ConversationKind int

const (
	KindChannel ConversationKind = iota + 1
	KindDirect
)

func (k ConversationKind) String() string {
	switch k {
	case KindChannel:
		return "channel"
	case KindDirect:
		return "dm"
	default:
		return "unknown"
	}
}

// A ConversationRef names a conversation from the acting user's point of
// view: a channel id, or the id of the other DM participant.
type ConversationRef struct {
	Kind ConversationKind
	ID   string
}

// ChannelRef refers to a channel conversation.
func ChannelRef(channelID string) ConversationRef {
	return ConversationRef{Kind: KindChannel, ID: channelID}
}

// DirectRef refers to the DM conversation with otherUserID.
func DirectRef(otherUserID string) ConversationRef {
	return ConversationRef{Kind: KindDirect, ID: otherUserID}
}

// IsZero reports whether r refers to no conversation.
func (r ConversationRef) IsZero() bool {
	return r == ConversationRef{}
}

// SyncState is the state of a session's sync loop.
type SyncState int

const (
	StateIdle SyncState = iota
	StatePolling
)

// A View is the last assembled snapshot of a conversation.
type View struct {
	Ref         ConversationRef
	Messages    []MessageView
	RefreshedAt time.Time
	// Err is the collaborator error of the read that produced the view, if
	// any. Messages is empty when Err is set.
	Err error
}

// A Session is the per-user state shared by the Conversations and the
// SyncLoop: the acting identity, its demo overlay and the polling state.
// A Session is safe for concurrent use.
type Session struct {
	UserID string
	Demo   *Overlay

	mu          sync.Mutex
	state       SyncState
	gen         uint64 // bumped on every selection change
	active      ConversationRef
	lastRefresh time.Time
	view        View
}

// NewSession starts a session for userID. A nil dir disables the demo
// overlay.
func NewSession(userID string, dir DemoDirectory) *Session {
	s := &Session{UserID: userID}
	if dir != nil {
		s.Demo = NewOverlay(dir)
	}
	return s
}

// Reset returns the session to Idle and drops its demo conversations.
func (s *Session) Reset() {
	s.mu.Lock()
	s.gen++
	s.state = StateIdle
	s.active = ConversationRef{}
	s.lastRefresh = time.Time{}
	s.view = View{}
	s.mu.Unlock()
	if s.Demo != nil {
		s.Demo.Reset()
	}
}

// State returns the sync state and the active conversation.
func (s *Session) State() (SyncState, ConversationRef) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state, s.active
}

// View returns the most recently accepted view.
func (s *Session) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view
}

// LastRefresh returns when the active conversation was last read.
func (s *Session) LastRefresh() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastRefresh
}
