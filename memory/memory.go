// Package memory provides an in-process table store with the same contract
// as the postgres store: server-assigned ids and timestamps, and ErrDuplicate
// on unique-key violations.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/GetStream/teamchat/chat"
	"github.com/google/uuid"
)

type membershipKey struct {
	userID    string
	channelID string
}

type reactionKey struct {
	messageID string
	userID    string
	emoji     string
}

type channelKey struct {
	workspaceID string
	name        string
}

// Store is a chat.Store held in memory. It is safe for concurrent use.
type Store struct {
	// Now stamps CreatedAt fields. Defaults to time.Now.
	Now func() time.Time

	mu           sync.RWMutex
	profiles     map[string]chat.UserProfile
	workspaces   []chat.Workspace
	channels     []chat.Channel
	channelNames map[channelKey]bool
	memberships  map[membershipKey]chat.Membership
	messages     []chat.Message
	reactions    []chat.Reaction
	reactionKeys map[reactionKey]bool
}

var _ chat.Store = (*Store)(nil)

// New returns an empty store.
func New() *Store {
	return &Store{
		Now:          time.Now,
		profiles:     make(map[string]chat.UserProfile),
		channelNames: make(map[channelKey]bool),
		memberships:  make(map[membershipKey]chat.Membership),
		reactionKeys: make(map[reactionKey]bool),
	}
}

func (s *Store) now() time.Time {
	if s.Now == nil {
		return time.Now().UTC()
	}
	return s.Now().UTC()
}

// GetProfile implements chat.ProfileStore.
func (s *Store) GetProfile(_ context.Context, id string) (chat.UserProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[id]
	if !ok {
		return chat.UserProfile{}, chat.ErrNotFound
	}
	return p, nil
}

// UpsertProfile implements chat.ProfileStore.
func (s *Store) UpsertProfile(_ context.Context, p chat.UserProfile) (chat.UserProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = s.now()
	}
	s.profiles[p.ID] = p
	return p, nil
}

// ListProfiles implements chat.ProfileStore. Profiles are ordered by
// username.
func (s *Store) ListProfiles(_ context.Context, excludeID string) ([]chat.UserProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]chat.UserProfile, 0, len(s.profiles))
	for id, p := range s.profiles {
		if id != excludeID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Username != out[j].Username {
			return out[i].Username < out[j].Username
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// FindWorkspace implements chat.ChannelStore.
func (s *Store) FindWorkspace(_ context.Context, name string) (chat.Workspace, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, w := range s.workspaces {
		if w.Name == name {
			return w, nil
		}
	}
	return chat.Workspace{}, chat.ErrNotFound
}

// InsertWorkspace implements chat.ChannelStore. Workspace names are not
// constrained.
func (s *Store) InsertWorkspace(_ context.Context, w chat.Workspace) (chat.Workspace, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w.ID = uuid.NewString()
	w.CreatedAt = s.now()
	s.workspaces = append(s.workspaces, w)
	return w, nil
}

// FindChannel implements chat.ChannelStore.
func (s *Store) FindChannel(_ context.Context, workspaceID, name string) (chat.Channel, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.channels {
		if c.WorkspaceID == workspaceID && c.Name == name {
			return c, nil
		}
	}
	return chat.Channel{}, chat.ErrNotFound
}

// InsertChannel implements chat.ChannelStore.
func (s *Store) InsertChannel(_ context.Context, c chat.Channel) (chat.Channel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := channelKey{c.WorkspaceID, c.Name}
	if s.channelNames[key] {
		return chat.Channel{}, chat.ErrDuplicate
	}
	c.ID = uuid.NewString()
	c.CreatedAt = s.now()
	s.channelNames[key] = true
	s.channels = append(s.channels, c)
	return c, nil
}

// ListPublicChannels implements chat.ChannelStore.
func (s *Store) ListPublicChannels(_ context.Context) ([]chat.Channel, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]chat.Channel, 0, len(s.channels))
	for _, c := range s.channels {
		if !c.IsPrivate {
			out = append(out, c)
		}
	}
	return out, nil
}

// ListChannelsForUser implements chat.ChannelStore.
func (s *Store) ListChannelsForUser(_ context.Context, userID string) ([]chat.Channel, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]chat.Channel, 0)
	for _, c := range s.channels {
		if _, ok := s.memberships[membershipKey{userID, c.ID}]; ok {
			out = append(out, c)
		}
	}
	return out, nil
}

// InsertMembership implements chat.ChannelStore.
func (s *Store) InsertMembership(_ context.Context, m chat.Membership) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := membershipKey{m.UserID, m.ChannelID}
	if _, ok := s.memberships[key]; ok {
		return chat.ErrDuplicate
	}
	m.JoinedAt = s.now()
	s.memberships[key] = m
	return nil
}

// MembershipCount returns how many membership rows exist for the pair.
func (s *Store) MembershipCount(userID, channelID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.memberships[membershipKey{userID, channelID}]; ok {
		return 1
	}
	return 0
}

// InsertMessage implements chat.MessageStore.
func (s *Store) InsertMessage(_ context.Context, m chat.Message) (chat.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m.ID = uuid.NewString()
	m.CreatedAt = s.now()
	if m.Type == "" {
		m.Type = chat.MessageTypeText
	}
	s.messages = append(s.messages, m)
	return m, nil
}

// ListChannelMessages implements chat.MessageStore.
func (s *Store) ListChannelMessages(_ context.Context, channelID string, limit int) ([]chat.Message, error) {
	return s.selectMessages(limit, func(m chat.Message) bool {
		return m.ChannelID == channelID
	}), nil
}

// ListDirectMessages implements chat.MessageStore.
func (s *Store) ListDirectMessages(_ context.Context, userA, userB string, limit int) ([]chat.Message, error) {
	return s.selectMessages(limit, func(m chat.Message) bool {
		if m.ChannelID != "" {
			return false
		}
		return (m.UserID == userA && m.RecipientID == userB) ||
			(m.UserID == userB && m.RecipientID == userA)
	}), nil
}

// selectMessages returns the last limit matching messages ordered by
// CreatedAt, ties kept in insertion order.
func (s *Store) selectMessages(limit int, match func(chat.Message) bool) []chat.Message {
	s.mu.RLock()
	out := make([]chat.Message, 0)
	for _, m := range s.messages {
		if match(m) {
			out = append(out, m)
		}
	}
	s.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out
}

// MessageCount returns the number of stored messages.
func (s *Store) MessageCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.messages)
}

// InsertReaction implements chat.ReactionStore.
func (s *Store) InsertReaction(_ context.Context, r chat.Reaction) (chat.Reaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := reactionKey{r.MessageID, r.UserID, r.Emoji}
	if s.reactionKeys[key] {
		return chat.Reaction{}, chat.ErrDuplicate
	}
	r.ID = uuid.NewString()
	r.CreatedAt = s.now()
	s.reactionKeys[key] = true
	s.reactions = append(s.reactions, r)
	return r, nil
}

// DeleteReaction implements chat.ReactionStore.
func (s *Store) DeleteReaction(_ context.Context, messageID, userID, emoji string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := reactionKey{messageID, userID, emoji}
	if !s.reactionKeys[key] {
		return false, nil
	}
	delete(s.reactionKeys, key)
	for i, r := range s.reactions {
		if r.MessageID == messageID && r.UserID == userID && r.Emoji == emoji {
			s.reactions = append(s.reactions[:i], s.reactions[i+1:]...)
			break
		}
	}
	return true, nil
}

// ListReactions implements chat.ReactionStore.
func (s *Store) ListReactions(_ context.Context, messageID string) ([]chat.Reaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]chat.Reaction, 0)
	for _, r := range s.reactions {
		if r.MessageID == messageID {
			out = append(out, r)
		}
	}
	return out, nil
}
