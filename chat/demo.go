package chat

import (
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// A DemoDirectory decides which identities are synthetic demo counterparts
// and how they are displayed.
type DemoDirectory interface {
	// Lookup returns the demo profile for id and whether id is a demo identity.
	Lookup(id string) (UserProfile, bool)
	// Profiles lists every demo identity.
	Profiles() []UserProfile
}

// A StaticDirectory is a DemoDirectory backed by a fixed profile list.
type StaticDirectory []UserProfile

// Lookup implements DemoDirectory.
func (d StaticDirectory) Lookup(id string) (UserProfile, bool) {
	for _, p := range d {
		if p.ID == id {
			return p, true
		}
	}
	return UserProfile{}, false
}

// Profiles implements DemoDirectory.
func (d StaticDirectory) Profiles() []UserProfile {
	out := make([]UserProfile, len(d))
	copy(out, d)
	return out
}

// demoIDPrefix marks message ids that live only in an Overlay.
const demoIDPrefix = "demo-"

// IsDemoMessageID reports whether id names a message held by an Overlay
// rather than the persistent store.
func IsDemoMessageID(id string) bool {
	return strings.HasPrefix(id, demoIDPrefix)
}

// DefaultDemoDirectory holds the two demo counterparts offered to every user.
var DefaultDemoDirectory = StaticDirectory{
	{
		ID:          "a1b2c3d4-e5f6-7890-abcd-ef1234567890",
		Username:    "alex",
		DisplayName: "Alex Johnson",
		AvatarURL:   "https://images.unsplash.com/photo-1507003211169-0a1dd7228f2d?w=150&h=150&fit=crop&crop=face",
		Status:      StatusOnline,
	},
	{
		ID:          "b2c3d4e5-f6a7-8901-bcde-f12345678901",
		Username:    "sarah",
		DisplayName: "Sarah Chen",
		AvatarURL:   "https://images.unsplash.com/photo-1494790108755-2616b612b5bc?w=150&h=150&fit=crop&crop=face",
		Status:      StatusOnline,
	},
}

var (
	selfProfile      = UserProfile{DisplayName: "You", Username: "you"}
	unknownDemoUser  = UserProfile{DisplayName: "Demo User", Username: "demo"}
	demoGreetingTime = time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)
	demoGreetings    = []string{
		"Hey! Welcome to the team chat! 👋",
		"This is a demo conversation to show how messaging works. Try sending me a message!",
	}
)

type demoKey struct {
	realUserID string
	demoUserID string
}

// An Overlay is an in-memory substitute for the direct message path when the
// counterpart is a demo identity. It never touches a Store. It is safe for
// concurrent use.
type Overlay struct {
	Directory DemoDirectory
	Now       func() time.Time

	mu            sync.Mutex
	conversations map[demoKey][]Message
}

// NewOverlay returns an empty overlay over dir.
func NewOverlay(dir DemoDirectory) *Overlay {
	return &Overlay{
		Directory:     dir,
		Now:           time.Now,
		conversations: make(map[demoKey][]Message),
	}
}

// Handles reports whether userID is a demo identity served by the overlay.
func (o *Overlay) Handles(userID string) bool {
	if o == nil || o.Directory == nil {
		return false
	}
	_, ok := o.Directory.Lookup(userID)
	return ok
}

// List returns the conversation between realUserID and demoUserID, seeding it
// on first access.
func (o *Overlay) List(realUserID, demoUserID string) []MessageView {
	o.mu.Lock()
	msgs := o.seed(realUserID, demoUserID)
	out := make([]MessageView, len(msgs))
	for i, m := range msgs {
		out[i] = MessageView{Message: m, Author: o.author(realUserID, m.UserID)}
	}
	o.mu.Unlock()
	return out
}

// Post appends content authored by realUserID to the conversation and
// returns the new message.
func (o *Overlay) Post(realUserID, demoUserID, content string) Message {
	o.mu.Lock()
	defer o.mu.Unlock()

	msgs := o.seed(realUserID, demoUserID)
	now := time.Now
	if o.Now != nil {
		now = o.Now
	}
	createdAt := now().UTC()
	if last := msgs[len(msgs)-1].CreatedAt; createdAt.Before(last) {
		createdAt = last
	}
	m := Message{
		ID:          demoIDPrefix + "msg-" + uuid.NewString(),
		UserID:      realUserID,
		RecipientID: demoUserID,
		Content:     content,
		Type:        MessageTypeText,
		CreatedAt:   createdAt,
	}
	o.conversations[demoKey{realUserID, demoUserID}] = append(msgs, m)
	return m
}

// Reset drops every demo conversation.
func (o *Overlay) Reset() {
	o.mu.Lock()
	o.conversations = make(map[demoKey][]Message)
	o.mu.Unlock()
}

// seed must be called with o.mu held.
func (o *Overlay) seed(realUserID, demoUserID string) []Message {
	if o.conversations == nil {
		o.conversations = make(map[demoKey][]Message)
	}
	key := demoKey{realUserID, demoUserID}
	if msgs, ok := o.conversations[key]; ok {
		return msgs
	}
	msgs := make([]Message, len(demoGreetings))
	for i, text := range demoGreetings {
		msgs[i] = Message{
			ID:          demoIDPrefix + "init-" + strconv.Itoa(i+1),
			UserID:      demoUserID,
			RecipientID: realUserID,
			Content:     text,
			Type:        MessageTypeText,
			CreatedAt:   demoGreetingTime.Add(time.Duration(i) * time.Minute),
		}
	}
	o.conversations[key] = msgs
	return msgs
}

func (o *Overlay) author(realUserID, authorID string) UserProfile {
	if authorID == realUserID {
		p := selfProfile
		p.ID = realUserID
		return p
	}
	if p, ok := o.Directory.Lookup(authorID); ok {
		return p
	}
	p := unknownDemoUser
	p.ID = authorID
	return p
}
