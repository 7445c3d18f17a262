package chat_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/GetStream/teamchat/chat"
	"github.com/GetStream/teamchat/memory"
	"github.com/neilotoole/slogt"
)

// testClock advances by step on every reading.
type testClock struct {
	mu   sync.Mutex
	now  time.Time
	step time.Duration
}

func newTestClock(step time.Duration) *testClock {
	return &testClock{now: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC), step: step}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.now
	c.now = c.now.Add(c.step)
	return t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type testEnv struct {
	store         *memory.Store
	resolver      *chat.Resolver
	conversations *chat.Conversations
	reactions     *chat.Reactions
	memberships   *chat.Memberships
	accounts      *chat.Accounts
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store := memory.New()
	store.Now = newTestClock(time.Second).Now
	return newTestEnvWith(t, store, store)
}

// newTestEnvWith wires the components over s, keeping mem for assertions.
func newTestEnvWith(t *testing.T, mem *memory.Store, s chat.Store) *testEnv {
	t.Helper()
	logger := slogt.New(t)
	resolver := &chat.Resolver{Logger: logger, Profiles: s, Demo: chat.DefaultDemoDirectory}
	memberships := &chat.Memberships{Logger: logger, Store: s}
	return &testEnv{
		store:         mem,
		resolver:      resolver,
		conversations: &chat.Conversations{Logger: logger, Store: s, Resolver: resolver},
		reactions:     &chat.Reactions{Logger: logger, Store: s, Resolver: resolver},
		memberships:   memberships,
		accounts: &chat.Accounts{
			Logger:      logger,
			Profiles:    s,
			Memberships: memberships,
			Demo:        chat.DefaultDemoDirectory,
		},
	}
}

// signIn signs in a user named after the local part of email and returns
// their session and general channel.
func (e *testEnv) signIn(t *testing.T, userID, email string) (*chat.Session, chat.Channel) {
	t.Helper()
	ctx := context.Background()
	if _, err := e.accounts.SignIn(ctx, chat.AuthIdentity{UserID: userID, Email: email}); err != nil {
		t.Fatalf("SignIn(%s): %v", userID, err)
	}
	chs, err := e.memberships.ListMemberships(ctx, userID)
	if err != nil {
		t.Fatalf("ListMemberships(%s): %v", userID, err)
	}
	if len(chs) != 1 || chs[0].Name != chat.GeneralChannelName {
		t.Fatalf("Got memberships %+v, want only general", chs)
	}
	return chat.NewSession(userID, chat.DefaultDemoDirectory), chs[0]
}

var (
	alex  = chat.DefaultDemoDirectory[0]
	sarah = chat.DefaultDemoDirectory[1]
)
