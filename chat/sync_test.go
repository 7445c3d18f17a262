package chat_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/GetStream/teamchat/chat"
	"github.com/GetStream/teamchat/memory"
	"github.com/neilotoole/slogt"
)

func newSyncLoop(t *testing.T, env *testEnv, clock *testClock) *chat.SyncLoop {
	t.Helper()
	return &chat.SyncLoop{
		Logger:        slogt.New(t),
		Conversations: env.conversations,
		Interval:      5 * time.Second,
		Limit:         chat.DefaultLimit,
		Now:           clock.Now,
	}
}

func contents(msgs []chat.MessageView) []string {
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i] = m.Content
	}
	return out
}

func TestSyncLoop_TickHonorsInterval(t *testing.T) {
	env := newTestEnv(t)
	ann, general := env.signIn(t, "u-ann", "ann@example.com")
	bob, _ := env.signIn(t, "u-bob", "bob@example.com")
	ctx := context.Background()
	clock := newTestClock(0)
	loop := newSyncLoop(t, env, clock)

	v, err := loop.Select(ctx, ann, chat.ChannelRef(general.ID))
	if err != nil {
		t.Fatal(err)
	}
	if len(v.Messages) != 0 {
		t.Fatalf("Got %d messages, want 0", len(v.Messages))
	}
	if state, ref := ann.State(); state != chat.StatePolling || ref != chat.ChannelRef(general.ID) {
		t.Fatalf("Got state %v ref %+v after Select", state, ref)
	}

	if _, err := env.conversations.PostChannelMessage(ctx, bob, general.ID, "from bob"); err != nil {
		t.Fatal(err)
	}

	clock.Advance(4 * time.Second)
	if loop.Stale(ann) {
		t.Error("Stale before the interval elapsed")
	}
	v, fresh, err := loop.Tick(ctx, ann)
	if err != nil {
		t.Fatal(err)
	}
	if fresh || len(v.Messages) != 0 {
		t.Errorf("Tick before interval: fresh=%v messages=%v", fresh, contents(v.Messages))
	}

	clock.Advance(time.Second)
	if !loop.Stale(ann) {
		t.Error("Not stale once the interval elapsed")
	}
	v, fresh, err = loop.Tick(ctx, ann)
	if err != nil {
		t.Fatal(err)
	}
	if !fresh || len(v.Messages) != 1 || v.Messages[0].Content != "from bob" {
		t.Errorf("Tick after interval: fresh=%v messages=%v", fresh, contents(v.Messages))
	}
	if got := ann.LastRefresh(); !got.Equal(v.RefreshedAt) {
		t.Errorf("LastRefresh %v, view refreshed at %v", got, v.RefreshedAt)
	}

	if _, fresh, _ := loop.Tick(ctx, ann); fresh {
		t.Error("Tick right after a refresh produced a fresh view")
	}
}

func TestSyncLoop_Idle(t *testing.T) {
	env := newTestEnv(t)
	sess, general := env.signIn(t, "u-ann", "ann@example.com")
	ctx := context.Background()
	loop := newSyncLoop(t, env, newTestClock(time.Minute))

	if v, fresh, err := loop.Tick(ctx, sess); fresh || err != nil || !v.Ref.IsZero() {
		t.Errorf("Idle Tick = %+v, %v, %v", v, fresh, err)
	}
	if _, err := loop.Refresh(ctx, sess); !errors.Is(err, chat.ErrIdle) {
		t.Errorf("Idle Refresh error = %v, want ErrIdle", err)
	}
	if _, _, err := loop.Send(ctx, sess, "hello"); !errors.Is(err, chat.ErrIdle) {
		t.Errorf("Idle Send error = %v, want ErrIdle", err)
	}
	if loop.Stale(sess) {
		t.Error("Idle session reported stale")
	}

	if _, err := loop.Select(ctx, sess, chat.ChannelRef(general.ID)); err != nil {
		t.Fatal(err)
	}
	loop.Deselect(sess)
	if state, ref := sess.State(); state != chat.StateIdle || !ref.IsZero() {
		t.Errorf("Got state %v ref %+v after Deselect", state, ref)
	}
	if _, err := loop.Refresh(ctx, sess); !errors.Is(err, chat.ErrIdle) {
		t.Errorf("Refresh after Deselect error = %v, want ErrIdle", err)
	}
}

func TestSyncLoop_SendRefreshesImmediately(t *testing.T) {
	env := newTestEnv(t)
	sess, general := env.signIn(t, "u-ann", "ann@example.com")
	ctx := context.Background()
	loop := newSyncLoop(t, env, newTestClock(0))

	tests := []struct {
		name string
		ref  chat.ConversationRef
		want int
	}{
		{name: "Channel", ref: chat.ChannelRef(general.ID), want: 1},
		{name: "Direct", ref: chat.DirectRef("u-bob"), want: 1},
		{name: "Demo", ref: chat.DirectRef(alex.ID), want: 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := loop.Select(ctx, sess, tt.ref); err != nil {
				t.Fatal(err)
			}
			msg, v, err := loop.Send(ctx, sess, "  typed  ")
			if err != nil {
				t.Fatal(err)
			}
			if len(v.Messages) != tt.want {
				t.Fatalf("Got %d messages, want %d", len(v.Messages), tt.want)
			}
			last := v.Messages[len(v.Messages)-1]
			if last.ID != msg.ID || last.Content != "typed" {
				t.Errorf("Got last %q (%q), want sent %q", last.ID, last.Content, msg.ID)
			}
			if sess.View().Ref != tt.ref {
				t.Errorf("Session view is for %+v", sess.View().Ref)
			}
		})
	}

	if _, _, err := loop.Send(ctx, sess, "   "); !chat.IsValidation(err) {
		t.Errorf("Blank Send error = %v, want ValidationError", err)
	}
}

// hookStore runs before and after on every channel read.
type hookStore struct {
	chat.Store
	before func()
	after  func()
}

func (s hookStore) ListChannelMessages(ctx context.Context, channelID string, limit int) ([]chat.Message, error) {
	if s.before != nil {
		s.before()
	}
	msgs, err := s.Store.ListChannelMessages(ctx, channelID, limit)
	if s.after != nil {
		s.after()
	}
	return msgs, err
}

func TestSyncLoop_DiscardsSupersededRead(t *testing.T) {
	mem := memory.New()
	var (
		mu   sync.Mutex
		hook func()
	)
	store := hookStore{Store: mem, before: func() {
		mu.Lock()
		h := hook
		hook = nil
		mu.Unlock()
		if h != nil {
			h()
		}
	}}
	env := newTestEnvWith(t, mem, store)
	sess, general := env.signIn(t, "u-ann", "ann@example.com")
	ctx := context.Background()
	loop := newSyncLoop(t, env, newTestClock(0))

	if _, err := loop.Select(ctx, sess, chat.ChannelRef(general.ID)); err != nil {
		t.Fatal(err)
	}

	// The user opens the alex DM while the channel refresh is in flight.
	mu.Lock()
	hook = func() {
		if _, err := loop.Select(ctx, sess, chat.DirectRef(alex.ID)); err != nil {
			t.Errorf("Select: %v", err)
		}
	}
	mu.Unlock()

	v, err := loop.Refresh(ctx, sess)
	if err != nil {
		t.Fatal(err)
	}
	if !v.Ref.IsZero() {
		t.Errorf("Superseded refresh returned a view for %+v", v.Ref)
	}
	got := sess.View()
	if got.Ref != chat.DirectRef(alex.ID) || len(got.Messages) != 2 {
		t.Errorf("Session view is %+v with %d messages, want the alex DM", got.Ref, len(got.Messages))
	}
}

func TestSyncLoop_DiscardsReadFromEarlierSelection(t *testing.T) {
	mem := memory.New()
	var (
		mu   sync.Mutex
		hook func()
	)
	store := hookStore{Store: mem, after: func() {
		mu.Lock()
		h := hook
		hook = nil
		mu.Unlock()
		if h != nil {
			h()
		}
	}}
	env := newTestEnvWith(t, mem, store)
	sess, general := env.signIn(t, "u-ann", "ann@example.com")
	ctx := context.Background()
	loop := newSyncLoop(t, env, newTestClock(0))

	if _, err := loop.Select(ctx, sess, chat.ChannelRef(general.ID)); err != nil {
		t.Fatal(err)
	}

	// The refresh has read its snapshot; before it lands a new message arrives
	// and the user hops to the alex DM and back to the channel.
	mu.Lock()
	hook = func() {
		if _, err := mem.InsertMessage(ctx, chat.Message{UserID: "u-ann", ChannelID: general.ID, Content: "newer"}); err != nil {
			t.Errorf("InsertMessage: %v", err)
		}
		if _, err := loop.Select(ctx, sess, chat.DirectRef(alex.ID)); err != nil {
			t.Errorf("Select: %v", err)
		}
		if _, err := loop.Select(ctx, sess, chat.ChannelRef(general.ID)); err != nil {
			t.Errorf("Select: %v", err)
		}
	}
	mu.Unlock()

	v, err := loop.Refresh(ctx, sess)
	if err != nil {
		t.Fatal(err)
	}
	if !v.Ref.IsZero() {
		t.Errorf("Stale refresh returned a view for %+v", v.Ref)
	}
	got := sess.View()
	if got.Ref != chat.ChannelRef(general.ID) {
		t.Fatalf("Session view is %+v, want the channel", got.Ref)
	}
	msgs := contents(got.Messages)
	if len(msgs) == 0 || msgs[len(msgs)-1] != "newer" {
		t.Errorf("Session view has %q, want it to end with the newer message", msgs)
	}
}

func TestSyncLoop_ReadFailureKeepsPolling(t *testing.T) {
	mem := memory.New()
	env := newTestEnvWith(t, mem, brokenStore{Store: mem, err: errors.New("connection refused")})
	sess := chat.NewSession("u-ann", chat.DefaultDemoDirectory)
	ctx := context.Background()
	loop := newSyncLoop(t, env, newTestClock(0))

	v, err := loop.Select(ctx, sess, chat.ChannelRef("c-1"))
	if !errors.Is(err, chat.ErrUnavailable) {
		t.Errorf("Select error = %v, want ErrUnavailable", err)
	}
	if v.Err == nil || len(v.Messages) != 0 {
		t.Errorf("Got view %+v, want empty view carrying the error", v)
	}
	if state, _ := sess.State(); state != chat.StatePolling {
		t.Errorf("Got state %v, want polling", state)
	}
}

func TestSyncLoop_Run(t *testing.T) {
	env := newTestEnv(t)
	sess, general := env.signIn(t, "u-ann", "ann@example.com")
	loop := &chat.SyncLoop{
		Logger:        slogt.New(t),
		Conversations: env.conversations,
		Interval:      20 * time.Millisecond,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := loop.Select(ctx, sess, chat.ChannelRef(general.ID)); err != nil {
		t.Fatal(err)
	}
	if _, err := env.conversations.PostChannelMessage(ctx, sess, general.ID, "while away"); err != nil {
		t.Fatal(err)
	}

	var rendered []chat.View
	err := loop.Run(ctx, sess, 5*time.Millisecond, func(v chat.View) {
		rendered = append(rendered, v)
		cancel()
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Run error = %v, want context.Canceled", err)
	}
	if len(rendered) != 1 {
		t.Fatalf("Got %d renders, want 1", len(rendered))
	}
	if got := contents(rendered[0].Messages); len(got) != 1 || got[0] != "while away" {
		t.Errorf("Rendered %v", got)
	}
}
