package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// DefaultRefreshInterval is the polling cadence of a SyncLoop.
const DefaultRefreshInterval = 5 * time.Second

// ErrIdle is returned when an operation needs an active conversation.
var ErrIdle = errors.New("no active conversation")

// A SyncLoop keeps a session's active conversation fresh by re-reading it at
// most once per Interval. It is cooperative: callers drive it with Tick on
// every UI cycle, or hand control to Run. Writes made through Send refresh
// immediately; writes by others become visible on the next due Tick.
type SyncLoop struct {
	Logger        *slog.Logger
	Conversations *Conversations
	Interval      time.Duration
	Limit         int
	Now           func() time.Time
}

// Select makes ref the active conversation and reads it immediately.
func (l *SyncLoop) Select(ctx context.Context, sess *Session, ref ConversationRef) (View, error) {
	if ref.IsZero() {
		l.Deselect(sess)
		return View{}, nil
	}

	now := l.now()
	sess.mu.Lock()
	sess.gen++
	gen := sess.gen
	sess.state = StatePolling
	sess.active = ref
	sess.lastRefresh = now
	sess.view = View{Ref: ref}
	sess.mu.Unlock()

	v, _, err := l.read(ctx, sess, ref, gen, now)
	return v, err
}

// Deselect returns the session to Idle.
func (l *SyncLoop) Deselect(sess *Session) {
	sess.mu.Lock()
	sess.gen++
	sess.state = StateIdle
	sess.active = ConversationRef{}
	sess.lastRefresh = time.Time{}
	sess.view = View{}
	sess.mu.Unlock()
}

// Tick re-reads the active conversation when the refresh interval has
// elapsed. It reports whether a fresh view was produced; otherwise the
// returned view is the last accepted one.
func (l *SyncLoop) Tick(ctx context.Context, sess *Session) (View, bool, error) {
	now := l.now()
	sess.mu.Lock()
	if sess.state != StatePolling {
		sess.mu.Unlock()
		return View{}, false, nil
	}
	if now.Sub(sess.lastRefresh) < l.interval() {
		v := sess.view
		sess.mu.Unlock()
		return v, false, nil
	}
	ref, gen := sess.active, sess.gen
	sess.lastRefresh = now
	sess.mu.Unlock()

	return l.read(ctx, sess, ref, gen, now)
}

// Refresh re-reads the active conversation regardless of the timer.
func (l *SyncLoop) Refresh(ctx context.Context, sess *Session) (View, error) {
	now := l.now()
	sess.mu.Lock()
	if sess.state != StatePolling {
		sess.mu.Unlock()
		return View{}, ErrIdle
	}
	ref, gen := sess.active, sess.gen
	sess.lastRefresh = now
	sess.mu.Unlock()

	v, _, err := l.read(ctx, sess, ref, gen, now)
	return v, err
}

// Send posts content to the active conversation and refreshes immediately so
// the sender sees their own message.
func (l *SyncLoop) Send(ctx context.Context, sess *Session, content string) (Message, View, error) {
	_, ref := sess.State()
	if ref.IsZero() {
		return Message{}, View{}, ErrIdle
	}
	msg, err := l.Conversations.Post(ctx, sess, ref, content)
	if err != nil {
		return Message{}, View{}, err
	}
	v, err := l.Refresh(ctx, sess)
	return msg, v, err
}

// Stale reports whether the active conversation is due for a refresh.
func (l *SyncLoop) Stale(sess *Session) bool {
	now := l.now()
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.state == StatePolling && now.Sub(sess.lastRefresh) >= l.interval()
}

// Run calls Tick every cycle until ctx is done, passing each fresh view to
// render. A non-positive cycle defaults to a fifth of the refresh interval.
func (l *SyncLoop) Run(ctx context.Context, sess *Session, cycle time.Duration, render func(View)) error {
	if cycle <= 0 {
		cycle = l.interval() / 5
	}
	t := time.NewTicker(cycle)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			v, fresh, err := l.Tick(ctx, sess)
			if err != nil {
				l.logger().Warn("Refresh failed", "conversation", v.Ref.ID, "error", err.Error())
			}
			if fresh && render != nil {
				render(v)
			}
		}
	}
}

// read loads ref and installs the result unless the selection changed since
// gen was taken, even if it changed back to ref.
func (l *SyncLoop) read(ctx context.Context, sess *Session, ref ConversationRef, gen uint64, at time.Time) (View, bool, error) {
	msgs, err := l.Conversations.List(ctx, sess, ref, l.Limit)
	if err != nil {
		err = fmt.Errorf("refresh %s %s: %w", ref.Kind, ref.ID, err)
	}
	v := View{Ref: ref, Messages: msgs, RefreshedAt: at, Err: err}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.gen != gen || sess.state != StatePolling || sess.active != ref {
		l.logger().Debug("Discarding superseded read", "conversation", ref.ID)
		return View{}, false, nil
	}
	sess.view = v
	return v, true, err
}

func (l *SyncLoop) interval() time.Duration {
	if l.Interval <= 0 {
		return DefaultRefreshInterval
	}
	return l.Interval
}

func (l *SyncLoop) now() time.Time {
	if l.Now == nil {
		return time.Now()
	}
	return l.Now()
}

func (l *SyncLoop) logger() *slog.Logger {
	if l.Logger == nil {
		return slog.Default()
	}
	return l.Logger
}
