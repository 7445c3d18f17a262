package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// Reactions loads, aggregates and toggles emoji reactions. Add and Remove are
// idempotent: a duplicate add or a missing remove is a silent success.
type Reactions struct {
	Logger   *slog.Logger
	Store    ReactionStore
	Resolver *Resolver
}

// ListReactions returns the reactions on messageID decorated with the
// reacting users' profiles. On store failure it returns an empty slice and
// an error wrapping ErrUnavailable.
func (r *Reactions) ListReactions(ctx context.Context, messageID string) ([]ReactionView, error) {
	rs, err := r.Store.ListReactions(ctx, messageID)
	if err != nil {
		r.logger().Error("Could not list reactions", "message_id", messageID, "error", err.Error())
		return []ReactionView{}, unavailable("list reactions", err)
	}

	ids := make([]string, len(rs))
	for i, rc := range rs {
		ids[i] = rc.UserID
	}
	profiles := r.Resolver.ResolveAll(ctx, ids)

	out := make([]ReactionView, len(rs))
	for i, rc := range rs {
		out[i] = ReactionView{Reaction: rc, User: profiles[rc.UserID]}
	}
	return out, nil
}

// Add records that userID reacted to messageID with emoji.
func (r *Reactions) Add(ctx context.Context, messageID, userID, emoji string) error {
	emoji, err := validateReaction(messageID, emoji)
	if err != nil {
		return err
	}
	_, err = r.Store.InsertReaction(ctx, Reaction{
		MessageID: messageID,
		UserID:    userID,
		Emoji:     emoji,
	})
	if errors.Is(err, ErrDuplicate) {
		r.logger().Debug("Reaction already present", "message_id", messageID, "user_id", userID, "emoji", emoji)
		return nil
	}
	if err != nil {
		return fmt.Errorf("insert reaction: %w", err)
	}
	return nil
}

// Remove withdraws userID's emoji reaction from messageID.
func (r *Reactions) Remove(ctx context.Context, messageID, userID, emoji string) error {
	emoji, err := validateReaction(messageID, emoji)
	if err != nil {
		return err
	}
	removed, err := r.Store.DeleteReaction(ctx, messageID, userID, emoji)
	if err != nil {
		return fmt.Errorf("delete reaction: %w", err)
	}
	if !removed {
		r.logger().Debug("Reaction already absent", "message_id", messageID, "user_id", userID, "emoji", emoji)
	}
	return nil
}

// Toggle removes userID's emoji reaction if present and adds it otherwise.
// It reports whether the reaction is present afterwards.
func (r *Reactions) Toggle(ctx context.Context, messageID, userID, emoji string) (bool, error) {
	emoji, err := validateReaction(messageID, emoji)
	if err != nil {
		return false, err
	}
	rs, err := r.Store.ListReactions(ctx, messageID)
	if err != nil {
		return false, fmt.Errorf("list reactions: %w", err)
	}
	for _, rc := range rs {
		if rc.UserID == userID && rc.Emoji == emoji {
			return false, r.Remove(ctx, messageID, userID, emoji)
		}
	}
	return true, r.Add(ctx, messageID, userID, emoji)
}

// Summaries aggregates the reactions on messageID for actingUserID.
func (r *Reactions) Summaries(ctx context.Context, messageID, actingUserID string) (map[string]EmojiSummary, error) {
	rs, err := r.ListReactions(ctx, messageID)
	return Aggregate(rs, actingUserID), err
}

// Aggregate groups reactions by emoji. Count is the number of distinct users
// holding the emoji; ReactorNames is in first-seen order.
func Aggregate(reactions []ReactionView, actingUserID string) map[string]EmojiSummary {
	out := make(map[string]EmojiSummary)
	seen := make(map[[2]string]bool, len(reactions))
	for _, rc := range reactions {
		key := [2]string{rc.Emoji, rc.UserID}
		if seen[key] {
			continue
		}
		seen[key] = true

		s := out[rc.Emoji]
		s.Emoji = rc.Emoji
		s.Count++
		s.ReactorNames = append(s.ReactorNames, rc.User.Name())
		if rc.UserID == actingUserID {
			s.ActingUserHasReacted = true
		}
		out[rc.Emoji] = s
	}
	return out
}

func (r *Reactions) logger() *slog.Logger {
	if r.Logger == nil {
		return slog.Default()
	}
	return r.Logger
}

func validateReaction(messageID, emoji string) (string, error) {
	if IsDemoMessageID(messageID) {
		return "", &ValidationError{Field: "message_id", Message: "demo messages cannot be reacted to"}
	}
	emoji = strings.TrimSpace(emoji)
	if emoji == "" {
		return "", &ValidationError{Field: "emoji", Message: "emoji must not be empty"}
	}
	return emoji, nil
}
