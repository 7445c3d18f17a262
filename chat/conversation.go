package chat

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// DefaultLimit is the message window returned when no limit is given.
const DefaultLimit = 50

// Conversations is the read and write path for channel and direct message
// conversations. Direct messages with a demo identity are served by the
// session's Overlay and never reach the Store.
type Conversations struct {
	Logger   *slog.Logger
	Store    MessageStore
	Resolver *Resolver
}

// ListChannelMessages returns the most recent limit messages of a channel in
// ascending order, decorated with author profiles. On store failure it
// returns an empty slice and an error wrapping ErrUnavailable.
func (c *Conversations) ListChannelMessages(ctx context.Context, sess *Session, channelID string, limit int) ([]MessageView, error) {
	msgs, err := c.Store.ListChannelMessages(ctx, channelID, normalizeLimit(limit))
	if err != nil {
		c.logger().Error("Could not list channel messages", "channel_id", channelID, "user_id", sess.UserID, "error", err.Error())
		return []MessageView{}, unavailable("list channel messages", err)
	}
	return c.decorate(ctx, msgs), nil
}

// ListDirectMessages returns the most recent limit messages exchanged between
// the session user and otherUserID in ascending order.
func (c *Conversations) ListDirectMessages(ctx context.Context, sess *Session, otherUserID string, limit int) ([]MessageView, error) {
	if sess.Demo.Handles(otherUserID) {
		return sess.Demo.List(sess.UserID, otherUserID), nil
	}

	msgs, err := c.Store.ListDirectMessages(ctx, sess.UserID, otherUserID, normalizeLimit(limit))
	if err != nil {
		c.logger().Error("Could not list direct messages", "user_id", sess.UserID, "other_user_id", otherUserID, "error", err.Error())
		return []MessageView{}, unavailable("list direct messages", err)
	}
	return c.decorate(ctx, msgs), nil
}

// PostChannelMessage stores a message in a channel. The returned message is
// the stored row, without author decoration.
func (c *Conversations) PostChannelMessage(ctx context.Context, sess *Session, channelID, content string) (Message, error) {
	content, err := validateContent(content)
	if err != nil {
		return Message{}, err
	}

	msg, err := c.Store.InsertMessage(ctx, Message{
		UserID:    sess.UserID,
		ChannelID: channelID,
		Content:   content,
		Type:      MessageTypeText,
	})
	if err != nil {
		return Message{}, fmt.Errorf("insert channel message: %w", err)
	}
	return msg, nil
}

// PostDirectMessage sends a direct message to recipientID.
func (c *Conversations) PostDirectMessage(ctx context.Context, sess *Session, recipientID, content string) (Message, error) {
	content, err := validateContent(content)
	if err != nil {
		return Message{}, err
	}

	if sess.Demo.Handles(recipientID) {
		return sess.Demo.Post(sess.UserID, recipientID, content), nil
	}

	msg, err := c.Store.InsertMessage(ctx, Message{
		UserID:      sess.UserID,
		RecipientID: recipientID,
		Content:     content,
		Type:        MessageTypeText,
	})
	if err != nil {
		return Message{}, fmt.Errorf("insert direct message: %w", err)
	}
	return msg, nil
}

// List dispatches to the channel or direct read for ref.
func (c *Conversations) List(ctx context.Context, sess *Session, ref ConversationRef, limit int) ([]MessageView, error) {
	switch ref.Kind {
	case KindChannel:
		return c.ListChannelMessages(ctx, sess, ref.ID, limit)
	case KindDirect:
		return c.ListDirectMessages(ctx, sess, ref.ID, limit)
	default:
		return []MessageView{}, fmt.Errorf("list: unknown conversation kind %d", ref.Kind)
	}
}

// Post dispatches to the channel or direct write for ref.
func (c *Conversations) Post(ctx context.Context, sess *Session, ref ConversationRef, content string) (Message, error) {
	switch ref.Kind {
	case KindChannel:
		return c.PostChannelMessage(ctx, sess, ref.ID, content)
	case KindDirect:
		return c.PostDirectMessage(ctx, sess, ref.ID, content)
	default:
		return Message{}, fmt.Errorf("post: unknown conversation kind %d", ref.Kind)
	}
}

func (c *Conversations) decorate(ctx context.Context, msgs []Message) []MessageView {
	ids := make([]string, len(msgs))
	for i, m := range msgs {
		ids[i] = m.UserID
	}
	profiles := c.Resolver.ResolveAll(ctx, ids)

	out := make([]MessageView, len(msgs))
	for i, m := range msgs {
		out[i] = MessageView{Message: m, Author: profiles[m.UserID]}
	}
	return out
}

func (c *Conversations) logger() *slog.Logger {
	if c.Logger == nil {
		return slog.Default()
	}
	return c.Logger
}

func validateContent(content string) (string, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return "", &ValidationError{Field: "content", Message: "message must not be empty"}
	}
	return content, nil
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	return limit
}
