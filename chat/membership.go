package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

const (
	// DefaultWorkspaceName is the well-known workspace created on first use.
	DefaultWorkspaceName = "Default Workspace"
	// GeneralChannelName is the channel every user is joined to.
	GeneralChannelName = "general"
)

// Memberships manages channels and who belongs to them.
type Memberships struct {
	Logger *slog.Logger
	Store  ChannelStore
}

// ListMemberships returns the channels userID belongs to.
func (m *Memberships) ListMemberships(ctx context.Context, userID string) ([]Channel, error) {
	chs, err := m.Store.ListChannelsForUser(ctx, userID)
	if err != nil {
		m.logger().Error("Could not list memberships", "user_id", userID, "error", err.Error())
		return []Channel{}, unavailable("list memberships", err)
	}
	return chs, nil
}

// Join adds userID to channelID. Joining a channel twice is not an error.
func (m *Memberships) Join(ctx context.Context, userID, channelID string) error {
	err := m.Store.InsertMembership(ctx, Membership{UserID: userID, ChannelID: channelID})
	if errors.Is(err, ErrDuplicate) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("insert membership: %w", err)
	}
	return nil
}

// CreateChannel creates a channel in workspaceID and joins its creator.
// The name is normalized to lower case with spaces replaced by hyphens.
func (m *Memberships) CreateChannel(ctx context.Context, userID, workspaceID, name, description string, private bool) (Channel, error) {
	name = NormalizeChannelName(name)
	if name == "" {
		return Channel{}, &ValidationError{Field: "name", Message: "channel name must not be empty"}
	}

	ch, err := m.Store.InsertChannel(ctx, Channel{
		WorkspaceID: workspaceID,
		Name:        name,
		Description: strings.TrimSpace(description),
		IsPrivate:   private,
		CreatedBy:   userID,
	})
	if err != nil {
		return Channel{}, fmt.Errorf("insert channel: %w", err)
	}

	if err := m.Join(ctx, userID, ch.ID); err != nil {
		m.logger().Warn("Could not join creator to channel", "channel_id", ch.ID, "user_id", userID, "error", err.Error())
	}
	return ch, nil
}

// BrowseChannels returns the public channels userID has not joined.
func (m *Memberships) BrowseChannels(ctx context.Context, userID string) ([]Channel, error) {
	all, err := m.Store.ListPublicChannels(ctx)
	if err != nil {
		return []Channel{}, unavailable("list public channels", err)
	}
	mine, err := m.Store.ListChannelsForUser(ctx, userID)
	if err != nil {
		return []Channel{}, unavailable("list memberships", err)
	}

	joined := make(map[string]bool, len(mine))
	for _, ch := range mine {
		joined[ch.ID] = true
	}
	out := make([]Channel, 0, len(all))
	for _, ch := range all {
		if !joined[ch.ID] {
			out = append(out, ch)
		}
	}
	return out, nil
}

// EnsureDefaultWorkspaceAndChannel creates the default workspace and its
// general channel if they are missing, then joins userID to general. The
// check-then-create is not transactional; concurrent first use may create
// duplicates where the store does not constrain them.
func (m *Memberships) EnsureDefaultWorkspaceAndChannel(ctx context.Context, userID string) (Channel, error) {
	ws, err := m.Store.FindWorkspace(ctx, DefaultWorkspaceName)
	if errors.Is(err, ErrNotFound) {
		ws, err = m.Store.InsertWorkspace(ctx, Workspace{
			Name:        DefaultWorkspaceName,
			Description: "Main workspace for the team",
			CreatedBy:   userID,
		})
	}
	if err != nil {
		return Channel{}, fmt.Errorf("ensure workspace: %w", err)
	}

	ch, err := m.Store.FindChannel(ctx, ws.ID, GeneralChannelName)
	if errors.Is(err, ErrNotFound) {
		ch, err = m.Store.InsertChannel(ctx, Channel{
			WorkspaceID: ws.ID,
			Name:        GeneralChannelName,
			Description: "General discussion channel",
			CreatedBy:   userID,
		})
		if errors.Is(err, ErrDuplicate) {
			ch, err = m.Store.FindChannel(ctx, ws.ID, GeneralChannelName)
		}
	}
	if err != nil {
		return Channel{}, fmt.Errorf("ensure general channel: %w", err)
	}

	if err := m.Join(ctx, userID, ch.ID); err != nil {
		return ch, fmt.Errorf("join general channel: %w", err)
	}
	return ch, nil
}

// NormalizeChannelName trims name, lower-cases it and replaces spaces with
// hyphens.
func NormalizeChannelName(name string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), " ", "-")
}

func (m *Memberships) logger() *slog.Logger {
	if m.Logger == nil {
		return slog.Default()
	}
	return m.Logger
}
