package chat

import (
	"context"
	"time"
)

// A ProfileStore persists user profiles.
type ProfileStore interface {
	// GetProfile returns ErrNotFound when no profile has the id.
	GetProfile(ctx context.Context, id string) (UserProfile, error)
	UpsertProfile(ctx context.Context, p UserProfile) (UserProfile, error)
	// ListProfiles returns every profile except the one with excludeID.
	ListProfiles(ctx context.Context, excludeID string) ([]UserProfile, error)
}

// A ChannelStore persists workspaces, channels and memberships.
type ChannelStore interface {
	// FindWorkspace returns ErrNotFound when no workspace has the name.
	FindWorkspace(ctx context.Context, name string) (Workspace, error)
	InsertWorkspace(ctx context.Context, w Workspace) (Workspace, error)
	// FindChannel returns ErrNotFound when the workspace has no such channel.
	FindChannel(ctx context.Context, workspaceID, name string) (Channel, error)
	// InsertChannel returns ErrDuplicate when the name is taken.
	InsertChannel(ctx context.Context, c Channel) (Channel, error)
	ListPublicChannels(ctx context.Context) ([]Channel, error)
	ListChannelsForUser(ctx context.Context, userID string) ([]Channel, error)
	// InsertMembership returns ErrDuplicate when the pair already exists.
	InsertMembership(ctx context.Context, m Membership) error
}

// A MessageStore persists messages. List methods return the most recent
// limit messages in ascending CreatedAt order.
type MessageStore interface {
	InsertMessage(ctx context.Context, m Message) (Message, error)
	ListChannelMessages(ctx context.Context, channelID string, limit int) ([]Message, error)
	ListDirectMessages(ctx context.Context, userA, userB string, limit int) ([]Message, error)
}

// A ReactionStore persists reactions.
type ReactionStore interface {
	// InsertReaction returns ErrDuplicate when the (message, user, emoji)
	// combination already exists.
	InsertReaction(ctx context.Context, r Reaction) (Reaction, error)
	// DeleteReaction reports whether a row was removed.
	DeleteReaction(ctx context.Context, messageID, userID, emoji string) (bool, error)
	ListReactions(ctx context.Context, messageID string) ([]Reaction, error)
}

// A Store is the full table store the core depends on.
type Store interface {
	ProfileStore
	ChannelStore
	MessageStore
	ReactionStore
}

// A ProfileCache caches profiles in front of a ProfileStore.
type ProfileCache interface {
	// GetProfile returns ErrNotFound on a cache miss.
	GetProfile(ctx context.Context, id string) (UserProfile, error)
	SetProfile(ctx context.Context, p UserProfile, ttl time.Duration) error
	DeleteProfile(ctx context.Context, id string) error
}
