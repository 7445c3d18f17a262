package chat

import "time"

// Status is the presence state of a user profile.
type Status string

const (
	StatusOnline  Status = "online"
	StatusOffline Status = "offline"
)

// MessageTypeText is the only message type currently produced.
const MessageTypeText = "text"

// A UserProfile is the display identity of a user.
type UserProfile struct {
	ID          string    `json:"id"`
	Username    string    `json:"username"`
	DisplayName string    `json:"display_name"`
	AvatarURL   string    `json:"avatar_url,omitempty"`
	Status      Status    `json:"status,omitempty"`
	UpdatedAt   time.Time `json:"updated_at,omitempty"`
}

// Name returns the display name, falling back to the username.
func (p UserProfile) Name() string {
	if p.DisplayName != "" {
		return p.DisplayName
	}
	return p.Username
}

// A Workspace groups channels.
type Workspace struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatedBy   string    `json:"created_by"`
	CreatedAt   time.Time `json:"created_at"`
}

// A Channel is a many-to-many conversation inside a workspace.
type Channel struct {
	ID          string    `json:"id"`
	WorkspaceID string    `json:"workspace_id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	IsPrivate   bool      `json:"is_private"`
	CreatedBy   string    `json:"created_by"`
	CreatedAt   time.Time `json:"created_at"`
}

// A Membership records that a user belongs to a channel.
type Membership struct {
	UserID    string    `json:"user_id"`
	ChannelID string    `json:"channel_id"`
	JoinedAt  time.Time `json:"joined_at"`
}

// A Message is either channel scoped (ChannelID set) or a direct message
// (RecipientID set), never both.
type Message struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	ChannelID   string    `json:"channel_id,omitempty"`
	RecipientID string    `json:"recipient_id,omitempty"`
	Content     string    `json:"content"`
	Type        string    `json:"message_type"`
	CreatedAt   time.Time `json:"created_at"`
}

// A Reaction is a (message, user, emoji) endorsement.
type Reaction struct {
	ID        string    `json:"id"`
	MessageID string    `json:"message_id"`
	UserID    string    `json:"user_id"`
	Emoji     string    `json:"emoji"`
	CreatedAt time.Time `json:"created_at"`
}

// A MessageView is a message decorated with its author's profile.
type MessageView struct {
	Message
	Author UserProfile `json:"author"`
}

// A ReactionView is a reaction decorated with the reacting user's profile.
type ReactionView struct {
	Reaction
	User UserProfile `json:"user"`
}

// An EmojiSummary is the aggregated state of one emoji on a message.
type EmojiSummary struct {
	Emoji                string   `json:"emoji"`
	Count                int      `json:"count"`
	ReactorNames         []string `json:"reactor_names"`
	ActingUserHasReacted bool     `json:"acting_user_has_reacted"`
}
