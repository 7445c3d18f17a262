package postgres

import (
	"time"

	"github.com/GetStream/teamchat/chat"
	"github.com/uptrace/bun"
)

// A userProfile represents a user profile in the database.
type userProfile struct {
	bun.BaseModel `bun:"table:user_profiles,alias:up"`

	ID          string    `bun:",pk"`
	Username    string    `bun:",notnull"`
	DisplayName string    `bun:",notnull,default:''"`
	AvatarURL   string    `bun:"avatar_url,notnull,default:''"`
	Status      string    `bun:",notnull,default:'offline'"`
	UpdatedAt   time.Time `bun:",nullzero,notnull,default:now()"`
}

type workspace struct {
	bun.BaseModel `bun:"table:workspaces,alias:w"`

	ID          string    `bun:",pk,type:uuid,default:uuid_generate_v4()"`
	Name        string    `bun:",notnull"`
	Description string    `bun:",notnull,default:''"`
	CreatedBy   string    `bun:",notnull"`
	CreatedAt   time.Time `bun:",nullzero,notnull,default:now()"`
}

type channel struct {
	bun.BaseModel `bun:"table:channels,alias:c"`

	ID          string    `bun:",pk,type:uuid,default:uuid_generate_v4()"`
	WorkspaceID string    `bun:",notnull,type:uuid,unique:channels_workspace_name"`
	Name        string    `bun:",notnull,unique:channels_workspace_name"`
	Description string    `bun:",notnull,default:''"`
	IsPrivate   bool      `bun:",notnull,default:false"`
	CreatedBy   string    `bun:",notnull"`
	CreatedAt   time.Time `bun:",nullzero,notnull,default:now()"`
}

type channelMember struct {
	bun.BaseModel `bun:"table:channel_members,alias:cm"`

	UserID    string    `bun:",pk"`
	ChannelID string    `bun:",pk,type:uuid"`
	JoinedAt  time.Time `bun:",nullzero,notnull,default:now()"`
}

// A message represents a message in the database. Exactly one of ChannelID
// and RecipientID is set.
type message struct {
	bun.BaseModel `bun:"table:messages,alias:m"`

	ID          string    `bun:",pk,type:uuid,default:uuid_generate_v4()"`
	Seq         int64     `bun:",autoincrement"`
	UserID      string    `bun:",notnull"`
	ChannelID   string    `bun:",nullzero,type:uuid"`
	RecipientID string    `bun:",nullzero"`
	Content     string    `bun:",notnull"`
	MessageType string    `bun:",notnull,default:'text'"`
	CreatedAt   time.Time `bun:",nullzero,notnull,default:now()"`
}

type reaction struct {
	bun.BaseModel `bun:"table:message_reactions,alias:r"`

	ID        string    `bun:",pk,type:uuid,default:uuid_generate_v4()"`
	MessageID string    `bun:",notnull,type:uuid,unique:reactions_message_user_emoji"`
	UserID    string    `bun:",notnull,unique:reactions_message_user_emoji"`
	Emoji     string    `bun:",notnull,unique:reactions_message_user_emoji"`
	CreatedAt time.Time `bun:",nullzero,notnull,default:now()"`
}

func (p userProfile) ChatProfile() chat.UserProfile {
	return chat.UserProfile{
		ID:          p.ID,
		Username:    p.Username,
		DisplayName: p.DisplayName,
		AvatarURL:   p.AvatarURL,
		Status:      chat.Status(p.Status),
		UpdatedAt:   p.UpdatedAt,
	}
}

func (w workspace) ChatWorkspace() chat.Workspace {
	return chat.Workspace{
		ID:          w.ID,
		Name:        w.Name,
		Description: w.Description,
		CreatedBy:   w.CreatedBy,
		CreatedAt:   w.CreatedAt,
	}
}

func (c channel) ChatChannel() chat.Channel {
	return chat.Channel{
		ID:          c.ID,
		WorkspaceID: c.WorkspaceID,
		Name:        c.Name,
		Description: c.Description,
		IsPrivate:   c.IsPrivate,
		CreatedBy:   c.CreatedBy,
		CreatedAt:   c.CreatedAt,
	}
}

func (m message) ChatMessage() chat.Message {
	return chat.Message{
		ID:          m.ID,
		UserID:      m.UserID,
		ChannelID:   m.ChannelID,
		RecipientID: m.RecipientID,
		Content:     m.Content,
		Type:        m.MessageType,
		CreatedAt:   m.CreatedAt,
	}
}

func (r reaction) ChatReaction() chat.Reaction {
	return chat.Reaction{
		ID:        r.ID,
		MessageID: r.MessageID,
		UserID:    r.UserID,
		Emoji:     r.Emoji,
		CreatedAt: r.CreatedAt,
	}
}

func channels(cs []channel) []chat.Channel {
	out := make([]chat.Channel, len(cs))
	for i, c := range cs {
		out[i] = c.ChatChannel()
	}
	return out
}
