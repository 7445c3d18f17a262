package redis

import (
	"time"

	"github.com/GetStream/teamchat/chat"
)

// A profile represents a cached user profile, stored as a hash.
type profile struct {
	ID          string `redis:"id"`
	Username    string `redis:"username"`
	DisplayName string `redis:"display_name"`
	AvatarURL   string `redis:"avatar_url"`
	Status      string `redis:"status"`
	UpdatedAt   int64  `redis:"updated_at"`
}

func newProfile(p chat.UserProfile) *profile {
	var updated int64
	if !p.UpdatedAt.IsZero() {
		updated = p.UpdatedAt.UnixNano()
	}
	return &profile{
		ID:          p.ID,
		Username:    p.Username,
		DisplayName: p.DisplayName,
		AvatarURL:   p.AvatarURL,
		Status:      string(p.Status),
		UpdatedAt:   updated,
	}
}

func (p profile) ChatProfile() chat.UserProfile {
	out := chat.UserProfile{
		ID:          p.ID,
		Username:    p.Username,
		DisplayName: p.DisplayName,
		AvatarURL:   p.AvatarURL,
		Status:      chat.Status(p.Status),
	}
	if p.UpdatedAt != 0 {
		out.UpdatedAt = time.Unix(0, p.UpdatedAt).UTC()
	}
	return out
}
