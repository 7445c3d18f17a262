package chat

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// An AuthIdentity is what the auth provider tells us about the caller.
type AuthIdentity struct {
	UserID      string
	Email       string
	DisplayName string
	AvatarURL   string
}

// Accounts turns authenticated identities into profiles.
type Accounts struct {
	Logger      *slog.Logger
	Profiles    ProfileStore
	Memberships *Memberships
	// Cache is optional; the signed-in profile is evicted from it.
	Cache ProfileCache
	// Demo is optional.
	Demo DemoDirectory
	Now  func() time.Time
}

// SignIn upserts the caller's profile and, best effort, joins them to the
// default workspace's general channel. Bootstrap failures are logged and
// never fail the sign-in.
func (a *Accounts) SignIn(ctx context.Context, id AuthIdentity) (UserProfile, error) {
	if id.UserID == "" {
		return UserProfile{}, &ValidationError{Field: "user_id", Message: "identity has no user id"}
	}

	username := ProfileUsername(id)
	displayName := strings.TrimSpace(id.DisplayName)
	if displayName == "" {
		displayName = username
	}

	p, err := a.Profiles.UpsertProfile(ctx, UserProfile{
		ID:          id.UserID,
		Username:    username,
		DisplayName: displayName,
		AvatarURL:   id.AvatarURL,
		Status:      StatusOnline,
		UpdatedAt:   a.now().UTC(),
	})
	if err != nil {
		return UserProfile{}, fmt.Errorf("upsert profile: %w", err)
	}
	if a.Cache != nil {
		if err := a.Cache.DeleteProfile(ctx, p.ID); err != nil {
			a.logger().Warn("Could not evict cached profile", "user_id", p.ID, "error", err.Error())
		}
	}

	if a.Memberships != nil {
		if _, err := a.Memberships.EnsureDefaultWorkspaceAndChannel(ctx, id.UserID); err != nil {
			a.logger().Warn("Could not bootstrap default channel", "user_id", id.UserID, "error", err.Error())
		}
	}
	return p, nil
}

// Directory lists the users excludeID can message: every other profile,
// followed by the demo identities. When the store is unavailable only the
// demo identities are returned, together with the error.
func (a *Accounts) Directory(ctx context.Context, excludeID string) ([]UserProfile, error) {
	var demo []UserProfile
	if a.Demo != nil {
		for _, p := range a.Demo.Profiles() {
			if p.ID != excludeID {
				demo = append(demo, p)
			}
		}
	}

	users, err := a.Profiles.ListProfiles(ctx, excludeID)
	if err != nil {
		a.logger().Error("Could not list profiles", "error", err.Error())
		return append([]UserProfile{}, demo...), unavailable("list profiles", err)
	}
	return append(users, demo...), nil
}

// ProfileUsername derives a username from the e-mail local part, or from the
// user id when there is no e-mail.
func ProfileUsername(id AuthIdentity) string {
	if local, _, ok := strings.Cut(id.Email, "@"); ok && local != "" {
		return local
	}
	if id.Email != "" {
		return id.Email
	}
	short := id.UserID
	if len(short) > 8 {
		short = short[:8]
	}
	return "user_" + short
}

func (a *Accounts) now() time.Time {
	if a.Now == nil {
		return time.Now()
	}
	return a.Now()
}

func (a *Accounts) logger() *slog.Logger {
	if a.Logger == nil {
		return slog.Default()
	}
	return a.Logger
}
