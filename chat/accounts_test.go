package chat_test

import (
	"context"
	"errors"
	"testing"

	"github.com/GetStream/teamchat/chat"
	"github.com/GetStream/teamchat/memory"
	"github.com/google/go-cmp/cmp"
)

func TestProfileUsername(t *testing.T) {
	tests := []struct {
		name string
		id   chat.AuthIdentity
		want string
	}{
		{name: "EmailLocalPart", id: chat.AuthIdentity{UserID: "u-1", Email: "ann.lee@example.com"}, want: "ann.lee"},
		{name: "NoAt", id: chat.AuthIdentity{UserID: "u-1", Email: "ann"}, want: "ann"},
		{name: "EmptyLocalPart", id: chat.AuthIdentity{UserID: "0123456789abcdef", Email: "@example.com"}, want: "@example.com"},
		{name: "NoEmail", id: chat.AuthIdentity{UserID: "0123456789abcdef"}, want: "user_01234567"},
		{name: "ShortID", id: chat.AuthIdentity{UserID: "abc"}, want: "user_abc"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := chat.ProfileUsername(tt.id); got != tt.want {
				t.Errorf("ProfileUsername() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestAccounts_SignIn(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	p, err := env.accounts.SignIn(ctx, chat.AuthIdentity{
		UserID:      "u-ann",
		Email:       "ann@example.com",
		DisplayName: "  Ann Lee ",
		AvatarURL:   "https://example.com/ann.png",
	})
	if err != nil {
		t.Fatal(err)
	}
	want := chat.UserProfile{
		ID:          "u-ann",
		Username:    "ann",
		DisplayName: "Ann Lee",
		AvatarURL:   "https://example.com/ann.png",
		Status:      chat.StatusOnline,
	}
	if diff := cmp.Diff(want, p, ignoreUpdatedAt); diff != "" {
		t.Errorf("Profile mismatch (-want +got):\n%s", diff)
	}

	if _, err := env.accounts.SignIn(ctx, chat.AuthIdentity{}); !chat.IsValidation(err) {
		t.Errorf("SignIn without user id error = %v, want ValidationError", err)
	}
}

func TestAccounts_Directory(t *testing.T) {
	env := newTestEnv(t)
	env.signIn(t, "u-ann", "ann@example.com")
	env.signIn(t, "u-bob", "bob@example.com")
	ctx := context.Background()

	users, err := env.accounts.Directory(ctx, "u-ann")
	if err != nil {
		t.Fatal(err)
	}
	var got []string
	for _, u := range users {
		got = append(got, u.Username)
	}
	if diff := cmp.Diff([]string{"bob", "alex", "sarah"}, got); diff != "" {
		t.Errorf("Directory mismatch (-want +got):\n%s", diff)
	}
}

type profileOutage struct {
	chat.Store
}

func (profileOutage) ListProfiles(context.Context, string) ([]chat.UserProfile, error) {
	return nil, errors.New("too many connections")
}

func TestAccounts_DirectoryDegrades(t *testing.T) {
	mem := memory.New()
	env := newTestEnvWith(t, mem, profileOutage{Store: mem})

	users, err := env.accounts.Directory(context.Background(), "u-ann")
	if !errors.Is(err, chat.ErrUnavailable) {
		t.Errorf("Directory error = %v, want ErrUnavailable", err)
	}
	if diff := cmp.Diff(chat.DefaultDemoDirectory.Profiles(), users); diff != "" {
		t.Errorf("Directory mismatch (-want +got):\n%s", diff)
	}
}
