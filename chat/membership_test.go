package chat_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/GetStream/teamchat/chat"
	"github.com/GetStream/teamchat/memory"
	"github.com/google/go-cmp/cmp"
)

func TestMemberships_ConcurrentJoin(t *testing.T) {
	env := newTestEnv(t)
	_, general := env.signIn(t, "u-ann", "ann@example.com")
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := env.memberships.Join(ctx, "u-bob", general.ID); err != nil {
				t.Errorf("Join: %v", err)
			}
		}()
	}
	wg.Wait()

	if n := env.store.MembershipCount("u-bob", general.ID); n != 1 {
		t.Errorf("Got %d memberships, want 1", n)
	}
}

func TestMemberships_EnsureDefaultIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	first, err := env.memberships.EnsureDefaultWorkspaceAndChannel(ctx, "u-ann")
	if err != nil {
		t.Fatal(err)
	}
	second, err := env.memberships.EnsureDefaultWorkspaceAndChannel(ctx, "u-ann")
	if err != nil {
		t.Fatal(err)
	}
	other, err := env.memberships.EnsureDefaultWorkspaceAndChannel(ctx, "u-bob")
	if err != nil {
		t.Fatal(err)
	}

	if first.ID != second.ID || first.ID != other.ID {
		t.Errorf("Got general channels %q, %q, %q; want one channel", first.ID, second.ID, other.ID)
	}
	if first.Name != chat.GeneralChannelName {
		t.Errorf("Got channel %q, want general", first.Name)
	}
	public, _ := env.store.ListPublicChannels(ctx)
	if len(public) != 1 {
		t.Errorf("Got %d channels, want 1", len(public))
	}
	if n := env.store.MembershipCount("u-ann", first.ID); n != 1 {
		t.Errorf("Got %d memberships for ann, want 1", n)
	}
}

// bootstrapOutage fails every channel lookup.
type bootstrapOutage struct {
	chat.Store
}

func (bootstrapOutage) FindWorkspace(context.Context, string) (chat.Workspace, error) {
	return chat.Workspace{}, errors.New("connection reset")
}

func TestAccounts_SignInSurvivesBootstrapFailure(t *testing.T) {
	mem := memory.New()
	env := newTestEnvWith(t, mem, bootstrapOutage{Store: mem})
	ctx := context.Background()

	p, err := env.accounts.SignIn(ctx, chat.AuthIdentity{UserID: "u-ann", Email: "ann@example.com"})
	if err != nil {
		t.Fatalf("SignIn: %v", err)
	}
	if p.Username != "ann" || p.Status != chat.StatusOnline {
		t.Errorf("Got profile %+v, want online ann", p)
	}
	if _, err := mem.GetProfile(ctx, "u-ann"); err != nil {
		t.Errorf("Profile not stored: %v", err)
	}
	chs, _ := mem.ListChannelsForUser(ctx, "u-ann")
	if len(chs) != 0 {
		t.Errorf("Got %d memberships, want 0", len(chs))
	}
}

func TestMemberships_CreateChannel(t *testing.T) {
	env := newTestEnv(t)
	_, general := env.signIn(t, "u-ann", "ann@example.com")
	ctx := context.Background()

	tests := []struct {
		name     string
		input    string
		wantName string
		wantErr  func(error) bool
	}{
		{name: "Normalized", input: "  Release Planning ", wantName: "release-planning"},
		{name: "Blank", input: "   ", wantErr: chat.IsValidation},
		{name: "Duplicate", input: "RELEASE planning", wantErr: func(err error) bool { return errors.Is(err, chat.ErrDuplicate) }},
		{name: "TakenByGeneral", input: "General", wantErr: func(err error) bool { return errors.Is(err, chat.ErrDuplicate) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ch, err := env.memberships.CreateChannel(ctx, "u-ann", general.WorkspaceID, tt.input, " notes ", false)
			if tt.wantErr != nil {
				if !tt.wantErr(err) {
					t.Errorf("CreateChannel error = %v", err)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if ch.Name != tt.wantName || ch.Description != "notes" || ch.CreatedBy != "u-ann" {
				t.Errorf("Got channel %+v", ch)
			}
			if n := env.store.MembershipCount("u-ann", ch.ID); n != 1 {
				t.Errorf("Creator not joined")
			}
		})
	}
}

func TestMemberships_BrowseChannels(t *testing.T) {
	env := newTestEnv(t)
	_, general := env.signIn(t, "u-ann", "ann@example.com")
	env.signIn(t, "u-bob", "bob@example.com")
	ctx := context.Background()

	if _, err := env.memberships.CreateChannel(ctx, "u-ann", general.WorkspaceID, "random", "", false); err != nil {
		t.Fatal(err)
	}
	if _, err := env.memberships.CreateChannel(ctx, "u-ann", general.WorkspaceID, "secret", "", true); err != nil {
		t.Fatal(err)
	}

	names := func(chs []chat.Channel) []string {
		out := []string{}
		for _, ch := range chs {
			out = append(out, ch.Name)
		}
		return out
	}

	forBob, err := env.memberships.BrowseChannels(ctx, "u-bob")
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"random"}, names(forBob)); diff != "" {
		t.Errorf("Browse for bob (-want +got):\n%s", diff)
	}

	forAnn, err := env.memberships.BrowseChannels(ctx, "u-ann")
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{}, names(forAnn)); diff != "" {
		t.Errorf("Browse for ann (-want +got):\n%s", diff)
	}

	mine, err := env.memberships.ListMemberships(ctx, "u-ann")
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"general", "random", "secret"}, names(mine)); diff != "" {
		t.Errorf("Memberships for ann (-want +got):\n%s", diff)
	}
}

func TestNormalizeChannelName(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"general", "general"},
		{" Front End ", "front-end"},
		{"ALL CAPS", "all-caps"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := chat.NormalizeChannelName(tt.in); got != tt.want {
			t.Errorf("NormalizeChannelName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
