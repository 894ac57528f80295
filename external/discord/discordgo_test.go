package discord

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/bwmarrin/discordgo"
	discordpkg "github.com/foxseedlab/golive/internal/discord"
)

type roundTripFunc func(req *http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func newTestSession(t *testing.T, rt roundTripFunc) *discordgo.Session {
	t.Helper()
	s, err := discordgo.New("Bot test-token")
	if err != nil {
		t.Fatalf("failed to create session: %v", err)
	}
	if rt != nil {
		s.Client = &http.Client{Transport: rt}
	}
	return s
}

func jsonResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Status:     http.StatusText(status),
		Body:       io.NopCloser(strings.NewReader(body)),
		Header:     http.Header{"Content-Type": []string{"application/json"}},
	}
}

func TestResolveVoiceState_UsesStateCacheFirst(t *testing.T) {
	s := newTestSession(t, func(req *http.Request) (*http.Response, error) {
		t.Fatalf("unexpected REST call: %s %s", req.Method, req.URL.String())
		return nil, nil
	})
	if err := s.State.GuildAdd(&discordgo.Guild{
		ID: "guild-1",
		VoiceStates: []*discordgo.VoiceState{
			{GuildID: "guild-1", ChannelID: "vc-1", UserID: "user-1", SelfStream: true},
		},
	}); err != nil {
		t.Fatalf("failed to add guild to state: %v", err)
	}

	c := &Client{session: s}
	vs, err := c.ResolveVoiceState(context.Background(), "guild-1", "user-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if vs.ChannelID != "vc-1" || !vs.IsStreaming {
		t.Fatalf("expected streaming in vc-1, got %+v", vs)
	}
}

func TestResolveVoiceState_FallsBackToRESTWhenStateIsCold(t *testing.T) {
	s := newTestSession(t, func(req *http.Request) (*http.Response, error) {
		if !strings.HasSuffix(req.URL.Path, "/guilds/guild-1/voice-states/user-1") {
			t.Fatalf("unexpected request path: %s", req.URL.Path)
		}
		return jsonResponse(http.StatusOK,
			`{"guild_id":"guild-1","channel_id":"vc-rest","user_id":"user-1","session_id":"x","deaf":false,"mute":false,"self_deaf":false,"self_mute":false,"self_stream":false,"self_video":false,"suppress":false}`,
		), nil
	})

	c := &Client{session: s}
	vs, err := c.ResolveVoiceState(context.Background(), "guild-1", "user-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if vs.ChannelID != "vc-rest" {
		t.Fatalf("expected vc-rest, got %q", vs.ChannelID)
	}
	if vs.IsStreaming {
		t.Fatal("expected not streaming")
	}
}

func TestResolveVoiceState_ReturnsEmptyOnRESTNotFound(t *testing.T) {
	s := newTestSession(t, func(req *http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusNotFound, `{"message":"Unknown Voice State","code":10065}`), nil
	})

	c := &Client{session: s}
	vs, err := c.ResolveVoiceState(context.Background(), "guild-1", "user-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if vs.ChannelID != "" || vs.IsStreaming {
		t.Fatalf("expected empty voice state, got %+v", vs)
	}
}

func TestGuildAvailable_FalseOnForbidden(t *testing.T) {
	s := newTestSession(t, func(req *http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusForbidden, `{"message":"Missing Access","code":50001}`), nil
	})

	c := &Client{session: s}
	ok, err := c.GuildAvailable(context.Background(), "guild-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatal("expected guild to be unavailable")
	}
}

func TestGuildAvailable_UsesLoadedGuildFromStateCache(t *testing.T) {
	s := newTestSession(t, func(req *http.Request) (*http.Response, error) {
		t.Fatalf("unexpected REST call: %s %s", req.Method, req.URL.String())
		return nil, nil
	})
	if err := s.State.GuildAdd(&discordgo.Guild{ID: "guild-1", Name: "g"}); err != nil {
		t.Fatalf("failed to add guild to state: %v", err)
	}

	c := &Client{session: s}
	ok, err := c.GuildAvailable(context.Background(), "guild-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Fatal("expected guild to be available")
	}
}

func TestGuildAvailable_AsksRESTWhileGuildIsAReadyStub(t *testing.T) {
	calls := 0
	s := newTestSession(t, func(req *http.Request) (*http.Response, error) {
		calls++
		if !strings.HasSuffix(req.URL.Path, "/guilds/guild-1") {
			t.Errorf("unexpected request path: %s", req.URL.Path)
		}
		return jsonResponse(http.StatusOK, `{"id":"guild-1","name":"g"}`), nil
	})
	if err := s.State.OnInterface(s, &discordgo.Ready{
		Guilds: []*discordgo.Guild{{ID: "guild-1", Unavailable: true}},
	}); err != nil {
		t.Fatalf("failed to apply READY: %v", err)
	}

	c := &Client{session: s}
	ok, err := c.GuildAvailable(context.Background(), "guild-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Fatal("expected guild to be available")
	}
	if calls != 1 {
		t.Fatalf("expected 1 REST call, got %d", calls)
	}
}

func TestIsIrrelevantVoiceUpdate(t *testing.T) {
	tests := []struct {
		name  string
		event discordpkg.VoiceStateEvent
		want  bool
	}{
		{
			name:  "mute toggle while streaming",
			event: discordpkg.VoiceStateEvent{BeforeKnown: true, BeforeChannelID: "vc", WasStreaming: true, AfterChannelID: "vc", IsStreaming: true},
			want:  true,
		},
		{
			name:  "stream started",
			event: discordpkg.VoiceStateEvent{BeforeKnown: true, BeforeChannelID: "vc", AfterChannelID: "vc", IsStreaming: true},
			want:  false,
		},
		{
			name:  "channel switch while streaming",
			event: discordpkg.VoiceStateEvent{BeforeKnown: true, BeforeChannelID: "vc-1", WasStreaming: true, AfterChannelID: "vc-2", IsStreaming: true},
			want:  false,
		},
		{
			name:  "unknown prior state is always forwarded",
			event: discordpkg.VoiceStateEvent{AfterChannelID: "vc"},
			want:  false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isIrrelevantVoiceUpdate(tt.event); got != tt.want {
				t.Fatalf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestToDiscordOptions_MapsTypes(t *testing.T) {
	opts := toDiscordOptions([]discordpkg.SlashCommandOption{
		{Name: "user", Type: discordpkg.CommandOptionUser},
		{Name: "hourly", Type: discordpkg.CommandOptionBoolean},
		{Name: "channel", Type: discordpkg.CommandOptionChannel},
		{Name: "timezone", Type: discordpkg.CommandOptionString, Required: true},
	})
	want := []discordgo.ApplicationCommandOptionType{
		discordgo.ApplicationCommandOptionUser,
		discordgo.ApplicationCommandOptionBoolean,
		discordgo.ApplicationCommandOptionChannel,
		discordgo.ApplicationCommandOptionString,
	}
	if len(opts) != len(want) {
		t.Fatalf("expected %d options, got %d", len(want), len(opts))
	}
	for i, o := range opts {
		if o.Type != want[i] {
			t.Fatalf("option %d: expected type %v, got %v", i, want[i], o.Type)
		}
	}
	if !opts[3].Required {
		t.Fatal("expected timezone option to be required")
	}
}

func TestCommandOptionValues(t *testing.T) {
	values := commandOptionValues([]*discordgo.ApplicationCommandInteractionDataOption{
		{Name: "hourly", Type: discordgo.ApplicationCommandOptionBoolean, Value: true},
		{Name: "user", Type: discordgo.ApplicationCommandOptionUser, Value: "123"},
	})
	if v, ok := values["hourly"].(bool); !ok || !v {
		t.Fatalf("expected hourly=true, got %#v", values["hourly"])
	}
	if v, ok := values["user"].(string); !ok || v != "123" {
		t.Fatalf("expected user=123, got %#v", values["user"])
	}
}

func TestToDiscordEmbeds(t *testing.T) {
	embeds := toDiscordEmbeds([]discordpkg.Embed{{
		Title:  "Hourly report",
		Fields: []discordpkg.EmbedField{{Name: "alice", Value: "30m"}},
		Footer: "page 1/1",
	}})
	if len(embeds) != 1 {
		t.Fatalf("expected 1 embed, got %d", len(embeds))
	}
	if embeds[0].Footer == nil || embeds[0].Footer.Text != "page 1/1" {
		t.Fatalf("unexpected footer: %+v", embeds[0].Footer)
	}
	if len(embeds[0].Fields) != 1 || embeds[0].Fields[0].Name != "alice" {
		t.Fatalf("unexpected fields: %+v", embeds[0].Fields)
	}
	if toDiscordEmbeds(nil) != nil {
		t.Fatal("expected nil embeds for empty input")
	}
}
