package discord

import (
	"context"
	"time"
)

type MessageRef struct {
	MessageID string
	ChannelID string
}

type EmbedField struct {
	Name   string
	Value  string
	Inline bool
}

type Embed struct {
	Title       string
	Description string
	Color       int
	Fields      []EmbedField
	Footer      string
	Timestamp   time.Time
}

type OutgoingMessage struct {
	ChannelID string
	Content   string
	Embeds    []Embed
	ReplyTo   *MessageRef
}

type CommandOptionType int

const (
	CommandOptionString CommandOptionType = iota + 1
	CommandOptionBoolean
	CommandOptionChannel
	CommandOptionUser
)

type SlashCommandOption struct {
	Name        string
	Description string
	Type        CommandOptionType
	Required    bool
}

type SlashCommandDefinition struct {
	Name        string
	Description string
	Options     []SlashCommandOption
	// ManageGuildOnly hides the command from members without Manage Server.
	ManageGuildOnly bool
}

// Responder is the one reply surface every command entry point adapts to.
type Responder interface {
	Reply(content string) error
	EditReply(content string) error
}

type SlashCommandEvent struct {
	GuildID     string
	ChannelID   string
	CommandName string
	UserID      string
	Username    string
	// Options holds string values for string, channel and user options and
	// bool values for boolean options.
	Options   map[string]any
	Responder Responder
}

// VoiceStateEvent is one presence transition. BeforeKnown is false when the
// gateway cache had no prior state for the member.
type VoiceStateEvent struct {
	GuildID          string
	GuildName        string
	UserID           string
	Username         string
	UserIsBot        bool
	BeforeKnown      bool
	BeforeChannelID  string
	WasStreaming     bool
	AfterChannelID   string
	AfterChannelName string
	IsStreaming      bool
}

type VoiceState struct {
	ChannelID   string
	IsStreaming bool
}

type Client interface {
	Connect(ctx context.Context) error
	Close() error
	SendMessage(ctx context.Context, msg OutgoingMessage) (MessageRef, error)
	RegisterVoiceStateUpdateHandler(handler func(VoiceStateEvent))
	RegisterSlashCommandHandler(handler func(SlashCommandEvent))
	UpsertSlashCommands(guildID string, defs []SlashCommandDefinition) error
	// ResolveVoiceState returns nil when the member cannot be resolved.
	ResolveVoiceState(ctx context.Context, guildID, userID string) (*VoiceState, error)
	GuildAvailable(ctx context.Context, guildID string) (bool, error)
	GetBotUserID() (string, error)
}
