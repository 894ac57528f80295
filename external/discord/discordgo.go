package discord

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/bwmarrin/discordgo"
	discordpkg "github.com/foxseedlab/golive/internal/discord"
)

type Client struct {
	session   *discordgo.Session
	token     string
	botUserID string
}

func NewClient(token string) discordpkg.Client {
	return &Client{
		token: token,
	}
}

func (c *Client) Connect(ctx context.Context) error {
	_ = ctx
	s, err := discordgo.New("Bot " + c.token)
	if err != nil {
		return err
	}
	c.session = s
	s.Identify.Intents = discordgo.MakeIntent(discordgo.IntentsGuilds | discordgo.IntentsGuildVoiceStates)
	s.State.TrackVoice = true
	// Voice events must reach the tracker in gateway order; the registered
	// handlers hand work off to their own goroutines.
	s.SyncEvents = true
	if err := s.Open(); err != nil {
		return err
	}
	userID, err := c.GetBotUserID()
	if err != nil {
		return err
	}
	c.botUserID = userID
	return nil
}

func (c *Client) Close() error {
	if c.session != nil {
		return c.session.Close()
	}
	return nil
}

func (c *Client) SendMessage(ctx context.Context, msg discordpkg.OutgoingMessage) (discordpkg.MessageRef, error) {
	if c.session == nil {
		return discordpkg.MessageRef{}, fmt.Errorf("discord session is not initialized")
	}
	send := &discordgo.MessageSend{
		Content: msg.Content,
		Embeds:  toDiscordEmbeds(msg.Embeds),
	}
	if msg.ReplyTo != nil {
		send.Reference = &discordgo.MessageReference{
			MessageID: msg.ReplyTo.MessageID,
			ChannelID: msg.ReplyTo.ChannelID,
		}
	}
	m, err := c.session.ChannelMessageSendComplex(msg.ChannelID, send, discordgo.WithContext(ctx))
	if err != nil {
		return discordpkg.MessageRef{}, err
	}
	return discordpkg.MessageRef{MessageID: m.ID, ChannelID: m.ChannelID}, nil
}

func toDiscordEmbeds(embeds []discordpkg.Embed) []*discordgo.MessageEmbed {
	if len(embeds) == 0 {
		return nil
	}
	out := make([]*discordgo.MessageEmbed, 0, len(embeds))
	for _, e := range embeds {
		me := &discordgo.MessageEmbed{
			Title:       e.Title,
			Description: e.Description,
			Color:       e.Color,
		}
		for _, f := range e.Fields {
			me.Fields = append(me.Fields, &discordgo.MessageEmbedField{Name: f.Name, Value: f.Value, Inline: f.Inline})
		}
		if e.Footer != "" {
			me.Footer = &discordgo.MessageEmbedFooter{Text: e.Footer}
		}
		if !e.Timestamp.IsZero() {
			me.Timestamp = e.Timestamp.UTC().Format(time.RFC3339)
		}
		out = append(out, me)
	}
	return out
}

func (c *Client) RegisterVoiceStateUpdateHandler(handler func(discordpkg.VoiceStateEvent)) {
	c.session.AddHandler(func(s *discordgo.Session, vs *discordgo.VoiceStateUpdate) {
		if vs == nil || vs.VoiceState == nil {
			return
		}
		if vs.GuildID == "" || vs.UserID == "" {
			return
		}
		event := discordpkg.VoiceStateEvent{
			GuildID:        vs.GuildID,
			UserID:         vs.UserID,
			AfterChannelID: vs.ChannelID,
			IsStreaming:    vs.ChannelID != "" && vs.SelfStream,
		}
		if vs.BeforeUpdate != nil {
			event.BeforeKnown = true
			event.BeforeChannelID = vs.BeforeUpdate.ChannelID
			event.WasStreaming = vs.BeforeUpdate.ChannelID != "" && vs.BeforeUpdate.SelfStream
		}
		if isIrrelevantVoiceUpdate(event) {
			return
		}
		event.UserIsBot = c.resolveUserIsBot(vs.GuildID, vs.UserID, vs.VoiceState)
		event.Username = c.resolveDisplayName(vs.GuildID, vs.UserID, vs.Member)
		if guild := c.resolveGuild(vs.GuildID); guild != nil {
			event.GuildName = guild.Name
		}
		if event.AfterChannelID != "" {
			if channel := c.resolveChannel(event.AfterChannelID); channel != nil {
				event.AfterChannelName = channel.Name
			}
		}
		handler(event)
	})
}

// isIrrelevantVoiceUpdate filters mute/deafen toggles and other updates that
// change neither the streaming flag nor the channel of a known prior state.
func isIrrelevantVoiceUpdate(e discordpkg.VoiceStateEvent) bool {
	if !e.BeforeKnown {
		return false
	}
	return e.WasStreaming == e.IsStreaming && e.BeforeChannelID == e.AfterChannelID
}

func (c *Client) RegisterSlashCommandHandler(handler func(discordpkg.SlashCommandEvent)) {
	c.session.AddHandler(func(s *discordgo.Session, ic *discordgo.InteractionCreate) {
		if ic == nil || ic.Type != discordgo.InteractionApplicationCommand {
			return
		}
		data := ic.ApplicationCommandData()
		if data.Name == "" {
			return
		}
		userID := ""
		username := ""
		if ic.Member != nil && ic.Member.User != nil {
			userID = ic.Member.User.ID
			username = preferredDiscordName(ic.Member.Nick, preferredDiscordName(ic.Member.User.GlobalName, ic.Member.User.Username, userID), userID)
		}
		if userID == "" && ic.User != nil {
			userID = ic.User.ID
			username = preferredDiscordName(ic.User.GlobalName, ic.User.Username, userID)
		}
		if userID == "" {
			return
		}
		slog.Info("slash command interaction received", "guild_id", ic.GuildID, "channel_id", ic.ChannelID, "command", data.Name, "user_id", userID)
		event := discordpkg.SlashCommandEvent{
			GuildID:     ic.GuildID,
			ChannelID:   ic.ChannelID,
			CommandName: data.Name,
			UserID:      userID,
			Username:    username,
			Options:     commandOptionValues(data.Options),
			Responder:   &interactionResponder{session: s, interaction: ic.Interaction},
		}
		go handler(event)
	})
}

func commandOptionValues(opts []*discordgo.ApplicationCommandInteractionDataOption) map[string]any {
	values := make(map[string]any, len(opts))
	for _, o := range opts {
		if o == nil {
			continue
		}
		switch o.Type {
		case discordgo.ApplicationCommandOptionBoolean:
			values[o.Name] = o.BoolValue()
		default:
			values[o.Name] = fmt.Sprint(o.Value)
		}
	}
	return values
}

type interactionResponder struct {
	session     *discordgo.Session
	interaction *discordgo.Interaction
}

func (r *interactionResponder) Reply(content string) error {
	return r.session.InteractionRespond(r.interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: content,
		},
	})
}

func (r *interactionResponder) EditReply(content string) error {
	_, err := r.session.InteractionResponseEdit(r.interaction, &discordgo.WebhookEdit{
		Content: &content,
	})
	return err
}

func (c *Client) UpsertSlashCommands(guildID string, defs []discordpkg.SlashCommandDefinition) error {
	appID := c.applicationID()
	if appID == "" {
		return fmt.Errorf("discord application id is not available")
	}
	existing, err := c.session.ApplicationCommands(appID, guildID)
	if err != nil {
		return err
	}
	existingByName := make(map[string]*discordgo.ApplicationCommand, len(existing))
	for _, cmd := range existing {
		if cmd == nil || cmd.Name == "" {
			continue
		}
		existingByName[cmd.Name] = cmd
	}
	for _, def := range defs {
		if err := c.upsertSlashCommand(appID, guildID, def, existingByName); err != nil {
			return err
		}
	}
	return nil
}

func (c *Client) upsertSlashCommand(appID, guildID string, def discordpkg.SlashCommandDefinition, existingByName map[string]*discordgo.ApplicationCommand) error {
	if def.Name == "" {
		return nil
	}
	payload := &discordgo.ApplicationCommand{
		Name:        def.Name,
		Description: def.Description,
		Options:     toDiscordOptions(def.Options),
	}
	if def.ManageGuildOnly {
		perms := int64(discordgo.PermissionManageServer)
		payload.DefaultMemberPermissions = &perms
	}
	cmd, ok := existingByName[def.Name]
	if !ok {
		_, err := c.session.ApplicationCommandCreate(appID, guildID, payload)
		return err
	}
	if sameCommand(cmd, payload) {
		return nil
	}
	_, err := c.session.ApplicationCommandEdit(appID, guildID, cmd.ID, payload)
	return err
}

func sameCommand(existing, want *discordgo.ApplicationCommand) bool {
	if existing.Description != want.Description || len(existing.Options) != len(want.Options) {
		return false
	}
	if (existing.DefaultMemberPermissions == nil) != (want.DefaultMemberPermissions == nil) {
		return false
	}
	if want.DefaultMemberPermissions != nil && *existing.DefaultMemberPermissions != *want.DefaultMemberPermissions {
		return false
	}
	for i, o := range want.Options {
		e := existing.Options[i]
		if e == nil || e.Name != o.Name || e.Type != o.Type || e.Required != o.Required || e.Description != o.Description {
			return false
		}
	}
	return true
}

func toDiscordOptions(opts []discordpkg.SlashCommandOption) []*discordgo.ApplicationCommandOption {
	if len(opts) == 0 {
		return nil
	}
	out := make([]*discordgo.ApplicationCommandOption, 0, len(opts))
	for _, o := range opts {
		opt := &discordgo.ApplicationCommandOption{
			Name:        o.Name,
			Description: o.Description,
			Required:    o.Required,
		}
		switch o.Type {
		case discordpkg.CommandOptionBoolean:
			opt.Type = discordgo.ApplicationCommandOptionBoolean
		case discordpkg.CommandOptionChannel:
			opt.Type = discordgo.ApplicationCommandOptionChannel
			opt.ChannelTypes = []discordgo.ChannelType{discordgo.ChannelTypeGuildText}
		case discordpkg.CommandOptionUser:
			opt.Type = discordgo.ApplicationCommandOptionUser
		default:
			opt.Type = discordgo.ApplicationCommandOptionString
		}
		out = append(out, opt)
	}
	return out
}

func (c *Client) ResolveVoiceState(ctx context.Context, guildID, userID string) (*discordpkg.VoiceState, error) {
	if c.session == nil {
		return nil, fmt.Errorf("discord session is not initialized")
	}
	if c.session.State != nil {
		vs, err := c.session.State.VoiceState(guildID, userID)
		if err == nil && vs != nil {
			return toVoiceState(vs), nil
		}
	}

	// Cache may be cold right after bot startup; ask Discord API directly as fallback.
	vs, err := c.session.UserVoiceState(guildID, userID, discordgo.WithContext(ctx))
	if err != nil {
		if isRESTNotFound(err) {
			return &discordpkg.VoiceState{}, nil
		}
		return nil, err
	}
	if vs == nil {
		return &discordpkg.VoiceState{}, nil
	}
	return toVoiceState(vs), nil
}

func toVoiceState(vs *discordgo.VoiceState) *discordpkg.VoiceState {
	return &discordpkg.VoiceState{
		ChannelID:   vs.ChannelID,
		IsStreaming: vs.ChannelID != "" && vs.SelfStream,
	}
}

func (c *Client) GuildAvailable(ctx context.Context, guildID string) (bool, error) {
	if c.session == nil {
		return false, fmt.Errorf("discord session is not initialized")
	}
	// READY only caches unavailable stubs until GUILD_CREATE arrives, so a
	// cached stub is no answer and REST decides.
	if c.session.State != nil {
		guild, err := c.session.State.Guild(guildID)
		if err == nil && guild != nil && !guild.Unavailable {
			return true, nil
		}
	}
	guild, err := c.session.Guild(guildID, discordgo.WithContext(ctx))
	if err != nil {
		if isRESTStatus(err, http.StatusNotFound) || isRESTStatus(err, http.StatusForbidden) {
			return false, nil
		}
		return false, err
	}
	return guild != nil && !guild.Unavailable, nil
}

func isRESTNotFound(err error) bool {
	return isRESTStatus(err, http.StatusNotFound)
}

func isRESTStatus(err error, status int) bool {
	var restErr *discordgo.RESTError
	if !errors.As(err, &restErr) {
		return false
	}
	if restErr.Response == nil {
		return false
	}
	return restErr.Response.StatusCode == status
}

func (c *Client) GetBotUserID() (string, error) {
	if c.botUserID != "" {
		return c.botUserID, nil
	}
	if c.session == nil {
		return "", fmt.Errorf("discord session is not initialized")
	}
	if c.session.State != nil && c.session.State.User != nil && c.session.State.User.ID != "" {
		c.botUserID = c.session.State.User.ID
		return c.botUserID, nil
	}
	u, err := c.session.User("@me")
	if err != nil {
		return "", err
	}
	c.botUserID = u.ID
	return c.botUserID, nil
}

func (c *Client) resolveUserIsBot(guildID, userID string, state *discordgo.VoiceState) bool {
	if isBot, ok := botFlagFromVoiceState(state); ok {
		return isBot
	}
	if isBot, ok := c.botFlagFromSessionState(guildID, userID); ok {
		return isBot
	}
	return c.botFlagFromUserAPI(userID)
}

func botFlagFromVoiceState(state *discordgo.VoiceState) (bool, bool) {
	if state != nil && state.Member != nil && state.Member.User != nil {
		return state.Member.User.Bot, true
	}
	return false, false
}

func (c *Client) botFlagFromSessionState(guildID, userID string) (bool, bool) {
	if c.session == nil || c.session.State == nil {
		return false, false
	}
	if c.session.State.User != nil && c.session.State.User.ID == userID {
		return true, true
	}
	member, err := c.session.State.Member(guildID, userID)
	if err == nil && member != nil && member.User != nil {
		return member.User.Bot, true
	}
	return false, false
}

func (c *Client) botFlagFromUserAPI(userID string) bool {
	u, err := c.session.User(userID)
	if err != nil {
		return false
	}
	return u.Bot
}

func (c *Client) resolveGuild(guildID string) *discordgo.Guild {
	if c.session == nil {
		return nil
	}
	if c.session.State != nil {
		guild, err := c.session.State.Guild(guildID)
		if err == nil && guild != nil && guild.Name != "" {
			return guild
		}
	}
	guild, err := c.session.Guild(guildID)
	if err != nil || guild == nil {
		return nil
	}
	if guild.Name == "" {
		return nil
	}
	return guild
}

func (c *Client) resolveChannel(channelID string) *discordgo.Channel {
	if c.session == nil {
		return nil
	}
	if c.session.State != nil {
		channel, err := c.session.State.Channel(channelID)
		if err == nil && channel != nil && channel.Name != "" {
			return channel
		}
	}
	channel, err := c.session.Channel(channelID)
	if err != nil || channel == nil {
		return nil
	}
	if channel.Name == "" {
		return nil
	}
	return channel
}

func (c *Client) resolveDisplayName(guildID, userID string, member *discordgo.Member) string {
	if member == nil {
		member = c.resolveGuildMember(guildID, userID)
	}
	if member != nil {
		if member.Nick != "" {
			return member.Nick
		}
		if member.User != nil {
			return preferredDiscordName(member.User.GlobalName, member.User.Username, userID)
		}
	}
	u, err := c.session.User(userID)
	if err == nil && u != nil {
		return preferredDiscordName(u.GlobalName, u.Username, userID)
	}
	return userID
}

func (c *Client) resolveGuildMember(guildID, userID string) *discordgo.Member {
	if c.session == nil {
		return nil
	}
	if c.session.State != nil {
		member, err := c.session.State.Member(guildID, userID)
		if err == nil && member != nil {
			return member
		}
	}
	member, err := c.session.GuildMember(guildID, userID)
	if err != nil {
		return nil
	}
	return member
}

func preferredDiscordName(globalName, username, fallback string) string {
	if globalName != "" {
		return globalName
	}
	if username != "" {
		return username
	}
	return fallback
}

func (c *Client) applicationID() string {
	if c.session == nil || c.session.State == nil {
		return ""
	}
	if c.session.State.Application != nil && c.session.State.Application.ID != "" {
		return c.session.State.Application.ID
	}
	if c.session.State.User != nil {
		return c.session.State.User.ID
	}
	return ""
}
