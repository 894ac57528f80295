package command

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/foxseedlab/golive/internal/discord"
)

const commandTimeout = 30 * time.Second

// Command is one slash command. Handle returns the content of the reply.
type Command interface {
	Definition() discord.SlashCommandDefinition
	Handle(ctx context.Context, event discord.SlashCommandEvent) (string, error)
}

type Registry map[string]Command

func NewRegistry(commands ...Command) Registry {
	r := make(Registry, len(commands))
	for _, c := range commands {
		r[c.Definition().Name] = c
	}
	return r
}

// Definitions returns the registered definitions sorted by name.
func (r Registry) Definitions() []discord.SlashCommandDefinition {
	defs := make([]discord.SlashCommandDefinition, 0, len(r))
	for _, c := range r {
		defs = append(defs, c.Definition())
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].Name < defs[j].Name })
	return defs
}

type Router struct {
	registry Registry
	cooldown *Cooldown
}

func NewRouter(registry Registry, cooldown *Cooldown) *Router {
	return &Router{registry: registry, cooldown: cooldown}
}

func (r *Router) Definitions() []discord.SlashCommandDefinition {
	return r.registry.Definitions()
}

// HandleSlashCommand acknowledges the interaction right away and edits the
// reply once the command finishes. Failures surface as a generic apology.
func (r *Router) HandleSlashCommand(event discord.SlashCommandEvent) {
	log := slog.With("guild_id", event.GuildID, "user_id", event.UserID, "command", event.CommandName)

	cmd, ok := r.registry[event.CommandName]
	if !ok {
		r.reply(log, event.Responder, messageUnknownCommand)
		return
	}
	if event.GuildID == "" {
		r.reply(log, event.Responder, messageGuildOnly)
		return
	}
	if !r.cooldown.Allow(event.UserID) {
		r.reply(log, event.Responder, messageCooldown)
		return
	}
	if err := event.Responder.Reply(messageWorking); err != nil {
		log.Warn("failed to acknowledge slash command", "error", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()
	content, err := cmd.Handle(ctx, event)
	if err != nil {
		log.Error("slash command failed", "error", err)
		content = messageGenericApology
	}
	if err := event.Responder.EditReply(content); err != nil {
		log.Warn("failed to edit slash command reply", "error", err)
	}
}

func (r *Router) reply(log *slog.Logger, responder discord.Responder, content string) {
	if err := responder.Reply(content); err != nil {
		log.Warn("failed to reply to slash command", "error", err)
	}
}

func stringOption(event discord.SlashCommandEvent, name string) (string, bool) {
	v, ok := event.Options[name].(string)
	return v, ok && v != ""
}

func boolOption(event discord.SlashCommandEvent, name string) (bool, bool) {
	v, ok := event.Options[name].(bool)
	return v, ok
}
