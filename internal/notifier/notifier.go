package notifier

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/foxseedlab/golive/internal/activity"
	"github.com/foxseedlab/golive/internal/discord"
	"github.com/foxseedlab/golive/internal/metrics"
	"github.com/foxseedlab/golive/internal/report"
	"github.com/foxseedlab/golive/internal/repository"
	"github.com/foxseedlab/golive/internal/tracker"
	"github.com/foxseedlab/golive/internal/webhook"
	"github.com/sony/gobreaker/v2"
)

// ErrSinkUnavailable is returned when a notice could not be delivered even
// after falling back to a fresh message.
var ErrSinkUnavailable = errors.New("notification sink unavailable")

type MessageSender interface {
	SendMessage(ctx context.Context, msg discord.OutgoingMessage) (discord.MessageRef, error)
}

type Notifier struct {
	sender  MessageSender
	configs repository.GuildConfigRepository
	webhook webhook.Sender
	breaker *gobreaker.CircuitBreaker[discord.MessageRef]
}

func NewNotifier(sender MessageSender, configs repository.GuildConfigRepository, wh webhook.Sender) *Notifier {
	return &Notifier{
		sender:  sender,
		configs: configs,
		webhook: wh,
		breaker: newSendBreaker(),
	}
}

func (n *Notifier) NotifyStart(ctx context.Context, notice tracker.StartNotice) (*activity.NotificationRef, error) {
	channelID, err := n.notificationChannel(ctx, notice.Member.GuildID)
	if err != nil {
		return nil, err
	}
	if channelID == "" {
		return nil, nil
	}
	ref, err := n.send(ctx, discord.OutgoingMessage{
		ChannelID: channelID,
		Content:   startMessage(displayName(notice.Member), notice.ChannelID),
	})
	if err != nil {
		metrics.NotificationIssues.WithLabelValues("failure").Inc()
		return nil, fmt.Errorf("%w: %v", ErrSinkUnavailable, err)
	}
	return &activity.NotificationRef{MessageID: ref.MessageID, ChannelID: ref.ChannelID}, nil
}

// NotifyEnd replies to the start notice when one was recorded. If the reply
// fails it posts a fresh message to the guild's notification channel.
func (n *Notifier) NotifyEnd(ctx context.Context, notice tracker.EndNotice) error {
	closed := notice.Closed
	content := endMessage(displayName(notice.Member), closed.ChannelID, closed.DurationMinutes)
	if closed.Interrupted {
		content = interruptedMessage(displayName(notice.Member), closed.ChannelID)
	}

	if ref := closed.NotificationRef; ref != nil {
		_, err := n.send(ctx, discord.OutgoingMessage{
			ChannelID: ref.ChannelID,
			Content:   content,
			ReplyTo:   &discord.MessageRef{MessageID: ref.MessageID, ChannelID: ref.ChannelID},
		})
		if err == nil {
			return nil
		}
		metrics.NotificationIssues.WithLabelValues("fallback").Inc()
		slog.Warn("failed to reply to start notice; sending a fresh message", "error", err, "guild_id", notice.Member.GuildID, "message_id", ref.MessageID)
	}

	channelID, err := n.notificationChannel(ctx, notice.Member.GuildID)
	if err != nil {
		slog.Warn("failed to load guild config for end notice", "error", err, "guild_id", notice.Member.GuildID)
	}
	if channelID == "" && closed.NotificationRef != nil {
		channelID = closed.NotificationRef.ChannelID
	}
	if channelID == "" {
		return nil
	}
	if _, err := n.send(ctx, discord.OutgoingMessage{ChannelID: channelID, Content: content}); err != nil {
		metrics.NotificationIssues.WithLabelValues("failure").Inc()
		return fmt.Errorf("%w: %v", ErrSinkUnavailable, err)
	}
	return nil
}

// DeliverReport posts every page to the guild's notification channel and
// mirrors the report to the webhook when one is configured.
func (n *Notifier) DeliverReport(ctx context.Context, cfg repository.GuildReportConfig, r *report.Report) error {
	if cfg.NotificationChannelID == "" {
		return nil
	}
	loc := cfg.Location()
	var errs []error
	for _, page := range r.Pages() {
		_, err := n.send(ctx, discord.OutgoingMessage{
			ChannelID: cfg.NotificationChannelID,
			Embeds:    []discord.Embed{PageEmbed(r, page, loc)},
		})
		if err != nil {
			metrics.NotificationIssues.WithLabelValues("failure").Inc()
			errs = append(errs, fmt.Errorf("page %d/%d: %w", page.Number, page.Total, err))
		}
	}

	if n.webhook != nil {
		if err := n.webhook.SendReport(ctx, webhook.NewReportWebhookPayload(r)); err != nil {
			slog.Warn("failed to mirror report to webhook", "error", err, "guild_id", r.GuildID, "kind", r.Kind)
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrSinkUnavailable, errors.Join(errs...))
	}
	return nil
}

func (n *Notifier) notificationChannel(ctx context.Context, guildID string) (string, error) {
	cfg, err := n.configs.GetGuildConfig(ctx, guildID)
	if err != nil {
		return "", fmt.Errorf("load guild config: %w", err)
	}
	return cfg.NotificationChannelID, nil
}

func (n *Notifier) send(ctx context.Context, msg discord.OutgoingMessage) (discord.MessageRef, error) {
	ref, err := n.breaker.Execute(func() (discord.MessageRef, error) {
		return n.sender.SendMessage(ctx, msg)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		metrics.NotificationIssues.WithLabelValues("rejected").Inc()
	}
	return ref, err
}

func displayName(m tracker.Member) string {
	if m.Username != "" {
		return m.Username
	}
	return "<@" + m.UserID + ">"
}
