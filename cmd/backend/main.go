package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	configloader "github.com/foxseedlab/golive/external/config"
	discordimpl "github.com/foxseedlab/golive/external/discord"
	"github.com/foxseedlab/golive/external/httpapi"
	repositoryimpl "github.com/foxseedlab/golive/external/repository"
	webhookimpl "github.com/foxseedlab/golive/external/webhook"
	"github.com/foxseedlab/golive/internal/command"
	"github.com/foxseedlab/golive/internal/config"
	"github.com/foxseedlab/golive/internal/discord"
	"github.com/foxseedlab/golive/internal/notifier"
	"github.com/foxseedlab/golive/internal/recovery"
	"github.com/foxseedlab/golive/internal/report"
	"github.com/foxseedlab/golive/internal/repository"
	"github.com/foxseedlab/golive/internal/scheduler"
	"github.com/foxseedlab/golive/internal/supervisor"
	"github.com/foxseedlab/golive/internal/tracker"
	"github.com/samber/do/v2"
)

const (
	discordConnectTimeout = 20 * time.Second
	recoveryTimeout       = 2 * time.Minute
	shutdownTimeout       = 15 * time.Second
)

func main() {
	slog.Info("startup: loading configuration")
	cfg := mustLoadConfig()
	initLogger(cfg)
	slog.Info("startup: configuration loaded", "env", cfg.Env, "store_driver", cfg.StoreDriver)

	slog.Info("startup: building dependency graph")
	injector := setupDI(cfg)

	run(cfg, injector)
}

func mustLoadConfig() *config.Config {
	cfg, err := configloader.Load()
	if err != nil {
		slog.Error("config validation failed", "error", err)
		os.Exit(1)
	}
	return cfg
}

func initLogger(cfg *config.Config) {
	logLevel := slog.LevelInfo
	if cfg.IsDevelopment() {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})))
}

func setupDI(cfg *config.Config) do.Injector {
	injector := do.New()

	do.ProvideValue(injector, cfg)
	repositoryimpl.RegisterDI(injector)
	discordimpl.RegisterDI(injector)
	webhookimpl.RegisterDI(injector)
	notifier.RegisterDI(injector)
	tracker.RegisterDI(injector)
	recovery.RegisterDI(injector)
	report.RegisterDI(injector)
	scheduler.RegisterDI(injector)
	command.RegisterDI(injector)
	httpapi.RegisterDI(injector)

	return injector
}

func mustInvoke[T any](injector do.Injector, name string) T {
	v, err := do.Invoke[T](injector)
	if err != nil {
		slog.Error("failed to resolve "+name, "error", err)
		os.Exit(1)
	}
	return v
}

func run(cfg *config.Config, injector do.Injector) {
	// The store comes first so nothing touches Discord when it is unreachable.
	slog.Info("startup: connecting to store")
	store := mustInvoke[repository.Repository](injector, "store")
	defer store.Close()

	dc := mustInvoke[discord.Client](injector, "discord client")
	tr := mustInvoke[*tracker.Tracker](injector, "tracker")
	router := mustInvoke[*command.Router](injector, "command router")
	reconciler := mustInvoke[*recovery.Reconciler](injector, "reconciler")
	sched := mustInvoke[*scheduler.Scheduler](injector, "scheduler")
	cooldown := mustInvoke[*command.Cooldown](injector, "command cooldown")

	connectCtx, cancelConnect := context.WithTimeout(context.Background(), discordConnectTimeout)
	defer cancelConnect()

	slog.Info("startup: connecting to discord gateway")
	if err := dc.Connect(connectCtx); err != nil {
		slog.Error("discord connect failed", "error", err)
		os.Exit(1)
	}
	slog.Info("startup: discord connected")
	defer func() {
		if err := dc.Close(); err != nil {
			slog.Error("discord close failed", "error", err)
		}
	}()

	if err := dc.UpsertSlashCommands(cfg.DiscordCommandGuildID, router.Definitions()); err != nil {
		slog.Error("failed to upsert slash commands", "error", err, "guild_id", cfg.DiscordCommandGuildID)
		os.Exit(1)
	}
	dc.RegisterVoiceStateUpdateHandler(tr.HandleVoiceStateUpdate)
	dc.RegisterSlashCommandHandler(router.HandleSlashCommand)
	slog.Info("discord handlers registered", "command_guild_id", cfg.DiscordCommandGuildID)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	recoverSessions(ctx, reconciler, dc)

	tree := supervisor.NewTree(slog.Default(), supervisor.TreeConfig{ShutdownTimeout: shutdownTimeout})
	tree.AddBackgroundService(sched)
	tree.AddBackgroundService(cooldown)
	if cfg.MetricsAddr != "" {
		tree.AddAPIService(mustInvoke[*httpapi.Server](injector, "metrics server"))
	}
	treeDone := tree.ServeBackground(ctx)
	slog.Info("startup: complete")

	select {
	case <-ctx.Done():
		slog.Info("shutting down")
	case err := <-treeDone:
		slog.Error("supervisor tree stopped unexpectedly", "error", err)
	}
	stop()

	select {
	case <-treeDone:
	case <-time.After(shutdownTimeout):
		if unstopped, err := tree.UnstoppedServiceReport(); err == nil && len(unstopped) > 0 {
			slog.Warn("services did not stop in time", "count", len(unstopped))
		}
	}
	tr.Close()
}

func recoverSessions(ctx context.Context, reconciler *recovery.Reconciler, oracle recovery.PresenceOracle) {
	ctx, cancel := context.WithTimeout(ctx, recoveryTimeout)
	defer cancel()

	slog.Info("startup: reconciling sessions left open by the previous run")
	result, err := reconciler.Reconcile(ctx, oracle)
	if err != nil {
		slog.Error("crash recovery failed", "error", err)
		return
	}
	slog.Info("crash recovery finished", "kept", result.Kept, "interrupted", result.Interrupted, "failed", result.Failed)
}
