package notifier

import (
	"github.com/foxseedlab/golive/internal/discord"
	"github.com/foxseedlab/golive/internal/repository"
	"github.com/foxseedlab/golive/internal/scheduler"
	"github.com/foxseedlab/golive/internal/tracker"
	"github.com/foxseedlab/golive/internal/webhook"
	"github.com/samber/do/v2"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (*Notifier, error) {
		dc := do.MustInvoke[discord.Client](i)
		configs := do.MustInvoke[repository.GuildConfigRepository](i)
		wh := do.MustInvoke[webhook.Sender](i)
		return NewNotifier(dc, configs, wh), nil
	})
	do.Provide(injector, func(i do.Injector) (tracker.Notifier, error) {
		return do.MustInvoke[*Notifier](i), nil
	})
	do.Provide(injector, func(i do.Injector) (scheduler.ReportSink, error) {
		return do.MustInvoke[*Notifier](i), nil
	})
}
