package command

import (
	"github.com/foxseedlab/golive/internal/config"
	"github.com/foxseedlab/golive/internal/report"
	"github.com/foxseedlab/golive/internal/repository"
	"github.com/foxseedlab/golive/internal/scheduler"
	"github.com/samber/do/v2"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (*Cooldown, error) {
		cfg := do.MustInvoke[*config.Config](i)
		return NewCooldown(cfg.CommandCooldown), nil
	})
	do.Provide(injector, func(i do.Injector) (*Router, error) {
		activities := do.MustInvoke[repository.ActivityRepository](i)
		configs := do.MustInvoke[repository.GuildConfigRepository](i)
		builder := do.MustInvoke[*report.Builder](i)
		sink := do.MustInvoke[scheduler.ReportSink](i)
		registry := NewRegistry(
			NewStatsCommand(activities),
			NewTopCommand(activities),
			NewReportCommand(configs, builder, sink),
			NewConfigCommand(configs),
		)
		return NewRouter(registry, do.MustInvoke[*Cooldown](i)), nil
	})
}
