package scheduler

import (
	"github.com/foxseedlab/golive/internal/config"
	"github.com/foxseedlab/golive/internal/report"
	"github.com/foxseedlab/golive/internal/repository"
	"github.com/samber/do/v2"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (*Scheduler, error) {
		cfg := do.MustInvoke[*config.Config](i)
		configs := do.MustInvoke[repository.GuildConfigRepository](i)
		builder := do.MustInvoke[*report.Builder](i)
		sink := do.MustInvoke[ReportSink](i)
		return NewScheduler(configs, builder, sink, cfg.ReportTimeout, cfg.ReportConcurrency), nil
	})
}
