package httpapi

import (
	"context"

	"github.com/foxseedlab/golive/internal/config"
	"github.com/foxseedlab/golive/internal/discord"
	"github.com/foxseedlab/golive/internal/repository"
	"github.com/samber/do/v2"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (*Server, error) {
		cfg := do.MustInvoke[*config.Config](i)
		store := do.MustInvoke[repository.Repository](i)
		dc := do.MustInvoke[discord.Client](i)
		checks := map[string]Check{
			"store": store.Ping,
			"discord": func(context.Context) error {
				_, err := dc.GetBotUserID()
				return err
			},
		}
		return NewServer(cfg.MetricsAddr, NewRouter(checks)), nil
	})
}
