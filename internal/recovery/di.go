package recovery

import (
	"github.com/foxseedlab/golive/internal/config"
	"github.com/foxseedlab/golive/internal/repository"
	"github.com/foxseedlab/golive/internal/tracker"
	"github.com/samber/do/v2"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (*Reconciler, error) {
		cfg := do.MustInvoke[*config.Config](i)
		repo := do.MustInvoke[repository.ActivityRepository](i)
		tr := do.MustInvoke[*tracker.Tracker](i)
		notifier := do.MustInvoke[tracker.Notifier](i)
		return NewReconciler(repo, tr, notifier, cfg.RecoveryLookupTimeout, cfg.RecoveryConcurrency), nil
	})
}
