package tracker

import (
	"github.com/foxseedlab/golive/internal/repository"
	"github.com/samber/do/v2"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (*Tracker, error) {
		repo := do.MustInvoke[repository.ActivityRepository](i)
		notifier := do.MustInvoke[Notifier](i)
		return NewTracker(repo, notifier), nil
	})
}
