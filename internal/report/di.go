package report

import (
	"github.com/foxseedlab/golive/internal/repository"
	"github.com/samber/do/v2"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (*Builder, error) {
		return NewBuilder(do.MustInvoke[repository.ActivityRepository](i)), nil
	})
}
