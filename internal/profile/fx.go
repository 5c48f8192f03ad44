package profile

import (
	"github.com/timehug/timehug/internal/profile/repository"
	"go.uber.org/fx"
)

var Module = fx.Module("profile",
	fx.Provide(repository.New),
)
