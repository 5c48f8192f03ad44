package generation

import (
	"github.com/timehug/timehug/internal/generation/repository"
	"github.com/timehug/timehug/internal/generation/service"
	"go.uber.org/fx"
)

var Module = fx.Module("generation",
	fx.Provide(repository.New),
	fx.Provide(service.NewService),
)
