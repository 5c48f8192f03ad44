package template

import (
	"github.com/timehug/timehug/internal/template/repository"
	"github.com/timehug/timehug/internal/template/service"
	"go.uber.org/fx"
)

var Module = fx.Module("template",
	fx.Provide(repository.New),
	fx.Provide(service.New),
)
