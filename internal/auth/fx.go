package auth

import (
	"github.com/timehug/timehug/internal/auth/repository"
	"github.com/timehug/timehug/internal/auth/service"
	"go.uber.org/fx"
)

var Module = fx.Module("auth",
	fx.Provide(repository.New),
	fx.Provide(service.New),
)
