package generator

import (
	"github.com/timehug/timehug/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("generator",
	fx.Provide(New),
)

// New selects the backend configured by GENERATOR_DRIVER.
func New(log *zap.Logger, cfg config.Config) Generator {
	if cfg.Generator.Driver == config.GeneratorDriverOpenAI && cfg.Generator.OpenAIAPIKey != "" {
		return NewOpenAI(log, cfg.Generator.OpenAIAPIKey, cfg.Generator.OpenAIModel)
	}
	return NewPlaceholder(log)
}
