package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/timehug/timehug/internal/clock"
	"github.com/timehug/timehug/internal/config"
	"github.com/timehug/timehug/internal/migration"
	"github.com/timehug/timehug/internal/observability"
	"github.com/timehug/timehug/internal/server"
	"github.com/timehug/timehug/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,

		migration.Module,
		server.Module,
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
