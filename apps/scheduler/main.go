package main

import (
	"github.com/IkramBagban/proxlay-sub001/internal/clock"
	"github.com/IkramBagban/proxlay-sub001/internal/config"
	"github.com/IkramBagban/proxlay-sub001/internal/gateway"
	"github.com/IkramBagban/proxlay-sub001/internal/logger"
	"github.com/IkramBagban/proxlay-sub001/internal/migration"
	obsmetrics "github.com/IkramBagban/proxlay-sub001/internal/observability/metrics"
	"github.com/IkramBagban/proxlay-sub001/internal/scheduler"
	"github.com/IkramBagban/proxlay-sub001/internal/subscription"
	"github.com/IkramBagban/proxlay-sub001/pkg/db"
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
)

// Standalone sweep worker. Runs the trial expiry loop without the HTTP
// surface; the redis lock keeps it from overlapping with a sweep embedded in
// an API replica.
func main() {
	app := fx.New(
		config.Module,
		logger.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		migration.Module,
		obsmetrics.Module,

		gateway.Module,
		subscription.Module,
		scheduler.Module,
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
