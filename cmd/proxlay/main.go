package main

import (
	"github.com/IkramBagban/proxlay-sub001/internal/clock"
	"github.com/IkramBagban/proxlay-sub001/internal/config"
	"github.com/IkramBagban/proxlay-sub001/internal/gateway"
	"github.com/IkramBagban/proxlay-sub001/internal/logger"
	"github.com/IkramBagban/proxlay-sub001/internal/migration"
	obsmetrics "github.com/IkramBagban/proxlay-sub001/internal/observability/metrics"
	"github.com/IkramBagban/proxlay-sub001/internal/payment"
	"github.com/IkramBagban/proxlay-sub001/internal/plan"
	"github.com/IkramBagban/proxlay-sub001/internal/scheduler"
	"github.com/IkramBagban/proxlay-sub001/internal/server"
	"github.com/IkramBagban/proxlay-sub001/internal/subscription"
	"github.com/IkramBagban/proxlay-sub001/internal/workspace"
	"github.com/IkramBagban/proxlay-sub001/pkg/db"
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		// Core infrastructure
		config.Module,
		logger.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		migration.Module,
		obsmetrics.Module,

		// Functional domains
		gateway.Module,
		subscription.Module,
		payment.Module,
		plan.Module,
		workspace.Module,
		scheduler.Module,

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
