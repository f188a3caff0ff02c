package payment

import (
	"github.com/IkramBagban/proxlay-sub001/internal/payment/service"
	"github.com/IkramBagban/proxlay-sub001/internal/payment/webhook"
	"go.uber.org/fx"
)

var Module = fx.Module("payment",
	fx.Provide(service.NewService),
	fx.Provide(webhook.NewService),
)
