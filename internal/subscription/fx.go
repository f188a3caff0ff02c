package subscription

import (
	"github.com/IkramBagban/proxlay-sub001/internal/subscription/repository"
	"github.com/IkramBagban/proxlay-sub001/internal/subscription/service"
	"go.uber.org/fx"
)

var Module = fx.Module("subscription.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
