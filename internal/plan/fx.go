package plan

import (
	"github.com/IkramBagban/proxlay-sub001/internal/plan/repository"
	"github.com/IkramBagban/proxlay-sub001/internal/plan/service"
	"go.uber.org/fx"
)

var Module = fx.Module("plan",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
