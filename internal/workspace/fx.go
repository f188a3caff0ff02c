package workspace

import (
	"github.com/IkramBagban/proxlay-sub001/internal/workspace/repository"
	"github.com/IkramBagban/proxlay-sub001/internal/workspace/service"
	"go.uber.org/fx"
)

var Module = fx.Module("workspace",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
