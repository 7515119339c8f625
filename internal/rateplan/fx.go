package rateplan

import (
	"github.com/smallbiznis/telbill/internal/rateplan/repository"
	"github.com/smallbiznis/telbill/internal/rateplan/service"
	"go.uber.org/fx"
)

var Module = fx.Module("rateplan.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
