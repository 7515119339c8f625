package cdr

import (
	"github.com/smallbiznis/telbill/internal/cdr/service"
	"go.uber.org/fx"
)

var Module = fx.Module("cdr.service",
	fx.Provide(service.New),
)
