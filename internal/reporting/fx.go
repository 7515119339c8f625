package reporting

import (
	"github.com/smallbiznis/telbill/internal/reporting/service"
	"go.uber.org/fx"
)

var Module = fx.Module("reporting.service",
	fx.Provide(service.NewService),
)
