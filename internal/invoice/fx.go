package invoice

import (
	"github.com/smallbiznis/telbill/internal/invoice/service"
	"github.com/smallbiznis/telbill/internal/tax"
	"go.uber.org/fx"
)

var Module = fx.Module("invoice.service",
	tax.Module,
	fx.Provide(service.NewService),
)
