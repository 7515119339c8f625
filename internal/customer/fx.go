package customer

import (
	"github.com/smallbiznis/telbill/internal/customer/service"
	"go.uber.org/fx"
)

var Module = fx.Module("customer.service",
	fx.Provide(service.New),
)
