package tax

import "go.uber.org/fx"

var Module = fx.Module("tax.service",
	fx.Provide(NewFromHolder),
)
