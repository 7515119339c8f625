package calltype

import "go.uber.org/fx"

var Module = fx.Module("calltype",
	fx.Provide(NewFromHolder),
)
