package billingcycle

import (
	billingcycledomain "github.com/smallbiznis/telbill/internal/billingcycle/domain"
	"github.com/smallbiznis/telbill/internal/billingcycle/service"
	"github.com/smallbiznis/telbill/internal/observability/metrics"
	"go.uber.org/fx"
)

var Module = fx.Module("billingcycle.service",
	fx.Provide(func(r *metrics.Recorder) billingcycledomain.MetricsRecorder { return r }),
	fx.Provide(service.NewService),
)
