package scheduler

import (
	"context"

	"github.com/smallbiznis/telbill/internal/observability/metrics"
	"go.uber.org/fx"
)

var Module = fx.Module("scheduler",
	fx.Provide(ProvideConfig),
	fx.Provide(func(r *metrics.Recorder) JobRecorder { return r }),
	fx.Provide(New),
	fx.Invoke(RegisterLifecycle),
)

func RegisterLifecycle(lc fx.Lifecycle, sched *Scheduler) {
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			sched.Start()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return sched.Stop(ctx)
		},
	})
}
