package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/robfig/cron/v3"
	billingcycledomain "github.com/smallbiznis/telbill/internal/billingcycle/domain"
	"github.com/smallbiznis/telbill/internal/clock"
	invoicedomain "github.com/smallbiznis/telbill/internal/invoice/domain"
	"github.com/smallbiznis/telbill/internal/lock"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	JobBillingCycle = "billing_cycle"
	JobSweepOverdue = "sweep_overdue"

	leaderKeyPrefix = "telbill:scheduler:"
)

var ErrInvalidConfig = errors.New("invalid_scheduler_config")

// JobRecorder receives one observation per job execution.
type JobRecorder interface {
	ObserveJob(job string, duration time.Duration, err error)
}

type noopJobRecorder struct{}

func (noopJobRecorder) ObserveJob(string, time.Duration, error) {}

type Params struct {
	fx.In

	Log          *zap.Logger
	GenID        *snowflake.Node
	Clock        clock.Clock
	Locker       lock.Locker
	BillingCycle billingcycledomain.Service
	Invoices     invoicedomain.Service
	Metrics      JobRecorder `optional:"true"`
	Config       Config      `optional:"true"`
}

type Scheduler struct {
	log          *zap.Logger
	cfg          Config
	genID        *snowflake.Node
	clock        clock.Clock
	locker       lock.Locker
	billingCycle billingcycledomain.Service
	invoices     invoicedomain.Service
	metrics      JobRecorder
	cron         *cron.Cron
}

func New(p Params) (*Scheduler, error) {
	if p.Log == nil || p.GenID == nil || p.Clock == nil || p.Locker == nil || p.BillingCycle == nil || p.Invoices == nil {
		return nil, ErrInvalidConfig
	}
	metrics := p.Metrics
	if metrics == nil {
		metrics = noopJobRecorder{}
	}
	s := &Scheduler{
		log:          p.Log.Named("scheduler").With(zap.String("component", "scheduler")),
		cfg:          p.Config.withDefaults(),
		genID:        p.GenID,
		clock:        p.Clock,
		locker:       p.Locker,
		billingCycle: p.BillingCycle,
		invoices:     p.Invoices,
		metrics:      metrics,
	}

	logger := cronLogger{log: s.log}
	s.cron = cron.New(
		cron.WithLocation(time.UTC),
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)
	if _, err := s.cron.AddFunc(s.cfg.CycleSchedule, s.cronJob(JobBillingCycle, s.BillingCycleJob)); err != nil {
		return nil, fmt.Errorf("%w: cycle schedule %q: %v", ErrInvalidConfig, s.cfg.CycleSchedule, err)
	}
	if _, err := s.cron.AddFunc(s.cfg.OverdueSchedule, s.cronJob(JobSweepOverdue, s.SweepOverdueJob)); err != nil {
		return nil, fmt.Errorf("%w: overdue schedule %q: %v", ErrInvalidConfig, s.cfg.OverdueSchedule, err)
	}
	return s, nil
}

// Start begins firing jobs on their schedules.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info("scheduler started",
		zap.String("cycle_schedule", s.cfg.CycleSchedule),
		zap.String("overdue_schedule", s.cfg.OverdueSchedule),
	)
}

// Stop prevents new runs and waits for running jobs or ctx, whichever ends first.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Scheduler) cronJob(name string, fn func(context.Context) (int, error)) func() {
	return func() {
		if err := s.RunJob(context.Background(), name, fn); err != nil {
			s.log.Warn("scheduler run failed", zap.String("job", name), zap.Error(err))
		}
	}
}

// RunJob executes fn once under the job's leader lock. A replica that
// cannot take the lock skips the run and returns nil.
func (s *Scheduler) RunJob(parent context.Context, name string, fn func(context.Context) (int, error)) error {
	lockCtx, cancelLock := context.WithTimeout(parent, 5*time.Second)
	key := leaderKeyPrefix + name
	token, ok, err := s.locker.TryLock(lockCtx, key, s.cfg.LeaderLockTTL)
	cancelLock()
	if err != nil {
		return fmt.Errorf("%s: leader lock: %w", name, err)
	}
	if !ok {
		s.log.Debug("scheduler.job.skipped", zap.String("job", name), zap.String("reason", "not_leader"))
		return nil
	}
	defer func() {
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(parent), 5*time.Second)
		defer cancel()
		if err := s.locker.Release(releaseCtx, key, token); err != nil {
			s.log.Warn("scheduler leader lock release failed", zap.String("job", name), zap.Error(err))
		}
	}()

	ctx, cancel := context.WithTimeout(parent, s.cfg.JobTimeout)
	defer cancel()

	run := &jobRun{
		job:       name,
		runID:     s.genID.Generate().String(),
		startedAt: s.clock.Now(),
	}
	s.logJobStart(run)
	processed, err := fn(ctx)
	run.processed = processed
	s.metrics.ObserveJob(name, s.clock.Now().Sub(run.startedAt), err)
	s.logJobFinish(run, err)
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		s.log.Warn("job timed out", zap.String("job", name), zap.Duration("timeout", s.cfg.JobTimeout))
		return nil
	}
	return fmt.Errorf("%s: %w", name, err)
}

// BillingCycleJob bills every subscription whose period has ended.
func (s *Scheduler) BillingCycleJob(ctx context.Context) (int, error) {
	report, err := s.billingCycle.Run(ctx)
	if err != nil {
		return 0, err
	}
	if failed := report.Failed(); failed > 0 {
		s.log.Warn("billing cycle completed with failures",
			zap.String("run_id", report.RunID.String()),
			zap.Int("succeeded", report.Succeeded()),
			zap.Int("failed", failed),
		)
	}
	return len(report.Results), nil
}

// SweepOverdueJob flags finalized invoices past their due date.
func (s *Scheduler) SweepOverdueJob(ctx context.Context) (int, error) {
	n, err := s.invoices.MarkOverdue(ctx, s.clock.Now())
	return int(n), err
}
