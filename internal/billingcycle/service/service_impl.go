package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/bwmarrin/snowflake"
	billingcycledomain "github.com/smallbiznis/telbill/internal/billingcycle/domain"
	"github.com/smallbiznis/telbill/internal/clock"
	"github.com/smallbiznis/telbill/internal/config"
	invoicedomain "github.com/smallbiznis/telbill/internal/invoice/domain"
	subscriptiondomain "github.com/smallbiznis/telbill/internal/subscription/domain"
	"github.com/smallbiznis/telbill/pkg/billingerr"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const dueBatchSize = 500

type ServiceParam struct {
	fx.In

	DB             *gorm.DB
	Log            *zap.Logger
	GenID          *snowflake.Node
	Clock          clock.Clock
	Config         config.Config
	Subscriptions  subscriptiondomain.Service
	Invoices       invoicedomain.Service
	Metrics        billingcycledomain.MetricsRecorder `optional:"true"`
	TracerProvider trace.TracerProvider               `optional:"true"`
}

type Service struct {
	db     *gorm.DB
	log    *zap.Logger
	genID  *snowflake.Node
	clock  clock.Clock
	tracer trace.Tracer

	subscriptions subscriptiondomain.Service
	invoices      invoicedomain.Service
	metrics       billingcycledomain.MetricsRecorder

	concurrency int
	timeout     time.Duration
}

func NewService(p ServiceParam) billingcycledomain.Service {
	metrics := p.Metrics
	if metrics == nil {
		metrics = billingcycledomain.NoopRecorder{}
	}
	tp := p.TracerProvider
	if tp == nil {
		tp = noop.NewTracerProvider()
	}
	concurrency := p.Config.Billing.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Service{
		db:     p.DB,
		log:    p.Log.Named("billingcycle.service"),
		genID:  p.GenID,
		clock:  p.Clock,
		tracer: tp.Tracer("github.com/smallbiznis/telbill/internal/billingcycle"),

		subscriptions: p.Subscriptions,
		invoices:      p.Invoices,
		metrics:       metrics,

		concurrency: concurrency,
		timeout:     p.Config.Billing.SubscriptionTimeout,
	}
}

func (s *Service) Run(ctx context.Context) (*billingcycledomain.Report, error) {
	return s.RunAsOf(ctx, s.clock.Now())
}

func (s *Service) RunAsOf(ctx context.Context, asOf time.Time) (*billingcycledomain.Report, error) {
	report := &billingcycledomain.Report{
		RunID:     s.genID.Generate(),
		AsOf:      asOf,
		StartedAt: s.clock.Now(),
	}
	ctx, span := s.tracer.Start(ctx, "billingcycle.run", trace.WithAttributes(
		attribute.String("run_id", report.RunID.String()),
	))
	defer span.End()

	due, err := s.subscriptions.ListDue(ctx, asOf, dueBatchSize)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "list due subscriptions")
		return nil, err
	}
	s.log.Info("billing run started",
		zap.String("run_id", report.RunID.String()),
		zap.Int("due", len(due)),
	)

	results := make([]billingcycledomain.Result, len(due))
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, sub := range due {
		g.Go(func() error {
			res := s.bill(gctx, sub)
			mu.Lock()
			results[i] = res
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	report.Results = results
	report.FinishedAt = s.clock.Now()
	elapsed := report.FinishedAt.Sub(report.StartedAt)
	s.metrics.ObserveRun(elapsed, report.Succeeded(), report.Failed())
	span.SetAttributes(
		attribute.Int("succeeded", report.Succeeded()),
		attribute.Int("failed", report.Failed()),
	)

	if err := s.saveRun(ctx, report); err != nil {
		s.log.Warn("failed to persist billing run", zap.String("run_id", report.RunID.String()), zap.Error(err))
	}
	s.log.Info("billing run finished",
		zap.String("run_id", report.RunID.String()),
		zap.Int("succeeded", report.Succeeded()),
		zap.Int("failed", report.Failed()),
		zap.Duration("duration", elapsed),
	)
	return report, nil
}

// bill generates the period invoice and advances the subscription. Errors are
// reported in the result, never returned.
func (s *Service) bill(ctx context.Context, sub subscriptiondomain.Subscription) billingcycledomain.Result {
	started := time.Now()
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	ctx, span := s.tracer.Start(ctx, "billingcycle.subscription", trace.WithAttributes(
		attribute.String("subscription_id", sub.ID.String()),
	))
	defer span.End()

	result := billingcycledomain.Result{
		SubscriptionID: sub.ID,
		Status:         billingcycledomain.ResultSucceeded,
	}
	err := s.billSubscription(ctx, sub, &result)
	if err != nil {
		result.Status = billingcycledomain.ResultFailed
		result.Reason = err.Error()
		span.RecordError(err)
		span.SetStatus(codes.Error, billingerr.KindOf(err))
		s.log.Warn("subscription billing failed",
			zap.String("subscription_id", sub.ID.String()),
			zap.String("kind", billingerr.KindOf(err)),
			zap.Error(err),
		)
	}

	elapsed := time.Since(started)
	result.DurationMs = elapsed.Milliseconds()
	s.metrics.ObserveSubscription(string(result.Status), reasonLabel(err), elapsed)
	if result.RatingFailures > 0 {
		s.metrics.AddRatingFailures(result.RatingFailures)
	}
	return result
}

func (s *Service) billSubscription(ctx context.Context, sub subscriptiondomain.Subscription, result *billingcycledomain.Result) error {
	gen, err := s.invoices.GenerateInvoiceForSubscription(ctx, sub.ID)
	if err != nil {
		return err
	}
	id := gen.Invoice.ID
	result.InvoiceID = &id
	result.Created = gen.Created
	result.RatingFailures = len(gen.RatingFailures)

	// Both writes are committed once the period advances; a deadline hit
	// afterwards does not fail the subscription.
	if _, err := s.subscriptions.AdvancePeriod(ctx, sub.ID, sub.CurrentPeriodEnd); err != nil {
		return err
	}
	return nil
}

func reasonLabel(err error) string {
	switch {
	case err == nil:
		return "none"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return billingerr.KindOf(err)
	}
}

func (s *Service) saveRun(ctx context.Context, report *billingcycledomain.Report) error {
	record := billingcycledomain.RunRecord{
		ID:         report.RunID,
		AsOf:       report.AsOf,
		StartedAt:  report.StartedAt,
		FinishedAt: report.FinishedAt,
		Succeeded:  report.Succeeded(),
		Failed:     report.Failed(),
		Results:    datatypes.NewJSONType(report.Results),
		CreatedAt:  s.clock.Now(),
	}
	return s.db.WithContext(context.WithoutCancel(ctx)).Create(&record).Error
}

func (s *Service) ListRuns(ctx context.Context, limit int) ([]billingcycledomain.RunRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	var runs []billingcycledomain.RunRecord
	err := s.db.WithContext(ctx).Order("started_at DESC").Limit(limit).Find(&runs).Error
	return runs, err
}
