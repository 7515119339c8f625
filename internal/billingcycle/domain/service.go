package domain

import (
	"context"
	"time"
)

type Service interface {
	// Run bills every subscription due as of now.
	Run(ctx context.Context) (*Report, error)
	RunAsOf(ctx context.Context, asOf time.Time) (*Report, error)
	ListRuns(ctx context.Context, limit int) ([]RunRecord, error)
}

// MetricsRecorder receives orchestrator measurements.
type MetricsRecorder interface {
	ObserveRun(duration time.Duration, succeeded, failed int)
	ObserveSubscription(status, reason string, duration time.Duration)
	AddRatingFailures(n int)
}

type NoopRecorder struct{}

func (NoopRecorder) ObserveRun(time.Duration, int, int) {}

func (NoopRecorder) ObserveSubscription(string, string, time.Duration) {}

func (NoopRecorder) AddRatingFailures(int) {}
