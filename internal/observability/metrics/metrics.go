package metrics

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/smallbiznis/telbill/pkg/billingerr"
)

type Config struct {
	ServiceName string
	Environment string
}

// Recorder is the Prometheus-backed recorder for billing runs and scheduled jobs.
type Recorder struct {
	runs               *prometheus.CounterVec
	runDuration        prometheus.Histogram
	subscriptions      *prometheus.CounterVec
	subscriptionTiming *prometheus.HistogramVec
	ratingFailures     prometheus.Counter
	jobRuns            *prometheus.CounterVec
	jobDuration        *prometheus.HistogramVec
	jobErrors          *prometheus.CounterVec
}

func New(cfg Config, registerer prometheus.Registerer) (*Recorder, error) {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	serviceName := strings.TrimSpace(cfg.ServiceName)
	if serviceName == "" {
		serviceName = "telbill"
	}
	environment := strings.TrimSpace(cfg.Environment)
	if environment == "" {
		environment = "unknown"
	}
	constLabels := prometheus.Labels{"service": serviceName, "env": environment}

	r := &Recorder{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "telbill_billing_runs_total",
			Help:        "Billing cycle runs by outcome.",
			ConstLabels: constLabels,
		}, []string{"outcome"}),
		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:        "telbill_billing_run_duration_seconds",
			Help:        "Wall time of a billing cycle run.",
			Buckets:     []float64{0.1, 0.5, 1, 5, 10, 30, 60, 300, 900, 1800},
			ConstLabels: constLabels,
		}),
		subscriptions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "telbill_billing_subscriptions_total",
			Help:        "Subscriptions processed by a billing run, by status and error kind.",
			ConstLabels: constLabels,
		}, []string{"status", "reason"}),
		subscriptionTiming: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:        "telbill_billing_subscription_duration_seconds",
			Help:        "Invoice generation latency per subscription.",
			Buckets:     []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
			ConstLabels: constLabels,
		}, []string{"status"}),
		ratingFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "telbill_rating_failures_total",
			Help:        "CDRs that could not be rated.",
			ConstLabels: constLabels,
		}),
		jobRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "telbill_scheduler_job_runs_total",
			Help:        "Scheduler job runs by name.",
			ConstLabels: constLabels,
		}, []string{"job"}),
		jobDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:        "telbill_scheduler_job_duration_seconds",
			Help:        "Scheduler job latency.",
			Buckets:     []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 300, 1800},
			ConstLabels: constLabels,
		}, []string{"job"}),
		jobErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "telbill_scheduler_job_errors_total",
			Help:        "Scheduler job errors by low-cardinality reason.",
			ConstLabels: constLabels,
		}, []string{"job", "reason"}),
	}

	for _, c := range []prometheus.Collector{
		r.runs, r.runDuration, r.subscriptions, r.subscriptionTiming,
		r.ratingFailures, r.jobRuns, r.jobDuration, r.jobErrors,
	} {
		if err := registerer.Register(c); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// ObserveRun records a finished billing cycle run.
func (r *Recorder) ObserveRun(duration time.Duration, succeeded, failed int) {
	outcome := "clean"
	if failed > 0 {
		outcome = "partial"
	}
	if succeeded == 0 && failed > 0 {
		outcome = "failed"
	}
	r.runs.WithLabelValues(outcome).Inc()
	r.runDuration.Observe(duration.Seconds())
}

// ObserveSubscription records one subscription outcome. reason must be low-cardinality.
func (r *Recorder) ObserveSubscription(status, reason string, duration time.Duration) {
	if reason == "" {
		reason = "none"
	}
	r.subscriptions.WithLabelValues(status, reason).Inc()
	r.subscriptionTiming.WithLabelValues(status).Observe(duration.Seconds())
}

func (r *Recorder) AddRatingFailures(n int) {
	if n > 0 {
		r.ratingFailures.Add(float64(n))
	}
}

// ObserveJob records a scheduler job execution.
func (r *Recorder) ObserveJob(job string, duration time.Duration, err error) {
	r.jobRuns.WithLabelValues(job).Inc()
	r.jobDuration.WithLabelValues(job).Observe(duration.Seconds())
	if err != nil {
		r.jobErrors.WithLabelValues(job, ClassifyJobError(err)).Inc()
	}
}

// ClassifyJobError maps an error to a bounded label value.
func ClassifyJobError(err error) string {
	switch {
	case err == nil:
		return "none"
	case errors.Is(err, context.DeadlineExceeded):
		return "deadline_exceeded"
	case errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return billingerr.KindOf(err)
	}
}
