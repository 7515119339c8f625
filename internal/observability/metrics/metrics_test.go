package metrics

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/smallbiznis/telbill/pkg/billingerr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRecorder(t *testing.T) *Recorder {
	t.Helper()
	r, err := New(Config{ServiceName: "telbill", Environment: "test"}, prometheus.NewRegistry())
	require.NoError(t, err)
	return r
}

func TestNewFailsOnDuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := New(Config{}, reg)
	require.NoError(t, err)
	_, err = New(Config{}, reg)
	assert.Error(t, err)
}

func TestObserveRunOutcome(t *testing.T) {
	r := newTestRecorder(t)
	r.ObserveRun(time.Second, 3, 0)
	r.ObserveRun(time.Second, 2, 1)
	r.ObserveRun(time.Second, 0, 4)

	assert.Equal(t, 1.0, testutil.ToFloat64(r.runs.WithLabelValues("clean")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.runs.WithLabelValues("partial")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.runs.WithLabelValues("failed")))
}

func TestObserveSubscriptionAndRatingFailures(t *testing.T) {
	r := newTestRecorder(t)
	r.ObserveSubscription("succeeded", "", 10*time.Millisecond)
	r.ObserveSubscription("failed", "not_found", 10*time.Millisecond)
	r.AddRatingFailures(2)
	r.AddRatingFailures(0)

	assert.Equal(t, 1.0, testutil.ToFloat64(r.subscriptions.WithLabelValues("succeeded", "none")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.subscriptions.WithLabelValues("failed", "not_found")))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.ratingFailures))
}

func TestObserveJobClassifiesErrors(t *testing.T) {
	r := newTestRecorder(t)
	r.ObserveJob("billing_cycle", time.Second, nil)
	r.ObserveJob("billing_cycle", time.Second, fmt.Errorf("wrap: %w", context.DeadlineExceeded))

	assert.Equal(t, 2.0, testutil.ToFloat64(r.jobRuns.WithLabelValues("billing_cycle")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.jobErrors.WithLabelValues("billing_cycle", "deadline_exceeded")))
}

func TestClassifyJobError(t *testing.T) {
	assert.Equal(t, "none", ClassifyJobError(nil))
	assert.Equal(t, "canceled", ClassifyJobError(context.Canceled))
	assert.Equal(t, "ledger_error", ClassifyJobError(billingerr.Ledger(errors.New("overpayment"), "")))
	assert.Equal(t, "internal", ClassifyJobError(errors.New("boom")))
}
