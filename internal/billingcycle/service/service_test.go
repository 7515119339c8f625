package service_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	billingcycledomain "github.com/smallbiznis/telbill/internal/billingcycle/domain"
	billingcycleservice "github.com/smallbiznis/telbill/internal/billingcycle/service"
	customerdomain "github.com/smallbiznis/telbill/internal/customer/domain"
	invoicedomain "github.com/smallbiznis/telbill/internal/invoice/domain"
	subscriptiondomain "github.com/smallbiznis/telbill/internal/subscription/domain"
	"github.com/smallbiznis/telbill/internal/tax"
	"github.com/smallbiznis/telbill/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recorder struct {
	mu             sync.Mutex
	runs           int
	succeeded      int
	failed         int
	reasons        []string
	ratingFailures int
}

func (r *recorder) ObserveRun(_ time.Duration, succeeded, failed int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs++
	r.succeeded += succeeded
	r.failed += failed
}

func (r *recorder) ObserveSubscription(_ string, reason string, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reasons = append(r.reasons, reason)
}

func (r *recorder) AddRatingFailures(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ratingFailures += n
}

func newOrchestrator(stack *testutil.Stack, rec billingcycledomain.MetricsRecorder) billingcycledomain.Service {
	return billingcycleservice.NewService(billingcycleservice.ServiceParam{
		DB:            stack.DB,
		Log:           zap.NewNop(),
		GenID:         stack.Node,
		Clock:         stack.Clock,
		Config:        stack.Config,
		Subscriptions: stack.Subscriptions,
		Invoices:      stack.Invoices,
		Metrics:       rec,
	})
}

func TestRunBillsDueSubscriptionsAndIsolatesFailures(t *testing.T) {
	stack := testutil.NewStack(t, testutil.Date(2026, 2, 1))
	ctx := context.Background()
	plan := stack.StandardPlan(t)

	good := stack.Subscribe(t, plan, stack.Customer(t, "Karnataka"), testutil.Date(2026, 1, 1), false)
	stack.Calls(t, good, testutil.Date(2026, 1, 10), 6, 100)
	other := stack.Subscribe(t, plan, stack.Customer(t, "Maharashtra"), testutil.Date(2026, 1, 1), false)

	nowhere, err := stack.Customers.Create(ctx, customerdomain.CreateRequest{
		AccountID: 1,
		Name:      "Nowhere Ltd",
		Email:     "ap@nowhere.example",
		Country:   "Atlantis",
	})
	require.NoError(t, err)
	broken := stack.Subscribe(t, plan, nowhere, testutil.Date(2026, 1, 1), false)

	// Anchored on the 20th, so its first period runs to Feb 19.
	stack.Subscribe(t, plan, stack.Customer(t, "Karnataka"), testutil.Date(2026, 1, 20), false)

	rec := &recorder{}
	report, err := newOrchestrator(stack, rec).Run(ctx)
	require.NoError(t, err)

	require.Len(t, report.Results, 3)
	assert.Equal(t, 2, report.Succeeded())
	assert.Equal(t, 1, report.Failed())

	bySub := make(map[string]billingcycledomain.Result)
	for _, res := range report.Results {
		bySub[res.SubscriptionID.String()] = res
	}
	failed := bySub[broken.ID.String()]
	assert.Equal(t, billingcycledomain.ResultFailed, failed.Status)
	assert.Contains(t, failed.Reason, tax.ErrUnknownCountry.Error())
	assert.Nil(t, failed.InvoiceID)

	ok := bySub[good.ID.String()]
	assert.Equal(t, billingcycledomain.ResultSucceeded, ok.Status)
	assert.True(t, ok.Created)
	require.NotNil(t, ok.InvoiceID)
	inv, err := stack.Invoices.Get(ctx, *ok.InvoiceID)
	require.NoError(t, err)
	assert.Equal(t, int64(41182), inv.TotalAmount)

	advanced, err := stack.Subscriptions.Get(ctx, good.ID)
	require.NoError(t, err)
	assert.Equal(t, testutil.Date(2026, 2, 1), advanced.CurrentPeriodStart)
	stuck, err := stack.Subscriptions.Get(ctx, broken.ID)
	require.NoError(t, err)
	assert.Equal(t, testutil.Date(2026, 1, 1), stuck.CurrentPeriodStart)
	_, err = stack.Subscriptions.Get(ctx, other.ID)
	require.NoError(t, err)

	assert.Equal(t, 1, rec.runs)
	assert.Equal(t, 2, rec.succeeded)
	assert.Equal(t, 1, rec.failed)
	assert.Contains(t, rec.reasons, "tax_jurisdiction_error")

	runs, err := newOrchestrator(stack, rec).ListRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, report.RunID, runs[0].ID)
	assert.Equal(t, 2, runs[0].Succeeded)
	assert.Len(t, runs[0].Results.Data(), 3)
}

func TestRunIsRepeatable(t *testing.T) {
	stack := testutil.NewStack(t, testutil.Date(2026, 2, 1))
	ctx := context.Background()
	sub := stack.Subscribe(t, stack.StandardPlan(t), stack.Customer(t, "Karnataka"), testutil.Date(2026, 1, 1), false)
	orchestrator := newOrchestrator(stack, billingcycledomain.NoopRecorder{})

	first, err := orchestrator.Run(ctx)
	require.NoError(t, err)
	require.Len(t, first.Results, 1)

	second, err := orchestrator.Run(ctx)
	require.NoError(t, err)
	assert.Empty(t, second.Results)

	// The next period is due a month later and gets its own invoice.
	stack.Clock.Set(testutil.Date(2026, 3, 1))
	third, err := orchestrator.Run(ctx)
	require.NoError(t, err)
	require.Len(t, third.Results, 1)
	assert.True(t, third.Results[0].Created)

	var count int64
	require.NoError(t, stack.DB.Model(&invoicedomain.Invoice{}).Where("subscription_id = ?", sub.ID).Count(&count).Error)
	assert.Equal(t, int64(2), count)
}

func TestRunRespectsCancellation(t *testing.T) {
	stack := testutil.NewStack(t, testutil.Date(2026, 2, 1))
	plan := stack.StandardPlan(t)
	stack.Subscribe(t, plan, stack.Customer(t, "Karnataka"), testutil.Date(2026, 1, 1), false)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := newOrchestrator(stack, billingcycledomain.NoopRecorder{}).Run(ctx)
	assert.Error(t, err)
}

// slowAdvance holds AdvancePeriod open until the caller's deadline passes.
type slowAdvance struct {
	subscriptiondomain.Service
}

func (s slowAdvance) AdvancePeriod(ctx context.Context, id snowflake.ID, expectedEnd time.Time) (*subscriptiondomain.Subscription, error) {
	sub, err := s.Service.AdvancePeriod(ctx, id, expectedEnd)
	if err != nil {
		return nil, err
	}
	<-ctx.Done()
	return sub, nil
}

func TestDeadlineAfterAdvanceStillSucceeds(t *testing.T) {
	stack := testutil.NewStack(t, testutil.Date(2026, 2, 1))
	ctx := context.Background()
	sub := stack.Subscribe(t, stack.StandardPlan(t), stack.Customer(t, "Karnataka"), testutil.Date(2026, 1, 1), false)

	cfg := stack.Config
	cfg.Billing.SubscriptionTimeout = 200 * time.Millisecond
	orchestrator := billingcycleservice.NewService(billingcycleservice.ServiceParam{
		DB:            stack.DB,
		Log:           zap.NewNop(),
		GenID:         stack.Node,
		Clock:         stack.Clock,
		Config:        cfg,
		Subscriptions: slowAdvance{Service: stack.Subscriptions},
		Invoices:      stack.Invoices,
	})

	report, err := orchestrator.Run(ctx)
	require.NoError(t, err)
	require.Len(t, report.Results, 1)
	assert.Equal(t, billingcycledomain.ResultSucceeded, report.Results[0].Status)
	assert.Empty(t, report.Results[0].Reason)
	require.NotNil(t, report.Results[0].InvoiceID)

	advanced, err := stack.Subscriptions.Get(ctx, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, testutil.Date(2026, 2, 1), advanced.CurrentPeriodStart)
}
