package service_test

import (
	"context"
	"testing"

	"github.com/smallbiznis/telbill/internal/proration"
	subscriptiondomain "github.com/smallbiznis/telbill/internal/subscription/domain"
	"github.com/smallbiznis/telbill/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateAlignsPeriodOnAnchor(t *testing.T) {
	stack := testutil.NewStack(t, testutil.Date(2026, 1, 15))
	ctx := context.Background()
	plan := stack.StandardPlan(t)
	customer := stack.Customer(t, "Karnataka")

	sub, err := stack.Subscriptions.Create(ctx, subscriptiondomain.CreateRequest{
		CustomerID:   customer.ID,
		AccountID:    customer.AccountID,
		RatePlanID:   plan.ID,
		BillingCycle: proration.Monthly,
		StartDate:    testutil.Date(2026, 1, 15),
		AnchorDay:    1,
	})
	require.NoError(t, err)
	assert.Equal(t, testutil.Date(2026, 1, 1), sub.CurrentPeriodStart)
	assert.Equal(t, testutil.Date(2026, 1, 31), sub.CurrentPeriodEnd)

	start, end := sub.ChargeRange()
	assert.Equal(t, testutil.Date(2026, 1, 15), start)
	assert.Equal(t, testutil.Date(2026, 1, 31), end)
}

func TestCreateRejectsInactivePlan(t *testing.T) {
	stack := testutil.NewStack(t, testutil.Date(2026, 1, 1))
	ctx := context.Background()
	plan := stack.StandardPlan(t)
	_, err := stack.Plans.Deactivate(ctx, plan.ID)
	require.NoError(t, err)

	customer := stack.Customer(t, "Karnataka")
	_, err = stack.Subscriptions.Create(ctx, subscriptiondomain.CreateRequest{
		CustomerID:   customer.ID,
		AccountID:    customer.AccountID,
		RatePlanID:   plan.ID,
		BillingCycle: proration.Monthly,
		StartDate:    testutil.Date(2026, 1, 1),
	})
	assert.ErrorIs(t, err, subscriptiondomain.ErrSubscriptionInactive)
}

func TestListDueAndAdvancePeriod(t *testing.T) {
	stack := testutil.NewStack(t, testutil.Date(2026, 1, 1))
	ctx := context.Background()
	sub := stack.Subscribe(t, stack.StandardPlan(t), stack.Customer(t, "Karnataka"), testutil.Date(2026, 1, 1), false)

	due, err := stack.Subscriptions.ListDue(ctx, testutil.Date(2026, 1, 31), 10)
	require.NoError(t, err)
	assert.Empty(t, due)

	due, err = stack.Subscriptions.ListDue(ctx, testutil.Date(2026, 2, 1), 10)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, sub.ID, due[0].ID)

	advanced, err := stack.Subscriptions.AdvancePeriod(ctx, sub.ID, sub.CurrentPeriodEnd)
	require.NoError(t, err)
	assert.Equal(t, testutil.Date(2026, 2, 1), advanced.CurrentPeriodStart)
	assert.Equal(t, testutil.Date(2026, 2, 28), advanced.CurrentPeriodEnd)

	// A second call with the stale end is a no-op.
	again, err := stack.Subscriptions.AdvancePeriod(ctx, sub.ID, sub.CurrentPeriodEnd)
	require.NoError(t, err)
	assert.Equal(t, testutil.Date(2026, 2, 28), again.CurrentPeriodEnd)
}

func TestScheduledEndCancelsWhenPeriodCloses(t *testing.T) {
	stack := testutil.NewStack(t, testutil.Date(2026, 1, 1))
	ctx := context.Background()
	sub := stack.Subscribe(t, stack.StandardPlan(t), stack.Customer(t, "Karnataka"), testutil.Date(2026, 1, 1), false)

	_, err := stack.Subscriptions.ScheduleEnd(ctx, sub.ID, testutil.Date(2026, 1, 20))
	require.NoError(t, err)

	advanced, err := stack.Subscriptions.AdvancePeriod(ctx, sub.ID, sub.CurrentPeriodEnd)
	require.NoError(t, err)
	assert.Equal(t, subscriptiondomain.SubscriptionStatusCancelled, advanced.Status)
	assert.NotNil(t, advanced.CancelledAt)
}

func TestTransition(t *testing.T) {
	stack := testutil.NewStack(t, testutil.Date(2026, 1, 1))
	ctx := context.Background()
	sub := stack.Subscribe(t, stack.StandardPlan(t), stack.Customer(t, "Karnataka"), testutil.Date(2026, 1, 1), false)

	suspended, err := stack.Subscriptions.Transition(ctx, sub.ID, subscriptiondomain.SubscriptionStatusSuspended)
	require.NoError(t, err)
	assert.Equal(t, subscriptiondomain.SubscriptionStatusSuspended, suspended.Status)

	_, err = stack.Subscriptions.Transition(ctx, sub.ID, subscriptiondomain.SubscriptionStatusCancelled)
	require.NoError(t, err)

	_, err = stack.Subscriptions.Transition(ctx, sub.ID, subscriptiondomain.SubscriptionStatusActive)
	assert.ErrorIs(t, err, subscriptiondomain.ErrInvalidTransition)
}

func TestAddons(t *testing.T) {
	stack := testutil.NewStack(t, testutil.Date(2026, 1, 1))
	ctx := context.Background()
	sub := stack.Subscribe(t, stack.StandardPlan(t), stack.Customer(t, "Karnataka"), testutil.Date(2026, 1, 1), false)

	addon, err := stack.Subscriptions.AddAddon(ctx, subscriptiondomain.AddAddonRequest{
		SubscriptionID: sub.ID,
		Code:           "did",
		Description:    "Extra DID number",
		Quantity:       2,
		UnitPrice:      5000,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(10000), addon.Amount())

	addons, err := stack.Subscriptions.ListAddons(ctx, sub.ID)
	require.NoError(t, err)
	require.Len(t, addons, 1)

	_, err = stack.Subscriptions.AddAddon(ctx, subscriptiondomain.AddAddonRequest{SubscriptionID: sub.ID})
	assert.Error(t, err)
}
