package service_test

import (
	"context"
	"testing"

	invoicedomain "github.com/smallbiznis/telbill/internal/invoice/domain"
	reportingdomain "github.com/smallbiznis/telbill/internal/reporting/domain"
	reportingservice "github.com/smallbiznis/telbill/internal/reporting/service"
	"github.com/smallbiznis/telbill/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestRevenueTotalsAndOverdue(t *testing.T) {
	stack := testutil.NewStack(t, testutil.Date(2026, 2, 1))
	ctx := context.Background()
	reports := reportingservice.NewService(reportingservice.Params{DB: stack.DB, Log: zap.NewNop()})

	plan := stack.StandardPlan(t)
	paid := stack.Subscribe(t, plan, stack.Customer(t, "Karnataka"), testutil.Date(2026, 1, 1), false)
	stack.Calls(t, paid, testutil.Date(2026, 1, 10), 6, 100)
	open := stack.Subscribe(t, plan, stack.Customer(t, "Maharashtra"), testutil.Date(2026, 1, 1), false)
	voided := stack.Subscribe(t, plan, stack.Customer(t, "Karnataka"), testutil.Date(2026, 1, 1), false)

	paidInv, err := stack.Invoices.GenerateInvoiceForSubscription(ctx, paid.ID)
	require.NoError(t, err)
	openInv, err := stack.Invoices.GenerateInvoiceForSubscription(ctx, open.ID)
	require.NoError(t, err)
	voidInv, err := stack.Invoices.GenerateInvoiceForSubscription(ctx, voided.ID)
	require.NoError(t, err)

	_, err = stack.Payments.ApplyPayment(ctx, paidInv.Invoice.ID, 41182, "pay_1")
	require.NoError(t, err)
	_, err = stack.Invoices.Void(ctx, invoicedomain.VoidRequest{InvoiceID: voidInv.Invoice.ID, Reason: "test"})
	require.NoError(t, err)

	totals, err := reports.RevenueTotals(ctx, testutil.Date(2026, 2, 1), testutil.Date(2026, 2, 28))
	require.NoError(t, err)
	assert.Equal(t, int64(2), totals.InvoiceCount)
	assert.Equal(t, int64(34900+29900), totals.Subtotal)
	assert.Equal(t, int64(6282+5382), totals.Tax)
	assert.Equal(t, int64(41182+35282), totals.Invoiced)
	assert.Equal(t, int64(41182), totals.Collected)
	assert.Equal(t, int64(35282), totals.Outstanding)

	empty, err := reports.RevenueTotals(ctx, testutil.Date(2026, 3, 1), testutil.Date(2026, 3, 31))
	require.NoError(t, err)
	assert.Equal(t, int64(0), empty.Invoiced)

	_, err = reports.RevenueTotals(ctx, testutil.Date(2026, 3, 1), testutil.Date(2026, 2, 1))
	assert.ErrorIs(t, err, reportingdomain.ErrInvalidRange)

	_, err = stack.Invoices.MarkOverdue(ctx, testutil.Date(2026, 3, 1))
	require.NoError(t, err)
	overdue, err := reports.OverdueInvoices(ctx)
	require.NoError(t, err)
	require.Len(t, overdue, 1)
	assert.Equal(t, openInv.Invoice.ID, overdue[0].ID)
}
