package domain_test

import (
	"testing"
	"time"

	invoicedomain "github.com/smallbiznis/telbill/internal/invoice/domain"
	paymentdomain "github.com/smallbiznis/telbill/internal/payment/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openInvoice(total int64, due time.Time) *invoicedomain.Invoice {
	return &invoicedomain.Invoice{
		Status:        invoicedomain.InvoiceStatusFinalized,
		TotalAmount:   total,
		BalanceAmount: total,
		DueDate:       due,
	}
}

func TestApplyPaymentTransitions(t *testing.T) {
	now := time.Date(2026, 2, 5, 10, 0, 0, 0, time.UTC)
	inv := openInvoice(1000, time.Date(2026, 2, 16, 0, 0, 0, 0, time.UTC))

	require.NoError(t, paymentdomain.ApplyPayment(inv, 400, now))
	assert.Equal(t, invoicedomain.InvoiceStatusPartiallyPaid, inv.Status)
	assert.Equal(t, int64(600), inv.BalanceAmount)

	require.NoError(t, paymentdomain.ApplyPayment(inv, 600, now))
	assert.Equal(t, invoicedomain.InvoiceStatusPaid, inv.Status)
	require.NotNil(t, inv.PaidAt)
	assert.Equal(t, now, *inv.PaidAt)

	assert.ErrorIs(t, paymentdomain.ApplyPayment(inv, 1, now), paymentdomain.ErrOverpayment)
}

func TestApplyRejectsInvalidInput(t *testing.T) {
	now := time.Now()
	inv := openInvoice(1000, now)

	assert.ErrorIs(t, paymentdomain.ApplyPayment(inv, 0, now), paymentdomain.ErrNonPositiveAmount)
	assert.ErrorIs(t, paymentdomain.ApplyRefund(inv, 1), paymentdomain.ErrRefundExceedsPaid)

	inv.Status = invoicedomain.InvoiceStatusVoid
	assert.ErrorIs(t, paymentdomain.ApplyPayment(inv, 10, now), paymentdomain.ErrInvoiceVoid)

	inv.Status = invoicedomain.InvoiceStatusDraft
	assert.ErrorIs(t, paymentdomain.ApplyPayment(inv, 10, now), paymentdomain.ErrInvoiceNotFinalized)
}

func TestRefundStatus(t *testing.T) {
	due := time.Date(2026, 2, 16, 0, 0, 0, 0, time.UTC)
	cases := []struct {
		name   string
		refund int64
		now    time.Time
		want   invoicedomain.InvoiceStatus
	}{
		{"full before due", 1000, time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC), invoicedomain.InvoiceStatusFinalized},
		{"partial before due", 300, time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC), invoicedomain.InvoiceStatusPartiallyPaid},
		{"on due date", 300, due.Add(20 * time.Hour), invoicedomain.InvoiceStatusPartiallyPaid},
		{"after due stays partially paid", 300, time.Date(2026, 2, 17, 0, 0, 0, 0, time.UTC), invoicedomain.InvoiceStatusPartiallyPaid},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			inv := openInvoice(1000, due)
			require.NoError(t, paymentdomain.ApplyPayment(inv, 1000, tc.now))
			require.NoError(t, paymentdomain.ApplyRefund(inv, tc.refund))
			assert.Equal(t, tc.want, inv.Status)
			assert.Equal(t, tc.refund, inv.BalanceAmount)
		})
	}
}

func TestPaymentClearsOverdue(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	inv := openInvoice(1000, time.Date(2026, 2, 16, 0, 0, 0, 0, time.UTC))
	inv.Status = invoicedomain.InvoiceStatusOverdue

	require.NoError(t, paymentdomain.ApplyPayment(inv, 200, now))
	assert.Equal(t, invoicedomain.InvoiceStatusPartiallyPaid, inv.Status)
}
