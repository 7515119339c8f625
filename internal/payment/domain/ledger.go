package domain

import (
	"time"

	invoicedomain "github.com/smallbiznis/telbill/internal/invoice/domain"
	"github.com/smallbiznis/telbill/pkg/billingerr"
)

// ApplyPayment adds amount to the invoice's paid amount. The amount may not
// exceed the open balance.
func ApplyPayment(inv *invoicedomain.Invoice, amount int64, now time.Time) error {
	if err := checkApplicable(inv, amount); err != nil {
		return err
	}
	if amount > inv.BalanceAmount {
		return billingerr.Ledger(ErrOverpayment, "payment %d exceeds balance %d", amount, inv.BalanceAmount)
	}

	inv.PaidAmount += amount
	inv.BalanceAmount = inv.TotalAmount - inv.PaidAmount
	inv.Status = DeriveStatus(inv)
	if inv.Status == invoicedomain.InvoiceStatusPaid {
		paidAt := now
		inv.PaidAt = &paidAt
	}
	return nil
}

// ApplyRefund returns amount of the paid amount to the customer. A reopened
// balance past its due date stays partially paid until the overdue sweep.
func ApplyRefund(inv *invoicedomain.Invoice, amount int64) error {
	if err := checkApplicable(inv, amount); err != nil {
		return err
	}
	if amount > inv.PaidAmount {
		return billingerr.Ledger(ErrRefundExceedsPaid, "refund %d exceeds paid %d", amount, inv.PaidAmount)
	}

	inv.PaidAmount -= amount
	inv.BalanceAmount = inv.TotalAmount - inv.PaidAmount
	inv.Status = DeriveStatus(inv)
	if inv.Status != invoicedomain.InvoiceStatusPaid {
		inv.PaidAt = nil
	}
	return nil
}

// DeriveStatus computes the payment-driven status of a non-void invoice:
// finalized, partially paid or paid. Payments clear overdue.
func DeriveStatus(inv *invoicedomain.Invoice) invoicedomain.InvoiceStatus {
	return invoicedomain.DeriveStatus(inv.TotalAmount, inv.PaidAmount, false)
}

func checkApplicable(inv *invoicedomain.Invoice, amount int64) error {
	if inv.Status == invoicedomain.InvoiceStatusVoid {
		return billingerr.Ledger(ErrInvoiceVoid, "invoice %s", inv.ID)
	}
	if inv.Status == invoicedomain.InvoiceStatusDraft {
		return billingerr.Ledger(ErrInvoiceNotFinalized, "invoice %s", inv.ID)
	}
	if amount <= 0 {
		return billingerr.Ledger(ErrNonPositiveAmount, "amount %d", amount)
	}
	return nil
}
