package domain

import (
	"time"

	"github.com/smallbiznis/telbill/internal/config"
	"github.com/smallbiznis/telbill/internal/proration"
	"github.com/smallbiznis/telbill/internal/tax"
)

// Builder computes the shared invoice base from a variant's lines: subtotal,
// one tax computation on the whole subtotal, total and due date.
type Builder struct {
	tax     *tax.Engine
	billing func() config.BillingConfig
}

func NewBuilder(engine *tax.Engine, billing func() config.BillingConfig) *Builder {
	return &Builder{tax: engine, billing: billing}
}

// Build returns a finalized, unsaved invoice. IDs and the invoice number are
// assigned by the caller.
func (b *Builder) Build(gen LineGenerator, in BuildInput, now time.Time) (*Invoice, error) {
	items, err := gen.Lines(in)
	if err != nil {
		return nil, err
	}

	var subtotal int64
	for i := range items {
		items[i].Position = i + 1
		subtotal += items[i].Amount
	}

	cfg := b.billing()
	result, err := b.tax.Compute(subtotal, in.Customer.State, cfg.Company.State, in.Customer.Country)
	if err != nil {
		return nil, err
	}

	var taxLines []InvoiceTaxLine
	for _, line := range result.Lines() {
		taxLines = append(taxLines, InvoiceTaxLine{
			Code:    line.Code,
			Name:    line.Name,
			RateBps: line.RateBps,
			Amount:  line.Amount,
		})
	}

	currency := in.Plan.Currency
	if currency == "" {
		currency = cfg.Currency
	}
	issue := proration.Date(now)
	total := subtotal + result.TaxAmount

	inv := &Invoice{
		CustomerID:    in.Customer.ID,
		RatePlanID:    in.Plan.ID,
		InvoiceType:   gen.Type(),
		Status:        DeriveStatus(total, 0, false),
		Currency:      currency,
		PeriodStart:   in.Period.Start,
		PeriodEnd:     in.Period.End,
		Subtotal:      subtotal,
		TaxAmount:     result.TaxAmount,
		TotalAmount:   total,
		BalanceAmount: total,
		TaxRegime:     string(result.Regime),
		IssueDate:     issue,
		DueDate:       issue.AddDate(0, 0, cfg.PaymentTermDays),
		Items:         items,
		TaxLines:      taxLines,
	}
	if in.Subscription != nil {
		inv.AccountID = in.Subscription.AccountID
		if !in.Subscription.Postpaid && gen.Type() != InvoiceTypePostpaid {
			id := in.Subscription.ID
			inv.SubscriptionID = &id
		}
	} else {
		inv.AccountID = in.Customer.AccountID
	}
	if inv.Status == InvoiceStatusPaid {
		paidAt := now
		inv.PaidAt = &paidAt
	}
	return inv, nil
}

// DeriveStatus maps amounts to the payment-driven status. pastDue selects
// overdue for an open balance.
func DeriveStatus(total, paid int64, pastDue bool) InvoiceStatus {
	switch {
	case paid >= total:
		return InvoiceStatusPaid
	case pastDue:
		return InvoiceStatusOverdue
	case paid > 0:
		return InvoiceStatusPartiallyPaid
	default:
		return InvoiceStatusFinalized
	}
}
