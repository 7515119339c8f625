package domain

import (
	"context"
	"errors"
	"time"

	invoicedomain "github.com/smallbiznis/telbill/internal/invoice/domain"
)

var ErrInvalidRange = errors.New("invalid_report_range")

// Service answers read-only questions over stored invoices.
type Service interface {
	OverdueInvoices(ctx context.Context) ([]invoicedomain.Invoice, error)
	// RevenueTotals sums non-void invoices issued on a date in [from, to].
	RevenueTotals(ctx context.Context, from, to time.Time) (RevenueTotals, error)
}

type RevenueTotals struct {
	From         time.Time `json:"from"`
	To           time.Time `json:"to"`
	InvoiceCount int64     `json:"invoice_count"`
	Subtotal     int64     `json:"subtotal"`
	Tax          int64     `json:"tax"`
	Invoiced     int64     `json:"invoiced"`
	Collected    int64     `json:"collected"`
	Outstanding  int64     `json:"outstanding"`
}
