package service

import (
	"context"
	"time"

	invoicedomain "github.com/smallbiznis/telbill/internal/invoice/domain"
	"github.com/smallbiznis/telbill/internal/proration"
	reportingdomain "github.com/smallbiznis/telbill/internal/reporting/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB  *gorm.DB
	Log *zap.Logger
}

type Service struct {
	db  *gorm.DB
	log *zap.Logger
}

func NewService(p Params) reportingdomain.Service {
	return &Service{
		db:  p.DB,
		log: p.Log.Named("reporting.service"),
	}
}

func (s *Service) OverdueInvoices(ctx context.Context) ([]invoicedomain.Invoice, error) {
	var items []invoicedomain.Invoice
	err := s.db.WithContext(ctx).
		Where("status = ?", invoicedomain.InvoiceStatusOverdue).
		Order("due_date ASC, id ASC").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

type revenueRow struct {
	InvoiceCount int64
	Subtotal     int64
	Tax          int64
	Invoiced     int64
	Collected    int64
	Outstanding  int64
}

func (s *Service) RevenueTotals(ctx context.Context, from, to time.Time) (reportingdomain.RevenueTotals, error) {
	start, end := proration.Date(from), proration.Date(to)
	if end.Before(start) {
		return reportingdomain.RevenueTotals{}, reportingdomain.ErrInvalidRange
	}

	var row revenueRow
	err := s.db.WithContext(ctx).
		Model(&invoicedomain.Invoice{}).
		Select(`COUNT(1) AS invoice_count,
			COALESCE(SUM(subtotal), 0) AS subtotal,
			COALESCE(SUM(tax_amount), 0) AS tax,
			COALESCE(SUM(total_amount), 0) AS invoiced,
			COALESCE(SUM(paid_amount), 0) AS collected,
			COALESCE(SUM(balance_amount), 0) AS outstanding`).
		Where("status <> ? AND issue_date >= ? AND issue_date < ?",
			invoicedomain.InvoiceStatusVoid, start, end.AddDate(0, 0, 1)).
		Scan(&row).Error
	if err != nil {
		return reportingdomain.RevenueTotals{}, err
	}

	return reportingdomain.RevenueTotals{
		From:         start,
		To:           end,
		InvoiceCount: row.InvoiceCount,
		Subtotal:     row.Subtotal,
		Tax:          row.Tax,
		Invoiced:     row.Invoiced,
		Collected:    row.Collected,
		Outstanding:  row.Outstanding,
	}, nil
}
