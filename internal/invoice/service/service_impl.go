package service

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/bwmarrin/snowflake"
	cdrdomain "github.com/smallbiznis/telbill/internal/cdr/domain"
	"github.com/smallbiznis/telbill/internal/clock"
	"github.com/smallbiznis/telbill/internal/config"
	customerdomain "github.com/smallbiznis/telbill/internal/customer/domain"
	invoicedomain "github.com/smallbiznis/telbill/internal/invoice/domain"
	ledgerdomain "github.com/smallbiznis/telbill/internal/ledger/domain"
	"github.com/smallbiznis/telbill/internal/proration"
	rateplandomain "github.com/smallbiznis/telbill/internal/rateplan/domain"
	"github.com/smallbiznis/telbill/internal/rating"
	subscriptiondomain "github.com/smallbiznis/telbill/internal/subscription/domain"
	"github.com/smallbiznis/telbill/internal/tax"
	"github.com/smallbiznis/telbill/pkg/billingerr"
	"github.com/smallbiznis/telbill/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type ServiceParam struct {
	fx.In

	DB            *gorm.DB
	Log           *zap.Logger
	GenID         *snowflake.Node
	Clock         clock.Clock
	Billing       *config.BillingConfigHolder
	Subscriptions subscriptiondomain.Service
	Plans         rateplandomain.Service
	Customers     customerdomain.Service
	CDRs          cdrdomain.Service
	Rater         *rating.Rater
	Tax           *tax.Engine
	Ledger        ledgerdomain.Service
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock

	builder       *invoicedomain.Builder
	subscriptions subscriptiondomain.Service
	plans         rateplandomain.Service
	customers     customerdomain.Service
	cdrs          cdrdomain.Service
	rater         *rating.Rater
	ledger        ledgerdomain.Service
}

func NewService(p ServiceParam) invoicedomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("invoice.service"),
		genID: p.GenID,
		clock: p.Clock,

		builder:       invoicedomain.NewBuilder(p.Tax, p.Billing.Get),
		subscriptions: p.Subscriptions,
		plans:         p.Plans,
		customers:     p.Customers,
		cdrs:          p.CDRs,
		rater:         p.Rater,
		ledger:        p.Ledger,
	}
}

func (s *Service) Get(ctx context.Context, id snowflake.ID) (*invoicedomain.Invoice, error) {
	var inv invoicedomain.Invoice
	err := s.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Preload("TaxLines", func(db *gorm.DB) *gorm.DB { return db.Order("code ASC") }).
		Where("id = ?", id).
		Take(&inv).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, billingerr.NotFound(invoicedomain.ErrInvoiceNotFound, "invoice %s", id)
	}
	if err != nil {
		return nil, err
	}
	return &inv, nil
}

func (s *Service) List(ctx context.Context, req invoicedomain.ListRequest) (*invoicedomain.ListResponse, error) {
	query := s.db.WithContext(ctx).Model(&invoicedomain.Invoice{})
	if req.CustomerID != nil {
		query = query.Where("customer_id = ?", *req.CustomerID)
	}
	if req.SubscriptionID != nil {
		query = query.Where("subscription_id = ?", *req.SubscriptionID)
	}
	if req.Status != nil {
		query = query.Where("status = ?", *req.Status)
	}
	if req.PageToken != "" {
		cursor, err := pagination.DecodeCursor(req.PageToken)
		if err != nil {
			return nil, err
		}
		id, err := strconv.ParseInt(cursor.ID, 10, 64)
		if err != nil {
			return nil, err
		}
		query = query.Where("id < ?", id)
	}

	limit := req.Limit()
	var rows []invoicedomain.Invoice
	if err := query.Order("id DESC").Limit(limit + 1).Find(&rows).Error; err != nil {
		return nil, err
	}

	rows, info := pagination.BuildCursorPageInfo(rows, limit, func(inv invoicedomain.Invoice) string {
		token, _ := pagination.EncodeCursor(pagination.Cursor{
			ID:        inv.ID.String(),
			CreatedAt: inv.CreatedAt.Format(time.RFC3339),
		})
		return token
	})
	return &invoicedomain.ListResponse{PageInfo: info, Invoices: rows}, nil
}

func (s *Service) Void(ctx context.Context, req invoicedomain.VoidRequest) (*invoicedomain.Invoice, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	inv, err := s.Get(ctx, req.InvoiceID)
	if err != nil {
		return nil, err
	}
	if inv.Status == invoicedomain.InvoiceStatusVoid {
		return nil, billingerr.Ledger(invoicedomain.ErrInvoiceVoid, "invoice %s", inv.ID)
	}
	if inv.PaidAmount > 0 {
		return nil, billingerr.Ledger(invoicedomain.ErrVoidRequiresRefund, "invoice %s has %d paid", inv.ID, inv.PaidAmount)
	}

	now := s.clock.Now()
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&invoicedomain.Invoice{}).
			Where("id = ? AND version = ?", inv.ID, inv.Version).
			Updates(map[string]any{
				"status":      invoicedomain.InvoiceStatusVoid,
				"void_reason": req.Reason,
				"voided_at":   now,
				"version":     inv.Version + 1,
				"updated_at":  now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return invoicedomain.ErrVersionConflict
		}
		return s.postVoid(ctx, tx, inv, now)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("invoice voided",
		zap.String("invoice_id", inv.ID.String()),
		zap.String("reason", req.Reason),
	)
	return s.Get(ctx, inv.ID)
}

func (s *Service) MarkOverdue(ctx context.Context, now time.Time) (int64, error) {
	today := proration.Date(now)
	res := s.db.WithContext(ctx).Exec(
		`UPDATE invoices SET status = ?, version = version + 1, updated_at = ?
		 WHERE status IN (?, ?) AND due_date < ?`,
		invoicedomain.InvoiceStatusOverdue,
		now.UTC(),
		invoicedomain.InvoiceStatusFinalized,
		invoicedomain.InvoiceStatusPartiallyPaid,
		today,
	)
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected > 0 {
		s.log.Info("invoices marked overdue", zap.Int64("count", res.RowsAffected))
	}
	return res.RowsAffected, nil
}

func (s *Service) findByKey(ctx context.Context, db *gorm.DB, key string) (*invoicedomain.Invoice, error) {
	var inv invoicedomain.Invoice
	err := db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Preload("TaxLines").
		Where("idempotency_key = ?", key).
		Take(&inv).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &inv, nil
}
