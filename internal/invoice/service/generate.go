package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/bwmarrin/snowflake"
	cdrdomain "github.com/smallbiznis/telbill/internal/cdr/domain"
	invoicedomain "github.com/smallbiznis/telbill/internal/invoice/domain"
	"github.com/smallbiznis/telbill/internal/invoice/format"
	"github.com/smallbiznis/telbill/internal/proration"
	"github.com/smallbiznis/telbill/internal/rating"
	subscriptiondomain "github.com/smallbiznis/telbill/internal/subscription/domain"
	"github.com/smallbiznis/telbill/pkg/billingerr"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

func (s *Service) GenerateInvoiceForSubscription(ctx context.Context, subscriptionID snowflake.ID) (*invoicedomain.GenerateResult, error) {
	sub, err := s.subscriptions.Get(ctx, subscriptionID)
	if err != nil {
		return nil, err
	}
	if sub.Status != subscriptiondomain.SubscriptionStatusActive {
		return nil, fmt.Errorf("%w: subscription %s is %s", subscriptiondomain.ErrSubscriptionInactive, sub.ID, sub.Status)
	}

	invoiceType := invoicedomain.InvoiceTypeSubscription
	if sub.Postpaid {
		invoiceType = invoicedomain.InvoiceTypePostpaid
	}
	period := sub.CurrentPeriod()
	key := invoicedomain.IdempotencyKey(invoiceType, sub.ID, period.Start)

	existing, err := s.findByKey(ctx, s.db, key)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return &invoicedomain.GenerateResult{Invoice: existing}, nil
	}

	plan, err := s.plans.Get(ctx, sub.RatePlanID)
	if err != nil {
		return nil, err
	}
	customer, err := s.customers.Get(ctx, sub.CustomerID)
	if err != nil {
		return nil, err
	}
	cdrs, err := s.cdrs.ListForPeriod(ctx, sub.ID, period.Start, period.End)
	if err != nil {
		return nil, err
	}
	addons, err := s.subscriptions.ListAddons(ctx, sub.ID)
	if err != nil {
		return nil, err
	}

	firstInvoice := false
	if invoiceType == invoicedomain.InvoiceTypeSubscription {
		var prior int64
		if err := s.db.WithContext(ctx).Model(&invoicedomain.Invoice{}).
			Where("subscription_id = ? AND invoice_type = ? AND status <> ?",
				sub.ID, invoicedomain.InvoiceTypeSubscription, invoicedomain.InvoiceStatusVoid).
			Count(&prior).Error; err != nil {
			return nil, err
		}
		firstInvoice = prior == 0
	}

	usage := s.rater.Rate(plan, cdrs)
	gen, err := invoicedomain.GeneratorFor(invoiceType)
	if err != nil {
		return nil, err
	}
	inv, err := s.builder.Build(gen, invoicedomain.BuildInput{
		Subscription: sub,
		Plan:         plan,
		Customer:     customer,
		Period:       period,
		Usage:        usage,
		Addons:       addons,
		FirstInvoice: firstInvoice,
	}, s.clock.Now())
	if err != nil {
		return nil, err
	}
	inv.IdempotencyKey = key
	inv.Metadata = usageMetadata(sub.ID, usage)

	stored, created, err := s.persist(ctx, inv, usage, nil)
	if err != nil {
		return nil, err
	}
	if created {
		s.log.Info("invoice generated",
			zap.String("invoice_id", stored.ID.String()),
			zap.String("subscription_id", sub.ID.String()),
			zap.String("invoice_type", string(invoiceType)),
			zap.Int64("total_amount", stored.TotalAmount),
			zap.Int("rating_failures", len(usage.Failures)),
		)
	}
	return &invoicedomain.GenerateResult{
		Invoice:        stored,
		Created:        created,
		Usage:          usage,
		RatingFailures: usage.Failures,
	}, nil
}

func (s *Service) GenerateUsageInvoice(ctx context.Context, subscriptionID snowflake.ID) (*invoicedomain.GenerateResult, error) {
	sub, err := s.subscriptions.Get(ctx, subscriptionID)
	if err != nil {
		return nil, err
	}

	periodInvoice, err := s.latestPeriodInvoice(ctx, sub.ID)
	if err != nil {
		return nil, err
	}
	period := proration.Period{Start: periodInvoice.PeriodStart, End: periodInvoice.PeriodEnd}

	plan, err := s.plans.Get(ctx, periodInvoice.RatePlanID)
	if err != nil {
		return nil, err
	}
	customer, err := s.customers.Get(ctx, sub.CustomerID)
	if err != nil {
		return nil, err
	}
	cdrs, err := s.cdrs.ListForPeriod(ctx, sub.ID, period.Start, period.End)
	if err != nil {
		return nil, err
	}

	usage := s.rater.Rate(plan, cdrs)
	var lastID snowflake.ID
	for _, call := range usage.Rated {
		if !call.AlreadyProcessed && call.CDRID > lastID {
			lastID = call.CDRID
		}
	}
	if lastID == 0 {
		if len(usage.Failures) > 0 {
			if err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
				return s.markFailures(ctx, tx, usage.Failures)
			}); err != nil {
				return nil, err
			}
		}
		return nil, fmt.Errorf("%w: subscription %s", invoicedomain.ErrNothingToBill, sub.ID)
	}

	// Late calls that stayed inside the allowance attach to the period invoice.
	if usage.UnbilledCost() == 0 {
		if _, _, err := s.persist(ctx, nil, usage, periodInvoice); err != nil {
			return nil, err
		}
		return &invoicedomain.GenerateResult{
			Invoice:        periodInvoice,
			Usage:          usage,
			RatingFailures: usage.Failures,
		}, nil
	}

	key := invoicedomain.IdempotencyKey(invoicedomain.InvoiceTypeUsage, sub.ID, period.Start, lastID.String())
	existing, err := s.findByKey(ctx, s.db, key)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return &invoicedomain.GenerateResult{Invoice: existing}, nil
	}

	inv, err := s.builder.Build(invoicedomain.UsageLines{}, invoicedomain.BuildInput{
		Subscription: sub,
		Plan:         plan,
		Customer:     customer,
		Period:       period,
		Usage:        usage,
	}, s.clock.Now())
	if err != nil {
		return nil, err
	}
	inv.IdempotencyKey = key
	inv.Metadata = usageMetadata(sub.ID, usage)
	inv.Metadata["period_invoice_id"] = periodInvoice.ID.String()

	stored, created, err := s.persist(ctx, inv, usage, nil)
	if err != nil {
		return nil, err
	}
	if created {
		s.log.Info("usage invoice generated",
			zap.String("invoice_id", stored.ID.String()),
			zap.String("subscription_id", sub.ID.String()),
			zap.Int64("total_amount", stored.TotalAmount),
		)
	}
	return &invoicedomain.GenerateResult{
		Invoice:        stored,
		Created:        created,
		Usage:          usage,
		RatingFailures: usage.Failures,
	}, nil
}

// persist writes inv with its lines, settles the rated CDRs and posts the
// ledger entry in one transaction. With a nil inv the CDRs are attached to
// target instead.
func (s *Service) persist(ctx context.Context, inv *invoicedomain.Invoice, usage rating.UsageSummary, target *invoicedomain.Invoice) (*invoicedomain.Invoice, bool, error) {
	var stored *invoicedomain.Invoice
	created := false

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if inv == nil {
			stored = target
			if err := s.markRated(ctx, tx, usage, target.ID); err != nil {
				return err
			}
			return s.markFailures(ctx, tx, usage.Failures)
		}

		now := s.clock.Now()
		id := s.genID.Generate()
		number, err := format.FormatInvoiceNumber(format.DefaultInvoiceNumberTemplate, inv.IssueDate, id)
		if err != nil {
			return err
		}
		inv.ID = id
		inv.InvoiceNumber = number
		inv.Version = 1
		inv.CreatedAt = now
		inv.UpdatedAt = now

		res := tx.WithContext(ctx).
			Omit(clause.Associations).
			Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "idempotency_key"}},
				DoNothing: true,
			}).
			Create(inv)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			existing, err := s.findByKey(ctx, tx, inv.IdempotencyKey)
			if err != nil {
				return err
			}
			stored = existing
			return nil
		}

		for i := range inv.Items {
			inv.Items[i].ID = s.genID.Generate()
			inv.Items[i].InvoiceID = inv.ID
			inv.Items[i].CreatedAt = now
		}
		if len(inv.Items) > 0 {
			if err := tx.WithContext(ctx).Create(&inv.Items).Error; err != nil {
				return err
			}
		}
		for i := range inv.TaxLines {
			inv.TaxLines[i].ID = s.genID.Generate()
			inv.TaxLines[i].InvoiceID = inv.ID
			inv.TaxLines[i].CreatedAt = now
		}
		if len(inv.TaxLines) > 0 {
			if err := tx.WithContext(ctx).Create(&inv.TaxLines).Error; err != nil {
				return err
			}
		}

		if err := s.markRated(ctx, tx, usage, inv.ID); err != nil {
			return err
		}
		if err := s.markFailures(ctx, tx, usage.Failures); err != nil {
			return err
		}
		if err := s.postInvoice(ctx, tx, inv); err != nil {
			return err
		}

		stored = inv
		created = true
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return stored, created, nil
}

func (s *Service) markRated(ctx context.Context, tx *gorm.DB, usage rating.UsageSummary, invoiceID snowflake.ID) error {
	for _, call := range usage.Rated {
		if call.AlreadyProcessed {
			continue
		}
		if err := s.cdrs.MarkProcessed(ctx, tx, call.CDRID, cdrdomain.Rated{
			CallType:  string(call.CallType),
			Cost:      call.Cost,
			InvoiceID: invoiceID,
		}); err != nil {
			return fmt.Errorf("mark cdr %s processed: %w", call.CDRID, err)
		}
	}
	return nil
}

func (s *Service) markFailures(ctx context.Context, tx *gorm.DB, failures []rating.CallFailure) error {
	for _, failure := range failures {
		if err := s.cdrs.MarkFailed(ctx, tx, failure.CDRID, failure.Reason); err != nil {
			return fmt.Errorf("mark cdr %s failed: %w", failure.CDRID, err)
		}
	}
	return nil
}

// latestPeriodInvoice finds the newest non-void subscription or postpaid
// invoice of a subscription.
func (s *Service) latestPeriodInvoice(ctx context.Context, subscriptionID snowflake.ID) (*invoicedomain.Invoice, error) {
	var inv invoicedomain.Invoice
	err := s.db.WithContext(ctx).
		Where("(idempotency_key LIKE ? OR idempotency_key LIKE ?) AND status <> ?",
			string(invoicedomain.InvoiceTypeSubscription)+":"+subscriptionID.String()+":%",
			string(invoicedomain.InvoiceTypePostpaid)+":"+subscriptionID.String()+":%",
			invoicedomain.InvoiceStatusVoid,
		).
		Order("period_start DESC").
		Take(&inv).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, billingerr.NotFound(invoicedomain.ErrNoPeriodInvoice, "subscription %s", subscriptionID)
	}
	if err != nil {
		return nil, err
	}
	return &inv, nil
}

func usageMetadata(subscriptionID snowflake.ID, usage rating.UsageSummary) datatypes.JSONMap {
	return datatypes.JSONMap{
		"subscription_id":       subscriptionID.String(),
		"total_minutes":         usage.TotalMinutes,
		"included_minutes_used": usage.IncludedMinutesUsed,
		"overage_minutes":       usage.OverageMinutes,
		"rating_failures":       len(usage.Failures),
	}
}
