package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/telbill/internal/clock"
	"github.com/smallbiznis/telbill/internal/config"
	invoicedomain "github.com/smallbiznis/telbill/internal/invoice/domain"
	ledgerdomain "github.com/smallbiznis/telbill/internal/ledger/domain"
	"github.com/smallbiznis/telbill/internal/lock"
	paymentdomain "github.com/smallbiznis/telbill/internal/payment/domain"
	"github.com/smallbiznis/telbill/pkg/billingerr"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB        *gorm.DB
	Log       *zap.Logger
	GenID     *snowflake.Node
	Clock     clock.Clock
	Config    config.Config
	Repo      paymentdomain.Repository
	LedgerSvc ledgerdomain.Service
	Locker    lock.Locker
}

type Service struct {
	db        *gorm.DB
	log       *zap.Logger
	genID     *snowflake.Node
	clock     clock.Clock
	repo      paymentdomain.Repository
	ledgerSvc ledgerdomain.Service
	locker    lock.Locker

	lockTTL time.Duration
	retries int
}

func NewService(p Params) paymentdomain.Service {
	lockTTL := p.Config.Billing.InvoiceLockTTL
	if lockTTL <= 0 {
		lockTTL = 10 * time.Second
	}
	retries := p.Config.Billing.PaymentConflictRetries
	if retries <= 0 {
		retries = 3
	}
	locker := p.Locker
	if locker == nil {
		locker = lock.NoopLocker{}
	}
	return &Service{
		db:        p.DB,
		log:       p.Log.Named("payment.service"),
		genID:     p.GenID,
		clock:     p.Clock,
		repo:      p.Repo,
		ledgerSvc: p.LedgerSvc,
		locker:    locker,
		lockTTL:   lockTTL,
		retries:   retries,
	}
}

func (s *Service) ApplyPayment(ctx context.Context, invoiceID snowflake.ID, amount int64, reference string) (*invoicedomain.Invoice, error) {
	inv, err := s.mutate(ctx, invoiceID, func(tx *gorm.DB, inv *invoicedomain.Invoice, now time.Time) error {
		return s.applyPayment(ctx, tx, inv, amount, reference, now)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("payment applied",
		zap.String("invoice_id", inv.ID.String()),
		zap.Int64("amount", amount),
		zap.Int64("balance_amount", inv.BalanceAmount),
		zap.String("status", string(inv.Status)),
	)
	return inv, nil
}

func (s *Service) Refund(ctx context.Context, invoiceID snowflake.ID, amount int64, reference string) (*invoicedomain.Invoice, error) {
	inv, err := s.mutate(ctx, invoiceID, func(tx *gorm.DB, inv *invoicedomain.Invoice, now time.Time) error {
		return s.applyRefund(ctx, tx, inv, amount, reference, now)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("refund applied",
		zap.String("invoice_id", inv.ID.String()),
		zap.Int64("amount", amount),
		zap.Int64("paid_amount", inv.PaidAmount),
		zap.String("status", string(inv.Status)),
	)
	return inv, nil
}

// errEventSettled ends a mutation whose event another run already processed.
var errEventSettled = errors.New("payment event already settled")

// ProcessEvent applies a gateway event at most once. The event row is
// re-read, applied and marked processed inside the invoice transaction.
func (s *Service) ProcessEvent(ctx context.Context, event paymentdomain.Event) (*invoicedomain.Invoice, error) {
	if err := event.Validate(); err != nil {
		return nil, err
	}
	event.GatewayReference = strings.TrimSpace(event.GatewayReference)

	record := paymentdomain.EventRecord{
		ID:               s.genID.Generate(),
		InvoiceID:        event.InvoiceID,
		GatewayReference: event.GatewayReference,
		EventType:        event.EventType,
		Amount:           event.Amount,
		ReceivedAt:       s.clock.Now(),
	}
	inserted, err := s.repo.InsertEvent(ctx, s.db, &record)
	if err != nil {
		return nil, err
	}
	stored := &record
	if !inserted {
		stored, err = s.repo.FindEvent(ctx, s.db, event.GatewayReference, event.EventType)
		if err != nil {
			return nil, err
		}
		if stored == nil {
			return nil, paymentdomain.ErrEventAlreadyProcessed
		}
		if stored.ProcessedAt != nil {
			return s.duplicateEvent(ctx, event, stored)
		}
	}

	inv, err := s.mutate(ctx, event.InvoiceID, func(tx *gorm.DB, inv *invoicedomain.Invoice, now time.Time) error {
		current, err := s.repo.FindEvent(ctx, tx, event.GatewayReference, event.EventType)
		if err != nil {
			return err
		}
		if current != nil && current.ProcessedAt != nil {
			return errEventSettled
		}

		switch event.EventType {
		case paymentdomain.EventTypeCompleted:
			// A payment already recorded under this reference was applied
			// before the event row was marked.
			existing, err := s.repo.FindSettledByReference(ctx, tx, inv.ID, event.GatewayReference)
			if err != nil {
				return err
			}
			if existing == nil {
				if err := s.applyPayment(ctx, tx, inv, event.Amount, event.GatewayReference, now); err != nil {
					return err
				}
			}
		case paymentdomain.EventTypeRefunded:
			if err := s.applyRefund(ctx, tx, inv, event.Amount, event.GatewayReference, now); err != nil {
				return err
			}
		case paymentdomain.EventTypeFailed:
			if err := s.recordFailure(ctx, tx, inv, event, now); err != nil {
				return err
			}
		}
		return s.repo.MarkEventProcessed(ctx, tx, stored.ID, now)
	})
	if errors.Is(err, errEventSettled) {
		return s.duplicateEvent(ctx, event, stored)
	}
	if err != nil {
		if recErr := s.repo.RecordEventError(ctx, s.db, stored.ID, err.Error()); recErr != nil {
			s.log.Warn("failed to record payment event error", zap.Error(recErr))
		}
		return nil, err
	}

	s.log.Info("payment event processed",
		zap.String("invoice_id", inv.ID.String()),
		zap.String("gateway_reference", event.GatewayReference),
		zap.String("event_type", event.EventType),
		zap.String("status", string(inv.Status)),
	)
	return inv, nil
}

func (s *Service) ListPayments(ctx context.Context, invoiceID snowflake.ID) ([]paymentdomain.Payment, error) {
	return s.repo.List(ctx, s.db, invoiceID)
}

func (s *Service) duplicateEvent(ctx context.Context, event paymentdomain.Event, stored *paymentdomain.EventRecord) (*invoicedomain.Invoice, error) {
	s.log.Info("duplicate payment event ignored",
		zap.String("gateway_reference", event.GatewayReference),
		zap.String("event_type", event.EventType),
	)
	return s.loadInvoice(ctx, s.db, stored.InvoiceID)
}

func (s *Service) applyPayment(ctx context.Context, tx *gorm.DB, inv *invoicedomain.Invoice, amount int64, reference string, now time.Time) error {
	if err := paymentdomain.ApplyPayment(inv, amount, now); err != nil {
		return err
	}

	payment := &paymentdomain.Payment{
		ID:               s.genID.Generate(),
		InvoiceID:        inv.ID,
		AccountID:        inv.AccountID,
		Amount:           amount,
		Status:           paymentdomain.PaymentStatusCompleted,
		GatewayReference: strings.TrimSpace(reference),
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.repo.InsertPayment(ctx, tx, payment); err != nil {
		return err
	}

	_, err := s.ledgerSvc.Post(ctx, tx, ledgerdomain.Posting{
		AccountID:  inv.AccountID,
		SourceType: ledgerdomain.SourceTypePayment,
		SourceID:   payment.ID,
		Currency:   inv.Currency,
		Memo:       reference,
		OccurredAt: now,
		Lines: []ledgerdomain.PostingLine{
			ledgerdomain.DebitLine(ledgerdomain.AccountCash, amount),
			ledgerdomain.CreditLine(ledgerdomain.AccountAccountsReceivable, amount),
		},
	})
	return err
}

// applyRefund spreads the refund over refundable payments, newest first.
func (s *Service) applyRefund(ctx context.Context, tx *gorm.DB, inv *invoicedomain.Invoice, amount int64, reference string, now time.Time) error {
	if err := paymentdomain.ApplyRefund(inv, amount); err != nil {
		return err
	}

	payments, err := s.repo.ListRefundable(ctx, tx, inv.ID)
	if err != nil {
		return err
	}
	remaining := amount
	for i := range payments {
		if remaining == 0 {
			break
		}
		p := &payments[i]
		take := min(remaining, p.Refundable())
		p.RefundedAmount += take
		p.Status = paymentdomain.PaymentStatusPartiallyRefunded
		if p.RefundedAmount == p.Amount {
			p.Status = paymentdomain.PaymentStatusRefunded
		}
		p.UpdatedAt = now
		if err := s.repo.UpdateRefund(ctx, tx, p); err != nil {
			return err
		}
		remaining -= take
	}
	if remaining > 0 {
		return billingerr.Ledger(paymentdomain.ErrRefundExceedsPaid, "payments cover %d of refund %d", amount-remaining, amount)
	}

	_, err = s.ledgerSvc.Post(ctx, tx, ledgerdomain.Posting{
		AccountID:  inv.AccountID,
		SourceType: ledgerdomain.SourceTypeRefund,
		SourceID:   s.genID.Generate(),
		Currency:   inv.Currency,
		Memo:       reference,
		OccurredAt: now,
		Lines: []ledgerdomain.PostingLine{
			ledgerdomain.DebitLine(ledgerdomain.AccountAccountsReceivable, amount),
			ledgerdomain.CreditLine(ledgerdomain.AccountCash, amount),
		},
	})
	return err
}

func (s *Service) recordFailure(ctx context.Context, tx *gorm.DB, inv *invoicedomain.Invoice, event paymentdomain.Event, now time.Time) error {
	payment := &paymentdomain.Payment{
		ID:               s.genID.Generate(),
		InvoiceID:        inv.ID,
		AccountID:        inv.AccountID,
		Amount:           event.Amount,
		Status:           paymentdomain.PaymentStatusFailed,
		GatewayReference: event.GatewayReference,
		FailureReason:    event.FailureReason,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.repo.InsertPayment(ctx, tx, payment); err != nil {
		return err
	}
	s.log.Warn("payment failed",
		zap.String("invoice_id", inv.ID.String()),
		zap.String("gateway_reference", event.GatewayReference),
		zap.String("reason", event.FailureReason),
	)
	return nil
}

type mutation func(tx *gorm.DB, inv *invoicedomain.Invoice, now time.Time) error

// mutate serializes changes to one invoice with a distributed lock and an
// optimistic version check, retrying on version conflicts.
func (s *Service) mutate(ctx context.Context, invoiceID snowflake.ID, fn mutation) (*invoicedomain.Invoice, error) {
	release, err := lock.Acquire(ctx, s.locker, "invoice-lock:"+invoiceID.String(), s.lockTTL, s.lockTTL)
	if errors.Is(err, lock.ErrNotAcquired) {
		return nil, paymentdomain.ErrInvoiceBusy
	}
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := release(context.WithoutCancel(ctx)); err != nil {
			s.log.Warn("failed to release invoice lock", zap.String("invoice_id", invoiceID.String()), zap.Error(err))
		}
	}()

	for attempt := 0; attempt <= s.retries; attempt++ {
		var result *invoicedomain.Invoice
		err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			inv, err := s.loadInvoice(ctx, tx, invoiceID)
			if err != nil {
				return err
			}
			version := inv.Version
			now := s.clock.Now()
			if err := fn(tx, inv, now); err != nil {
				return err
			}

			inv.Version = version + 1
			inv.UpdatedAt = now
			res := tx.Model(&invoicedomain.Invoice{}).
				Where("id = ? AND version = ?", inv.ID, version).
				Updates(map[string]any{
					"paid_amount":    inv.PaidAmount,
					"balance_amount": inv.BalanceAmount,
					"status":         inv.Status,
					"paid_at":        inv.PaidAt,
					"version":        inv.Version,
					"updated_at":     now,
				})
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return invoicedomain.ErrVersionConflict
			}
			result = inv
			return nil
		})
		if errors.Is(err, invoicedomain.ErrVersionConflict) {
			s.log.Debug("invoice version conflict, retrying",
				zap.String("invoice_id", invoiceID.String()),
				zap.Int("attempt", attempt+1),
			)
			continue
		}
		if err != nil {
			return nil, err
		}
		return result, nil
	}
	return nil, invoicedomain.ErrVersionConflict
}

func (s *Service) loadInvoice(ctx context.Context, db *gorm.DB, id snowflake.ID) (*invoicedomain.Invoice, error) {
	var inv invoicedomain.Invoice
	err := db.WithContext(ctx).Where("id = ?", id).Take(&inv).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, billingerr.NotFound(invoicedomain.ErrInvoiceNotFound, "invoice %s", id)
	}
	if err != nil {
		return nil, err
	}
	return &inv, nil
}
