package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/telbill/internal/payment/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) InsertPayment(ctx context.Context, db *gorm.DB, payment *domain.Payment) error {
	return db.WithContext(ctx).Create(payment).Error
}

func (r *repo) ListRefundable(ctx context.Context, db *gorm.DB, invoiceID snowflake.ID) ([]domain.Payment, error) {
	var items []domain.Payment
	err := db.WithContext(ctx).
		Where("invoice_id = ? AND status IN ? AND amount > refunded_amount", invoiceID,
			[]domain.PaymentStatus{domain.PaymentStatusCompleted, domain.PaymentStatusPartiallyRefunded}).
		Order("created_at DESC, id DESC").
		Find(&items).Error
	return items, err
}

func (r *repo) UpdateRefund(ctx context.Context, db *gorm.DB, payment *domain.Payment) error {
	return db.WithContext(ctx).Exec(
		`UPDATE payments
		 SET refunded_amount = ?, status = ?, updated_at = ?
		 WHERE id = ?`,
		payment.RefundedAmount,
		payment.Status,
		payment.UpdatedAt,
		payment.ID,
	).Error
}

func (r *repo) List(ctx context.Context, db *gorm.DB, invoiceID snowflake.ID) ([]domain.Payment, error) {
	var items []domain.Payment
	err := db.WithContext(ctx).
		Where("invoice_id = ?", invoiceID).
		Order("created_at ASC, id ASC").
		Find(&items).Error
	return items, err
}

func (r *repo) FindSettledByReference(ctx context.Context, db *gorm.DB, invoiceID snowflake.ID, reference string) (*domain.Payment, error) {
	var items []domain.Payment
	err := db.WithContext(ctx).
		Where("invoice_id = ? AND gateway_reference = ? AND status <> ?", invoiceID, reference, domain.PaymentStatusFailed).
		Order("created_at ASC, id ASC").
		Limit(1).
		Find(&items).Error
	if err != nil || len(items) == 0 {
		return nil, err
	}
	return &items[0], nil
}

func (r *repo) InsertEvent(ctx context.Context, db *gorm.DB, event *domain.EventRecord) (bool, error) {
	res := db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "gateway_reference"}, {Name: "event_type"}},
			DoNothing: true,
		}).
		Create(event)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repo) FindEvent(ctx context.Context, db *gorm.DB, reference, eventType string) (*domain.EventRecord, error) {
	var item domain.EventRecord
	err := db.WithContext(ctx).Raw(
		`SELECT id, invoice_id, gateway_reference, event_type, amount, received_at, processed_at, error
		 FROM payment_events
		 WHERE gateway_reference = ? AND event_type = ?
		 LIMIT 1`,
		reference,
		eventType,
	).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}

func (r *repo) MarkEventProcessed(ctx context.Context, db *gorm.DB, id snowflake.ID, processedAt time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE payment_events
		 SET processed_at = ?, error = ''
		 WHERE id = ?`,
		processedAt,
		id,
	).Error
}

func (r *repo) RecordEventError(ctx context.Context, db *gorm.DB, id snowflake.ID, message string) error {
	return db.WithContext(ctx).Exec(
		`UPDATE payment_events
		 SET error = ?
		 WHERE id = ?`,
		message,
		id,
	).Error
}
