package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	InsertPayment(ctx context.Context, db *gorm.DB, payment *Payment) error
	// ListRefundable returns payments with refundable money, newest first.
	ListRefundable(ctx context.Context, db *gorm.DB, invoiceID snowflake.ID) ([]Payment, error)
	UpdateRefund(ctx context.Context, db *gorm.DB, payment *Payment) error
	List(ctx context.Context, db *gorm.DB, invoiceID snowflake.ID) ([]Payment, error)
	// FindSettledByReference returns the non-failed payment recorded on the
	// invoice under a gateway reference, or nil.
	FindSettledByReference(ctx context.Context, db *gorm.DB, invoiceID snowflake.ID, reference string) (*Payment, error)

	// InsertEvent reports false when the event was seen before.
	InsertEvent(ctx context.Context, db *gorm.DB, event *EventRecord) (bool, error)
	FindEvent(ctx context.Context, db *gorm.DB, reference, eventType string) (*EventRecord, error)
	MarkEventProcessed(ctx context.Context, db *gorm.DB, id snowflake.ID, processedAt time.Time) error
	RecordEventError(ctx context.Context, db *gorm.DB, id snowflake.ID, message string) error
}
