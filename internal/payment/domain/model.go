package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

type PaymentStatus string

const (
	PaymentStatusCompleted         PaymentStatus = "completed"
	PaymentStatusFailed            PaymentStatus = "failed"
	PaymentStatusPartiallyRefunded PaymentStatus = "partially_refunded"
	PaymentStatusRefunded          PaymentStatus = "refunded"
)

// Payment is money received against one invoice.
type Payment struct {
	ID               snowflake.ID  `json:"id" gorm:"primaryKey"`
	InvoiceID        snowflake.ID  `json:"invoice_id" gorm:"not null;index"`
	AccountID        snowflake.ID  `json:"account_id" gorm:"not null;index"`
	Amount           int64         `json:"amount" gorm:"not null"`
	RefundedAmount   int64         `json:"refunded_amount" gorm:"not null"`
	Status           PaymentStatus `json:"status" gorm:"type:text;not null"`
	GatewayReference string        `json:"gateway_reference" gorm:"type:text"`
	FailureReason    string        `json:"failure_reason,omitempty" gorm:"type:text"`
	CreatedAt        time.Time     `json:"created_at" gorm:"not null"`
	UpdatedAt        time.Time     `json:"updated_at" gorm:"not null"`
}

func (Payment) TableName() string { return "payments" }

// Refundable is the part of the payment not yet returned.
func (p Payment) Refundable() int64 {
	if p.Status == PaymentStatusFailed {
		return 0
	}
	return p.Amount - p.RefundedAmount
}

const (
	EventTypeCompleted = "completed"
	EventTypeFailed    = "failed"
	EventTypeRefunded  = "refunded"
)

// EventRecord dedupes gateway events by reference and type.
type EventRecord struct {
	ID               snowflake.ID `json:"id" gorm:"primaryKey"`
	InvoiceID        snowflake.ID `json:"invoice_id" gorm:"not null;index"`
	GatewayReference string       `json:"gateway_reference" gorm:"type:text;not null;uniqueIndex:ux_payment_events_ref_type,priority:1"`
	EventType        string       `json:"event_type" gorm:"type:text;not null;uniqueIndex:ux_payment_events_ref_type,priority:2"`
	Amount           int64        `json:"amount" gorm:"not null"`
	ReceivedAt       time.Time    `json:"received_at" gorm:"not null"`
	ProcessedAt      *time.Time   `json:"processed_at"`
	Error            string       `json:"error,omitempty" gorm:"type:text"`
}

func (EventRecord) TableName() string { return "payment_events" }
