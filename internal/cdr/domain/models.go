package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

type ProcessingStatus string

const (
	StatusPending   ProcessingStatus = "pending"
	StatusProcessed ProcessingStatus = "processed"
	StatusFailed    ProcessingStatus = "failed"
)

type Direction string

const (
	DirectionOutbound Direction = "outbound"
	DirectionInbound  Direction = "inbound"
)

// CDR is one completed call. Once processed it is never mutated again.
type CDR struct {
	ID               snowflake.ID     `gorm:"primaryKey" json:"id"`
	SubscriptionID   snowflake.ID     `gorm:"not null;index:ix_cdrs_subscription_ts,priority:1" json:"subscription_id"`
	AccountID        snowflake.ID     `gorm:"not null;index" json:"account_id"`
	DurationSeconds  int64            `gorm:"not null" json:"duration_seconds"`
	BillableSeconds  int64            `gorm:"not null" json:"billable_seconds"`
	CalleeNumber     string           `gorm:"type:text" json:"callee_number"`
	Direction        Direction        `gorm:"type:text;not null" json:"direction"`
	Timestamp        time.Time        `gorm:"not null;index:ix_cdrs_subscription_ts,priority:2" json:"timestamp"`
	Cost             *int64           `json:"cost,omitempty"`
	CallType         string           `gorm:"type:text" json:"call_type,omitempty"`
	ProcessingStatus ProcessingStatus `gorm:"type:text;not null;index" json:"processing_status"`
	FailureReason    string           `gorm:"type:text" json:"failure_reason,omitempty"`
	InvoiceID        *snowflake.ID    `gorm:"index" json:"invoice_id,omitempty"`
	ProcessedAt      *time.Time       `json:"processed_at,omitempty"`
	CreatedAt        time.Time        `gorm:"not null" json:"created_at"`
	UpdatedAt        time.Time        `gorm:"not null" json:"updated_at"`
}

func (CDR) TableName() string { return "cdrs" }

// BillableMinutes rounds billable seconds up to whole minutes.
func (c CDR) BillableMinutes() int64 {
	if c.BillableSeconds <= 0 {
		return 0
	}
	return (c.BillableSeconds + 59) / 60
}
