// Package domain contains persistence models and line generation for invoicing.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// InvoiceType tags the variant that produced an invoice's lines.
type InvoiceType string

const (
	InvoiceTypeSubscription InvoiceType = "subscription"
	InvoiceTypeUsage        InvoiceType = "usage"
	InvoiceTypePostpaid     InvoiceType = "postpaid"
)

// InvoiceStatus represents invoice lifecycle states.
type InvoiceStatus string

const (
	InvoiceStatusDraft         InvoiceStatus = "draft"
	InvoiceStatusFinalized     InvoiceStatus = "finalized"
	InvoiceStatusPartiallyPaid InvoiceStatus = "partially_paid"
	InvoiceStatusPaid          InvoiceStatus = "paid"
	InvoiceStatusOverdue       InvoiceStatus = "overdue"
	InvoiceStatusVoid          InvoiceStatus = "void"
)

// LineType identifies what an invoice item charges for.
type LineType string

const (
	LineTypeSubscriptionFee LineType = "subscription_fee"
	LineTypeOverage         LineType = "overage"
	LineTypeAddon           LineType = "addon"
	LineTypeSetupFee        LineType = "setup_fee"
)

// Invoice represents a finalized bill. Amounts are paise; TotalAmount is
// always Subtotal+TaxAmount and BalanceAmount is TotalAmount-PaidAmount.
type Invoice struct {
	ID             snowflake.ID      `gorm:"primaryKey" json:"id"`
	InvoiceNumber  string            `gorm:"type:text;not null;uniqueIndex" json:"invoice_number"`
	IdempotencyKey string            `gorm:"type:text;not null;uniqueIndex" json:"-"`
	CustomerID     snowflake.ID      `gorm:"not null;index" json:"customer_id"`
	AccountID      snowflake.ID      `gorm:"not null;index" json:"account_id"`
	SubscriptionID *snowflake.ID     `gorm:"index" json:"subscription_id,omitempty"`
	RatePlanID     snowflake.ID      `gorm:"not null;index" json:"rate_plan_id"`
	InvoiceType    InvoiceType       `gorm:"type:text;not null" json:"invoice_type"`
	Status         InvoiceStatus     `gorm:"type:text;not null;index" json:"status"`
	Currency       string            `gorm:"type:text;not null" json:"currency"`
	PeriodStart    time.Time         `gorm:"not null" json:"period_start"`
	PeriodEnd      time.Time         `gorm:"not null" json:"period_end"`
	Subtotal       int64             `gorm:"not null" json:"subtotal"`
	TaxAmount      int64             `gorm:"not null" json:"tax_amount"`
	TotalAmount    int64             `gorm:"not null" json:"total_amount"`
	PaidAmount     int64             `gorm:"not null" json:"paid_amount"`
	BalanceAmount  int64             `gorm:"not null" json:"balance_amount"`
	TaxRegime      string            `gorm:"type:text;not null" json:"tax_regime"`
	IssueDate      time.Time         `gorm:"not null" json:"issue_date"`
	DueDate        time.Time         `gorm:"not null;index" json:"due_date"`
	PaidAt         *time.Time        `json:"paid_at,omitempty"`
	VoidedAt       *time.Time        `json:"voided_at,omitempty"`
	VoidReason     string            `gorm:"type:text" json:"void_reason,omitempty"`
	Metadata       datatypes.JSONMap `json:"metadata,omitempty"`
	Version        int64             `gorm:"not null" json:"version"`
	CreatedAt      time.Time         `gorm:"not null" json:"created_at"`
	UpdatedAt      time.Time         `gorm:"not null" json:"updated_at"`

	Items    []InvoiceItem    `gorm:"foreignKey:InvoiceID" json:"items,omitempty"`
	TaxLines []InvoiceTaxLine `gorm:"foreignKey:InvoiceID" json:"tax_lines,omitempty"`
}

// TableName sets the database table name.
func (Invoice) TableName() string { return "invoices" }

// TaxComponent returns the amount of one tax line by code, zero when absent.
func (i Invoice) TaxComponent(code string) int64 {
	for _, line := range i.TaxLines {
		if line.Code == code {
			return line.Amount
		}
	}
	return 0
}

// Open reports whether the invoice still accepts payments.
func (i Invoice) Open() bool {
	switch i.Status {
	case InvoiceStatusFinalized, InvoiceStatusPartiallyPaid, InvoiceStatusOverdue:
		return true
	}
	return false
}

// InvoiceItem represents a line on an invoice.
type InvoiceItem struct {
	ID          snowflake.ID `gorm:"primaryKey" json:"id"`
	InvoiceID   snowflake.ID `gorm:"not null;index" json:"invoice_id"`
	Position    int          `gorm:"not null" json:"position"`
	LineType    LineType     `gorm:"type:text;not null" json:"line_type"`
	CallType    string       `gorm:"type:text" json:"call_type,omitempty"`
	Description string       `gorm:"type:text;not null" json:"description"`
	Quantity    int64        `gorm:"not null" json:"quantity"`
	// UnitPrice is informational and rounded; Amount is authoritative.
	UnitPrice int64     `gorm:"not null" json:"unit_price"`
	Amount    int64     `gorm:"not null" json:"amount"`
	CreatedAt time.Time `gorm:"not null" json:"created_at"`
}

// TableName sets the database table name.
func (InvoiceItem) TableName() string { return "invoice_items" }

// InvoiceTaxLine captures one tax component applied at finalization.
type InvoiceTaxLine struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"id"`
	InvoiceID snowflake.ID `gorm:"not null;index" json:"invoice_id"`
	Code      string       `gorm:"type:text;not null" json:"code"`
	Name      string       `gorm:"type:text;not null" json:"name"`
	RateBps   int64        `gorm:"not null" json:"rate_bps"`
	Amount    int64        `gorm:"not null" json:"amount"`
	CreatedAt time.Time    `gorm:"not null" json:"created_at"`
}

// TableName sets the database table name.
func (InvoiceTaxLine) TableName() string { return "invoice_tax_lines" }
