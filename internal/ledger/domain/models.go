package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Direction is the side of a double-entry posting.
type Direction string

const (
	Debit  Direction = "debit"
	Credit Direction = "credit"
)

type SourceType string

const (
	SourceTypeInvoice SourceType = "invoice"
	SourceTypePayment SourceType = "payment"
	SourceTypeRefund  SourceType = "refund"
	SourceTypeVoid    SourceType = "invoice_void"
)

type AccountCode string

const (
	// Assets
	AccountCash               AccountCode = "cash"
	AccountAccountsReceivable AccountCode = "accounts_receivable"

	// Revenue
	AccountRevenueSubscription AccountCode = "revenue_subscription"
	AccountRevenueUsage        AccountCode = "revenue_usage"
	AccountRevenueSetup        AccountCode = "revenue_setup"
	AccountRevenueAddon        AccountCode = "revenue_addon"

	// Liabilities
	AccountCGSTPayable AccountCode = "cgst_payable"
	AccountSGSTPayable AccountCode = "sgst_payable"
	AccountIGSTPayable AccountCode = "igst_payable"
)

// ChartOfAccounts lists every account postings may reference.
var ChartOfAccounts = map[AccountCode]string{
	AccountCash:                "Cash",
	AccountAccountsReceivable:  "Accounts Receivable",
	AccountRevenueSubscription: "Subscription Revenue",
	AccountRevenueUsage:        "Usage Revenue",
	AccountRevenueSetup:        "Setup Fee Revenue",
	AccountRevenueAddon:        "Addon Revenue",
	AccountCGSTPayable:         "CGST Payable",
	AccountSGSTPayable:         "SGST Payable",
	AccountIGSTPayable:         "IGST Payable",
}

// Account is a chart-of-accounts entry.
type Account struct {
	ID        snowflake.ID `gorm:"primaryKey"`
	Code      AccountCode  `gorm:"type:text;not null;uniqueIndex"`
	Name      string       `gorm:"type:text;not null"`
	CreatedAt time.Time    `gorm:"not null"`
}

func (Account) TableName() string { return "ledger_accounts" }

// Entry is the immutable header of one financial event.
type Entry struct {
	ID         snowflake.ID `gorm:"primaryKey"`
	AccountID  snowflake.ID `gorm:"not null;index"`
	SourceType SourceType   `gorm:"type:text;not null;uniqueIndex:ux_ledger_entries_source,priority:1"`
	SourceID   snowflake.ID `gorm:"not null;uniqueIndex:ux_ledger_entries_source,priority:2"`
	Currency   string       `gorm:"type:text;not null"`
	Memo       string       `gorm:"type:text"`
	OccurredAt time.Time    `gorm:"not null"`
	CreatedAt  time.Time    `gorm:"not null"`
}

func (Entry) TableName() string { return "ledger_entries" }

// EntryLine is one posting of an entry.
type EntryLine struct {
	ID            snowflake.ID `gorm:"primaryKey"`
	LedgerEntryID snowflake.ID `gorm:"not null;index"`
	AccountID     snowflake.ID `gorm:"not null;index"`
	Direction     Direction    `gorm:"type:text;not null"`
	Amount        int64        `gorm:"not null"`
	CreatedAt     time.Time    `gorm:"not null"`
}

func (EntryLine) TableName() string { return "ledger_entry_lines" }
