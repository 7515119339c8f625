package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/telbill/internal/calltype"
	"github.com/smallbiznis/telbill/internal/proration"
)

// RatePlan prices a telecom subscription. All amounts are paise.
type RatePlan struct {
	ID                   snowflake.ID        `json:"id" gorm:"primaryKey"`
	Code                 string              `json:"code" gorm:"type:text;not null;uniqueIndex"`
	Name                 string              `json:"name" gorm:"type:text;not null"`
	Currency             string              `json:"currency" gorm:"type:text;not null"`
	MonthlyPrice         int64               `json:"monthly_price" gorm:"not null"`
	AnnualPrice          int64               `json:"annual_price" gorm:"not null"`
	SetupFee             int64               `json:"setup_fee" gorm:"not null"`
	IncludedMinutes      int64               `json:"included_minutes" gorm:"not null"`
	OverageRatePerMinute int64               `json:"overage_rate_per_minute" gorm:"not null"`
	LocalMultiplier      decimal.NullDecimal `json:"local_multiplier" gorm:"type:numeric(10,4)"`
	STDMultiplier        decimal.NullDecimal `json:"std_multiplier" gorm:"column:std_multiplier;type:numeric(10,4)"`
	ISDMultiplier        decimal.NullDecimal `json:"isd_multiplier" gorm:"column:isd_multiplier;type:numeric(10,4)"`
	IsActive             bool                `json:"is_active" gorm:"not null"`
	CreatedAt            time.Time           `json:"created_at" gorm:"not null"`
	UpdatedAt            time.Time           `json:"updated_at" gorm:"not null"`
}

func (RatePlan) TableName() string { return "rate_plans" }

// PriceFor returns the recurring fee for cycle.
func (p RatePlan) PriceFor(cycle proration.BillingCycle) int64 {
	if cycle == proration.Annual {
		return p.AnnualPrice
	}
	return p.MonthlyPrice
}

// Multiplier returns the overage multiplier of a call type; unset tiers are 1.
func (p RatePlan) Multiplier(ct calltype.CallType) decimal.Decimal {
	var m decimal.NullDecimal
	switch ct {
	case calltype.Local:
		m = p.LocalMultiplier
	case calltype.STD:
		m = p.STDMultiplier
	case calltype.ISD:
		m = p.ISDMultiplier
	}
	if !m.Valid {
		return decimal.NewFromInt(1)
	}
	return m.Decimal
}
