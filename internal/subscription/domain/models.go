// Package domain contains persistence models for subscriptions and their addons.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/telbill/internal/proration"
)

type SubscriptionStatus string

const (
	SubscriptionStatusActive    SubscriptionStatus = "active"
	SubscriptionStatusSuspended SubscriptionStatus = "suspended"
	SubscriptionStatusCancelled SubscriptionStatus = "cancelled"
)

// Subscription binds a customer to a rate plan. CurrentPeriodStart and
// CurrentPeriodEnd are inclusive civil dates; one period is open at a time.
type Subscription struct {
	ID                 snowflake.ID           `gorm:"primaryKey" json:"id"`
	CustomerID         snowflake.ID           `gorm:"not null;index" json:"customer_id"`
	AccountID          snowflake.ID           `gorm:"not null;index" json:"account_id"`
	RatePlanID         snowflake.ID           `gorm:"not null;index" json:"rate_plan_id"`
	BillingCycle       proration.BillingCycle `gorm:"type:text;not null" json:"billing_cycle"`
	BillingAnchorDay   int                    `gorm:"not null" json:"billing_anchor_day"`
	Postpaid           bool                   `gorm:"not null;default:false" json:"postpaid"`
	Status             SubscriptionStatus     `gorm:"type:text;not null;index" json:"status"`
	StartedAt          time.Time              `gorm:"not null" json:"started_at"`
	EndsAt             *time.Time             `json:"ends_at,omitempty"`
	CurrentPeriodStart time.Time              `gorm:"not null" json:"current_period_start"`
	CurrentPeriodEnd   time.Time              `gorm:"not null;index" json:"current_period_end"`
	CancelledAt        *time.Time             `json:"cancelled_at,omitempty"`
	CreatedAt          time.Time              `gorm:"not null" json:"created_at"`
	UpdatedAt          time.Time              `gorm:"not null" json:"updated_at"`
}

func (Subscription) TableName() string { return "subscriptions" }

// CurrentPeriod returns the open billing period.
func (s Subscription) CurrentPeriod() proration.Period {
	return proration.Period{Start: s.CurrentPeriodStart, End: s.CurrentPeriodEnd}
}

// ChargeRange clips the current period to the dates the subscription was live.
func (s Subscription) ChargeRange() (time.Time, time.Time) {
	start := proration.Date(s.CurrentPeriodStart)
	end := proration.Date(s.CurrentPeriodEnd)
	if started := proration.Date(s.StartedAt); started.After(start) {
		start = started
	}
	if s.EndsAt != nil {
		if ends := proration.Date(*s.EndsAt); ends.Before(end) {
			end = ends
		}
	}
	return start, end
}

// Addon is a recurring extra charge (DID numbers, extra lines) billed each period.
type Addon struct {
	ID             snowflake.ID `gorm:"primaryKey" json:"id"`
	SubscriptionID snowflake.ID `gorm:"not null;index" json:"subscription_id"`
	Code           string       `gorm:"type:text;not null" json:"code"`
	Description    string       `gorm:"type:text;not null" json:"description"`
	Quantity       int64        `gorm:"not null" json:"quantity"`
	UnitPrice      int64        `gorm:"not null" json:"unit_price"`
	Active         bool         `gorm:"not null" json:"active"`
	CreatedAt      time.Time    `gorm:"not null" json:"created_at"`
	UpdatedAt      time.Time    `gorm:"not null" json:"updated_at"`
}

func (Addon) TableName() string { return "subscription_addons" }

// Amount is the per-period charge of the addon.
func (a Addon) Amount() int64 {
	return a.Quantity * a.UnitPrice
}
