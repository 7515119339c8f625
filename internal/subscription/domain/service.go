package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/telbill/internal/proration"
	"github.com/smallbiznis/telbill/pkg/validation"
)

var (
	ErrSubscriptionNotFound = errors.New("subscription_not_found")
	ErrInvalidTransition    = errors.New("invalid_subscription_transition")
	ErrSubscriptionInactive = errors.New("subscription_not_active")
)

type Service interface {
	Create(ctx context.Context, req CreateRequest) (*Subscription, error)
	Get(ctx context.Context, id snowflake.ID) (*Subscription, error)
	// ListDue returns active subscriptions whose current period ended before asOf's date.
	ListDue(ctx context.Context, asOf time.Time, limit int) ([]Subscription, error)
	// AdvancePeriod moves the subscription to its next period when its current
	// period still ends on expectedEnd. Calling it twice is harmless.
	AdvancePeriod(ctx context.Context, id snowflake.ID, expectedEnd time.Time) (*Subscription, error)
	Transition(ctx context.Context, id snowflake.ID, target SubscriptionStatus) (*Subscription, error)
	ScheduleEnd(ctx context.Context, id snowflake.ID, endsAt time.Time) (*Subscription, error)
	AddAddon(ctx context.Context, req AddAddonRequest) (*Addon, error)
	ListAddons(ctx context.Context, subscriptionID snowflake.ID) ([]Addon, error)
}

type CreateRequest struct {
	CustomerID   snowflake.ID           `json:"customer_id"`
	AccountID    snowflake.ID           `json:"account_id"`
	RatePlanID   snowflake.ID           `json:"rate_plan_id"`
	BillingCycle proration.BillingCycle `json:"billing_cycle"`
	StartDate    time.Time              `json:"start_date"`
	// AnchorDay aligns periods on a day of month; zero anchors on StartDate.
	AnchorDay int  `json:"anchor_day"`
	Postpaid  bool `json:"postpaid"`
}

func (r CreateRequest) Validate() error {
	errs := &validation.Errors{}
	if r.CustomerID == 0 {
		errs.Add("customer_id", "required", "is required")
	}
	if r.AccountID == 0 {
		errs.Add("account_id", "required", "is required")
	}
	if r.RatePlanID == 0 {
		errs.Add("rate_plan_id", "required", "is required")
	}
	errs.OneOf("billing_cycle", string(r.BillingCycle), string(proration.Monthly), string(proration.Annual))
	if r.StartDate.IsZero() {
		errs.Add("start_date", "required", "is required")
	}
	if r.AnchorDay < 0 || r.AnchorDay > 31 {
		errs.Add("anchor_day", "out_of_range", "must be between 1 and 31")
	}
	return errs.Err()
}

type AddAddonRequest struct {
	SubscriptionID snowflake.ID `json:"subscription_id"`
	Code           string       `json:"code"`
	Description    string       `json:"description"`
	Quantity       int64        `json:"quantity"`
	UnitPrice      int64        `json:"unit_price"`
}

func (r AddAddonRequest) Validate() error {
	errs := &validation.Errors{}
	if r.SubscriptionID == 0 {
		errs.Add("subscription_id", "required", "is required")
	}
	errs.Required("code", r.Code)
	errs.Required("description", r.Description)
	errs.Positive("quantity", r.Quantity)
	errs.NonNegative("unit_price", r.UnitPrice)
	return errs.Err()
}
