package domain

import (
	"context"
	"errors"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/telbill/pkg/validation"
)

var (
	ErrPlanNotFound   = errors.New("rate_plan_not_found")
	ErrPlanReferenced = errors.New("rate_plan_referenced_by_invoice")
	ErrDuplicateCode  = errors.New("rate_plan_code_exists")
)

type Service interface {
	Get(ctx context.Context, id snowflake.ID) (*RatePlan, error)
	List(ctx context.Context, req ListRequest) ([]RatePlan, error)
	Create(ctx context.Context, req CreateRequest) (*RatePlan, error)
	Update(ctx context.Context, req UpdateRequest) (*RatePlan, error)
	Deactivate(ctx context.Context, id snowflake.ID) (*RatePlan, error)
}

type ListRequest struct {
	// Active filters by is_active when set.
	Active *bool
}

type Multipliers struct {
	Local *decimal.Decimal `json:"local"`
	STD   *decimal.Decimal `json:"std"`
	ISD   *decimal.Decimal `json:"isd"`
}

type CreateRequest struct {
	Code                 string      `json:"code"`
	Name                 string      `json:"name"`
	Currency             string      `json:"currency"`
	MonthlyPrice         int64       `json:"monthly_price"`
	AnnualPrice          int64       `json:"annual_price"`
	SetupFee             int64       `json:"setup_fee"`
	IncludedMinutes      int64       `json:"included_minutes"`
	OverageRatePerMinute int64       `json:"overage_rate_per_minute"`
	Multipliers          Multipliers `json:"multipliers"`
}

func (r CreateRequest) Validate() error {
	errs := &validation.Errors{}
	errs.Required("code", r.Code)
	errs.Required("name", r.Name)
	if strings.TrimSpace(r.Currency) != "" && strings.ToUpper(strings.TrimSpace(r.Currency)) != "INR" {
		errs.Add("currency", "unsupported_currency", "only INR is supported")
	}
	errs.NonNegative("monthly_price", r.MonthlyPrice)
	errs.NonNegative("annual_price", r.AnnualPrice)
	errs.NonNegative("setup_fee", r.SetupFee)
	errs.NonNegative("included_minutes", r.IncludedMinutes)
	errs.NonNegative("overage_rate_per_minute", r.OverageRatePerMinute)
	validateMultipliers(errs, r.Multipliers)
	return errs.Err()
}

// UpdateRequest replaces the priced fields of a plan. Nil fields are kept.
type UpdateRequest struct {
	ID                   snowflake.ID `json:"id"`
	Name                 *string      `json:"name"`
	MonthlyPrice         *int64       `json:"monthly_price"`
	AnnualPrice          *int64       `json:"annual_price"`
	SetupFee             *int64       `json:"setup_fee"`
	IncludedMinutes      *int64       `json:"included_minutes"`
	OverageRatePerMinute *int64       `json:"overage_rate_per_minute"`
	Multipliers          Multipliers  `json:"multipliers"`
}

func (r UpdateRequest) Validate() error {
	errs := &validation.Errors{}
	if r.ID == 0 {
		errs.Add("id", "required", "is required")
	}
	if r.Name != nil {
		errs.Required("name", *r.Name)
	}
	for field, v := range map[string]*int64{
		"monthly_price":           r.MonthlyPrice,
		"annual_price":            r.AnnualPrice,
		"setup_fee":               r.SetupFee,
		"included_minutes":        r.IncludedMinutes,
		"overage_rate_per_minute": r.OverageRatePerMinute,
	} {
		if v != nil {
			errs.NonNegative(field, *v)
		}
	}
	validateMultipliers(errs, r.Multipliers)
	return errs.Err()
}

func validateMultipliers(errs *validation.Errors, m Multipliers) {
	check := func(field string, v *decimal.Decimal) {
		if v != nil && v.IsNegative() {
			errs.Add(field, "negative", "must not be negative")
		}
	}
	check("multipliers.local", m.Local)
	check("multipliers.std", m.STD)
	check("multipliers.isd", m.ISD)
}
