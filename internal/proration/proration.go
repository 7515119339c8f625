// Package proration computes partial-period subscription charges over
// inclusive civil date ranges.
package proration

import (
	"errors"
	"time"

	"github.com/smallbiznis/telbill/pkg/billingerr"
	"github.com/smallbiznis/telbill/pkg/money"
)

var (
	ErrUnknownCycle   = errors.New("unknown_billing_cycle")
	ErrInvalidPeriod  = errors.New("period_end_before_start")
	ErrInvalidRange   = errors.New("charge_end_before_start")
	ErrOutsidePeriod  = errors.New("charge_outside_period")
	ErrNegativeAmount = errors.New("negative_amount")
)

type Request struct {
	FullAmount  int64
	PeriodStart time.Time
	PeriodEnd   time.Time
	ChargeStart time.Time
	ChargeEnd   time.Time
	Cycle       BillingCycle
}

// Prorate returns FullAmount * chargedDays / periodDays rounded half-up to the
// paise. A charge range equal to the full period returns FullAmount as is.
func Prorate(req Request) (int64, error) {
	if !req.Cycle.Valid() {
		return 0, billingerr.Proration(ErrUnknownCycle, "cycle %q", req.Cycle)
	}
	if req.FullAmount < 0 {
		return 0, billingerr.Proration(ErrNegativeAmount, "amount %d", req.FullAmount)
	}

	periodStart, periodEnd := Date(req.PeriodStart), Date(req.PeriodEnd)
	chargeStart, chargeEnd := Date(req.ChargeStart), Date(req.ChargeEnd)

	if periodEnd.Before(periodStart) {
		return 0, billingerr.Proration(ErrInvalidPeriod, "%s before %s", periodEnd.Format(time.DateOnly), periodStart.Format(time.DateOnly))
	}
	if chargeEnd.Before(chargeStart) {
		return 0, billingerr.Proration(ErrInvalidRange, "%s before %s", chargeEnd.Format(time.DateOnly), chargeStart.Format(time.DateOnly))
	}
	if chargeStart.Before(periodStart) || chargeEnd.After(periodEnd) {
		return 0, billingerr.Proration(ErrOutsidePeriod, "charge %s..%s, period %s..%s",
			chargeStart.Format(time.DateOnly), chargeEnd.Format(time.DateOnly),
			periodStart.Format(time.DateOnly), periodEnd.Format(time.DateOnly))
	}

	if chargeStart.Equal(periodStart) && chargeEnd.Equal(periodEnd) {
		return req.FullAmount, nil
	}

	return money.MulDivHalfUp(req.FullAmount, Days(chargeStart, chargeEnd), Days(periodStart, periodEnd)), nil
}
