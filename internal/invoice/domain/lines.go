package domain

import (
	"fmt"

	"github.com/smallbiznis/telbill/internal/calltype"
	customerdomain "github.com/smallbiznis/telbill/internal/customer/domain"
	"github.com/smallbiznis/telbill/internal/proration"
	rateplandomain "github.com/smallbiznis/telbill/internal/rateplan/domain"
	"github.com/smallbiznis/telbill/internal/rating"
	subscriptiondomain "github.com/smallbiznis/telbill/internal/subscription/domain"
	"github.com/smallbiznis/telbill/pkg/money"
)

// BuildInput is everything a LineGenerator may price. It is fetched before
// building so generation does no I/O.
type BuildInput struct {
	Subscription *subscriptiondomain.Subscription
	Plan         *rateplandomain.RatePlan
	Customer     *customerdomain.Customer
	Period       proration.Period
	Usage        rating.UsageSummary
	Addons       []subscriptiondomain.Addon
	// FirstInvoice charges the plan's setup fee.
	FirstInvoice bool
}

// LineGenerator produces the items of one invoice variant.
type LineGenerator interface {
	Type() InvoiceType
	Lines(in BuildInput) ([]InvoiceItem, error)
}

// GeneratorFor returns the generator of an invoice type.
func GeneratorFor(t InvoiceType) (LineGenerator, error) {
	switch t {
	case InvoiceTypeSubscription:
		return SubscriptionLines{}, nil
	case InvoiceTypeUsage:
		return UsageLines{}, nil
	case InvoiceTypePostpaid:
		return PostpaidLines{}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownInvoiceType, t)
}

// SubscriptionLines bills the prorated plan fee, overage, addons and the
// one-time setup fee.
type SubscriptionLines struct{}

func (SubscriptionLines) Type() InvoiceType { return InvoiceTypeSubscription }

func (SubscriptionLines) Lines(in BuildInput) ([]InvoiceItem, error) {
	if in.Subscription == nil {
		return nil, fmt.Errorf("subscription invoice without subscription")
	}

	var items []InvoiceItem
	fee, err := subscriptionFee(in)
	if err != nil {
		return nil, err
	}
	items = append(items, fee)

	if in.FirstInvoice && in.Plan.SetupFee > 0 {
		items = append(items, InvoiceItem{
			LineType:    LineTypeSetupFee,
			Description: fmt.Sprintf("%s setup fee", in.Plan.Name),
			Quantity:    1,
			UnitPrice:   in.Plan.SetupFee,
			Amount:      in.Plan.SetupFee,
		})
	}

	items = append(items, overageLines(in.Usage)...)
	items = append(items, addonLines(in.Addons)...)
	return items, nil
}

// UsageLines bills only calls rated after the period invoice was issued.
type UsageLines struct{}

func (UsageLines) Type() InvoiceType { return InvoiceTypeUsage }

func (UsageLines) Lines(in BuildInput) ([]InvoiceItem, error) {
	return overageLines(in.Usage), nil
}

// PostpaidLines bills usage and addons in arrears with no recurring fee.
type PostpaidLines struct{}

func (PostpaidLines) Type() InvoiceType { return InvoiceTypePostpaid }

func (PostpaidLines) Lines(in BuildInput) ([]InvoiceItem, error) {
	items := overageLines(in.Usage)
	return append(items, addonLines(in.Addons)...), nil
}

func subscriptionFee(in BuildInput) (InvoiceItem, error) {
	sub := in.Subscription
	full := in.Plan.PriceFor(sub.BillingCycle)
	chargeStart, chargeEnd := sub.ChargeRange()

	amount, err := proration.Prorate(proration.Request{
		FullAmount:  full,
		PeriodStart: in.Period.Start,
		PeriodEnd:   in.Period.End,
		ChargeStart: chargeStart,
		ChargeEnd:   chargeEnd,
		Cycle:       sub.BillingCycle,
	})
	if err != nil {
		return InvoiceItem{}, err
	}

	description := fmt.Sprintf("%s %s plan (%s to %s)",
		in.Plan.Name,
		sub.BillingCycle,
		chargeStart.Format("2006-01-02"),
		chargeEnd.Format("2006-01-02"),
	)
	if amount != full {
		description += fmt.Sprintf(", prorated %d/%d days",
			proration.Days(chargeStart, chargeEnd),
			in.Period.Days(),
		)
	}
	return InvoiceItem{
		LineType:    LineTypeSubscriptionFee,
		Description: description,
		Quantity:    1,
		UnitPrice:   amount,
		Amount:      amount,
	}, nil
}

// overageLines emits one line per call type that incurred overage in this run.
func overageLines(summary rating.UsageSummary) []InvoiceItem {
	unbilled := summary.Unbilled()
	var items []InvoiceItem
	for _, ct := range calltype.All {
		usage, ok := unbilled[ct]
		if !ok || usage.OverageMinutes == 0 {
			continue
		}
		items = append(items, InvoiceItem{
			LineType:    LineTypeOverage,
			CallType:    string(ct),
			Description: fmt.Sprintf("%s call overage (%d of %d min)", ct, usage.OverageMinutes, usage.Minutes),
			Quantity:    usage.OverageMinutes,
			UnitPrice:   money.MulDivHalfUp(usage.Cost, 1, usage.OverageMinutes),
			Amount:      usage.Cost,
		})
	}
	return items
}

func addonLines(addons []subscriptiondomain.Addon) []InvoiceItem {
	var items []InvoiceItem
	for _, addon := range addons {
		if !addon.Active || addon.Amount() == 0 {
			continue
		}
		description := addon.Description
		if description == "" {
			description = addon.Code
		}
		items = append(items, InvoiceItem{
			LineType:    LineTypeAddon,
			Description: description,
			Quantity:    addon.Quantity,
			UnitPrice:   addon.UnitPrice,
			Amount:      addon.Amount(),
		})
	}
	return items
}
