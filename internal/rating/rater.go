// Package rating prices a billing period's call records against a rate plan.
//
// Rating is pure: callers fetch the plan and CDRs, the Rater computes costs,
// and the invoice service persists the outcome.
package rating

import (
	"sort"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/telbill/internal/calltype"
	cdrdomain "github.com/smallbiznis/telbill/internal/cdr/domain"
	rateplandomain "github.com/smallbiznis/telbill/internal/rateplan/domain"
	"github.com/smallbiznis/telbill/pkg/money"
)

// RatedCall is the priced outcome of one CDR.
type RatedCall struct {
	CDRID          snowflake.ID      `json:"cdr_id"`
	CallType       calltype.CallType `json:"call_type"`
	Minutes        int64             `json:"minutes"`
	OverageMinutes int64             `json:"overage_minutes"`
	Cost           int64             `json:"cost"`
	// AlreadyProcessed marks calls priced by an earlier run.
	AlreadyProcessed bool `json:"already_processed"`
}

// CallFailure is a CDR that could not be priced.
type CallFailure struct {
	CDRID  snowflake.ID `json:"cdr_id"`
	Reason string       `json:"reason"`
	Err    error        `json:"-"`
}

type CallTypeUsage struct {
	Minutes        int64 `json:"minutes"`
	OverageMinutes int64 `json:"overage_minutes"`
	Cost           int64 `json:"cost"`
	Calls          int   `json:"calls"`
}

type UsageSummary struct {
	TotalMinutes        int64                                `json:"total_minutes"`
	IncludedMinutesUsed int64                                `json:"included_minutes_used"`
	OverageMinutes      int64                                `json:"overage_minutes"`
	OverageCost         int64                                `json:"overage_cost"`
	ByCallType          map[calltype.CallType]*CallTypeUsage `json:"by_call_type"`
	Rated               []RatedCall                          `json:"rated"`
	Failures            []CallFailure                        `json:"failures"`
}

// Unbilled aggregates only the calls rated in this run, keyed by call type.
func (s UsageSummary) Unbilled() map[calltype.CallType]*CallTypeUsage {
	out := make(map[calltype.CallType]*CallTypeUsage)
	for _, call := range s.Rated {
		if call.AlreadyProcessed {
			continue
		}
		usage, ok := out[call.CallType]
		if !ok {
			usage = &CallTypeUsage{}
			out[call.CallType] = usage
		}
		usage.Minutes += call.Minutes
		usage.OverageMinutes += call.OverageMinutes
		usage.Cost += call.Cost
		usage.Calls++
	}
	return out
}

// UnbilledCost is the overage cost of calls rated in this run.
func (s UsageSummary) UnbilledCost() int64 {
	var total int64
	for _, call := range s.Rated {
		if !call.AlreadyProcessed {
			total += call.Cost
		}
	}
	return total
}

type Rater struct {
	classifier *calltype.Classifier
}

func NewRater(classifier *calltype.Classifier) *Rater {
	return &Rater{classifier: classifier}
}

// Rate draws every call from one allowance pool shared by all call types.
// Calls priced by an earlier run keep their share of the pool; the rest are
// rated in timestamp order against what remains, so a late record never
// reprices a billed call.
func (r *Rater) Rate(plan *rateplandomain.RatePlan, cdrs []cdrdomain.CDR) UsageSummary {
	ordered := make([]cdrdomain.CDR, len(cdrs))
	copy(ordered, cdrs)
	sort.SliceStable(ordered, func(i, j int) bool {
		if !ordered[i].Timestamp.Equal(ordered[j].Timestamp) {
			return ordered[i].Timestamp.Before(ordered[j].Timestamp)
		}
		return ordered[i].ID < ordered[j].ID
	})

	summary := UsageSummary{
		ByCallType: make(map[calltype.CallType]*CallTypeUsage),
	}
	rate := decimal.NewFromInt(plan.OverageRatePerMinute)
	var usedSoFar int64

	for _, record := range ordered {
		if record.ProcessingStatus != cdrdomain.StatusProcessed {
			continue
		}
		call := processedCall(record, plan.IncludedMinutes, usedSoFar)
		usedSoFar += call.Minutes
		summary.add(call)
	}

	for _, record := range ordered {
		if record.ProcessingStatus == cdrdomain.StatusProcessed {
			continue
		}

		callType, multiplier, err := r.classifier.Rate(plan, record.CalleeNumber)
		if err != nil {
			summary.Failures = append(summary.Failures, CallFailure{
				CDRID:  record.ID,
				Reason: err.Error(),
				Err:    err,
			})
			continue
		}

		minutes := record.BillableMinutes()
		overage := overageFor(minutes, plan.IncludedMinutes, usedSoFar)
		var cost int64
		if overage > 0 {
			cost = money.RoundHalfUp(decimal.NewFromInt(overage).Mul(rate).Mul(multiplier))
		}
		usedSoFar += minutes

		summary.add(RatedCall{
			CDRID:          record.ID,
			CallType:       callType,
			Minutes:        minutes,
			OverageMinutes: overage,
			Cost:           cost,
		})
	}
	return summary
}

func processedCall(record cdrdomain.CDR, included, usedSoFar int64) RatedCall {
	minutes := record.BillableMinutes()
	var cost int64
	if record.Cost != nil {
		cost = *record.Cost
	}
	return RatedCall{
		CDRID:            record.ID,
		CallType:         calltype.CallType(record.CallType),
		Minutes:          minutes,
		OverageMinutes:   overageFor(minutes, included, usedSoFar),
		Cost:             cost,
		AlreadyProcessed: true,
	}
}

func overageFor(minutes, included, usedSoFar int64) int64 {
	free := max(0, included-usedSoFar)
	return max(0, minutes-free)
}

func (s *UsageSummary) add(call RatedCall) {
	s.Rated = append(s.Rated, call)
	s.TotalMinutes += call.Minutes
	s.OverageMinutes += call.OverageMinutes
	s.IncludedMinutesUsed += call.Minutes - call.OverageMinutes
	s.OverageCost += call.Cost

	usage, ok := s.ByCallType[call.CallType]
	if !ok {
		usage = &CallTypeUsage{}
		s.ByCallType[call.CallType] = usage
	}
	usage.Minutes += call.Minutes
	usage.OverageMinutes += call.OverageMinutes
	usage.Cost += call.Cost
	usage.Calls++
}
