package rating

import (
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/telbill/internal/calltype"
	cdrdomain "github.com/smallbiznis/telbill/internal/cdr/domain"
	"github.com/smallbiznis/telbill/internal/config"
	rateplandomain "github.com/smallbiznis/telbill/internal/rateplan/domain"
	"github.com/smallbiznis/telbill/pkg/billingerr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var periodStart = time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

func newRater() *Rater {
	return NewRater(calltype.NewClassifier(config.DialingPlan{HomeCountryCode: "91", HomeAreaCodes: []string{"80"}}))
}

func basicPlan() *rateplandomain.RatePlan {
	return &rateplandomain.RatePlan{
		ID:                   1,
		IncludedMinutes:      500,
		OverageRatePerMinute: 50,
	}
}

func call(id int64, offset time.Duration, minutes int64, callee string) cdrdomain.CDR {
	return cdrdomain.CDR{
		ID:               snowflake.ID(id),
		DurationSeconds:  minutes * 60,
		BillableSeconds:  minutes * 60,
		CalleeNumber:     callee,
		Timestamp:        periodStart.Add(offset),
		ProcessingStatus: cdrdomain.StatusPending,
	}
}

func TestRateOverageBeyondAllowance(t *testing.T) {
	cdrs := []cdrdomain.CDR{
		call(1, time.Hour, 300, "9845012345"),
		call(2, 2*time.Hour, 250, "9845012345"),
		call(3, 3*time.Hour, 100, "9845012345"),
	}

	summary := newRater().Rate(basicPlan(), cdrs)

	assert.Equal(t, int64(650), summary.TotalMinutes)
	assert.Equal(t, int64(500), summary.IncludedMinutesUsed)
	assert.Equal(t, int64(150), summary.OverageMinutes)
	assert.Equal(t, int64(7500), summary.OverageCost)
	require.Len(t, summary.Rated, 3)
	assert.Equal(t, int64(0), summary.Rated[0].Cost)
	assert.Equal(t, int64(50), summary.Rated[1].OverageMinutes)
	assert.Equal(t, int64(2500), summary.Rated[1].Cost)
	assert.Equal(t, int64(5000), summary.Rated[2].Cost)
	assert.Empty(t, summary.Failures)
}

func TestRateOrdersByTimestampThenID(t *testing.T) {
	plan := basicPlan()
	plan.IncludedMinutes = 10
	plan.ISDMultiplier = decimal.NewNullDecimal(decimal.NewFromInt(3))

	// Same timestamp: id 4 draws the allowance first, id 5 pays ISD overage.
	cdrs := []cdrdomain.CDR{
		call(5, time.Hour, 10, "+14155550100"),
		call(4, time.Hour, 10, "9845012345"),
	}

	summary := newRater().Rate(plan, cdrs)

	require.Len(t, summary.Rated, 2)
	assert.Equal(t, snowflake.ID(4), summary.Rated[0].CDRID)
	assert.Equal(t, int64(0), summary.Rated[0].Cost)
	assert.Equal(t, calltype.ISD, summary.Rated[1].CallType)
	assert.Equal(t, int64(10*50*3), summary.Rated[1].Cost)
	assert.Equal(t, int64(1500), summary.ByCallType[calltype.ISD].Cost)
	assert.Equal(t, int64(10), summary.ByCallType[calltype.Local].Minutes)
}

func TestRateRoundsPartialMinutesUp(t *testing.T) {
	plan := basicPlan()
	plan.IncludedMinutes = 0
	plan.STDMultiplier = decimal.NewNullDecimal(decimal.RequireFromString("1.25"))

	short := call(1, time.Minute, 0, "022 23456789")
	short.DurationSeconds, short.BillableSeconds = 5, 1
	zero := call(2, 2*time.Minute, 0, "022 23456789")
	over := call(3, 3*time.Minute, 0, "022 23456789")
	over.DurationSeconds, over.BillableSeconds = 61, 61

	summary := newRater().Rate(plan, []cdrdomain.CDR{short, zero, over})

	require.Len(t, summary.Rated, 3)
	assert.Equal(t, int64(1), summary.Rated[0].Minutes)
	assert.Equal(t, int64(63), summary.Rated[0].Cost) // 62.5 rounds half up
	assert.Equal(t, int64(0), summary.Rated[1].Minutes)
	assert.Equal(t, int64(0), summary.Rated[1].Cost)
	assert.Equal(t, int64(2), summary.Rated[2].Minutes)
	assert.Equal(t, int64(125), summary.Rated[2].Cost)
}

func TestRateRecordsFailuresAndContinues(t *testing.T) {
	plan := basicPlan()
	plan.IncludedMinutes = 5

	cdrs := []cdrdomain.CDR{
		call(1, time.Minute, 4, ""),
		call(2, 2*time.Minute, 4, "anonymous"),
		call(3, 3*time.Minute, 8, "9845012345"),
	}

	summary := newRater().Rate(plan, cdrs)

	require.Len(t, summary.Failures, 2)
	assert.ErrorIs(t, summary.Failures[0].Err, calltype.ErrMissingCallee)
	assert.ErrorIs(t, summary.Failures[1].Err, billingerr.ErrRating)
	require.Len(t, summary.Rated, 1)
	// Failed calls consume no allowance.
	assert.Equal(t, int64(3), summary.OverageMinutes)
	assert.Equal(t, int64(150), summary.OverageCost)
}

func TestRateIsIdempotentOverProcessedCalls(t *testing.T) {
	plan := basicPlan()
	cdrs := []cdrdomain.CDR{
		call(1, time.Hour, 400, "9845012345"),
		call(2, 2*time.Hour, 200, "+14155550100"),
		call(3, 3*time.Hour, 50, "022 23456789"),
	}
	rater := newRater()

	first := rater.Rate(plan, cdrs)

	processed := make([]cdrdomain.CDR, len(cdrs))
	for i, record := range cdrs {
		rated := first.Rated[i]
		cost := rated.Cost
		record.Cost = &cost
		record.CallType = string(rated.CallType)
		record.ProcessingStatus = cdrdomain.StatusProcessed
		processed[i] = record
	}

	second := rater.Rate(plan, processed)

	assert.Equal(t, first.OverageCost, second.OverageCost)
	assert.Equal(t, first.OverageMinutes, second.OverageMinutes)
	assert.Equal(t, int64(0), second.UnbilledCost())
	assert.Empty(t, second.Unbilled())
}

func TestRateProcessedCallsStillConsumeAllowance(t *testing.T) {
	plan := basicPlan()
	plan.IncludedMinutes = 100

	billed := call(1, time.Hour, 100, "9845012345")
	zero := int64(0)
	billed.Cost = &zero
	billed.CallType = string(calltype.Local)
	billed.ProcessingStatus = cdrdomain.StatusProcessed

	retried := call(2, 2*time.Hour, 10, "9845012345")
	retried.ProcessingStatus = cdrdomain.StatusFailed

	summary := newRater().Rate(plan, []cdrdomain.CDR{retried, billed})

	assert.Equal(t, int64(500), summary.UnbilledCost())
	unbilled := summary.Unbilled()
	require.Contains(t, unbilled, calltype.Local)
	assert.Equal(t, int64(10), unbilled[calltype.Local].OverageMinutes)
	assert.Equal(t, 1, unbilled[calltype.Local].Calls)
}

func TestRateLateCallBehindBilledCallsPaysOverage(t *testing.T) {
	plan := basicPlan()
	plan.IncludedMinutes = 100

	billed := call(1, 2*time.Hour, 100, "9845012345")
	zero := int64(0)
	billed.Cost = &zero
	billed.CallType = string(calltype.Local)
	billed.ProcessingStatus = cdrdomain.StatusProcessed

	late := call(2, time.Hour, 30, "9845012345")

	summary := newRater().Rate(plan, []cdrdomain.CDR{billed, late})

	assert.Equal(t, int64(30), summary.OverageMinutes)
	assert.Equal(t, int64(100), summary.IncludedMinutesUsed)
	assert.Equal(t, int64(1500), summary.UnbilledCost())
	for _, rated := range summary.Rated {
		if rated.CDRID == billed.ID {
			assert.Equal(t, int64(0), rated.OverageMinutes)
			assert.Equal(t, int64(0), rated.Cost)
		}
	}
}
