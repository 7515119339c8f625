package proration

import (
	"time"

	"github.com/smallbiznis/telbill/pkg/billingerr"
)

// BillingCycle is the recurrence of a subscription fee.
type BillingCycle string

const (
	Monthly BillingCycle = "monthly"
	Annual  BillingCycle = "annual"
)

func (c BillingCycle) Valid() bool {
	return c == Monthly || c == Annual
}

func (c BillingCycle) months() int {
	if c == Annual {
		return 12
	}
	return 1
}

// Period is an inclusive range of civil dates, stored at UTC midnight.
type Period struct {
	Start time.Time
	End   time.Time
}

// Days returns the inclusive day count of the period.
func (p Period) Days() int64 {
	return Days(p.Start, p.End)
}

// Contains reports whether t falls on one of the period's dates.
func (p Period) Contains(t time.Time) bool {
	d := Date(t)
	return !d.Before(p.Start) && !d.After(p.End)
}

// Date truncates t to its UTC civil date.
func Date(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Days returns the inclusive number of civil days between start and end.
// It is zero or negative when end precedes start.
func Days(start, end time.Time) int64 {
	return int64(Date(end).Sub(Date(start)).Hours()/24) + 1
}

// PeriodFor returns the billing period that starts on anchor.
func PeriodFor(anchor time.Time, cycle BillingCycle) (Period, error) {
	if !cycle.Valid() {
		return Period{}, billingerr.Proration(ErrUnknownCycle, "cycle %q", cycle)
	}
	start := Date(anchor)
	next := addMonths(start, cycle.months(), start.Day())
	return Period{Start: start, End: next.AddDate(0, 0, -1)}, nil
}

// Next returns the period following current. anchorDay is the day of month
// the subscription was started on; it keeps month-end anchors from drifting
// (Jan 31 -> Feb 28 -> Mar 31).
func Next(current Period, cycle BillingCycle, anchorDay int) (Period, error) {
	if !cycle.Valid() {
		return Period{}, billingerr.Proration(ErrUnknownCycle, "cycle %q", cycle)
	}
	if anchorDay < 1 || anchorDay > 31 {
		anchorDay = Date(current.Start).Day()
	}
	start := Date(current.End).AddDate(0, 0, 1)
	next := addMonths(start, cycle.months(), anchorDay)
	return Period{Start: start, End: next.AddDate(0, 0, -1)}, nil
}

func addMonths(t time.Time, months int, anchorDay int) time.Time {
	y, m, _ := t.Date()
	first := time.Date(y, m, 1, 0, 0, 0, 0, time.UTC).AddDate(0, months, 0)
	day := anchorDay
	if last := daysIn(first.Year(), first.Month()); day > last {
		day = last
	}
	return time.Date(first.Year(), first.Month(), day, 0, 0, 0, 0, time.UTC)
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// PeriodContaining returns the period, aligned on anchorDay, that contains
// date. A subscription started mid-period is billed for the clipped range.
func PeriodContaining(date time.Time, cycle BillingCycle, anchorDay int) (Period, error) {
	if !cycle.Valid() {
		return Period{}, billingerr.Proration(ErrUnknownCycle, "cycle %q", cycle)
	}
	d := Date(date)
	if anchorDay < 1 || anchorDay > 31 {
		anchorDay = d.Day()
	}
	start := addMonths(d, 0, anchorDay)
	if start.After(d) {
		start = addMonths(d, -1, anchorDay)
	}
	end := addMonths(start, cycle.months(), anchorDay).AddDate(0, 0, -1)
	return Period{Start: start, End: end}, nil
}
