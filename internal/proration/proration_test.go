package proration

import (
	"errors"
	"testing"
	"time"

	"github.com/smallbiznis/telbill/pkg/billingerr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestProrateFullPeriodReturnsAmountExactly(t *testing.T) {
	for _, amount := range []int64{0, 1, 34900, 99999, 123457} {
		got, err := Prorate(Request{
			FullAmount:  amount,
			PeriodStart: date(2026, 2, 1),
			PeriodEnd:   date(2026, 2, 28),
			ChargeStart: date(2026, 2, 1),
			ChargeEnd:   date(2026, 2, 28),
			Cycle:       Monthly,
		})
		require.NoError(t, err)
		assert.Equal(t, amount, got)
	}
}

func TestProrateUsesActualMonthLength(t *testing.T) {
	// 16 of 31 days of 100.00.
	got, err := Prorate(Request{
		FullAmount:  10000,
		PeriodStart: date(2026, 1, 1),
		PeriodEnd:   date(2026, 1, 31),
		ChargeStart: date(2026, 1, 16),
		ChargeEnd:   date(2026, 1, 31),
		Cycle:       Monthly,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(5161), got)

	// 14 of 28 days in February is exactly half.
	got, err = Prorate(Request{
		FullAmount:  34900,
		PeriodStart: date(2026, 2, 1),
		PeriodEnd:   date(2026, 2, 28),
		ChargeStart: date(2026, 2, 15),
		ChargeEnd:   date(2026, 2, 28),
		Cycle:       Monthly,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(17450), got)
}

func TestProrateIgnoresTimeOfDay(t *testing.T) {
	got, err := Prorate(Request{
		FullAmount:  3100,
		PeriodStart: date(2026, 1, 1).Add(13 * time.Hour),
		PeriodEnd:   date(2026, 1, 31).Add(23 * time.Hour),
		ChargeStart: date(2026, 1, 1),
		ChargeEnd:   date(2026, 1, 1).Add(time.Hour),
		Cycle:       Monthly,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(100), got)
}

func TestProrateIsMonotonic(t *testing.T) {
	start, end := date(2026, 3, 1), date(2026, 3, 31)
	var prev int64 = -1
	for days := 1; days <= 31; days++ {
		got, err := Prorate(Request{
			FullAmount:  34900,
			PeriodStart: start,
			PeriodEnd:   end,
			ChargeStart: start,
			ChargeEnd:   start.AddDate(0, 0, days-1),
			Cycle:       Monthly,
		})
		require.NoError(t, err)
		assert.GreaterOrEqual(t, got, prev, "days=%d", days)
		prev = got
	}
	assert.Equal(t, int64(34900), prev)
}

func TestProrateErrors(t *testing.T) {
	base := Request{
		FullAmount:  1000,
		PeriodStart: date(2026, 1, 1),
		PeriodEnd:   date(2026, 1, 31),
		ChargeStart: date(2026, 1, 5),
		ChargeEnd:   date(2026, 1, 10),
		Cycle:       Monthly,
	}

	cases := []struct {
		name   string
		mutate func(r *Request)
		code   error
	}{
		{"period end before start", func(r *Request) { r.PeriodEnd = date(2025, 12, 1) }, ErrInvalidPeriod},
		{"charge end before start", func(r *Request) { r.ChargeEnd = date(2026, 1, 4) }, ErrInvalidRange},
		{"charge before period", func(r *Request) { r.ChargeStart = date(2025, 12, 31) }, ErrOutsidePeriod},
		{"charge after period", func(r *Request) { r.ChargeEnd = date(2026, 2, 1) }, ErrOutsidePeriod},
		{"unknown cycle", func(r *Request) { r.Cycle = "weekly" }, ErrUnknownCycle},
		{"negative amount", func(r *Request) { r.FullAmount = -1 }, ErrNegativeAmount},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := base
			tc.mutate(&req)
			_, err := Prorate(req)
			require.Error(t, err)
			assert.True(t, errors.Is(err, billingerr.ErrProration))
			assert.True(t, errors.Is(err, tc.code))
		})
	}
}

func TestPeriodForAndNextClampMonthEnd(t *testing.T) {
	p, err := PeriodFor(date(2026, 1, 31), Monthly)
	require.NoError(t, err)
	assert.Equal(t, date(2026, 1, 31), p.Start)
	assert.Equal(t, date(2026, 2, 27), p.End)

	p, err = Next(p, Monthly, 31)
	require.NoError(t, err)
	assert.Equal(t, date(2026, 2, 28), p.Start)
	assert.Equal(t, date(2026, 3, 30), p.End)

	p, err = Next(p, Monthly, 31)
	require.NoError(t, err)
	assert.Equal(t, date(2026, 3, 31), p.Start)
	assert.Equal(t, date(2026, 4, 29), p.End)
}

func TestPeriodForCalendarMonthAndYear(t *testing.T) {
	p, err := PeriodFor(date(2028, 2, 1), Monthly)
	require.NoError(t, err)
	assert.Equal(t, int64(29), p.Days())

	p, err = PeriodFor(date(2026, 4, 1), Annual)
	require.NoError(t, err)
	assert.Equal(t, date(2027, 3, 31), p.End)
	assert.Equal(t, int64(365), p.Days())

	assert.True(t, p.Contains(date(2026, 12, 31).Add(20*time.Hour)))
	assert.False(t, p.Contains(date(2027, 4, 1)))

	_, err = PeriodFor(date(2026, 4, 1), "weekly")
	assert.ErrorIs(t, err, ErrUnknownCycle)
}

func TestPeriodContainingAlignsOnAnchor(t *testing.T) {
	p, err := PeriodContaining(date(2026, 1, 16), Monthly, 1)
	require.NoError(t, err)
	assert.Equal(t, date(2026, 1, 1), p.Start)
	assert.Equal(t, date(2026, 1, 31), p.End)

	p, err = PeriodContaining(date(2026, 3, 3), Monthly, 15)
	require.NoError(t, err)
	assert.Equal(t, date(2026, 2, 15), p.Start)
	assert.Equal(t, date(2026, 3, 14), p.End)

	p, err = PeriodContaining(date(2026, 3, 3), Monthly, 0)
	require.NoError(t, err)
	assert.Equal(t, date(2026, 3, 3), p.Start)
}
