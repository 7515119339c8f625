package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFakeClockAdvance(t *testing.T) {
	start := time.Date(2026, 3, 31, 10, 0, 0, 0, time.UTC)
	c := NewFakeClock(start)
	c.Advance(24 * time.Hour)
	assert.Equal(t, start.Add(24*time.Hour), c.Now())

	c.Set(start)
	assert.Equal(t, start, c.Now())
}

func TestSystemClockIsUTC(t *testing.T) {
	assert.Equal(t, time.UTC, NewSystemClock().Now().Location())
}
