package money

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestRoundHalfUp(t *testing.T) {
	assert.Equal(t, int64(3141), RoundHalfUp(decimal.RequireFromString("3141.0")))
	assert.Equal(t, int64(3142), RoundHalfUp(decimal.RequireFromString("3141.5")))
	assert.Equal(t, int64(3141), RoundHalfUp(decimal.RequireFromString("3141.49")))
}

func TestPercent(t *testing.T) {
	// 9% of 349.00
	assert.Equal(t, int64(3141), Percent(34900, 900))
	// 18% of 349.00
	assert.Equal(t, int64(6282), Percent(34900, 1800))
	// 9% of 0.05 = 0.0045 -> 0.00
	assert.Equal(t, int64(0), Percent(5, 900))
	// 9% of 0.06 = 0.0054 -> 0.01
	assert.Equal(t, int64(1), Percent(6, 900))
}

func TestMulDivHalfUp(t *testing.T) {
	assert.Equal(t, int64(5161), MulDivHalfUp(10000, 16, 31))
	assert.Equal(t, int64(10000), MulDivHalfUp(10000, 31, 31))
	assert.Panics(t, func() { MulDivHalfUp(1, 1, 0) })
}

func TestFormatAndParse(t *testing.T) {
	assert.Equal(t, "411.82", Format(41182))
	assert.Equal(t, "0.05", Format(5))
	assert.Equal(t, int64(50), MustParse("0.50"))
	assert.Equal(t, int64(41182), MustParse("411.82"))
}
