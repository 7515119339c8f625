// Package money holds integer minor-unit (paise) arithmetic helpers.
//
// Every stored amount is an int64 count of paise. Fractional intermediate
// values are carried as decimals and rounded half-up exactly once.
package money

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// MinorUnitsPerMajor is the number of paise in one rupee.
const MinorUnitsPerMajor = 100

// BasisPointsDenominator expresses 100% in basis points.
const BasisPointsDenominator = 10_000

// RoundHalfUp rounds a paise-denominated decimal to a whole paise, half away from zero.
func RoundHalfUp(amount decimal.Decimal) int64 {
	return amount.Round(0).IntPart()
}

// MulDivHalfUp returns amount * num / den rounded half-up. den must be positive.
func MulDivHalfUp(amount, num, den int64) int64 {
	if den <= 0 {
		panic("money: non-positive denominator")
	}
	value := decimal.NewFromInt(amount).Mul(decimal.NewFromInt(num)).Div(decimal.NewFromInt(den))
	return RoundHalfUp(value)
}

// Percent returns amount * bps / 10000 rounded half-up.
func Percent(amount int64, bps int64) int64 {
	return MulDivHalfUp(amount, bps, BasisPointsDenominator)
}

// FromMajor converts a decimal rupee amount (e.g. "0.50") to paise.
func FromMajor(major decimal.Decimal) int64 {
	return RoundHalfUp(major.Mul(decimal.NewFromInt(MinorUnitsPerMajor)))
}

// ToMajor converts paise to a decimal rupee amount.
func ToMajor(paise int64) decimal.Decimal {
	return decimal.New(paise, -2)
}

// Format renders paise as a two-decimal string ("411.82").
func Format(paise int64) string {
	return ToMajor(paise).StringFixed(2)
}

// MustParse converts a rupee string to paise and panics on malformed input.
// Intended for fixtures and constants.
func MustParse(major string) int64 {
	d, err := decimal.NewFromString(major)
	if err != nil {
		panic(fmt.Sprintf("money: parse %q: %v", major, err))
	}
	return FromMajor(d)
}
