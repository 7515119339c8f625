package calltype

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/telbill/internal/config"
	"github.com/smallbiznis/telbill/pkg/billingerr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBangaloreClassifier() *Classifier {
	return NewClassifier(config.DialingPlan{HomeCountryCode: "91", HomeAreaCodes: []string{"80"}})
}

func TestClassify(t *testing.T) {
	c := newBangaloreClassifier()

	cases := []struct {
		number string
		want   CallType
	}{
		{"98450 12345", Local},
		{"+91 98450-12345", Local},
		{"0091 9845012345", Local},
		{"09845012345", Local},
		{"080 2222 3333", Local},
		{"+91 80 22223333", Local},
		{"22223333", Local},
		{"100", Local},
		{"(022) 2345-6789", STD},
		{"+91 22 23456789", STD},
		{"+1 415 555 0100", ISD},
		{"0044 20 7946 0000", ISD},
	}
	for _, tc := range cases {
		got, err := c.Classify(tc.number)
		require.NoError(t, err, tc.number)
		assert.Equal(t, tc.want, got, tc.number)
	}
}

func TestClassifyErrors(t *testing.T) {
	c := newBangaloreClassifier()

	_, err := c.Classify("  ")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMissingCallee))
	assert.True(t, errors.Is(err, billingerr.ErrRating))

	for _, number := range []string{"anonymous", "+", "98450ABCDE", "+91"} {
		_, err = c.Classify(number)
		assert.ErrorIs(t, err, ErrUnknownCallType, number)
	}
}

type fixedMultipliers map[CallType]decimal.Decimal

func (f fixedMultipliers) Multiplier(ct CallType) decimal.Decimal { return f[ct] }

func TestRateReturnsPlanMultiplier(t *testing.T) {
	c := newBangaloreClassifier()
	plan := fixedMultipliers{
		Local: decimal.NewFromInt(1),
		STD:   decimal.RequireFromString("1.5"),
		ISD:   decimal.NewFromInt(5),
	}

	ct, mult, err := c.Rate(plan, "+44 20 7946 0000")
	require.NoError(t, err)
	assert.Equal(t, ISD, ct)
	assert.True(t, mult.Equal(decimal.NewFromInt(5)))

	_, _, err = c.Rate(plan, "")
	assert.ErrorIs(t, err, ErrMissingCallee)
}

func TestNewFromHolderFollowsConfig(t *testing.T) {
	cfg := config.DefaultBillingConfig()
	cfg.Dialing.HomeAreaCodes = []string{"22"}
	c := NewFromHolder(config.NewStaticBillingConfig(cfg))

	got, err := c.Classify("022 23456789")
	require.NoError(t, err)
	assert.Equal(t, Local, got)
}
