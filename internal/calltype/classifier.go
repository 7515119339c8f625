// Package calltype classifies dialled numbers into local, STD and ISD tiers.
package calltype

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/telbill/internal/config"
	"github.com/smallbiznis/telbill/pkg/billingerr"
)

type CallType string

const (
	Local CallType = "local"
	STD   CallType = "std"
	ISD   CallType = "isd"
)

// All lists call types in invoice line order.
var All = []CallType{Local, STD, ISD}

func (c CallType) Valid() bool {
	return c == Local || c == STD || c == ISD
}

var (
	ErrMissingCallee   = errors.New("missing_callee")
	ErrUnknownCallType = errors.New("unknown_call_type")
)

// MultiplierSource yields the per-minute multiplier for a call type.
type MultiplierSource interface {
	Multiplier(CallType) decimal.Decimal
}

type Classifier struct {
	dialing func() config.DialingPlan
}

func NewClassifier(plan config.DialingPlan) *Classifier {
	return &Classifier{dialing: func() config.DialingPlan { return plan }}
}

// NewFromHolder follows hot reloads of the billing config.
func NewFromHolder(holder *config.BillingConfigHolder) *Classifier {
	return &Classifier{dialing: func() config.DialingPlan { return holder.Get().Dialing }}
}

const maxShortCodeDigits = 5

// Classify maps a callee number to its tier.
func (c *Classifier) Classify(number string) (CallType, error) {
	cleaned := strings.Map(func(r rune) rune {
		switch r {
		case ' ', '-', '(', ')', '.', '\t':
			return -1
		}
		return r
	}, number)
	if cleaned == "" {
		return "", billingerr.Rating(ErrMissingCallee, "")
	}

	dialing := c.dialing()
	home := strings.TrimPrefix(dialing.HomeCountryCode, "+")

	international := false
	rest := cleaned
	switch {
	case strings.HasPrefix(rest, "+"):
		international, rest = true, rest[1:]
	case strings.HasPrefix(rest, "00"):
		international, rest = true, rest[2:]
	}
	if rest == "" || !allDigits(rest) {
		return "", billingerr.Rating(ErrUnknownCallType, "callee %q", number)
	}

	national := rest
	if international {
		if !strings.HasPrefix(rest, home) {
			return ISD, nil
		}
		national = rest[len(home):]
		if national == "" {
			return "", billingerr.Rating(ErrUnknownCallType, "callee %q", number)
		}
	}

	if len(national) <= maxShortCodeDigits {
		return Local, nil
	}

	trunk := false
	if strings.HasPrefix(national, "0") {
		trunk, national = true, national[1:]
	}

	if isMobile(national) {
		return Local, nil
	}
	for _, area := range dialing.HomeAreaCodes {
		if area != "" && strings.HasPrefix(national, strings.TrimPrefix(area, "0")) {
			return Local, nil
		}
	}
	if trunk || international {
		return STD, nil
	}
	// Subscriber number dialled without an area code stays in the home area.
	return Local, nil
}

// Rate classifies number and returns the plan's multiplier for its tier.
func (c *Classifier) Rate(plan MultiplierSource, number string) (CallType, decimal.Decimal, error) {
	callType, err := c.Classify(number)
	if err != nil {
		return "", decimal.Zero, err
	}
	return callType, plan.Multiplier(callType), nil
}

func isMobile(national string) bool {
	return len(national) == 10 && national[0] >= '6' && national[0] <= '9'
}

func allDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
