// Package tax computes Indian GST on invoice subtotals.
package tax

import (
	"errors"

	"github.com/smallbiznis/telbill/internal/config"
	"github.com/smallbiznis/telbill/pkg/billingerr"
	"github.com/smallbiznis/telbill/pkg/money"
)

var (
	ErrUnknownCountry   = errors.New("unknown_country")
	ErrMissingState     = errors.New("missing_state")
	ErrNegativeSubtotal = errors.New("negative_subtotal")
)

type Regime string

const (
	RegimeNone       Regime = "none"
	RegimeIntraState Regime = "intra_state"
	RegimeInterState Regime = "inter_state"
	RegimeExport     Regime = "export"
)

const (
	CodeCGST = "cgst"
	CodeSGST = "sgst"
	CodeIGST = "igst"
)

// Result is the tax owed on one subtotal. Components are rounded
// independently, so CGST+SGST may differ from a rounded 18% by one paise.
type Result struct {
	Regime    Regime `json:"regime"`
	Subtotal  int64  `json:"subtotal"`
	TaxAmount int64  `json:"tax_amount"`
	CGST      int64  `json:"cgst,omitempty"`
	SGST      int64  `json:"sgst,omitempty"`
	IGST      int64  `json:"igst,omitempty"`
	CGSTBps   int64  `json:"cgst_bps,omitempty"`
	SGSTBps   int64  `json:"sgst_bps,omitempty"`
	IGSTBps   int64  `json:"igst_bps,omitempty"`
}

// Line is one component of the tax breakdown.
type Line struct {
	Code    string `json:"code"`
	Name    string `json:"name"`
	RateBps int64  `json:"rate_bps"`
	Amount  int64  `json:"amount"`
}

// Lines returns the non-empty breakdown in a stable order.
func (r Result) Lines() []Line {
	switch r.Regime {
	case RegimeIntraState:
		return []Line{
			{Code: CodeCGST, Name: "CGST", RateBps: r.CGSTBps, Amount: r.CGST},
			{Code: CodeSGST, Name: "SGST", RateBps: r.SGSTBps, Amount: r.SGST},
		}
	case RegimeInterState:
		return []Line{
			{Code: CodeIGST, Name: "IGST", RateBps: r.IGSTBps, Amount: r.IGST},
		}
	}
	return nil
}

// Total is subtotal plus tax.
func (r Result) Total() int64 {
	return r.Subtotal + r.TaxAmount
}

type Engine struct {
	rates func() config.TaxRates
}

func NewEngine(rates config.TaxRates) *Engine {
	return &Engine{rates: func() config.TaxRates { return rates }}
}

// NewFromHolder reads rates from the live billing config on every call.
func NewFromHolder(holder *config.BillingConfigHolder) *Engine {
	return &Engine{rates: func() config.TaxRates { return holder.Get().Tax }}
}

// Compute splits GST for subtotal billed by a company in companyState to a
// customer in customerState of country.
func (e *Engine) Compute(subtotal int64, customerState, companyState, country string) (Result, error) {
	if subtotal < 0 {
		return Result{}, billingerr.TaxJurisdiction(ErrNegativeSubtotal, "subtotal %d", subtotal)
	}
	if subtotal == 0 {
		return Result{Regime: RegimeNone}, nil
	}

	code := normalizeCountry(country)
	if code == "" {
		return Result{}, billingerr.TaxJurisdiction(ErrUnknownCountry, "country %q", country)
	}
	if code != homeCountry {
		return Result{Regime: RegimeExport, Subtotal: subtotal}, nil
	}

	customer, company := normalizeState(customerState), normalizeState(companyState)
	if customer == "" || company == "" {
		return Result{}, billingerr.TaxJurisdiction(ErrMissingState, "customer state %q, company state %q", customerState, companyState)
	}

	rates := e.rates()
	if customer == company {
		cgst := money.Percent(subtotal, rates.CGSTBps)
		sgst := money.Percent(subtotal, rates.SGSTBps)
		return Result{
			Regime:    RegimeIntraState,
			Subtotal:  subtotal,
			TaxAmount: cgst + sgst,
			CGST:      cgst,
			SGST:      sgst,
			CGSTBps:   rates.CGSTBps,
			SGSTBps:   rates.SGSTBps,
		}, nil
	}

	igst := money.Percent(subtotal, rates.IGSTBps)
	return Result{
		Regime:    RegimeInterState,
		Subtotal:  subtotal,
		TaxAmount: igst,
		IGST:      igst,
		IGSTBps:   rates.IGSTBps,
	}, nil
}
