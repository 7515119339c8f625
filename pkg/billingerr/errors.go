// Package billingerr defines the error taxonomy shared by the rating,
// proration, tax, invoice and payment packages.
//
// Each error carries a kind sentinel and a domain code sentinel, so callers can
// match either one with errors.Is:
//
//	errors.Is(err, billingerr.ErrLedger)
//	errors.Is(err, paymentdomain.ErrOverpayment)
package billingerr

import (
	"errors"
	"fmt"
)

// Kind sentinels.
var (
	ErrRating          = errors.New("rating_error")
	ErrProration       = errors.New("proration_error")
	ErrTaxJurisdiction = errors.New("tax_jurisdiction_error")
	ErrLedger          = errors.New("ledger_error")
	ErrNotFound        = errors.New("not_found")
)

// Error is a classified billing failure.
type Error struct {
	Kind   error
	Code   error
	Detail string
}

func (e *Error) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Code)
	}
	return fmt.Sprintf("%s: %s: %s", e.Kind, e.Code, e.Detail)
}

// Unwrap exposes both the kind and the code to errors.Is.
func (e *Error) Unwrap() []error {
	return []error{e.Kind, e.Code}
}

func newError(kind, code error, format string, args ...any) *Error {
	detail := format
	if len(args) > 0 {
		detail = fmt.Sprintf(format, args...)
	}
	return &Error{Kind: kind, Code: code, Detail: detail}
}

// Rating reports a CDR that could not be priced.
func Rating(code error, format string, args ...any) *Error {
	return newError(ErrRating, code, format, args...)
}

// Proration reports an invalid proration range.
func Proration(code error, format string, args ...any) *Error {
	return newError(ErrProration, code, format, args...)
}

// TaxJurisdiction reports an unrecognized tax jurisdiction.
func TaxJurisdiction(code error, format string, args ...any) *Error {
	return newError(ErrTaxJurisdiction, code, format, args...)
}

// Ledger reports a financial inconsistency on an invoice or payment.
func Ledger(code error, format string, args ...any) *Error {
	return newError(ErrLedger, code, format, args...)
}

// NotFound reports a missing subscription, plan, customer or invoice.
func NotFound(code error, format string, args ...any) *Error {
	return newError(ErrNotFound, code, format, args...)
}

// KindOf returns the kind label of err, or "internal" when unclassified.
func KindOf(err error) string {
	var be *Error
	if errors.As(err, &be) {
		return be.Kind.Error()
	}
	return "internal"
}
