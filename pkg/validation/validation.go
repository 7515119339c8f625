// Package validation collects field-level validation failures for typed
// request structs.
package validation

import (
	"strings"
)

// FieldError describes one invalid field.
type FieldError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Errors is a list of field failures. A nil *Errors means the request is valid.
type Errors struct {
	Fields []FieldError `json:"fields"`
}

func (e *Errors) Error() string {
	if e == nil || len(e.Fields) == 0 {
		return "validation_failed"
	}
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Message)
	}
	return "validation_failed: " + strings.Join(parts, "; ")
}

// Add records a field failure.
func (e *Errors) Add(field, code, message string) {
	e.Fields = append(e.Fields, FieldError{Field: field, Code: code, Message: message})
}

// Has reports whether field failed validation.
func (e *Errors) Has(field string) bool {
	if e == nil {
		return false
	}
	for _, f := range e.Fields {
		if f.Field == field {
			return true
		}
	}
	return false
}

// Err returns nil when no failures were recorded.
func (e *Errors) Err() error {
	if e == nil || len(e.Fields) == 0 {
		return nil
	}
	return e
}

// Required records a failure when value is blank.
func (e *Errors) Required(field, value string) {
	if strings.TrimSpace(value) == "" {
		e.Add(field, "required", "is required")
	}
}

// NonNegative records a failure when value < 0.
func (e *Errors) NonNegative(field string, value int64) {
	if value < 0 {
		e.Add(field, "negative", "must not be negative")
	}
}

// Positive records a failure when value <= 0.
func (e *Errors) Positive(field string, value int64) {
	if value <= 0 {
		e.Add(field, "not_positive", "must be greater than zero")
	}
}

// OneOf records a failure when value is not in allowed.
func (e *Errors) OneOf(field, value string, allowed ...string) {
	for _, a := range allowed {
		if value == a {
			return
		}
	}
	e.Add(field, "invalid_choice", "must be one of "+strings.Join(allowed, ", "))
}
