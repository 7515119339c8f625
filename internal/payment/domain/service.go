package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	invoicedomain "github.com/smallbiznis/telbill/internal/invoice/domain"
	"github.com/smallbiznis/telbill/pkg/validation"
)

var (
	ErrNonPositiveAmount     = errors.New("non_positive_amount")
	ErrOverpayment           = errors.New("overpayment")
	ErrRefundExceedsPaid     = errors.New("refund_exceeds_paid")
	ErrInvoiceVoid           = errors.New("invoice_void")
	ErrInvoiceNotFinalized   = errors.New("invoice_not_finalized")
	ErrEventAlreadyProcessed = errors.New("event_already_processed")
	ErrInvoiceBusy           = errors.New("invoice_busy")
)

type Service interface {
	ApplyPayment(ctx context.Context, invoiceID snowflake.ID, amount int64, reference string) (*invoicedomain.Invoice, error)
	// Refund returns money from the most recent completed payments first.
	Refund(ctx context.Context, invoiceID snowflake.ID, amount int64, reference string) (*invoicedomain.Invoice, error)
	// ProcessEvent applies a normalized gateway event once per reference and type.
	ProcessEvent(ctx context.Context, event Event) (*invoicedomain.Invoice, error)
	ListPayments(ctx context.Context, invoiceID snowflake.ID) ([]Payment, error)
}

// Event is a gateway notification already verified by its adapter.
type Event struct {
	InvoiceID        snowflake.ID `json:"invoice_id"`
	Amount           int64        `json:"amount"`
	GatewayReference string       `json:"gateway_reference"`
	EventType        string       `json:"event_type"`
	FailureReason    string       `json:"failure_reason,omitempty"`
}

func (e Event) Validate() error {
	errs := &validation.Errors{}
	if e.InvoiceID == 0 {
		errs.Add("invoice_id", "required", "is required")
	}
	errs.Required("gateway_reference", e.GatewayReference)
	errs.OneOf("event_type", e.EventType, EventTypeCompleted, EventTypeFailed, EventTypeRefunded)
	if e.EventType != EventTypeFailed {
		errs.Positive("amount", e.Amount)
	}
	return errs.Err()
}
