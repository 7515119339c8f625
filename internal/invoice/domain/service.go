package domain

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/telbill/internal/rating"
	"github.com/smallbiznis/telbill/pkg/db/pagination"
	"github.com/smallbiznis/telbill/pkg/validation"
)

var (
	ErrInvoiceNotFound    = errors.New("invoice_not_found")
	ErrUnknownInvoiceType = errors.New("unknown_invoice_type")
	ErrInvoiceVoid        = errors.New("invoice_already_void")
	ErrVoidRequiresRefund = errors.New("void_requires_refund")
	ErrNothingToBill      = errors.New("nothing_to_bill")
	ErrNoPeriodInvoice    = errors.New("no_period_invoice")
	ErrVersionConflict    = errors.New("invoice_version_conflict")
)

type Service interface {
	// GenerateInvoiceForSubscription bills the subscription's current period.
	// An invoice already generated for the period is returned unchanged.
	GenerateInvoiceForSubscription(ctx context.Context, subscriptionID snowflake.ID) (*GenerateResult, error)
	// GenerateUsageInvoice bills CDRs of the last invoiced period that were
	// rated after its invoice was issued.
	GenerateUsageInvoice(ctx context.Context, subscriptionID snowflake.ID) (*GenerateResult, error)
	Void(ctx context.Context, req VoidRequest) (*Invoice, error)
	// MarkOverdue moves open invoices whose due date is before now to overdue.
	MarkOverdue(ctx context.Context, now time.Time) (int64, error)
	Get(ctx context.Context, id snowflake.ID) (*Invoice, error)
	List(ctx context.Context, req ListRequest) (*ListResponse, error)
}

type GenerateResult struct {
	Invoice *Invoice `json:"invoice"`
	// Created is false when an existing invoice was returned.
	Created        bool                 `json:"created"`
	Usage          rating.UsageSummary  `json:"usage"`
	RatingFailures []rating.CallFailure `json:"rating_failures,omitempty"`
}

// IdempotencyKey identifies the single invoice of a variant for a period.
func IdempotencyKey(t InvoiceType, subscriptionID snowflake.ID, periodStart time.Time, suffix ...string) string {
	key := fmt.Sprintf("%s:%s:%s", t, subscriptionID, periodStart.Format("2006-01-02"))
	if len(suffix) > 0 {
		key += ":" + strings.Join(suffix, ":")
	}
	return key
}

type VoidRequest struct {
	InvoiceID snowflake.ID `json:"invoice_id"`
	Reason    string       `json:"reason"`
}

func (r VoidRequest) Validate() error {
	errs := &validation.Errors{}
	if r.InvoiceID == 0 {
		errs.Add("invoice_id", "required", "is required")
	}
	errs.Required("reason", r.Reason)
	return errs.Err()
}

type ListRequest struct {
	pagination.Pagination
	CustomerID     *snowflake.ID  `json:"customer_id,omitempty"`
	SubscriptionID *snowflake.ID  `json:"subscription_id,omitempty"`
	Status         *InvoiceStatus `json:"status,omitempty"`
}

type ListResponse struct {
	pagination.PageInfo
	Invoices []Invoice `json:"invoices"`
}
