package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/telbill/pkg/validation"
	"gorm.io/gorm"
)

var (
	ErrCDRNotFound  = errors.New("cdr_not_found")
	ErrCDRImmutable = errors.New("cdr_already_processed")
)

type Service interface {
	// Ingest stores a CDR. Re-sending a CDR id returns the stored record.
	Ingest(ctx context.Context, req IngestRequest) (*CDR, error)
	// ListForPeriod returns the subscription's CDRs whose timestamp falls on
	// a date in [start, end], ordered by timestamp then id.
	ListForPeriod(ctx context.Context, subscriptionID snowflake.ID, start, end time.Time) ([]CDR, error)
	MarkProcessed(ctx context.Context, tx *gorm.DB, id snowflake.ID, result Rated) error
	MarkFailed(ctx context.Context, tx *gorm.DB, id snowflake.ID, reason string) error
	// RetryFailed moves failed CDRs of a subscription back to pending.
	RetryFailed(ctx context.Context, subscriptionID snowflake.ID) (int64, error)
}

// Rated is the outcome persisted on a processed CDR.
type Rated struct {
	CallType  string
	Cost      int64
	InvoiceID snowflake.ID
}

type IngestRequest struct {
	ID              snowflake.ID `json:"id"`
	SubscriptionID  snowflake.ID `json:"subscription_id"`
	AccountID       snowflake.ID `json:"account_id"`
	DurationSeconds int64        `json:"duration_seconds"`
	BillableSeconds int64        `json:"billable_seconds"`
	CalleeNumber    string       `json:"callee_number"`
	Direction       Direction    `json:"direction"`
	Timestamp       time.Time    `json:"timestamp"`
}

// Validate checks structural fields only. A missing callee is accepted here
// and surfaces as a rating failure.
func (r IngestRequest) Validate() error {
	errs := &validation.Errors{}
	if r.SubscriptionID == 0 {
		errs.Add("subscription_id", "required", "is required")
	}
	if r.AccountID == 0 {
		errs.Add("account_id", "required", "is required")
	}
	errs.NonNegative("duration_seconds", r.DurationSeconds)
	errs.NonNegative("billable_seconds", r.BillableSeconds)
	if r.BillableSeconds > r.DurationSeconds {
		errs.Add("billable_seconds", "exceeds_duration", "must not exceed duration_seconds")
	}
	if r.Direction != "" {
		errs.OneOf("direction", string(r.Direction), string(DirectionOutbound), string(DirectionInbound))
	}
	if r.Timestamp.IsZero() {
		errs.Add("timestamp", "required", "is required")
	}
	return errs.Err()
}
