package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

type ResultStatus string

const (
	ResultSucceeded ResultStatus = "succeeded"
	ResultFailed    ResultStatus = "failed"
)

// Result is the outcome of one subscription in a run.
type Result struct {
	SubscriptionID snowflake.ID  `json:"subscription_id"`
	Status         ResultStatus  `json:"status"`
	Reason         string        `json:"reason,omitempty"`
	InvoiceID      *snowflake.ID `json:"invoice_id,omitempty"`
	// Created is false when the period invoice already existed.
	Created        bool  `json:"created"`
	RatingFailures int   `json:"rating_failures"`
	DurationMs     int64 `json:"duration_ms"`
}

// Report lists every due subscription of a run with its outcome.
type Report struct {
	RunID      snowflake.ID `json:"run_id"`
	AsOf       time.Time    `json:"as_of"`
	StartedAt  time.Time    `json:"started_at"`
	FinishedAt time.Time    `json:"finished_at"`
	Results    []Result     `json:"results"`
}

func (r Report) Succeeded() int { return r.count(ResultSucceeded) }

func (r Report) Failed() int { return r.count(ResultFailed) }

func (r Report) count(status ResultStatus) int {
	n := 0
	for _, res := range r.Results {
		if res.Status == status {
			n++
		}
	}
	return n
}

// RunRecord persists a report for later inspection.
type RunRecord struct {
	ID         snowflake.ID                 `gorm:"primaryKey"`
	AsOf       time.Time                    `gorm:"not null"`
	StartedAt  time.Time                    `gorm:"not null;index"`
	FinishedAt time.Time                    `gorm:"not null"`
	Succeeded  int                          `gorm:"not null"`
	Failed     int                          `gorm:"not null"`
	Results    datatypes.JSONType[[]Result] `gorm:"not null"`
	CreatedAt  time.Time                    `gorm:"not null"`
}

// TableName sets the database table name.
func (RunRecord) TableName() string { return "billing_cycle_runs" }
