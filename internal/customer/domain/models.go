package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/telbill/pkg/validation"
	"gorm.io/datatypes"
)

// Customer is the billed party. State and Country drive GST jurisdiction.
type Customer struct {
	ID        snowflake.ID      `gorm:"primaryKey" json:"id"`
	AccountID snowflake.ID      `gorm:"not null;index" json:"account_id"`
	Name      string            `gorm:"type:text;not null" json:"name"`
	Email     string            `gorm:"type:text;not null" json:"email"`
	State     string            `gorm:"type:text" json:"state"`
	Country   string            `gorm:"type:text;not null" json:"country"`
	Metadata  datatypes.JSONMap `json:"metadata,omitempty"`
	CreatedAt time.Time         `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time         `gorm:"not null" json:"updated_at"`
}

func (Customer) TableName() string { return "customers" }

var ErrCustomerNotFound = errors.New("customer_not_found")

type Service interface {
	Create(ctx context.Context, req CreateRequest) (*Customer, error)
	Get(ctx context.Context, id snowflake.ID) (*Customer, error)
}

type CreateRequest struct {
	AccountID snowflake.ID   `json:"account_id"`
	Name      string         `json:"name"`
	Email     string         `json:"email"`
	State     string         `json:"state"`
	Country   string         `json:"country"`
	Metadata  map[string]any `json:"metadata"`
}

func (r CreateRequest) Validate() error {
	errs := &validation.Errors{}
	if r.AccountID == 0 {
		errs.Add("account_id", "required", "is required")
	}
	errs.Required("name", r.Name)
	errs.Required("email", r.Email)
	errs.Required("country", r.Country)
	return errs.Err()
}
