package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, plan *RatePlan) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*RatePlan, error)
	List(ctx context.Context, db *gorm.DB, active *bool) ([]RatePlan, error)
	Save(ctx context.Context, db *gorm.DB, plan *RatePlan) error
	// IsReferenced reports whether any non-draft invoice was billed on the plan.
	IsReferenced(ctx context.Context, db *gorm.DB, id snowflake.ID) (bool, error)
}
