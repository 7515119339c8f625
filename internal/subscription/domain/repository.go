package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, subscription *Subscription) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Subscription, error)
	FindDue(ctx context.Context, db *gorm.DB, before time.Time, limit int) ([]Subscription, error)
	// UpdatePeriod is a compare-and-set on current_period_end.
	UpdatePeriod(ctx context.Context, db *gorm.DB, id snowflake.ID, expectedEnd time.Time, next *Subscription) (bool, error)
	UpdateLifecycle(ctx context.Context, db *gorm.DB, subscription *Subscription) error
	InsertAddon(ctx context.Context, db *gorm.DB, addon *Addon) error
	ListActiveAddons(ctx context.Context, db *gorm.DB, subscriptionID snowflake.ID) ([]Addon, error)
}
