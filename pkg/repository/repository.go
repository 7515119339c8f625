package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/telbill/pkg/db/option"
	"gorm.io/gorm"
)

// Repository is a generic gorm-backed store. Query structs use gorm's
// non-zero field matching.
type Repository[T any] interface {
	WithTrx(tx *gorm.DB) Repository[T]
	Find(ctx context.Context, query *T, opts ...option.QueryOption) ([]*T, error)
	FindOne(ctx context.Context, query *T, opts ...option.QueryOption) (*T, error)
	FindByID(ctx context.Context, id snowflake.ID) (*T, error)
	Create(ctx context.Context, resource *T) error
	BatchCreate(ctx context.Context, resources []*T) error
	Update(ctx context.Context, id snowflake.ID, values map[string]any) (int64, error)
	Count(ctx context.Context, query *T, opts ...option.QueryOption) (int64, error)
}
