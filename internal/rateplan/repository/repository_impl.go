package repository

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	rateplandomain "github.com/smallbiznis/telbill/internal/rateplan/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() rateplandomain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, p *rateplandomain.RatePlan) error {
	return db.WithContext(ctx).Create(p).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*rateplandomain.RatePlan, error) {
	var p rateplandomain.RatePlan
	err := db.WithContext(ctx).Where("id = ?", id).Take(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, active *bool) ([]rateplandomain.RatePlan, error) {
	var plans []rateplandomain.RatePlan
	stmt := db.WithContext(ctx).Model(&rateplandomain.RatePlan{})
	if active != nil {
		stmt = stmt.Where("is_active = ?", *active)
	}
	if err := stmt.Order("code ASC").Find(&plans).Error; err != nil {
		return nil, err
	}
	return plans, nil
}

func (r *repo) Save(ctx context.Context, db *gorm.DB, p *rateplandomain.RatePlan) error {
	return db.WithContext(ctx).Save(p).Error
}

func (r *repo) IsReferenced(ctx context.Context, db *gorm.DB, id snowflake.ID) (bool, error) {
	var count int64
	err := db.WithContext(ctx).Raw(
		`SELECT COUNT(1) FROM invoices WHERE rate_plan_id = ? AND status <> 'draft'`,
		id,
	).Scan(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
