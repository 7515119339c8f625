package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	subscriptiondomain "github.com/smallbiznis/telbill/internal/subscription/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() subscriptiondomain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, s *subscriptiondomain.Subscription) error {
	return db.WithContext(ctx).Create(s).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*subscriptiondomain.Subscription, error) {
	var s subscriptiondomain.Subscription
	err := db.WithContext(ctx).Where("id = ?", id).Take(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *repo) FindDue(ctx context.Context, db *gorm.DB, before time.Time, limit int) ([]subscriptiondomain.Subscription, error) {
	var items []subscriptiondomain.Subscription
	stmt := db.WithContext(ctx).
		Where("status = ? AND current_period_end < ?", subscriptiondomain.SubscriptionStatusActive, before).
		Order("current_period_end ASC, id ASC")
	if limit > 0 {
		stmt = stmt.Limit(limit)
	}
	if err := stmt.Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) UpdatePeriod(ctx context.Context, db *gorm.DB, id snowflake.ID, expectedEnd time.Time, next *subscriptiondomain.Subscription) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE subscriptions
		 SET current_period_start = ?, current_period_end = ?, status = ?, cancelled_at = ?, updated_at = ?
		 WHERE id = ? AND current_period_end = ?`,
		next.CurrentPeriodStart,
		next.CurrentPeriodEnd,
		next.Status,
		next.CancelledAt,
		next.UpdatedAt,
		id,
		expectedEnd,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repo) UpdateLifecycle(ctx context.Context, db *gorm.DB, s *subscriptiondomain.Subscription) error {
	return db.WithContext(ctx).Exec(
		`UPDATE subscriptions SET status = ?, ends_at = ?, cancelled_at = ?, updated_at = ? WHERE id = ?`,
		s.Status,
		s.EndsAt,
		s.CancelledAt,
		s.UpdatedAt,
		s.ID,
	).Error
}

func (r *repo) InsertAddon(ctx context.Context, db *gorm.DB, a *subscriptiondomain.Addon) error {
	return db.WithContext(ctx).Create(a).Error
}

func (r *repo) ListActiveAddons(ctx context.Context, db *gorm.DB, subscriptionID snowflake.ID) ([]subscriptiondomain.Addon, error) {
	var addons []subscriptiondomain.Addon
	err := db.WithContext(ctx).
		Where("subscription_id = ? AND active = ?", subscriptionID, true).
		Order("id ASC").
		Find(&addons).Error
	return addons, err
}
