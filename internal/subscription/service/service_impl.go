package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	customerdomain "github.com/smallbiznis/telbill/internal/customer/domain"
	"github.com/smallbiznis/telbill/internal/proration"
	rateplandomain "github.com/smallbiznis/telbill/internal/rateplan/domain"
	subscriptiondomain "github.com/smallbiznis/telbill/internal/subscription/domain"
	"github.com/smallbiznis/telbill/pkg/billingerr"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	GenID       *snowflake.Node
	Repo        subscriptiondomain.Repository
	RatePlanSvc rateplandomain.Service
	CustomerSvc customerdomain.Service
}

type Service struct {
	db          *gorm.DB
	log         *zap.Logger
	genID       *snowflake.Node
	repo        subscriptiondomain.Repository
	ratePlanSvc rateplandomain.Service
	customerSvc customerdomain.Service
}

func New(p Params) subscriptiondomain.Service {
	return &Service{
		db:          p.DB,
		log:         p.Log.Named("subscription.service"),
		genID:       p.GenID,
		repo:        p.Repo,
		ratePlanSvc: p.RatePlanSvc,
		customerSvc: p.CustomerSvc,
	}
}

func (s *Service) Create(ctx context.Context, req subscriptiondomain.CreateRequest) (*subscriptiondomain.Subscription, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	plan, err := s.ratePlanSvc.Get(ctx, req.RatePlanID)
	if err != nil {
		return nil, err
	}
	if !plan.IsActive {
		return nil, subscriptiondomain.ErrSubscriptionInactive
	}
	if _, err := s.customerSvc.Get(ctx, req.CustomerID); err != nil {
		return nil, err
	}

	anchorDay := req.AnchorDay
	if anchorDay == 0 {
		anchorDay = proration.Date(req.StartDate).Day()
	}
	period, err := proration.PeriodContaining(req.StartDate, req.BillingCycle, anchorDay)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	sub := &subscriptiondomain.Subscription{
		ID:                 s.genID.Generate(),
		CustomerID:         req.CustomerID,
		AccountID:          req.AccountID,
		RatePlanID:         req.RatePlanID,
		BillingCycle:       req.BillingCycle,
		BillingAnchorDay:   anchorDay,
		Postpaid:           req.Postpaid,
		Status:             subscriptiondomain.SubscriptionStatusActive,
		StartedAt:          proration.Date(req.StartDate),
		CurrentPeriodStart: period.Start,
		CurrentPeriodEnd:   period.End,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if err := s.repo.Insert(ctx, s.db, sub); err != nil {
		return nil, err
	}

	s.log.Info("subscription created",
		zap.String("subscription_id", sub.ID.String()),
		zap.String("rate_plan_id", sub.RatePlanID.String()),
		zap.String("billing_cycle", string(sub.BillingCycle)),
	)
	return sub, nil
}

func (s *Service) Get(ctx context.Context, id snowflake.ID) (*subscriptiondomain.Subscription, error) {
	sub, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if sub == nil {
		return nil, billingerr.NotFound(subscriptiondomain.ErrSubscriptionNotFound, "subscription %s", id)
	}
	return sub, nil
}

func (s *Service) ListDue(ctx context.Context, asOf time.Time, limit int) ([]subscriptiondomain.Subscription, error) {
	return s.repo.FindDue(ctx, s.db, proration.Date(asOf), limit)
}

func (s *Service) AdvancePeriod(ctx context.Context, id snowflake.ID, expectedEnd time.Time) (*subscriptiondomain.Subscription, error) {
	var result *subscriptiondomain.Subscription
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		sub, err := s.repo.FindByID(ctx, tx, id)
		if err != nil {
			return err
		}
		if sub == nil {
			return billingerr.NotFound(subscriptiondomain.ErrSubscriptionNotFound, "subscription %s", id)
		}
		if !sub.CurrentPeriodEnd.Equal(proration.Date(expectedEnd)) {
			// Already advanced by an earlier run.
			result = sub
			return nil
		}

		next, err := proration.Next(sub.CurrentPeriod(), sub.BillingCycle, sub.BillingAnchorDay)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		sub.CurrentPeriodStart = next.Start
		sub.CurrentPeriodEnd = next.End
		sub.UpdatedAt = now
		if sub.EndsAt != nil && next.Start.After(proration.Date(*sub.EndsAt)) {
			sub.Status = subscriptiondomain.SubscriptionStatusCancelled
			sub.CancelledAt = &now
		}

		ok, err := s.repo.UpdatePeriod(ctx, tx, id, proration.Date(expectedEnd), sub)
		if err != nil {
			return err
		}
		if !ok {
			reloaded, err := s.repo.FindByID(ctx, tx, id)
			if err != nil {
				return err
			}
			result = reloaded
			return nil
		}
		result = sub
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

var allowedTransitions = map[subscriptiondomain.SubscriptionStatus][]subscriptiondomain.SubscriptionStatus{
	subscriptiondomain.SubscriptionStatusActive:    {subscriptiondomain.SubscriptionStatusSuspended, subscriptiondomain.SubscriptionStatusCancelled},
	subscriptiondomain.SubscriptionStatusSuspended: {subscriptiondomain.SubscriptionStatusActive, subscriptiondomain.SubscriptionStatusCancelled},
}

func (s *Service) Transition(ctx context.Context, id snowflake.ID, target subscriptiondomain.SubscriptionStatus) (*subscriptiondomain.Subscription, error) {
	var result *subscriptiondomain.Subscription
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		sub, err := s.repo.FindByID(ctx, tx, id)
		if err != nil {
			return err
		}
		if sub == nil {
			return billingerr.NotFound(subscriptiondomain.ErrSubscriptionNotFound, "subscription %s", id)
		}
		if sub.Status == target {
			result = sub
			return nil
		}
		if !transitionAllowed(sub.Status, target) {
			return subscriptiondomain.ErrInvalidTransition
		}

		now := time.Now().UTC()
		sub.Status = target
		sub.UpdatedAt = now
		if target == subscriptiondomain.SubscriptionStatusCancelled {
			sub.CancelledAt = &now
		}
		if err := s.repo.UpdateLifecycle(ctx, tx, sub); err != nil {
			return err
		}
		result = sub
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// ScheduleEnd sets the last billable date. The period containing it is
// prorated and the subscription is cancelled when that period closes.
func (s *Service) ScheduleEnd(ctx context.Context, id snowflake.ID, endsAt time.Time) (*subscriptiondomain.Subscription, error) {
	sub, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if sub.Status != subscriptiondomain.SubscriptionStatusActive {
		return nil, subscriptiondomain.ErrSubscriptionInactive
	}
	end := proration.Date(endsAt)
	if end.Before(sub.CurrentPeriodStart) {
		return nil, billingerr.Proration(proration.ErrOutsidePeriod, "end %s precedes open period", end.Format(time.DateOnly))
	}

	sub.EndsAt = &end
	sub.UpdatedAt = time.Now().UTC()
	if err := s.repo.UpdateLifecycle(ctx, s.db, sub); err != nil {
		return nil, err
	}
	return sub, nil
}

func (s *Service) AddAddon(ctx context.Context, req subscriptiondomain.AddAddonRequest) (*subscriptiondomain.Addon, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if _, err := s.Get(ctx, req.SubscriptionID); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	addon := &subscriptiondomain.Addon{
		ID:             s.genID.Generate(),
		SubscriptionID: req.SubscriptionID,
		Code:           strings.TrimSpace(req.Code),
		Description:    strings.TrimSpace(req.Description),
		Quantity:       req.Quantity,
		UnitPrice:      req.UnitPrice,
		Active:         true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.repo.InsertAddon(ctx, s.db, addon); err != nil {
		return nil, err
	}
	return addon, nil
}

func (s *Service) ListAddons(ctx context.Context, subscriptionID snowflake.ID) ([]subscriptiondomain.Addon, error) {
	return s.repo.ListActiveAddons(ctx, s.db, subscriptionID)
}

func transitionAllowed(from, to subscriptiondomain.SubscriptionStatus) bool {
	for _, allowed := range allowedTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}
