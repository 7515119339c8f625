package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/telbill/internal/config"
	rateplandomain "github.com/smallbiznis/telbill/internal/rateplan/domain"
	"github.com/smallbiznis/telbill/pkg/billingerr"
	"github.com/smallbiznis/telbill/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	GenID   *snowflake.Node
	Repo    rateplandomain.Repository
	Billing *config.BillingConfigHolder
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	repo  rateplandomain.Repository
	cache *expirable.LRU[snowflake.ID, rateplandomain.RatePlan]
}

func New(p Params) rateplandomain.Service {
	cfg := p.Billing.Get()
	size := cfg.PlanCacheSize
	if size <= 0 {
		size = 256
	}
	ttl := cfg.PlanCacheTTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("rateplan.service"),
		genID: p.GenID,
		repo:  p.Repo,
		cache: expirable.NewLRU[snowflake.ID, rateplandomain.RatePlan](size, nil, ttl),
	}
}

func (s *Service) Get(ctx context.Context, id snowflake.ID) (*rateplandomain.RatePlan, error) {
	if plan, ok := s.cache.Get(id); ok {
		return &plan, nil
	}

	plan, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if plan == nil {
		return nil, billingerr.NotFound(rateplandomain.ErrPlanNotFound, "rate plan %s", id)
	}
	s.cache.Add(id, *plan)
	return plan, nil
}

func (s *Service) List(ctx context.Context, req rateplandomain.ListRequest) ([]rateplandomain.RatePlan, error) {
	return s.repo.List(ctx, s.db, req.Active)
}

func (s *Service) Create(ctx context.Context, req rateplandomain.CreateRequest) (*rateplandomain.RatePlan, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	currency := strings.ToUpper(strings.TrimSpace(req.Currency))
	if currency == "" {
		currency = "INR"
	}

	now := time.Now().UTC()
	plan := &rateplandomain.RatePlan{
		ID:                   s.genID.Generate(),
		Code:                 strings.TrimSpace(req.Code),
		Name:                 strings.TrimSpace(req.Name),
		Currency:             currency,
		MonthlyPrice:         req.MonthlyPrice,
		AnnualPrice:          req.AnnualPrice,
		SetupFee:             req.SetupFee,
		IncludedMinutes:      req.IncludedMinutes,
		OverageRatePerMinute: req.OverageRatePerMinute,
		LocalMultiplier:      nullable(req.Multipliers.Local),
		STDMultiplier:        nullable(req.Multipliers.STD),
		ISDMultiplier:        nullable(req.Multipliers.ISD),
		IsActive:             true,
		CreatedAt:            now,
		UpdatedAt:            now,
	}

	if err := s.repo.Insert(ctx, s.db, plan); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return nil, rateplandomain.ErrDuplicateCode
		}
		return nil, err
	}

	s.log.Info("rate plan created", zap.String("rate_plan_id", plan.ID.String()), zap.String("code", plan.Code))
	return plan, nil
}

// Update edits a plan that has never been billed. Billed plans are frozen so
// past invoices stay reproducible; publish a new plan code instead.
func (s *Service) Update(ctx context.Context, req rateplandomain.UpdateRequest) (*rateplandomain.RatePlan, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	var updated *rateplandomain.RatePlan
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		plan, err := s.repo.FindByID(ctx, tx, req.ID)
		if err != nil {
			return err
		}
		if plan == nil {
			return billingerr.NotFound(rateplandomain.ErrPlanNotFound, "rate plan %s", req.ID)
		}

		referenced, err := s.repo.IsReferenced(ctx, tx, req.ID)
		if err != nil {
			return err
		}
		if referenced {
			return rateplandomain.ErrPlanReferenced
		}

		if req.Name != nil {
			plan.Name = strings.TrimSpace(*req.Name)
		}
		setInt(&plan.MonthlyPrice, req.MonthlyPrice)
		setInt(&plan.AnnualPrice, req.AnnualPrice)
		setInt(&plan.SetupFee, req.SetupFee)
		setInt(&plan.IncludedMinutes, req.IncludedMinutes)
		setInt(&plan.OverageRatePerMinute, req.OverageRatePerMinute)
		if req.Multipliers.Local != nil {
			plan.LocalMultiplier = nullable(req.Multipliers.Local)
		}
		if req.Multipliers.STD != nil {
			plan.STDMultiplier = nullable(req.Multipliers.STD)
		}
		if req.Multipliers.ISD != nil {
			plan.ISDMultiplier = nullable(req.Multipliers.ISD)
		}
		plan.UpdatedAt = time.Now().UTC()

		if err := s.repo.Save(ctx, tx, plan); err != nil {
			return err
		}
		updated = plan
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.cache.Remove(req.ID)
	return updated, nil
}

func (s *Service) Deactivate(ctx context.Context, id snowflake.ID) (*rateplandomain.RatePlan, error) {
	plan, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if plan == nil {
		return nil, billingerr.NotFound(rateplandomain.ErrPlanNotFound, "rate plan %s", id)
	}
	if !plan.IsActive {
		return plan, nil
	}

	plan.IsActive = false
	plan.UpdatedAt = time.Now().UTC()
	if err := s.repo.Save(ctx, s.db, plan); err != nil {
		return nil, err
	}
	s.cache.Remove(id)
	return plan, nil
}

func nullable(v *decimal.Decimal) decimal.NullDecimal {
	if v == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(*v)
}

func setInt(dst *int64, v *int64) {
	if v != nil {
		*dst = *v
	}
}
