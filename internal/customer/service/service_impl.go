package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	customerdomain "github.com/smallbiznis/telbill/internal/customer/domain"
	"github.com/smallbiznis/telbill/pkg/billingerr"
	"github.com/smallbiznis/telbill/pkg/repository"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
}

type Service struct {
	log   *zap.Logger
	genID *snowflake.Node
	store repository.Repository[customerdomain.Customer]
}

func New(p Params) customerdomain.Service {
	return &Service{
		log:   p.Log.Named("customer.service"),
		genID: p.GenID,
		store: repository.ProvideStore[customerdomain.Customer](p.DB),
	}
}

func (s *Service) Create(ctx context.Context, req customerdomain.CreateRequest) (*customerdomain.Customer, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	c := &customerdomain.Customer{
		ID:        s.genID.Generate(),
		AccountID: req.AccountID,
		Name:      strings.TrimSpace(req.Name),
		Email:     strings.TrimSpace(req.Email),
		State:     strings.TrimSpace(req.State),
		Country:   strings.TrimSpace(req.Country),
		Metadata:  datatypes.JSONMap(req.Metadata),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.Create(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *Service) Get(ctx context.Context, id snowflake.ID) (*customerdomain.Customer, error) {
	c, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, billingerr.NotFound(customerdomain.ErrCustomerNotFound, "customer %s", id)
	}
	return c, nil
}
