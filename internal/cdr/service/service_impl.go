package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	cdrdomain "github.com/smallbiznis/telbill/internal/cdr/domain"
	"github.com/smallbiznis/telbill/internal/proration"
	"github.com/smallbiznis/telbill/pkg/billingerr"
	"github.com/smallbiznis/telbill/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
}

func New(p Params) cdrdomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("cdr.service"),
		genID: p.GenID,
	}
}

func (s *Service) Ingest(ctx context.Context, req cdrdomain.IngestRequest) (*cdrdomain.CDR, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	id := req.ID
	if id == 0 {
		id = s.genID.Generate()
	}
	direction := req.Direction
	if direction == "" {
		direction = cdrdomain.DirectionOutbound
	}

	now := time.Now().UTC()
	record := &cdrdomain.CDR{
		ID:               id,
		SubscriptionID:   req.SubscriptionID,
		AccountID:        req.AccountID,
		DurationSeconds:  req.DurationSeconds,
		BillableSeconds:  req.BillableSeconds,
		CalleeNumber:     strings.TrimSpace(req.CalleeNumber),
		Direction:        direction,
		Timestamp:        req.Timestamp.UTC(),
		ProcessingStatus: cdrdomain.StatusPending,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	if err := s.db.WithContext(ctx).Create(record).Error; err != nil {
		if !db.IsDuplicateKeyErr(err) {
			return nil, err
		}
		existing, findErr := s.find(ctx, s.db, id)
		if findErr != nil {
			return nil, findErr
		}
		s.log.Debug("duplicate cdr ignored", zap.String("cdr_id", id.String()))
		return existing, nil
	}
	return record, nil
}

func (s *Service) ListForPeriod(ctx context.Context, subscriptionID snowflake.ID, start, end time.Time) ([]cdrdomain.CDR, error) {
	from := proration.Date(start)
	until := proration.Date(end).AddDate(0, 0, 1)

	var items []cdrdomain.CDR
	err := s.db.WithContext(ctx).
		Where("subscription_id = ? AND timestamp >= ? AND timestamp < ?", subscriptionID, from, until).
		Order("timestamp ASC, id ASC").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Service) MarkProcessed(ctx context.Context, tx *gorm.DB, id snowflake.ID, result cdrdomain.Rated) error {
	now := time.Now().UTC()
	res := tx.WithContext(ctx).Exec(
		`UPDATE cdrs
		 SET processing_status = ?, cost = ?, call_type = ?, invoice_id = ?, failure_reason = '', processed_at = ?, updated_at = ?
		 WHERE id = ? AND processing_status IN (?, ?)`,
		cdrdomain.StatusProcessed,
		result.Cost,
		result.CallType,
		result.InvoiceID,
		now,
		now,
		id,
		cdrdomain.StatusPending,
		cdrdomain.StatusFailed,
	)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 1 {
		return nil
	}
	return s.guardError(ctx, tx, id)
}

func (s *Service) MarkFailed(ctx context.Context, tx *gorm.DB, id snowflake.ID, reason string) error {
	res := tx.WithContext(ctx).Exec(
		`UPDATE cdrs SET processing_status = ?, failure_reason = ?, updated_at = ?
		 WHERE id = ? AND processing_status IN (?, ?)`,
		cdrdomain.StatusFailed,
		reason,
		time.Now().UTC(),
		id,
		cdrdomain.StatusPending,
		cdrdomain.StatusFailed,
	)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 1 {
		return nil
	}
	return s.guardError(ctx, tx, id)
}

func (s *Service) RetryFailed(ctx context.Context, subscriptionID snowflake.ID) (int64, error) {
	res := s.db.WithContext(ctx).Exec(
		`UPDATE cdrs SET processing_status = ?, failure_reason = '', updated_at = ?
		 WHERE subscription_id = ? AND processing_status = ?`,
		cdrdomain.StatusPending,
		time.Now().UTC(),
		subscriptionID,
		cdrdomain.StatusFailed,
	)
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected > 0 {
		s.log.Info("failed cdrs requeued",
			zap.String("subscription_id", subscriptionID.String()),
			zap.Int64("count", res.RowsAffected),
		)
	}
	return res.RowsAffected, nil
}

func (s *Service) guardError(ctx context.Context, tx *gorm.DB, id snowflake.ID) error {
	existing, err := s.find(ctx, tx, id)
	if err != nil {
		return err
	}
	if existing.ProcessingStatus == cdrdomain.StatusProcessed {
		return cdrdomain.ErrCDRImmutable
	}
	return errors.New("cdr state changed concurrently")
}

func (s *Service) find(ctx context.Context, tx *gorm.DB, id snowflake.ID) (*cdrdomain.CDR, error) {
	var record cdrdomain.CDR
	err := tx.WithContext(ctx).Where("id = ?", id).Take(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, billingerr.NotFound(cdrdomain.ErrCDRNotFound, "cdr %s", id)
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}
