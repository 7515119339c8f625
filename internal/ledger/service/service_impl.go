package service

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	ledgerdomain "github.com/smallbiznis/telbill/internal/ledger/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
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

func NewService(p Params) ledgerdomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("ledger.service"),
		genID: p.GenID,
	}
}

func (s *Service) Post(ctx context.Context, tx *gorm.DB, posting ledgerdomain.Posting) (bool, error) {
	lines, err := ledgerdomain.ValidateBalanced(posting.Lines)
	if err != nil {
		return false, err
	}
	if posting.SourceID == 0 || posting.SourceType == "" {
		return false, fmt.Errorf("ledger posting without source")
	}
	occurredAt := posting.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = time.Now()
	}

	accounts, err := s.ensureAccounts(ctx, tx)
	if err != nil {
		return false, err
	}

	now := time.Now().UTC()
	entry := ledgerdomain.Entry{
		ID:         s.genID.Generate(),
		AccountID:  posting.AccountID,
		SourceType: posting.SourceType,
		SourceID:   posting.SourceID,
		Currency:   posting.Currency,
		Memo:       posting.Memo,
		OccurredAt: occurredAt.UTC(),
		CreatedAt:  now,
	}
	result := tx.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "source_type"}, {Name: "source_id"}},
			DoNothing: true,
		}).
		Create(&entry)
	if result.Error != nil {
		return false, result.Error
	}
	if result.RowsAffected == 0 {
		s.log.Debug("ledger entry already posted",
			zap.String("source_type", string(posting.SourceType)),
			zap.String("source_id", posting.SourceID.String()),
		)
		return false, nil
	}

	rows := make([]ledgerdomain.EntryLine, 0, len(lines))
	for _, line := range lines {
		rows = append(rows, ledgerdomain.EntryLine{
			ID:            s.genID.Generate(),
			LedgerEntryID: entry.ID,
			AccountID:     accounts[line.Account],
			Direction:     line.Direction,
			Amount:        line.Amount,
			CreatedAt:     now,
		})
	}
	if err := tx.WithContext(ctx).Create(&rows).Error; err != nil {
		return false, err
	}
	return true, nil
}

func (s *Service) Balance(ctx context.Context, code ledgerdomain.AccountCode, accountID *snowflake.ID) (int64, error) {
	query := s.db.WithContext(ctx).
		Table("ledger_entry_lines AS l").
		Joins("JOIN ledger_accounts a ON a.id = l.account_id").
		Joins("JOIN ledger_entries e ON e.id = l.ledger_entry_id").
		Where("a.code = ?", code)
	if accountID != nil {
		query = query.Where("e.account_id = ?", *accountID)
	}

	var balance int64
	err := query.Select(
		"COALESCE(SUM(CASE WHEN l.direction = ? THEN l.amount ELSE -l.amount END), 0)",
		ledgerdomain.Debit,
	).Scan(&balance).Error
	return balance, err
}

// ensureAccounts seeds the chart of accounts and returns ids by code.
func (s *Service) ensureAccounts(ctx context.Context, tx *gorm.DB) (map[ledgerdomain.AccountCode]snowflake.ID, error) {
	var existing []ledgerdomain.Account
	if err := tx.WithContext(ctx).Find(&existing).Error; err != nil {
		return nil, err
	}
	ids := make(map[ledgerdomain.AccountCode]snowflake.ID, len(ledgerdomain.ChartOfAccounts))
	for _, account := range existing {
		ids[account.Code] = account.ID
	}
	if len(ids) >= len(ledgerdomain.ChartOfAccounts) {
		return ids, nil
	}

	now := time.Now().UTC()
	for code, name := range ledgerdomain.ChartOfAccounts {
		if _, ok := ids[code]; ok {
			continue
		}
		account := ledgerdomain.Account{
			ID:        s.genID.Generate(),
			Code:      code,
			Name:      name,
			CreatedAt: now,
		}
		if err := tx.WithContext(ctx).
			Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "code"}}, DoNothing: true}).
			Create(&account).Error; err != nil {
			return nil, err
		}
	}

	existing = existing[:0]
	if err := tx.WithContext(ctx).Find(&existing).Error; err != nil {
		return nil, err
	}
	for _, account := range existing {
		ids[account.Code] = account.ID
	}
	return ids, nil
}
