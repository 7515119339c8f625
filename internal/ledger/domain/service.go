package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/telbill/pkg/billingerr"
	"gorm.io/gorm"
)

var (
	ErrUnbalancedEntry   = errors.New("unbalanced_entry")
	ErrInvalidEntryLines = errors.New("invalid_entry_lines")
	ErrInvalidLineAmount = errors.New("invalid_line_amount")
	ErrUnknownAccount    = errors.New("unknown_account")
)

type Service interface {
	// Post writes entry inside tx. A second posting for the same source is a
	// no-op and reports false.
	Post(ctx context.Context, tx *gorm.DB, entry Posting) (bool, error)
	// Balance returns debits minus credits of an account code, optionally
	// scoped to one billing account.
	Balance(ctx context.Context, code AccountCode, accountID *snowflake.ID) (int64, error)
}

// Posting is a balanced entry before persistence.
type Posting struct {
	AccountID  snowflake.ID
	SourceType SourceType
	SourceID   snowflake.ID
	Currency   string
	Memo       string
	OccurredAt time.Time
	Lines      []PostingLine
}

type PostingLine struct {
	Account   AccountCode
	Direction Direction
	Amount    int64
}

// DebitLine and CreditLine build posting lines.
func DebitLine(account AccountCode, amount int64) PostingLine {
	return PostingLine{Account: account, Direction: Debit, Amount: amount}
}

func CreditLine(account AccountCode, amount int64) PostingLine {
	return PostingLine{Account: account, Direction: Credit, Amount: amount}
}

// ValidateBalanced rejects postings whose debits and credits differ. Zero
// amount lines are dropped.
func ValidateBalanced(lines []PostingLine) ([]PostingLine, error) {
	kept := make([]PostingLine, 0, len(lines))
	var debit, credit int64
	for _, line := range lines {
		if line.Amount < 0 {
			return nil, billingerr.Ledger(ErrInvalidLineAmount, "%s %d", line.Account, line.Amount)
		}
		if _, ok := ChartOfAccounts[line.Account]; !ok {
			return nil, billingerr.Ledger(ErrUnknownAccount, "%s", line.Account)
		}
		if line.Amount == 0 {
			continue
		}
		switch line.Direction {
		case Debit:
			debit += line.Amount
		case Credit:
			credit += line.Amount
		default:
			return nil, billingerr.Ledger(ErrInvalidEntryLines, "direction %q", line.Direction)
		}
		kept = append(kept, line)
	}
	if len(kept) < 2 {
		return nil, billingerr.Ledger(ErrInvalidEntryLines, "need at least two non-zero lines")
	}
	if debit != credit {
		return nil, billingerr.Ledger(ErrUnbalancedEntry, "debit %d credit %d", debit, credit)
	}
	return kept, nil
}
