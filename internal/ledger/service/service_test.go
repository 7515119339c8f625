package service_test

import (
	"context"
	"testing"

	ledgerdomain "github.com/smallbiznis/telbill/internal/ledger/domain"
	"github.com/smallbiznis/telbill/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestPostIsIdempotentPerSource(t *testing.T) {
	stack := testutil.NewStack(t, testutil.Date(2026, 1, 1))
	ctx := context.Background()
	source := stack.Node.Generate()
	account := stack.Node.Generate()

	posting := ledgerdomain.Posting{
		AccountID:  account,
		SourceType: ledgerdomain.SourceTypeInvoice,
		SourceID:   source,
		Currency:   "INR",
		Lines: []ledgerdomain.PostingLine{
			ledgerdomain.DebitLine(ledgerdomain.AccountAccountsReceivable, 41182),
			ledgerdomain.CreditLine(ledgerdomain.AccountRevenueSubscription, 29900),
			ledgerdomain.CreditLine(ledgerdomain.AccountRevenueUsage, 5000),
			ledgerdomain.CreditLine(ledgerdomain.AccountCGSTPayable, 3141),
			ledgerdomain.CreditLine(ledgerdomain.AccountSGSTPayable, 3141),
			ledgerdomain.CreditLine(ledgerdomain.AccountIGSTPayable, 0),
		},
	}

	var posted bool
	err := stack.DB.Transaction(func(tx *gorm.DB) error {
		var err error
		posted, err = stack.Ledger.Post(ctx, tx, posting)
		return err
	})
	require.NoError(t, err)
	assert.True(t, posted)

	err = stack.DB.Transaction(func(tx *gorm.DB) error {
		var err error
		posted, err = stack.Ledger.Post(ctx, tx, posting)
		return err
	})
	require.NoError(t, err)
	assert.False(t, posted)

	ar, err := stack.Ledger.Balance(ctx, ledgerdomain.AccountAccountsReceivable, &account)
	require.NoError(t, err)
	assert.Equal(t, int64(41182), ar)

	cgst, err := stack.Ledger.Balance(ctx, ledgerdomain.AccountCGSTPayable, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(-3141), cgst)

	var lines int64
	require.NoError(t, stack.DB.Model(&ledgerdomain.EntryLine{}).Count(&lines).Error)
	assert.Equal(t, int64(5), lines)
}

func TestPostRejectsUnbalanced(t *testing.T) {
	stack := testutil.NewStack(t, testutil.Date(2026, 1, 1))

	err := stack.DB.Transaction(func(tx *gorm.DB) error {
		_, err := stack.Ledger.Post(context.Background(), tx, ledgerdomain.Posting{
			SourceType: ledgerdomain.SourceTypePayment,
			SourceID:   stack.Node.Generate(),
			Currency:   "INR",
			Lines: []ledgerdomain.PostingLine{
				ledgerdomain.DebitLine(ledgerdomain.AccountCash, 100),
				ledgerdomain.CreditLine(ledgerdomain.AccountAccountsReceivable, 99),
			},
		})
		return err
	})
	assert.ErrorIs(t, err, ledgerdomain.ErrUnbalancedEntry)
}

func TestValidateBalanced(t *testing.T) {
	cases := []struct {
		name  string
		lines []ledgerdomain.PostingLine
		err   error
	}{
		{
			name: "single line",
			lines: []ledgerdomain.PostingLine{
				ledgerdomain.DebitLine(ledgerdomain.AccountCash, 100),
				ledgerdomain.CreditLine(ledgerdomain.AccountAccountsReceivable, 0),
			},
			err: ledgerdomain.ErrInvalidEntryLines,
		},
		{
			name: "negative amount",
			lines: []ledgerdomain.PostingLine{
				ledgerdomain.DebitLine(ledgerdomain.AccountCash, -1),
				ledgerdomain.CreditLine(ledgerdomain.AccountAccountsReceivable, -1),
			},
			err: ledgerdomain.ErrInvalidLineAmount,
		},
		{
			name: "unknown account",
			lines: []ledgerdomain.PostingLine{
				ledgerdomain.DebitLine("suspense", 1),
				ledgerdomain.CreditLine(ledgerdomain.AccountCash, 1),
			},
			err: ledgerdomain.ErrUnknownAccount,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ledgerdomain.ValidateBalanced(tc.lines)
			assert.ErrorIs(t, err, tc.err)
		})
	}
}
