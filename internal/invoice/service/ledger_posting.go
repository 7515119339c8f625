package service

import (
	"context"
	"fmt"
	"time"

	invoicedomain "github.com/smallbiznis/telbill/internal/invoice/domain"
	ledgerdomain "github.com/smallbiznis/telbill/internal/ledger/domain"
	"github.com/smallbiznis/telbill/internal/tax"
	"gorm.io/gorm"
)

var revenueAccounts = map[invoicedomain.LineType]ledgerdomain.AccountCode{
	invoicedomain.LineTypeSubscriptionFee: ledgerdomain.AccountRevenueSubscription,
	invoicedomain.LineTypeOverage:         ledgerdomain.AccountRevenueUsage,
	invoicedomain.LineTypeAddon:           ledgerdomain.AccountRevenueAddon,
	invoicedomain.LineTypeSetupFee:        ledgerdomain.AccountRevenueSetup,
}

var taxAccounts = map[string]ledgerdomain.AccountCode{
	tax.CodeCGST: ledgerdomain.AccountCGSTPayable,
	tax.CodeSGST: ledgerdomain.AccountSGSTPayable,
	tax.CodeIGST: ledgerdomain.AccountIGSTPayable,
}

// invoiceLines splits an invoice into receivable, revenue and tax postings.
// Debit: accounts receivable. Credit: revenue per line type and tax payable
// per component.
func invoiceLines(inv *invoicedomain.Invoice) ([]ledgerdomain.PostingLine, error) {
	revenue := make(map[ledgerdomain.AccountCode]int64)
	for _, item := range inv.Items {
		account, ok := revenueAccounts[item.LineType]
		if !ok {
			return nil, fmt.Errorf("no revenue account for line type %q", item.LineType)
		}
		revenue[account] += item.Amount
	}

	lines := []ledgerdomain.PostingLine{
		ledgerdomain.DebitLine(ledgerdomain.AccountAccountsReceivable, inv.TotalAmount),
	}
	for _, account := range []ledgerdomain.AccountCode{
		ledgerdomain.AccountRevenueSubscription,
		ledgerdomain.AccountRevenueSetup,
		ledgerdomain.AccountRevenueUsage,
		ledgerdomain.AccountRevenueAddon,
	} {
		if amount := revenue[account]; amount != 0 {
			lines = append(lines, ledgerdomain.CreditLine(account, amount))
		}
	}
	for _, taxLine := range inv.TaxLines {
		account, ok := taxAccounts[taxLine.Code]
		if !ok {
			return nil, fmt.Errorf("no tax account for code %q", taxLine.Code)
		}
		lines = append(lines, ledgerdomain.CreditLine(account, taxLine.Amount))
	}
	return lines, nil
}

// postInvoice records the receivable of a new invoice inside its creation
// transaction. Zero-total invoices post nothing.
func (s *Service) postInvoice(ctx context.Context, tx *gorm.DB, inv *invoicedomain.Invoice) error {
	if inv.TotalAmount == 0 {
		return nil
	}
	lines, err := invoiceLines(inv)
	if err != nil {
		return err
	}
	_, err = s.ledger.Post(ctx, tx, ledgerdomain.Posting{
		AccountID:  inv.AccountID,
		SourceType: ledgerdomain.SourceTypeInvoice,
		SourceID:   inv.ID,
		Currency:   inv.Currency,
		Memo:       inv.InvoiceNumber,
		OccurredAt: inv.IssueDate,
		Lines:      lines,
	})
	return err
}

// postVoid reverses the invoice posting.
func (s *Service) postVoid(ctx context.Context, tx *gorm.DB, inv *invoicedomain.Invoice, at time.Time) error {
	if inv.TotalAmount == 0 {
		return nil
	}
	lines, err := invoiceLines(inv)
	if err != nil {
		return err
	}
	for i := range lines {
		if lines[i].Direction == ledgerdomain.Debit {
			lines[i].Direction = ledgerdomain.Credit
		} else {
			lines[i].Direction = ledgerdomain.Debit
		}
	}
	_, err = s.ledger.Post(ctx, tx, ledgerdomain.Posting{
		AccountID:  inv.AccountID,
		SourceType: ledgerdomain.SourceTypeVoid,
		SourceID:   inv.ID,
		Currency:   inv.Currency,
		Memo:       "void " + inv.InvoiceNumber,
		OccurredAt: at,
		Lines:      lines,
	})
	return err
}
