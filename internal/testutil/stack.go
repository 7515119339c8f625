package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/telbill/internal/calltype"
	cdrdomain "github.com/smallbiznis/telbill/internal/cdr/domain"
	cdrservice "github.com/smallbiznis/telbill/internal/cdr/service"
	"github.com/smallbiznis/telbill/internal/clock"
	"github.com/smallbiznis/telbill/internal/config"
	customerdomain "github.com/smallbiznis/telbill/internal/customer/domain"
	customerservice "github.com/smallbiznis/telbill/internal/customer/service"
	invoicedomain "github.com/smallbiznis/telbill/internal/invoice/domain"
	invoiceservice "github.com/smallbiznis/telbill/internal/invoice/service"
	ledgerdomain "github.com/smallbiznis/telbill/internal/ledger/domain"
	ledgerservice "github.com/smallbiznis/telbill/internal/ledger/service"
	"github.com/smallbiznis/telbill/internal/lock"
	paymentdomain "github.com/smallbiznis/telbill/internal/payment/domain"
	paymentrepository "github.com/smallbiznis/telbill/internal/payment/repository"
	paymentservice "github.com/smallbiznis/telbill/internal/payment/service"
	"github.com/smallbiznis/telbill/internal/proration"
	rateplandomain "github.com/smallbiznis/telbill/internal/rateplan/domain"
	rateplanrepository "github.com/smallbiznis/telbill/internal/rateplan/repository"
	rateplanservice "github.com/smallbiznis/telbill/internal/rateplan/service"
	"github.com/smallbiznis/telbill/internal/rating"
	subscriptiondomain "github.com/smallbiznis/telbill/internal/subscription/domain"
	subscriptionrepository "github.com/smallbiznis/telbill/internal/subscription/repository"
	subscriptionservice "github.com/smallbiznis/telbill/internal/subscription/service"
	"github.com/smallbiznis/telbill/internal/tax"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Stack wires the billing services over one test database.
type Stack struct {
	DB      *gorm.DB
	Node    *snowflake.Node
	Clock   *clock.FakeClock
	Config  config.Config
	Billing *config.BillingConfigHolder

	Plans         rateplandomain.Service
	Customers     customerdomain.Service
	Subscriptions subscriptiondomain.Service
	CDRs          cdrdomain.Service
	Ledger        ledgerdomain.Service
	Invoices      invoicedomain.Service
	Payments      paymentdomain.Service
}

func NewStack(t testing.TB, now time.Time) *Stack {
	t.Helper()

	db := NewDB(t)
	node := NewNode(t)
	log := zap.NewNop()
	clk := clock.NewFakeClock(now)
	billing := config.NewStaticBillingConfig(config.DefaultBillingConfig())
	cfg := config.Config{
		Billing: config.BillingRunConfig{
			Concurrency:            2,
			SubscriptionTimeout:    10 * time.Second,
			InvoiceLockTTL:         time.Second,
			PaymentConflictRetries: 3,
		},
	}

	plans := rateplanservice.New(rateplanservice.Params{
		DB: db, Log: log, GenID: node, Repo: rateplanrepository.Provide(), Billing: billing,
	})
	customers := customerservice.New(customerservice.Params{DB: db, Log: log, GenID: node})
	subscriptions := subscriptionservice.New(subscriptionservice.Params{
		DB: db, Log: log, GenID: node, Repo: subscriptionrepository.Provide(),
		RatePlanSvc: plans, CustomerSvc: customers,
	})
	cdrs := cdrservice.New(cdrservice.Params{DB: db, Log: log, GenID: node})
	ledger := ledgerservice.NewService(ledgerservice.Params{DB: db, Log: log, GenID: node})
	invoices := invoiceservice.NewService(invoiceservice.ServiceParam{
		DB:            db,
		Log:           log,
		GenID:         node,
		Clock:         clk,
		Billing:       billing,
		Subscriptions: subscriptions,
		Plans:         plans,
		Customers:     customers,
		CDRs:          cdrs,
		Rater:         rating.NewRater(calltype.NewFromHolder(billing)),
		Tax:           tax.NewFromHolder(billing),
		Ledger:        ledger,
	})
	payments := paymentservice.NewService(paymentservice.Params{
		DB:        db,
		Log:       log,
		GenID:     node,
		Clock:     clk,
		Config:    cfg,
		Repo:      paymentrepository.Provide(),
		LedgerSvc: ledger,
		Locker:    lock.NoopLocker{},
	})

	return &Stack{
		DB:      db,
		Node:    node,
		Clock:   clk,
		Config:  cfg,
		Billing: billing,

		Plans:         plans,
		Customers:     customers,
		Subscriptions: subscriptions,
		CDRs:          cdrs,
		Ledger:        ledger,
		Invoices:      invoices,
		Payments:      payments,
	}
}

// StandardPlan is ₹299/month with 500 included minutes and ₹0.50 overage.
func (s *Stack) StandardPlan(t testing.TB) *rateplandomain.RatePlan {
	t.Helper()
	isd := decimal.NewFromInt(3)
	plan, err := s.Plans.Create(context.Background(), rateplandomain.CreateRequest{
		Code:                 "STD-" + s.Node.Generate().String(),
		Name:                 "Standard",
		MonthlyPrice:         29900,
		AnnualPrice:          299000,
		SetupFee:             0,
		IncludedMinutes:      500,
		OverageRatePerMinute: 50,
		Multipliers:          rateplandomain.Multipliers{ISD: &isd},
	})
	require.NoError(t, err)
	return plan
}

func (s *Stack) Customer(t testing.TB, state string) *customerdomain.Customer {
	t.Helper()
	c, err := s.Customers.Create(context.Background(), customerdomain.CreateRequest{
		AccountID: 1,
		Name:      "Asha Traders",
		Email:     "billing@asha.example",
		State:     state,
		Country:   "India",
	})
	require.NoError(t, err)
	return c
}

// Subscribe creates a monthly subscription starting on start.
func (s *Stack) Subscribe(t testing.TB, plan *rateplandomain.RatePlan, customer *customerdomain.Customer, start time.Time, postpaid bool) *subscriptiondomain.Subscription {
	t.Helper()
	sub, err := s.Subscriptions.Create(context.Background(), subscriptiondomain.CreateRequest{
		CustomerID:   customer.ID,
		AccountID:    customer.AccountID,
		RatePlanID:   plan.ID,
		BillingCycle: proration.Monthly,
		StartDate:    start,
		Postpaid:     postpaid,
	})
	require.NoError(t, err)
	return sub
}

// Calls ingests count local calls of minutes each, one hour apart from at.
func (s *Stack) Calls(t testing.TB, sub *subscriptiondomain.Subscription, at time.Time, count int, minutes int64) []cdrdomain.CDR {
	t.Helper()
	out := make([]cdrdomain.CDR, 0, count)
	for i := 0; i < count; i++ {
		record, err := s.CDRs.Ingest(context.Background(), cdrdomain.IngestRequest{
			SubscriptionID:  sub.ID,
			AccountID:       sub.AccountID,
			DurationSeconds: minutes * 60,
			BillableSeconds: minutes * 60,
			CalleeNumber:    "+918041234567",
			Timestamp:       at.Add(time.Duration(i) * time.Hour),
		})
		require.NoError(t, err)
		out = append(out, *record)
	}
	return out
}
