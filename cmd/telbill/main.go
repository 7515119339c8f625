package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/telbill/internal/billingcycle"
	billingcycledomain "github.com/smallbiznis/telbill/internal/billingcycle/domain"
	"github.com/smallbiznis/telbill/internal/calltype"
	"github.com/smallbiznis/telbill/internal/cdr"
	"github.com/smallbiznis/telbill/internal/clock"
	"github.com/smallbiznis/telbill/internal/config"
	"github.com/smallbiznis/telbill/internal/customer"
	"github.com/smallbiznis/telbill/internal/invoice"
	invoicedomain "github.com/smallbiznis/telbill/internal/invoice/domain"
	"github.com/smallbiznis/telbill/internal/ledger"
	"github.com/smallbiznis/telbill/internal/lock"
	"github.com/smallbiznis/telbill/internal/migration"
	"github.com/smallbiznis/telbill/internal/observability"
	"github.com/smallbiznis/telbill/internal/payment"
	"github.com/smallbiznis/telbill/internal/rateplan"
	"github.com/smallbiznis/telbill/internal/rating"
	"github.com/smallbiznis/telbill/internal/reporting"
	"github.com/smallbiznis/telbill/internal/scheduler"
	"github.com/smallbiznis/telbill/internal/subscription"
	"github.com/smallbiznis/telbill/pkg/db"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "telbill",
		Short:        "Telecom usage rating and invoicing",
		Version:      readVersionFromEnv(),
		SilenceUsage: true,
	}
	root.AddCommand(newServeCmd(), newRunCycleCmd(), newSweepOverdueCmd(), newMigrateCmd())
	return root
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the billing scheduler and metrics endpoint",
		RunE: func(cmd *cobra.Command, args []string) error {
			app := fx.New(
				coreModules(),
				domainModules(),
				migration.Module,
				scheduler.Module,
				fx.Invoke(registerMetricsServer),
			)
			if err := app.Err(); err != nil {
				return err
			}
			app.Run()
			return nil
		},
	}
}

func newRunCycleCmd() *cobra.Command {
	var asOf string
	cmd := &cobra.Command{
		Use:   "run-cycle",
		Short: "Bill every subscription whose period has ended, once",
		RunE: func(cmd *cobra.Command, args []string) error {
			var svc billingcycledomain.Service
			return runOnce(cmd.Context(), &svc, func(ctx context.Context) (any, error) {
				if asOf == "" {
					return svc.Run(ctx)
				}
				at, err := time.Parse(time.DateOnly, asOf)
				if err != nil {
					return nil, fmt.Errorf("invalid --as-of %q: %w", asOf, err)
				}
				return svc.RunAsOf(ctx, at)
			})
		},
	}
	cmd.Flags().StringVar(&asOf, "as-of", "", "bill as of this date (YYYY-MM-DD) instead of now")
	return cmd
}

func newSweepOverdueCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep-overdue",
		Short: "Mark finalized invoices past their due date as overdue",
		RunE: func(cmd *cobra.Command, args []string) error {
			var svc invoicedomain.Service
			return runOnce(cmd.Context(), &svc, func(ctx context.Context) (any, error) {
				n, err := svc.MarkOverdue(ctx, time.Now().UTC())
				if err != nil {
					return nil, err
				}
				return map[string]int64{"marked_overdue": n}, nil
			})
		},
	}
}

func newMigrateCmd() *cobra.Command {
	var steps int
	cmd := &cobra.Command{
		Use:       "migrate [up|down]",
		Short:     "Apply or roll back database migrations",
		Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"up", "down"},
		RunE: func(cmd *cobra.Command, args []string) error {
			direction := "up"
			if len(args) == 1 {
				direction = args[0]
			}
			var (
				conn *gorm.DB
				cfg  config.Config
				log  *zap.Logger
			)
			app := fx.New(
				fx.NopLogger,
				config.Module,
				observability.Module,
				db.Module,
				fx.Populate(&conn, &cfg, &log),
			)
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
			defer cancel()
			if err := app.Start(ctx); err != nil {
				return fmt.Errorf("migrate failed: %w", err)
			}
			defer func() { _ = app.Stop(context.Background()) }()

			if direction == "up" {
				if err := migration.Apply(conn, cfg); err != nil {
					return err
				}
				log.Info("migrations applied", zap.String("db_type", cfg.DBType))
				return nil
			}
			if cfg.DBType != "postgres" {
				return fmt.Errorf("rollback is only supported for postgres, got %q", cfg.DBType)
			}
			sqlDB, err := conn.DB()
			if err != nil {
				return err
			}
			if err := migration.Rollback(sqlDB, steps); err != nil {
				return err
			}
			log.Info("migrations rolled back", zap.Int("steps", steps))
			return nil
		},
	}
	cmd.Flags().IntVar(&steps, "steps", 1, "number of migrations to roll back")
	return cmd
}

// runOnce starts the application graph, runs fn and prints its result as JSON.
func runOnce[T any](ctx context.Context, target *T, fn func(context.Context) (any, error)) error {
	if ctx == nil {
		ctx = context.Background()
	}
	app := fx.New(
		fx.NopLogger,
		coreModules(),
		domainModules(),
		migration.Module,
		fx.Populate(target),
	)
	startCtx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()
	if err := app.Start(startCtx); err != nil {
		return err
	}
	defer func() { _ = app.Stop(context.Background()) }()

	out, err := fn(ctx)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func coreModules() fx.Option {
	return fx.Options(
		config.Module,
		observability.Module,
		fx.Provide(registerSnowflake),
		db.Module,
		clock.Module,
		lock.Module,
	)
}

func domainModules() fx.Option {
	return fx.Options(
		rateplan.Module,
		customer.Module,
		subscription.Module,
		calltype.Module,
		rating.Module,
		cdr.Module,
		ledger.Module,
		invoice.Module,
		payment.Module,
		billingcycle.Module,
		reporting.Module,
	)
}

func registerSnowflake() (*snowflake.Node, error) {
	return snowflake.NewNode(nodeIDFromEnv())
}

func nodeIDFromEnv() int64 {
	var id int64 = 1
	if v := strings.TrimSpace(os.Getenv("SNOWFLAKE_NODE_ID")); v != "" {
		if _, err := fmt.Sscan(v, &id); err != nil {
			return 1
		}
	}
	return id
}

func readVersionFromEnv() string {
	if v := strings.TrimSpace(os.Getenv("APP_VERSION")); v != "" {
		return v
	}
	return "dev"
}
