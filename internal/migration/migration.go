package migration

import (
	"database/sql"
	"errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	billingcycledomain "github.com/smallbiznis/telbill/internal/billingcycle/domain"
	cdrdomain "github.com/smallbiznis/telbill/internal/cdr/domain"
	customerdomain "github.com/smallbiznis/telbill/internal/customer/domain"
	invoicedomain "github.com/smallbiznis/telbill/internal/invoice/domain"
	ledgerdomain "github.com/smallbiznis/telbill/internal/ledger/domain"
	paymentdomain "github.com/smallbiznis/telbill/internal/payment/domain"
	rateplandomain "github.com/smallbiznis/telbill/internal/rateplan/domain"
	subscriptiondomain "github.com/smallbiznis/telbill/internal/subscription/domain"
	"gorm.io/gorm"
)

// Models lists every persisted model in dependency order.
func Models() []any {
	return []any{
		&rateplandomain.RatePlan{},
		&customerdomain.Customer{},
		&subscriptiondomain.Subscription{},
		&subscriptiondomain.Addon{},
		&cdrdomain.CDR{},
		&invoicedomain.Invoice{},
		&invoicedomain.InvoiceItem{},
		&invoicedomain.InvoiceTaxLine{},
		&ledgerdomain.Account{},
		&ledgerdomain.Entry{},
		&ledgerdomain.EntryLine{},
		&paymentdomain.Payment{},
		&paymentdomain.EventRecord{},
		&billingcycledomain.RunRecord{},
	}
}

// AutoMigrate creates the schema from the gorm models. Used for sqlite and
// mysql where the embedded postgres migrations do not apply.
func AutoMigrate(db *gorm.DB) error {
	if db == nil {
		return errors.New("migration database handle is required")
	}
	if err := db.AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}

// RunMigrations applies every pending postgres migration.
func RunMigrations(db *sql.DB) error {
	migrator, err := newMigrator(db)
	if err != nil {
		return err
	}

	upErr := migrator.Up()
	if upErr != nil && !errors.Is(upErr, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", upErr)
	}
	// Do not call migrator.Close here because it would close the shared *sql.DB.

	return nil
}

// Rollback reverts the given number of postgres migrations.
func Rollback(db *sql.DB, steps int) error {
	if steps <= 0 {
		return errors.New("rollback steps must be positive")
	}
	migrator, err := newMigrator(db)
	if err != nil {
		return err
	}
	if err := migrator.Steps(-steps); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("rollback migrations: %w", err)
	}
	return nil
}

func newMigrator(db *sql.DB) (*migrate.Migrate, error) {
	if db == nil {
		return nil, errors.New("migration database handle is required")
	}

	sub, err := fs.Sub(embeddedMigrations, migrationsDir)
	if err != nil {
		return nil, fmt.Errorf("open migrations: %w", err)
	}

	source, err := iofs.New(sub, ".")
	if err != nil {
		return nil, fmt.Errorf("create migration source: %w", err)
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return nil, fmt.Errorf("create migration driver: %w", err)
	}

	migrator, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return nil, fmt.Errorf("create migrator: %w", err)
	}
	return migrator, nil
}
