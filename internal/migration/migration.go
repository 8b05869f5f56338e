package migration

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	abusedomain "github.com/smallbiznis/rotation/internal/abuse/domain"
	catalogdomain "github.com/smallbiznis/rotation/internal/catalog/domain"
	credentialdomain "github.com/smallbiznis/rotation/internal/credential/domain"
	jobdomain "github.com/smallbiznis/rotation/internal/job/domain"
	ledgerdomain "github.com/smallbiznis/rotation/internal/ledger/domain"
	queuedomain "github.com/smallbiznis/rotation/internal/queue/domain"
	slotdomain "github.com/smallbiznis/rotation/internal/slot/domain"
	subscriptiondomain "github.com/smallbiznis/rotation/internal/subscription/domain"
	userdomain "github.com/smallbiznis/rotation/internal/user/domain"
	"gorm.io/gorm"
)

const migrationsDir = "migrations"

//go:embed migrations/*.sql
var embeddedMigrations embed.FS

// Models lists every table owned by the engine, in dependency order.
func Models() []any {
	return []any{
		&userdomain.User{},
		&catalogdomain.StreamingService{},
		&subscriptiondomain.Subscription{},
		&queuedomain.RotationQueueEntry{},
		&slotdomain.RotationSlot{},
		&jobdomain.Job{},
		&ledgerdomain.CreditTransaction{},
		&ledgerdomain.DebtPayment{},
		&credentialdomain.StreamingCredential{},
		&abusedomain.CredentialFailureRecord{},
		&abusedomain.OperatorAlert{},
	}
}

// RunMigrations applies the embedded postgres migrations.
func RunMigrations(db *sql.DB) error {
	if db == nil {
		return errors.New("migration database handle is required")
	}

	sub, err := fs.Sub(embeddedMigrations, migrationsDir)
	if err != nil {
		return fmt.Errorf("open migrations: %w", err)
	}

	source, err := iofs.New(sub, ".")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("create migration driver: %w", err)
	}

	migrator, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	upErr := migrator.Up()
	if upErr != nil && !errors.Is(upErr, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", upErr)
	}
	// Do not call migrator.Close here because it would close the shared *sql.DB.

	return nil
}

// AutoMigrate creates the schema from the gorm models. Used for sqlite and
// mysql, where the embedded SQL does not apply.
func AutoMigrate(conn *gorm.DB) error {
	if conn == nil {
		return errors.New("migration database handle is required")
	}
	if err := conn.AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}
