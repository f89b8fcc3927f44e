package database

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	migratemysql "github.com/golang-migrate/migrate/v4/database/mysql"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/dms-api/internal/config"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// Migrator applies the embedded migrations to one database.
type Migrator struct {
	m   *migrate.Migrate
	log logrus.FieldLogger
}

// NewMigrator binds the embedded migrations to db.  dbName is the schema
// name recorded by the migration driver.
func NewMigrator(db *sql.DB, dbName string, log logrus.FieldLogger) (*Migrator, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}
	src, err := iofs.New(migrationFiles, "migrations")
	if err != nil {
		return nil, fmt.Errorf("migrations source: %w", err)
	}
	driver, err := migratemysql.WithInstance(db, &migratemysql.Config{DatabaseName: dbName})
	if err != nil {
		return nil, fmt.Errorf("migrations driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "mysql", driver)
	if err != nil {
		return nil, fmt.Errorf("migrations init: %w", err)
	}
	return &Migrator{m: m, log: log}, nil
}

// Up applies all pending migrations.  An up-to-date schema is not an error.
func (mg *Migrator) Up() error {
	if err := mg.m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate up: %w", err)
	}
	mg.logVersion("migrate up")
	return nil
}

// Down rolls back steps migrations.
func (mg *Migrator) Down(steps int) error {
	if steps < 1 {
		steps = 1
	}
	if err := mg.m.Steps(-steps); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate down: %w", err)
	}
	mg.logVersion("migrate down")
	return nil
}

// Version reports the applied version and whether the last run failed
// half way.
func (mg *Migrator) Version() (uint, bool, error) {
	v, dirty, err := mg.m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	return v, dirty, err
}

// Close releases the migration driver.  It also closes the *sql.DB passed
// to NewMigrator.
func (mg *Migrator) Close() error {
	srcErr, dbErr := mg.m.Close()
	return errors.Join(srcErr, dbErr)
}

func (mg *Migrator) logVersion(msg string) {
	v, dirty, err := mg.Version()
	if err != nil {
		mg.log.WithError(err).Warn(msg + ": version unknown")
		return
	}
	mg.log.WithField("version", v).WithField("dirty", dirty).Info(msg)
}

// MigrateUp applies pending migrations over a dedicated connection so the
// migration lock never holds a connection of the serving pool.
func MigrateUp(c config.DBConfig, log logrus.FieldLogger) error {
	db, err := sql.Open("mysql", DSN(c))
	if err != nil {
		return err
	}
	mg, err := NewMigrator(db, c.Name, log)
	if err != nil {
		_ = db.Close()
		return err
	}
	defer func() { _ = mg.Close() }()
	return mg.Up()
}
