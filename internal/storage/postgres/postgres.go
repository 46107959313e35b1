// Package postgres stores the ledger in PostgreSQL. It is the production
// store behind ironledger-server.
package postgres

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"sync"

	"github.com/golang-migrate/migrate/v4"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/jackc/pgx/v5/stdlib" // registers "pgx"
	_ "github.com/lib/pq"              // registers "postgres"

	"github.com/existflow/ironledger/internal/storage/sqlstore"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const (
	// DriverPQ is lib/pq, the default
	DriverPQ = "postgres"
	// DriverPGX is jackc/pgx through its database/sql adapter
	DriverPGX = "pgx"
)

var (
	sqlOpen = sql.Open
	openMu  sync.Mutex
)

// DriverName normalises a configured driver name
func DriverName(driver string) (string, error) {
	switch driver {
	case "", DriverPQ, "pq", "lib/pq":
		return DriverPQ, nil
	case DriverPGX, "pgx/v5":
		return DriverPGX, nil
	default:
		return "", fmt.Errorf("unsupported postgres driver %q (use postgres or pgx)", driver)
	}
}

// Open connects to dsn with the given driver and applies pending migrations
func Open(dsn, driver string) (*sqlstore.Store, error) {
	if dsn == "" {
		return nil, errors.New("postgres: database url is required")
	}
	name, err := DriverName(driver)
	if err != nil {
		return nil, err
	}

	openMu.Lock()
	db, err := sqlOpen(name, dsn)
	openMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	if err := RunMigrations(name, dsn); err != nil {
		db.Close()
		return nil, err
	}

	return sqlstore.New(db, sqlstore.Postgres, "postgres"), nil
}

// RunMigrations brings the schema up to date over a separate connection
func RunMigrations(driverName, dsn string) error {
	openMu.Lock()
	migrateDB, err := sqlOpen(driverName, dsn)
	openMu.Unlock()
	if err != nil {
		return fmt.Errorf("failed to open migration database: %w", err)
	}

	driver, err := migratepg.WithInstance(migrateDB, &migratepg.Config{})
	if err != nil {
		migrateDB.Close()
		return fmt.Errorf("failed to create migrate driver: %w", err)
	}

	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		driver.Close()
		return fmt.Errorf("failed to create migration source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, "postgres", driver)
	if err != nil {
		driver.Close()
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

// OverrideSQLOpen swaps the sql.Open used by Open and returns a restore function
func OverrideSQLOpen(fn func(driverName, dataSourceName string) (*sql.DB, error)) func() {
	openMu.Lock()
	defer openMu.Unlock()
	prev := sqlOpen
	sqlOpen = fn
	return func() {
		openMu.Lock()
		sqlOpen = prev
		openMu.Unlock()
	}
}
