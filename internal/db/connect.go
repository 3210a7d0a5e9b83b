package db

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib" // driver: pgx
	_ "github.com/mattn/go-sqlite3"    // driver: sqlite3
	_ "modernc.org/sqlite"             // driver: sqlite
)

type Driver string

const (
	// DriverSQLite3 is the cgo SQLite driver.
	DriverSQLite3 Driver = "sqlite3"
	// DriverSQLite is the pure Go SQLite driver.
	DriverSQLite   Driver = "sqlite"
	DriverPostgres Driver = "postgres"
)

func (d Driver) dialect() string {
	if d == DriverPostgres {
		return "postgres"
	}
	return "sqlite"
}

// Open opens and pings the database. SQLite handles are limited to one
// connection so pragmas and in-memory databases hold for every query.
func Open(ctx context.Context, driver Driver, dsn string) (*sql.DB, error) {
	var drvName string
	switch driver {
	case DriverSQLite3:
		drvName = "sqlite3"
		if dsn == "" {
			dsn = "file:xcyber.db?cache=shared&_busy_timeout=5000&_foreign_keys=on"
		}
	case DriverSQLite:
		drvName = "sqlite"
		if dsn == "" {
			dsn = "file:xcyber.db?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
		}
	case DriverPostgres:
		drvName = "pgx"
		if dsn == "" {
			dsn = "postgres://localhost:5432/xcyber?sslmode=disable"
		}
	default:
		return nil, fmt.Errorf("unsupported driver: %s", driver)
	}

	db, err := sql.Open(drvName, dsn)
	if err != nil {
		return nil, err
	}
	if driver != DriverPostgres {
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping %s: %w", driver, err)
	}
	return db, nil
}
