// Package storage persists historical readings and prediction rows in SQLite
// or PostgreSQL through sqlx.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config selects the database.
type Config struct {
	Driver string `json:"driver"`
	DSN    string `json:"dsn"`
}

func (c *Config) SetDefaults() {
	if c.Driver == "" {
		c.Driver = DriverSQLite
	}
	if c.DSN == "" && c.Driver == DriverSQLite {
		c.DSN = "utilcast.db"
	}
}

func (c Config) Validate() error {
	switch c.Driver {
	case DriverSQLite, DriverPostgres:
	default:
		return fmt.Errorf("storage.driver must be %q or %q, got %q", DriverSQLite, DriverPostgres, c.Driver)
	}
	if c.DSN == "" {
		return errors.New("storage.dsn is required")
	}
	return nil
}

// DB is an open database with the schema in place.
type DB struct {
	*sqlx.DB
}

// Open connects to the database and creates missing tables.
func Open(ctx context.Context, cfg Config) (*DB, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	x, err := sqlx.Open(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, err
	}
	if cfg.Driver == DriverSQLite {
		// In-memory databases are per connection.
		x.SetMaxOpenConns(1)
	}
	if err := x.PingContext(ctx); err != nil {
		_ = x.Close()
		return nil, fmt.Errorf("connect %s: %w", cfg.Driver, err)
	}
	db := &DB{DB: x}
	if err := db.migrate(ctx); err != nil {
		_ = x.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return db, nil
}

// columnTypes returns the per-driver replacements for the schema
// placeholders. Postgres REAL is single precision, so floats are stored as
// DOUBLE PRECISION there; sqlite REAL is already 8 bytes.
func columnTypes(driver string) *strings.Replacer {
	if driver == DriverPostgres {
		return strings.NewReplacer("{{id}}", "BIGSERIAL PRIMARY KEY", "{{float}}", "DOUBLE PRECISION")
	}
	return strings.NewReplacer("{{id}}", "INTEGER PRIMARY KEY AUTOINCREMENT", "{{float}}", "REAL")
}

func (db *DB) migrate(ctx context.Context) error {
	types := columnTypes(db.DriverName())
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, types.Replace(stmt)); err != nil {
			return err
		}
	}
	return nil
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS building (
        id {{id}},
        code TEXT NOT NULL DEFAULT '',
        name TEXT NOT NULL DEFAULT '',
        area {{float}} NOT NULL DEFAULT 0
    )`,
	`CREATE TABLE IF NOT EXISTS unit (
        id {{id}},
        years INTEGER NOT NULL,
        month INTEGER NOT NULL,
        amount BIGINT NOT NULL,
        building_id BIGINT NOT NULL
    )`,
	`CREATE INDEX IF NOT EXISTS unit_period ON unit (years, month)`,
	`CREATE TABLE IF NOT EXISTS number_of_users (
        id {{id}},
        years INTEGER NOT NULL,
        month INTEGER NOT NULL,
        amount BIGINT NOT NULL
    )`,
	`CREATE TABLE IF NOT EXISTS exam_status (
        id {{id}},
        years INTEGER NOT NULL,
        month INTEGER NOT NULL,
        status BOOLEAN NOT NULL
    )`,
	`CREATE TABLE IF NOT EXISTS semester_status (
        id {{id}},
        years INTEGER NOT NULL,
        month INTEGER NOT NULL,
        status BOOLEAN NOT NULL
    )`,
	`CREATE TABLE IF NOT EXISTS prediction (
        id {{id}},
        building TEXT NOT NULL,
        area {{float}} NOT NULL,
        prediction {{float}} NOT NULL,
        unit {{float}} NOT NULL,
        model_name TEXT NOT NULL,
        month_current INTEGER NOT NULL,
        year_current INTEGER NOT NULL,
        month_predict INTEGER NOT NULL,
        year_predict INTEGER NOT NULL,
        created_at BIGINT NOT NULL
    )`,
	`CREATE INDEX IF NOT EXISTS prediction_current ON prediction (year_current, month_current)`,
}
