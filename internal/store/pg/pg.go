// Package pg opens the PostgreSQL connection pool shared by the stores.
package pg

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
)

// Pool limits applied to every handle returned by Open.
const (
	MaxOpenConns    = 50
	MaxIdleConns    = 25
	ConnMaxLifetime = 15 * time.Minute
	ConnMaxIdleTime = 5 * time.Minute
)

// Open parses dsn and returns a pooled database/sql handle backed by pgx.
// No connection is made until first use.
func Open(dsn string) (*sql.DB, error) {
	cfg, err := pgx.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	db := stdlib.OpenDB(*cfg)
	// Tuned pool defaults; adjust under load tests
	db.SetMaxOpenConns(MaxOpenConns)
	db.SetMaxIdleConns(MaxIdleConns)
	db.SetConnMaxLifetime(ConnMaxLifetime)
	db.SetConnMaxIdleTime(ConnMaxIdleTime)
	return db, nil
}
