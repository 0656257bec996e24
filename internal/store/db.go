package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/huandu/go-sqlbuilder"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"
)

// DB wraps sql.DB for Postgres (pgx) or SQLite (go-sqlite3).
type DB struct {
	Client *sql.DB
	Flavor sqlbuilder.Flavor
}

// NewDB opens the database named by connString. URLs starting with sqlite:// (or
// file:) select SQLite; everything else is handed to pgx. The first ping is
// retried with exponential backoff for up to connectWait.
func NewDB(ctx context.Context, connString string, connectWait time.Duration) (*DB, error) {
	driver, dsn, flavor := parseConnString(connString)
	if driver == "sqlite3" {
		if dir := filepath.Dir(strings.SplitN(dsn, "?", 2)[0]); dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create database dir: %w", err)
			}
		}
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if driver == "sqlite3" {
		// one writer; avoids SQLITE_BUSY under concurrent handlers
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(time.Hour)
	}

	var policy backoff.BackOff = &backoff.StopBackOff{}
	if connectWait > 0 {
		b := backoff.NewExponentialBackOff()
		b.InitialInterval = 250 * time.Millisecond
		b.MaxElapsedTime = connectWait
		policy = b
	}
	ping := func() error { return db.PingContext(ctx) }
	if err := backoff.Retry(ping, backoff.WithContext(policy, ctx)); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	return &DB{Client: db, Flavor: flavor}, nil
}

func parseConnString(connString string) (driver, dsn string, flavor sqlbuilder.Flavor) {
	switch {
	case strings.HasPrefix(connString, "sqlite://"):
		return "sqlite3", strings.TrimPrefix(connString, "sqlite://") + sqliteParams(connString), sqlbuilder.SQLite
	case strings.HasPrefix(connString, "file:"):
		return "sqlite3", connString, sqlbuilder.SQLite
	default:
		return "pgx", connString, sqlbuilder.PostgreSQL
	}
}

func sqliteParams(connString string) string {
	if strings.Contains(connString, "?") {
		return ""
	}
	return "?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on"
}

// Ping checks connectivity.
func (d *DB) Ping(ctx context.Context) error {
	if d == nil || d.Client == nil {
		return fmt.Errorf("database not configured")
	}
	return d.Client.PingContext(ctx)
}

// Close closes the underlying connection.
func (d *DB) Close() error {
	if d == nil || d.Client == nil {
		return nil
	}
	return d.Client.Close()
}
