package sqlstore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"schoolprep/internal/errors"
)

// Driver names registered by the imported database drivers
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// ParseURL splits a DATABASE_URL into a driver name and a data source name.
// sqlite:// URLs carry a file path; postgres:// URLs are passed through.
func ParseURL(url string) (driver, dsn string, err error) {
	switch {
	case strings.HasPrefix(url, "sqlite://"):
		path := strings.TrimPrefix(url, "sqlite://")
		if path == "" {
			return "", "", errors.ConfigInvalid("sqlite URL has no file path")
		}
		return DriverSQLite, path, nil
	case strings.HasPrefix(url, "postgres://"), strings.HasPrefix(url, "postgresql://"):
		return DriverPostgres, url, nil
	default:
		return "", "", errors.ConfigInvalid(fmt.Sprintf("unsupported database URL %q", url))
	}
}

// Open connects to the database named by url and runs migrations
func Open(ctx context.Context, url string) (*sqlx.DB, error) {
	driver, dsn, err := ParseURL(url)
	if err != nil {
		return nil, err
	}

	if driver == DriverSQLite {
		if err := os.MkdirAll(filepath.Dir(dsn), 0o755); err != nil {
			return nil, errors.IOError("failed to create database directory", err)
		}
	}

	db, err := sqlx.ConnectContext(ctx, driver, dsn)
	if err != nil {
		return nil, errors.DatabaseError("failed to connect to database", err)
	}
	if driver == DriverSQLite {
		// a single writer avoids SQLITE_BUSY under concurrent saves
		db.SetMaxOpenConns(1)
	}

	if err := NewRunner().Run(ctx, db); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "database migration failed")
	}
	return db, nil
}
