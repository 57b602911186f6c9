package database

import (
	"context"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"

	"github.com/replygraph/replygraph/internal/errors"
)

// Supported database/sql driver names
const (
	DriverPgx      = "pgx"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite3"
)

// Factory opens a connection for a single operation. Callers close what
// they open; nothing is pooled across operations.
type Factory struct {
	driver string
	dsn    string
	logger *logrus.Entry
}

// NewFactory creates a connection factory for the relational comment source
func NewFactory(driver, dsn string, logger *logrus.Logger) *Factory {
	return &Factory{
		driver: driver,
		dsn:    dsn,
		logger: logger.WithField("component", "database"),
	}
}

// Driver returns the database/sql driver name
func (f *Factory) Driver() string {
	return f.driver
}

// Open connects and pings the database
func (f *Factory) Open(ctx context.Context) (*sqlx.DB, error) {
	start := time.Now()
	db, err := sqlx.ConnectContext(ctx, f.driver, f.dsn)
	if err != nil {
		f.logger.WithError(err).WithField("driver", f.driver).Error("failed to connect to comment database")
		return nil, errors.StoreUnavailable(err, "connect to comment database")
	}

	if f.driver == DriverSQLite {
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(4)
		db.SetConnMaxLifetime(5 * time.Minute)
	}

	f.logger.WithFields(logrus.Fields{
		"driver":   f.driver,
		"duration": time.Since(start),
	}).Debug("comment database connection opened")
	return db, nil
}

// Ping verifies connectivity by opening and closing a connection
func (f *Factory) Ping(ctx context.Context) error {
	db, err := f.Open(ctx)
	if err != nil {
		return err
	}
	return db.Close()
}
