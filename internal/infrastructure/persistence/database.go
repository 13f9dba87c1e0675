package persistence

import (
	"context"
	"fmt"
	"time"

	"github.com/medsupply/backend/internal/infrastructure/config"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Database wraps the GORM handle shared by the ledger repositories
type Database struct {
	DB *gorm.DB
}

type openOptions struct {
	gorm        gorm.Config
	pingTries   int
	pingBackoff time.Duration
}

// DatabaseOption customizes how the connection is opened
type DatabaseOption func(*openOptions)

// WithLogger sets the GORM logger, normally logger.NewGormLogger
func WithLogger(l logger.Interface) DatabaseOption {
	return func(o *openOptions) { o.gorm.Logger = l }
}

// WithPingRetry retries the startup ping, doubling backoff each time. The
// worker uses it so it can start before PostgreSQL accepts connections.
func WithPingRetry(tries int, backoff time.Duration) DatabaseOption {
	return func(o *openOptions) {
		o.pingTries = tries
		o.pingBackoff = backoff
	}
}

// NewDatabase opens the PostgreSQL ledger database and sizes its pool
func NewDatabase(cfg *config.DatabaseConfig, opts ...DatabaseOption) (*Database, error) {
	o := openOptions{
		gorm: gorm.Config{
			Logger:                 logger.Default.LogMode(logger.Silent),
			SkipDefaultTransaction: true,
			PrepareStmt:            true,
			DisableAutomaticPing:   true,
		},
		pingTries: 1,
	}
	for _, opt := range opts {
		opt(&o)
	}

	db, err := gorm.Open(postgres.Open(cfg.DSN()), &o.gorm)
	if err != nil {
		return nil, fmt.Errorf("open ledger database: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("open ledger database: %w", err)
	}
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	d := &Database{DB: db}
	backoff := o.pingBackoff
	for try := 1; ; try++ {
		err = d.Ping(context.Background())
		if err == nil {
			return d, nil
		}
		if try >= o.pingTries {
			_ = sqlDB.Close()
			return nil, fmt.Errorf("ping ledger database after %d attempt(s): %w", try, err)
		}
		time.Sleep(backoff)
		backoff *= 2
	}
}

// Ping checks the connection within ctx
func (d *Database) Ping(ctx context.Context) error {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close releases the connection pool
func (d *Database) Close() error {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// isPostgres reports whether db talks to PostgreSQL; tests run on SQLite
func isPostgres(db *gorm.DB) bool {
	return db.Dialector != nil && db.Dialector.Name() == "postgres"
}
