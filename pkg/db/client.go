package db

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/angelmondragon/tradepost-backend/pkg/config"
	"github.com/angelmondragon/tradepost-backend/pkg/logger"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

var errMissingDSN = errors.New("db: dsn is required")

// Pinger is satisfied by anything the readiness probe can check.
type Pinger interface {
	Ping(ctx context.Context) error
}

// TxRunner runs fn in one transaction. A returned error or a panic rolls it back.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type Client struct {
	conn *gorm.DB
}

// New opens the configured database and applies pool limits.
func New(ctx context.Context, cfg config.DBConfig, logg *logger.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, errMissingDSN
	}

	driver := normalizeDriver(cfg.Driver)
	var dialector gorm.Dialector
	switch driver {
	case DriverSQLite:
		dialector = sqlite.Open(cfg.DSN)
	case DriverPostgres:
		dialector = postgres.New(postgres.Config{DSN: cfg.DSN, PreferSimpleProtocol: true})
	default:
		return nil, fmt.Errorf("db: unsupported driver %q", cfg.Driver)
	}

	conn, err := gorm.Open(dialector, &gorm.Config{
		Logger:                 newQueryLogger(logg, cfg.SlowQuery),
		SkipDefaultTransaction: true,
	})
	if err != nil {
		return nil, fmt.Errorf("db: open %s: %w", driver, err)
	}

	pool, err := conn.DB()
	if err != nil {
		return nil, fmt.Errorf("db: sql handle: %w", err)
	}
	if n := cfg.MaxOpenConns; n > 0 {
		pool.SetMaxOpenConns(n)
	}
	if n := cfg.MaxIdleConns; n > 0 {
		pool.SetMaxIdleConns(n)
	}
	if d := cfg.ConnMaxLifetime; d > 0 {
		pool.SetConnMaxLifetime(d)
	}
	if d := cfg.ConnMaxIdleTime; d > 0 {
		pool.SetConnMaxIdleTime(d)
	}

	if logg != nil {
		logg.Info(logg.WithField(ctx, "db_driver", driver), "db.connected")
	}
	return &Client{conn: conn}, nil
}

// NewFromConn wraps an existing handle, mostly for tests.
func NewFromConn(conn *gorm.DB) *Client {
	return &Client{conn: conn}
}

func normalizeDriver(v string) string {
	v = strings.ToLower(strings.TrimSpace(v))
	switch v {
	case "", "pg", "postgresql":
		return DriverPostgres
	case "sqlite3":
		return DriverSQLite
	}
	return v
}

func (c *Client) DB() *gorm.DB { return c.conn }

func (c *Client) Ping(ctx context.Context) error {
	pool, err := c.conn.DB()
	if err != nil {
		return err
	}
	return pool.PingContext(ctx)
}

func (c *Client) Close() error {
	pool, err := c.conn.DB()
	if err != nil {
		return err
	}
	return pool.Close()
}

// WithTx delegates to gorm's Transaction, which rolls back on error or panic.
func (c *Client) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return c.conn.WithContext(ctx).Transaction(fn)
}
